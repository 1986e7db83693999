package alert

import (
	"fmt"
	"math"

	"MarketSync/internal/model"
)

// Thresholds are the RSI levels separating the five zones.
type Thresholds struct {
	ExtremeOversold   float64
	Oversold          float64
	Overbought        float64
	ExtremeOverbought float64
}

// DefaultThresholds returns the conventional 20/30/70/80 bands.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ExtremeOversold:   20,
		Oversold:          30,
		Overbought:        70,
		ExtremeOverbought: 80,
	}
}

// Validate checks the levels are inside [0, 100] and strictly ascending.
func (t Thresholds) Validate() error {
	levels := []float64{t.ExtremeOversold, t.Oversold, t.Overbought, t.ExtremeOverbought}
	for i, v := range levels {
		if v < 0 || v > 100 {
			return fmt.Errorf("rsi threshold %.2f out of range", v)
		}
		if i > 0 && v <= levels[i-1] {
			return fmt.Errorf("rsi thresholds must be ascending, got %v", levels)
		}
	}
	return nil
}

// zoneLabels are the human-readable zone names used in alerts.
var zoneLabels = map[model.RSIZone]string{
	model.ZoneExtremeOversold:   "Extreme oversold",
	model.ZoneOversold:          "Oversold",
	model.ZoneNeutral:           "Neutral",
	model.ZoneOverbought:        "Overbought",
	model.ZoneExtremeOverbought: "Extreme overbought",
}

// Label returns the display name of z.
func Label(z model.RSIZone) string {
	if l, ok := zoneLabels[z]; ok {
		return l
	}
	return string(z)
}

// Classify maps an RSI value to its zone. Oversold levels are inclusive from
// below, overbought levels inclusive from above. NaN is neutral.
func (t Thresholds) Classify(rsi float64) model.RSIZone {
	switch {
	case math.IsNaN(rsi):
		return model.ZoneNeutral
	case rsi <= t.ExtremeOversold:
		return model.ZoneExtremeOversold
	case rsi <= t.Oversold:
		return model.ZoneOversold
	case rsi >= t.ExtremeOverbought:
		return model.ZoneExtremeOverbought
	case rsi >= t.Overbought:
		return model.ZoneOverbought
	default:
		return model.ZoneNeutral
	}
}
