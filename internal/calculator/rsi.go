package calculator

import (
	"errors"
	"math"

	"MarketSync/internal/model"
)

// RSI computes the relative strength index for every close, smoothing gains
// and losses with an EMA of span period. The result has the same length as
// closes; the first period entries are NaN and must be treated as missing.
//
// A flat stretch (no gains, no losses) yields 50.
func RSI(closes []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errors.New("period must be positive")
	}
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = math.NaN()
	}
	if len(closes) < 2 {
		return out, nil
	}

	gains := make([]float64, len(closes)-1)
	losses := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains[i-1] = change
		} else {
			losses[i-1] = -change
		}
	}

	avgGain, err := EMA(gains, period)
	if err != nil {
		return nil, err
	}
	avgLoss, err := EMA(losses, period)
	if err != nil {
		return nil, err
	}

	for i := period; i < len(closes); i++ {
		out[i] = rsiValue(avgGain[i-1], avgLoss[i-1])
	}
	return out, nil
}

func rsiValue(avgGain, avgLoss float64) float64 {
	switch {
	case avgLoss == 0 && avgGain == 0:
		return 50.0
	case avgLoss == 0:
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}

// LatestRSI returns the RSI of the last bar, or false when the series is too
// short to have a defined value.
func LatestRSI(bars []model.Bar, period int) (float64, bool) {
	if period <= 0 || len(bars) <= period {
		return 0, false
	}
	values, err := RSI(Closes(bars), period)
	if err != nil {
		return 0, false
	}
	v := values[len(values)-1]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}
