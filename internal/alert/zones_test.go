package alert

import (
	"math"
	"testing"

	"MarketSync/internal/model"
)

func TestClassify(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		rsi  float64
		want model.RSIZone
	}{
		{5, model.ZoneExtremeOversold},
		{20, model.ZoneExtremeOversold},
		{25, model.ZoneOversold},
		{30, model.ZoneOversold},
		{30.01, model.ZoneNeutral},
		{50, model.ZoneNeutral},
		{69.99, model.ZoneNeutral},
		{70, model.ZoneOverbought},
		{79.9, model.ZoneOverbought},
		{80, model.ZoneExtremeOverbought},
		{100, model.ZoneExtremeOverbought},
		{math.NaN(), model.ZoneNeutral},
	}
	for _, tt := range tests {
		if got := th.Classify(tt.rsi); got != tt.want {
			t.Errorf("Classify(%.2f) = %s, want %s", tt.rsi, got, tt.want)
		}
	}
}

func TestThresholdsValidate(t *testing.T) {
	if err := DefaultThresholds().Validate(); err != nil {
		t.Fatalf("default thresholds invalid: %v", err)
	}
	bad := Thresholds{ExtremeOversold: 30, Oversold: 20, Overbought: 70, ExtremeOverbought: 80}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for descending thresholds")
	}
	outOfRange := Thresholds{ExtremeOversold: 20, Oversold: 30, Overbought: 70, ExtremeOverbought: 120}
	if err := outOfRange.Validate(); err == nil {
		t.Error("expected error for threshold above 100")
	}
}

func TestLabel(t *testing.T) {
	if got := Label(model.ZoneExtremeOverbought); got != "Extreme overbought" {
		t.Errorf("unexpected label %q", got)
	}
	if got := Label("UNKNOWN"); got != "UNKNOWN" {
		t.Errorf("unexpected fallback label %q", got)
	}
}
