package odds

import (
	"math"
	"testing"
)

func TestAmericanToImplied(t *testing.T) {
	tests := []struct {
		name     string
		odds     int
		expected float64
		delta    float64
	}{
		{"Even money +100", 100, 0.5, 0.001},
		{"Even money -100", -100, 0.5, 0.001},
		{"Favorite -150", -150, 0.6, 0.001},
		{"Underdog +150", 150, 0.4, 0.001},
		{"Heavy favorite -300", -300, 0.75, 0.001},
		{"Big underdog +300", 300, 0.25, 0.001},
		{"Standard -110", -110, 0.5238, 0.001},
		{"Zero odds", 0, 0, 0.001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := AmericanToImplied(tt.odds)
			if math.Abs(result-tt.expected) > tt.delta {
				t.Errorf("AmericanToImplied(%d) = %v, want %v", tt.odds, result, tt.expected)
			}
		})
	}
}

func TestPayout(t *testing.T) {
	tests := []struct {
		name     string
		odds     int
		expected float64
	}{
		{"Underdog +150", 150, 1.5},
		{"Even +100", 100, 1.0},
		{"Standard -110", -110, 100.0 / 110.0},
		{"Favorite -200", -200, 0.5},
		{"Zero", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := Payout(tt.odds); math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("Payout(%d) = %v, want %v", tt.odds, result, tt.expected)
			}
		})
	}

	if d := Decimal(-200); math.Abs(d-1.5) > 1e-9 {
		t.Errorf("Decimal(-200) = %v, want 1.5", d)
	}
}

func TestExpectedValue(t *testing.T) {
	tests := []struct {
		name     string
		prob     float64
		odds     int
		expected float64
	}{
		{"Fair coin at even money", 0.5, 100, 0},
		{"Fair coin at -110 loses the vig", 0.5, -110, 0.5*(100.0/110.0) - 0.5},
		{"Favourite priced right", 0.6, -150, 0},
		{"Value underdog", 0.45, 150, 0.45*1.5 - 0.55},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := ExpectedValue(tt.prob, tt.odds); math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("ExpectedValue(%v, %d) = %v, want %v", tt.prob, tt.odds, result, tt.expected)
			}
		})
	}
}
