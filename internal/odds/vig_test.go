package odds

import (
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name      string
		a, b      float64
		expectedA float64
		expectedB float64
	}{
		{"Already fair", 0.5, 0.5, 0.5, 0.5},
		{"Overround", 0.55, 0.55, 0.5, 0.5},
		{"Smoothed counts with push mass", 3.1 / 6.2, 2.1 / 6.2, 3.1 / 5.2, 2.1 / 5.2},
		{"Underround keeps ratio", 0.3, 0.1, 0.75, 0.25},
		{"Zero total", 0, 0, 0, 0},
		{"Negative input", -0.1, 0.5, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := Normalize(tt.a, tt.b)
			if math.Abs(a-tt.expectedA) > 1e-9 || math.Abs(b-tt.expectedB) > 1e-9 {
				t.Errorf("Normalize(%v, %v) = (%v, %v), want (%v, %v)", tt.a, tt.b, a, b, tt.expectedA, tt.expectedB)
			}
			if tt.expectedA+tt.expectedB > 0 && math.Abs(a+b-1) > 1e-9 {
				t.Errorf("Normalized pair should sum to 1, got %v", a+b)
			}
		})
	}
}

func TestRemoveVigFromAmerican(t *testing.T) {
	a, b := RemoveVigFromAmerican(-110, -110)
	if math.Abs(a-0.5) > 1e-9 || math.Abs(b-0.5) > 1e-9 {
		t.Errorf("RemoveVigFromAmerican(-110, -110) = (%v, %v), want (0.5, 0.5)", a, b)
	}

	a, b = RemoveVigFromAmerican(-150, 130)
	if math.Abs(a+b-1) > 1e-9 {
		t.Errorf("vig-free probabilities should sum to 1, got %v", a+b)
	}
	if a <= b {
		t.Errorf("favorite should keep the higher probability, got %v <= %v", a, b)
	}

	if a, b := RemoveVigFromAmerican(0, -110); a != 0 || b != 0 {
		t.Errorf("missing price should yield zeros, got (%v, %v)", a, b)
	}
}
