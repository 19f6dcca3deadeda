package odds

import "math"

// KellyAmerican computes the fractional Kelly stake for a bet at American odds.
// f* = (p * b - q) / b, where b is profit per unit staked.
//
// fraction scales the result (e.g., 0.25 for quarter Kelly). Negative edges
// return 0, and the full-Kelly value is capped at 1.
func KellyAmerican(trueProb float64, odds int, fraction float64) float64 {
	b := Payout(odds)
	if b <= 0 || trueProb <= 0 || trueProb >= 1 {
		return 0
	}

	p := trueProb
	q := 1.0 - p

	kelly := (p*b - q) / b

	kelly = math.Max(0, kelly)
	kelly = math.Min(kelly, 1.0)

	return kelly * fraction
}
