package odds

import "math"

// AmericanToImplied converts American odds to implied probability.
// Example: -150 → 0.6 (60%), +150 → 0.4 (40%)
func AmericanToImplied(odds int) float64 {
	if odds == 0 {
		return 0
	}

	if odds > 0 {
		// Underdog: probability = 100 / (odds + 100)
		return 100.0 / (float64(odds) + 100.0)
	}
	// Favorite: probability = |odds| / (|odds| + 100)
	return math.Abs(float64(odds)) / (math.Abs(float64(odds)) + 100.0)
}

// Payout returns profit per unit staked for American odds.
// +150 → 1.5, -110 → 0.909. Zero odds are not a price and return 0.
func Payout(odds int) float64 {
	switch {
	case odds > 0:
		return float64(odds) / 100.0
	case odds < 0:
		return 100.0 / math.Abs(float64(odds))
	default:
		return 0
	}
}

// Decimal returns decimal odds (stake included) for American odds.
func Decimal(odds int) float64 {
	if odds == 0 {
		return 0
	}
	return 1 + Payout(odds)
}

// ExpectedValue is the EV per unit staked at the given American odds:
// trueProb * payout - (1 - trueProb).
func ExpectedValue(trueProb float64, odds int) float64 {
	return trueProb*Payout(odds) - (1 - trueProb)
}
