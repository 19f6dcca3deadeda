package odds

// Normalize rescales a two-way pair of probabilities so they sum to 1.0.
// Used both to strip vig from implied probabilities and to drop push mass
// from smoothed hit counts.
//
// trueA = a / (a + b)
// trueB = b / (a + b)
func Normalize(a, b float64) (float64, float64) {
	if a < 0 || b < 0 {
		return 0, 0
	}

	total := a + b
	if total <= 0 {
		return 0, 0
	}

	return a / total, b / total
}

// RemoveVigFromAmerican converts a two-way American price pair to vig-free probabilities.
func RemoveVigFromAmerican(oddsA, oddsB int) (float64, float64) {
	impliedA := AmericanToImplied(oddsA)
	impliedB := AmericanToImplied(oddsB)
	if impliedA <= 0 || impliedB <= 0 {
		return 0, 0
	}
	return Normalize(impliedA, impliedB)
}
