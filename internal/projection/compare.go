package projection

import (
	"math"

	"prop-engine/internal/mathutil"
	"prop-engine/internal/outcome"
)

// Assessment of a projection relative to the book.
const (
	Aligned = "aligned"
	Higher  = "higher"
	Lower   = "lower"
)

// Comparison describes how far a projection sits from the book line.
type Comparison struct {
	Difference        float64 `json:"difference"`
	PercentDifference float64 `json:"percent_difference"`
	Assessment        string  `json:"assessment"`
	ValueOpportunity  bool    `json:"value_opportunity"` // more than a point apart
}

// CompareToBookLine compares a projected line to the book's. Zero on either
// side means there is nothing to compare.
func CompareToBookLine(projected, bookLine float64) outcome.Of[Comparison] {
	if projected == 0 || bookLine == 0 {
		return outcome.Unavailable[Comparison]("missing projection or book line")
	}

	diff := projected - bookLine
	c := Comparison{
		Difference:        mathutil.Round(diff, 1),
		PercentDifference: mathutil.Round(diff/bookLine*100, 1),
		ValueOpportunity:  math.Abs(diff) > 1.0,
	}
	switch {
	case math.Abs(diff) < 0.5:
		c.Assessment = Aligned
	case diff > 0:
		c.Assessment = Higher
	default:
		c.Assessment = Lower
	}
	return outcome.Value(c)
}
