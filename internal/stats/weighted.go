package stats

import (
	"prop-engine/internal/model"
	"prop-engine/internal/outcome"
)

// WeightedAverage computes a recency-weighted mean of values ordered newest first.
//
// The weight of the value at index i is 1 + (N - i) * recencyWeight. This is a
// linear bias toward recent games, not exponential decay: with N=5 and a weight
// of 0.1 the weights are 1.5, 1.4, 1.3, 1.2, 1.1.
func WeightedAverage(values []float64, recencyWeight float64) outcome.Of[float64] {
	if len(values) == 0 {
		return outcome.Unavailable[float64]("no values")
	}
	n := len(values)
	total, weights := 0.0, 0.0
	for i, v := range values {
		w := 1.0 + float64(n-i)*recencyWeight
		total += v * w
		weights += w
	}
	if weights == 0 {
		return outcome.Unavailable[float64]("zero total weight")
	}
	return outcome.Value(total / weights)
}

// WeightedAverageOf applies WeightedAverage to game records ordered newest first.
// N is the record count; records without the stat are skipped but still hold
// their position, so a gap does not promote older games.
func WeightedAverageOf(records []model.GameStatRecord, c Category, recencyWeight float64) outcome.Of[float64] {
	if len(records) == 0 {
		return outcome.Unavailable[float64]("no games")
	}
	n := len(records)
	total, weights := 0.0, 0.0
	for i, r := range records {
		v, ok := Value(r, c).Get()
		if !ok {
			continue
		}
		w := 1.0 + float64(n-i)*recencyWeight
		total += v * w
		weights += w
	}
	if weights == 0 {
		return outcome.Unavailable[float64]("no " + c.String() + " values")
	}
	return outcome.Value(total / weights)
}
