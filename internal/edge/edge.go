// Package edge turns a prop line and a player's history into a smoothed
// over/under probability, the better-EV side at the quoted prices, and raw
// hit-rate percentages.
package edge

import (
	"prop-engine/internal/mathutil"
	"prop-engine/internal/odds"
	"prop-engine/internal/outcome"
)

// Sides of a prop.
const (
	SideOver  = "over"
	SideUnder = "under"
)

// Config holds the smoothing pseudo-count and stake sizing fraction.
type Config struct {
	Smoothing     float64 // pseudo-count added to each side before normalising
	KellyFraction float64 // fraction of Kelly to recommend (e.g., 0.25 = quarter Kelly)
}

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() Config {
	return Config{
		Smoothing:     0.1,
		KellyFraction: 0.25,
	}
}

// Result is the better side of a prop at its quoted prices.
type Result struct {
	Side      string  `json:"side"`
	EV        float64 `json:"edge"`
	TrueProb  float64 `json:"prob"`
	Odds      int     `json:"odds"`
	OverProb  float64 `json:"over_prob"`
	UnderProb float64 `json:"under_prob"`
	Kelly     float64 `json:"kelly_stake"`

	DecimalOdds float64 `json:"decimal_odds"`
	MarketProb  float64 `json:"market_prob"` // vig-free when both sides are quoted
	ModelEdge   float64 `json:"prob_edge"`   // TrueProb - MarketProb
}

// HitRate is the raw, unsmoothed record against the line.
type HitRate struct {
	TotalGames int     `json:"total_games"`
	OverCount  int     `json:"over_count"`
	UnderCount int     `json:"under_count"`
	Pushes     int     `json:"pushes"`
	OverPct    float64 `json:"over_pct"`
	UnderPct   float64 `json:"under_pct"`
}

// Calculate uses DefaultConfig.
func Calculate(line outcome.Of[float64], values []float64, over, under outcome.Of[int]) (outcome.Of[Result], outcome.Of[HitRate]) {
	return DefaultConfig().Calculate(line, values, over, under)
}

// Calculate computes the edge and hit rate for a line against historical values.
//
// Both results are unavailable when the line is unknown or there is no
// history. The edge alone is unavailable when neither price is quoted; a price
// of 0 counts as not quoted. With both prices the higher EV wins and ties go
// to the over.
func (c Config) Calculate(line outcome.Of[float64], values []float64, over, under outcome.Of[int]) (outcome.Of[Result], outcome.Of[HitRate]) {
	l, ok := line.Get()
	if !ok {
		return outcome.Unavailable[Result]("no line"), outcome.Unavailable[HitRate]("no line")
	}
	if len(values) == 0 {
		return outcome.Unavailable[Result]("no history"), outcome.Unavailable[HitRate]("no history")
	}

	hr := Count(l, values)
	pOver, pUnder := c.Probabilities(hr)

	overPrice, hasOver := quoted(over)
	underPrice, hasUnder := quoted(under)

	var r Result
	switch {
	case hasOver && (!hasUnder || odds.ExpectedValue(pOver, overPrice) >= odds.ExpectedValue(pUnder, underPrice)):
		r = Result{Side: SideOver, TrueProb: pOver, Odds: overPrice}
	case hasUnder:
		r = Result{Side: SideUnder, TrueProb: pUnder, Odds: underPrice}
	default:
		return outcome.Unavailable[Result]("no prices"), outcome.Value(hr)
	}
	r.EV = odds.ExpectedValue(r.TrueProb, r.Odds)
	r.OverProb, r.UnderProb = pOver, pUnder
	r.Kelly = odds.KellyAmerican(r.TrueProb, r.Odds, c.KellyFraction)
	r.DecimalOdds = odds.Decimal(r.Odds)
	r.MarketProb = odds.AmericanToImplied(r.Odds)
	if hasOver && hasUnder {
		fairOver, fairUnder := odds.RemoveVigFromAmerican(overPrice, underPrice)
		r.MarketProb = fairOver
		if r.Side == SideUnder {
			r.MarketProb = fairUnder
		}
	}
	r.ModelEdge = mathutil.Round(r.TrueProb-r.MarketProb, 4)
	return outcome.Value(r), outcome.Value(hr)
}

// Count tallies games strictly over and strictly under the line. Percentages
// are rounded to one decimal.
func Count(line float64, values []float64) HitRate {
	hr := HitRate{TotalGames: len(values)}
	for _, v := range values {
		switch {
		case v > line:
			hr.OverCount++
		case v < line:
			hr.UnderCount++
		}
	}
	hr.Pushes = hr.TotalGames - hr.OverCount - hr.UnderCount
	if hr.TotalGames > 0 {
		n := float64(hr.TotalGames)
		hr.OverPct = mathutil.Round(float64(hr.OverCount)/n*100, 1)
		hr.UnderPct = mathutil.Round(float64(hr.UnderCount)/n*100, 1)
	}
	return hr
}

// Probabilities applies the pseudo-count to each side and renormalises so the
// pair sums to 1, dropping push mass.
func (c Config) Probabilities(hr HitRate) (float64, float64) {
	n := float64(hr.TotalGames)
	over := (float64(hr.OverCount) + c.Smoothing) / (n + 2*c.Smoothing)
	under := (float64(hr.UnderCount) + c.Smoothing) / (n + 2*c.Smoothing)
	return odds.Normalize(over, under)
}

func quoted(price outcome.Of[int]) (int, bool) {
	p, ok := price.Get()
	return p, ok && p != 0
}
