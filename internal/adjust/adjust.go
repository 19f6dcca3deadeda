// Package adjust holds the projection multipliers. Each calculator is a pure
// function over data the caller has already loaded and returns a Factor
// centred at 1.0.
package adjust

import (
	"fmt"
	"strings"
	"time"

	"prop-engine/internal/mathutil"
	"prop-engine/internal/model"
	"prop-engine/internal/outcome"
	"prop-engine/internal/stats"
)

// Factor names, in composition order.
const (
	NameDefense  = "defense_adjustment"
	NameMatchup  = "matchup_adjustment"
	NameHomeAway = "home_away_adjustment"
	NameInjury   = "injury_adjustment"
	NameRest     = "rest_adjustment"
	NamePace     = "pace_adjustment"
)

// Order is the fixed composition order of the multipliers.
var Order = []string{NameDefense, NameMatchup, NameHomeAway, NameInjury, NameRest, NamePace}

// HealthyStatus is the injury status reported when no active injury exists.
const HealthyStatus = "healthy"

// Config holds the tunable constants behind the calculators.
type Config struct {
	DefenseMin      float64            // lower clamp on the defense rating
	DefenseMax      float64            // upper clamp on the defense rating
	DefenseMinGames int                // qualifying games required against the opponent
	LeagueAverages  map[string]float64 // per category name
	SeverityImpact  map[string]float64 // impact percentage by severity when none is reported
	RestMultipliers [4]float64         // 0, 1, 2 and 3+ days of rest
	DefaultRestDays int                // used when no prior game is on record
}

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() Config {
	return Config{
		DefenseMin:      0.85,
		DefenseMax:      1.15,
		DefenseMinGames: 5,
		LeagueAverages: map[string]float64{
			"points":   12.0,
			"rebounds": 5.0,
			"assists":  3.5,
			"pra":      20.5,
			"threes":   1.8,
		},
		SeverityImpact: map[string]float64{
			"out":          100,
			"doubtful":     50,
			"questionable": 25,
			"probable":     10,
		},
		RestMultipliers: [4]float64{0.95, 0.98, 1.0, 1.02},
		DefaultRestDays: 2,
	}
}

// Factor is one named multiplier plus how it was derived.
type Factor struct {
	Name       string  `json:"name"`
	Multiplier float64 `json:"multiplier"`
	SampleSize int     `json:"sample_size"`
	Defaulted  bool    `json:"defaulted"`
	Reason     string  `json:"reason,omitempty"`
}

// Neutral is a 1.0 multiplier applied because its inputs were missing.
func Neutral(name, reason string) Factor {
	return Factor{Name: name, Multiplier: 1.0, Defaulted: true, Reason: reason}
}

// DefenseRating compares what players have produced against the opponent with
// the league average for the category.
//
// opponentGames are the most recent stat lines recorded against the opponent by
// any player. Only strictly positive values qualify; fewer than
// DefenseMinGames qualifying values give a neutral factor. The result is
// clamped to [DefenseMin, DefenseMax].
func (c Config) DefenseRating(opponentGames []model.GameStatRecord, cat stats.Category) Factor {
	league, ok := c.LeagueAverages[cat.String()]
	if !ok || league <= 0 {
		return Neutral(NameDefense, "no league average for "+cat.String())
	}

	var qualifying []float64
	for _, g := range opponentGames {
		if v, ok := stats.Value(g, cat).Get(); ok && v > 0 {
			qualifying = append(qualifying, v)
		}
	}
	if len(qualifying) < c.DefenseMinGames {
		f := Neutral(NameDefense, fmt.Sprintf("%d of %d games against opponent", len(qualifying), c.DefenseMinGames))
		f.SampleSize = len(qualifying)
		return f
	}

	rating := mathutil.Mean(qualifying) / league
	return Factor{
		Name:       NameDefense,
		Multiplier: mathutil.Clamp(rating, c.DefenseMin, c.DefenseMax),
		SampleSize: len(qualifying),
	}
}

// Matchup is the player's weighted average against this opponent over the
// player's overall weighted average. It is not clamped.
func Matchup(overall, vsOpponent outcome.Of[float64], sample int) Factor {
	o, ok := overall.Get()
	if !ok || o == 0 {
		return Neutral(NameMatchup, "no overall average")
	}
	v, ok := vsOpponent.Get()
	if !ok || v == 0 {
		return Neutral(NameMatchup, "no games against opponent")
	}
	return Factor{Name: NameMatchup, Multiplier: v / o, SampleSize: sample}
}

// HomeAway is the venue average over the mean of the home and away averages.
func HomeAway(home, away outcome.Of[float64], isHome bool, sample int) Factor {
	h, hok := home.Get()
	a, aok := away.Get()
	if !hok || !aok || h == 0 || a == 0 {
		return Neutral(NameHomeAway, "missing home or away split")
	}
	combined := (h + a) / 2
	venue := a
	if isHome {
		venue = h
	}
	return Factor{Name: NameHomeAway, Multiplier: venue / combined, SampleSize: sample}
}

// InjuryStatus describes the most recent active injury, if any.
type InjuryStatus struct {
	Status     string  `json:"status"`
	Severity   string  `json:"severity,omitempty"`
	ImpactPct  float64 `json:"impact_pct"`
	InjuryType string  `json:"injury_type,omitempty"`
	Notes      string  `json:"notes,omitempty"`
}

// Injury converts the player's most recent active injury into a multiplier of
// 1 - impact/100 clamped to [0, 1]. A missing impact percentage falls back to
// the severity table. No active injury gives exactly 1.0 and status "healthy".
func (c Config) Injury(latest outcome.Of[model.InjuryRecord]) (Factor, InjuryStatus) {
	rec, ok := latest.Get()
	if !ok || !rec.Active() {
		return Neutral(NameInjury, "no active injury"), InjuryStatus{Status: HealthyStatus}
	}

	severity := strings.ToLower(strings.TrimSpace(rec.Severity))
	impact := 0.0
	if rec.ImpactPercentage != nil {
		impact = *rec.ImpactPercentage
	}
	if impact == 0 {
		impact = c.SeverityImpact[severity]
	}

	status := severity
	if status == "" {
		status = "injured"
	}
	f := Factor{
		Name:       NameInjury,
		Multiplier: mathutil.Clamp(1.0-impact/100.0, 0, 1),
		SampleSize: 1,
	}
	return f, InjuryStatus{
		Status:     status,
		Severity:   severity,
		ImpactPct:  impact,
		InjuryType: rec.InjuryType,
		Notes:      rec.Notes,
	}
}

// RestDays is the calendar-day gap between the previous recorded game and the
// target game. With no previous game the configured default is returned.
func (c Config) RestDays(previous outcome.Of[time.Time], game time.Time) int {
	prev, ok := previous.Get()
	if !ok {
		return c.DefaultRestDays
	}
	days := int(truncateDay(game).Sub(truncateDay(prev)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Rest maps days of rest onto the discrete rest table.
func (c Config) Rest(days int) Factor {
	idx := days
	if idx < 0 {
		idx = 0
	}
	if idx > 3 {
		idx = 3
	}
	return Factor{Name: NameRest, Multiplier: c.RestMultipliers[idx], SampleSize: 1}
}

// Pace is reserved for team pace data and is always neutral.
func Pace() Factor {
	return Neutral(NamePace, "pace model not implemented")
}

// Apply multiplies base by each factor in order and returns the product.
func Apply(base float64, factors ...Factor) float64 {
	for _, f := range factors {
		base *= f.Multiplier
	}
	return base
}
