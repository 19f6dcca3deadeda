package adjust

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"prop-engine/internal/model"
	"prop-engine/internal/outcome"
	"prop-engine/internal/stats"
)

func f(v float64) *float64 { return &v }

func pointsGames(values ...float64) []model.GameStatRecord {
	out := make([]model.GameStatRecord, len(values))
	for i, v := range values {
		out[i] = model.GameStatRecord{Points: f(v)}
	}
	return out
}

func TestDefenseRating(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name     string
		games    []model.GameStatRecord
		cat      stats.Category
		expected float64
		neutral  bool
	}{
		{"Below threshold", pointsGames(30, 30, 30), stats.Points, 1.0, true},
		{"Zeros do not qualify", pointsGames(30, 30, 30, 30, 0, 0), stats.Points, 1.0, true},
		{"Weak defense clamps high", pointsGames(20, 20, 20, 20, 20), stats.Points, 1.15, false},
		{"Strong defense clamps low", pointsGames(6, 6, 6, 6, 6), stats.Points, 0.85, false},
		{"Inside bounds", pointsGames(12, 13, 12, 13, 12), stats.Points, 12.4 / 12.0, false},
		{"No league average", pointsGames(1, 1, 1, 1, 1), stats.Steals, 1.0, true},
		{"Empty sample", nil, stats.Points, 1.0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cfg.DefenseRating(tt.games, tt.cat)
			assert.InDelta(t, tt.expected, got.Multiplier, 1e-9)
			assert.Equal(t, tt.neutral, got.Defaulted)
			assert.GreaterOrEqual(t, got.Multiplier, cfg.DefenseMin)
			assert.LessOrEqual(t, got.Multiplier, cfg.DefenseMax)
		})
	}
}

func TestDefenseRatingComposite(t *testing.T) {
	cfg := DefaultConfig()
	games := make([]model.GameStatRecord, 5)
	for i := range games {
		games[i] = model.GameStatRecord{Points: f(12), Rebounds: f(5), Assists: f(4.5)}
	}
	got := cfg.DefenseRating(games, stats.PointsReboundsAssists)
	assert.InDelta(t, 21.5/20.5, got.Multiplier, 1e-9)
	assert.Equal(t, 5, got.SampleSize)
}

func TestMatchup(t *testing.T) {
	got := Matchup(outcome.Value(20.0), outcome.Value(25.0), 4)
	assert.InDelta(t, 1.25, got.Multiplier, 1e-9)
	assert.False(t, got.Defaulted)

	// Unclamped.
	assert.InDelta(t, 2.0, Matchup(outcome.Value(10.0), outcome.Value(20.0), 2).Multiplier, 1e-9)

	assert.Equal(t, 1.0, Matchup(outcome.Unavailable[float64]("x"), outcome.Value(25.0), 0).Multiplier)
	assert.Equal(t, 1.0, Matchup(outcome.Value(0.0), outcome.Value(25.0), 0).Multiplier)
	assert.Equal(t, 1.0, Matchup(outcome.Value(20.0), outcome.Unavailable[float64]("x"), 0).Multiplier)
}

func TestHomeAway(t *testing.T) {
	home := HomeAway(outcome.Value(22.0), outcome.Value(18.0), true, 30)
	away := HomeAway(outcome.Value(22.0), outcome.Value(18.0), false, 30)
	assert.InDelta(t, 1.1, home.Multiplier, 1e-9)
	assert.InDelta(t, 0.9, away.Multiplier, 1e-9)

	missing := HomeAway(outcome.Value(22.0), outcome.Unavailable[float64]("no away games"), true, 15)
	assert.Equal(t, 1.0, missing.Multiplier)
	assert.True(t, missing.Defaulted)
}

func TestInjury(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name     string
		record   outcome.Of[model.InjuryRecord]
		expected float64
		status   string
	}{
		{"No record", outcome.Unavailable[model.InjuryRecord]("none"), 1.0, "healthy"},
		{"Resolved record", outcome.Value(model.InjuryRecord{Status: "resolved", Severity: "out"}), 1.0, "healthy"},
		{"Out by severity", outcome.Value(model.InjuryRecord{Status: "active", Severity: "Out"}), 0.0, "out"},
		{"Questionable by severity", outcome.Value(model.InjuryRecord{Status: "active", Severity: "questionable"}), 0.75, "questionable"},
		{"Explicit impact wins", outcome.Value(model.InjuryRecord{Status: "active", Severity: "out", ImpactPercentage: f(20)}), 0.8, "out"},
		{"Impact above 100 clamps", outcome.Value(model.InjuryRecord{Status: "active", ImpactPercentage: f(140)}), 0.0, "injured"},
		{"Unknown severity", outcome.Value(model.InjuryRecord{Status: "active", Severity: "day-to-day"}), 1.0, "day-to-day"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, status := cfg.Injury(tt.record)
			assert.InDelta(t, tt.expected, got.Multiplier, 1e-9)
			assert.Equal(t, tt.status, status.Status)
			assert.GreaterOrEqual(t, got.Multiplier, 0.0)
			assert.LessOrEqual(t, got.Multiplier, 1.0)
		})
	}
}

func TestNoInjuryIsExactlyOne(t *testing.T) {
	got, status := DefaultConfig().Injury(outcome.Unavailable[model.InjuryRecord]("none"))
	assert.Equal(t, 1.0, got.Multiplier)
	assert.Equal(t, HealthyStatus, status.Status)
}

func TestRest(t *testing.T) {
	cfg := DefaultConfig()
	game := time.Date(2026, 1, 10, 19, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		previous outcome.Of[time.Time]
		days     int
		expected float64
	}{
		{"Back to back", outcome.Value(time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)), 0, 0.95},
		{"One day", outcome.Value(time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC)), 1, 0.98},
		{"Two days", outcome.Value(time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC)), 2, 1.0},
		{"Long rest", outcome.Value(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)), 9, 1.02},
		{"No prior game", outcome.Unavailable[time.Time]("none"), 2, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			days := cfg.RestDays(tt.previous, game)
			assert.Equal(t, tt.days, days)
			assert.Equal(t, tt.expected, cfg.Rest(days).Multiplier)
		})
	}
}

func TestApplyAndPace(t *testing.T) {
	assert.Equal(t, 1.0, Pace().Multiplier)
	got := Apply(20, Factor{Multiplier: 1.1}, Factor{Multiplier: 0.5}, Pace())
	assert.InDelta(t, 11.0, got, 1e-9)
}
