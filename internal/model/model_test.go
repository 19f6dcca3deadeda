package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMatchesSport(t *testing.T) {
	assert.True(t, MatchesSport("", "NBA"))
	assert.True(t, MatchesSport("NBA", "NBA"))
	assert.False(t, MatchesSport("NBA", "NFL"))
	assert.True(t, MatchesSport("Esports", "CS2"))
	assert.True(t, MatchesSport("Esports", "Valorant"))
	assert.False(t, MatchesSport("Esports", "NBA"))
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2026-01-05T23:00:00Z", time.Date(2026, 1, 5, 23, 0, 0, 0, time.UTC), true},
		{"2026-01-05T23:00:00.000Z", time.Date(2026, 1, 5, 23, 0, 0, 0, time.UTC), true},
		{"2026-01-05", time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"yesterday", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "got %v", got)
			}
		})
	}
}

func TestPlayedAndActive(t *testing.T) {
	zero := 0.0
	assert.False(t, GameStatRecord{MinutesPlayed: &zero}.Played())
	assert.True(t, GameStatRecord{}.Played())

	assert.True(t, InjuryRecord{Status: "Active"}.Active())
	assert.False(t, InjuryRecord{Status: "resolved"}.Active())
}

func TestResolveMatchup(t *testing.T) {
	g := Game{HomeTeam: "Boston Celtics", AwayTeam: "Miami Heat"}

	tests := []struct {
		name     string
		team     string
		game     Game
		opponent string
		home     bool
		ok       bool
	}{
		{"Home side", "Boston Celtics", g, "Miami Heat", true, true},
		{"Away side ignores case", " miami heat", g, "Boston Celtics", false, true},
		{"Unknown team falls back to away opponent", "Lakers", g, "Miami Heat", true, true},
		{"Empty team falls back", "", g, "Miami Heat", true, true},
		{"Only home team known", "Lakers", Game{HomeTeam: "Boston Celtics"}, "Boston Celtics", false, true},
		{"No teams", "Lakers", Game{}, "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opp, home, ok := ResolveMatchup(tt.team, tt.game)
			assert.Equal(t, tt.opponent, opp)
			assert.Equal(t, tt.home, home)
			assert.Equal(t, tt.ok, ok)
		})
	}
}
