package projection

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prop-engine/internal/adjust"
	"prop-engine/internal/model"
	"prop-engine/internal/outcome"
	"prop-engine/internal/stats"
)

func f(v float64) *float64 { return &v }

// fakeHistory serves a single player's log, newest first.
type fakeHistory struct {
	games     []model.GameStatRecord
	opponent  []model.GameStatRecord
	injury    outcome.Of[model.InjuryRecord] // zero value is "no injury"
	failStats bool
}

func take(records []model.GameStatRecord, limit int) []model.GameStatRecord {
	if len(records) > limit {
		return records[:limit]
	}
	return records
}

func (h *fakeHistory) RecentStats(_ context.Context, _ string, limit int) ([]model.GameStatRecord, error) {
	if h.failStats {
		return nil, errors.New("connection reset")
	}
	return take(h.games, limit), nil
}

func (h *fakeHistory) StatsAgainst(_ context.Context, _, opponent string, limit int) ([]model.GameStatRecord, error) {
	var out []model.GameStatRecord
	for _, g := range h.games {
		if g.Opponent == opponent {
			out = append(out, g)
		}
	}
	return take(out, limit), nil
}

func (h *fakeHistory) StatsAtVenue(_ context.Context, _ string, home bool, limit int) ([]model.GameStatRecord, error) {
	var out []model.GameStatRecord
	for _, g := range h.games {
		if g.Home == home {
			out = append(out, g)
		}
	}
	return take(out, limit), nil
}

func (h *fakeHistory) OpponentGames(_ context.Context, _ string, limit int) ([]model.GameStatRecord, error) {
	return take(h.opponent, limit), nil
}

func (h *fakeHistory) LatestInjury(context.Context, string) (outcome.Of[model.InjuryRecord], error) {
	return h.injury, nil
}

func (h *fakeHistory) PreviousGameDate(_ context.Context, _ string, before time.Time) (outcome.Of[time.Time], error) {
	cutoff := before.Format("2006-01-02")
	for _, g := range h.games {
		if g.Date < cutoff {
			d, _ := g.Day()
			return outcome.Value(d), nil
		}
	}
	return outcome.Unavailable[time.Time]("no previous game"), nil
}

func steadyLog(n int, points float64) []model.GameStatRecord {
	start := time.Date(2026, 1, 30, 0, 0, 0, 0, time.UTC)
	out := make([]model.GameStatRecord, n)
	for i := range out {
		out[i] = model.GameStatRecord{
			Date:     start.AddDate(0, 0, -2*i).Format("2006-01-02"),
			Opponent: "BOS",
			Home:     i%2 == 0,
			Points:   f(points),
		}
	}
	return out
}

func TestProjectBookLineBaselineHealthy(t *testing.T) {
	h := &fakeHistory{games: steadyLog(15, 20)}
	b := NewBuilder(h, DefaultConfig(), nil)

	got, ok := b.Project(context.Background(), Request{
		PlayerID: "p1",
		GameID:   "g1",
		Category: stats.Points,
		BookLine: outcome.Value(24.5),
	}).Get()
	require.True(t, ok)

	assert.Equal(t, model.BaselineBookLine, got.BaselineSource)
	assert.Equal(t, 24.5, got.Line, "every factor is neutral with a flat log and no opponent")
	assert.Equal(t, adjust.HealthyStatus, got.Injury.Status)
	assert.Equal(t, 1.0, got.Factor(adjust.NameInjury).Multiplier)
	assert.Equal(t, 1.0, got.Confidence, "15 identical games")
	assert.Len(t, got.Factors, len(adjust.Order))
	for i, name := range adjust.Order {
		assert.Equal(t, name, got.Factors[i].Name)
	}
}

func TestProjectPlayerAverageBaseline(t *testing.T) {
	h := &fakeHistory{games: steadyLog(6, 18)}
	got, ok := NewBuilder(h, DefaultConfig(), nil).Project(context.Background(), Request{
		PlayerID: "p1",
		Category: stats.Points,
	}).Get()
	require.True(t, ok)

	assert.Equal(t, model.BaselinePlayerAverage, got.BaselineSource)
	assert.InDelta(t, 18.0, got.Baseline, 1e-9)
	assert.Equal(t, 6, got.SampleSize)
	assert.Equal(t, 0.4, got.Confidence)
	assert.False(t, got.BookLine.OK())
}

func TestProjectUnavailableWithoutBaseline(t *testing.T) {
	h := &fakeHistory{}
	res := NewBuilder(h, DefaultConfig(), nil).Project(context.Background(), Request{PlayerID: "p1", Category: stats.Points})
	assert.False(t, res.OK())

	// A failing stats lookup degrades to "no data" instead of an error.
	h = &fakeHistory{failStats: true}
	res = NewBuilder(h, DefaultConfig(), nil).Project(context.Background(), Request{PlayerID: "p1", Category: stats.Points})
	assert.False(t, res.OK())
}

func TestProjectDefenseNeedsFiveGames(t *testing.T) {
	h := &fakeHistory{
		games:    steadyLog(10, 20),
		opponent: []model.GameStatRecord{{Points: f(40)}, {Points: f(40)}, {Points: f(40)}},
	}
	got, ok := NewBuilder(h, DefaultConfig(), nil).Project(context.Background(), Request{
		PlayerID: "p1",
		Category: stats.Points,
		Opponent: outcome.Value("BOS"),
		BookLine: outcome.Value(20.0),
	}).Get()
	require.True(t, ok)

	def := got.Factor(adjust.NameDefense)
	assert.Equal(t, 1.0, def.Multiplier)
	assert.True(t, def.Defaulted)
	assert.Equal(t, 3, def.SampleSize)
}

func TestProjectAppliesAdjustments(t *testing.T) {
	opp := make([]model.GameStatRecord, 6)
	for i := range opp {
		opp[i] = model.GameStatRecord{Points: f(13.2)}
	}
	h := &fakeHistory{
		games:    steadyLog(15, 20),
		opponent: opp,
		injury:   outcome.Value(model.InjuryRecord{Status: "active", Severity: "questionable"}),
	}
	start := time.Date(2026, 1, 31, 19, 0, 0, 0, time.UTC)
	got, ok := NewBuilder(h, DefaultConfig(), nil).Project(context.Background(), Request{
		PlayerID:  "p1",
		GameID:    "g1",
		Category:  stats.Points,
		Opponent:  outcome.Value("BOS"),
		IsHome:    true,
		GameStart: outcome.Value(start),
		BookLine:  outcome.Value(20.0),
	}).Get()
	require.True(t, ok)

	// 20 * 1.1 (defense) * 1 * 1 * 0.75 (questionable) * 0.98 (one day rest) * 1
	assert.InDelta(t, 1.1, got.Factor(adjust.NameDefense).Multiplier, 1e-9)
	assert.Equal(t, 0.98, got.Factor(adjust.NameRest).Multiplier)
	assert.Equal(t, 1, got.RestDays.OrElse(-1))
	assert.Equal(t, "questionable", got.Injury.Status)
	assert.Equal(t, 16.2, got.Line)
}

func TestConfidenceVariancePenalty(t *testing.T) {
	games := steadyLog(10, 0)
	for i := range games {
		v := 10.0
		if i%2 == 0 {
			v = 30.0
		}
		games[i].Points = f(v)
	}
	b := NewBuilder(&fakeHistory{games: games}, DefaultConfig(), nil)
	// mean 20, stddev 10, cv 0.5: 10/15 * 0.75 = 0.5
	assert.Equal(t, 0.5, b.confidence(games, stats.Points))

	// Below five games there is no variance penalty.
	assert.Equal(t, 0.27, b.confidence(games[:4], stats.Points))
}

func TestFactorsJSON(t *testing.T) {
	p := Projection{
		Baseline:       22.5,
		BaselineSource: model.BaselineBookLine,
		PlayerAverage:  outcome.Unavailable[float64]("none"),
		Factors:        []adjust.Factor{{Name: adjust.NameRest, Multiplier: 0.95}},
		RestDays:       outcome.Value(0),
	}
	raw, err := p.FactorsJSON()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	assert.Equal(t, 0.95, decoded[adjust.NameRest])
	assert.Equal(t, 0.0, decoded["rest_days"])
	assert.Nil(t, decoded["player_avg"])
}

func TestCompareToBookLine(t *testing.T) {
	tests := []struct {
		projected, book float64
		assessment      string
		opportunity     bool
	}{
		{24.8, 24.5, Aligned, false},
		{26.0, 24.5, Higher, true},
		{23.5, 24.5, Lower, false},
	}
	for _, tt := range tests {
		c, ok := CompareToBookLine(tt.projected, tt.book).Get()
		require.True(t, ok)
		assert.Equal(t, tt.assessment, c.Assessment)
		assert.Equal(t, tt.opportunity, c.ValueOpportunity)
	}

	c := CompareToBookLine(26.0, 24.5).OrElse(Comparison{})
	assert.Equal(t, 1.5, c.Difference)
	assert.Equal(t, 6.1, c.PercentDifference)

	assert.False(t, CompareToBookLine(0, 24.5).OK())
}
