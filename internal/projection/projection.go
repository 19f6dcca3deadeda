// Package projection builds a custom projected line for a player prop from a
// baseline and the adjust multipliers.
package projection

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"prop-engine/internal/adjust"
	"prop-engine/internal/mathutil"
	"prop-engine/internal/model"
	"prop-engine/internal/outcome"
	"prop-engine/internal/stats"
)

// History is the stat and injury data a projection reads. Every list is
// ordered newest first.
type History interface {
	RecentStats(ctx context.Context, playerID string, limit int) ([]model.GameStatRecord, error)
	StatsAgainst(ctx context.Context, playerID, opponent string, limit int) ([]model.GameStatRecord, error)
	StatsAtVenue(ctx context.Context, playerID string, home bool, limit int) ([]model.GameStatRecord, error)
	OpponentGames(ctx context.Context, opponent string, limit int) ([]model.GameStatRecord, error)
	LatestInjury(ctx context.Context, playerID string) (outcome.Of[model.InjuryRecord], error)
	PreviousGameDate(ctx context.Context, playerID string, before time.Time) (outcome.Of[time.Time], error)
}

// Config holds projection windows and weights.
type Config struct {
	Adjust               adjust.Config
	SampleWindow         int     // games behind the player-average baseline
	BaselineRecency      float64 // recency weight for the baseline average
	MatchupRecency       float64 // recency weight for matchup and venue averages
	OverallWindow        int     // overall games for the matchup comparison
	OpponentWindow       int     // games against the opponent
	VenueWindow          int     // games per venue
	DefenseWindow        int     // games against the opponent across all players
	ConfidenceFullSample int     // sample size at which confidence stops growing
	VarianceWindow       int     // most recent games used for the variance penalty
}

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() Config {
	return Config{
		Adjust:               adjust.DefaultConfig(),
		SampleWindow:         15,
		BaselineRecency:      0.15,
		MatchupRecency:       0.1,
		OverallWindow:        20,
		OpponentWindow:       10,
		VenueWindow:          15,
		DefenseWindow:        100,
		ConfidenceFullSample: 15,
		VarianceWindow:       10,
	}
}

// Request identifies the prop being projected.
type Request struct {
	PlayerID     string
	GameID       string
	Category     stats.Category
	Opponent     outcome.Of[string]
	IsHome       bool
	GameStart    outcome.Of[time.Time]
	BookLine     outcome.Of[float64]
	SampleWindow int // zero uses Config.SampleWindow
}

// Projection is the adjusted line with everything needed to audit it.
type Projection struct {
	Line           float64
	Confidence     float64
	Baseline       float64
	BaselineSource string
	PlayerAverage  outcome.Of[float64]
	BookLine       outcome.Of[float64]
	Factors        []adjust.Factor
	SampleSize     int
	Injury         adjust.InjuryStatus
	RestDays       outcome.Of[int]
}

// Builder computes projections against a History.
type Builder struct {
	history History
	cfg     Config
	logger  *zap.Logger
}

// NewBuilder creates a Builder. A nil logger discards output.
func NewBuilder(history History, cfg Config, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{history: history, cfg: cfg, logger: logger}
}

// Project builds the projection for one prop.
//
// The baseline is the book line when supplied, else the player's weighted
// average over the sample window. With neither the result is unavailable.
// Lookups that fail degrade to neutral factors; Project never returns an error.
func (b *Builder) Project(ctx context.Context, req Request) outcome.Of[Projection] {
	window := req.SampleWindow
	if window <= 0 {
		window = b.cfg.SampleWindow
	}
	log := b.logger.With(
		zap.String("player_id", req.PlayerID),
		zap.String("game_id", req.GameID),
		zap.Stringer("prop_type", req.Category),
	)

	recent, err := b.history.RecentStats(ctx, req.PlayerID, window)
	if err != nil {
		log.Warn("recent stats unavailable", zap.Error(err))
		recent = nil
	}
	playerAvg := stats.WeightedAverageOf(recent, req.Category, b.cfg.BaselineRecency)

	p := Projection{
		PlayerAverage: playerAvg,
		BookLine:      req.BookLine,
		SampleSize:    len(recent),
		RestDays:      outcome.Unavailable[int]("game start unknown"),
	}
	if line, ok := req.BookLine.Get(); ok {
		p.Baseline, p.BaselineSource = line, model.BaselineBookLine
	} else if avg, ok := playerAvg.Get(); ok {
		p.Baseline, p.BaselineSource = avg, model.BaselinePlayerAverage
	} else {
		return outcome.Unavailable[Projection]("no book line and no player average")
	}

	opponent, hasOpponent := req.Opponent.Get()
	hasOpponent = hasOpponent && opponent != ""

	if hasOpponent {
		p.Factors = append(p.Factors, b.defense(ctx, log, opponent, req.Category))
		p.Factors = append(p.Factors, b.matchup(ctx, log, req, opponent))
	} else {
		p.Factors = append(p.Factors,
			adjust.Neutral(adjust.NameDefense, "opponent unknown"),
			adjust.Neutral(adjust.NameMatchup, "opponent unknown"))
	}
	p.Factors = append(p.Factors, b.homeAway(ctx, log, req))

	injury, err := b.history.LatestInjury(ctx, req.PlayerID)
	if err != nil {
		log.Warn("injury lookup failed", zap.Error(err))
		injury = outcome.Unavailable[model.InjuryRecord]("lookup failed")
	}
	injuryFactor, injuryStatus := b.cfg.Adjust.Injury(injury)
	p.Factors = append(p.Factors, injuryFactor)
	p.Injury = injuryStatus

	p.Factors = append(p.Factors, b.rest(ctx, log, req, &p))
	p.Factors = append(p.Factors, adjust.Pace())

	p.Line = mathutil.Round(adjust.Apply(p.Baseline, p.Factors...), 1)
	p.Confidence = b.confidence(recent, req.Category)
	return outcome.Value(p)
}

func (b *Builder) defense(ctx context.Context, log *zap.Logger, opponent string, cat stats.Category) adjust.Factor {
	games, err := b.history.OpponentGames(ctx, opponent, b.cfg.DefenseWindow)
	if err != nil {
		log.Warn("opponent games unavailable", zap.String("opponent", opponent), zap.Error(err))
		return adjust.Neutral(adjust.NameDefense, "lookup failed")
	}
	return b.cfg.Adjust.DefenseRating(games, cat)
}

func (b *Builder) matchup(ctx context.Context, log *zap.Logger, req Request, opponent string) adjust.Factor {
	overall, err := b.history.RecentStats(ctx, req.PlayerID, b.cfg.OverallWindow)
	if err != nil {
		log.Warn("overall stats unavailable", zap.Error(err))
		return adjust.Neutral(adjust.NameMatchup, "lookup failed")
	}
	against, err := b.history.StatsAgainst(ctx, req.PlayerID, opponent, b.cfg.OpponentWindow)
	if err != nil {
		log.Warn("matchup stats unavailable", zap.String("opponent", opponent), zap.Error(err))
		return adjust.Neutral(adjust.NameMatchup, "lookup failed")
	}
	return adjust.Matchup(
		stats.WeightedAverageOf(overall, req.Category, b.cfg.MatchupRecency),
		stats.WeightedAverageOf(against, req.Category, b.cfg.MatchupRecency),
		len(against),
	)
}

func (b *Builder) homeAway(ctx context.Context, log *zap.Logger, req Request) adjust.Factor {
	home, err := b.history.StatsAtVenue(ctx, req.PlayerID, true, b.cfg.VenueWindow)
	if err != nil {
		log.Warn("home split unavailable", zap.Error(err))
		return adjust.Neutral(adjust.NameHomeAway, "lookup failed")
	}
	away, err := b.history.StatsAtVenue(ctx, req.PlayerID, false, b.cfg.VenueWindow)
	if err != nil {
		log.Warn("away split unavailable", zap.Error(err))
		return adjust.Neutral(adjust.NameHomeAway, "lookup failed")
	}
	return adjust.HomeAway(
		stats.WeightedAverageOf(home, req.Category, b.cfg.MatchupRecency),
		stats.WeightedAverageOf(away, req.Category, b.cfg.MatchupRecency),
		req.IsHome,
		len(home)+len(away),
	)
}

func (b *Builder) rest(ctx context.Context, log *zap.Logger, req Request, p *Projection) adjust.Factor {
	start, ok := req.GameStart.Get()
	if !ok {
		return adjust.Neutral(adjust.NameRest, "game start unknown")
	}
	previous, err := b.history.PreviousGameDate(ctx, req.PlayerID, start)
	if err != nil {
		log.Warn("previous game lookup failed", zap.Error(err))
		return adjust.Neutral(adjust.NameRest, "lookup failed")
	}
	days := b.cfg.Adjust.RestDays(previous, start)
	p.RestDays = outcome.Value(days)
	return b.cfg.Adjust.Rest(days)
}

// confidence is min(1, n/full) scaled by max(0.5, 1 - cv/2) over the most
// recent games once the sample reaches five.
func (b *Builder) confidence(recent []model.GameStatRecord, cat stats.Category) float64 {
	n := len(recent)
	conf := mathutil.Clamp(float64(n)/float64(b.cfg.ConfidenceFullSample), 0, 1)
	if n >= 5 {
		window := recent
		if len(window) > b.cfg.VarianceWindow {
			window = window[:b.cfg.VarianceWindow]
		}
		values := stats.Values(window, cat)
		if len(values) >= 3 {
			if cv, ok := mathutil.CoefficientOfVariation(values); ok {
				if penalty := 1.0 - 0.5*cv; penalty > 0.5 {
					conf *= penalty
				} else {
					conf *= 0.5
				}
			}
		}
	}
	return mathutil.Round(conf, 2)
}

// Factor returns the named factor, or a neutral one if absent.
func (p Projection) Factor(name string) adjust.Factor {
	for _, f := range p.Factors {
		if f.Name == name {
			return f
		}
	}
	return adjust.Neutral(name, "not applied")
}

// FactorsJSON renders the factor breakdown stored with a snapshot.
func (p Projection) FactorsJSON() (string, error) {
	breakdown := map[string]any{
		"baseline":        p.Baseline,
		"baseline_source": p.BaselineSource,
		"player_avg":      p.PlayerAverage.Ptr(),
		"details":         p.Factors,
	}
	for _, f := range p.Factors {
		breakdown[f.Name] = f.Multiplier
	}
	if days, ok := p.RestDays.Get(); ok {
		breakdown["rest_days"] = days
	}
	raw, err := json.Marshal(breakdown)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
