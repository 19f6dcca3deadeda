// Package insight gathers the situational context around a prop: teammate
// injuries and how they shift usage, matchup and venue history, whether the
// line looks inflated, and long gaps since the last game.
package insight

import (
	"context"
	"time"

	"go.uber.org/zap"

	"prop-engine/internal/model"
	"prop-engine/internal/outcome"
	"prop-engine/internal/stats"
)

// Source is the data the analyzer reads. Stat lists are ordered newest first;
// a limit of 0 means no limit.
type Source interface {
	Player(ctx context.Context, id string) (outcome.Of[model.Player], error)
	Game(ctx context.Context, id string) (outcome.Of[model.Game], error)
	ActiveInjuries(ctx context.Context, team string) ([]model.PlayerInjury, error)
	Teammates(ctx context.Context, team, excludePlayerID string) ([]model.Player, error)
	StatsSince(ctx context.Context, playerID string, since time.Time) ([]model.GameStatRecord, error)
	RecentStats(ctx context.Context, playerID string, limit int) ([]model.GameStatRecord, error)
	RecentPlayedStats(ctx context.Context, playerID string, limit int) ([]model.GameStatRecord, error)
	StatsAgainst(ctx context.Context, playerID, opponent string, limit int) ([]model.GameStatRecord, error)
	Spreads(ctx context.Context, gameID string, limit int) ([]model.SpreadQuote, error)
}

// Config holds the analyzer's windows and thresholds.
type Config struct {
	SplitLookbackDays   int     // history used for with/without teammate splits
	SplitMinGames       int     // games required in each split bucket
	UsageBaselineGames  int     // played games behind the usage baseline
	UsageImpactPct      float64 // smallest split impact that moves usage
	UsageHighPct        float64 // total impact at which usage confidence is high
	KeyTeammatePct      float64 // smallest split impact for a key teammate
	VenueWindow         int     // played games behind home/away splits
	LineWindow          int     // games behind the line inflation average
	LineInflatedRatio   float64
	LineDiscountedRatio float64
	ReturnGapDays       int // days without a game that flag a return
	MatchupHistoryLimit int // 0 reads every game against the opponent
	KeyCategories       []stats.Category
	BlowoutSpread       float64  // absolute spread that flags a likely blowout
	BlowoutSports       []string // sports the blowout check applies to
	SpreadQuotes        int      // newest spread quotes searched for the player's team
}

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() Config {
	return Config{
		SplitLookbackDays:   180,
		SplitMinGames:       3,
		UsageBaselineGames:  10,
		UsageImpactPct:      5,
		UsageHighPct:        15,
		KeyTeammatePct:      10,
		VenueWindow:         50,
		LineWindow:          20,
		LineInflatedRatio:   1.2,
		LineDiscountedRatio: 0.8,
		ReturnGapDays:       10,
		KeyCategories:       []stats.Category{stats.Points, stats.Assists, stats.Rebounds},
		BlowoutSpread:       15,
		BlowoutSports:       []string{"NBA"},
		SpreadQuotes:        10,
	}
}

// Request identifies the prop to analyse.
type Request struct {
	PlayerID string
	GameID   string
	Category stats.Category
	Line     outcome.Of[float64]
}

// Options switches off the more expensive parts of an analysis.
type Options struct {
	KeyTeammates bool // scan every teammate for large with/without splits
}

// Context is everything the analyzer found. Each field is unavailable on its
// own when its data could not be read.
type Context struct {
	Player           model.Player
	Opponent         outcome.Of[string]
	TeammateInjuries outcome.Of[[]model.PlayerInjury]
	Usage            outcome.Of[UsagePrediction]
	KeyTeammates     outcome.Of[[]TeammateImpact]
	Matchup          outcome.Of[MatchupHistory]
	Splits           outcome.Of[VenueSplits]
	Line             outcome.Of[LineContext]
	RestGap          outcome.Of[RestGap]
	Blowout          outcome.Of[Blowout]
	Summary          string
}

// Analyzer computes Contexts against a Source.
type Analyzer struct {
	src    Source
	cfg    Config
	now    func() time.Time
	logger *zap.Logger
}

// NewAnalyzer creates an Analyzer. A nil clock uses time.Now; a nil logger
// discards output.
func NewAnalyzer(src Source, cfg Config, now func() time.Time, logger *zap.Logger) *Analyzer {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{src: src, cfg: cfg, now: now, logger: logger}
}

// Analyze builds the context for one prop. The result is unavailable only when
// the player cannot be found.
func (a *Analyzer) Analyze(ctx context.Context, req Request, opts Options) outcome.Of[Context] {
	log := a.logger.With(zap.String("player_id", req.PlayerID), zap.String("game_id", req.GameID))

	player, err := a.src.Player(ctx, req.PlayerID)
	if err != nil {
		log.Warn("player lookup failed", zap.Error(err))
		return outcome.Unavailable[Context]("player lookup failed")
	}
	p, ok := player.Get()
	if !ok {
		return outcome.Unavailable[Context]("unknown player")
	}

	c := Context{
		Player:   p,
		Opponent: outcome.Unavailable[string]("game unknown"),
		Blowout:  outcome.Unavailable[Blowout]("game unknown"),
	}
	gameStart := outcome.Unavailable[time.Time]("game unknown")
	if game, err := a.src.Game(ctx, req.GameID); err != nil {
		log.Warn("game lookup failed", zap.Error(err))
	} else if g, ok := game.Get(); ok {
		opp, home, known := model.ResolveMatchup(p.Team, g)
		if known {
			c.Opponent = outcome.Value(opp)
		}
		if start, ok := g.Start(); ok {
			gameStart = outcome.Value(start)
		}
		c.Blowout = a.blowout(ctx, log, g, home)
	}

	splits := newSplitter(a, p.ID)

	c.TeammateInjuries = a.teammateInjuries(ctx, log, p)
	if injured, ok := c.TeammateInjuries.Get(); ok {
		c.Usage = a.usage(ctx, log, splits, req.Category, injured)
	} else {
		c.Usage = outcome.Unavailable[UsagePrediction](c.TeammateInjuries.Reason())
	}

	if opts.KeyTeammates {
		c.KeyTeammates = a.keyTeammates(ctx, log, splits, p)
	} else {
		c.KeyTeammates = outcome.Unavailable[[]TeammateImpact]("not requested")
	}

	if opp, ok := c.Opponent.Get(); ok {
		c.Matchup = a.matchup(ctx, log, p.ID, opp, req.Category)
	} else {
		c.Matchup = outcome.Unavailable[MatchupHistory]("opponent unknown")
	}

	c.Splits = a.venueSplits(ctx, log, p.ID, req.Category)
	c.Line = a.lineContext(ctx, log, p.ID, req.Category, req.Line)
	c.RestGap = a.restGap(ctx, log, p.ID, gameStart)
	c.Summary = summarize(c)
	return outcome.Value(c)
}

func (a *Analyzer) teammateInjuries(ctx context.Context, log *zap.Logger, p model.Player) outcome.Of[[]model.PlayerInjury] {
	if p.Team == "" {
		return outcome.Unavailable[[]model.PlayerInjury]("player has no team")
	}
	injuries, err := a.src.ActiveInjuries(ctx, p.Team)
	if err != nil {
		log.Warn("injury lookup failed", zap.Error(err))
		return outcome.Unavailable[[]model.PlayerInjury]("injury lookup failed")
	}
	teammates := make([]model.PlayerInjury, 0, len(injuries))
	for _, inj := range injuries {
		if inj.Player.ID != p.ID {
			teammates = append(teammates, inj)
		}
	}
	return outcome.Value(teammates)
}
