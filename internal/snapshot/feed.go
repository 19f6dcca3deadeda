package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"go.uber.org/zap"

	"prop-engine/internal/edge"
	"prop-engine/internal/insight"
	"prop-engine/internal/mathutil"
	"prop-engine/internal/model"
	"prop-engine/internal/outcome"
	"prop-engine/internal/projection"
	"prop-engine/internal/stats"
	"prop-engine/internal/store"
)

// MatchupStats is a player's record against the opponent within the recent games.
type MatchupStats struct {
	AvgVsOpponent float64 `json:"avg_vs_opponent"`
	Games         int     `json:"games"`
}

type projectionMeta struct {
	InjuryStatus   string                 `json:"injury_status"`
	RestDays       *int                   `json:"rest_days"`
	Factors        json.RawMessage        `json:"factors"`
	BookComparison *projection.Comparison `json:"book_comparison"` // projection against this row's line
}

type feedMetadata struct {
	Edge           *edge.Result             `json:"edge"`
	HitRate        *edge.HitRate            `json:"hit_rate"`
	Sparkline      []float64                `json:"sparkline_values"`
	Matchup        *MatchupStats            `json:"matchup_stats"`
	PlayerPosition string                   `json:"player_position"`
	Projection     *projectionMeta          `json:"projection_snapshot"`
	KeyTeammates   []insight.TeammateImpact `json:"key_teammates,omitempty"`
	Blowout        *insight.Blowout         `json:"blowout,omitempty"`
}

// BuildFeed assembles one feed row per (player, game, prop type, line, book)
// quoted in the window. Projection fields come from stored projection
// snapshots; edge and hit rate are recomputed from the player's recent games.
func (b *Builder) BuildFeed(ctx context.Context, opts Options) (report Report, err error) {
	report, log := b.start(JobFeed, opts)
	defer b.finish(&report)

	quotes, players, err := b.recentQuotes(ctx, opts, &report)
	if err != nil {
		return report, err
	}
	if len(quotes) == 0 {
		log.Info("no quotes in window", zap.Int("hours", opts.Hours), zap.String("sport", opts.Sport))
		return report, nil
	}

	latest := LatestPerKey(quotes, feedKey)
	report.Unique = len(latest)
	deduped := make([]model.PropQuote, 0, len(latest))
	for _, q := range latest {
		deduped = append(deduped, q)
	}

	var playerIDs, gameIDs, propTypes []string
	for _, q := range deduped {
		playerIDs = append(playerIDs, q.PlayerID)
		gameIDs = append(gameIDs, q.GameID)
		propTypes = append(propTypes, q.PropType)
	}
	games := b.gamesFor(ctx, deduped)
	recent := b.repo.RecentStatsByPlayer(ctx, playerIDs, b.cfg.StatsPerPlayer)
	projections := b.repo.ProjectionSnapshots(ctx, playerIDs, gameIDs, propTypes)

	rows := make([]model.PropFeedSnapshot, 0, len(latest))
	now := timestamp(b.now())
	for _, key := range sortedFeedKeys(latest) {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		q := latest[key]
		klog := log.With(zap.String("player_id", key.PlayerID), zap.String("game_id", key.GameID),
			zap.String("prop_type", key.PropType), zap.Float64("line", key.Line), zap.String("book", key.Book))

		player, ok := players[key.PlayerID]
		if !ok {
			klog.Warn("skipping prop: unknown player")
			report.Skipped++
			continue
		}
		game, ok := games[key.GameID]
		if !ok {
			klog.Warn("skipping prop: unknown game")
			report.Skipped++
			continue
		}

		row := model.PropFeedSnapshot{
			PropID:              q.ID,
			PlayerID:            key.PlayerID,
			GameID:              key.GameID,
			Sport:               player.Sport,
			PlayerName:          player.Name,
			Team:                player.Team,
			PropType:            key.PropType,
			Line:                key.Line,
			OverPrice:           q.OverPrice,
			UnderPrice:          q.UnderPrice,
			Book:                key.Book,
			SourceQuoteObserved: q.ObservedAt,
			SnapshotAt:          now,
		}
		opponent := ""
		if opp, home, ok := model.ResolveMatchup(player.Team, game); ok {
			opponent = opp
			row.Opponent, row.IsHome = &opp, &home
		}

		meta := feedMetadata{PlayerPosition: player.Position, Sparkline: []float64{}}
		history := recent[key.PlayerID]
		cat, catErr := stats.ParseCategory(key.PropType)
		if catErr != nil {
			klog.Debug("no stat mapping for prop type", zap.Error(catErr))
		} else {
			values := stats.Values(history, cat)
			res, hr := b.cfg.Edge.Calculate(outcome.Value(key.Line), values,
				outcome.FromPtr(q.OverPrice, "no over price"), outcome.FromPtr(q.UnderPrice, "no under price"))
			if e, ok := res.Get(); ok {
				meta.Edge = &e
				side := e.Side
				row.Edge, row.EdgeSide, row.EdgeProb, row.EVOdds = &e.EV, &side, &e.TrueProb, &e.Odds
			}
			if h, ok := hr.Get(); ok {
				meta.HitRate = &h
				row.HitRateOverPct, row.HitRateUnderPct, row.HitRateGames = &h.OverPct, &h.UnderPct, &h.TotalGames
			}
			meta.Sparkline = Sparkline(history, cat, b.cfg.SparklineGames)
			meta.Matchup = Matchup(history, opponent, cat).Ptr()

			if b.cfg.FeedContext {
				analysis := b.analyzer.Analyze(ctx, insight.Request{
					PlayerID: key.PlayerID,
					GameID:   key.GameID,
					Category: cat,
					Line:     outcome.Value(key.Line),
				}, insight.Options{KeyTeammates: b.cfg.KeyTeammates})
				if c, ok := analysis.Get(); ok {
					row.ContextSummary = &c.Summary
					meta.KeyTeammates = c.KeyTeammates.OrElse(nil)
					meta.Blowout = c.Blowout.Ptr()
				}
			}
		}

		if p, ok := projections[model.ProjectionKey{PlayerID: key.PlayerID, GameID: key.GameID, PropType: key.PropType}]; ok {
			line, conf, baseline := p.ProjectedLine, p.Confidence, p.BaselineSource
			row.ProjectionLine, row.ProjectionConfidence, row.ProjectionBaseline = &line, &conf, &baseline
			row.ProjectionBookLine = p.BookLine
			pm := &projectionMeta{
				InjuryStatus:   p.InjuryStatus,
				RestDays:       p.RestDays,
				BookComparison: projection.CompareToBookLine(p.ProjectedLine, key.Line).Ptr(),
			}
			if json.Valid([]byte(p.FactorsJSON)) {
				pm.Factors = json.RawMessage(p.FactorsJSON)
			}
			meta.Projection = pm
		}

		row.DFSLine = b.dfsLine(ctx, klog, key).Ptr()

		raw, err := json.Marshal(meta)
		if err != nil {
			klog.Warn("skipping prop: encoding metadata", zap.Error(err))
			report.Skipped++
			continue
		}
		row.MetadataJSON = string(raw)
		rows = append(rows, row)

		rowLogger(klog, opts)("feed row",
			zap.String("player", player.Name),
			zap.Stringer("projection", outcome.FromPtr(row.ProjectionLine, "")),
			zap.Stringer("edge", outcome.FromPtr(row.Edge, "")),
		)
	}

	if len(rows) == 0 {
		log.Info("no feed rows produced")
		return report, nil
	}
	if opts.DryRun {
		log.Info("dry run, not writing", zap.Int("rows", len(rows)))
		return report, nil
	}

	written, err := b.repo.UpsertFeedSnapshots(ctx, rows)
	report.Written = written
	report.Failed = len(rows) - written
	if err != nil {
		if store.IsUnavailable(err) || ctx.Err() != nil {
			return report, fmt.Errorf("writing feed snapshots: %w", err)
		}
		log.Error("some feed snapshots were not written", zap.Int("failed", report.Failed), zap.Error(err))
	}
	log.Info("feed snapshots written", zap.Int("rows", written), zap.Int("skipped", report.Skipped))
	return report, nil
}

// dfsLine prefers a scraped line and otherwise estimates one from the book line.
func (b *Builder) dfsLine(ctx context.Context, log *zap.Logger, key model.FeedKey) outcome.Of[float64] {
	if len(b.cfg.DFSSources) > 0 {
		line, err := b.repo.DFSLine(ctx, key.PlayerID, key.GameID, key.PropType, b.cfg.DFSSources)
		if err != nil {
			log.Warn("dfs line lookup failed", zap.Error(err))
		}
		if line.OK() {
			return line
		}
	}
	return outcome.Value(EstimateDFSLine(key.Line, key.PropType))
}

var dfsLineOffsets = map[string]float64{
	"points":   1.5,
	"rebounds": 1.0,
	"assists":  1.0,
	"pra":      2.5,
	"threes":   0.5,
}

// EstimateDFSLine shifts a sportsbook line to where daily-fantasy apps usually
// hang it, on the half-point grid those apps use.
func EstimateDFSLine(bookLine float64, propType string) float64 {
	offset, ok := dfsLineOffsets[propType]
	if !ok {
		offset = 1.0
	}
	return math.RoundToEven((bookLine+offset)*2) / 2
}

// Sparkline returns the category's values over the newest n games, oldest first.
func Sparkline(history []model.GameStatRecord, cat stats.Category, n int) []float64 {
	if n > 0 && len(history) > n {
		history = history[:n]
	}
	out := make([]float64, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		if v, ok := stats.Value(history[i], cat).Get(); ok {
			out = append(out, v)
		}
	}
	return out
}

// Matchup averages the category over games in history against opponent.
func Matchup(history []model.GameStatRecord, opponent string, cat stats.Category) outcome.Of[MatchupStats] {
	if opponent == "" {
		return outcome.Unavailable[MatchupStats]("opponent unknown")
	}
	var values []float64
	for _, r := range history {
		if !model.SameTeam(r.Opponent, opponent) {
			continue
		}
		if v, ok := stats.Value(r, cat).Get(); ok {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return outcome.Unavailable[MatchupStats]("no games against opponent")
	}
	return outcome.Value(MatchupStats{AvgVsOpponent: mathutil.Mean(values), Games: len(values)})
}
