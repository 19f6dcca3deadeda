package snapshot

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"prop-engine/internal/model"
	"prop-engine/internal/outcome"
	"prop-engine/internal/projection"
	"prop-engine/internal/stats"
	"prop-engine/internal/store"
)

// BuildProjections projects every (player, game, prop type) quoted in the
// window and upserts the results. Keys that cannot be projected are skipped.
// Only an unreachable store returns an error; an empty window is a normal run.
func (b *Builder) BuildProjections(ctx context.Context, opts Options) (report Report, err error) {
	report, log := b.start(JobProjections, opts)
	defer b.finish(&report)

	quotes, players, err := b.recentQuotes(ctx, opts, &report)
	if err != nil {
		return report, err
	}
	if len(quotes) == 0 {
		log.Info("no quotes in window", zap.Int("hours", opts.Hours), zap.String("sport", opts.Sport))
		return report, nil
	}

	games := b.gamesFor(ctx, quotes)
	latest := LatestPerKey(quotes, projectionKey)
	refLines := ReferenceLines(quotes, b.cfg.ReferenceBooks)
	report.Unique = len(latest)

	snaps := make([]model.ProjectionSnapshot, 0, len(latest))
	now := timestamp(b.now())
	for _, key := range sortedProjectionKeys(latest) {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		klog := log.With(zap.String("player_id", key.PlayerID), zap.String("game_id", key.GameID), zap.String("prop_type", key.PropType))

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
		cat, err := stats.ParseCategory(key.PropType)
		if err != nil {
			klog.Warn("skipping prop", zap.Error(err))
			report.Skipped++
			continue
		}

		req := projection.Request{
			PlayerID:  key.PlayerID,
			GameID:    key.GameID,
			Category:  cat,
			Opponent:  outcome.Unavailable[string]("game names no teams"),
			IsHome:    true,
			GameStart: outcome.Unavailable[time.Time]("no start time"),
			BookLine:  b.referenceLine(ctx, klog, key, refLines),
		}
		snap := model.ProjectionSnapshot{
			PlayerID:     key.PlayerID,
			GameID:       key.GameID,
			Sport:        player.Sport,
			PropType:     key.PropType,
			SourcePropID: latest[key].ID,
			SnapshotAt:   now,
		}
		if opp, home, ok := model.ResolveMatchup(player.Team, game); ok {
			req.Opponent, req.IsHome = outcome.Value(opp), home
			snap.Opponent, snap.IsHome = &opp, &home
		}
		if start, ok := game.Start(); ok {
			req.GameStart = outcome.Value(start)
		}

		proj, ok := b.projector.Project(ctx, req).Get()
		if !ok {
			klog.Debug("no projection")
			report.Skipped++
			continue
		}
		factors, err := proj.FactorsJSON()
		if err != nil {
			klog.Warn("skipping prop: encoding factors", zap.Error(err))
			report.Skipped++
			continue
		}

		snap.ProjectedLine = proj.Line
		snap.Confidence = proj.Confidence
		snap.BaselineSource = proj.BaselineSource
		snap.BookLine = proj.BookLine.Ptr()
		snap.FactorsJSON = factors
		snap.SampleSize = proj.SampleSize
		snap.InjuryStatus = proj.Injury.Status
		snap.RestDays = proj.RestDays.Ptr()
		snaps = append(snaps, snap)

		fields := []zap.Field{
			zap.String("player", player.Name),
			zap.Float64("line", proj.Line),
			zap.Float64("confidence", proj.Confidence),
			zap.String("baseline_source", proj.BaselineSource),
		}
		if cmp, ok := projection.CompareToBookLine(proj.Line, proj.BookLine.OrElse(0)).Get(); ok {
			fields = append(fields, zap.String("vs_book", cmp.Assessment), zap.Float64("diff", cmp.Difference))
			if cmp.ValueOpportunity {
				report.ValueOpportunities++
			}
		}
		rowLogger(klog, opts)("projected", fields...)
	}

	if len(snaps) == 0 {
		log.Info("no projections produced")
		return report, nil
	}
	if opts.DryRun {
		log.Info("dry run, not writing", zap.Int("rows", len(snaps)))
		return report, nil
	}

	written, err := b.repo.UpsertProjectionSnapshots(ctx, snaps)
	report.Written = written
	report.Failed = len(snaps) - written
	if err != nil {
		if store.IsUnavailable(err) || ctx.Err() != nil {
			return report, fmt.Errorf("writing projection snapshots: %w", err)
		}
		log.Error("some projection snapshots were not written", zap.Int("failed", report.Failed), zap.Error(err))
	}
	log.Info("projection snapshots written", zap.Int("rows", written), zap.Int("skipped", report.Skipped))
	return report, nil
}

// referenceLine prefers a reference-book quote from the window and falls back
// to the newest stored one.
func (b *Builder) referenceLine(ctx context.Context, log *zap.Logger, key model.ProjectionKey, fromWindow map[model.ProjectionKey]float64) outcome.Of[float64] {
	if line, ok := fromWindow[key]; ok {
		return outcome.Value(line)
	}
	if len(b.cfg.ReferenceBooks) == 0 {
		return outcome.Unavailable[float64]("no reference books")
	}
	line, err := b.repo.ReferenceLine(ctx, key.PlayerID, key.GameID, key.PropType, b.cfg.ReferenceBooks)
	if err != nil {
		log.Warn("reference line lookup failed", zap.Error(err))
	}
	return line
}

// ReferenceLines picks, for each (player, game, prop type), the newest line
// from the highest-priority book in books that quoted it.
func ReferenceLines(quotes []model.PropQuote, books []string) map[model.ProjectionKey]float64 {
	rank := make(map[string]int, len(books))
	for i, book := range books {
		if _, dup := rank[book]; !dup {
			rank[book] = i
		}
	}
	type pick struct {
		rank int
		at   string
		line float64
	}
	best := make(map[model.ProjectionKey]pick)
	for _, q := range quotes {
		r, ok := rank[q.Book]
		k, valid := projectionKey(q)
		if !ok || !valid || q.Line == nil {
			continue
		}
		cur, seen := best[k]
		if !seen || r < cur.rank || (r == cur.rank && q.ObservedAt > cur.at) {
			best[k] = pick{rank: r, at: q.ObservedAt, line: *q.Line}
		}
	}
	out := make(map[model.ProjectionKey]float64, len(best))
	for k, p := range best {
		out[k] = p.line
	}
	return out
}

func rowLogger(log *zap.Logger, opts Options) func(string, ...zap.Field) {
	if opts.Verbose {
		return log.Info
	}
	return log.Debug
}
