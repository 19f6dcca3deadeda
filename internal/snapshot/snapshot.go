// Package snapshot holds the two batch jobs that turn recent prop quotes into
// the projection and prop feed snapshot tables.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"prop-engine/internal/edge"
	"prop-engine/internal/insight"
	"prop-engine/internal/model"
	"prop-engine/internal/projection"
	"prop-engine/internal/repo"
)

// ErrSourceUnavailable marks a run that could not read its input at all.
var ErrSourceUnavailable = errors.New("snapshot source unavailable")

// Job names.
const (
	JobProjections = "projections"
	JobFeed        = "feed"
)

// Options are the per-run inputs.
type Options struct {
	RunID   string // generated when empty
	Sport   string // empty for all sports; "Esports" covers every esports title
	Hours   int
	Limit   int // max quotes scanned; 0 for no limit
	Verbose bool
	DryRun  bool
}

// Report summarises one job run.
type Report struct {
	RunID    string        `json:"run_id"`
	Job      string        `json:"job"`
	Sport    string        `json:"sport,omitempty"`
	Scanned  int           `json:"scanned"`
	Unique   int           `json:"unique"`
	Written  int           `json:"written"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	DryRun   bool          `json:"dry_run,omitempty"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`

	// projections more than a point off the reference line
	ValueOpportunities int `json:"value_opportunities,omitempty"`
}

// Config tunes both jobs.
type Config struct {
	ReferenceBooks []string // books whose line anchors a projection, highest priority first
	DFSSources     []string // scraped daily-fantasy sources, highest priority first
	StatsPerPlayer int      // recent games behind feed edges and hit rates
	SparklineGames int
	FeedContext    bool // attach a context summary to feed rows
	KeyTeammates   bool // also scan every teammate for large splits; needs FeedContext

	Projection projection.Config
	Insight    insight.Config
	Edge       edge.Config
}

// DefaultConfig returns the defaults the jobs run with.
func DefaultConfig() Config {
	return Config{
		ReferenceBooks: []string{"Bovada"},
		DFSSources:     []string{"prizepicks", "underdog"},
		StatsPerPlayer: 20,
		SparklineGames: 10,
		FeedContext:    true,
		Projection:     projection.DefaultConfig(),
		Insight:        insight.DefaultConfig(),
		Edge:           edge.DefaultConfig(),
	}
}

// Builder runs the snapshot jobs against one Repo. Create one per run so the
// Repo's cache does not outlive it.
type Builder struct {
	repo      *repo.Repo
	projector *projection.Builder
	analyzer  *insight.Analyzer
	cfg       Config
	now       func() time.Time
	logger    *zap.Logger
}

// New creates a Builder. A nil clock uses time.Now; a nil logger discards output.
func New(r *repo.Repo, cfg Config, now func() time.Time, logger *zap.Logger) *Builder {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		repo:      r,
		projector: projection.NewBuilder(r, cfg.Projection, logger.Named("projection")),
		analyzer:  insight.NewAnalyzer(r, cfg.Insight, now, logger.Named("insight")),
		cfg:       cfg,
		now:       now,
		logger:    logger,
	}
}

func (b *Builder) start(job string, opts Options) (Report, *zap.Logger) {
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	r := Report{RunID: runID, Job: job, Sport: opts.Sport, DryRun: opts.DryRun, Started: b.now()}
	return r, b.logger.With(zap.String("job", job), zap.String("run_id", runID))
}

func (b *Builder) finish(r *Report) {
	r.Duration = b.now().Sub(r.Started)
}

// recentQuotes reads the quote window and drops quotes outside the sport filter.
// Failure to reach the store here is fatal for the run.
func (b *Builder) recentQuotes(ctx context.Context, opts Options, r *Report) ([]model.PropQuote, map[string]model.Player, error) {
	if err := b.repo.Ping(ctx); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	since := b.now().Add(-time.Duration(opts.Hours) * time.Hour)
	quotes, err := b.repo.RecentQuotes(ctx, since, opts.Limit)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	r.Scanned = len(quotes)
	if len(quotes) == 0 {
		return nil, nil, nil
	}

	ids := make([]string, len(quotes))
	for i, q := range quotes {
		ids[i] = q.PlayerID
	}
	players := b.repo.PlayersByID(ctx, ids)
	if opts.Sport == "" {
		return quotes, players, nil
	}
	kept := quotes[:0:0]
	for _, q := range quotes {
		if p, ok := players[q.PlayerID]; ok && model.MatchesSport(opts.Sport, p.Sport) {
			kept = append(kept, q)
		}
	}
	return kept, players, nil
}

func (b *Builder) gamesFor(ctx context.Context, quotes []model.PropQuote) map[string]model.Game {
	ids := make([]string, len(quotes))
	for i, q := range quotes {
		ids[i] = q.GameID
	}
	return b.repo.GamesByID(ctx, ids)
}

// LatestPerKey keeps the quote with the lexicographically greatest observation
// time for each key. Quotes for which key reports false are dropped. On equal
// timestamps the first quote seen wins.
func LatestPerKey[K comparable](quotes []model.PropQuote, key func(model.PropQuote) (K, bool)) map[K]model.PropQuote {
	latest := make(map[K]model.PropQuote)
	for _, q := range quotes {
		k, ok := key(q)
		if !ok {
			continue
		}
		if cur, seen := latest[k]; !seen || q.ObservedAt > cur.ObservedAt {
			latest[k] = q
		}
	}
	return latest
}

func projectionKey(q model.PropQuote) (model.ProjectionKey, bool) {
	k := model.ProjectionKey{PlayerID: q.PlayerID, GameID: q.GameID, PropType: q.PropType}
	return k, k.PlayerID != "" && k.GameID != "" && k.PropType != ""
}

func feedKey(q model.PropQuote) (model.FeedKey, bool) {
	if q.Line == nil || q.Book == "" || q.PlayerID == "" || q.GameID == "" || q.PropType == "" {
		return model.FeedKey{}, false
	}
	return model.FeedKey{PlayerID: q.PlayerID, GameID: q.GameID, PropType: q.PropType, Line: *q.Line, Book: q.Book}, true
}

func sortedProjectionKeys(m map[model.ProjectionKey]model.PropQuote) []model.ProjectionKey {
	keys := make([]model.ProjectionKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.PlayerID != b.PlayerID {
			return a.PlayerID < b.PlayerID
		}
		if a.GameID != b.GameID {
			return a.GameID < b.GameID
		}
		return a.PropType < b.PropType
	})
	return keys
}

func sortedFeedKeys(m map[model.FeedKey]model.PropQuote) []model.FeedKey {
	keys := make([]model.FeedKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		switch {
		case a.PlayerID != b.PlayerID:
			return a.PlayerID < b.PlayerID
		case a.GameID != b.GameID:
			return a.GameID < b.GameID
		case a.PropType != b.PropType:
			return a.PropType < b.PropType
		case a.Line != b.Line:
			return a.Line < b.Line
		}
		return a.Book < b.Book
	})
	return keys
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
