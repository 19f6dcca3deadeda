package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"prop-engine/internal/cache"
	"prop-engine/internal/config"
	"prop-engine/internal/metrics"
	"prop-engine/internal/notify"
	"prop-engine/internal/repo"
	"prop-engine/internal/snapshot"
	"prop-engine/internal/store"
)

// JobAll runs the projection job and then the feed job.
const JobAll = "all"

// Options select what one run does.
type Options struct {
	Job             string // projections, feed or all
	Sport           string
	Hours           int
	ProjectionLimit int
	FeedLimit       int
	Verbose         bool
	DryRun          bool
}

// OptionsFrom builds run options from the environment configuration.
func OptionsFrom(cfg config.Config) Options {
	return Options{
		Job:             JobAll,
		Sport:           cfg.Sport,
		Hours:           cfg.Hours,
		ProjectionLimit: cfg.ProjectionLimit,
		FeedLimit:       cfg.FeedLimit,
	}
}

// Jobs returns the jobs to run, in order.
func (o Options) Jobs() ([]string, error) {
	switch strings.ToLower(o.Job) {
	case "", JobAll:
		return []string{snapshot.JobProjections, snapshot.JobFeed}, nil
	case snapshot.JobProjections:
		return []string{snapshot.JobProjections}, nil
	case snapshot.JobFeed:
		return []string{snapshot.JobFeed}, nil
	}
	return nil, fmt.Errorf("unknown job %q (want projections, feed or all)", o.Job)
}

// Engine runs the snapshot jobs once or on a schedule. Each run gets a fresh
// cache and repo so nothing read in one run is reused by the next.
type Engine struct {
	store      store.Store
	jobCfg     snapshot.Config
	chunks     repo.Chunks
	notifier   *notify.Notifier
	collectors *metrics.Collectors // nil disables metrics
	timeout    time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// New creates an Engine with all dependencies. A nil notifier only logs.
func New(
	s store.Store,
	jobCfg snapshot.Config,
	notifier *notify.Notifier,
	collectors *metrics.Collectors,
	timeout time.Duration,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.NewNotifier(nil, config.DefaultAlertCooldown, logger.Named("notify"))
	}
	return &Engine{
		store:      s,
		jobCfg:     jobCfg,
		chunks:     repo.DefaultChunks(),
		notifier:   notifier,
		collectors: collectors,
		timeout:    timeout,
		logger:     logger,
		now:        time.Now,
	}
}

// Healthy reports whether the store answers.
func (e *Engine) Healthy(ctx context.Context) error {
	return e.store.Ping(ctx)
}

// RunOnce runs the selected jobs under one run id. The feed job reads the
// projections the first job wrote, so a fatal projection failure stops the run.
func (e *Engine) RunOnce(ctx context.Context, opts Options) ([]snapshot.Report, error) {
	jobs, err := opts.Jobs()
	if err != nil {
		return nil, err
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	runID := uuid.NewString()
	runCache := cache.New(e.now)
	r := repo.New(e.store, runCache, e.chunks, e.logger.Named("repo"))
	builder := snapshot.New(r, e.jobCfg, e.now, e.logger.Named("snapshot"))

	defer func() {
		if e.collectors != nil {
			e.collectors.ObserveCache(runCache.Stats())
		}
	}()

	reports := make([]snapshot.Report, 0, len(jobs))
	for _, job := range jobs {
		so := snapshot.Options{
			RunID:   runID,
			Sport:   opts.Sport,
			Hours:   opts.Hours,
			Verbose: opts.Verbose,
			DryRun:  opts.DryRun,
		}

		var report snapshot.Report
		switch job {
		case snapshot.JobProjections:
			so.Limit = opts.ProjectionLimit
			report, err = builder.BuildProjections(ctx, so)
		case snapshot.JobFeed:
			so.Limit = opts.FeedLimit
			report, err = builder.BuildFeed(ctx, so)
		}

		e.observe(ctx, report, err)
		reports = append(reports, report)
		if err != nil {
			return reports, fmt.Errorf("%s job: %w", job, err)
		}
	}
	return reports, nil
}

func (e *Engine) observe(ctx context.Context, r snapshot.Report, err error) {
	if e.collectors != nil {
		e.collectors.Observe(r, err)
	}
	// ctx may already be done; the event should still go out
	e.notifier.RunFinished(context.WithoutCancel(ctx), r, err)
}

// Schedule runs the jobs on a cron schedule until ctx is cancelled. A run
// still in progress when the next one is due causes that tick to be skipped.
func (e *Engine) Schedule(ctx context.Context, spec string, opts Options) error {
	if _, err := opts.Jobs(); err != nil {
		return err
	}

	cl := cronLogger{e.logger.Named("cron").Sugar()}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	c.Schedule(sched, cron.FuncJob(func() {
		if _, err := e.RunOnce(ctx, opts); err != nil {
			e.logger.Error("scheduled run failed", zap.Error(err))
		}
	}))

	c.Start()
	e.logger.Info("Scheduler started",
		zap.String("schedule", spec),
		zap.String("job", opts.Job),
		zap.Time("next", sched.Next(e.now())),
	)

	cleanupTicker := time.NewTicker(config.DefaultCleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			stopped := c.Stop()
			<-stopped.Done()
			e.logger.Info("Scheduler stopped gracefully")
			return nil

		case <-cleanupTicker.C:
			e.notifier.CleanupOldAlerts()
		}
	}
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
