package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"prop-engine/internal/config"
	"prop-engine/internal/engine"
	"prop-engine/internal/logging"
	"prop-engine/internal/metrics"
	"prop-engine/internal/notify"
	"prop-engine/internal/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Load()
	opts := engine.OptionsFrom(cfg)

	flag.StringVar(&opts.Job, "job", engine.JobAll, "job to run: projections, feed or all")
	flag.StringVar(&opts.Sport, "sport", opts.Sport, "sport filter (NBA, NFL, CS2, Esports, ...); empty for all")
	flag.IntVar(&opts.Hours, "hours", opts.Hours, "quote window in hours")
	flag.IntVar(&opts.ProjectionLimit, "limit", opts.ProjectionLimit, "max quotes scanned by the projection job (0 = no limit)")
	flag.IntVar(&opts.FeedLimit, "feed-limit", opts.FeedLimit, "max quotes scanned by the feed job (0 = no limit)")
	flag.BoolVar(&opts.Verbose, "verbose", false, "log every row")
	flag.BoolVar(&opts.DryRun, "dry-run", false, "compute without writing")
	flag.StringVar(&cfg.Schedule, "schedule", cfg.Schedule, "cron expression; empty runs once and exits")
	flag.Parse()

	logger, err := logging.New(cfg.Env, opts.Verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	if err := config.Validate(cfg); err != nil {
		logger.Error("Invalid configuration", zap.Error(err))
		return 1
	}
	if opts.Hours <= 0 {
		logger.Error("Invalid configuration", zap.Int("hours", opts.Hours))
		return 1
	}
	if _, err := opts.Jobs(); err != nil {
		logger.Error("Invalid configuration", zap.Error(err))
		return 1
	}

	tuning, err := config.LoadTuning(cfg.TuningFile)
	if err != nil {
		logger.Error("Invalid tuning", zap.Error(err))
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sqlStore, err := store.Open(cfg.StoreDriver, cfg.StoreDSN)
	if err != nil {
		logger.Error("Opening store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
		return 1
	}
	guardCfg := store.DefaultGuardConfig()
	guardCfg.RequestsPerSec = cfg.StoreRPS
	st := store.NewGuarded(sqlStore, guardCfg, logger.Named("store"))
	defer st.Close()

	pub, err := newPublisher(ctx, cfg)
	if err != nil {
		logger.Error("Notification backend", zap.String("backend", cfg.NotifyBackend), zap.Error(err))
		return 1
	}
	notifier := notify.NewNotifier(pub, cfg.AlertCooldown, logger.Named("notify"))
	defer notifier.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	coll := metrics.NewCollectors(reg)

	eng := engine.New(st, config.JobConfig(cfg, tuning), notifier, coll, cfg.RunTimeout, logger.Named("engine"))

	if cfg.MetricsPort != "" {
		srv := metrics.NewServer(cfg.MetricsPort, metrics.NewRouter(reg, coll, eng.Healthy))
		go func() {
			logger.Info("Metrics server listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server error", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	logger.Info("Starting",
		zap.String("job", opts.Job),
		zap.String("sport", opts.Sport),
		zap.Int("hours", opts.Hours),
		zap.String("limit", config.FormatLimit(opts.ProjectionLimit)),
		zap.String("feed_limit", config.FormatLimit(opts.FeedLimit)),
		zap.Strings("reference_books", cfg.ReferenceBooks),
		zap.String("store", cfg.StoreDriver),
		zap.String("notify", cfg.NotifyBackend),
		zap.Bool("dry_run", opts.DryRun),
	)

	if cfg.Schedule != "" {
		if err := eng.Schedule(ctx, cfg.Schedule, opts); err != nil {
			logger.Error("Scheduler", zap.Error(err))
			return 1
		}
		return 0
	}

	reports, err := eng.RunOnce(ctx, opts)
	for _, r := range reports {
		logger.Info("Run summary",
			zap.String("job", r.Job),
			zap.String("run_id", r.RunID),
			zap.Int("scanned", r.Scanned),
			zap.Int("unique", r.Unique),
			zap.Int("written", r.Written),
			zap.Int("skipped", r.Skipped),
			zap.Int("failed", r.Failed),
			zap.Duration("duration", r.Duration),
		)
	}
	if err != nil {
		logger.Error("Run failed", zap.Error(err))
		return 1
	}
	return 0
}

func newPublisher(ctx context.Context, cfg config.Config) (notify.Publisher, error) {
	switch cfg.NotifyBackend {
	case config.NotifyRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		return notify.NewRedisStream(client, cfg.StreamMaxLen), nil
	case config.NotifyKafka:
		return notify.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	}
	return notify.Nop{}, nil
}
