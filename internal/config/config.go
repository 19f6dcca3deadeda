package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Defaults for configuration values.
const (
	DefaultEnv             = "production"
	DefaultStoreDriver     = "sqlite3"
	DefaultStoreDSN        = "/data/props.db"
	DefaultHours           = 48
	DefaultProjectionLimit = 500
	DefaultFeedLimit       = 800
	DefaultReferenceBook   = "Bovada"
	DefaultMetricsPort     = "9095"
	DefaultNotifyBackend   = NotifyNone
	DefaultKafkaTopic      = "snapshots.updated"
	DefaultStreamMaxLen    = 10000
	DefaultStoreRPS        = 20.0
	DefaultRunTimeout      = 10 * time.Minute
	DefaultAlertCooldown   = 5 * time.Minute
	DefaultCleanupInterval = 10 * time.Minute
)

// Notification backends.
const (
	NotifyNone  = "none"
	NotifyRedis = "redis"
	NotifyKafka = "kafka"
)

// Config holds all application configuration.
type Config struct {
	Env string

	// Store
	StoreDriver string // sqlite3 or postgres
	StoreDSN    string
	StoreRPS    float64 // 0 disables rate limiting

	// Jobs
	Sport           string // empty runs every sport
	Hours           int
	ProjectionLimit int // 0 = no limit
	FeedLimit       int // 0 = no limit
	ReferenceBooks  []string
	FeedContext     bool
	KeyTeammates    bool   // scan every teammate for with/without splits on feed rows
	Schedule        string // cron expression; empty runs once
	RunTimeout      time.Duration
	TuningFile      string

	// Observability
	MetricsPort   string // empty disables the metrics server
	NotifyBackend string
	RedisAddr     string
	StreamMaxLen  int64
	KafkaBrokers  []string
	KafkaTopic    string
	AlertCooldown time.Duration
}

// Load reads configuration from environment variables (and .env file if present).
func Load() Config {
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	cfg := Config{
		Env:             DefaultEnv,
		StoreDriver:     DefaultStoreDriver,
		StoreDSN:        DefaultStoreDSN,
		StoreRPS:        DefaultStoreRPS,
		Sport:           os.Getenv("SNAPSHOT_SPORT"),
		Hours:           DefaultHours,
		ProjectionLimit: DefaultProjectionLimit,
		FeedLimit:       DefaultFeedLimit,
		ReferenceBooks:  []string{DefaultReferenceBook},
		FeedContext:     true,
		Schedule:        os.Getenv("SCHEDULE"),
		RunTimeout:      DefaultRunTimeout,
		TuningFile:      os.Getenv("TUNING_FILE"),
		MetricsPort:     DefaultMetricsPort,
		NotifyBackend:   DefaultNotifyBackend,
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		StreamMaxLen:    DefaultStreamMaxLen,
		KafkaBrokers:    splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:      DefaultKafkaTopic,
		AlertCooldown:   DefaultAlertCooldown,
	}

	if v := os.Getenv("ENV"); v != "" {
		cfg.Env = v
	}

	if v := os.Getenv("STORE_DRIVER"); v != "" {
		cfg.StoreDriver = v
	}

	if v := os.Getenv("STORE_DSN"); v != "" {
		cfg.StoreDSN = v
	}

	if v := os.Getenv("STORE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.StoreRPS = f
		}
	}

	if v := os.Getenv("SNAPSHOT_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Hours = n
		}
	}

	if v := os.Getenv("SNAPSHOT_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ProjectionLimit = n
		}
	}

	if v := os.Getenv("FEED_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FeedLimit = n
		}
	}

	if books := splitList(os.Getenv("REFERENCE_BOOKS")); len(books) > 0 {
		cfg.ReferenceBooks = books
	}

	if os.Getenv("FEED_CONTEXT") == "false" {
		cfg.FeedContext = false
	}

	if v := os.Getenv("FEED_KEY_TEAMMATES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.KeyTeammates = b
		}
	}

	if v := os.Getenv("RUN_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RunTimeout = time.Duration(n) * time.Second
		}
	}

	// METRICS_PORT="" keeps the default; "off" disables the server
	if v := os.Getenv("METRICS_PORT"); v != "" {
		cfg.MetricsPort = v
		if v == "off" {
			cfg.MetricsPort = ""
		}
	}

	if v := os.Getenv("NOTIFY_BACKEND"); v != "" {
		cfg.NotifyBackend = strings.ToLower(v)
	}

	if v := os.Getenv("STREAM_MAXLEN"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.StreamMaxLen = n
		}
	}

	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		cfg.KafkaTopic = v
	}

	if v := os.Getenv("ALERT_COOLDOWN_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AlertCooldown = time.Duration(n) * time.Second
		}
	}

	return cfg
}

// Validate checks that configuration values are within acceptable ranges.
func Validate(cfg Config) error {
	if cfg.StoreDriver != "sqlite3" && cfg.StoreDriver != "postgres" {
		return fmt.Errorf("STORE_DRIVER must be sqlite3 or postgres, got %q", cfg.StoreDriver)
	}
	if cfg.StoreDSN == "" {
		return fmt.Errorf("STORE_DSN must be set")
	}
	if cfg.StoreRPS < 0 {
		return fmt.Errorf("STORE_RPS must be non-negative, got %f", cfg.StoreRPS)
	}
	if cfg.Hours <= 0 {
		return fmt.Errorf("SNAPSHOT_HOURS must be positive, got %d", cfg.Hours)
	}
	if cfg.ProjectionLimit < 0 {
		return fmt.Errorf("SNAPSHOT_LIMIT must be non-negative, got %d", cfg.ProjectionLimit)
	}
	if cfg.FeedLimit < 0 {
		return fmt.Errorf("FEED_LIMIT must be non-negative, got %d", cfg.FeedLimit)
	}
	if len(cfg.ReferenceBooks) == 0 {
		return fmt.Errorf("REFERENCE_BOOKS must name at least one book")
	}
	if cfg.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
			return fmt.Errorf("SCHEDULE must be a cron expression, got %q: %v", cfg.Schedule, err)
		}
	}
	if cfg.RunTimeout < time.Second {
		return fmt.Errorf("RUN_TIMEOUT_SECONDS must be at least 1s, got %v", cfg.RunTimeout)
	}
	switch cfg.NotifyBackend {
	case NotifyNone:
	case NotifyRedis:
		if cfg.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR must be set when NOTIFY_BACKEND=redis")
		}
	case NotifyKafka:
		if len(cfg.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS must be set when NOTIFY_BACKEND=kafka")
		}
		if cfg.KafkaTopic == "" {
			return fmt.Errorf("KAFKA_TOPIC must be set when NOTIFY_BACKEND=kafka")
		}
	default:
		return fmt.Errorf("NOTIFY_BACKEND must be none, redis or kafka, got %q", cfg.NotifyBackend)
	}
	if cfg.AlertCooldown < 0 {
		return fmt.Errorf("ALERT_COOLDOWN_SECONDS must be non-negative, got %v", cfg.AlertCooldown)
	}
	return nil
}

// FormatLimit returns a human-readable string for a row limit.
func FormatLimit(limit int) string {
	if limit <= 0 {
		return "no limit"
	}
	return strconv.Itoa(limit)
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
