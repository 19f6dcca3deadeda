// Package notify announces finished snapshot runs to downstream readers.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"prop-engine/internal/snapshot"
)

// Event statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Event describes one finished job run.
type Event struct {
	RunID      string    `json:"run_id"`
	Job        string    `json:"job"`
	Sport      string    `json:"sport,omitempty"`
	Status     string    `json:"status"`
	Scanned    int       `json:"scanned"`
	Unique     int       `json:"unique"`
	Written    int       `json:"written"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	DryRun     bool      `json:"dry_run,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewEvent builds the event for a report and the error its job returned.
func NewEvent(r snapshot.Report, err error, at time.Time) Event {
	e := Event{
		RunID:      r.RunID,
		Job:        r.Job,
		Sport:      r.Sport,
		Status:     StatusCompleted,
		Scanned:    r.Scanned,
		Unique:     r.Unique,
		Written:    r.Written,
		Skipped:    r.Skipped,
		Failed:     r.Failed,
		DryRun:     r.DryRun,
		DurationMS: r.Duration.Milliseconds(),
		FinishedAt: at.UTC(),
	}
	if err != nil {
		e.Status = StatusFailed
		e.Error = err.Error()
	}
	return e
}

// Publisher delivers events somewhere.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Notifier logs every run, forwards it to a Publisher, and holds back
// repeated failure events for the same job within the cooldown.
type Notifier struct {
	pub      Publisher
	logger   *zap.Logger
	cooldown time.Duration
	now      func() time.Time

	mu         sync.Mutex
	lastAlerts map[string]time.Time
}

// NewNotifier creates a Notifier. A nil publisher discards events.
func NewNotifier(pub Publisher, cooldown time.Duration, logger *zap.Logger) *Notifier {
	if pub == nil {
		pub = Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		pub:        pub,
		logger:     logger,
		cooldown:   cooldown,
		now:        time.Now,
		lastAlerts: make(map[string]time.Time),
	}
}

// RunFinished reports one job run. Delivery failures are logged, not returned.
func (n *Notifier) RunFinished(ctx context.Context, r snapshot.Report, runErr error) {
	e := NewEvent(r, runErr, n.now())
	log := n.logger.With(zap.String("job", e.Job), zap.String("run_id", e.RunID))

	if runErr != nil {
		log.Error("snapshot run failed", zap.Error(runErr))
		if n.checkCooldown(fmt.Sprintf("failed-%s-%s", e.Job, strings.ToLower(e.Sport))) {
			log.Debug("failure event suppressed by cooldown")
			return
		}
	} else {
		log.Info("snapshot run complete",
			zap.Int("scanned", e.Scanned),
			zap.Int("unique", e.Unique),
			zap.Int("written", e.Written),
			zap.Int("skipped", e.Skipped),
			zap.Int64("duration_ms", e.DurationMS),
		)
	}

	if err := n.pub.Publish(ctx, e); err != nil {
		log.Warn("publishing run event failed", zap.Error(err))
	}
}

// checkCooldown records key and reports whether it was already seen within
// the cooldown.
func (n *Notifier) checkCooldown(key string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	now := n.now()
	if last, ok := n.lastAlerts[key]; ok && now.Sub(last) < n.cooldown {
		return true
	}
	n.lastAlerts[key] = now
	return false
}

// CleanupOldAlerts forgets cooldown entries older than an hour.
func (n *Notifier) CleanupOldAlerts() {
	n.mu.Lock()
	defer n.mu.Unlock()
	cutoff := n.now().Add(-time.Hour)
	for key, t := range n.lastAlerts {
		if t.Before(cutoff) {
			delete(n.lastAlerts, key)
		}
	}
}

// Close closes the publisher.
func (n *Notifier) Close() error {
	return n.pub.Close()
}
