package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prop-engine/internal/snapshot"
)

type recorder struct {
	events []Event
	err    error
}

func (r *recorder) Publish(_ context.Context, e Event) error {
	r.events = append(r.events, e)
	return r.err
}

func (r *recorder) Close() error { return nil }

func testNotifier(pub Publisher, cooldown time.Duration) (*Notifier, *time.Time) {
	now := time.Date(2026, 1, 9, 18, 0, 0, 0, time.UTC)
	n := NewNotifier(pub, cooldown, nil)
	n.now = func() time.Time { return now }
	return n, &now
}

func TestNewEvent(t *testing.T) {
	r := snapshot.Report{RunID: "r1", Job: snapshot.JobFeed, Sport: "NBA", Scanned: 10, Unique: 8, Written: 7, Skipped: 1, Duration: 1500 * time.Millisecond}
	at := time.Date(2026, 1, 9, 18, 0, 0, 0, time.UTC)

	ok := NewEvent(r, nil, at)
	assert.Equal(t, StatusCompleted, ok.Status)
	assert.Equal(t, int64(1500), ok.DurationMS)
	assert.Empty(t, ok.Error)

	failed := NewEvent(r, errors.New("store down"), at)
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Equal(t, "store down", failed.Error)
}

func TestCheckCooldownSuppresses(t *testing.T) {
	n, _ := testNotifier(nil, time.Second)
	assert.False(t, n.checkCooldown("test-key"), "first call should not be suppressed")
	assert.True(t, n.checkCooldown("test-key"), "second call within cooldown should be suppressed")
	assert.False(t, n.checkCooldown("other-key"))
}

func TestCheckCooldownExpires(t *testing.T) {
	n, now := testNotifier(nil, 10*time.Millisecond)
	assert.False(t, n.checkCooldown("test-key"))
	*now = now.Add(15 * time.Millisecond)
	assert.False(t, n.checkCooldown("test-key"), "call after cooldown should not be suppressed")
}

func TestRunFinishedPublishes(t *testing.T) {
	rec := &recorder{}
	n, _ := testNotifier(rec, time.Minute)
	ctx := context.Background()
	r := snapshot.Report{RunID: "r1", Job: snapshot.JobProjections}

	n.RunFinished(ctx, r, nil)
	n.RunFinished(ctx, r, nil)
	n.RunFinished(ctx, r, errors.New("boom"))
	n.RunFinished(ctx, r, errors.New("boom again"))

	require.Len(t, rec.events, 3, "completed runs always publish, repeated failures are held back")
	assert.Equal(t, StatusFailed, rec.events[2].Status)
}

func TestRunFinishedIgnoresPublishErrors(t *testing.T) {
	rec := &recorder{err: errors.New("unreachable")}
	n, _ := testNotifier(rec, time.Minute)
	n.RunFinished(context.Background(), snapshot.Report{Job: snapshot.JobFeed}, nil)
	assert.Len(t, rec.events, 1)
}

func TestCleanupOldAlerts(t *testing.T) {
	n, now := testNotifier(nil, time.Hour)
	n.checkCooldown("old")
	*now = now.Add(2 * time.Hour)
	n.checkCooldown("new")

	n.CleanupOldAlerts()
	assert.NotContains(t, n.lastAlerts, "old")
	assert.Contains(t, n.lastAlerts, "new")
}

func TestStreamKeys(t *testing.T) {
	assert.Equal(t, []string{"snapshots.updated"}, StreamKeys(Event{}))
	assert.Equal(t, []string{"snapshots.updated.esports", "snapshots.updated"}, StreamKeys(Event{Sport: "Esports"}))
}

func TestRedisStreamUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	p := NewRedisStream(client, 1000)
	defer p.Close()

	err := p.Publish(context.Background(), Event{Job: "feed"})
	assert.ErrorContains(t, err, "snapshots.updated")
}

func TestKafkaMessage(t *testing.T) {
	e := Event{RunID: "r1", Job: "feed", Status: StatusCompleted, Written: 3, FinishedAt: time.Date(2026, 1, 9, 18, 0, 0, 0, time.UTC)}
	msg, err := message(e)
	require.NoError(t, err)
	assert.Equal(t, "r1/feed", string(msg.Key))
	assert.Equal(t, e.FinishedAt, msg.Time)

	var got Event
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, 3, got.Written)
}
