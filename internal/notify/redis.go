package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// StreamPrefix is the global stream; sport streams append ".<sport>".
const StreamPrefix = "snapshots.updated"

// RedisStream appends events to Redis Streams.
type RedisStream struct {
	client *redis.Client
	maxLen int64
}

// NewRedisStream creates a publisher on client. Streams are trimmed to about
// maxLen entries; 0 leaves them untrimmed.
func NewRedisStream(client *redis.Client, maxLen int64) *RedisStream {
	return &RedisStream{client: client, maxLen: maxLen}
}

// StreamKeys returns the streams an event is written to: the sport stream when
// the run was filtered by sport, then the global stream.
func StreamKeys(e Event) []string {
	if e.Sport == "" {
		return []string{StreamPrefix}
	}
	return []string{StreamPrefix + "." + strings.ToLower(e.Sport), StreamPrefix}
}

// Publish writes the event to each of its streams.
func (p *RedisStream) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	for _, stream := range StreamKeys(e) {
		args := &redis.XAddArgs{
			Stream: stream,
			Values: map[string]interface{}{
				"job":    e.Job,
				"status": e.Status,
				"event":  string(payload),
			},
		}
		if p.maxLen > 0 {
			args.MaxLen, args.Approx = p.maxLen, true
		}
		if err := p.client.XAdd(ctx, args).Err(); err != nil {
			return fmt.Errorf("failed to publish to stream %s: %w", stream, err)
		}
	}
	return nil
}

// Close closes the client.
func (p *RedisStream) Close() error {
	return p.client.Close()
}
