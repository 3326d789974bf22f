// Package queue implements the durable persistence pipeline: a producer that
// enqueues persist-eligible comments onto sharded Redis Streams, and a
// consumer that drains them in batches into the primary store, diverting
// failures to a dead-letter stream.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/streamforge/comment-service/internal/config"
	"github.com/streamforge/comment-service/internal/models"
)

// Stream entry field names.
const (
	fieldPayload = "payload"
	fieldVideoID = "video_id"

	fieldReason     = "reason"
	fieldDivertedAt = "diverted_at"
)

// Producer enqueues a comment for durable persistence. Room id is the
// ordering key: all comments for one room land on the same shard stream and
// are observed by its consumer lane in submission order.
type Producer interface {
	Enqueue(ctx context.Context, c *models.Comment) error
}

// DeadLetter is the terminal destination for entries that failed validation
// or whose batch could not be persisted. The original payload is preserved
// unmodified alongside the divert reason.
type DeadLetter interface {
	Divert(ctx context.Context, reason string, values map[string]interface{}) error
}

// RedisQueue is both the Producer and the DeadLetter sink, backed by Redis
// Streams.
type RedisQueue struct {
	client *redis.Client
	cfg    config.QueueConfig
}

// NewRedisQueue wraps an existing client.
func NewRedisQueue(client *redis.Client, cfg config.QueueConfig) *RedisQueue {
	return &RedisQueue{client: client, cfg: cfg}
}

// shardFor maps a room id onto one of the shard streams.
func shardFor(videoID string, shards int) int {
	h := fnv.New32a()
	h.Write([]byte(videoID))
	return int(h.Sum32() % uint32(shards))
}

func shardStream(base string, shard int) string {
	return fmt.Sprintf("%s:%d", base, shard)
}

// Enqueue appends the comment to its room's shard stream. Entries are never
// capped away: the stream holds them until the consumer acknowledges a final
// disposition.
func (q *RedisQueue) Enqueue(ctx context.Context, c *models.Comment) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal comment %s: %w", c.ID, err)
	}

	stream := shardStream(q.cfg.Stream, shardFor(c.VideoID, q.cfg.Shards))
	err = q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			fieldPayload: payload,
			fieldVideoID: c.VideoID,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to enqueue comment %s: %w", c.ID, err)
	}
	return nil
}

// Divert appends the entry to the dead-letter stream, original fields intact.
func (q *RedisQueue) Divert(ctx context.Context, reason string, values map[string]interface{}) error {
	entry := make(map[string]interface{}, len(values)+2)
	for k, v := range values {
		entry[k] = v
	}
	entry[fieldReason] = reason
	entry[fieldDivertedAt] = time.Now().UTC().Format(time.RFC3339Nano)

	if err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.cfg.DeadLetterStream,
		Values: entry,
	}).Err(); err != nil {
		return fmt.Errorf("failed to divert entry to dead letter: %w", err)
	}
	return nil
}
