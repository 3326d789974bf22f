package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/streamforge/comment-service/internal/config"
	"github.com/streamforge/comment-service/internal/metrics"
	"github.com/streamforge/comment-service/internal/models"
	"github.com/streamforge/comment-service/internal/repository"
)

// Dead-letter divert reasons.
const (
	reasonInvalidPayload   = "invalid_payload"
	reasonStoreUnavailable = "store_unavailable"
)

// Consumer drains the shard streams in bounded batches, validates each entry,
// bulk-writes valid comments to the primary store and diverts failures to the
// dead-letter stream. One goroutine runs per shard, which together with
// room-to-shard affinity preserves per-room submission order.
//
// Nothing here is fatal: a storage outage costs the affected batches (they
// are dead-lettered verbatim) but the loop keeps draining. Liveness over
// durability, by explicit choice.
type Consumer struct {
	client *redis.Client
	store  repository.CommentStore
	dlq    DeadLetter
	log    *logrus.Logger
	cfg    config.QueueConfig
}

// NewConsumer builds a Consumer over the given backends.
func NewConsumer(client *redis.Client, store repository.CommentStore, dlq DeadLetter, log *logrus.Logger, cfg config.QueueConfig) *Consumer {
	return &Consumer{client: client, store: store, dlq: dlq, log: log, cfg: cfg}
}

// Start creates the consumer group on every shard stream and launches one
// drain loop per shard. It returns once the loops are running; they stop when
// ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	for shard := 0; shard < c.cfg.Shards; shard++ {
		stream := shardStream(c.cfg.Stream, shard)
		err := c.client.XGroupCreateMkStream(ctx, stream, c.cfg.Group, "0").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			return fmt.Errorf("failed to create consumer group on %s: %w", stream, err)
		}
		go c.runShard(ctx, shard)
	}
	return nil
}

func (c *Consumer) runShard(ctx context.Context, shard int) {
	stream := shardStream(c.cfg.Stream, shard)
	consumer := fmt.Sprintf("%s-%d", c.cfg.ConsumerPrefix, shard)
	log := c.log.WithFields(logrus.Fields{"stream": stream, "consumer": consumer})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.cfg.Group,
			Consumer: consumer,
			Streams:  []string{stream, ">"},
			Count:    int64(c.cfg.BatchSize),
			Block:    c.cfg.Block,
		}).Result()
		if err != nil {
			if err == redis.Nil || ctx.Err() != nil {
				continue
			}
			log.WithError(err).Warn("queue read failed, backing off")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, sr := range res {
			ackIDs := c.processBatch(ctx, sr.Messages)
			if len(ackIDs) == 0 {
				continue
			}
			if err := c.client.XAck(ctx, stream, c.cfg.Group, ackIDs...).Err(); err != nil {
				log.WithError(err).Warn("failed to ack batch")
			}
		}
	}
}

// processBatch settles one batch of queue entries and returns the ids whose
// disposition is final (persisted or dead-lettered). Entries whose divert
// itself failed are excluded so they stay pending for reclaim.
func (c *Consumer) processBatch(ctx context.Context, msgs []redis.XMessage) []string {
	valid := make([]*models.Comment, 0, len(msgs))
	validMsgs := make([]redis.XMessage, 0, len(msgs))
	ackIDs := make([]string, 0, len(msgs))

	for _, msg := range msgs {
		comment, err := parseEntry(msg)
		if err != nil {
			c.log.WithError(err).WithField("entry", msg.ID).
				Warn("diverting malformed queue entry")
			if c.divert(ctx, reasonInvalidPayload, msg) {
				ackIDs = append(ackIDs, msg.ID)
			}
			continue
		}
		valid = append(valid, comment)
		validMsgs = append(validMsgs, msg)
	}

	if len(valid) == 0 {
		return ackIDs
	}

	if err := c.store.SaveBatch(ctx, valid); err != nil {
		// The whole batch is diverted, entries that individually validated
		// included. No inline retry: the queue must keep draining.
		c.log.WithError(err).WithField("batch_size", len(valid)).
			Error("bulk insert failed, diverting batch to dead letter")
		for _, msg := range validMsgs {
			if c.divert(ctx, reasonStoreUnavailable, msg) {
				ackIDs = append(ackIDs, msg.ID)
			}
		}
		return ackIDs
	}

	metrics.PersistStored.Add(float64(len(valid)))
	for _, msg := range validMsgs {
		ackIDs = append(ackIDs, msg.ID)
	}
	return ackIDs
}

// divert reports whether the entry reached the dead-letter stream. On false
// the entry must not be acknowledged.
func (c *Consumer) divert(ctx context.Context, reason string, msg redis.XMessage) bool {
	if err := c.dlq.Divert(ctx, reason, msg.Values); err != nil {
		c.log.WithError(err).WithField("entry", msg.ID).
			Error("dead-letter divert failed, leaving entry pending")
		return false
	}
	metrics.DeadLettered.WithLabelValues(reason).Inc()
	return true
}

// parseEntry decodes and shape-checks one queue entry.
func parseEntry(msg redis.XMessage) (*models.Comment, error) {
	raw, ok := msg.Values[fieldPayload]
	if !ok {
		return nil, fmt.Errorf("entry %s has no payload field", msg.ID)
	}
	payload, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("entry %s payload is not a string", msg.ID)
	}

	var c models.Comment
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return nil, fmt.Errorf("entry %s payload is not valid JSON: %w", msg.ID, err)
	}
	if c.ID == "" || c.VideoID == "" || c.UserID == "" || c.Content == "" {
		return nil, fmt.Errorf("entry %s is missing required fields", msg.ID)
	}
	return &c, nil
}
