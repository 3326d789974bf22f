package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/streamforge/comment-service/internal/config"
	"github.com/streamforge/comment-service/internal/models"
)

// CommentCache is the hot backlog store: a bounded, expiring list of recent
// comments per room, used to seed newly joined viewers without touching the
// primary store.
type CommentCache interface {
	// Record prepends the comment to the room's backlog, trims the backlog
	// to the configured cap and refreshes its expiry.
	Record(ctx context.Context, scope models.Scope, videoID string, c *models.Comment) error
	// Recent returns up to limit most-recent comments in chronological
	// order. An unknown room yields an empty slice, not an error.
	Recent(ctx context.Context, scope models.Scope, videoID string, limit int) ([]*models.Comment, error)
}

type redisCache struct {
	client *redis.Client
	maxLen int64
	ttl    time.Duration
}

// NewRedisCache wraps an existing client as a CommentCache.
func NewRedisCache(client *redis.Client, cfg config.CacheConfig) CommentCache {
	return &redisCache{
		client: client,
		maxLen: int64(cfg.MaxBacklog),
		ttl:    cfg.TTL,
	}
}

// NewRedisClient connects and pings a Redis server.
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func backlogKey(scope models.Scope, videoID string) string {
	return fmt.Sprintf("comments:%s:%s", scope, videoID)
}

func (r *redisCache) Record(ctx context.Context, scope models.Scope, videoID string, c *models.Comment) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal comment: %w", err)
	}

	key := backlogKey(scope, videoID)
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, r.maxLen-1)
	pipe.Expire(ctx, key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache comment: %w", err)
	}
	return nil
}

func (r *redisCache) Recent(ctx context.Context, scope models.Scope, videoID string, limit int) ([]*models.Comment, error) {
	key := backlogKey(scope, videoID)

	// Backlog is stored newest-first; take the head and reverse below.
	result, err := r.client.LRange(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read cached comments: %w", err)
	}

	comments := make([]*models.Comment, 0, len(result))
	for i := len(result) - 1; i >= 0; i-- {
		var c models.Comment
		if err := json.Unmarshal([]byte(result[i]), &c); err != nil {
			continue // Skip invalid entries
		}
		comments = append(comments, &c)
	}
	return comments, nil
}
