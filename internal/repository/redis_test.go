package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/streamforge/comment-service/internal/models"
)

// newTestRedis connects to a local Redis for integration coverage of the
// backlog cache, skipping when none is reachable.
func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("REDIS_ADDRESS")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func newBacklogFixture(t *testing.T, maxLen int, ttl time.Duration) (*redisCache, string) {
	t.Helper()

	client := newTestRedis(t)
	videoID := fmt.Sprintf("v-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		client.Del(context.Background(), backlogKey(models.ScopeLive, videoID))
	})

	return &redisCache{client: client, maxLen: int64(maxLen), ttl: ttl}, videoID
}

func TestBacklogCapAndOrder(t *testing.T) {
	const maxLen = 5
	cache, videoID := newBacklogFixture(t, maxLen, time.Minute)
	ctx := context.Background()

	// Write past the cap; the backlog must keep only the newest maxLen.
	for i := 0; i < 8; i++ {
		c := &models.Comment{
			ID:      fmt.Sprintf("c%d", i),
			VideoID: videoID,
			UserID:  "u1",
			Content: fmt.Sprintf("m-%d", i),
		}
		if err := cache.Record(ctx, models.ScopeLive, videoID, c); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	got, err := cache.Recent(ctx, models.ScopeLive, videoID, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != maxLen {
		t.Fatalf("backlog holds %d entries, want cap %d", len(got), maxLen)
	}
	// Chronological order, oldest survivor first.
	for i, c := range got {
		if want := fmt.Sprintf("c%d", 3+i); c.ID != want {
			t.Fatalf("entry %d = %s, want %s", i, c.ID, want)
		}
	}
}

func TestBacklogRecentHonorsLimit(t *testing.T) {
	cache, videoID := newBacklogFixture(t, 10, time.Minute)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		c := &models.Comment{ID: fmt.Sprintf("c%d", i), VideoID: videoID, UserID: "u1", Content: "m"}
		if err := cache.Record(ctx, models.ScopeLive, videoID, c); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	got, err := cache.Recent(ctx, models.ScopeLive, videoID, 3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}
	// The newest 3, still chronological.
	for i, c := range got {
		if want := fmt.Sprintf("c%d", 3+i); c.ID != want {
			t.Fatalf("entry %d = %s, want %s", i, c.ID, want)
		}
	}
}

func TestBacklogExpirySetOnWrite(t *testing.T) {
	ttl := 2 * time.Minute
	cache, videoID := newBacklogFixture(t, 10, ttl)
	ctx := context.Background()

	c := &models.Comment{ID: "c0", VideoID: videoID, UserID: "u1", Content: "m"}
	if err := cache.Record(ctx, models.ScopeLive, videoID, c); err != nil {
		t.Fatalf("record: %v", err)
	}

	remaining, err := cache.client.TTL(ctx, backlogKey(models.ScopeLive, videoID)).Result()
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if remaining <= 0 || remaining > ttl {
		t.Fatalf("ttl = %v, want within (0, %v]", remaining, ttl)
	}
}

func TestBacklogUnknownRoomIsEmpty(t *testing.T) {
	cache, _ := newBacklogFixture(t, 10, time.Minute)

	got, err := cache.Recent(context.Background(), models.ScopeLive, "never-written", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("unknown room returned %d entries", len(got))
	}
}
