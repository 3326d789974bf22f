package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/streamforge/comment-service/internal/bus"
	"github.com/streamforge/comment-service/internal/comment"
	"github.com/streamforge/comment-service/internal/metrics"
	"github.com/streamforge/comment-service/internal/models"
	"github.com/streamforge/comment-service/internal/queue"
	"github.com/streamforge/comment-service/internal/repository"
)

// maxListLimit caps recent-history reads.
const maxListLimit = 100

// sideEffectTimeout bounds detached cache writes and queue enqueues.
const sideEffectTimeout = 5 * time.Second

// sideEffectQueueDepth is the buffer between submission and the side-effect
// worker. When it fills, new records skip the cache and the durable queue
// rather than stall ingestion.
const sideEffectQueueDepth = 1024

// Ingestion sources, used as metric labels.
const (
	SourceHTTP   = "http"
	SourceSocket = "socket"
)

// SubmitRequest carries one comment submission from either ingestion path.
type SubmitRequest struct {
	VideoID       string
	UserID        string
	Content       string
	ReplyToID     string
	ReplyToUserID string
	Scope         models.Scope

	// Persist forces durable persistence for this record regardless of the
	// configured policy mode.
	Persist bool
}

// CommentService runs the ingestion flow: build the canonical record,
// broadcast it, then hand the cache write and the durable enqueue to a
// single side-effect worker. Broadcast always happens before any persistence
// attempt, so a slow or failing backend never delays delivery. The handoff
// is a synchronous channel send inside Submit, so two same-room submissions
// reach the cache and the queue in submission order even though the work
// itself runs off the request path.
type CommentService struct {
	store    repository.CommentStore
	cache    repository.CommentCache
	bus      *bus.Bus
	producer queue.Producer
	policy   comment.Policy
	log      *logrus.Logger

	sideEffects chan sideEffect
	closeOnce   sync.Once
}

// sideEffect is one record's deferred work: the cache write always runs, the
// durable enqueue only when the persistence policy selected the record.
type sideEffect struct {
	rec     *models.Comment
	persist bool
}

// NewCommentService wires the ingestion flow and starts its side-effect
// worker.
func NewCommentService(
	store repository.CommentStore,
	cache repository.CommentCache,
	b *bus.Bus,
	producer queue.Producer,
	policy comment.Policy,
	log *logrus.Logger,
) *CommentService {
	s := &CommentService{
		store:       store,
		cache:       cache,
		bus:         b,
		producer:    producer,
		policy:      policy,
		log:         log,
		sideEffects: make(chan sideEffect, sideEffectQueueDepth),
	}
	go s.runSideEffects()
	return s
}

// Close stops the side-effect worker. Records already handed off are still
// processed.
func (s *CommentService) Close() {
	s.closeOnce.Do(func() { close(s.sideEffects) })
}

// Submit ingests one comment. truncate selects the overlong-content policy of
// the calling path: the HTTP path rejects, the socket path truncates.
// Validation errors are the only failures surfaced to the caller; everything
// past the broadcast is best-effort.
func (s *CommentService) Submit(ctx context.Context, req SubmitRequest, source string, truncate bool) (*models.Comment, error) {
	rec, err := comment.Build(comment.BuildInput{
		VideoID:       req.VideoID,
		UserID:        req.UserID,
		Content:       req.Content,
		ReplyToID:     req.ReplyToID,
		ReplyToUserID: req.ReplyToUserID,
		Scope:         req.Scope,
	}, truncate)
	if err != nil {
		return nil, err
	}

	s.broadcast(ctx, rec)
	metrics.CommentsIngested.WithLabelValues(source).Inc()

	// The handoff happens on the request path so that same-room records enter
	// the worker's lane in submission order; the select keeps the caller
	// non-blocking when the worker falls behind.
	eff := sideEffect{rec: rec, persist: s.policy.ShouldPersist(req.Persist)}
	select {
	case s.sideEffects <- eff:
	default:
		s.log.WithField("comment", rec.ID).
			Warn("side-effect queue full, comment delivered but not cached or persisted")
	}

	return rec, nil
}

// runSideEffects drains the handoff channel one record at a time, cache write
// first, then the durable enqueue. A single worker keeps both backends
// observing records in submission order.
func (s *CommentService) runSideEffects() {
	for eff := range s.sideEffects {
		s.recordInCache(eff.rec)
		if eff.persist {
			s.enqueue(eff.rec)
		}
	}
}

// ListRecent returns up to limit recent comments for a room in chronological
// order, cache-first with a primary-store fallback. The limit is clamped to
// maxListLimit.
func (s *CommentService) ListRecent(ctx context.Context, scope models.Scope, videoID string, limit int) ([]*models.Comment, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	if scope == "" {
		scope = models.ScopeLive
	}

	comments, err := s.cache.Recent(ctx, scope, videoID, limit)
	if err != nil {
		s.log.WithError(err).WithField("room", videoID).
			Warn("hot cache read failed, falling back to primary store")
	}
	if err == nil && len(comments) > 0 {
		return comments, nil
	}
	return s.store.ListRecent(ctx, videoID, limit)
}

func (s *CommentService) broadcast(ctx context.Context, rec *models.Comment) {
	payload, err := json.Marshal(models.BroadcastPayload{
		Type: models.PayloadTypeComment,
		Item: rec,
	})
	if err != nil {
		s.log.WithError(err).Error("marshal broadcast payload")
		return
	}
	s.bus.Publish(ctx, rec.VideoID, payload)

	// A reply is additionally delivered on the target author's personal
	// channel.
	if rec.ReplyToUserID != "" {
		reply, err := json.Marshal(models.BroadcastPayload{
			Type: models.PayloadTypeReply,
			Item: rec,
		})
		if err != nil {
			s.log.WithError(err).Error("marshal reply payload")
			return
		}
		s.bus.Publish(ctx, personalRoom(rec.ReplyToUserID), reply)
	}
}

// personalRoom names the per-author channel used for directed reply
// notifications.
func personalRoom(userID string) string {
	return "user:" + userID
}

// recordInCache runs on the side-effect worker: a cache failure is logged
// and dropped, never surfaced to the request that produced the comment.
func (s *CommentService) recordInCache(rec *models.Comment) {
	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()

	if err := s.cache.Record(ctx, rec.Scope, rec.VideoID, rec); err != nil {
		metrics.CacheWriteFailures.Inc()
		s.log.WithError(err).WithField("room", rec.VideoID).
			Warn("hot cache write failed, dropping")
	}
}

// enqueue runs on the side-effect worker: the comment was already delivered,
// so enqueue failures are logged and swallowed.
func (s *CommentService) enqueue(rec *models.Comment) {
	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()

	if err := s.producer.Enqueue(ctx, rec); err != nil {
		s.log.WithError(err).WithField("comment", rec.ID).
			Warn("durable enqueue failed, comment not persisted")
		return
	}
	metrics.PersistEnqueued.Inc()
}
