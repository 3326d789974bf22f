package comment

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/streamforge/comment-service/internal/models"
)

// MaxContentLength bounds comment bodies, measured in runes.
const MaxContentLength = 500

var (
	ErrMissingVideoID = errors.New("video_id is required")
	ErrMissingUserID  = errors.New("user_id is required")
	ErrEmptyContent   = errors.New("content is required")
	ErrContentTooLong = errors.New("content exceeds maximum length")
)

// BuildInput carries the caller-supplied fields of a submission. Scope is
// optional and defaults to live.
type BuildInput struct {
	VideoID       string
	UserID        string
	Content       string
	ReplyToID     string
	ReplyToUserID string
	Scope         models.Scope
}

// Build assembles the canonical record for a submission: a fresh id, a UTC
// ingestion timestamp, and reply linkage carried through untouched. No I/O.
//
// Overlong content is handled according to truncate: the HTTP path passes
// false and gets ErrContentTooLong back, the socket path passes true and the
// body is cut at MaxContentLength runes.
func Build(in BuildInput, truncate bool) (*models.Comment, error) {
	if in.VideoID == "" {
		return nil, ErrMissingVideoID
	}
	if in.UserID == "" {
		return nil, ErrMissingUserID
	}
	if in.Content == "" {
		return nil, ErrEmptyContent
	}

	content := in.Content
	if runes := []rune(content); len(runes) > MaxContentLength {
		if !truncate {
			return nil, ErrContentTooLong
		}
		content = string(runes[:MaxContentLength])
	}

	scope := in.Scope
	if scope == "" {
		scope = models.ScopeLive
	}

	return &models.Comment{
		ID:            uuid.New().String(),
		VideoID:       in.VideoID,
		UserID:        in.UserID,
		Content:       content,
		ReplyToID:     in.ReplyToID,
		ReplyToUserID: in.ReplyToUserID,
		Scope:         scope,
		CreatedAt:     time.Now().UTC(),
	}, nil
}
