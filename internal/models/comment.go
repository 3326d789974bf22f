package models

import "time"

// Scope partitions hot-cache backlogs between live broadcasts and VOD playback.
type Scope string

const (
	ScopeLive Scope = "live"
	ScopeVOD  Scope = "vod"
)

// Valid reports whether s is one of the known scope tags.
func (s Scope) Valid() bool {
	return s == ScopeLive || s == ScopeVOD
}

// Comment is the canonical record for a single chat comment. The ID is minted
// once, at ingestion, by whichever path first builds the record; the
// persistence pipeline deduplicates on it during replay.
type Comment struct {
	ID            string    `json:"id" dynamodbav:"id"`
	VideoID       string    `json:"video_id" dynamodbav:"video_id"`
	UserID        string    `json:"user_id" dynamodbav:"user_id"`
	Content       string    `json:"content" dynamodbav:"content"`
	ReplyToID     string    `json:"reply_to_id,omitempty" dynamodbav:"reply_to_id,omitempty"`
	ReplyToUserID string    `json:"reply_to_user_id,omitempty" dynamodbav:"reply_to_user_id,omitempty"`
	Scope         Scope     `json:"scope,omitempty" dynamodbav:"-"`
	CreatedAt     time.Time `json:"created_at" dynamodbav:"created_at"`
}

// Broadcast payload types sent to room subscribers.
const (
	PayloadTypeComment = "comment"
	PayloadTypeReply   = "reply"
)

// BroadcastPayload is the JSON envelope written to every socket subscriber of
// a room. Type is "comment" for room-wide fanout and "reply" when the payload
// is directed at the reply target's personal channel.
type BroadcastPayload struct {
	Type string   `json:"type"`
	Item *Comment `json:"item"`
}
