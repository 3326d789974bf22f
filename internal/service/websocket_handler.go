package service

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/streamforge/comment-service/internal/models"
	"github.com/streamforge/comment-service/internal/server"
)

// WebSocketHandler upgrades streaming connections and routes their inbound
// comment messages through the same ingestion flow as the HTTP path.
type WebSocketHandler struct {
	comments *CommentService
	hub      *server.Hub
	log      *logrus.Logger
}

// NewWebSocketHandler builds the socket ingestion surface.
func NewWebSocketHandler(comments *CommentService, hub *server.Hub, log *logrus.Logger) *WebSocketHandler {
	return &WebSocketHandler{comments: comments, hub: hub, log: log}
}

// HandleWebSocket serves GET /ws?video_id=&user_id=&scope=. The connection is
// scoped to one room for its whole lifetime; the client additionally joins
// its personal channel so directed replies reach it from any room.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	videoID := r.URL.Query().Get("video_id")
	if videoID == "" {
		http.Error(w, "video_id is required", http.StatusBadRequest)
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}
	scope := models.Scope(r.URL.Query().Get("scope"))
	if scope == "" {
		scope = models.ScopeLive
	}
	if !scope.Valid() {
		http.Error(w, "scope must be live or vod", http.StatusBadRequest)
		return
	}

	conn, err := server.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := server.NewClient(conn, h.hub, h.log, userID, videoID, scope, h.onMessage)
	h.hub.Join(client, videoID)
	h.hub.Join(client, personalRoom(userID))

	client.Run()
}

// onMessage ingests one inbound socket comment. The socket path truncates
// overlong content instead of rejecting; other validation failures are
// logged and dropped, sockets have no error reply channel.
func (h *WebSocketHandler) onMessage(c *server.Client, msg server.InboundMessage) {
	_, err := h.comments.Submit(context.Background(), SubmitRequest{
		VideoID:       c.VideoID(),
		UserID:        c.UserID(),
		Content:       msg.Content,
		ReplyToID:     msg.ReplyToID,
		ReplyToUserID: msg.ReplyToUserID,
		Scope:         c.Scope(),
	}, SourceSocket, true)
	if err != nil {
		h.log.WithError(err).WithField("user", c.UserID()).
			Debug("dropping invalid socket comment")
	}
}
