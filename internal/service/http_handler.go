package service

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/streamforge/comment-service/internal/comment"
	"github.com/streamforge/comment-service/internal/models"
)

// HTTPHandler serves the request/response ingestion and listing endpoints.
type HTTPHandler struct {
	comments *CommentService
	log      *logrus.Logger
}

// NewHTTPHandler builds the HTTP surface over the comment service.
func NewHTTPHandler(comments *CommentService, log *logrus.Logger) *HTTPHandler {
	return &HTTPHandler{comments: comments, log: log}
}

type submitCommentRequest struct {
	VideoID       string       `json:"video_id"`
	UserID        string       `json:"user_id"`
	Content       string       `json:"content"`
	ReplyToID     string       `json:"reply_to_id,omitempty"`
	ReplyToUserID string       `json:"reply_to_user_id,omitempty"`
	Scope         models.Scope `json:"scope,omitempty"`
	Persist       bool         `json:"persist,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// SubmitComment handles POST /api/comments. The response carries the
// canonical record as soon as the broadcast is issued; durable persistence
// happens behind it.
func (h *HTTPHandler) SubmitComment(w http.ResponseWriter, r *http.Request) {
	var req submitCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Scope != "" && !req.Scope.Valid() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "scope must be live or vod"})
		return
	}

	rec, err := h.comments.Submit(r.Context(), SubmitRequest{
		VideoID:       req.VideoID,
		UserID:        req.UserID,
		Content:       req.Content,
		ReplyToID:     req.ReplyToID,
		ReplyToUserID: req.ReplyToUserID,
		Scope:         req.Scope,
		Persist:       req.Persist,
	}, SourceHTTP, false)
	if err != nil {
		if isValidationError(err) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		h.log.WithError(err).Error("comment submission failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	writeJSON(w, http.StatusCreated, rec)
}

// ListComments handles GET /api/comments?video_id=&scope=&limit=.
func (h *HTTPHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	videoID := r.URL.Query().Get("video_id")
	if videoID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "video_id is required"})
		return
	}

	scope := models.Scope(r.URL.Query().Get("scope"))
	if scope != "" && !scope.Valid() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "scope must be live or vod"})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be an integer"})
			return
		}
		limit = parsed
	}

	comments, err := h.comments.ListRecent(r.Context(), scope, videoID, limit)
	if err != nil {
		h.log.WithError(err).WithField("room", videoID).Error("listing comments failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	if comments == nil {
		comments = []*models.Comment{}
	}

	writeJSON(w, http.StatusOK, comments)
}

func isValidationError(err error) bool {
	return errors.Is(err, comment.ErrMissingVideoID) ||
		errors.Is(err, comment.ErrMissingUserID) ||
		errors.Is(err, comment.ErrEmptyContent) ||
		errors.Is(err, comment.ErrContentTooLong)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
