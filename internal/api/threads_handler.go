package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ty2499/filiova-learning-platform-sub010/internal/thread"
)

// ThreadsHandler handles conversation listing and opening.
type ThreadsHandler struct {
	threads *thread.Service
	logger  *zap.Logger
}

// NewThreadsHandler creates a new ThreadsHandler instance.
func NewThreadsHandler(threads *thread.Service, logger *zap.Logger) *ThreadsHandler {
	return &ThreadsHandler{threads: threads, logger: logger}
}

// GetThreads returns all conversations, newest activity first. The
// optional accountId parameter narrows the scope to one mailbox.
func (h *ThreadsHandler) GetThreads(w http.ResponseWriter, r *http.Request) {
	conversations, err := h.threads.List(r.Context(), r.URL.Query().Get("accountId"))
	if err != nil {
		h.logger.Error("failed to list threads", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	WriteJSONResponse(w, map[string]any{"threads": conversations})
}

type openThreadBody struct {
	ThreadKey string `json:"threadKey"`
	AccountID string `json:"accountId"`
}

// OpenThread marks the conversation's unread inbound messages read and
// returns the refreshed conversation.
func (h *ThreadsHandler) OpenThread(w http.ResponseWriter, r *http.Request) {
	var body openThreadBody
	if !DecodeJSONBody(w, r, &body) {
		return
	}
	if body.ThreadKey == "" {
		http.Error(w, "threadKey is required", http.StatusBadRequest)
		return
	}

	conversation, err := h.threads.Open(r.Context(), body.AccountID, body.ThreadKey)
	if err != nil {
		if errors.Is(err, thread.ErrThreadNotFound) {
			http.Error(w, "Thread not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to open thread",
			zap.String("thread_key", body.ThreadKey), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	WriteJSONResponse(w, conversation)
}
