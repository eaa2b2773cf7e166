package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ty2499/filiova-learning-platform-sub010/internal/models"
	"github.com/ty2499/filiova-learning-platform-sub010/internal/store"
)

// MessagesHandler handles message listing and flag mutation requests.
type MessagesHandler struct {
	store  store.Store
	logger *zap.Logger
}

// NewMessagesHandler creates a new MessagesHandler instance.
func NewMessagesHandler(st store.Store, logger *zap.Logger) *MessagesHandler {
	return &MessagesHandler{store: st, logger: logger}
}

// pathFlags maps URL actions to message flags. Read is handled by the
// thread open endpoint in bulk, but stays addressable per message too.
var pathFlags = map[string]models.Flag{
	"read":    models.FlagRead,
	"replied": models.FlagReplied,
	"star":    models.FlagStarred,
	"spam":    models.FlagSpam,
	"archive": models.FlagArchived,
	"trash":   models.FlagTrashed,
}

// GetMessages returns messages newest first with their replies attached.
// Query parameters: accountId, limit, offset, unreadOnly=true,
// includeTrashed=true.
func (h *MessagesHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, offset := ParseListParams(r, 100)
	opts := store.ListMessagesOptions{
		AccountID:      r.URL.Query().Get("accountId"),
		Limit:          limit,
		Offset:         offset,
		UnreadOnly:     r.URL.Query().Get("unreadOnly") == "true",
		IncludeTrashed: r.URL.Query().Get("includeTrashed") == "true",
	}

	messages, err := h.store.ListMessages(ctx, opts)
	if err != nil {
		h.logger.Error("failed to list messages", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	messageIDs := make([]string, 0, len(messages))
	for _, msg := range messages {
		messageIDs = append(messageIDs, msg.ID)
	}
	replies, err := h.store.ListRepliesForMessages(ctx, messageIDs)
	if err != nil {
		h.logger.Error("failed to list replies", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	for _, msg := range messages {
		msg.Replies = replies[msg.ID]
	}

	WriteJSONResponse(w, map[string]any{"messages": messages})
}

// GetMessage returns one message with its replies.
func (h *MessagesHandler) GetMessage(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()

	message, err := h.store.GetMessage(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrMessageNotFound) {
			http.Error(w, "Message not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to get message", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	replies, err := h.store.ListRepliesForMessages(ctx, []string{message.ID})
	if err != nil {
		h.logger.Error("failed to list replies", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	message.Replies = replies[message.ID]

	WriteJSONResponse(w, message)
}

// UpdateFlag toggles one message flag. The body may carry {"flag": false}
// to clear a flag; the default is setting it. Trashing a message also
// removes its replies, matching the manual delete semantics.
func (h *MessagesHandler) UpdateFlag(w http.ResponseWriter, r *http.Request, id, action string) {
	ctx := r.Context()

	flag, ok := pathFlags[action]
	if !ok {
		http.Error(w, "Unknown flag action", http.StatusNotFound)
		return
	}

	value := true
	if r.ContentLength > 0 {
		var body struct {
			Flag *bool `json:"flag"`
		}
		if !DecodeJSONBody(w, r, &body) {
			return
		}
		if body.Flag != nil {
			value = *body.Flag
		}
	}

	if err := h.store.SetMessageFlag(ctx, id, flag, value); err != nil {
		if errors.Is(err, store.ErrMessageNotFound) {
			http.Error(w, "Message not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to set message flag",
			zap.String("message_id", id), zap.String("flag", string(flag)), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if flag == models.FlagTrashed && value {
		if err := h.store.DeleteRepliesForMessage(ctx, id); err != nil {
			h.logger.Error("failed to delete replies for trashed message",
				zap.String("message_id", id), zap.Error(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
	}

	WriteJSONResponse(w, map[string]any{
		"id":     id,
		"flag":   string(flag),
		"value":  value,
		"status": "ok",
	})
}

// GetUnreadCount returns the number of unread, non-trashed messages,
// optionally scoped to one account.
func (h *MessagesHandler) GetUnreadCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	count, err := h.store.UnreadCount(ctx, r.URL.Query().Get("accountId"))
	if err != nil {
		h.logger.Error("failed to get unread count", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	WriteJSONResponse(w, map[string]int{"unreadCount": count})
}
