package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ty2499/filiova-learning-platform-sub010/internal/dispatch"
	"github.com/ty2499/filiova-learning-platform-sub010/internal/models"
	"github.com/ty2499/filiova-learning-platform-sub010/internal/store"
)

// DispatchHandler handles outbound mail requests.
type DispatchHandler struct {
	dispatcher *dispatch.Dispatcher
	logger     *zap.Logger
}

// NewDispatchHandler creates a new DispatchHandler instance.
func NewDispatchHandler(dispatcher *dispatch.Dispatcher, logger *zap.Logger) *DispatchHandler {
	return &DispatchHandler{dispatcher: dispatcher, logger: logger}
}

type replyRequestBody struct {
	To          []string                 `json:"to"`
	CC          []string                 `json:"cc"`
	Subject     string                   `json:"subject"`
	BodyText    string                   `json:"bodyText"`
	BodyHTML    string                   `json:"bodyHtml"`
	Attachments []models.ReplyAttachment `json:"attachments"`
	SentBy      string                   `json:"sentBy"`
}

// PostReply sends a reply to the message in the URL path.
func (h *DispatchHandler) PostReply(w http.ResponseWriter, r *http.Request, messageID string) {
	var body replyRequestBody
	if !DecodeJSONBody(w, r, &body) {
		return
	}

	reply, err := h.dispatcher.SendReply(r.Context(), dispatch.ReplyRequest{
		MessageID:   messageID,
		To:          body.To,
		CC:          body.CC,
		Subject:     body.Subject,
		BodyText:    body.BodyText,
		BodyHTML:    body.BodyHTML,
		Attachments: body.Attachments,
		SentBy:      body.SentBy,
	})
	if err != nil {
		switch {
		case errors.Is(err, dispatch.ErrInvalidRequest):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, store.ErrMessageNotFound):
			http.Error(w, "Message not found", http.StatusNotFound)
		default:
			h.logger.Error("reply dispatch failed",
				zap.String("message_id", messageID), zap.Error(err))
			http.Error(w, "Failed to send reply", http.StatusBadGateway)
		}
		return
	}

	WriteJSONStatus(w, http.StatusCreated, reply)
}

type sendRequestBody struct {
	AccountID   string                   `json:"accountId"`
	To          []string                 `json:"to"`
	CC          []string                 `json:"cc"`
	Subject     string                   `json:"subject"`
	BodyText    string                   `json:"bodyText"`
	BodyHTML    string                   `json:"bodyHtml"`
	Attachments []models.ReplyAttachment `json:"attachments"`
	SentBy      string                   `json:"sentBy"`
}

// PostSend sends a new message. Recipients may be addresses or directory
// group tags. Partial failures still return 200 with the tally; the caller
// inspects successCount and failureCount.
func (h *DispatchHandler) PostSend(w http.ResponseWriter, r *http.Request) {
	var body sendRequestBody
	if !DecodeJSONBody(w, r, &body) {
		return
	}

	result, err := h.dispatcher.SendNew(r.Context(), dispatch.SendRequest{
		AccountID:   body.AccountID,
		To:          body.To,
		CC:          body.CC,
		Subject:     body.Subject,
		BodyText:    body.BodyText,
		BodyHTML:    body.BodyHTML,
		Attachments: body.Attachments,
		SentBy:      body.SentBy,
	})
	if err != nil {
		switch {
		case errors.Is(err, dispatch.ErrInvalidRequest):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, store.ErrAccountNotFound):
			http.Error(w, "Account not found", http.StatusNotFound)
		default:
			h.logger.Error("send dispatch failed", zap.Error(err))
			http.Error(w, "Failed to send message", http.StatusBadGateway)
		}
		return
	}

	WriteJSONResponse(w, result)
}
