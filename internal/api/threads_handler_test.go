package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ty2499/filiova-learning-platform-sub010/internal/models"
	"github.com/ty2499/filiova-learning-platform-sub010/internal/store/memory"
	"github.com/ty2499/filiova-learning-platform-sub010/internal/thread"
)

func newThreadsFixture(t *testing.T) (*memory.Store, *ThreadsHandler) {
	t.Helper()
	ctx := context.Background()

	st := memory.NewStore()
	require.NoError(t, st.SaveAccount(ctx, &models.MailAccount{
		ID: "acc-1", FromAddress: "support@example.com",
	}))

	base := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	messages := []*models.Message{
		{ID: "m1", AccountID: "acc-1", MessageID: "<1@x.com>", FromAddress: "a@x.com", Subject: "Topic", ReceivedAt: base},
		{ID: "m2", AccountID: "acc-1", MessageID: "<2@x.com>", FromAddress: "a@x.com", Subject: "Re: Topic", ReceivedAt: base.Add(time.Hour)},
	}
	for _, msg := range messages {
		require.NoError(t, st.InsertMessage(ctx, msg))
	}

	return st, NewThreadsHandler(thread.NewService(st), zap.NewNop())
}

func TestThreadsHandlerGetThreads(t *testing.T) {
	_, handler := newThreadsFixture(t)

	req := httptest.NewRequest("GET", "/api/v1/threads", nil)
	rr := httptest.NewRecorder()
	handler.GetThreads(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Threads []*thread.Conversation `json:"threads"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Threads, 1)
	assert.Equal(t, "topic", body.Threads[0].Key)
	assert.Len(t, body.Threads[0].Timeline, 2)
	assert.Equal(t, 2, body.Threads[0].UnreadCount)
}

func TestThreadsHandlerOpenThread(t *testing.T) {
	st, handler := newThreadsFixture(t)
	ctx := context.Background()

	t.Run("marks thread read", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/v1/threads/open", strings.NewReader(`{"threadKey":"topic"}`))
		rr := httptest.NewRecorder()
		handler.OpenThread(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)

		var conv thread.Conversation
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &conv))
		assert.Equal(t, 0, conv.UnreadCount)

		msg, err := st.GetMessage(ctx, "m1")
		require.NoError(t, err)
		assert.True(t, msg.IsRead)
	})

	t.Run("missing key", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/v1/threads/open", strings.NewReader(`{}`))
		rr := httptest.NewRecorder()
		handler.OpenThread(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unknown key", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/v1/threads/open", strings.NewReader(`{"threadKey":"nope"}`))
		rr := httptest.NewRecorder()
		handler.OpenThread(rr, req)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/v1/threads/open", strings.NewReader(`{`))
		rr := httptest.NewRecorder()
		handler.OpenThread(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
