package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ty2499/filiova-learning-platform-sub010/internal/models"
	"github.com/ty2499/filiova-learning-platform-sub010/internal/store"
	"github.com/ty2499/filiova-learning-platform-sub010/internal/testutil"
)

func setupStore(t *testing.T) (*Store, context.Context) {
	t.Helper()

	if os.Getenv("SKIP_DB_TESTS") != "" {
		t.Skip("Skipping database test: SKIP_DB_TESTS is set")
	}

	pool := testutil.NewTestDB(t)
	return NewStore(pool), context.Background()
}

func newAccount(t *testing.T, ctx context.Context, s *Store, fromAddress string) *models.MailAccount {
	t.Helper()

	account := &models.MailAccount{
		DisplayName:  "Support",
		FromAddress:  fromAddress,
		IMAPHost:     "imap.example.com",
		IMAPPort:     993,
		IMAPUsername: "support",
		IMAPPassword: "secret",
		IMAPTLS:      true,
		SMTPHost:     "smtp.example.com",
		SMTPPort:     465,
		SMTPUsername: "support",
		SMTPPassword: "secret",
		SMTPTLS:      true,
	}
	require.NoError(t, s.SaveAccount(ctx, account))
	require.NotEmpty(t, account.ID)
	return account
}

func newMessage(accountID, messageID, subject string, receivedAt time.Time) *models.Message {
	return &models.Message{
		AccountID:   accountID,
		MessageID:   messageID,
		FromAddress: "alice@example.com",
		ToAddresses: []string{"support@example.com"},
		Subject:     subject,
		BodyText:    "hello",
		ReceivedAt:  receivedAt,
	}
}

func TestAccountLifecycle(t *testing.T) {
	s, ctx := setupStore(t)

	account := newAccount(t, ctx, s, "support@example.com")

	t.Run("get", func(t *testing.T) {
		got, err := s.GetAccount(ctx, account.ID)
		require.NoError(t, err)
		assert.Equal(t, "Support", got.DisplayName)
		assert.Equal(t, "support@example.com", got.FromAddress)
		assert.Equal(t, models.SyncStatusIdle, got.SyncStatus)
		assert.False(t, got.CreatedAt.IsZero())
	})

	t.Run("get unknown", func(t *testing.T) {
		_, err := s.GetAccount(ctx, "00000000-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, store.ErrAccountNotFound)
	})

	t.Run("update keeps id", func(t *testing.T) {
		account.DisplayName = "Support Desk"
		account.Signature = "Support Team"
		require.NoError(t, s.SaveAccount(ctx, account))

		got, err := s.GetAccount(ctx, account.ID)
		require.NoError(t, err)
		assert.Equal(t, "Support Desk", got.DisplayName)
		assert.Equal(t, "Support Team", got.Signature)
	})

	t.Run("list", func(t *testing.T) {
		newAccount(t, ctx, s, "billing@example.com")

		accounts, err := s.ListAccounts(ctx)
		require.NoError(t, err)
		require.Len(t, accounts, 2)
		assert.Equal(t, account.ID, accounts[0].ID)
	})

	t.Run("sync status", func(t *testing.T) {
		require.NoError(t, s.SetAccountSyncStatus(ctx, account.ID, models.SyncStatusError, "dial tcp: refused"))

		got, err := s.GetAccount(ctx, account.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SyncStatusError, got.SyncStatus)
		assert.Equal(t, "dial tcp: refused", got.LastSyncError)

		err = s.SetAccountSyncStatus(ctx, "00000000-0000-0000-0000-000000000000", models.SyncStatusIdle, "")
		assert.ErrorIs(t, err, store.ErrAccountNotFound)
	})
}

func TestInsertMessageIdempotency(t *testing.T) {
	s, ctx := setupStore(t)

	account := newAccount(t, ctx, s, "support@example.com")
	other := newAccount(t, ctx, s, "billing@example.com")

	now := time.Now().UTC()

	message := newMessage(account.ID, "<m1@example.com>", "Hello", now)
	require.NoError(t, s.InsertMessage(ctx, message))
	require.NotEmpty(t, message.ID)

	t.Run("duplicate", func(t *testing.T) {
		dup := newMessage(account.ID, "<m1@example.com>", "Hello again", now)
		err := s.InsertMessage(ctx, dup)
		assert.ErrorIs(t, err, store.ErrDuplicateMessage)

		got, err := s.GetMessage(ctx, message.ID)
		require.NoError(t, err)
		assert.Equal(t, "Hello", got.Subject)
	})

	t.Run("same message id on another account", func(t *testing.T) {
		second := newMessage(other.ID, "<m1@example.com>", "Hello", now)
		require.NoError(t, s.InsertMessage(ctx, second))
		assert.NotEqual(t, message.ID, second.ID)
	})

	t.Run("lookup by message id", func(t *testing.T) {
		got, err := s.GetMessageByMessageID(ctx, account.ID, "<m1@example.com>")
		require.NoError(t, err)
		assert.Equal(t, message.ID, got.ID)

		_, err = s.GetMessageByMessageID(ctx, account.ID, "<missing@example.com>")
		assert.ErrorIs(t, err, store.ErrMessageNotFound)
	})

	t.Run("attachments round trip", func(t *testing.T) {
		withAttachment := newMessage(account.ID, "<m2@example.com>", "Invoice", now)
		withAttachment.Attachments = []models.Attachment{
			{Filename: "invoice.pdf", ContentType: "application/pdf", SizeBytes: 2048},
		}
		require.NoError(t, s.InsertMessage(ctx, withAttachment))

		got, err := s.GetMessage(ctx, withAttachment.ID)
		require.NoError(t, err)
		require.Len(t, got.Attachments, 1)
		assert.Equal(t, "invoice.pdf", got.Attachments[0].Filename)
	})
}

func TestListMessagesFilters(t *testing.T) {
	s, ctx := setupStore(t)

	account := newAccount(t, ctx, s, "support@example.com")
	other := newAccount(t, ctx, s, "billing@example.com")

	base := time.Now().UTC().Add(-time.Hour)

	oldest := newMessage(account.ID, "<m1@example.com>", "First", base)
	middle := newMessage(account.ID, "<m2@example.com>", "Second", base.Add(time.Minute))
	newest := newMessage(account.ID, "<m3@example.com>", "Third", base.Add(2*time.Minute))
	foreign := newMessage(other.ID, "<m4@example.com>", "Other", base.Add(3*time.Minute))

	for _, m := range []*models.Message{oldest, middle, newest, foreign} {
		require.NoError(t, s.InsertMessage(ctx, m))
	}
	require.NoError(t, s.SetMessageFlag(ctx, middle.ID, models.FlagRead, true))
	require.NoError(t, s.SetMessageFlag(ctx, oldest.ID, models.FlagTrashed, true))

	t.Run("newest first per account", func(t *testing.T) {
		messages, err := s.ListMessages(ctx, store.ListMessagesOptions{AccountID: account.ID})
		require.NoError(t, err)
		require.Len(t, messages, 2)
		assert.Equal(t, "Third", messages[0].Subject)
		assert.Equal(t, "Second", messages[1].Subject)
	})

	t.Run("include trashed", func(t *testing.T) {
		messages, err := s.ListMessages(ctx, store.ListMessagesOptions{
			AccountID:      account.ID,
			IncludeTrashed: true,
		})
		require.NoError(t, err)
		assert.Len(t, messages, 3)
	})

	t.Run("unread only", func(t *testing.T) {
		messages, err := s.ListMessages(ctx, store.ListMessagesOptions{
			AccountID:  account.ID,
			UnreadOnly: true,
		})
		require.NoError(t, err)
		require.Len(t, messages, 1)
		assert.Equal(t, "Third", messages[0].Subject)
	})

	t.Run("limit and offset", func(t *testing.T) {
		messages, err := s.ListMessages(ctx, store.ListMessagesOptions{Limit: 2})
		require.NoError(t, err)
		require.Len(t, messages, 2)
		assert.Equal(t, "Other", messages[0].Subject)

		messages, err = s.ListMessages(ctx, store.ListMessagesOptions{Limit: 2, Offset: 2})
		require.NoError(t, err)
		require.Len(t, messages, 1)
		assert.Equal(t, "Second", messages[0].Subject)
	})

	t.Run("unread count", func(t *testing.T) {
		count, err := s.UnreadCount(ctx, account.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		count, err = s.UnreadCount(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("mark messages read", func(t *testing.T) {
		require.NoError(t, s.MarkMessagesRead(ctx, []string{newest.ID, foreign.ID}))
		require.NoError(t, s.MarkMessagesRead(ctx, nil))

		count, err := s.UnreadCount(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})
}

func TestSetMessageFlag(t *testing.T) {
	s, ctx := setupStore(t)

	account := newAccount(t, ctx, s, "support@example.com")
	message := newMessage(account.ID, "<m1@example.com>", "Hello", time.Now().UTC())
	require.NoError(t, s.InsertMessage(ctx, message))

	flags := []models.Flag{
		models.FlagRead,
		models.FlagReplied,
		models.FlagStarred,
		models.FlagSpam,
		models.FlagArchived,
		models.FlagTrashed,
	}
	for _, flag := range flags {
		require.NoError(t, s.SetMessageFlag(ctx, message.ID, flag, true))
	}

	got, err := s.GetMessage(ctx, message.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRead)
	assert.True(t, got.IsReplied)
	assert.True(t, got.IsStarred)
	assert.True(t, got.IsSpam)
	assert.True(t, got.IsArchived)
	assert.True(t, got.IsTrashed)

	require.NoError(t, s.SetMessageFlag(ctx, message.ID, models.FlagStarred, false))
	got, err = s.GetMessage(ctx, message.ID)
	require.NoError(t, err)
	assert.False(t, got.IsStarred)

	err = s.SetMessageFlag(ctx, message.ID, models.Flag("bogus"), true)
	assert.Error(t, err)

	err = s.SetMessageFlag(ctx, "00000000-0000-0000-0000-000000000000", models.FlagRead, true)
	assert.ErrorIs(t, err, store.ErrMessageNotFound)
}

func TestTrashMissing(t *testing.T) {
	s, ctx := setupStore(t)

	account := newAccount(t, ctx, s, "support@example.com")
	other := newAccount(t, ctx, s, "billing@example.com")

	now := time.Now().UTC()
	kept := newMessage(account.ID, "<m1@example.com>", "Kept", now)
	gone := newMessage(account.ID, "<m2@example.com>", "Gone", now)
	foreign := newMessage(other.ID, "<m3@example.com>", "Foreign", now)
	shadow := newMessage(account.ID, "<shadow@example.com>", "Sent copy", now)
	shadow.IsOutbound = true
	for _, m := range []*models.Message{kept, gone, foreign, shadow} {
		require.NoError(t, s.InsertMessage(ctx, m))
	}

	trashed, err := s.TrashMissing(ctx, account.ID, []string{"<m1@example.com>"})
	require.NoError(t, err)
	assert.Equal(t, 1, trashed)

	got, err := s.GetMessage(ctx, gone.ID)
	require.NoError(t, err)
	assert.True(t, got.IsTrashed)

	got, err = s.GetMessage(ctx, kept.ID)
	require.NoError(t, err)
	assert.False(t, got.IsTrashed)

	got, err = s.GetMessage(ctx, foreign.ID)
	require.NoError(t, err)
	assert.False(t, got.IsTrashed)

	// Outbound shadows never appear in a fetch and must survive.
	got, err = s.GetMessage(ctx, shadow.ID)
	require.NoError(t, err)
	assert.False(t, got.IsTrashed)
	assert.True(t, got.IsOutbound)

	// Already trashed rows do not count again.
	trashed, err = s.TrashMissing(ctx, account.ID, []string{"<m1@example.com>"})
	require.NoError(t, err)
	assert.Equal(t, 0, trashed)
}

func TestReplies(t *testing.T) {
	s, ctx := setupStore(t)

	account := newAccount(t, ctx, s, "support@example.com")
	now := time.Now().UTC()

	parent := newMessage(account.ID, "<m1@example.com>", "Question", now)
	sibling := newMessage(account.ID, "<m2@example.com>", "Unrelated", now)
	require.NoError(t, s.InsertMessage(ctx, parent))
	require.NoError(t, s.InsertMessage(ctx, sibling))

	second := &models.Reply{
		MessageID:   parent.ID,
		AccountID:   account.ID,
		ToAddresses: []string{"alice@example.com"},
		Subject:     "Re: Question",
		BodyText:    "Following up.",
		SentBy:      "agent",
		SentAt:      now.Add(2 * time.Minute),
		SendStatus:  models.SendStatusSent,
	}
	first := &models.Reply{
		MessageID:   parent.ID,
		AccountID:   account.ID,
		ToAddresses: []string{"alice@example.com"},
		Subject:     "Re: Question",
		BodyText:    "On it.",
		Attachments: []models.ReplyAttachment{{Filename: "doc.pdf", URL: "https://files.example.com/doc.pdf"}},
		SentBy:      "agent",
		SentAt:      now.Add(time.Minute),
		SendStatus:  models.SendStatusSent,
	}
	require.NoError(t, s.InsertReply(ctx, second))
	require.NoError(t, s.InsertReply(ctx, first))

	t.Run("batch list ordered by sent_at", func(t *testing.T) {
		replies, err := s.ListRepliesForMessages(ctx, []string{parent.ID, sibling.ID})
		require.NoError(t, err)
		require.Len(t, replies[parent.ID], 2)
		assert.Empty(t, replies[sibling.ID])
		assert.Equal(t, "On it.", replies[parent.ID][0].BodyText)
		assert.Equal(t, "Following up.", replies[parent.ID][1].BodyText)
		require.Len(t, replies[parent.ID][0].Attachments, 1)
		assert.Equal(t, "doc.pdf", replies[parent.ID][0].Attachments[0].Filename)
	})

	t.Run("empty input", func(t *testing.T) {
		replies, err := s.ListRepliesForMessages(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, replies)
	})

	t.Run("delete for message", func(t *testing.T) {
		require.NoError(t, s.DeleteRepliesForMessage(ctx, parent.ID))

		replies, err := s.ListRepliesForMessages(ctx, []string{parent.ID})
		require.NoError(t, err)
		assert.Empty(t, replies[parent.ID])
	})
}
