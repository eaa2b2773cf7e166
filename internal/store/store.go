// Package store defines the persistence boundary shared by the mailbox
// poller, the reply dispatcher, and the HTTP handlers. Idempotency and
// soft-delete reconciliation are enforced here: inserts are keyed by
// (account_id, message_id) and a uniqueness violation is reported as
// ErrDuplicateMessage, which callers treat as an expected signal.
package store

import (
	"context"
	"errors"

	"github.com/ty2499/filiova-learning-platform-sub010/internal/models"
)

// ErrAccountNotFound is returned when a requested mail account cannot be found.
var ErrAccountNotFound = errors.New("mail account not found")

// ErrMessageNotFound is returned when a requested message cannot be found.
var ErrMessageNotFound = errors.New("message not found")

// ErrDuplicateMessage is returned by InsertMessage when a message with the
// same (account_id, message_id) already exists. This is not a failure: two
// overlapping polls, or a poll racing a manual action, may both observe the
// same message.
var ErrDuplicateMessage = errors.New("duplicate message")

// ListMessagesOptions filters and pages a message listing.
type ListMessagesOptions struct {
	AccountID      string
	Limit          int
	Offset         int
	UnreadOnly     bool
	IncludeTrashed bool
}

// Store is the persistence interface for accounts, messages, and replies.
type Store interface {
	// Accounts. The core only reads accounts and updates their sync state;
	// SaveAccount exists for provisioning and tests.
	SaveAccount(ctx context.Context, account *models.MailAccount) error
	GetAccount(ctx context.Context, id string) (*models.MailAccount, error)
	ListAccounts(ctx context.Context) ([]*models.MailAccount, error)
	SetAccountSyncStatus(ctx context.Context, id string, status models.SyncStatus, syncError string) error

	// Messages.
	InsertMessage(ctx context.Context, message *models.Message) error
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	GetMessageByMessageID(ctx context.Context, accountID, messageID string) (*models.Message, error)
	ListMessages(ctx context.Context, opts ListMessagesOptions) ([]*models.Message, error)
	SetMessageFlag(ctx context.Context, id string, flag models.Flag, value bool) error
	MarkMessagesRead(ctx context.Context, ids []string) error
	// TrashMissing soft-deletes every non-trashed message of the account
	// whose message_id is not in seen, and returns how many were trashed.
	TrashMissing(ctx context.Context, accountID string, seen []string) (int, error)
	UnreadCount(ctx context.Context, accountID string) (int, error)

	// Replies.
	InsertReply(ctx context.Context, reply *models.Reply) error
	ListRepliesForMessages(ctx context.Context, messageIDs []string) (map[string][]*models.Reply, error)
	DeleteRepliesForMessage(ctx context.Context, messageID string) error
}
