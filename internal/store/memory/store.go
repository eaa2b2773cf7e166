// Package memory provides an in-memory Store implementation. It backs unit
// tests and local development; the Postgres store is the production backend.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ty2499/filiova-learning-platform-sub010/internal/models"
	"github.com/ty2499/filiova-learning-platform-sub010/internal/store"
)

// Store keeps accounts, messages, and replies in maps guarded by one RWMutex.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*models.MailAccount
	messages map[string]*models.Message // message ID -> message
	byKey    map[string]string          // accountID + "\x00" + messageID -> message ID
	replies  map[string][]*models.Reply // parent message ID -> replies
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		accounts: make(map[string]*models.MailAccount),
		messages: make(map[string]*models.Message),
		byKey:    make(map[string]string),
		replies:  make(map[string][]*models.Reply),
	}
}

func messageKey(accountID, messageID string) string {
	return accountID + "\x00" + messageID
}

// SaveAccount inserts or replaces a mail account.
func (s *Store) SaveAccount(_ context.Context, account *models.MailAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	if account.SyncStatus == "" {
		account.SyncStatus = models.SyncStatusIdle
	}
	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	copied := *account
	s.accounts[account.ID] = &copied
	return nil
}

// GetAccount returns the account with the given ID.
func (s *Store) GetAccount(_ context.Context, id string) (*models.MailAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

// ListAccounts returns all accounts, ordered by creation time.
func (s *Store) ListAccounts(_ context.Context) ([]*models.MailAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := make([]*models.MailAccount, 0, len(s.accounts))
	for _, account := range s.accounts {
		copied := *account
		accounts = append(accounts, &copied)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})
	return accounts, nil
}

// SetAccountSyncStatus updates the sync state of one account.
func (s *Store) SetAccountSyncStatus(_ context.Context, id string, status models.SyncStatus, syncError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return store.ErrAccountNotFound
	}
	account.SyncStatus = status
	account.LastSyncError = syncError
	account.UpdatedAt = time.Now()
	return nil
}

// InsertMessage stores a new message. A message with the same
// (accountID, messageID) pair yields store.ErrDuplicateMessage.
func (s *Store) InsertMessage(_ context.Context, message *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := messageKey(message.AccountID, message.MessageID)
	if _, exists := s.byKey[key]; exists {
		return store.ErrDuplicateMessage
	}

	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.ReceivedAt.IsZero() {
		message.ReceivedAt = time.Now()
	}

	copied := *message
	s.messages[message.ID] = &copied
	s.byKey[key] = message.ID
	return nil
}

// GetMessage returns the message with the given ID.
func (s *Store) GetMessage(_ context.Context, id string) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	message, ok := s.messages[id]
	if !ok {
		return nil, store.ErrMessageNotFound
	}
	copied := *message
	return &copied, nil
}

// GetMessageByMessageID looks a message up by its idempotency key.
func (s *Store) GetMessageByMessageID(_ context.Context, accountID, messageID string) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byKey[messageKey(accountID, messageID)]
	if !ok {
		return nil, store.ErrMessageNotFound
	}
	copied := *s.messages[id]
	return &copied, nil
}

// ListMessages returns messages newest first, filtered by the options.
func (s *Store) ListMessages(_ context.Context, opts store.ListMessagesOptions) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var messages []*models.Message
	for _, message := range s.messages {
		if opts.AccountID != "" && message.AccountID != opts.AccountID {
			continue
		}
		if message.IsTrashed && !opts.IncludeTrashed {
			continue
		}
		if opts.UnreadOnly && message.IsRead {
			continue
		}
		copied := *message
		messages = append(messages, &copied)
	}

	sort.Slice(messages, func(i, j int) bool {
		if messages[i].ReceivedAt.Equal(messages[j].ReceivedAt) {
			return messages[i].ID < messages[j].ID
		}
		return messages[i].ReceivedAt.After(messages[j].ReceivedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(messages) {
			return nil, nil
		}
		messages = messages[opts.Offset:]
	}
	if opts.Limit > 0 && len(messages) > opts.Limit {
		messages = messages[:opts.Limit]
	}
	return messages, nil
}

// SetMessageFlag toggles one flag on a message.
func (s *Store) SetMessageFlag(_ context.Context, id string, flag models.Flag, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	message, ok := s.messages[id]
	if !ok {
		return store.ErrMessageNotFound
	}

	switch flag {
	case models.FlagRead:
		message.IsRead = value
	case models.FlagReplied:
		message.IsReplied = value
	case models.FlagStarred:
		message.IsStarred = value
	case models.FlagSpam:
		message.IsSpam = value
	case models.FlagArchived:
		message.IsArchived = value
	case models.FlagTrashed:
		message.IsTrashed = value
	}
	return nil
}

// MarkMessagesRead sets is_read on every listed message.
func (s *Store) MarkMessagesRead(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if message, ok := s.messages[id]; ok {
			message.IsRead = true
		}
	}
	return nil
}

// TrashMissing marks every non-trashed inbound message of the account whose
// message_id is absent from seen as trashed. Outbound shadows never appear
// in a mailbox fetch and are left alone.
func (s *Store) TrashMissing(_ context.Context, accountID string, seen []string) (int, error) {
	seenSet := make(map[string]struct{}, len(seen))
	for _, messageID := range seen {
		seenSet[messageID] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	trashed := 0
	for _, message := range s.messages {
		if message.AccountID != accountID || message.IsTrashed || message.IsOutbound {
			continue
		}
		if _, ok := seenSet[message.MessageID]; !ok {
			message.IsTrashed = true
			trashed++
		}
	}
	return trashed, nil
}

// UnreadCount counts unread, non-trashed messages. An empty accountID counts
// across all accounts.
func (s *Store) UnreadCount(_ context.Context, accountID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, message := range s.messages {
		if accountID != "" && message.AccountID != accountID {
			continue
		}
		if !message.IsRead && !message.IsTrashed {
			count++
		}
	}
	return count, nil
}

// InsertReply appends a reply under its parent message.
func (s *Store) InsertReply(_ context.Context, reply *models.Reply) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[reply.MessageID]; !ok {
		return store.ErrMessageNotFound
	}
	if reply.ID == "" {
		reply.ID = uuid.NewString()
	}
	if reply.SentAt.IsZero() {
		reply.SentAt = time.Now()
	}

	copied := *reply
	s.replies[reply.MessageID] = append(s.replies[reply.MessageID], &copied)
	return nil
}

// ListRepliesForMessages returns replies for all listed messages in one pass,
// keyed by parent message ID and ordered by sent time.
func (s *Store) ListRepliesForMessages(_ context.Context, messageIDs []string) (map[string][]*models.Reply, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string][]*models.Reply)
	for _, messageID := range messageIDs {
		replies := s.replies[messageID]
		if len(replies) == 0 {
			continue
		}
		copies := make([]*models.Reply, 0, len(replies))
		for _, reply := range replies {
			copied := *reply
			copies = append(copies, &copied)
		}
		sort.Slice(copies, func(i, j int) bool {
			return copies[i].SentAt.Before(copies[j].SentAt)
		})
		result[messageID] = copies
	}
	return result, nil
}

// DeleteRepliesForMessage removes all replies of a message. Used when a
// trashed message is deleted through the API surface.
func (s *Store) DeleteRepliesForMessage(_ context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.replies, messageID)
	return nil
}
