package thread

import (
	"context"
	"errors"
	"fmt"

	"github.com/ty2499/filiova-learning-platform-sub010/internal/models"
	"github.com/ty2499/filiova-learning-platform-sub010/internal/store"
)

// ErrThreadNotFound is returned when no conversation matches a thread key.
var ErrThreadNotFound = errors.New("thread not found")

// Service assembles conversations from the store on demand.
type Service struct {
	store store.Store
}

// NewService creates a thread Service.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// List returns all conversations in the visible account scope, newest
// first. An empty accountID spans all accounts.
func (s *Service) List(ctx context.Context, accountID string) ([]*Conversation, error) {
	messages, accounts, err := s.load(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return Build(messages, accounts), nil
}

// Get returns one conversation by its thread key.
func (s *Service) Get(ctx context.Context, accountID, key string) (*Conversation, error) {
	conversations, err := s.List(ctx, accountID)
	if err != nil {
		return nil, err
	}
	for _, conv := range conversations {
		if conv.Key == key {
			return conv, nil
		}
	}
	return nil, ErrThreadNotFound
}

// Open selects a conversation for display: every currently unread inbound
// message in it is batch-marked read, and the conversation is rebuilt from
// fresh data so the unread aggregate can never go stale against concurrent
// ingestion.
func (s *Service) Open(ctx context.Context, accountID, key string) (*Conversation, error) {
	messages, accounts, err := s.load(ctx, accountID)
	if err != nil {
		return nil, err
	}

	var unreadIDs []string
	found := false
	for _, msg := range messages {
		if NormalizeSubject(msg.Subject) != key {
			continue
		}
		found = true
		if msg.IsRead {
			continue
		}
		if IsOwnAddress(msg.FromAddress, accounts[msg.AccountID]) {
			continue
		}
		unreadIDs = append(unreadIDs, msg.ID)
	}
	if !found {
		return nil, ErrThreadNotFound
	}

	if len(unreadIDs) > 0 {
		if err := s.store.MarkMessagesRead(ctx, unreadIDs); err != nil {
			return nil, fmt.Errorf("failed to mark thread read: %w", err)
		}
	}

	return s.Get(ctx, accountID, key)
}

// load fetches non-trashed messages with replies attached, plus the account
// map used for direction inference.
func (s *Service) load(ctx context.Context, accountID string) ([]*models.Message, map[string]*models.MailAccount, error) {
	messages, err := s.store.ListMessages(ctx, store.ListMessagesOptions{AccountID: accountID})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list messages: %w", err)
	}

	messageIDs := make([]string, 0, len(messages))
	for _, msg := range messages {
		messageIDs = append(messageIDs, msg.ID)
	}

	repliesByMessage, err := s.store.ListRepliesForMessages(ctx, messageIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list replies: %w", err)
	}
	for _, msg := range messages {
		msg.Replies = repliesByMessage[msg.ID]
	}

	accountList, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	accounts := make(map[string]*models.MailAccount, len(accountList))
	for _, account := range accountList {
		accounts[account.ID] = account
	}

	return messages, accounts, nil
}
