// Package imap polls external mailboxes, ingests their messages with
// idempotent inserts, and reconciles remote deletions against the store.
package imap

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/ty2499/filiova-learning-platform-sub010/internal/models"
	"github.com/ty2499/filiova-learning-platform-sub010/internal/store"
	"github.com/ty2499/filiova-learning-platform-sub010/internal/ws"
)

// Publisher pushes events to connected sessions. Satisfied by *ws.Hub.
type Publisher interface {
	Broadcast(eventType string, payload any)
}

// Syncer runs one polling cycle per account: fetch the recent window,
// insert-or-restore each message, then trash stored messages missing from
// the fetch. A second Sync for an account that is already syncing is
// skipped; the next interval retries.
type Syncer struct {
	store  store.Store
	events Publisher
	logger *zap.Logger

	mu      sync.Mutex
	syncing map[string]bool
}

// NewSyncer creates a Syncer.
func NewSyncer(st store.Store, events Publisher, logger *zap.Logger) *Syncer {
	return &Syncer{
		store:   st,
		events:  events,
		logger:  logger,
		syncing: make(map[string]bool),
	}
}

// Sync polls one account's INBOX. Connection and protocol errors set the
// account's sync status to error and abort only this account's cycle.
func (s *Syncer) Sync(ctx context.Context, account *models.MailAccount, limit uint32) error {
	s.mu.Lock()
	if s.syncing[account.ID] {
		s.mu.Unlock()
		s.logger.Debug("sync already in progress, skipping",
			zap.String("account_id", account.ID))
		return nil
	}
	s.syncing[account.ID] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.syncing, account.ID)
		s.mu.Unlock()
	}()

	if err := s.store.SetAccountSyncStatus(ctx, account.ID, models.SyncStatusSyncing, ""); err != nil {
		return fmt.Errorf("failed to mark account syncing: %w", err)
	}

	seen, err := s.syncMailbox(ctx, account, limit)
	if err != nil {
		if statusErr := s.store.SetAccountSyncStatus(ctx, account.ID, models.SyncStatusError, err.Error()); statusErr != nil {
			s.logger.Warn("failed to record sync error",
				zap.String("account_id", account.ID), zap.Error(statusErr))
		}
		return err
	}

	// Reconciliation runs strictly after all of this cycle's inserts have
	// settled; trashing concurrently with inserts would false-positive on
	// messages still mid-insert.
	trashed, err := s.store.TrashMissing(ctx, account.ID, seen)
	if err != nil {
		if statusErr := s.store.SetAccountSyncStatus(ctx, account.ID, models.SyncStatusError, err.Error()); statusErr != nil {
			s.logger.Warn("failed to record sync error",
				zap.String("account_id", account.ID), zap.Error(statusErr))
		}
		return fmt.Errorf("failed to reconcile deletions: %w", err)
	}
	if trashed > 0 {
		s.logger.Info("trashed messages missing from mailbox",
			zap.String("account_id", account.ID), zap.Int("count", trashed))
	}

	return s.store.SetAccountSyncStatus(ctx, account.ID, models.SyncStatusIdle, "")
}

// syncMailbox connects, fetches the recent window, and ingests every parsed
// message. It returns the set of messageIds observed in the fetch, which
// drives the trash reconciliation.
func (s *Syncer) syncMailbox(ctx context.Context, account *models.MailAccount, limit uint32) ([]string, error) {
	c, err := Connect(account.IMAPAddr(), account.IMAPTLS)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", account.IMAPAddr(), err)
	}
	defer func() {
		_ = c.Logout()
	}()

	if err := Login(c, account.IMAPUsername, account.IMAPPassword); err != nil {
		return nil, err
	}

	// Read-only select: polling must not mutate server-side state.
	mbox, err := c.Select("INBOX", true)
	if err != nil {
		return nil, fmt.Errorf("failed to select INBOX: %w", err)
	}

	imapMessages, err := FetchRecent(c, mbox.Messages, limit)
	if err != nil {
		return nil, err
	}

	seen := make([]string, 0, len(imapMessages))
	for _, imapMsg := range imapMessages {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		msg, err := ParseMessage(imapMsg, account.ID)
		if err != nil {
			// Malformed messages are skipped; the cycle continues.
			s.logger.Warn("skipping unparseable message",
				zap.String("account_id", account.ID),
				zap.Uint32("uid", imapMsg.Uid),
				zap.Error(err))
			continue
		}

		seen = append(seen, msg.MessageID)

		if err := s.ingest(ctx, account, msg); err != nil {
			return nil, err
		}
	}

	return seen, nil
}

// ingest inserts a fetched message, treating a duplicate as the expected
// already-known signal. A known message that is currently trashed gets
// restored: the source still has it, so the local soft delete was either
// transient or has been undone remotely.
func (s *Syncer) ingest(ctx context.Context, account *models.MailAccount, msg *models.Message) error {
	err := s.store.InsertMessage(ctx, msg)
	if err == nil {
		s.events.Broadcast(ws.EventNewMessage, msg)
		return nil
	}

	if !errors.Is(err, store.ErrDuplicateMessage) {
		return fmt.Errorf("failed to store message %s: %w", msg.MessageID, err)
	}

	existing, err := s.store.GetMessageByMessageID(ctx, account.ID, msg.MessageID)
	if err != nil {
		return fmt.Errorf("failed to load existing message %s: %w", msg.MessageID, err)
	}

	if existing.IsTrashed {
		if err := s.store.SetMessageFlag(ctx, existing.ID, models.FlagTrashed, false); err != nil {
			return fmt.Errorf("failed to restore message %s: %w", msg.MessageID, err)
		}
		s.logger.Info("restored message that reappeared in mailbox",
			zap.String("account_id", account.ID),
			zap.String("message_id", msg.MessageID))
	}

	return nil
}
