package api

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ty2499/filiova-learning-platform-sub010/internal/models"
	"github.com/ty2499/filiova-learning-platform-sub010/internal/store"
)

// AccountSyncer runs one sync cycle for one account.
type AccountSyncer interface {
	Sync(ctx context.Context, account *models.MailAccount, limit uint32) error
}

// SyncHandler handles manual sync trigger requests.
type SyncHandler struct {
	store      store.Store
	syncer     AccountSyncer
	fetchLimit uint32
	logger     *zap.Logger
}

// NewSyncHandler creates a new SyncHandler instance.
func NewSyncHandler(st store.Store, syncer AccountSyncer, fetchLimit uint32, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{store: st, syncer: syncer, fetchLimit: fetchLimit, logger: logger}
}

// TriggerSync starts a sync for one account or all accounts and returns
// immediately. The account may be named in the request body
// ({"accountId": ...}) or as a query parameter. The sync itself runs
// detached from the request context; overlapping triggers are absorbed by
// the syncer's per-account in-progress guard.
func (h *SyncHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accountID := r.URL.Query().Get("accountId")
	if r.ContentLength > 0 {
		var body struct {
			AccountID string `json:"accountId"`
		}
		if !DecodeJSONBody(w, r, &body) {
			return
		}
		if body.AccountID != "" {
			accountID = body.AccountID
		}
	}

	var accounts []*models.MailAccount
	if accountID != "" {
		account, err := h.store.GetAccount(ctx, accountID)
		if err != nil {
			if errors.Is(err, store.ErrAccountNotFound) {
				http.Error(w, "Account not found", http.StatusNotFound)
				return
			}
			h.logger.Error("failed to load account", zap.Error(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		accounts = []*models.MailAccount{account}
	} else {
		var err error
		accounts, err = h.store.ListAccounts(ctx)
		if err != nil {
			h.logger.Error("failed to list accounts", zap.Error(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
	}

	for _, account := range accounts {
		account := account
		go func() {
			// Detached from the request context so the sync survives the
			// client disconnecting.
			if err := h.syncer.Sync(context.Background(), account, h.fetchLimit); err != nil {
				h.logger.Error("manual sync failed",
					zap.String("account_id", account.ID), zap.Error(err))
			}
		}()
	}

	WriteJSONStatus(w, http.StatusAccepted, map[string]any{
		"status":   "syncing",
		"accounts": len(accounts),
	})
}
