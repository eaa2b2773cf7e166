package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ty2499/filiova-learning-platform-sub010/internal/store"
)

// AccountsHandler exposes the configured mail accounts and their sync
// state. Credentials never serialize; the models mark them json:"-".
type AccountsHandler struct {
	store  store.Store
	logger *zap.Logger
}

// NewAccountsHandler creates a new AccountsHandler instance.
func NewAccountsHandler(st store.Store, logger *zap.Logger) *AccountsHandler {
	return &AccountsHandler{store: st, logger: logger}
}

// GetAccounts returns all mail accounts.
func (h *AccountsHandler) GetAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.store.ListAccounts(r.Context())
	if err != nil {
		h.logger.Error("failed to list accounts", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	WriteJSONResponse(w, map[string]any{"accounts": accounts})
}
