package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/parzival1821/CredBook/internal/domain"
)

// AccountReader loads the ledger view of any address.
type AccountReader interface {
	View(ctx context.Context, account common.Address) (domain.AccountView, error)
}

// AccountHandler serves account views.
type AccountHandler struct {
	accounts AccountReader
	logger   *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(accounts AccountReader, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger.With(slog.String("handler", "account"))}
}

// GetAccount returns positions, debt, accrued interest and balances.
// GET /api/accounts/{address}
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(r.PathValue("address"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	view, err := h.accounts.View(r.Context(), addr)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountJSON(view))
}
