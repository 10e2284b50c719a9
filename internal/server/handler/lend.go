package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/parzival1821/CredBook/internal/service"
)

// Lender is the lender flow surface.
type Lender interface {
	Supply(ctx context.Context, pool common.Address, amount string) (service.TxOutcome, error)
	Withdraw(ctx context.Context, pool common.Address, shares string) (service.TxOutcome, error)
}

// LendHandler serves the lender endpoints.
type LendHandler struct {
	lender Lender
	logger *slog.Logger
}

// NewLendHandler creates a LendHandler.
func NewLendHandler(lender Lender, logger *slog.Logger) *LendHandler {
	return &LendHandler{lender: lender, logger: logger.With(slog.String("handler", "lend"))}
}

type supplyRequest struct {
	Pool   string `json:"pool"`
	Amount string `json:"amount"`
}

type withdrawRequest struct {
	Pool   string `json:"pool"`
	Shares string `json:"shares"`
}

// Supply deposits loan tokens into a pool.
// POST /api/lend/supply
func (h *LendHandler) Supply(w http.ResponseWriter, r *http.Request) {
	var req supplyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	pool, err := parseAddress(req.Pool)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	out, err := h.lender.Supply(r.Context(), pool, req.Amount)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toTxJSON(out))
}

// Withdraw redeems pool shares.
// POST /api/lend/withdraw
func (h *LendHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	pool, err := parseAddress(req.Pool)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	out, err := h.lender.Withdraw(r.Context(), pool, req.Shares)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toTxJSON(out))
}
