package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/parzival1821/CredBook/internal/service"
)

// Borrower is the borrower flow surface.
type Borrower interface {
	Quote(ctx context.Context, in service.BorrowInput) (service.Quote, error)
	Borrow(ctx context.Context, in service.BorrowInput) (service.TxOutcome, error)
	Repay(ctx context.Context, amount string) (service.TxOutcome, error)
}

// BorrowHandler serves the borrower endpoints.
type BorrowHandler struct {
	borrower           Borrower
	collateralDecimals uint8
	logger             *slog.Logger
}

// NewBorrowHandler creates a BorrowHandler.
func NewBorrowHandler(borrower Borrower, collateralDecimals uint8, logger *slog.Logger) *BorrowHandler {
	return &BorrowHandler{
		borrower:           borrower,
		collateralDecimals: collateralDecimals,
		logger:             logger.With(slog.String("handler", "borrow")),
	}
}

type amountRequest struct {
	Amount string `json:"amount"`
}

// Quote validates a borrow against a fresh snapshot without submitting
// anything. A request that cannot be filled is still a 200 with the
// outcome and the numbers behind it.
// POST /api/borrow/quote
func (h *BorrowHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var in service.BorrowInput
	if err := decodeJSON(r, &in); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	q, err := h.borrower.Quote(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toQuoteJSON(q, h.collateralDecimals))
}

// Borrow validates and submits matchBorrowOrder.
// POST /api/borrow
func (h *BorrowHandler) Borrow(w http.ResponseWriter, r *http.Request) {
	var in service.BorrowInput
	if err := decodeJSON(r, &in); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	out, err := h.borrower.Borrow(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toTxJSON(out))
}

// Repay submits fulfillRepay for the operator account.
// POST /api/repay
func (h *BorrowHandler) Repay(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if req.Amount == "" {
		writeServiceError(w, r, h.logger, fmt.Errorf("%w: amount is required", errBadRequest))
		return
	}
	out, err := h.borrower.Repay(r.Context(), req.Amount)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toTxJSON(out))
}
