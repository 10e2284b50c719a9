package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/parzival1821/CredBook/internal/domain"
	"github.com/parzival1821/CredBook/internal/service"
)

// OrderbookReader is the slice of the orderbook service the handler uses.
type OrderbookReader interface {
	Cached(ctx context.Context) (domain.OrderbookSnapshot, error)
	PoolSummaries(snap domain.OrderbookSnapshot) []domain.PoolSummary
}

// DashboardSource serves and refreshes the dashboard view.
type DashboardSource interface {
	View() service.DashboardView
	Refresh(ctx context.Context) (service.DashboardView, error)
}

// Requoter asks the orderbook to recompute pool quotes.
type Requoter interface {
	Requote(ctx context.Context) (service.TxOutcome, error)
}

// OrderbookHandler serves orderbook, pool and dashboard endpoints.
type OrderbookHandler struct {
	book         OrderbookReader
	dashboard    DashboardSource
	requoter     Requoter
	loanDecimals uint8
	logger       *slog.Logger
}

// NewOrderbookHandler creates an OrderbookHandler.
func NewOrderbookHandler(book OrderbookReader, dashboard DashboardSource, requoter Requoter, loanDecimals uint8, logger *slog.Logger) *OrderbookHandler {
	return &OrderbookHandler{
		book:         book,
		dashboard:    dashboard,
		requoter:     requoter,
		loanDecimals: loanDecimals,
		logger:       logger.With(slog.String("handler", "orderbook")),
	}
}

// GetOrderbook returns the latest snapshot in provider order.
// GET /api/orderbook
func (h *OrderbookHandler) GetOrderbook(w http.ResponseWriter, r *http.Request) {
	snap, err := h.book.Cached(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotJSON(snap))
}

// Refresh forces a dashboard refresh and returns the applied view.
// POST /api/orderbook/refresh
func (h *OrderbookHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	view, err := h.dashboard.Refresh(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardJSON(view, h.loanDecimals))
}

// Requote submits requote() and waits for it.
// POST /api/orderbook/requote
func (h *OrderbookHandler) Requote(w http.ResponseWriter, r *http.Request) {
	out, err := h.requoter.Requote(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toTxJSON(out))
}

// ListPools summarizes the snapshot per pool.
// GET /api/pools
func (h *OrderbookHandler) ListPools(w http.ResponseWriter, r *http.Request) {
	snap, err := h.book.Cached(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"block_number": snap.BlockNumber,
		"pools":        toPoolsJSON(h.book.PoolSummaries(snap), h.loanDecimals),
	})
}

// GetDashboard returns the last applied dashboard view without touching the
// chain.
// GET /api/dashboard
func (h *OrderbookHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toDashboardJSON(h.dashboard.View(), h.loanDecimals))
}
