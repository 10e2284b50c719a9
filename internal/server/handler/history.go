package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/parzival1821/CredBook/internal/domain"
	"github.com/parzival1821/CredBook/internal/rate"
)

// HistoryHandler serves transaction history, oracle prices and archive
// listings. Every backend is optional.
type HistoryHandler struct {
	txs           domain.TxStore
	prices        domain.PriceCache
	oracle        domain.PriceOracle
	blobs         domain.BlobReader
	feedID        string
	priceDecimals int
	logger        *slog.Logger
}

// HistoryDeps collects the optional backends of a HistoryHandler.
type HistoryDeps struct {
	Txs           domain.TxStore
	Prices        domain.PriceCache
	Oracle        domain.PriceOracle
	Blobs         domain.BlobReader
	FeedID        string
	PriceDecimals int
}

// NewHistoryHandler creates a HistoryHandler.
func NewHistoryHandler(deps HistoryDeps, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{
		txs:           deps.Txs,
		prices:        deps.Prices,
		oracle:        deps.Oracle,
		blobs:         deps.Blobs,
		feedID:        deps.FeedID,
		priceDecimals: deps.PriceDecimals,
		logger:        logger.With(slog.String("handler", "history")),
	}
}

// ListTransactions returns recorded transactions, newest first.
// GET /api/transactions?account=0x...&limit=50&offset=0
func (h *HistoryHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	if h.txs == nil {
		writeServiceError(w, r, h.logger, notConfigured("transaction history"))
		return
	}
	account := strings.TrimSpace(r.URL.Query().Get("account"))
	if account != "" {
		addr, err := parseAddress(account)
		if err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		account = addr.Hex()
	}
	recs, err := h.txs.ListByAccount(r.Context(), account, parseListOpts(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	out := make([]txRecordJSON, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toTxRecordJSON(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": out})
}

// GetOraclePrice returns the last relayed price, reading the oracle
// contract when the cache has nothing.
// GET /api/oracle/price
func (h *HistoryHandler) GetOraclePrice(w http.ResponseWriter, r *http.Request) {
	p, err := h.price(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *HistoryHandler) price(ctx context.Context) (priceJSON, error) {
	if h.prices != nil {
		p, err := h.prices.GetPrice(ctx, h.feedID)
		switch {
		case err == nil:
			return priceJSON{
				FeedID:    p.FeedID,
				Price:     rate.FormatUnits(p.Value, uint8(p.Decimals)),
				Raw:       bigString(p.Value),
				Decimals:  p.Decimals,
				UpdatedAt: p.UpdatedAt,
				Source:    "cache",
			}, nil
		case !errors.Is(err, domain.ErrNotFound):
			h.logger.WarnContext(ctx, "price cache read failed", slog.String("error", err.Error()))
		}
	}
	if h.oracle == nil {
		return priceJSON{}, notConfigured("oracle")
	}
	value, err := h.oracle.Price(ctx)
	if err != nil {
		return priceJSON{}, err
	}
	quote, err := h.oracle.LatestPrice(ctx)
	if err != nil {
		return priceJSON{}, err
	}
	return priceJSON{
		FeedID:    h.feedID,
		Price:     rate.FormatUnits(value, uint8(h.priceDecimals)),
		Raw:       bigString(value),
		Decimals:  h.priceDecimals,
		UpdatedAt: quote.PublishTime,
		Source:    "chain",
	}, nil
}

// ListArchives lists exported history files.
// GET /api/archives?prefix=archive/transactions/
func (h *HistoryHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	if h.blobs == nil {
		writeServiceError(w, r, h.logger, notConfigured("archive storage"))
		return
	}
	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		prefix = "archive/"
	}
	infos, err := h.blobs.List(r.Context(), prefix)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	out := make([]blobJSON, 0, len(infos))
	for _, info := range infos {
		out = append(out, blobJSON{Path: info.Path, Size: info.Size, LastModified: info.LastModified})
	}
	writeJSON(w, http.StatusOK, map[string]any{"archives": out})
}

func notConfigured(what string) error {
	return fmt.Errorf("%w: %s", errNotConfigured, what)
}
