package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/parzival1821/CredBook/internal/domain"
	"github.com/parzival1821/CredBook/internal/rate"
)

// errBadRequest marks malformed input detected by the handlers themselves.
var errBadRequest = errors.New("bad request")

// errNotConfigured is returned when an optional backend is absent.
var errNotConfigured = errors.New("not configured")

// writeServiceError maps the domain error taxonomy to HTTP. Validation
// failures carry the numbers that caused them.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
	}
	writeJSON(w, status, body)
}

func classify(err error) (int, errorBody) {
	body := errorBody{Error: err.Error()}

	var (
		rateErr   *domain.RateExceededError
		liqErr    *domain.InsufficientLiquidityError
		balErr    *domain.InsufficientBalanceError
		revertErr *domain.RevertError
	)
	switch {
	case errors.As(err, &rateErr):
		body.Code = "rate_exceeded"
		body.Details = map[string]any{
			"best_apr":      rate.PerSecondWADToAPR(rateErr.BestRate),
			"max_apr":       rate.PerSecondWADToAPR(rateErr.MaxRate),
			"best_rate_wad": bigString(rateErr.BestRate),
			"max_rate_wad":  bigString(rateErr.MaxRate),
		}
		return http.StatusUnprocessableEntity, body
	case errors.As(err, &liqErr):
		body.Code = "insufficient_liquidity"
		body.Details = map[string]any{
			"available": bigString(liqErr.Available),
			"requested": bigString(liqErr.Requested),
		}
		return http.StatusUnprocessableEntity, body
	case errors.Is(err, domain.ErrNoLiquidity):
		body.Code = "no_liquidity"
		return http.StatusUnprocessableEntity, body
	case errors.As(err, &balErr):
		body.Code = "insufficient_balance"
		body.Details = map[string]any{
			"token":    balErr.Token.Hex(),
			"symbol":   balErr.Symbol,
			"balance":  bigString(balErr.Balance),
			"required": bigString(balErr.Required),
		}
		return http.StatusUnprocessableEntity, body
	case errors.Is(err, errBadRequest),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidRate):
		body.Code = "bad_request"
		return http.StatusBadRequest, body
	case errors.Is(err, domain.ErrTransactionRejected):
		body.Code = "rejected"
		return http.StatusConflict, body
	case errors.As(err, &revertErr):
		body.Code = "reverted"
		body.Details = map[string]any{"reason": revertErr.Reason}
		if revertErr.TxHash != (common.Hash{}) {
			body.Details["tx_hash"] = revertErr.TxHash.Hex()
		}
		return http.StatusBadGateway, body
	case errors.Is(err, domain.ErrExternalRevert):
		body.Code = "reverted"
		return http.StatusBadGateway, body
	case errors.Is(err, domain.ErrNetworkUnavailable):
		body.Code = "network_unavailable"
		return http.StatusServiceUnavailable, body
	case errors.Is(err, domain.ErrSignerMissing):
		body.Code = "read_only"
		return http.StatusForbidden, body
	case errors.Is(err, errNotConfigured):
		body.Code = "not_configured"
		return http.StatusServiceUnavailable, body
	case errors.Is(err, domain.ErrNotFound):
		body.Code = "not_found"
		return http.StatusNotFound, body
	case errors.Is(err, domain.ErrRateLimited):
		body.Code = "rate_limited"
		return http.StatusTooManyRequests, body
	case errors.Is(err, context.DeadlineExceeded):
		body.Code = "timeout"
		return http.StatusGatewayTimeout, body
	}
	body.Code = "internal"
	return http.StatusInternalServerError, body
}
