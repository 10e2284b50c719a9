package handler

import (
	"net/http"
	"time"
)

// StatusInfo is static deployment metadata.
type StatusInfo struct {
	Mode            string    `json:"mode"`
	ChainID         int64     `json:"chain_id"`
	Orderbook       string    `json:"orderbook"`
	Account         string    `json:"account,omitempty"`
	ReadOnly        bool      `json:"read_only"`
	CollateralToken string    `json:"collateral_token"`
	LoanToken       string    `json:"loan_token"`
	StartedAt       time.Time `json:"started_at"`
}

// StatusHandler serves deployment metadata for dashboards.
type StatusHandler struct {
	info StatusInfo
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(info StatusInfo) *StatusHandler {
	return &StatusHandler{info: info}
}

// GetStatus
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         h.info,
		"uptime_seconds": int64(time.Since(h.info.StartedAt).Seconds()),
	})
}
