package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/parzival1821/CredBook/internal/domain"
	"github.com/parzival1821/CredBook/internal/metrics"
)

// DefaultRefreshInterval is how often the dashboard re-reads the ledger.
const DefaultRefreshInterval = 30 * time.Second

// DashboardView is the state shown to dashboard clients.
type DashboardView struct {
	Snapshot    domain.OrderbookSnapshot
	Pools       []domain.PoolSummary
	Account     *domain.AccountView
	RefreshedAt time.Time
	Seq         uint64
}

// Dashboard keeps a periodically refreshed view of the orderbook and the
// operator account. Refreshes may overlap: the most recently started one
// wins and an older refresh that finishes late is discarded.
type Dashboard struct {
	book     *OrderbookService
	accounts *AccountService
	account  common.Address
	interval time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger

	started atomic.Uint64

	mu      sync.RWMutex
	view    DashboardView
	applied uint64
	closed  bool
}

// NewDashboard creates a Dashboard. A zero account skips the account view.
func NewDashboard(
	book *OrderbookService,
	accounts *AccountService,
	account common.Address,
	interval time.Duration,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Dashboard {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Dashboard{
		book:     book,
		accounts: accounts,
		account:  account,
		interval: interval,
		metrics:  m,
		logger:   logger.With(slog.String("component", "dashboard")),
	}
}

// View returns the latest applied view.
func (d *Dashboard) View() DashboardView {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.view
}

// Refresh re-reads the orderbook and account and applies the result unless a
// newer refresh has already been applied. After Close it returns the current
// view without touching the network.
func (d *Dashboard) Refresh(ctx context.Context) (DashboardView, error) {
	if d.isClosed() {
		d.metrics.Refresh("closed")
		return d.View(), nil
	}
	seq := d.started.Add(1)

	snap, err := d.book.Fetch(ctx)
	if err != nil {
		return d.failed(ctx, seq, err)
	}
	var account *domain.AccountView
	if d.account != (common.Address{}) && d.accounts != nil {
		v, err := d.accounts.View(ctx, d.account)
		if err != nil {
			return d.failed(ctx, seq, err)
		}
		account = &v
	}

	next := DashboardView{
		Snapshot:    snap,
		Pools:       d.book.PoolSummaries(snap),
		Account:     account,
		RefreshedAt: time.Now().UTC(),
		Seq:         seq,
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case d.closed:
		d.metrics.Refresh("closed")
		return d.view, nil
	case seq < d.applied:
		d.metrics.Refresh("superseded")
		d.logger.DebugContext(ctx, "discarding superseded refresh",
			slog.Uint64("seq", seq),
			slog.Uint64("applied", d.applied),
		)
		return d.view, nil
	}
	d.view = next
	d.applied = seq
	d.metrics.Refresh("ok")
	return next, nil
}

func (d *Dashboard) failed(ctx context.Context, seq uint64, err error) (DashboardView, error) {
	if d.isClosed() {
		d.metrics.Refresh("closed")
		return d.View(), nil
	}
	d.metrics.Refresh("error")
	d.logger.WarnContext(ctx, "dashboard refresh failed",
		slog.Uint64("seq", seq),
		slog.String("error", err.Error()),
	)
	return DashboardView{}, err
}

// Reload runs a refresh and only logs its failure.
func (d *Dashboard) Reload(ctx context.Context) {
	_, _ = d.Refresh(ctx)
}

// Run refreshes immediately and then every interval until ctx is done, then
// closes the dashboard.
func (d *Dashboard) Run(ctx context.Context) error {
	defer d.Close()

	d.Reload(ctx)
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.Reload(ctx)
		}
	}
}

// Close stops the dashboard from applying further refreshes.
func (d *Dashboard) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
}

func (d *Dashboard) isClosed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.closed
}
