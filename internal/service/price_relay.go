package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/parzival1821/CredBook/internal/domain"
	"github.com/parzival1821/CredBook/internal/metrics"
	"github.com/parzival1821/CredBook/internal/rate"
)

// RelayConfig controls the price relay loop.
type RelayConfig struct {
	FeedID        string
	Interval      time.Duration
	Staleness     time.Duration
	PriceDecimals uint8
	LockTTL       time.Duration
}

// PriceRelay keeps the on-chain oracle fresh by pushing signed feed updates
// whenever the stored price is older than the staleness threshold.
type PriceRelay struct {
	oracle   domain.PriceOracle
	feed     domain.PriceFeed
	recorder *TxRecorder
	locks    domain.LockManager
	prices   domain.PriceCache
	bus      domain.SignalBus
	notifier Notifier
	metrics  *metrics.Metrics
	account  common.Address
	cfg      RelayConfig
	now      func() time.Time
	logger   *slog.Logger
}

// RelayOption customizes a PriceRelay.
type RelayOption func(*PriceRelay)

// WithRelayClock overrides the relay's time source.
func WithRelayClock(now func() time.Time) RelayOption {
	return func(r *PriceRelay) { r.now = now }
}

// WithRelayLocks makes replicas coordinate through locks.
func WithRelayLocks(locks domain.LockManager) RelayOption {
	return func(r *PriceRelay) { r.locks = locks }
}

// WithRelayPublishing stores and broadcasts every relayed price.
func WithRelayPublishing(prices domain.PriceCache, bus domain.SignalBus) RelayOption {
	return func(r *PriceRelay) {
		r.prices = prices
		r.bus = bus
	}
}

// WithRelayNotifier reports failed updates.
func WithRelayNotifier(n Notifier) RelayOption {
	return func(r *PriceRelay) { r.notifier = n }
}

// NewPriceRelay creates a PriceRelay.
func NewPriceRelay(
	oracle domain.PriceOracle,
	feed domain.PriceFeed,
	recorder *TxRecorder,
	account common.Address,
	cfg RelayConfig,
	m *metrics.Metrics,
	logger *slog.Logger,
	opts ...RelayOption,
) *PriceRelay {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Staleness <= 0 {
		cfg.Staleness = 30 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	r := &PriceRelay{
		oracle:   oracle,
		feed:     feed,
		recorder: recorder,
		metrics:  m,
		account:  account,
		cfg:      cfg,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "price_relay"), slog.String("feed_id", cfg.FeedID)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run forces one update, then checks staleness every interval until ctx is
// done. Failed checks are logged and never stop the loop.
func (r *PriceRelay) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "price relay started",
		slog.Duration("interval", r.cfg.Interval),
		slog.Duration("staleness", r.cfg.Staleness),
	)
	if _, err := r.Update(ctx); err != nil && ctx.Err() == nil {
		r.logger.ErrorContext(ctx, "initial price update failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.CheckAndUpdate(ctx); err != nil && ctx.Err() == nil {
				r.logger.ErrorContext(ctx, "price relay check failed", slog.String("error", err.Error()))
			}
		}
	}
}

// CheckAndUpdate pushes an update when the on-chain price is stale. It
// reports whether an update was sent.
func (r *PriceRelay) CheckAndUpdate(ctx context.Context) (bool, error) {
	quote, err := r.oracle.LatestPrice(ctx)
	if err != nil {
		r.metrics.RelayCheck("error", 0)
		return false, fmt.Errorf("price relay: latest price: %w", err)
	}
	age := quote.Age(r.now())
	if age <= r.cfg.Staleness {
		r.metrics.RelayCheck("fresh", age)
		r.logger.DebugContext(ctx, "price fresh", slog.Duration("age", age))
		return false, nil
	}
	r.logger.InfoContext(ctx, "price stale", slog.Duration("age", age))
	return r.update(ctx, age)
}

// Update pushes an update regardless of the stored price's age.
func (r *PriceRelay) Update(ctx context.Context) (bool, error) {
	return r.update(ctx, 0)
}

func (r *PriceRelay) update(ctx context.Context, age time.Duration) (bool, error) {
	if r.locks != nil {
		unlock, err := r.locks.Acquire(ctx, "relay:"+r.cfg.FeedID, r.cfg.LockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				r.metrics.RelayCheck("locked", age)
				r.logger.InfoContext(ctx, "another relay holds the update lock")
				return false, nil
			}
			r.metrics.RelayCheck("error", age)
			return false, fmt.Errorf("price relay: lock: %w", err)
		}
		defer unlock()
	}

	if err := r.push(ctx); err != nil {
		r.metrics.RelayCheck("error", age)
		if r.notifier != nil {
			if nerr := r.notifier.Notify(context.WithoutCancel(ctx), EventRelayFailed, "Price relay update failed", err.Error()); nerr != nil {
				r.logger.WarnContext(ctx, "notify failed", slog.String("error", nerr.Error()))
			}
		}
		return false, err
	}
	r.metrics.RelayCheck("updated", age)
	return true, nil
}

func (r *PriceRelay) push(ctx context.Context) error {
	updates, err := r.feed.LatestUpdates(ctx, r.cfg.FeedID)
	if err != nil {
		return fmt.Errorf("price relay: fetch updates: %w", err)
	}
	_, err = r.recorder.Execute(ctx, TxIntent{
		Kind:    domain.TxKindPriceUpdate,
		Account: r.account,
		Target:  r.oracle.Address(),
	}, func(ctx context.Context) (domain.PendingTx, error) {
		return r.oracle.UpdatePrice(ctx, updates)
	})
	if err != nil {
		return fmt.Errorf("price relay: update price: %w", err)
	}

	value, err := r.oracle.Price(ctx)
	if err != nil {
		return fmt.Errorf("price relay: read price: %w", err)
	}
	price := domain.OraclePrice{
		FeedID:    r.cfg.FeedID,
		Value:     value,
		Decimals:  int(r.cfg.PriceDecimals),
		UpdatedAt: r.now().UTC(),
	}
	r.logger.InfoContext(ctx, "oracle price updated",
		slog.String("price", rate.FormatUnits(value, r.cfg.PriceDecimals)),
	)

	if r.prices != nil {
		if err := r.prices.SetPrice(ctx, price); err != nil {
			r.logger.WarnContext(ctx, "cache oracle price failed", slog.String("error", err.Error()))
		}
	}
	if r.bus != nil {
		evt, _ := json.Marshal(map[string]any{
			"event":      "oracle_price",
			"feed_id":    price.FeedID,
			"value":      value.String(),
			"decimals":   price.Decimals,
			"updated_at": price.UpdatedAt,
		})
		if err := r.bus.Publish(ctx, domain.ChannelOracle, evt); err != nil {
			r.logger.WarnContext(ctx, "publish oracle event failed", slog.String("error", err.Error()))
		}
	}
	return nil
}
