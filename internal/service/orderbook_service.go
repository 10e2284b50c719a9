package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/parzival1821/CredBook/internal/domain"
	"github.com/parzival1821/CredBook/internal/matching"
	"github.com/parzival1821/CredBook/internal/metrics"
	"github.com/parzival1821/CredBook/internal/rate"
)

// OrderbookService fetches orderbook snapshots, shares them through the
// cache and bus, and validates borrow requests against them.
type OrderbookService struct {
	orderbook domain.Orderbook
	cache     domain.OrderbookCache
	bus       domain.SignalBus
	poolNames map[common.Address]string
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewOrderbookService creates an OrderbookService. cache and bus may be nil.
func NewOrderbookService(
	orderbook domain.Orderbook,
	cache domain.OrderbookCache,
	bus domain.SignalBus,
	poolNames map[common.Address]string,
	m *metrics.Metrics,
	logger *slog.Logger,
) *OrderbookService {
	if poolNames == nil {
		poolNames = map[common.Address]string{}
	}
	return &OrderbookService{
		orderbook: orderbook,
		cache:     cache,
		bus:       bus,
		poolNames: poolNames,
		metrics:   m,
		logger:    logger.With(slog.String("component", "orderbook_service")),
	}
}

// Fetch reads every order from the contract. The snapshot keeps the order
// the contract returned.
func (s *OrderbookService) Fetch(ctx context.Context) (domain.OrderbookSnapshot, error) {
	snap, err := s.orderbook.AllOrders(ctx)
	if err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("orderbook service: fetch: %w", err)
	}

	var best float64
	if !snap.Empty() {
		best, _ = rate.PerSecondWADToAPRDec(lowestRate(snap.Orders)).Float64()
	}
	s.metrics.Snapshot(len(snap.Orders), best)

	if s.cache != nil {
		if err := s.cache.SetSnapshot(ctx, snap); err != nil {
			s.logger.WarnContext(ctx, "cache orderbook snapshot failed", slog.String("error", err.Error()))
		}
	}
	if s.bus != nil {
		evt, _ := json.Marshal(map[string]any{
			"event":  "orderbook",
			"block":  snap.BlockNumber,
			"quotes": len(snap.Orders),
		})
		if err := s.bus.Publish(ctx, domain.ChannelOrderbook, evt); err != nil {
			s.logger.WarnContext(ctx, "publish orderbook event failed", slog.String("error", err.Error()))
		}
	}
	s.logger.DebugContext(ctx, "orderbook fetched",
		slog.Int("quotes", len(snap.Orders)),
		slog.Uint64("block", snap.BlockNumber),
	)
	return snap, nil
}

// Cached returns the last snapshot stored in the cache, falling back to a
// fresh fetch when there is none.
func (s *OrderbookService) Cached(ctx context.Context) (domain.OrderbookSnapshot, error) {
	if s.cache != nil {
		snap, err := s.cache.GetSnapshot(ctx)
		if err == nil {
			return snap, nil
		}
		s.logger.DebugContext(ctx, "orderbook cache miss", slog.String("error", err.Error()))
	}
	return s.Fetch(ctx)
}

// Validate runs the matching simulation and records its outcome.
func (s *OrderbookService) Validate(ctx context.Context, snap domain.OrderbookSnapshot, req domain.BorrowRequest) matching.Result {
	res := matching.Validate(snap.Orders, req)
	s.metrics.Validation(res.Outcome.String(), res.Resorted)
	if res.Resorted {
		s.logger.WarnContext(ctx, "orderbook snapshot not sorted by rate",
			slog.Uint64("block", snap.BlockNumber),
			slog.Int("quotes", len(snap.Orders)),
		)
	}
	return res
}

// PoolSummaries aggregates the snapshot per pool, ordered by best rate.
// Liquidity is expressed in each pool's own token units.
func (s *OrderbookService) PoolSummaries(snap domain.OrderbookSnapshot) []domain.PoolSummary {
	byPool := make(map[common.Address]*domain.PoolSummary)
	var order []common.Address
	for _, o := range snap.Orders {
		sum, ok := byPool[o.Pool]
		if !ok {
			sum = &domain.PoolSummary{
				Pool:      o.Pool,
				PoolID:    o.PoolID,
				Name:      s.poolName(o.Pool),
				Liquidity: new(big.Int),
			}
			byPool[o.Pool] = sum
			order = append(order, o.Pool)
		}
		sum.Quotes++
		if o.Amount != nil {
			sum.Liquidity.Add(sum.Liquidity, o.Amount)
		}
		if o.Rate != nil && (sum.BestRate == nil || o.Rate.Cmp(sum.BestRate) < 0) {
			sum.BestRate = new(big.Int).Set(o.Rate)
		}
		if o.Utilization != nil {
			sum.Utilization = new(big.Int).Set(o.Utilization)
		}
	}

	out := make([]domain.PoolSummary, 0, len(order))
	for _, addr := range order {
		out = append(out, *byPool[addr])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return cmpRate(out[i].BestRate, out[j].BestRate) < 0
	})
	return out
}

func (s *OrderbookService) poolName(addr common.Address) string {
	if name, ok := s.poolNames[addr]; ok {
		return name
	}
	return addr.Hex()
}

func lowestRate(orders []domain.Order) *big.Int {
	var best *big.Int
	for _, o := range orders {
		if o.Rate != nil && (best == nil || o.Rate.Cmp(best) < 0) {
			best = o.Rate
		}
	}
	return best
}

// cmpRate orders nil rates last.
func cmpRate(a, b *big.Int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return a.Cmp(b)
}
