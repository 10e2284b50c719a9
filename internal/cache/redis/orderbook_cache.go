package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/parzival1821/CredBook/internal/domain"
)

// Key schema:
//
//	credbook:orderbook:orders  list of JSON orders in provider order
//	credbook:orderbook:meta    hash with "block" and "ts" (Unix nanoseconds)
const (
	ordersKey = "credbook:orderbook:orders"
	metaKey   = "credbook:orderbook:meta"
)

// OrderbookCache implements domain.OrderbookCache. A list is used rather
// than a sorted set so readers see exactly the order the contract returned.
type OrderbookCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewOrderbookCache creates an OrderbookCache. Snapshots expire after ttl;
// zero keeps them until replaced.
func NewOrderbookCache(c *Client, ttl time.Duration) *OrderbookCache {
	return &OrderbookCache{rdb: c.rdb, ttl: ttl}
}

type cachedOrder struct {
	Pool        string `json:"pool"`
	PoolID      uint64 `json:"pool_id"`
	Rate        string `json:"rate"`
	Amount      string `json:"amount"`
	Utilization string `json:"utilization"`
	Decimals    uint8  `json:"decimals"`
}

func encodeOrder(o domain.Order) ([]byte, error) {
	return json.Marshal(cachedOrder{
		Pool:        o.Pool.Hex(),
		PoolID:      o.PoolID,
		Rate:        bigString(o.Rate),
		Amount:      bigString(o.Amount),
		Utilization: bigString(o.Utilization),
		Decimals:    o.Decimals,
	})
}

func decodeOrder(raw string) (domain.Order, error) {
	var c cachedOrder
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return domain.Order{}, err
	}
	o := domain.Order{
		Pool:     common.HexToAddress(c.Pool),
		PoolID:   c.PoolID,
		Decimals: c.Decimals,
	}
	var err error
	if o.Rate, err = parseBig(c.Rate); err != nil {
		return domain.Order{}, fmt.Errorf("rate: %w", err)
	}
	if o.Amount, err = parseBig(c.Amount); err != nil {
		return domain.Order{}, fmt.Errorf("amount: %w", err)
	}
	if o.Utilization, err = parseBig(c.Utilization); err != nil {
		return domain.Order{}, fmt.Errorf("utilization: %w", err)
	}
	return o, nil
}

// SetSnapshot atomically replaces the cached snapshot.
func (oc *OrderbookCache) SetSnapshot(ctx context.Context, snap domain.OrderbookSnapshot) error {
	encoded := make([]any, 0, len(snap.Orders))
	for i, o := range snap.Orders {
		b, err := encodeOrder(o)
		if err != nil {
			return fmt.Errorf("redis: encode order %d: %w", i, err)
		}
		encoded = append(encoded, b)
	}

	pipe := oc.rdb.TxPipeline()
	pipe.Del(ctx, ordersKey, metaKey)
	if len(encoded) > 0 {
		pipe.RPush(ctx, ordersKey, encoded...)
	}
	pipe.HSet(ctx, metaKey,
		"block", strconv.FormatUint(snap.BlockNumber, 10),
		"ts", strconv.FormatInt(snap.FetchedAt.UnixNano(), 10),
		"count", strconv.Itoa(len(snap.Orders)),
	)
	if oc.ttl > 0 {
		pipe.Expire(ctx, ordersKey, oc.ttl)
		pipe.Expire(ctx, metaKey, oc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set orderbook snapshot: %w", err)
	}
	return nil
}

// GetSnapshot returns the cached snapshot or domain.ErrNotFound.
func (oc *OrderbookCache) GetSnapshot(ctx context.Context) (domain.OrderbookSnapshot, error) {
	pipe := oc.rdb.Pipeline()
	ordersCmd := pipe.LRange(ctx, ordersKey, 0, -1)
	metaCmd := pipe.HGetAll(ctx, metaKey)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return domain.OrderbookSnapshot{}, fmt.Errorf("redis: get orderbook snapshot: %w", err)
	}

	meta, _ := metaCmd.Result()
	if len(meta) == 0 {
		return domain.OrderbookSnapshot{}, domain.ErrNotFound
	}
	return decodeSnapshot(meta, ordersCmd.Val())
}

func decodeSnapshot(meta map[string]string, rawOrders []string) (domain.OrderbookSnapshot, error) {
	var snap domain.OrderbookSnapshot
	if v, ok := meta["block"]; ok {
		snap.BlockNumber, _ = strconv.ParseUint(v, 10, 64)
	}
	if v, ok := meta["ts"]; ok {
		if ns, err := strconv.ParseInt(v, 10, 64); err == nil {
			snap.FetchedAt = time.Unix(0, ns).UTC()
		}
	}
	if v, ok := meta["count"]; ok {
		if n, err := strconv.Atoi(v); err == nil && n != len(rawOrders) {
			return domain.OrderbookSnapshot{}, fmt.Errorf("redis: orderbook snapshot has %d orders, meta says %d", len(rawOrders), n)
		}
	}
	snap.Orders = make([]domain.Order, 0, len(rawOrders))
	for i, raw := range rawOrders {
		o, err := decodeOrder(raw)
		if err != nil {
			return domain.OrderbookSnapshot{}, fmt.Errorf("redis: decode order %d: %w", i, err)
		}
		snap.Orders = append(snap.Orders, o)
	}
	return snap, nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseBig(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return v, nil
}

var _ domain.OrderbookCache = (*OrderbookCache)(nil)
