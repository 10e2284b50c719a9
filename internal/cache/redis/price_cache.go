package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/parzival1821/CredBook/internal/domain"
)

// PriceCache implements domain.PriceCache. Each feed is a hash at
// "credbook:price:{feedID}" with fields "value", "decimals" and "ts".
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.rdb}
}

func priceKey(feedID string) string {
	return "credbook:price:" + feedID
}

// SetPrice stores the latest relayed price for a feed.
func (pc *PriceCache) SetPrice(ctx context.Context, p domain.OraclePrice) error {
	err := pc.rdb.HSet(ctx, priceKey(p.FeedID),
		"value", bigString(p.Value),
		"decimals", strconv.Itoa(p.Decimals),
		"ts", strconv.FormatInt(p.UpdatedAt.UnixNano(), 10),
	).Err()
	if err != nil {
		return fmt.Errorf("redis: set price %s: %w", p.FeedID, err)
	}
	return nil
}

// GetPrice returns the latest price for a feed or domain.ErrNotFound.
func (pc *PriceCache) GetPrice(ctx context.Context, feedID string) (domain.OraclePrice, error) {
	vals, err := pc.rdb.HGetAll(ctx, priceKey(feedID)).Result()
	if err != nil {
		return domain.OraclePrice{}, fmt.Errorf("redis: get price %s: %w", feedID, err)
	}
	return decodePrice(feedID, vals)
}

func decodePrice(feedID string, vals map[string]string) (domain.OraclePrice, error) {
	raw, ok := vals["value"]
	if !ok {
		return domain.OraclePrice{}, domain.ErrNotFound
	}
	value, err := parseBig(raw)
	if err != nil {
		return domain.OraclePrice{}, fmt.Errorf("redis: parse price %s: %w", feedID, err)
	}
	p := domain.OraclePrice{FeedID: feedID, Value: value}
	p.Decimals, _ = strconv.Atoi(vals["decimals"])
	if ns, err := strconv.ParseInt(vals["ts"], 10, 64); err == nil {
		p.UpdatedAt = time.Unix(0, ns).UTC()
	}
	return p, nil
}

var _ domain.PriceCache = (*PriceCache)(nil)
