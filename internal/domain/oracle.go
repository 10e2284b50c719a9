package domain

import (
	"math/big"
	"time"
)

// OracleQuote is the price stored on the oracle contract together with the
// publish time of the underlying feed update.
type OracleQuote struct {
	Price       int64
	PublishTime time.Time
}

// Age returns how old the quote is relative to now. Quotes published in the
// future report zero age.
func (q OracleQuote) Age(now time.Time) time.Duration {
	if q.PublishTime.After(now) {
		return 0
	}
	return now.Sub(q.PublishTime)
}

// OraclePrice is the scaled price the oracle exposes to the orderbook.
type OraclePrice struct {
	FeedID    string
	Value     *big.Int
	Decimals  int
	UpdatedAt time.Time
}
