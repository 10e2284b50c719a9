package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Order is a single lending quote published by a pool on the orderbook
// contract. Rate is a per-second WAD rate, Amount is denominated in the base
// units of the pool's loan token and Utilization is a WAD fraction.
type Order struct {
	Pool        common.Address
	PoolID      uint64
	Rate        *big.Int
	Amount      *big.Int
	Utilization *big.Int
	Decimals    uint8
}

// OrderbookSnapshot is the full set of orders as returned by the orderbook
// contract, in provider order.
type OrderbookSnapshot struct {
	Orders      []Order
	BlockNumber uint64
	FetchedAt   time.Time
}

// Empty reports whether the snapshot carries no quotes.
func (s OrderbookSnapshot) Empty() bool {
	return len(s.Orders) == 0
}

// OrderType selects how the borrower's rate ceiling is chosen.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// BorrowRequest is a validated borrow intent in contract units.
type BorrowRequest struct {
	RequestedAmount  *big.Int
	MaxRate          *big.Int
	CollateralAmount *big.Int
	Decimals         uint8
}

// PoolSummary aggregates the quotes of one pool within a snapshot.
type PoolSummary struct {
	Pool        common.Address
	PoolID      uint64
	Name        string
	BestRate    *big.Int
	Liquidity   *big.Int
	Utilization *big.Int
	Quotes      int
}
