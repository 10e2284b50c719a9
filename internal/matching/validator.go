// Package matching simulates the orderbook contract's borrow matching against
// a fetched snapshot so that a request can be rejected before any
// transaction is submitted. The result is advisory: the contract remains the
// authority on whether a borrow actually fills.
package matching

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/parzival1821/CredBook/internal/domain"
	"github.com/parzival1821/CredBook/internal/rate"
)

// Outcome classifies a borrow request against a snapshot.
type Outcome int

const (
	Fulfillable Outcome = iota
	NoLiquidity
	RateExceeded
	InsufficientLiquidity
)

func (o Outcome) String() string {
	switch o {
	case Fulfillable:
		return "fulfillable"
	case NoLiquidity:
		return "no_liquidity"
	case RateExceeded:
		return "rate_exceeded"
	case InsufficientLiquidity:
		return "insufficient_liquidity"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Fill is the slice of one order a borrow would consume.
type Fill struct {
	Order  domain.Order
	Amount *big.Int
}

// Result is the outcome of validating one request.
//
// BestRate is the lowest quoted rate (nil for an empty snapshot). Available
// is the liquidity at or below the ceiling that was counted before the scan
// stopped, in the request's decimals; it equals the full capped liquidity
// whenever the outcome is InsufficientLiquidity.
type Result struct {
	Outcome   Outcome
	BestRate  *big.Int
	MaxRate   *big.Int
	Requested *big.Int
	Available *big.Int
	Fills     []Fill
	// Resorted reports that the snapshot was not in ascending rate order.
	Resorted bool
}

// Err maps the outcome to the domain error taxonomy. Fulfillable returns nil.
func (r Result) Err() error {
	switch r.Outcome {
	case Fulfillable:
		return nil
	case NoLiquidity:
		return domain.ErrNoLiquidity
	case RateExceeded:
		return &domain.RateExceededError{BestRate: r.BestRate, MaxRate: r.MaxRate}
	case InsufficientLiquidity:
		return &domain.InsufficientLiquidityError{Available: r.Available, Requested: r.Requested}
	default:
		return fmt.Errorf("matching: unknown outcome %s", r.Outcome)
	}
}

// Validate decides whether req could be filled from orders at rates no
// higher than req.MaxRate. Orders are consumed cheapest first and the scan
// stops as soon as the requested amount is covered. orders is not modified.
func Validate(orders []domain.Order, req domain.BorrowRequest) Result {
	res := Result{
		MaxRate:   new(big.Int).Set(valueOrZero(req.MaxRate)),
		Requested: new(big.Int).Set(valueOrZero(req.RequestedAmount)),
		Available: new(big.Int),
	}
	if len(orders) == 0 {
		res.Outcome = NoLiquidity
		return res
	}

	sorted, resorted := ascending(orders)
	res.Resorted = resorted
	res.BestRate = new(big.Int).Set(valueOrZero(sorted[0].Rate))

	if res.BestRate.Cmp(res.MaxRate) > 0 {
		res.Outcome = RateExceeded
		return res
	}

	for _, o := range sorted {
		if res.Available.Cmp(res.Requested) >= 0 {
			break
		}
		if valueOrZero(o.Rate).Cmp(res.MaxRate) > 0 {
			break
		}
		amount := rate.ScaleUnits(o.Amount, o.Decimals, req.Decimals)
		if amount.Sign() <= 0 {
			continue
		}
		take := new(big.Int).Sub(res.Requested, res.Available)
		if amount.Cmp(take) < 0 {
			take = amount
		}
		res.Available.Add(res.Available, amount)
		res.Fills = append(res.Fills, Fill{Order: o, Amount: take})
	}

	if res.Available.Cmp(res.Requested) < 0 {
		res.Outcome = InsufficientLiquidity
		return res
	}
	res.Outcome = Fulfillable
	return res
}

// ascending returns orders sorted by rate. The input is returned as is when
// already sorted; otherwise a stably sorted copy is returned so equal rates
// keep provider order.
func ascending(orders []domain.Order) ([]domain.Order, bool) {
	less := func(a, b domain.Order) bool {
		return valueOrZero(a.Rate).Cmp(valueOrZero(b.Rate)) < 0
	}
	if sort.SliceIsSorted(orders, func(i, j int) bool { return less(orders[i], orders[j]) }) {
		return orders, false
	}
	out := make([]domain.Order, len(orders))
	copy(out, orders)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out, true
}

var zero = new(big.Int)

func valueOrZero(v *big.Int) *big.Int {
	if v == nil {
		return zero
	}
	return v
}
