package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/parzival1821/CredBook/internal/domain"
)

// rawOrder mirrors the tuple returned by getAllOrders.
type rawOrder struct {
	Rate        *big.Int
	Amount      *big.Int
	Pool        common.Address
	PoolId      *big.Int
	Utilization *big.Int
}

// rawPosition mirrors the tuple returned by getBorrowerPositions.
type rawPosition struct {
	Pool      common.Address
	PoolId    *big.Int
	Amount    *big.Int
	Timestamp *big.Int
}

// Orderbook binds the orderbook contract.
type Orderbook struct {
	*boundContract
	backend      Backend
	decimals     uint8
	poolDecimals map[common.Address]uint8
}

// NewOrderbook binds the orderbook at address. decimals is the precision of
// quoted amounts; poolDecimals overrides it for pools lending a token with a
// different precision.
func NewOrderbook(address common.Address, backend Backend, signer TxSigner, decimals uint8, poolDecimals map[common.Address]uint8) *Orderbook {
	return &Orderbook{
		boundContract: newBoundContract("orderbook", address, orderbookABI, backend, signer),
		backend:       backend,
		decimals:      decimals,
		poolDecimals:  poolDecimals,
	}
}

// AllOrders reads every quote, pinned to the latest block so the snapshot is
// consistent.
func (o *Orderbook) AllOrders(ctx context.Context) (domain.OrderbookSnapshot, error) {
	block, err := o.backend.BlockNumber(ctx)
	if err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("chain: orderbook block number: %w", Classify(err))
	}
	out, err := o.call(ctx, &bind.CallOpts{BlockNumber: new(big.Int).SetUint64(block)}, "getAllOrders")
	if err != nil {
		return domain.OrderbookSnapshot{}, err
	}
	raw := *abi.ConvertType(out[0], new([]rawOrder)).(*[]rawOrder)

	orders := make([]domain.Order, 0, len(raw))
	for i, r := range raw {
		poolID, err := toUint64(r.PoolId)
		if err != nil {
			return domain.OrderbookSnapshot{}, fmt.Errorf("chain: order %d pool id: %w", i, err)
		}
		orders = append(orders, domain.Order{
			Pool:        r.Pool,
			PoolID:      poolID,
			Rate:        r.Rate,
			Amount:      r.Amount,
			Utilization: r.Utilization,
			Decimals:    o.decimalsFor(r.Pool),
		})
	}
	return domain.OrderbookSnapshot{
		Orders:      orders,
		BlockNumber: block,
		FetchedAt:   time.Now().UTC(),
	}, nil
}

// BorrowerPositions reads the open positions of borrower.
func (o *Orderbook) BorrowerPositions(ctx context.Context, borrower common.Address) ([]domain.Position, error) {
	out, err := o.call(ctx, nil, "getBorrowerPositions", borrower)
	if err != nil {
		return nil, err
	}
	raw := *abi.ConvertType(out[0], new([]rawPosition)).(*[]rawPosition)

	positions := make([]domain.Position, 0, len(raw))
	for i, r := range raw {
		poolID, err := toUint64(r.PoolId)
		if err != nil {
			return nil, fmt.Errorf("chain: position %d pool id: %w", i, err)
		}
		ts, err := toUint64(r.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("chain: position %d timestamp: %w", i, err)
		}
		positions = append(positions, domain.Position{
			Pool:      r.Pool,
			PoolID:    poolID,
			Amount:    r.Amount,
			Timestamp: time.Unix(int64(ts), 0).UTC(),
		})
	}
	return positions, nil
}

// ActualDebt reads the borrower's principal plus accrued interest.
func (o *Orderbook) ActualDebt(ctx context.Context, borrower common.Address) (*big.Int, error) {
	return o.callBigInt(ctx, "getActualDebt", borrower)
}

// MatchBorrowOrder submits a borrow that the contract fills from quotes at or
// below maxRate.
func (o *Orderbook) MatchBorrowOrder(ctx context.Context, borrower common.Address, amount, maxRate, collateral *big.Int) (domain.PendingTx, error) {
	return o.transact(ctx, txOptions{}, "matchBorrowOrder", borrower, amount, maxRate, collateral)
}

// FulfillRepay submits a repayment of amount on behalf of borrower.
func (o *Orderbook) FulfillRepay(ctx context.Context, borrower common.Address, amount *big.Int) (domain.PendingTx, error) {
	return o.transact(ctx, txOptions{}, "fulfillRepay", borrower, amount)
}

// Requote asks the orderbook to recompute every pool's quotes.
func (o *Orderbook) Requote(ctx context.Context) (domain.PendingTx, error) {
	return o.transact(ctx, txOptions{}, "requote")
}

func (o *Orderbook) decimalsFor(pool common.Address) uint8 {
	if d, ok := o.poolDecimals[pool]; ok {
		return d
	}
	return o.decimals
}

func toUint64(v *big.Int) (uint64, error) {
	if v == nil {
		return 0, nil
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("value %s overflows uint64", v)
	}
	return v.Uint64(), nil
}

var _ domain.Orderbook = (*Orderbook)(nil)
