package domain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Orderbook is the borrower-facing surface of the orderbook contract.
type Orderbook interface {
	Address() common.Address
	AllOrders(ctx context.Context) (OrderbookSnapshot, error)
	BorrowerPositions(ctx context.Context, borrower common.Address) ([]Position, error)
	ActualDebt(ctx context.Context, borrower common.Address) (*big.Int, error)
	MatchBorrowOrder(ctx context.Context, borrower common.Address, amount, maxRate, collateral *big.Int) (PendingTx, error)
	FulfillRepay(ctx context.Context, borrower common.Address, amount *big.Int) (PendingTx, error)
	Requote(ctx context.Context) (PendingTx, error)
}

// Token is an ERC-20 token contract.
type Token interface {
	Address() common.Address
	Symbol() string
	Decimals() uint8
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
	Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)
	Approve(ctx context.Context, spender common.Address, amount *big.Int) (PendingTx, error)
}

// LendingPool is a lender-facing pool contract.
type LendingPool interface {
	Address() common.Address
	Name() string
	ShareBalance(ctx context.Context, owner common.Address) (*big.Int, error)
	Supply(ctx context.Context, amount *big.Int, onBehalfOf common.Address) (PendingTx, error)
	Withdraw(ctx context.Context, shares *big.Int, onBehalfOf, receiver common.Address) (PendingTx, error)
}

// PriceOracle is the Pyth-backed oracle contract the orderbook prices
// collateral with.
type PriceOracle interface {
	Address() common.Address
	LatestPrice(ctx context.Context) (OracleQuote, error)
	Price(ctx context.Context) (*big.Int, error)
	UpdatePrice(ctx context.Context, updates [][]byte) (PendingTx, error)
}

// TxWaiter blocks until a submitted transaction is mined. A mined but
// reverted transaction is reported as an error wrapping ErrExternalRevert.
type TxWaiter interface {
	Wait(ctx context.Context, tx PendingTx) (TxReceipt, error)
}

// PriceFeed fetches signed price update payloads from an off-chain source.
type PriceFeed interface {
	LatestUpdates(ctx context.Context, feedIDs ...string) ([][]byte, error)
}
