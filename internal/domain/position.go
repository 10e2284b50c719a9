package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Position is one borrow position of an account as reported by the
// orderbook contract. Amount is the principal in loan-token base units.
type Position struct {
	Pool      common.Address
	PoolID    uint64
	Amount    *big.Int
	Timestamp time.Time
}

// TokenBalance is an account's balance of one token together with the
// allowance it has granted to the orderbook contract.
type TokenBalance struct {
	Token     common.Address
	Symbol    string
	Decimals  uint8
	Balance   *big.Int
	Allowance *big.Int
}

// AccountView is everything the dashboards show for a single account.
type AccountView struct {
	Account         common.Address
	Positions       []Position
	Principal       *big.Int
	Debt            *big.Int
	AccruedInterest *big.Int
	Collateral      TokenBalance
	Loan            TokenBalance
	FetchedAt       time.Time
}
