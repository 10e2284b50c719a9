package domain

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrSignerMissing = errors.New("no signing key configured")
	ErrLockHeld      = errors.New("lock already held")

	ErrInvalidAmount = errors.New("amount must be positive")
	ErrInvalidRate   = errors.New("invalid rate")

	ErrNoLiquidity           = errors.New("no liquidity available")
	ErrRateExceeded          = errors.New("best available rate exceeds rate ceiling")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity at or below rate ceiling")
	ErrInsufficientBalance   = errors.New("insufficient balance")

	ErrTransactionRejected = errors.New("transaction rejected by signer")
	ErrExternalRevert      = errors.New("transaction reverted")
	ErrNetworkUnavailable  = errors.New("network unavailable")
)

// RateExceededError reports the cheapest quoted rate when it is above the
// borrower's ceiling.
type RateExceededError struct {
	BestRate *big.Int
	MaxRate  *big.Int
}

func (e *RateExceededError) Error() string {
	return fmt.Sprintf("%s: best rate %s > max rate %s", ErrRateExceeded, e.BestRate, e.MaxRate)
}

func (e *RateExceededError) Unwrap() error { return ErrRateExceeded }

// InsufficientLiquidityError reports how much liquidity exists at or below
// the borrower's ceiling.
type InsufficientLiquidityError struct {
	Available *big.Int
	Requested *big.Int
}

func (e *InsufficientLiquidityError) Error() string {
	return fmt.Sprintf("%s: available %s < requested %s", ErrInsufficientLiquidity, e.Available, e.Requested)
}

func (e *InsufficientLiquidityError) Unwrap() error { return ErrInsufficientLiquidity }

// InsufficientBalanceError reports a token balance below what an operation
// would pull from the account.
type InsufficientBalanceError struct {
	Token    common.Address
	Symbol   string
	Balance  *big.Int
	Required *big.Int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("%s: %s balance %s < required %s", ErrInsufficientBalance, e.Symbol, e.Balance, e.Required)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// RevertError carries the revert reason returned by a contract, verbatim.
type RevertError struct {
	Reason string
	TxHash common.Hash
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return ErrExternalRevert.Error()
	}
	return fmt.Sprintf("%s: %s", ErrExternalRevert, e.Reason)
}

func (e *RevertError) Unwrap() error { return ErrExternalRevert }
