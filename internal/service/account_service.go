package service

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/parzival1821/CredBook/internal/domain"
)

// AccountService assembles the per-account view from independent contract
// reads issued concurrently.
type AccountService struct {
	orderbook  domain.Orderbook
	collateral domain.Token
	loan       domain.Token
	now        func() time.Time
}

// NewAccountService creates an AccountService.
func NewAccountService(orderbook domain.Orderbook, collateral, loan domain.Token) *AccountService {
	return &AccountService{
		orderbook:  orderbook,
		collateral: collateral,
		loan:       loan,
		now:        time.Now,
	}
}

// View reads positions, debt, balances and allowances of account. Any failed
// read fails the whole view.
func (s *AccountService) View(ctx context.Context, account common.Address) (domain.AccountView, error) {
	view := domain.AccountView{Account: account}
	spender := s.orderbook.Address()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		positions, err := s.orderbook.BorrowerPositions(gctx, account)
		if err != nil {
			return fmt.Errorf("positions: %w", err)
		}
		view.Positions = positions
		return nil
	})
	g.Go(func() error {
		debt, err := s.orderbook.ActualDebt(gctx, account)
		if err != nil {
			return fmt.Errorf("debt: %w", err)
		}
		view.Debt = debt
		return nil
	})
	g.Go(func() error {
		bal, err := tokenBalance(gctx, s.collateral, account, spender)
		view.Collateral = bal
		return err
	})
	g.Go(func() error {
		bal, err := tokenBalance(gctx, s.loan, account, spender)
		view.Loan = bal
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.AccountView{}, fmt.Errorf("account service: %s: %w", account.Hex(), err)
	}

	view.Principal = new(big.Int)
	for _, p := range view.Positions {
		if p.Amount != nil {
			view.Principal.Add(view.Principal, p.Amount)
		}
	}
	if view.Debt == nil {
		view.Debt = new(big.Int)
	}
	view.AccruedInterest = accruedInterest(view.Debt, view.Principal)
	view.FetchedAt = s.now().UTC()
	return view, nil
}

// accruedInterest is debt minus principal, never negative.
func accruedInterest(debt, principal *big.Int) *big.Int {
	out := new(big.Int).Sub(debt, principal)
	if out.Sign() < 0 {
		out.SetInt64(0)
	}
	return out
}

func tokenBalance(ctx context.Context, token domain.Token, owner, spender common.Address) (domain.TokenBalance, error) {
	out := domain.TokenBalance{
		Token:    token.Address(),
		Symbol:   token.Symbol(),
		Decimals: token.Decimals(),
	}
	bal, err := token.BalanceOf(ctx, owner)
	if err != nil {
		return out, fmt.Errorf("%s balance: %w", token.Symbol(), err)
	}
	allowance, err := token.Allowance(ctx, owner, spender)
	if err != nil {
		return out, fmt.Errorf("%s allowance: %w", token.Symbol(), err)
	}
	out.Balance = bal
	out.Allowance = allowance
	return out, nil
}
