package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/parzival1821/CredBook/internal/domain"
)

// PoolShares is a lender's share balance in one pool.
type PoolShares struct {
	Pool   common.Address
	Name   string
	Shares *big.Int
}

// LendService runs the lender flows for the configured wallet. Pool shares
// use the loan token's decimals.
type LendService struct {
	mu sync.Mutex

	pools     map[common.Address]domain.LendingPool
	order     []common.Address
	loan      domain.Token
	preflight *Preflight
	recorder  *TxRecorder
	reloader  Reloader
	account   common.Address
	logger    *slog.Logger
}

// NewLendService creates a LendService over pools, listed in the given order.
func NewLendService(
	pools []domain.LendingPool,
	loan domain.Token,
	preflight *Preflight,
	recorder *TxRecorder,
	reloader Reloader,
	account common.Address,
	logger *slog.Logger,
) *LendService {
	s := &LendService{
		pools:     make(map[common.Address]domain.LendingPool, len(pools)),
		loan:      loan,
		preflight: preflight,
		recorder:  recorder,
		reloader:  reloader,
		account:   account,
		logger:    logger.With(slog.String("component", "lend_service")),
	}
	for _, p := range pools {
		s.pools[p.Address()] = p
		s.order = append(s.order, p.Address())
	}
	return s
}

// Pools returns the configured pools in order.
func (s *LendService) Pools() []domain.LendingPool {
	out := make([]domain.LendingPool, 0, len(s.order))
	for _, addr := range s.order {
		out = append(out, s.pools[addr])
	}
	return out
}

// Supply deposits amount (human units of the loan token) into pool.
func (s *LendService) Supply(ctx context.Context, pool common.Address, amount string) (TxOutcome, error) {
	p, err := s.pool(pool)
	if err != nil {
		return TxOutcome{}, err
	}
	units, err := positiveUnits(amount, s.loan.Decimals(), "amount")
	if err != nil {
		return TxOutcome{}, err
	}
	if s.account == (common.Address{}) {
		return TxOutcome{}, domain.ErrSignerMissing
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.preflight.CheckBalance(ctx, s.loan, s.account, units); err != nil {
		return TxOutcome{}, err
	}
	approved, err := s.preflight.EnsureAllowance(ctx, s.loan, s.account, p.Address(), units)
	if err != nil {
		return TxOutcome{Approved: approved}, err
	}

	receipt, err := s.recorder.Execute(ctx, TxIntent{
		Kind:    domain.TxKindSupply,
		Account: s.account,
		Target:  p.Address(),
		Amount:  units,
	}, func(ctx context.Context) (domain.PendingTx, error) {
		return p.Supply(ctx, units, s.account)
	})
	s.reload(ctx)
	if err != nil {
		return TxOutcome{Receipt: receipt, Approved: approved}, fmt.Errorf("supply %s: %w", p.Name(), err)
	}
	return TxOutcome{Receipt: receipt, Approved: approved}, nil
}

// Withdraw redeems shares (human units) from pool back to the wallet.
func (s *LendService) Withdraw(ctx context.Context, pool common.Address, shares string) (TxOutcome, error) {
	p, err := s.pool(pool)
	if err != nil {
		return TxOutcome{}, err
	}
	units, err := positiveUnits(shares, s.loan.Decimals(), "shares")
	if err != nil {
		return TxOutcome{}, err
	}
	if s.account == (common.Address{}) {
		return TxOutcome{}, domain.ErrSignerMissing
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	held, err := p.ShareBalance(ctx, s.account)
	if err != nil {
		return TxOutcome{}, fmt.Errorf("withdraw %s: share balance: %w", p.Name(), err)
	}
	if held.Cmp(units) < 0 {
		return TxOutcome{}, &domain.InsufficientBalanceError{
			Token:    p.Address(),
			Symbol:   p.Name(),
			Balance:  held,
			Required: units,
		}
	}

	receipt, err := s.recorder.Execute(ctx, TxIntent{
		Kind:    domain.TxKindWithdraw,
		Account: s.account,
		Target:  p.Address(),
		Amount:  units,
	}, func(ctx context.Context) (domain.PendingTx, error) {
		return p.Withdraw(ctx, units, s.account, s.account)
	})
	s.reload(ctx)
	if err != nil {
		return TxOutcome{Receipt: receipt}, fmt.Errorf("withdraw %s: %w", p.Name(), err)
	}
	return TxOutcome{Receipt: receipt}, nil
}

// Shares returns owner's share balance in every pool.
func (s *LendService) Shares(ctx context.Context, owner common.Address) ([]PoolShares, error) {
	out := make([]PoolShares, 0, len(s.order))
	for _, addr := range s.order {
		p := s.pools[addr]
		bal, err := p.ShareBalance(ctx, owner)
		if err != nil {
			return nil, fmt.Errorf("lend service: shares in %s: %w", p.Name(), err)
		}
		out = append(out, PoolShares{Pool: addr, Name: p.Name(), Shares: bal})
	}
	return out, nil
}

func (s *LendService) pool(addr common.Address) (domain.LendingPool, error) {
	p, ok := s.pools[addr]
	if !ok {
		return nil, fmt.Errorf("pool %s: %w", addr.Hex(), domain.ErrNotFound)
	}
	return p, nil
}

func (s *LendService) reload(ctx context.Context) {
	if s.reloader != nil {
		s.reloader.Reload(context.WithoutCancel(ctx))
	}
}
