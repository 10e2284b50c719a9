package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/parzival1821/CredBook/internal/domain"
)

// Preflight performs the balance and allowance checks that precede every
// call that pulls tokens from the wallet. Approvals granted here are never
// revoked, so a retry after a failed follow-up call skips the approval.
type Preflight struct {
	recorder *TxRecorder
	logger   *slog.Logger
}

// NewPreflight creates a Preflight that submits approvals through recorder.
func NewPreflight(recorder *TxRecorder, logger *slog.Logger) *Preflight {
	return &Preflight{
		recorder: recorder,
		logger:   logger.With(slog.String("component", "preflight")),
	}
}

// CheckBalance fails with *domain.InsufficientBalanceError when owner holds
// less than required of token.
func (p *Preflight) CheckBalance(ctx context.Context, token domain.Token, owner common.Address, required *big.Int) error {
	balance, err := token.BalanceOf(ctx, owner)
	if err != nil {
		return fmt.Errorf("preflight: %s balance: %w", token.Symbol(), err)
	}
	if balance.Cmp(required) < 0 {
		return &domain.InsufficientBalanceError{
			Token:    token.Address(),
			Symbol:   token.Symbol(),
			Balance:  balance,
			Required: required,
		}
	}
	return nil
}

// EnsureAllowance approves spender for exactly amount when the current
// allowance is lower, and waits for the approval to be mined. It reports
// whether an approval was sent.
func (p *Preflight) EnsureAllowance(ctx context.Context, token domain.Token, owner, spender common.Address, amount *big.Int) (bool, error) {
	allowance, err := token.Allowance(ctx, owner, spender)
	if err != nil {
		return false, fmt.Errorf("preflight: %s allowance: %w", token.Symbol(), err)
	}
	if allowance.Cmp(amount) >= 0 {
		p.logger.DebugContext(ctx, "allowance sufficient",
			slog.String("token", token.Symbol()),
			slog.String("allowance", allowance.String()),
		)
		return false, nil
	}

	p.logger.InfoContext(ctx, "approving token",
		slog.String("token", token.Symbol()),
		slog.String("spender", spender.Hex()),
		slog.String("amount", amount.String()),
	)
	_, err = p.recorder.Execute(ctx, TxIntent{
		Kind:    domain.TxKindApprove,
		Account: owner,
		Target:  token.Address(),
		Amount:  amount,
	}, func(ctx context.Context) (domain.PendingTx, error) {
		return token.Approve(ctx, spender, amount)
	})
	if err != nil {
		return true, fmt.Errorf("preflight: approve %s: %w", token.Symbol(), err)
	}
	return true, nil
}

// Prepare runs CheckBalance followed by EnsureAllowance.
func (p *Preflight) Prepare(ctx context.Context, token domain.Token, owner, spender common.Address, amount *big.Int) error {
	if err := p.CheckBalance(ctx, token, owner, amount); err != nil {
		return err
	}
	_, err := p.EnsureAllowance(ctx, token, owner, spender, amount)
	return err
}
