package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/parzival1821/CredBook/internal/domain"
	"github.com/parzival1821/CredBook/internal/matching"
	"github.com/parzival1821/CredBook/internal/rate"
)

// Reloader re-reads ledger state after a transaction settles.
type Reloader interface {
	Reload(ctx context.Context)
}

// BorrowInput is a borrow intent in human units as entered by a user.
type BorrowInput struct {
	Amount     string           `json:"amount"`
	Collateral string           `json:"collateral"`
	OrderType  domain.OrderType `json:"order_type"`
	LimitAPR   string           `json:"limit_apr,omitempty"`
}

// Quote is the result of validating a borrow intent against a fresh
// snapshot.
type Quote struct {
	Request     domain.BorrowRequest
	OrderType   domain.OrderType
	Result      matching.Result
	BlockNumber uint64
}

// TxOutcome describes a completed state-changing flow.
type TxOutcome struct {
	Receipt  domain.TxReceipt
	Approved bool
}

// BorrowService runs the borrower flows for the configured wallet. Flows are
// serialized so approvals and nonces of one flow never interleave with
// another's.
type BorrowService struct {
	mu sync.Mutex

	orderbook  domain.Orderbook
	book       *OrderbookService
	collateral domain.Token
	loan       domain.Token
	preflight  *Preflight
	recorder   *TxRecorder
	reloader   Reloader
	account    common.Address
	marketAPR  string
	logger     *slog.Logger
}

// NewBorrowService creates a BorrowService acting for account. A zero
// account makes every state-changing flow fail with domain.ErrSignerMissing.
func NewBorrowService(
	orderbook domain.Orderbook,
	book *OrderbookService,
	collateral, loan domain.Token,
	preflight *Preflight,
	recorder *TxRecorder,
	reloader Reloader,
	account common.Address,
	marketAPR string,
	logger *slog.Logger,
) *BorrowService {
	if marketAPR == "" {
		marketAPR = rate.MarketOrderAPR
	}
	return &BorrowService{
		orderbook:  orderbook,
		book:       book,
		collateral: collateral,
		loan:       loan,
		preflight:  preflight,
		recorder:   recorder,
		reloader:   reloader,
		account:    account,
		marketAPR:  marketAPR,
		logger:     logger.With(slog.String("component", "borrow_service")),
	}
}

// Request converts a human borrow intent into contract units. Amounts must
// be positive and the rate ceiling is the market ceiling for market orders
// or the given APR for limit orders.
func (s *BorrowService) Request(in BorrowInput) (domain.BorrowRequest, error) {
	amount, err := positiveUnits(in.Amount, s.loan.Decimals(), "amount")
	if err != nil {
		return domain.BorrowRequest{}, err
	}
	collateral, err := positiveUnits(in.Collateral, s.collateral.Decimals(), "collateral")
	if err != nil {
		return domain.BorrowRequest{}, err
	}

	var maxRate *big.Int
	switch in.OrderType {
	case domain.OrderTypeMarket, "":
		maxRate, err = rate.APRToPerSecondWAD(s.marketAPR)
	case domain.OrderTypeLimit:
		if strings.TrimSpace(in.LimitAPR) == "" {
			return domain.BorrowRequest{}, fmt.Errorf("limit order needs an APR: %w", domain.ErrInvalidRate)
		}
		maxRate, err = rate.APRToPerSecondWAD(in.LimitAPR)
	default:
		return domain.BorrowRequest{}, fmt.Errorf("unknown order type %q: %w", in.OrderType, domain.ErrInvalidRate)
	}
	if err != nil {
		return domain.BorrowRequest{}, err
	}

	return domain.BorrowRequest{
		RequestedAmount:  amount,
		MaxRate:          maxRate,
		CollateralAmount: collateral,
		Decimals:         s.loan.Decimals(),
	}, nil
}

// Quote validates in against a freshly fetched snapshot without submitting
// anything. An unfulfillable request is not an error; inspect
// Quote.Result.Outcome.
func (s *BorrowService) Quote(ctx context.Context, in BorrowInput) (Quote, error) {
	req, err := s.Request(in)
	if err != nil {
		return Quote{}, err
	}
	return s.quote(ctx, req, in.OrderType)
}

func (s *BorrowService) quote(ctx context.Context, req domain.BorrowRequest, ot domain.OrderType) (Quote, error) {
	if ot == "" {
		ot = domain.OrderTypeMarket
	}
	snap, err := s.book.Fetch(ctx)
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		Request:     req,
		OrderType:   ot,
		Result:      s.book.Validate(ctx, snap, req),
		BlockNumber: snap.BlockNumber,
	}, nil
}

// Borrow validates in and, when the snapshot can fill it, locks collateral
// and submits matchBorrowOrder.
func (s *BorrowService) Borrow(ctx context.Context, in BorrowInput) (TxOutcome, error) {
	req, err := s.Request(in)
	if err != nil {
		return TxOutcome{}, err
	}
	if s.account == (common.Address{}) {
		return TxOutcome{}, domain.ErrSignerMissing
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	q, err := s.quote(ctx, req, in.OrderType)
	if err != nil {
		return TxOutcome{}, err
	}
	if err := q.Result.Err(); err != nil {
		s.logger.InfoContext(ctx, "borrow rejected before submission",
			slog.String("outcome", q.Result.Outcome.String()),
			slog.String("requested", req.RequestedAmount.String()),
			slog.String("max_apr", rate.PerSecondWADToAPR(req.MaxRate)),
		)
		return TxOutcome{}, err
	}

	if err := s.preflight.CheckBalance(ctx, s.collateral, s.account, req.CollateralAmount); err != nil {
		return TxOutcome{}, err
	}
	approved, err := s.preflight.EnsureAllowance(ctx, s.collateral, s.account, s.orderbook.Address(), req.CollateralAmount)
	if err != nil {
		return TxOutcome{Approved: approved}, err
	}

	receipt, err := s.recorder.Execute(ctx, TxIntent{
		Kind:    domain.TxKindBorrow,
		Account: s.account,
		Target:  s.orderbook.Address(),
		Amount:  req.RequestedAmount,
	}, func(ctx context.Context) (domain.PendingTx, error) {
		return s.orderbook.MatchBorrowOrder(ctx, s.account, req.RequestedAmount, req.MaxRate, req.CollateralAmount)
	})
	s.reload(ctx)
	if err != nil {
		return TxOutcome{Receipt: receipt, Approved: approved}, fmt.Errorf("borrow: %w", err)
	}
	return TxOutcome{Receipt: receipt, Approved: approved}, nil
}

// Repay pays back amount (human units of the loan token).
func (s *BorrowService) Repay(ctx context.Context, amount string) (TxOutcome, error) {
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
	approved, err := s.preflight.EnsureAllowance(ctx, s.loan, s.account, s.orderbook.Address(), units)
	if err != nil {
		return TxOutcome{Approved: approved}, err
	}

	receipt, err := s.recorder.Execute(ctx, TxIntent{
		Kind:    domain.TxKindRepay,
		Account: s.account,
		Target:  s.orderbook.Address(),
		Amount:  units,
	}, func(ctx context.Context) (domain.PendingTx, error) {
		return s.orderbook.FulfillRepay(ctx, s.account, units)
	})
	s.reload(ctx)
	if err != nil {
		return TxOutcome{Receipt: receipt, Approved: approved}, fmt.Errorf("repay: %w", err)
	}
	return TxOutcome{Receipt: receipt, Approved: approved}, nil
}

// Requote asks the orderbook contract to rebuild its quotes.
func (s *BorrowService) Requote(ctx context.Context) (TxOutcome, error) {
	if s.account == (common.Address{}) {
		return TxOutcome{}, domain.ErrSignerMissing
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	receipt, err := s.recorder.Execute(ctx, TxIntent{
		Kind:    domain.TxKindRequote,
		Account: s.account,
		Target:  s.orderbook.Address(),
	}, s.orderbook.Requote)
	s.reload(ctx)
	if err != nil {
		return TxOutcome{Receipt: receipt}, fmt.Errorf("requote: %w", err)
	}
	return TxOutcome{Receipt: receipt}, nil
}

func (s *BorrowService) reload(ctx context.Context) {
	if s.reloader != nil {
		s.reloader.Reload(context.WithoutCancel(ctx))
	}
}

// positiveUnits parses a human amount and rejects zero.
func positiveUnits(amount string, decimals uint8, field string) (*big.Int, error) {
	units, err := rate.ParseUnits(amount, decimals)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	if units.Sign() <= 0 {
		return nil, fmt.Errorf("%s %q: %w", field, amount, domain.ErrInvalidAmount)
	}
	return units, nil
}
