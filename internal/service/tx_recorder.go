package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/parzival1821/CredBook/internal/domain"
	"github.com/parzival1821/CredBook/internal/metrics"
)

// Notifier delivers operator alerts.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Notification event types.
const (
	EventTxConfirmed = "tx_confirmed"
	EventTxFailed    = "tx_failed"
	EventRelayFailed = "relay_failed"
)

// TxRecorder runs one state-changing call end to end: submit, record, wait
// for the receipt, then persist and publish the outcome. Every collaborator
// other than the waiter is optional.
type TxRecorder struct {
	waiter   domain.TxWaiter
	txs      domain.TxStore
	audit    domain.AuditStore
	bus      domain.SignalBus
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewTxRecorder creates a TxRecorder.
func NewTxRecorder(
	waiter domain.TxWaiter,
	txs domain.TxStore,
	audit domain.AuditStore,
	bus domain.SignalBus,
	notifier Notifier,
	m *metrics.Metrics,
	logger *slog.Logger,
) *TxRecorder {
	return &TxRecorder{
		waiter:   waiter,
		txs:      txs,
		audit:    audit,
		bus:      bus,
		notifier: notifier,
		metrics:  m,
		logger:   logger.With(slog.String("component", "tx_recorder")),
	}
}

// TxIntent describes the call being submitted.
type TxIntent struct {
	Kind    domain.TxKind
	Account common.Address
	Target  common.Address
	Amount  *big.Int
}

// Execute submits the transaction with submit and waits for it to be mined.
// A transaction that was sent but whose wait failed is still recorded; the
// returned error then describes the wait failure.
func (r *TxRecorder) Execute(ctx context.Context, intent TxIntent, submit func(context.Context) (domain.PendingTx, error)) (domain.TxReceipt, error) {
	start := time.Now()
	pending, err := submit(ctx)
	if err != nil {
		r.metrics.Transaction(string(intent.Kind), outcomeOf(err), time.Since(start))
		r.logger.WarnContext(ctx, "transaction not submitted",
			slog.String("kind", string(intent.Kind)),
			slog.String("error", err.Error()),
		)
		return domain.TxReceipt{}, err
	}

	rec := domain.TxRecord{
		ID:        uuid.NewString(),
		Kind:      intent.Kind,
		Hash:      pending.Hash.Hex(),
		Account:   intent.Account.Hex(),
		Target:    intent.Target.Hex(),
		Amount:    intent.Amount,
		Status:    domain.TxStatusPending,
		CreatedAt: start.UTC(),
	}
	if r.txs != nil {
		if err := r.txs.Create(ctx, rec); err != nil {
			r.logger.WarnContext(ctx, "record transaction failed",
				slog.String("hash", rec.Hash),
				slog.String("error", err.Error()),
			)
		}
	}
	r.logger.InfoContext(ctx, "transaction submitted",
		slog.String("kind", string(intent.Kind)),
		slog.String("hash", rec.Hash),
		slog.Uint64("nonce", pending.Nonce),
	)
	r.publish(ctx, rec, "submitted")

	receipt, waitErr := r.waiter.Wait(ctx, pending)
	// The outcome is persisted even when the caller's context is gone.
	persistCtx := context.WithoutCancel(ctx)

	if waitErr != nil {
		var revert *domain.RevertError
		if errors.As(waitErr, &revert) && revert.TxHash == (common.Hash{}) {
			revert.TxHash = pending.Hash
		}
		rec.Status = domain.TxStatusFailed
		rec.Error = waitErr.Error()
		if r.txs != nil {
			if err := r.txs.MarkFailed(persistCtx, rec.ID, rec.Error); err != nil {
				r.logger.WarnContext(ctx, "mark transaction failed", slog.String("hash", rec.Hash), slog.String("error", err.Error()))
			}
		}
		r.metrics.Transaction(string(intent.Kind), outcomeOf(waitErr), time.Since(start))
		r.auditLog(persistCtx, "tx."+string(intent.Kind)+".failed", rec)
		r.publish(persistCtx, rec, "failed")
		r.notify(persistCtx, EventTxFailed, fmt.Sprintf("%s failed", intent.Kind),
			fmt.Sprintf("tx %s: %s", rec.Hash, rec.Error))
		r.logger.ErrorContext(ctx, "transaction failed",
			slog.String("kind", string(intent.Kind)),
			slog.String("hash", rec.Hash),
			slog.String("error", waitErr.Error()),
		)
		return receipt, waitErr
	}

	rec.Status = domain.TxStatusConfirmed
	rec.BlockNumber = receipt.BlockNumber
	rec.GasUsed = receipt.GasUsed
	if r.txs != nil {
		if err := r.txs.MarkConfirmed(persistCtx, rec.ID, receipt); err != nil {
			r.logger.WarnContext(ctx, "mark transaction confirmed", slog.String("hash", rec.Hash), slog.String("error", err.Error()))
		}
	}
	r.metrics.Transaction(string(intent.Kind), "confirmed", time.Since(start))
	r.auditLog(persistCtx, "tx."+string(intent.Kind), rec)
	r.publish(persistCtx, rec, "confirmed")
	r.notify(persistCtx, EventTxConfirmed, fmt.Sprintf("%s confirmed", intent.Kind),
		fmt.Sprintf("tx %s in block %d", rec.Hash, rec.BlockNumber))
	r.logger.InfoContext(ctx, "transaction confirmed",
		slog.String("kind", string(intent.Kind)),
		slog.String("hash", rec.Hash),
		slog.Uint64("block", receipt.BlockNumber),
		slog.Uint64("gas_used", receipt.GasUsed),
	)
	return receipt, nil
}

func (r *TxRecorder) publish(ctx context.Context, rec domain.TxRecord, stage string) {
	if r.bus == nil {
		return
	}
	evt, _ := json.Marshal(map[string]any{
		"event":   "transaction",
		"stage":   stage,
		"kind":    rec.Kind,
		"hash":    rec.Hash,
		"account": rec.Account,
		"target":  rec.Target,
		"amount":  bigString(rec.Amount),
		"block":   rec.BlockNumber,
		"error":   rec.Error,
	})
	if err := r.bus.Publish(ctx, domain.ChannelTransactions, evt); err != nil {
		r.logger.WarnContext(ctx, "publish transaction event failed",
			slog.String("hash", rec.Hash),
			slog.String("error", err.Error()),
		)
	}
}

func (r *TxRecorder) auditLog(ctx context.Context, event string, rec domain.TxRecord) {
	if r.audit == nil {
		return
	}
	detail := map[string]any{
		"id":      rec.ID,
		"hash":    rec.Hash,
		"account": rec.Account,
		"target":  rec.Target,
		"amount":  bigString(rec.Amount),
		"status":  string(rec.Status),
	}
	if rec.Error != "" {
		detail["error"] = rec.Error
	}
	if err := r.audit.Log(ctx, event, detail); err != nil {
		r.logger.WarnContext(ctx, "audit log failed", slog.String("event", event), slog.String("error", err.Error()))
	}
}

func (r *TxRecorder) notify(ctx context.Context, event, title, message string) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Notify(ctx, event, title, message); err != nil {
		r.logger.WarnContext(ctx, "notify failed", slog.String("event", event), slog.String("error", err.Error()))
	}
}

// outcomeOf labels an error for metrics.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "confirmed"
	case errors.Is(err, domain.ErrExternalRevert):
		return "reverted"
	case errors.Is(err, domain.ErrTransactionRejected):
		return "rejected"
	case errors.Is(err, domain.ErrNetworkUnavailable):
		return "network"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "abandoned"
	default:
		return "error"
	}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
