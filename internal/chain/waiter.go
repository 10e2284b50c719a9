package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/parzival1821/CredBook/internal/domain"
)

// maxPollFailures is how many consecutive RPC failures a wait tolerates
// before giving up.
const maxPollFailures = 3

// Waiter implements domain.TxWaiter by polling for the transaction receipt.
type Waiter struct {
	client        ReceiptReader
	interval      time.Duration
	confirmations uint64
	logger        *slog.Logger
}

// NewWaiter creates a Waiter. confirmations counts the inclusion block, so 0
// and 1 both return as soon as the receipt is available.
func NewWaiter(client ReceiptReader, interval time.Duration, confirmations uint64, logger *slog.Logger) *Waiter {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Waiter{
		client:        client,
		interval:      interval,
		confirmations: confirmations,
		logger:        logger.With(slog.String("component", "tx_waiter")),
	}
}

// Wait blocks until tx is mined with the configured number of confirmations
// or ctx is done. Abandoning the wait does not cancel the transaction.
func (w *Waiter) Wait(ctx context.Context, tx domain.PendingTx) (domain.TxReceipt, error) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	failures := 0
	for {
		receipt, err := w.client.TransactionReceipt(ctx, tx.Hash)
		switch {
		case err == nil && receipt != nil:
			failures = 0
			out := domain.TxReceipt{
				Hash:    tx.Hash,
				GasUsed: receipt.GasUsed,
				Success: receipt.Status == gethtypes.ReceiptStatusSuccessful,
			}
			if receipt.BlockNumber != nil {
				out.BlockNumber = receipt.BlockNumber.Uint64()
			}
			if !out.Success {
				return out, &domain.RevertError{TxHash: tx.Hash}
			}
			ok, err := w.confirmed(ctx, receipt)
			if err != nil {
				return out, err
			}
			if ok {
				return out, nil
			}
		case err == nil, errors.Is(err, ethereum.NotFound):
			failures = 0
		default:
			if ctx.Err() != nil {
				return domain.TxReceipt{}, ctx.Err()
			}
			failures++
			w.logger.WarnContext(ctx, "receipt poll failed",
				slog.String("tx", tx.Hash.Hex()),
				slog.Int("attempt", failures),
				slog.String("error", err.Error()),
			)
			if failures >= maxPollFailures {
				return domain.TxReceipt{}, fmt.Errorf("chain: wait %s: %w", tx.Hash.Hex(), Classify(err))
			}
		}

		select {
		case <-ctx.Done():
			return domain.TxReceipt{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *Waiter) confirmed(ctx context.Context, receipt *gethtypes.Receipt) (bool, error) {
	if w.confirmations <= 1 || receipt.BlockNumber == nil {
		return true, nil
	}
	header, err := w.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("chain: fetch head: %w", Classify(err))
	}
	if header == nil || header.Number == nil || header.Number.Cmp(receipt.BlockNumber) < 0 {
		return false, nil
	}
	depth := new(big.Int).Sub(header.Number, receipt.BlockNumber)
	depth.Add(depth, big.NewInt(1))
	return depth.Cmp(new(big.Int).SetUint64(w.confirmations)) >= 0, nil
}

var _ domain.TxWaiter = (*Waiter)(nil)
