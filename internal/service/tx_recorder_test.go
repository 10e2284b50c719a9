package service

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parzival1821/CredBook/internal/domain"
)

func TestTxRecorderConfirmed(t *testing.T) {
	txs := newMemTxStore()
	audit := &memAudit{}
	bus := &memBus{}
	n := &recordingNotifier{}
	r := NewTxRecorder(&fakeWaiter{}, txs, audit, bus, n, nil, discardLog)

	receipt, err := r.Execute(context.Background(), TxIntent{
		Kind: domain.TxKindSupply, Account: wallet, Target: poolA, Amount: big.NewInt(5),
	}, func(context.Context) (domain.PendingTx, error) {
		return domain.PendingTx{Hash: common.HexToHash("0xabc"), To: poolA}, nil
	})
	require.NoError(t, err)
	assert.True(t, receipt.Success)

	recs := txs.all()
	require.Len(t, recs, 1)
	assert.Equal(t, domain.TxStatusConfirmed, recs[0].Status)
	assert.Equal(t, common.HexToHash("0xabc").Hex(), recs[0].Hash)
	assert.Equal(t, wallet.Hex(), recs[0].Account)
	assert.Equal(t, uint64(10), recs[0].BlockNumber)
	assert.NotNil(t, recs[0].ConfirmedAt)

	assert.Equal(t, []string{"tx.supply"}, audit.list())
	assert.Equal(t, []string{EventTxConfirmed}, n.list())

	require.Equal(t, 2, bus.count(domain.ChannelTransactions))
	var evt map[string]any
	require.NoError(t, json.Unmarshal(bus.messages[domain.ChannelTransactions][1], &evt))
	assert.Equal(t, "confirmed", evt["stage"])
	assert.Equal(t, "5", evt["amount"])
}

func TestTxRecorderFailed(t *testing.T) {
	txs := newMemTxStore()
	audit := &memAudit{}
	n := &recordingNotifier{}
	w := &fakeWaiter{failAll: &domain.RevertError{Reason: "paused"}}
	r := NewTxRecorder(w, txs, audit, nil, n, nil, discardLog)

	hash := common.HexToHash("0xdef")
	_, err := r.Execute(context.Background(), TxIntent{Kind: domain.TxKindRequote, Account: wallet, Target: bookAddr},
		func(context.Context) (domain.PendingTx, error) {
			return domain.PendingTx{Hash: hash}, nil
		})
	var revert *domain.RevertError
	require.ErrorAs(t, err, &revert)
	assert.Equal(t, hash, revert.TxHash)

	recs := txs.all()
	require.Len(t, recs, 1)
	assert.Equal(t, domain.TxStatusFailed, recs[0].Status)
	assert.Contains(t, recs[0].Error, "paused")
	assert.Equal(t, []string{"tx.requote.failed"}, audit.list())
	assert.Equal(t, []string{EventTxFailed}, n.list())
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, "confirmed", outcomeOf(nil))
	assert.Equal(t, "reverted", outcomeOf(&domain.RevertError{}))
	assert.Equal(t, "rejected", outcomeOf(domain.ErrTransactionRejected))
	assert.Equal(t, "network", outcomeOf(domain.ErrNetworkUnavailable))
	assert.Equal(t, "abandoned", outcomeOf(context.Canceled))
	assert.Equal(t, "error", outcomeOf(assert.AnError))
}

func TestPreflightAllowanceOnlyWhenShort(t *testing.T) {
	c := &calls{}
	token := newFakeToken(loanAddr, "USDC", 6, c)
	token.allowance[bookAddr] = big.NewInt(10)
	p := NewPreflight(NewTxRecorder(&fakeWaiter{calls: c}, nil, nil, nil, nil, nil, discardLog), discardLog)

	approved, err := p.EnsureAllowance(context.Background(), token, wallet, bookAddr, big.NewInt(10))
	require.NoError(t, err)
	assert.False(t, approved)
	assert.Empty(t, c.list())

	approved, err = p.EnsureAllowance(context.Background(), token, wallet, bookAddr, big.NewInt(11))
	require.NoError(t, err)
	assert.True(t, approved)
	assert.Equal(t, big.NewInt(11), token.allowance[bookAddr])
}

func TestPreflightApproveRejected(t *testing.T) {
	c := &calls{}
	token := newFakeToken(loanAddr, "USDC", 6, c)
	token.balances[wallet] = big.NewInt(100)
	token.approveErr = domain.ErrTransactionRejected
	p := NewPreflight(NewTxRecorder(&fakeWaiter{}, nil, nil, nil, nil, nil, discardLog), discardLog)

	err := p.Prepare(context.Background(), token, wallet, bookAddr, big.NewInt(50))
	require.ErrorIs(t, err, domain.ErrTransactionRejected)

	err = p.Prepare(context.Background(), token, wallet, bookAddr, big.NewInt(500))
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
}
