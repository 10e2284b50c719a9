package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

// fakeBackend implements Backend. Calls are answered from responses keyed
// by method selector; sent transactions are recorded.
type fakeBackend struct {
	mu        sync.Mutex
	block     uint64
	nonce     uint64
	responses map[[4]byte][]byte
	callErr   error
	sendErr   error
	sent      []*gethtypes.Transaction
	callBlock *big.Int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{block: 100, responses: make(map[[4]byte][]byte)}
}

func (b *fakeBackend) respond(parsed abi.ABI, method string, values ...any) {
	m := parsed.Methods[method]
	out, err := m.Outputs.Pack(values...)
	if err != nil {
		panic(fmt.Sprintf("pack %s: %v", method, err))
	}
	var sel [4]byte
	copy(sel[:], m.ID)
	b.responses[sel] = out
}

func (b *fakeBackend) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (b *fakeBackend) CallContract(_ context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callBlock = blockNumber
	if b.callErr != nil {
		return nil, b.callErr
	}
	var sel [4]byte
	copy(sel[:], call.Data)
	out, ok := b.responses[sel]
	if !ok {
		return nil, fmt.Errorf("no response for selector %x", sel)
	}
	return out, nil
}

func (b *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*gethtypes.Header, error) {
	return &gethtypes.Header{Number: new(big.Int).SetUint64(b.block)}, nil
}

func (b *fakeBackend) PendingCodeAt(context.Context, common.Address) ([]byte, error) {
	return []byte{0x60}, nil
}

func (b *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return b.nonce, nil
}

func (b *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (b *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (b *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 90_000, nil
}

func (b *fakeBackend) SendTransaction(_ context.Context, tx *gethtypes.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sendErr != nil {
		return b.sendErr
	}
	b.sent = append(b.sent, tx)
	return nil
}

func (b *fakeBackend) FilterLogs(context.Context, ethereum.FilterQuery) ([]gethtypes.Log, error) {
	return nil, nil
}

func (b *fakeBackend) SubscribeFilterLogs(context.Context, ethereum.FilterQuery, chan<- gethtypes.Log) (ethereum.Subscription, error) {
	return nil, nil
}

func (b *fakeBackend) BlockNumber(context.Context) (uint64, error) {
	return b.block, nil
}
