package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/parzival1821/CredBook/internal/domain"
)

// TxSigner produces transaction options for the wallet that pays for and
// signs state-changing calls. The lock is held from nonce selection until
// the transaction has been sent.
type TxSigner interface {
	sync.Locker
	Address() common.Address
	TransactOpts(ctx context.Context) (*bind.TransactOpts, error)
}

// txOptions overrides the signer's defaults for one transaction.
type txOptions struct {
	value    *big.Int
	gasLimit uint64
}

// boundContract is the shared plumbing of every binding in this package.
// signer may be nil, in which case the binding is read-only.
type boundContract struct {
	name    string
	address common.Address
	bound   *bind.BoundContract
	signer  TxSigner
}

func newBoundContract(name string, address common.Address, parsed abi.ABI, backend bind.ContractBackend, signer TxSigner) *boundContract {
	return &boundContract{
		name:    name,
		address: address,
		bound:   bind.NewBoundContract(address, parsed, backend, backend, backend),
		signer:  signer,
	}
}

func (c *boundContract) Address() common.Address { return c.address }

func (c *boundContract) call(ctx context.Context, opts *bind.CallOpts, method string, args ...any) ([]any, error) {
	if opts == nil {
		opts = &bind.CallOpts{}
	}
	opts.Context = ctx
	var out []any
	if err := c.bound.Call(opts, &out, method, args...); err != nil {
		return nil, fmt.Errorf("chain: %s.%s: %w", c.name, method, Classify(err))
	}
	return out, nil
}

func (c *boundContract) callBigInt(ctx context.Context, method string, args ...any) (*big.Int, error) {
	out, err := c.call(ctx, nil, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("chain: %s.%s: unexpected result type %T", c.name, method, out[0])
	}
	return v, nil
}

func (c *boundContract) transact(ctx context.Context, override txOptions, method string, args ...any) (domain.PendingTx, error) {
	if c.signer == nil {
		return domain.PendingTx{}, fmt.Errorf("chain: %s.%s: %w", c.name, method, domain.ErrSignerMissing)
	}
	opts, err := c.signer.TransactOpts(ctx)
	if err != nil {
		return domain.PendingTx{}, fmt.Errorf("chain: %s.%s: transact opts: %w", c.name, method, err)
	}
	if override.value != nil {
		opts.Value = override.value
	}
	if override.gasLimit > 0 {
		opts.GasLimit = override.gasLimit
	}
	c.signer.Lock()
	tx, err := c.bound.Transact(opts, method, args...)
	c.signer.Unlock()
	if err != nil {
		return domain.PendingTx{}, fmt.Errorf("chain: %s.%s: %w", c.name, method, Classify(err))
	}
	return domain.PendingTx{
		Hash:  tx.Hash(),
		From:  opts.From,
		To:    c.address,
		Nonce: tx.Nonce(),
	}, nil
}
