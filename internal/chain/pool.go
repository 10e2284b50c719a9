package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/parzival1821/CredBook/internal/domain"
)

// Pool binds a lending pool.
type Pool struct {
	*boundContract
	label string
}

// NewPool binds the pool at address under a display label.
func NewPool(address common.Address, label string, backend Backend, signer TxSigner) *Pool {
	return &Pool{
		boundContract: newBoundContract("pool:"+label, address, poolABI, backend, signer),
		label:         label,
	}
}

func (p *Pool) Name() string { return p.label }

// ShareBalance reads owner's pool shares.
func (p *Pool) ShareBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	return p.callBigInt(ctx, "balanceOf", owner)
}

// Supply deposits amount of the loan token for onBehalfOf. No minimum share
// amount is enforced and no callback data is passed.
func (p *Pool) Supply(ctx context.Context, amount *big.Int, onBehalfOf common.Address) (domain.PendingTx, error) {
	return p.transact(ctx, txOptions{}, "supply", amount, new(big.Int), onBehalfOf, []byte{})
}

// Withdraw redeems shares owned by onBehalfOf and sends the assets to
// receiver.
func (p *Pool) Withdraw(ctx context.Context, shares *big.Int, onBehalfOf, receiver common.Address) (domain.PendingTx, error) {
	return p.transact(ctx, txOptions{}, "withdraw", shares, onBehalfOf, receiver)
}

var _ domain.LendingPool = (*Pool)(nil)
