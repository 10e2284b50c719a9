package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/parzival1821/CredBook/internal/domain"
)

// Token binds an ERC-20 token. Symbol and decimals come from configuration
// and can be checked against the chain with ReadMetadata.
type Token struct {
	*boundContract
	symbol   string
	decimals uint8
}

// NewToken binds the token at address.
func NewToken(address common.Address, symbol string, decimals uint8, backend Backend, signer TxSigner) *Token {
	return &Token{
		boundContract: newBoundContract("erc20:"+symbol, address, erc20ABI, backend, signer),
		symbol:        symbol,
		decimals:      decimals,
	}
}

func (t *Token) Symbol() string  { return t.symbol }
func (t *Token) Decimals() uint8 { return t.decimals }

// ReadMetadata reads symbol() and decimals() from the contract.
func (t *Token) ReadMetadata(ctx context.Context) (string, uint8, error) {
	out, err := t.call(ctx, nil, "decimals")
	if err != nil {
		return "", 0, err
	}
	decimals, ok := out[0].(uint8)
	if !ok {
		return "", 0, fmt.Errorf("chain: %s.decimals: unexpected result type %T", t.name, out[0])
	}
	out, err = t.call(ctx, nil, "symbol")
	if err != nil {
		return "", 0, err
	}
	symbol, _ := out[0].(string)
	return symbol, decimals, nil
}

// BalanceOf reads owner's balance in base units.
func (t *Token) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	return t.callBigInt(ctx, "balanceOf", owner)
}

// Allowance reads how much spender may pull from owner.
func (t *Token) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return t.callBigInt(ctx, "allowance", owner, spender)
}

// Approve submits approve(spender, amount).
func (t *Token) Approve(ctx context.Context, spender common.Address, amount *big.Int) (domain.PendingTx, error) {
	return t.transact(ctx, txOptions{}, "approve", spender, amount)
}

var _ domain.Token = (*Token)(nil)
