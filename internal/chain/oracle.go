package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/parzival1821/CredBook/internal/domain"
)

// Oracle binds the Pyth-backed price oracle.
type Oracle struct {
	*boundContract
	fee      *big.Int
	gasLimit uint64
}

// NewOracle binds the oracle at address. Every updatePrice call pays fee wei
// and uses a fixed gasLimit.
func NewOracle(address common.Address, backend Backend, signer TxSigner, fee *big.Int, gasLimit uint64) *Oracle {
	return &Oracle{
		boundContract: newBoundContract("oracle", address, oracleABI, backend, signer),
		fee:           fee,
		gasLimit:      gasLimit,
	}
}

// LatestPrice reads the stored price and its feed publish time.
func (o *Oracle) LatestPrice(ctx context.Context) (domain.OracleQuote, error) {
	out, err := o.call(ctx, nil, "getLatestPrice")
	if err != nil {
		return domain.OracleQuote{}, err
	}
	price, ok := out[0].(int64)
	if !ok {
		return domain.OracleQuote{}, fmt.Errorf("chain: oracle.getLatestPrice: unexpected price type %T", out[0])
	}
	published, ok := out[1].(uint64)
	if !ok {
		return domain.OracleQuote{}, fmt.Errorf("chain: oracle.getLatestPrice: unexpected time type %T", out[1])
	}
	return domain.OracleQuote{
		Price:       price,
		PublishTime: time.Unix(int64(published), 0).UTC(),
	}, nil
}

// Price reads the scaled price the orderbook consumes.
func (o *Oracle) Price(ctx context.Context) (*big.Int, error) {
	return o.callBigInt(ctx, "price")
}

// UpdatePrice submits signed feed updates, paying the update fee.
func (o *Oracle) UpdatePrice(ctx context.Context, updates [][]byte) (domain.PendingTx, error) {
	return o.transact(ctx, txOptions{value: new(big.Int).Set(o.fee), gasLimit: o.gasLimit}, "updatePrice", updates)
}

var _ domain.PriceOracle = (*Oracle)(nil)
