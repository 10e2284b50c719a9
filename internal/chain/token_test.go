package chain

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parzival1821/CredBook/internal/crypto"
	"github.com/parzival1821/CredBook/internal/domain"
)

var usdc = common.HexToAddress("0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238")

func TestTokenReads(t *testing.T) {
	backend := newFakeBackend()
	backend.respond(erc20ABI, "balanceOf", big.NewInt(42_000_000))
	backend.respond(erc20ABI, "allowance", big.NewInt(10))
	backend.respond(erc20ABI, "decimals", uint8(6))
	backend.respond(erc20ABI, "symbol", "USDC")

	token := NewToken(usdc, "USDC", 6, backend, nil)

	bal, err := token.BalanceOf(context.Background(), borrower)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(42_000_000), bal)

	allowance, err := token.Allowance(context.Background(), borrower, orderbookAddr)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(10), allowance)

	symbol, decimals, err := token.ReadMetadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "USDC", symbol)
	assert.Equal(t, uint8(6), decimals)
}

func TestTokenCallNetworkFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.callErr = assertErr("dial tcp 127.0.0.1:8545: connect: connection refused")
	token := NewToken(usdc, "USDC", 6, backend, nil)

	_, err := token.BalanceOf(context.Background(), borrower)
	require.ErrorIs(t, err, domain.ErrNetworkUnavailable)
}

func TestPoolSupplyEncodesArguments(t *testing.T) {
	backend := newFakeBackend()
	signer, err := crypto.NewSigner(testKey, 11155111)
	require.NoError(t, err)

	pool := NewPool(linearPool, "Linear IRM 1", backend, signer)
	_, err = pool.Supply(context.Background(), big.NewInt(3_000_000), signer.Address())
	require.NoError(t, err)

	require.Len(t, backend.sent, 1)
	method, err := poolABI.MethodById(backend.sent[0].Data()[:4])
	require.NoError(t, err)
	assert.Equal(t, "supply", method.Name)
	args, err := method.Inputs.Unpack(backend.sent[0].Data()[4:])
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(3_000_000), args[0])
	assert.Equal(t, 0, args[1].(*big.Int).Sign())
	assert.Equal(t, signer.Address(), args[2])
}

func TestOracleReadsAndUpdate(t *testing.T) {
	backend := newFakeBackend()
	backend.respond(oracleABI, "getLatestPrice", int64(312_345_000_000), uint64(1_760_000_000))
	backend.respond(oracleABI, "price", big.NewInt(0).Exp(big.NewInt(10), big.NewInt(39), nil))
	signer, err := crypto.NewSigner(testKey, 11155111)
	require.NoError(t, err)

	fee := big.NewInt(1_000_000_000_000_000)
	oracle := NewOracle(common.HexToAddress("0x00000000000000000000000000000000000000aa"), backend, signer, fee, 500_000)

	quote, err := oracle.LatestPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(312_345_000_000), quote.Price)
	assert.Equal(t, time.Unix(1_760_000_000, 0).UTC(), quote.PublishTime)

	price, err := oracle.Price(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000000000000000000000000", price.String())

	_, err = oracle.UpdatePrice(context.Background(), [][]byte{{0x01, 0x02}})
	require.NoError(t, err)
	require.Len(t, backend.sent, 1)
	tx := backend.sent[0]
	assert.Equal(t, fee, tx.Value())
	assert.Equal(t, uint64(500_000), tx.Gas())
}
