package chain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parzival1821/CredBook/internal/domain"
)

type rpcDataError struct {
	msg  string
	code int
	data any
}

func (e rpcDataError) Error() string  { return e.msg }
func (e rpcDataError) ErrorCode() int { return e.code }
func (e rpcDataError) ErrorData() any { return e.data }

func encodeRevert(t *testing.T, reason string) string {
	t.Helper()
	stringTy, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	payload, err := abi.Arguments{{Type: stringTy}}.Pack(reason)
	require.NoError(t, err)
	return hexutil.Encode(append([]byte{0x08, 0xc3, 0x79, 0xa0}, payload...))
}

func TestClassifyRevertData(t *testing.T) {
	err := Classify(rpcDataError{msg: "execution reverted", code: 3, data: encodeRevert(t, "rate above max")})

	var revert *domain.RevertError
	require.ErrorAs(t, err, &revert)
	assert.Equal(t, "rate above max", revert.Reason)
	require.ErrorIs(t, err, domain.ErrExternalRevert)
}

func TestClassifyRevertMessage(t *testing.T) {
	err := Classify(errors.New("execution reverted: ERC20: transfer amount exceeds balance"))

	var revert *domain.RevertError
	require.ErrorAs(t, err, &revert)
	assert.Equal(t, "ERC20: transfer amount exceeds balance", revert.Reason)
}

func TestClassifyRejected(t *testing.T) {
	require.ErrorIs(t, Classify(rpcDataError{msg: "denied", code: 4001}), domain.ErrTransactionRejected)
	require.ErrorIs(t, Classify(errors.New("User denied transaction signature")), domain.ErrTransactionRejected)
}

func TestClassifyNetwork(t *testing.T) {
	opErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connect: connection refused")}
	require.ErrorIs(t, Classify(fmt.Errorf("post: %w", opErr)), domain.ErrNetworkUnavailable)
	require.ErrorIs(t, Classify(errors.New("429 Too Many Requests")), domain.ErrNetworkUnavailable)
}

func TestClassifyPassthrough(t *testing.T) {
	require.Nil(t, Classify(nil))
	assert.Equal(t, context.Canceled, Classify(context.Canceled))

	plain := errors.New("abi: cannot marshal")
	assert.Equal(t, plain, Classify(plain))

	already := &domain.RevertError{Reason: "x"}
	assert.Same(t, already, Classify(already))
}
