package chain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/parzival1821/CredBook/internal/domain"
)

// codeUserRejected is the EIP-1193 error code for a request the signer
// refused.
const codeUserRejected = 4001

var rejectionMarkers = []string{
	"user rejected",
	"user denied",
	"rejected by user",
	"request rejected",
	"signing rejected",
}

var networkMarkers = []string{
	"connection refused",
	"connection reset",
	"no such host",
	"i/o timeout",
	"network is unreachable",
	"server misbehaving",
	"unexpected eof",
	"too many requests",
	"503 service unavailable",
	"502 bad gateway",
}

// Classify maps an RPC or binding error onto the domain taxonomy. Reverts
// become *domain.RevertError with the contract's reason, refusals wrap
// domain.ErrTransactionRejected and transport failures wrap
// domain.ErrNetworkUnavailable. Context errors and errors that cannot be
// classified are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, domain.ErrExternalRevert) ||
		errors.Is(err, domain.ErrTransactionRejected) ||
		errors.Is(err, domain.ErrNetworkUnavailable) {
		return err
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if reason, ok := decodeRevertData(dataErr.ErrorData()); ok {
			return &domain.RevertError{Reason: reason}
		}
	}
	var codeErr rpc.Error
	if errors.As(err, &codeErr) && codeErr.ErrorCode() == codeUserRejected {
		return fmt.Errorf("%w: %v", domain.ErrTransactionRejected, err)
	}

	msg := strings.ToLower(err.Error())
	if i := strings.Index(msg, "execution reverted"); i >= 0 {
		return &domain.RevertError{Reason: revertReasonFromMessage(err.Error()[i:])}
	}
	for _, m := range rejectionMarkers {
		if strings.Contains(msg, m) {
			return fmt.Errorf("%w: %v", domain.ErrTransactionRejected, err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", domain.ErrNetworkUnavailable, err)
	}
	for _, m := range networkMarkers {
		if strings.Contains(msg, m) {
			return fmt.Errorf("%w: %v", domain.ErrNetworkUnavailable, err)
		}
	}
	return err
}

// decodeRevertData unpacks Error(string) revert payloads. Custom errors are
// reported by their raw hex selector data.
func decodeRevertData(data any) (string, bool) {
	s, ok := data.(string)
	if !ok || s == "" {
		return "", false
	}
	raw, err := hexutil.Decode(s)
	if err != nil {
		return "", false
	}
	if reason, err := abi.UnpackRevert(raw); err == nil {
		return reason, true
	}
	return s, true
}

// revertReasonFromMessage extracts the text after "execution reverted:".
func revertReasonFromMessage(msg string) string {
	_, reason, found := strings.Cut(msg, ":")
	if !found {
		return ""
	}
	return strings.TrimSpace(reason)
}
