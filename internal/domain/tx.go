package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TxKind names the state-changing operation a transaction performs.
type TxKind string

const (
	TxKindApprove     TxKind = "approve"
	TxKindBorrow      TxKind = "borrow"
	TxKindRepay       TxKind = "repay"
	TxKindSupply      TxKind = "supply"
	TxKindWithdraw    TxKind = "withdraw"
	TxKindRequote     TxKind = "requote"
	TxKindPriceUpdate TxKind = "price_update"
)

// TxStatus tracks a submitted transaction through confirmation.
type TxStatus string

const (
	TxStatusPending   TxStatus = "pending"
	TxStatusConfirmed TxStatus = "confirmed"
	TxStatusFailed    TxStatus = "failed"
)

// PendingTx is a transaction that has been accepted by the node but not yet
// mined.
type PendingTx struct {
	Hash  common.Hash
	From  common.Address
	To    common.Address
	Nonce uint64
}

// TxReceipt is the outcome of a mined transaction.
type TxReceipt struct {
	Hash        common.Hash
	BlockNumber uint64
	GasUsed     uint64
	Success     bool
}

// TxRecord is the persisted history row for a submitted transaction.
type TxRecord struct {
	ID          string
	Kind        TxKind
	Hash        string
	Account     string
	Target      string
	Amount      *big.Int
	Status      TxStatus
	Error       string
	BlockNumber uint64
	GasUsed     uint64
	CreatedAt   time.Time
	ConfirmedAt *time.Time
}
