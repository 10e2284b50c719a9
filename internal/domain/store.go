package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
	ListBefore(ctx context.Context, before time.Time) ([]AuditEntry, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// TxStore persists the history of transactions submitted by this service.
type TxStore interface {
	Create(ctx context.Context, rec TxRecord) error
	MarkConfirmed(ctx context.Context, id string, receipt TxReceipt) error
	MarkFailed(ctx context.Context, id string, reason string) error
	GetByID(ctx context.Context, id string) (TxRecord, error)
	ListByAccount(ctx context.Context, account string, opts ListOpts) ([]TxRecord, error)
	ListBefore(ctx context.Context, before time.Time) ([]TxRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
