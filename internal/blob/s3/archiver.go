package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/parzival1821/CredBook/internal/domain"
)

const jsonlContentType = "application/x-ndjson"

// multipartThreshold switches uploads to the multipart manager.
const multipartThreshold = 16 << 20

// Archiver exports transaction history and audit entries older than a
// cutoff to JSONL objects. Rows are not deleted here; pruning the database
// is a separate step taken after a successful upload.
type Archiver struct {
	writer domain.BlobWriter
	txs    domain.TxStore
	audit  domain.AuditStore
	now    func() time.Time
}

// NewArchiver creates an Archiver.
func NewArchiver(writer domain.BlobWriter, txs domain.TxStore, audit domain.AuditStore) *Archiver {
	return &Archiver{writer: writer, txs: txs, audit: audit, now: time.Now}
}

type txLine struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Hash        string     `json:"hash"`
	Account     string     `json:"account"`
	Target      string     `json:"target"`
	Amount      string     `json:"amount"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
	BlockNumber uint64     `json:"block_number,omitempty"`
	GasUsed     uint64     `json:"gas_used,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

// ArchiveTransactions uploads transactions created before the cutoff to
// archive/transactions/ and returns how many were written.
func (a *Archiver) ArchiveTransactions(ctx context.Context, before time.Time) (int64, error) {
	recs, err := a.txs.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive transactions: query: %w", err)
	}
	if len(recs) == 0 {
		return 0, nil
	}
	lines := make([]txLine, len(recs))
	for i, r := range recs {
		amount := "0"
		if r.Amount != nil {
			amount = r.Amount.String()
		}
		lines[i] = txLine{
			ID:          r.ID,
			Kind:        string(r.Kind),
			Hash:        r.Hash,
			Account:     r.Account,
			Target:      r.Target,
			Amount:      amount,
			Status:      string(r.Status),
			Error:       r.Error,
			BlockNumber: r.BlockNumber,
			GasUsed:     r.GasUsed,
			CreatedAt:   r.CreatedAt,
			ConfirmedAt: r.ConfirmedAt,
		}
	}
	return upload(ctx, a, "transactions", before, lines)
}

// ArchiveAudit uploads audit entries created before the cutoff to
// archive/audit/ and returns how many were written.
func (a *Archiver) ArchiveAudit(ctx context.Context, before time.Time) (int64, error) {
	entries, err := a.audit.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit: query: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}
	return upload(ctx, a, "audit", before, entries)
}

func upload[T any](ctx context.Context, a *Archiver, kind string, before time.Time, records []T) (int64, error) {
	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s: %w", kind, err)
	}
	path := ArchivePath(kind, before, a.now())
	if len(buf) >= multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), jsonlContentType)
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s: %w", kind, err)
	}
	return int64(len(records)), nil
}

// ArchivePath is the object key of one archive run, partitioned by the
// cutoff's month:
//
//	archive/transactions/2026-09/20261001T000000Z.jsonl
func ArchivePath(kind string, before, runAt time.Time) string {
	return fmt.Sprintf("archive/%s/%s/%s.jsonl",
		kind, before.UTC().Format("2006-01"), runAt.UTC().Format("20060102T150405Z"))
}

func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
