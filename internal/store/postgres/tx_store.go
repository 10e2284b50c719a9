package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parzival1821/CredBook/internal/domain"
)

// TxStore implements domain.TxStore using PostgreSQL. Amounts are stored as
// NUMERIC(78,0) so any uint256 fits.
type TxStore struct {
	pool *pgxpool.Pool
}

// NewTxStore creates a new TxStore backed by the given connection pool.
func NewTxStore(pool *pgxpool.Pool) *TxStore {
	return &TxStore{pool: pool}
}

const txColumns = `id::text, kind, hash, account, target, amount::text, status, error,
	block_number, gas_used, created_at, confirmed_at`

// Create inserts a pending transaction.
func (s *TxStore) Create(ctx context.Context, rec domain.TxRecord) error {
	const query = `
		INSERT INTO transactions (
			id, kind, hash, account, target, amount, status, error, created_at
		) VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9)`

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, query,
		rec.ID, string(rec.Kind), rec.Hash, rec.Account, rec.Target,
		numericArg(rec.Amount), string(rec.Status), rec.Error, createdAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create transaction %s: %w", rec.ID, err)
	}
	return nil
}

// MarkConfirmed records a successful receipt.
func (s *TxStore) MarkConfirmed(ctx context.Context, id string, receipt domain.TxReceipt) error {
	const query = `
		UPDATE transactions
		SET status = $1, hash = $2, block_number = $3, gas_used = $4,
			confirmed_at = NOW(), updated_at = NOW()
		WHERE id = $5`

	tag, err := s.pool.Exec(ctx, query,
		string(domain.TxStatusConfirmed), receipt.Hash.Hex(),
		int64(receipt.BlockNumber), int64(receipt.GasUsed), id,
	)
	if err != nil {
		return fmt.Errorf("postgres: confirm transaction %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: confirm transaction %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// MarkFailed records the failure reason.
func (s *TxStore) MarkFailed(ctx context.Context, id string, reason string) error {
	const query = `
		UPDATE transactions SET status = $1, error = $2, updated_at = NOW()
		WHERE id = $3`

	tag, err := s.pool.Exec(ctx, query, string(domain.TxStatusFailed), reason, id)
	if err != nil {
		return fmt.Errorf("postgres: fail transaction %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: fail transaction %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// GetByID returns one transaction or domain.ErrNotFound.
func (s *TxStore) GetByID(ctx context.Context, id string) (domain.TxRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = $1`, id)
	rec, err := scanTx(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TxRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.TxRecord{}, fmt.Errorf("postgres: get transaction %s: %w", id, err)
	}
	return rec, nil
}

// ListByAccount returns an account's transactions newest first. An empty
// account lists all of them.
func (s *TxStore) ListByAccount(ctx context.Context, account string, opts domain.ListOpts) ([]domain.TxRecord, error) {
	q := listQuery{base: `SELECT ` + txColumns + ` FROM transactions`}
	if account != "" {
		q.filter("lower(account)", "=", normalizeAccount(account))
	}
	q.window(opts)
	q.order("created_at DESC")
	q.page(opts)

	rows, err := s.pool.Query(ctx, q.String(), q.args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions: %w", err)
	}
	return collectTxs(rows)
}

// ListBefore returns transactions created before the cutoff, oldest first.
func (s *TxStore) ListBefore(ctx context.Context, before time.Time) ([]domain.TxRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE created_at < $1 ORDER BY created_at`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions before %s: %w", before.Format(time.RFC3339), err)
	}
	return collectTxs(rows)
}

// DeleteBefore removes transactions created before the cutoff. Pending rows
// are kept so a slow confirmation can still be recorded.
func (s *TxStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM transactions WHERE created_at < $1 AND status <> $2`,
		before, string(domain.TxStatusPending))
	if err != nil {
		return 0, fmt.Errorf("postgres: delete transactions before %s: %w", before.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

func collectTxs(rows pgx.Rows) ([]domain.TxRecord, error) {
	defer rows.Close()

	var out []domain.TxRecord
	for rows.Next() {
		rec, err := scanTx(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan transaction: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: transaction rows: %w", err)
	}
	return out, nil
}

func scanTx(row pgx.Row) (domain.TxRecord, error) {
	var (
		rec         domain.TxRecord
		kind        string
		status      string
		amount      *string
		blockNumber int64
		gasUsed     int64
	)
	err := row.Scan(
		&rec.ID, &kind, &rec.Hash, &rec.Account, &rec.Target, &amount,
		&status, &rec.Error, &blockNumber, &gasUsed, &rec.CreatedAt, &rec.ConfirmedAt,
	)
	if err != nil {
		return domain.TxRecord{}, err
	}
	rec.Kind = domain.TxKind(kind)
	rec.Status = domain.TxStatus(status)
	rec.BlockNumber = uint64(blockNumber)
	rec.GasUsed = uint64(gasUsed)
	rec.Amount = parseNumeric(amount)
	return rec, nil
}

func numericArg(v *big.Int) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}

func parseNumeric(s *string) *big.Int {
	if s == nil {
		return nil
	}
	v, ok := new(big.Int).SetString(*s, 10)
	if !ok {
		return nil
	}
	return v
}

var _ domain.TxStore = (*TxStore)(nil)
