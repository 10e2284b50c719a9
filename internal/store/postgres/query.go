package postgres

import (
	"fmt"
	"strings"

	"github.com/parzival1821/CredBook/internal/domain"
)

// listQuery assembles a SELECT with numbered placeholders.
type listQuery struct {
	base    string
	where   []string
	orderBy string
	tail    []string
	args    []any
}

func (q *listQuery) arg(v any) string {
	q.args = append(q.args, v)
	return fmt.Sprintf("$%d", len(q.args))
}

func (q *listQuery) filter(column, op string, v any) {
	q.where = append(q.where, column+" "+op+" "+q.arg(v))
}

func (q *listQuery) window(opts domain.ListOpts) {
	if opts.Since != nil {
		q.filter("created_at", ">=", *opts.Since)
	}
	if opts.Until != nil {
		q.filter("created_at", "<=", *opts.Until)
	}
}

func (q *listQuery) order(by string) {
	q.orderBy = by
}

func (q *listQuery) page(opts domain.ListOpts) {
	if opts.Limit > 0 {
		q.tail = append(q.tail, "LIMIT "+q.arg(opts.Limit))
	}
	if opts.Offset > 0 {
		q.tail = append(q.tail, "OFFSET "+q.arg(opts.Offset))
	}
}

func (q *listQuery) String() string {
	var b strings.Builder
	b.WriteString(q.base)
	if len(q.where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(q.where, " AND "))
	}
	if q.orderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(q.orderBy)
	}
	for _, t := range q.tail {
		b.WriteString(" ")
		b.WriteString(t)
	}
	return b.String()
}

// normalizeAccount lowercases an address so checksummed and plain hex match.
func normalizeAccount(account string) string {
	return strings.ToLower(strings.TrimSpace(account))
}
