package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/parzival1821/CredBook/internal/domain"
	"github.com/parzival1821/CredBook/internal/metrics"
)

// ArchiveConfig controls the history archiver.
type ArchiveConfig struct {
	Interval  time.Duration
	Retention time.Duration
	// Prune deletes archived rows from the database after a successful
	// upload.
	Prune bool
}

// ArchiveService periodically moves history older than the retention
// window to cold storage.
type ArchiveService struct {
	archiver domain.Archiver
	txs      domain.TxStore
	audit    domain.AuditStore
	cfg      ArchiveConfig
	metrics  *metrics.Metrics
	now      func() time.Time
	logger   *slog.Logger
}

// NewArchiveService creates an ArchiveService.
func NewArchiveService(
	archiver domain.Archiver,
	txs domain.TxStore,
	audit domain.AuditStore,
	cfg ArchiveConfig,
	m *metrics.Metrics,
	logger *slog.Logger,
) *ArchiveService {
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 30 * 24 * time.Hour
	}
	return &ArchiveService{
		archiver: archiver,
		txs:      txs,
		audit:    audit,
		cfg:      cfg,
		metrics:  m,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "archive_service")),
	}
}

// Run archives once per interval until ctx is done.
func (s *ArchiveService) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.ErrorContext(ctx, "archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce archives transactions and audit entries older than the retention
// window. History that fails to upload is never pruned.
func (s *ArchiveService) RunOnce(ctx context.Context) error {
	cutoff := s.now().Add(-s.cfg.Retention)

	n, err := s.archiver.ArchiveTransactions(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archive service: transactions: %w", err)
	}
	s.metrics.Archived("transactions", n)
	if n > 0 && s.cfg.Prune && s.txs != nil {
		deleted, err := s.txs.DeleteBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("archive service: prune transactions: %w", err)
		}
		s.logger.InfoContext(ctx, "pruned transactions", slog.Int64("deleted", deleted))
	}

	m, err := s.archiver.ArchiveAudit(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archive service: audit: %w", err)
	}
	s.metrics.Archived("audit", m)
	if m > 0 && s.cfg.Prune && s.audit != nil {
		deleted, err := s.audit.DeleteBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("archive service: prune audit: %w", err)
		}
		s.logger.InfoContext(ctx, "pruned audit log", slog.Int64("deleted", deleted))
	}

	if s.audit != nil && n+m > 0 {
		if err := s.audit.Log(ctx, "archive.run", map[string]any{
			"before":       cutoff.UTC().Format(time.RFC3339),
			"transactions": n,
			"audit":        m,
		}); err != nil {
			s.logger.WarnContext(ctx, "audit log failed", slog.String("error", err.Error()))
		}
	}
	s.logger.InfoContext(ctx, "archive run complete",
		slog.Time("before", cutoff),
		slog.Int64("transactions", n),
		slog.Int64("audit", m),
	)
	return nil
}
