package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/erp/connhub/internal/domain/connection"
)

// ArchiveJobName is the registered name of the audit archive job
const ArchiveJobName = "audit_archive"

// DayWriter stores the audit entries of one UTC day
type DayWriter interface {
	WriteDay(ctx context.Context, day time.Time, entries []connection.AuditEntry) (string, error)
}

// ArchiveJob copies the previous UTC day's audit entries to object storage.
// Rows are never deleted.
type ArchiveJob struct {
	audits connection.AuditLogRepository
	writer DayWriter
	logger *zap.Logger
	now    func() time.Time
}

// NewArchiveJob creates a new archive job
func NewArchiveJob(audits connection.AuditLogRepository, writer DayWriter, logger *zap.Logger) *ArchiveJob {
	return &ArchiveJob{
		audits: audits,
		writer: writer,
		logger: logger,
		now:    time.Now,
	}
}

// Run implements JobFunc
func (j *ArchiveJob) Run(ctx context.Context) error {
	today := startOfUTCDay(j.now())
	_, err := j.ArchiveDay(ctx, today.AddDate(0, 0, -1))
	return err
}

// ArchiveDay exports the UTC day containing day and returns the object key
func (j *ArchiveJob) ArchiveDay(ctx context.Context, day time.Time) (string, error) {
	from := startOfUTCDay(day)
	to := from.AddDate(0, 0, 1)

	entries, err := j.audits.FindBetween(ctx, from, to)
	if err != nil {
		return "", fmt.Errorf("failed to load audit entries for %s: %w", from.Format(time.DateOnly), err)
	}

	key, err := j.writer.WriteDay(ctx, from, entries)
	if err != nil {
		return "", err
	}

	j.logger.Info("Audit day archived",
		zap.String("day", from.Format(time.DateOnly)),
		zap.String("key", key),
		zap.Int("entries", len(entries)),
	)
	return key, nil
}

func startOfUTCDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
