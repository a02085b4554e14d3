package connection

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/erp/connhub/internal/domain/connection"
	"github.com/erp/connhub/internal/infrastructure/telemetry"
)

// DefaultAuditWriteTimeout bounds one detached audit write
const DefaultAuditWriteTimeout = 5 * time.Second

// AuditRecorder writes audit entries on detached goroutines.
// A failed write is logged and never reaches the caller of the audited operation.
type AuditRecorder struct {
	repo         connection.AuditLogRepository
	logger       *zap.Logger
	writeTimeout time.Duration
	metrics      *telemetry.ConnectionMetrics
	wg           sync.WaitGroup
}

// NewAuditRecorder creates an AuditRecorder
func NewAuditRecorder(repo connection.AuditLogRepository, logger *zap.Logger, writeTimeout time.Duration) *AuditRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if writeTimeout <= 0 {
		writeTimeout = DefaultAuditWriteTimeout
	}
	return &AuditRecorder{
		repo:         repo,
		logger:       logger.Named("audit"),
		writeTimeout: writeTimeout,
	}
}

// SetMetrics counts failed writes on m. Call before the first Record.
func (r *AuditRecorder) SetMetrics(m *telemetry.ConnectionMetrics) {
	r.metrics = m
}

// Record schedules the write and returns immediately. The write keeps the values of ctx
// (trace, request id) but not its cancellation.
func (r *AuditRecorder) Record(ctx context.Context, entry *connection.AuditEntry) {
	if entry == nil {
		return
	}
	detached := context.WithoutCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		writeCtx, cancel := context.WithTimeout(detached, r.writeTimeout)
		defer cancel()

		if err := r.repo.Create(writeCtx, entry); err != nil {
			r.logger.Error("Failed to write audit entry",
				zap.String("operation", string(entry.Operation)),
				zap.String("result", string(entry.Result)),
				zap.String("user_id", entry.UserID),
				zap.Error(err),
			)
			r.metrics.RecordAuditFailure(writeCtx, string(entry.Operation))
		}
	}()
}

// Wait blocks until every scheduled write has finished or ctx is done
func (r *AuditRecorder) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		r.logger.Warn("Audit drain interrupted", zap.Error(ctx.Err()))
		return ctx.Err()
	}
}
