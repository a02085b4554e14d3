package connection

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/connhub/internal/domain/connection"
	"github.com/erp/connhub/internal/infrastructure/telemetry"
)

// MaxSummaryRange bounds the period of one orders summary
const MaxSummaryRange = 92 * 24 * time.Hour

// ErrInvalidSummaryRange is returned for an empty, inverted or too long period
var ErrInvalidSummaryRange = errors.New("connection: invalid order summary period")

// OrdersService summarizes provider orders for a connection
type OrdersService struct {
	registry connection.AdapterRegistry
	connRepo connection.ConnectionRepository
	audit    *AuditRecorder
	logger   *zap.Logger
}

// NewOrdersService creates an OrdersService
func NewOrdersService(
	registry connection.AdapterRegistry,
	connRepo connection.ConnectionRepository,
	audit *AuditRecorder,
	logger *zap.Logger,
) *OrdersService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrdersService{
		registry: registry,
		connRepo: connRepo,
		audit:    audit,
		logger:   logger.Named("orders"),
	}
}

// OrdersSummary counts and totals the orders created in [from, to] on the caller's connection
func (s *OrdersService) OrdersSummary(
	ctx context.Context,
	connectionID uuid.UUID,
	callerUserID string,
	from, to time.Time,
) (*connection.OrderSummary, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "orders", "summary",
		telemetry.WithAttribute(telemetry.SpanAttrConnectionID, connectionID.String()))
	defer span.End()

	summary, err := s.summarize(ctx, connectionID, callerUserID, from, to)
	if err != nil {
		telemetry.RecordError(span, err)
		s.audit.Record(ctx, connection.NewErrorAudit(callerUserID, connection.OpOrdersSummary, err).
			WithConnection(connectionID).
			WithMeta("from", from.UTC().Format(time.RFC3339)).
			WithMeta("to", to.UTC().Format(time.RFC3339)))
		return nil, err
	}

	s.audit.Record(ctx, connection.NewSuccessAudit(callerUserID, connection.OpOrdersSummary).
		WithConnection(connectionID).
		WithMeta("from", from.UTC().Format(time.RFC3339)).
		WithMeta("to", to.UTC().Format(time.RFC3339)).
		WithMeta("order_count", strconv.Itoa(summary.OrderCount)).
		WithMeta("total_amount", summary.TotalAmount.String()))
	return summary, nil
}

func (s *OrdersService) summarize(
	ctx context.Context,
	connectionID uuid.UUID,
	callerUserID string,
	from, to time.Time,
) (*connection.OrderSummary, error) {
	if from.IsZero() || to.IsZero() || !from.Before(to) || to.Sub(from) > MaxSummaryRange {
		return nil, ErrInvalidSummaryRange
	}

	conn, err := s.connRepo.FindByID(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	adapter, err := s.registry.Get(conn.Platform)
	if err != nil {
		return nil, err
	}
	if !conn.IsOwnedBy(callerUserID, adapter.PlatformCode()) {
		return nil, connection.ErrOwnershipMismatch
	}

	summary, err := adapter.SummarizeOrders(ctx, conn.AuthPayload.AccessToken, conn.AuthPayload.Extra, from, to)
	if err != nil {
		s.logger.Warn("Order summary failed",
			zap.String("connection_id", connectionID.String()),
			zap.String("error_kind", string(connection.KindOf(err))),
			zap.Error(err),
		)
		return nil, err
	}
	return summary, nil
}
