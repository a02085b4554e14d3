package connection

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/connhub/internal/domain/connection"
)

// WebhookGuard checks that a verified webhook event really belongs to the connection it
// was routed to. Signature verification happens before this point.
type WebhookGuard struct {
	connRepo connection.ConnectionRepository
	audit    *AuditRecorder
	logger   *zap.Logger
}

// NewWebhookGuard creates a WebhookGuard
func NewWebhookGuard(connRepo connection.ConnectionRepository, audit *AuditRecorder, logger *zap.Logger) *WebhookGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookGuard{
		connRepo: connRepo,
		audit:    audit,
		logger:   logger.Named("webhook_guard"),
	}
}

// VerifyWebhookAccount returns OWNERSHIP_MISMATCH, and records a security audit, when the
// event's platform or account differs from the stored connection.
func (g *WebhookGuard) VerifyWebhookAccount(
	ctx context.Context,
	platform connection.PlatformCode,
	connectionID uuid.UUID,
	accountExternalID string,
) (*connection.Connection, error) {
	conn, err := g.connRepo.FindByID(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	if conn.Platform == platform && conn.ExternalAccountID == accountExternalID {
		return conn, nil
	}

	g.logger.Warn("Webhook account does not match connection",
		zap.String("connection_id", conn.ID.String()),
		zap.String("claimed_platform", string(platform)),
		zap.String("stored_platform", string(conn.Platform)),
		zap.String("claimed_account", accountExternalID),
		zap.String("stored_account", conn.ExternalAccountID),
	)
	g.audit.Record(ctx, connection.NewErrorAudit(conn.UserID, connection.OpWebhookSecurityMismatch, connection.ErrOwnershipMismatch).
		WithConnection(conn.ID).
		WithMeta("claimed_platform", string(platform)).
		WithMeta("stored_platform", string(conn.Platform)).
		WithMeta("claimed_account", accountExternalID).
		WithMeta("stored_account", conn.ExternalAccountID))

	return nil, connection.ErrOwnershipMismatch
}
