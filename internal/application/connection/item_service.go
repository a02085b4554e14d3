package connection

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/connhub/internal/domain/connection"
)

// ConnectionWithItems is one connection and its items
type ConnectionWithItems struct {
	Connection connection.Connection
	Items      []connection.ConnectionItem
}

// ItemService lists connections and changes item status on behalf of their owner
type ItemService struct {
	connRepo connection.ConnectionRepository
	itemRepo connection.ConnectionItemRepository
	audit    *AuditRecorder
	logger   *zap.Logger
}

// NewItemService creates an ItemService
func NewItemService(
	connRepo connection.ConnectionRepository,
	itemRepo connection.ConnectionItemRepository,
	audit *AuditRecorder,
	logger *zap.Logger,
) *ItemService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ItemService{
		connRepo: connRepo,
		itemRepo: itemRepo,
		audit:    audit,
		logger:   logger.Named("items"),
	}
}

// ListConnections returns the user's connections with their items
func (s *ItemService) ListConnections(ctx context.Context, userID string) ([]ConnectionWithItems, error) {
	conns, err := s.connRepo.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := make([]ConnectionWithItems, 0, len(conns))
	for _, conn := range conns {
		items, err := s.itemRepo.FindByConnection(ctx, conn.ID)
		if err != nil {
			return nil, err
		}
		result = append(result, ConnectionWithItems{Connection: conn, Items: items})
	}
	return result, nil
}

// SetItemStatus enables or disables one item. The item must belong to connectionID and the
// connection to callerUserID. Both outcomes are audited.
func (s *ItemService) SetItemStatus(
	ctx context.Context,
	callerUserID string,
	connectionID, itemID uuid.UUID,
	status connection.Status,
) (*connection.ConnectionItem, error) {
	if !status.IsValid() {
		return nil, connection.ErrInvalidStatus
	}

	op := connection.OpItemEnable
	if status == connection.StatusDisabled {
		op = connection.OpItemDisable
	}

	item, err := s.loadOwnedItem(ctx, callerUserID, connectionID, itemID)
	if err != nil {
		entry := connection.NewErrorAudit(callerUserID, op, err).
			WithConnection(connectionID).
			WithItem(itemID)
		s.audit.Record(ctx, entry)
		return nil, err
	}

	if err := s.itemRepo.UpdateStatus(ctx, item.ID, status); err != nil {
		s.audit.Record(ctx, connection.NewErrorAudit(callerUserID, op, err).
			WithConnection(connectionID).
			WithItem(itemID))
		return nil, err
	}
	item.Status = status

	s.audit.Record(ctx, connection.NewSuccessAudit(callerUserID, op).
		WithConnection(connectionID).
		WithItem(itemID).
		WithMeta("external_resource_id", item.ExternalResourceID))

	s.logger.Info("Connection item status changed",
		zap.String("connection_id", connectionID.String()),
		zap.String("item_id", itemID.String()),
		zap.String("status", string(status)),
	)
	return item, nil
}

func (s *ItemService) loadOwnedItem(ctx context.Context, callerUserID string, connectionID, itemID uuid.UUID) (*connection.ConnectionItem, error) {
	conn, err := s.connRepo.FindByID(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if conn.UserID != callerUserID {
		return nil, connection.ErrOwnershipMismatch
	}

	item, err := s.itemRepo.FindByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.ConnectionID != conn.ID {
		return nil, connection.ErrItemNotFound
	}
	return item, nil
}
