package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/erp/connhub/internal/domain/connection"
)

// ConnectionModel is the persistence model for the Connection domain entity.
// (user_id, platform, external_account_id) carries the unique index the upsert conflicts on.
type ConnectionModel struct {
	ID                uuid.UUID               `gorm:"type:uuid;primary_key"`
	UserID            string                  `gorm:"type:varchar(100);not null;uniqueIndex:idx_connections_triple,priority:1;index:idx_connections_user"`
	Platform          connection.PlatformCode `gorm:"type:varchar(20);not null;uniqueIndex:idx_connections_triple,priority:2"`
	ExternalAccountID string                  `gorm:"type:varchar(255);not null;uniqueIndex:idx_connections_triple,priority:3"`
	DisplayName       string                  `gorm:"type:varchar(255)"`
	AuthPayloadJSON   string                  `gorm:"column:auth_payload;type:jsonb;not null"`
	AccessExpiresAt   *time.Time              `gorm:"index:idx_connections_access_expires"`
	Status            connection.Status       `gorm:"type:varchar(20);not null;default:'active'"`
	CreatedAt         time.Time               `gorm:"not null"`
	UpdatedAt         time.Time               `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ConnectionModel) TableName() string {
	return "connections"
}

// ToDomain converts the persistence model to a domain Connection.
// A payload that fails to decode yields an empty payload; the next refresh or
// re-authorization overwrites it.
func (m *ConnectionModel) ToDomain() *connection.Connection {
	var payload connection.AuthPayload
	if m.AuthPayloadJSON != "" {
		_ = json.Unmarshal([]byte(m.AuthPayloadJSON), &payload)
	}
	return &connection.Connection{
		ID:                m.ID,
		UserID:            m.UserID,
		Platform:          m.Platform,
		ExternalAccountID: m.ExternalAccountID,
		DisplayName:       m.DisplayName,
		AuthPayload:       payload,
		Status:            m.Status,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain Connection
func (m *ConnectionModel) FromDomain(c *connection.Connection) error {
	raw, err := json.Marshal(c.AuthPayload)
	if err != nil {
		return err
	}
	m.ID = c.ID
	m.UserID = c.UserID
	m.Platform = c.Platform
	m.ExternalAccountID = c.ExternalAccountID
	m.DisplayName = c.DisplayName
	m.AuthPayloadJSON = string(raw)
	m.AccessExpiresAt = nil
	if !c.AuthPayload.ExpiresAt.IsZero() {
		expires := c.AuthPayload.ExpiresAt.UTC()
		m.AccessExpiresAt = &expires
	}
	m.Status = c.Status
	m.CreatedAt = c.CreatedAt
	m.UpdatedAt = c.UpdatedAt
	return nil
}

// ConnectionModelFromDomain creates a new persistence model from a domain Connection
func ConnectionModelFromDomain(c *connection.Connection) (*ConnectionModel, error) {
	m := &ConnectionModel{}
	if err := m.FromDomain(c); err != nil {
		return nil, err
	}
	return m, nil
}

// ConnectionItemModel is the persistence model for ConnectionItem
type ConnectionItemModel struct {
	ID                 uuid.UUID               `gorm:"type:uuid;primary_key"`
	ConnectionID       uuid.UUID               `gorm:"type:uuid;not null;uniqueIndex:idx_connection_items_resource,priority:1"`
	Platform           connection.PlatformCode `gorm:"type:varchar(20);not null"`
	ExternalResourceID string                  `gorm:"type:varchar(255);not null;uniqueIndex:idx_connection_items_resource,priority:2"`
	DisplayName        string                  `gorm:"type:varchar(255)"`
	MetadataJSON       string                  `gorm:"column:metadata;type:jsonb;default:'{}'"`
	Status             connection.Status       `gorm:"type:varchar(20);not null;default:'active'"`
	CreatedAt          time.Time               `gorm:"not null"`
	UpdatedAt          time.Time               `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ConnectionItemModel) TableName() string {
	return "connection_items"
}

// ToDomain converts the persistence model to a domain ConnectionItem
func (m *ConnectionItemModel) ToDomain() *connection.ConnectionItem {
	item := &connection.ConnectionItem{
		ID:                 m.ID,
		ConnectionID:       m.ConnectionID,
		Platform:           m.Platform,
		ExternalResourceID: m.ExternalResourceID,
		DisplayName:        m.DisplayName,
		Metadata:           map[string]string{},
		Status:             m.Status,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
	if m.MetadataJSON != "" {
		_ = json.Unmarshal([]byte(m.MetadataJSON), &item.Metadata)
	}
	return item
}

// FromDomain populates the persistence model from a domain ConnectionItem
func (m *ConnectionItemModel) FromDomain(item *connection.ConnectionItem) {
	m.ID = item.ID
	m.ConnectionID = item.ConnectionID
	m.Platform = item.Platform
	m.ExternalResourceID = item.ExternalResourceID
	m.DisplayName = item.DisplayName
	m.MetadataJSON = marshalStringMap(item.Metadata)
	m.Status = item.Status
	m.CreatedAt = item.CreatedAt
	m.UpdatedAt = item.UpdatedAt
}

// ConnectionItemModelFromDomain creates a new persistence model from a domain ConnectionItem
func ConnectionItemModelFromDomain(item *connection.ConnectionItem) *ConnectionItemModel {
	m := &ConnectionItemModel{}
	m.FromDomain(item)
	return m
}

// AuditLogModel is the persistence model for AuditEntry. Rows are insert-only.
type AuditLogModel struct {
	ID               uuid.UUID                 `gorm:"type:uuid;primary_key"`
	UserID           string                    `gorm:"type:varchar(100);not null;index:idx_audit_logs_user"`
	ConnectionID     *uuid.UUID                `gorm:"type:uuid;index:idx_audit_logs_connection"`
	ConnectionItemID *uuid.UUID                `gorm:"type:uuid"`
	Operation        connection.AuditOperation `gorm:"type:varchar(64);not null"`
	Result           connection.AuditResult    `gorm:"type:varchar(16);not null"`
	ErrorCode        string                    `gorm:"type:varchar(64)"`
	ErrorMessage     string                    `gorm:"type:text"`
	MetadataJSON     string                    `gorm:"column:metadata;type:jsonb;default:'{}'"`
	CreatedAt        time.Time                 `gorm:"not null;index:idx_audit_logs_created"`
}

// TableName returns the table name for GORM
func (AuditLogModel) TableName() string {
	return "audit_logs"
}

// ToDomain converts the persistence model to a domain AuditEntry
func (m *AuditLogModel) ToDomain() *connection.AuditEntry {
	entry := &connection.AuditEntry{
		ID:               m.ID,
		UserID:           m.UserID,
		ConnectionID:     m.ConnectionID,
		ConnectionItemID: m.ConnectionItemID,
		Operation:        m.Operation,
		Result:           m.Result,
		ErrorCode:        m.ErrorCode,
		ErrorMessage:     m.ErrorMessage,
		Metadata:         map[string]string{},
		CreatedAt:        m.CreatedAt,
	}
	if m.MetadataJSON != "" {
		_ = json.Unmarshal([]byte(m.MetadataJSON), &entry.Metadata)
	}
	return entry
}

// AuditLogModelFromDomain creates a new persistence model from a domain AuditEntry
func AuditLogModelFromDomain(e *connection.AuditEntry) *AuditLogModel {
	return &AuditLogModel{
		ID:               e.ID,
		UserID:           e.UserID,
		ConnectionID:     e.ConnectionID,
		ConnectionItemID: e.ConnectionItemID,
		Operation:        e.Operation,
		Result:           e.Result,
		ErrorCode:        e.ErrorCode,
		ErrorMessage:     e.ErrorMessage,
		MetadataJSON:     marshalStringMap(e.Metadata),
		CreatedAt:        e.CreatedAt,
	}
}

func marshalStringMap(m map[string]string) string {
	if len(m) == 0 {
		return "{}"
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(raw)
}
