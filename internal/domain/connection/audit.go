package connection

import (
	"errors"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// AuditOperation is the fixed vocabulary of audited operations
type AuditOperation string

const (
	OpConnectionCreate        AuditOperation = "connection.create"
	OpConnectionReauthorize   AuditOperation = "connection.reauthorize"
	OpConnectionRefresh       AuditOperation = "connection.refresh"
	OpItemEnable              AuditOperation = "connection_item.enable"
	OpItemDisable             AuditOperation = "connection_item.disable"
	OpOrdersSummary           AuditOperation = "connection.orders.summary"
	OpWebhookSecurityMismatch AuditOperation = "webhook.security_mismatch"
)

// AuditResult is the outcome recorded on an audit entry
type AuditResult string

const (
	AuditSuccess AuditResult = "success"
	AuditError   AuditResult = "error"
)

// AuditEntry is an append-only record of one operation outcome
type AuditEntry struct {
	ID               uuid.UUID
	UserID           string
	ConnectionID     *uuid.UUID
	ConnectionItemID *uuid.UUID
	Operation        AuditOperation
	Result           AuditResult
	ErrorCode        string
	ErrorMessage     string
	Metadata         map[string]string
	CreatedAt        time.Time
}

// NewSuccessAudit creates a success entry
func NewSuccessAudit(userID string, op AuditOperation) *AuditEntry {
	return &AuditEntry{
		ID:        uuid.New(),
		UserID:    userID,
		Operation: op,
		Result:    AuditSuccess,
		Metadata:  map[string]string{},
		CreatedAt: time.Now(),
	}
}

// NewErrorAudit creates an error entry. Classified errors record their kind as the code;
// unknown provider failures also keep the raw provider body.
func NewErrorAudit(userID string, op AuditOperation, err error) *AuditEntry {
	entry := &AuditEntry{
		ID:        uuid.New(),
		UserID:    userID,
		Operation: op,
		Result:    AuditError,
		Metadata:  map[string]string{},
		CreatedAt: time.Now(),
	}
	if err == nil {
		return entry
	}
	entry.ErrorMessage = err.Error()
	var classified *Error
	if errors.As(err, &classified) {
		entry.ErrorCode = string(classified.Kind)
		entry.ErrorMessage = classified.Message
		if classified.Code != "" {
			entry.Metadata["provider_code"] = classified.Code
		}
		if classified.Kind == KindPlatformUnknown && classified.Raw != "" {
			entry.Metadata["provider_raw"] = truncateRaw(classified.Raw)
		}
	}
	return entry
}

// maxAuditRawLength bounds the provider body kept on an audit entry
const maxAuditRawLength = 2048

func truncateRaw(raw string) string {
	if len(raw) <= maxAuditRawLength {
		return raw
	}
	cut := maxAuditRawLength
	for cut > 0 && !utf8.RuneStart(raw[cut]) {
		cut--
	}
	return raw[:cut]
}

// WithConnection sets the connection reference
func (e *AuditEntry) WithConnection(id uuid.UUID) *AuditEntry {
	e.ConnectionID = &id
	return e
}

// WithItem sets the connection item reference
func (e *AuditEntry) WithItem(id uuid.UUID) *AuditEntry {
	e.ConnectionItemID = &id
	return e
}

// WithMeta adds a metadata field
func (e *AuditEntry) WithMeta(key, value string) *AuditEntry {
	if e.Metadata == nil {
		e.Metadata = map[string]string{}
	}
	e.Metadata[key] = value
	return e
}
