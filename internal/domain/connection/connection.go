package connection

import (
	"errors"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidUserID            = errors.New("connection: user ID is required")
	ErrInvalidExternalAccountID = errors.New("connection: external account ID is required")
	ErrInvalidStatus            = errors.New("connection: invalid status")
)

// Status represents the lifecycle status of a Connection or ConnectionItem
type Status string

const (
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
)

// IsValid returns true if the status is known
func (s Status) IsValid() bool {
	return s == StatusActive || s == StatusDisabled
}

// AuthPayload is the stored credential blob of a Connection
type AuthPayload struct {
	AccessToken      string            `json:"access_token"`
	RefreshToken     string            `json:"refresh_token,omitempty"`
	ExpiresAt        time.Time         `json:"expires_at"`
	RefreshExpiresAt time.Time         `json:"refresh_expires_at"`
	Extra            map[string]string `json:"extra,omitempty"`
}

// NewAuthPayload builds the stored payload from a token exchange result
func NewAuthPayload(tp *TokenPayload) AuthPayload {
	return AuthPayload{
		AccessToken:      tp.AccessToken,
		RefreshToken:     tp.RefreshToken,
		ExpiresAt:        tp.ExpiresAt,
		RefreshExpiresAt: tp.RefreshExpiresAt,
		Extra:            maps.Clone(tp.Extra),
	}
}

// Merge returns a copy of the payload updated with refreshed token fields.
// Fields the provider did not return again (refresh token, passthrough extras) are kept.
func (p AuthPayload) Merge(tp *TokenPayload) AuthPayload {
	merged := AuthPayload{
		AccessToken:      tp.AccessToken,
		RefreshToken:     p.RefreshToken,
		ExpiresAt:        tp.ExpiresAt,
		RefreshExpiresAt: p.RefreshExpiresAt,
		Extra:            maps.Clone(p.Extra),
	}
	if tp.RefreshToken != "" {
		merged.RefreshToken = tp.RefreshToken
	}
	if !tp.RefreshExpiresAt.IsZero() {
		merged.RefreshExpiresAt = tp.RefreshExpiresAt
	}
	if len(tp.Extra) > 0 && merged.Extra == nil {
		merged.Extra = make(map[string]string, len(tp.Extra))
	}
	for k, v := range tp.Extra {
		merged.Extra[k] = v
	}
	return merged
}

// ExtraValue returns a passthrough field or an empty string
func (p AuthPayload) ExtraValue(key string) string {
	if p.Extra == nil {
		return ""
	}
	return p.Extra[key]
}

// Connection links one user to one external account on one platform.
// The triple (UserID, Platform, ExternalAccountID) is unique.
type Connection struct {
	ID                uuid.UUID
	UserID            string
	Platform          PlatformCode
	ExternalAccountID string
	DisplayName       string
	AuthPayload       AuthPayload
	Status            Status
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewConnection creates an active connection for a freshly exchanged token
func NewConnection(userID string, platform PlatformCode, externalAccountID, displayName string, payload AuthPayload) (*Connection, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUserID
	}
	if !platform.IsValid() {
		return nil, ErrInvalidPlatformCode
	}
	if strings.TrimSpace(externalAccountID) == "" {
		return nil, ErrInvalidExternalAccountID
	}
	now := time.Now()
	return &Connection{
		ID:                uuid.New(),
		UserID:            userID,
		Platform:          platform,
		ExternalAccountID: externalAccountID,
		DisplayName:       displayName,
		AuthPayload:       payload,
		Status:            StatusActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// IsOwnedBy reports whether the connection belongs to the user on the given platform
func (c *Connection) IsOwnedBy(userID string, platform PlatformCode) bool {
	return c.UserID == userID && c.Platform == platform
}

// IsActive returns true if the connection is active
func (c *Connection) IsActive() bool {
	return c.Status == StatusActive
}

// AccessExpiresWithin reports whether the access token expires before now+window
func (c *Connection) AccessExpiresWithin(window time.Duration, now time.Time) bool {
	if c.AuthPayload.ExpiresAt.IsZero() {
		return true
	}
	return c.AuthPayload.ExpiresAt.Before(now.Add(window))
}

// FallbackDisplayName synthesizes a display name when the provider identity is unavailable
func FallbackDisplayName(platform PlatformCode, externalAccountID string) string {
	if externalAccountID == "" {
		return platform.DisplayName() + " account"
	}
	return platform.DisplayName() + " " + externalAccountID
}
