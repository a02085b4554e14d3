package connection

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/erp/connhub/internal/domain/connection"
)

// DefaultCorrelationTTL is how long an authorize attempt can be correlated back to its user
const DefaultCorrelationTTL = 10 * time.Minute

// TokenSealer seals correlation tokens
type TokenSealer interface {
	SealUser(userID string) (string, error)
	SealSession(sessionID string) (string, error)
}

// AuthorizeInput is the input for starting an authorization
type AuthorizeInput struct {
	Platform connection.PlatformCode
	UserID   string
	// SessionID seals the session instead of the user when set
	SessionID string
	Handle    string
}

// AuthorizeResult is a started authorization
type AuthorizeResult struct {
	URL              string
	CorrelationToken string
	ExpiresAt        time.Time
}

// AuthorizeService builds provider authorize URLs and remembers who asked for them
type AuthorizeService struct {
	registry connection.AdapterRegistry
	store    connection.CorrelationStore
	sealer   TokenSealer
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewAuthorizeService creates an AuthorizeService
func NewAuthorizeService(
	registry connection.AdapterRegistry,
	store connection.CorrelationStore,
	sealer TokenSealer,
	ttl time.Duration,
	logger *zap.Logger,
) *AuthorizeService {
	if ttl <= 0 {
		ttl = DefaultCorrelationTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthorizeService{
		registry: registry,
		store:    store,
		sealer:   sealer,
		ttl:      ttl,
		logger:   logger.Named("authorize"),
		now:      time.Now,
	}
}

// BuildAuthorizeURL seals a correlation token for the caller, remembers it (and the handle,
// when given) in the correlation store and returns the provider consent URL.
func (s *AuthorizeService) BuildAuthorizeURL(ctx context.Context, in AuthorizeInput) (*AuthorizeResult, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return nil, connection.ErrInvalidUserID
	}

	adapter, err := s.registry.Get(in.Platform)
	if err != nil {
		return nil, err
	}

	var token string
	if in.SessionID != "" {
		token, err = s.sealer.SealSession(in.SessionID)
	} else {
		token, err = s.sealer.SealUser(in.UserID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to seal correlation token: %w", err)
	}

	authURL, err := adapter.BuildAuthorizeURL(connection.AuthorizeRequest{
		CorrelationToken: token,
		Handle:           in.Handle,
	})
	if err != nil {
		return nil, err
	}

	// the sealed token still resolves on its own if the store is unavailable
	if err := s.store.Remember(ctx, TokenKey(token), in.UserID, s.ttl); err != nil {
		s.logger.Warn("Failed to remember correlation token",
			zap.String("platform", string(in.Platform)),
			zap.Error(err),
		)
	}
	if strings.TrimSpace(in.Handle) != "" {
		if err := s.store.Remember(ctx, HandleKey(in.Platform, in.Handle), in.UserID, s.ttl); err != nil {
			s.logger.Warn("Failed to remember handle correlation",
				zap.String("platform", string(in.Platform)),
				zap.String("handle", in.Handle),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("Authorization started",
		zap.String("platform", string(in.Platform)),
		zap.String("user_id", in.UserID),
	)

	return &AuthorizeResult{
		URL:              authURL,
		CorrelationToken: token,
		ExpiresAt:        s.now().Add(s.ttl),
	}, nil
}

// Platforms lists the platforms an authorization can be started for
func (s *AuthorizeService) Platforms() []connection.PlatformCode {
	return s.registry.List()
}
