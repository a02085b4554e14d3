package connection

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/erp/connhub/internal/domain/connection"
	"github.com/erp/connhub/internal/infrastructure/auth"
)

// Correlation cache key prefixes. The store adds its own namespace in front.
const (
	tokenKeyPrefix  = "tok:"
	handleKeyPrefix = "handle:"
)

// TokenKey returns the cache key remembering the user behind a correlation token
func TokenKey(token string) string {
	return tokenKeyPrefix + token
}

// HandleKey returns the coarse cache key keyed by platform and account handle
func HandleKey(platform connection.PlatformCode, handle string) string {
	return handleKeyPrefix + string(platform) + ":" + strings.ToLower(strings.TrimSpace(handle))
}

// TokenOpener opens sealed correlation tokens
type TokenOpener interface {
	OpenToken(ctx context.Context, token string) (auth.SealedKind, string, error)
}

// SessionResolver resolves a session identifier to a user ID
type SessionResolver interface {
	ResolveSession(ctx context.Context, sessionID string) (string, error)
}

// BearerAuthenticator resolves a bearer token to a user ID
type BearerAuthenticator interface {
	AuthenticateBearer(ctx context.Context, token string) (string, error)
}

// RequestAuth is whatever authentication the callback request itself carried
type RequestAuth struct {
	Bearer    string
	SessionID string
}

// ResolveInput is the input of one identity recovery
type ResolveInput struct {
	Platform connection.PlatformCode
	Params   connection.CallbackParams
	Auth     RequestAuth
}

// IdentityStrategy is one step of the identity recovery chain.
// ok is false when the strategy has no answer; err is only for unexpected failures.
type IdentityStrategy interface {
	Name() string
	Resolve(ctx context.Context, in ResolveInput) (userID string, ok bool, err error)
}

// ---------------------------------------------------------------------------
// Strategies
// ---------------------------------------------------------------------------

// TokenCacheStrategy recalls the user remembered under the correlation token
type TokenCacheStrategy struct {
	store connection.CorrelationStore
}

// NewTokenCacheStrategy creates a TokenCacheStrategy
func NewTokenCacheStrategy(store connection.CorrelationStore) *TokenCacheStrategy {
	return &TokenCacheStrategy{store: store}
}

func (s *TokenCacheStrategy) Name() string { return "token_cache" }

func (s *TokenCacheStrategy) Resolve(ctx context.Context, in ResolveInput) (string, bool, error) {
	if in.Params.CorrelationToken == "" {
		return "", false, nil
	}
	return s.store.Recall(ctx, TokenKey(in.Params.CorrelationToken))
}

// SealedTokenStrategy opens the correlation token itself. User tokens carry the user ID,
// session tokens are resolved through the session layer.
type SealedTokenStrategy struct {
	opener   TokenOpener
	sessions SessionResolver
}

// NewSealedTokenStrategy creates a SealedTokenStrategy
func NewSealedTokenStrategy(opener TokenOpener, sessions SessionResolver) *SealedTokenStrategy {
	return &SealedTokenStrategy{opener: opener, sessions: sessions}
}

func (s *SealedTokenStrategy) Name() string { return "sealed_token" }

func (s *SealedTokenStrategy) Resolve(ctx context.Context, in ResolveInput) (string, bool, error) {
	if in.Params.CorrelationToken == "" {
		return "", false, nil
	}
	kind, subject, err := s.opener.OpenToken(ctx, in.Params.CorrelationToken)
	if err != nil {
		// expired or foreign tokens are an ordinary miss
		return "", false, nil
	}

	switch kind {
	case auth.SealedUser:
		return subject, true, nil
	case auth.SealedSession:
		if s.sessions == nil {
			return "", false, nil
		}
		userID, err := s.sessions.ResolveSession(ctx, subject)
		if err != nil {
			return "", false, nil
		}
		return userID, userID != "", nil
	default:
		return "", false, fmt.Errorf("unknown sealed token kind %q", kind)
	}
}

// HandleStrategy recalls the coarse handle-keyed correlation. Last writer wins.
type HandleStrategy struct {
	store connection.CorrelationStore
}

// NewHandleStrategy creates a HandleStrategy
func NewHandleStrategy(store connection.CorrelationStore) *HandleStrategy {
	return &HandleStrategy{store: store}
}

func (s *HandleStrategy) Name() string { return "handle" }

func (s *HandleStrategy) Resolve(ctx context.Context, in ResolveInput) (string, bool, error) {
	if strings.TrimSpace(in.Params.Handle) == "" {
		return "", false, nil
	}
	return s.store.Recall(ctx, HandleKey(in.Platform, in.Params.Handle))
}

// RequestAuthStrategy uses a bearer token or session identifier sent with the callback
type RequestAuthStrategy struct {
	bearer   BearerAuthenticator
	sessions SessionResolver
}

// NewRequestAuthStrategy creates a RequestAuthStrategy
func NewRequestAuthStrategy(bearer BearerAuthenticator, sessions SessionResolver) *RequestAuthStrategy {
	return &RequestAuthStrategy{bearer: bearer, sessions: sessions}
}

func (s *RequestAuthStrategy) Name() string { return "request_auth" }

func (s *RequestAuthStrategy) Resolve(ctx context.Context, in ResolveInput) (string, bool, error) {
	if in.Auth.Bearer != "" && s.bearer != nil {
		if userID, err := s.bearer.AuthenticateBearer(ctx, in.Auth.Bearer); err == nil && userID != "" {
			return userID, true, nil
		}
	}
	if in.Auth.SessionID != "" && s.sessions != nil {
		if userID, err := s.sessions.ResolveSession(ctx, in.Auth.SessionID); err == nil && userID != "" {
			return userID, true, nil
		}
	}
	return "", false, nil
}

// SystemUserStrategy attributes the callback to a designated system user.
// It is a degraded mode for platforms whose flow never carries caller state.
type SystemUserStrategy struct {
	userID    string
	platforms map[connection.PlatformCode]bool
	logger    *zap.Logger
}

// NewSystemUserStrategy creates a SystemUserStrategy limited to the given platforms
func NewSystemUserStrategy(userID string, platforms []connection.PlatformCode, logger *zap.Logger) *SystemUserStrategy {
	allowed := make(map[connection.PlatformCode]bool, len(platforms))
	for _, p := range platforms {
		allowed[p] = true
	}
	return &SystemUserStrategy{userID: userID, platforms: allowed, logger: logger}
}

func (s *SystemUserStrategy) Name() string { return "system_user" }

func (s *SystemUserStrategy) Resolve(_ context.Context, in ResolveInput) (string, bool, error) {
	if s.userID == "" || !s.platforms[in.Platform] {
		return "", false, nil
	}
	s.logger.Warn("OAuth callback attributed to system user",
		zap.String("platform", string(in.Platform)),
		zap.String("system_user_id", s.userID),
		zap.String("handle", in.Params.Handle),
	)
	return s.userID, true, nil
}

// ---------------------------------------------------------------------------
// Resolver
// ---------------------------------------------------------------------------

// Resolver runs the identity strategies in order and stops at the first answer
type Resolver struct {
	strategies []IdentityStrategy
	store      connection.CorrelationStore
	logger     *zap.Logger
}

// NewResolver creates a Resolver. store is used to consume a leftover token entry
// after a later strategy succeeded; it may be nil.
func NewResolver(store connection.CorrelationStore, logger *zap.Logger, strategies ...IdentityStrategy) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		strategies: strategies,
		store:      store,
		logger:     logger.Named("correlation"),
	}
}

// Strategies returns the strategy names in evaluation order
func (r *Resolver) Strategies() []string {
	names := make([]string, len(r.strategies))
	for i, s := range r.strategies {
		names[i] = s.Name()
	}
	return names
}

// Resolve recovers the user who started the attempt. It returns the user and the name of
// the strategy that answered, or ErrIdentityUnresolved when every strategy missed.
func (r *Resolver) Resolve(ctx context.Context, in ResolveInput) (string, string, error) {
	for _, strategy := range r.strategies {
		userID, ok, err := strategy.Resolve(ctx, in)
		if err != nil {
			r.logger.Warn("Identity strategy failed",
				zap.String("strategy", strategy.Name()),
				zap.String("platform", string(in.Platform)),
				zap.Error(err),
			)
			continue
		}
		if !ok || userID == "" {
			r.logger.Debug("Identity strategy missed",
				zap.String("strategy", strategy.Name()),
				zap.String("platform", string(in.Platform)),
			)
			continue
		}

		r.consumeToken(ctx, in)
		r.logger.Info("Identity resolved",
			zap.String("strategy", strategy.Name()),
			zap.String("platform", string(in.Platform)),
			zap.String("user_id", userID),
		)
		return userID, strategy.Name(), nil
	}

	return "", "", connection.ErrIdentityUnresolved
}

// consumeToken deletes the token entry so a correlation token resolves at most once
func (r *Resolver) consumeToken(ctx context.Context, in ResolveInput) {
	if r.store == nil || in.Params.CorrelationToken == "" {
		return
	}
	if _, _, err := r.store.Recall(ctx, TokenKey(in.Params.CorrelationToken)); err != nil {
		r.logger.Warn("Failed to consume correlation entry", zap.Error(err))
	}
}
