package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/erp/connhub/internal/infrastructure/config"
)

// TokenType represents the type of JWT token
type TokenType string

const (
	// TokenTypeAccess is a bearer token presented in the Authorization header
	TokenTypeAccess TokenType = "access"
	// TokenTypeSession is a browser session identifier carried in a cookie
	TokenTypeSession TokenType = "session"
)

// Common errors
var (
	ErrInvalidToken     = errors.New("auth: invalid token")
	ErrExpiredToken     = errors.New("auth: token has expired")
	ErrInvalidTokenType = errors.New("auth: invalid token type")
	ErrInvalidClaims    = errors.New("auth: invalid token claims")
	ErrTokenNotYetValid = errors.New("auth: token is not yet valid")
	ErrMissingUserID    = errors.New("auth: missing user_id in claims")
)

// Claims represents custom JWT claims
type Claims struct {
	jwt.RegisteredClaims
	UserID    string    `json:"user_id"`
	TokenType TokenType `json:"token_type"`
}

// JWTService issues and validates bearer tokens and session identifiers
type JWTService struct {
	secret            []byte
	issuer            string
	accessExpiration  time.Duration
	sessionExpiration time.Duration
	now               func() time.Time
}

// NewJWTService creates a new JWT service
func NewJWTService(cfg config.JWTConfig) *JWTService {
	return &JWTService{
		secret:            []byte(cfg.Secret),
		issuer:            cfg.Issuer,
		accessExpiration:  cfg.AccessTokenExpiration,
		sessionExpiration: cfg.SessionExpiration,
		now:               time.Now,
	}
}

// GenerateAccessToken issues a bearer token for a user
func (s *JWTService) GenerateAccessToken(userID string) (string, time.Time, error) {
	return s.generate(userID, TokenTypeAccess, s.accessExpiration)
}

// GenerateSession issues a session identifier for a user
func (s *JWTService) GenerateSession(userID string) (string, time.Time, error) {
	return s.generate(userID, TokenTypeSession, s.sessionExpiration)
}

func (s *JWTService) generate(userID string, tokenType TokenType, ttl time.Duration) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, ErrMissingUserID
	}

	now := s.now()
	expiresAt := now.Add(ttl)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    s.issuer,
			Subject:   userID,
			Audience:  jwt.ClaimStrings{s.issuer},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		UserID:    userID,
		TokenType: tokenType,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// ValidateAccessToken validates a bearer token and returns its claims
func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.validate(tokenString, TokenTypeAccess)
}

// ValidateSession validates a session identifier and returns its claims
func (s *JWTService) ValidateSession(sessionID string) (*Claims, error) {
	return s.validate(sessionID, TokenTypeSession)
}

func (s *JWTService) validate(tokenString string, expectedType TokenType) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrTokenNotYetValid
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.TokenType != expectedType {
		return nil, ErrInvalidTokenType
	}
	if claims.UserID == "" {
		return nil, ErrMissingUserID
	}
	return claims, nil
}

// AuthenticateBearer resolves the user behind a bearer token
func (s *JWTService) AuthenticateBearer(_ context.Context, token string) (string, error) {
	claims, err := s.ValidateAccessToken(token)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

// ResolveSession resolves the user behind a session identifier
func (s *JWTService) ResolveSession(_ context.Context, sessionID string) (string, error) {
	claims, err := s.ValidateSession(sessionID)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

// GetRemainingTTL returns the remaining time until the token expires
func (c *Claims) GetRemainingTTL(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	remaining := c.ExpiresAt.Time.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}
