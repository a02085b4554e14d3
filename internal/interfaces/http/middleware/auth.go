package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/connhub/internal/infrastructure/auth"
	"github.com/erp/connhub/internal/infrastructure/logger"
	"github.com/erp/connhub/internal/interfaces/http/dto"
)

const (
	// UserIDKey is the gin context key holding the authenticated user
	UserIDKey = "auth_user_id"

	authHeader   = "Authorization"
	bearerPrefix = "Bearer "
)

// Authenticator resolves bearer tokens and session identifiers to user IDs
type Authenticator interface {
	AuthenticateBearer(ctx context.Context, token string) (string, error)
	ResolveSession(ctx context.Context, sessionID string) (string, error)
}

// AuthConfig configures RequireAuth
type AuthConfig struct {
	Authenticator Authenticator
	// SessionCookie is the cookie checked when no bearer token is sent
	SessionCookie string
	Logger        *zap.Logger
}

// RequireAuth authenticates the caller from the bearer token, or the session
// cookie when no Authorization header is present, and aborts with 401 otherwise.
func RequireAuth(cfg AuthConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		bearer, session := Credentials(c, cfg.SessionCookie)
		ctx := c.Request.Context()

		var (
			userID string
			err    error
		)
		switch {
		case bearer != "":
			userID, err = cfg.Authenticator.AuthenticateBearer(ctx, bearer)
		case session != "":
			userID, err = cfg.Authenticator.ResolveSession(ctx, session)
		default:
			err = auth.ErrInvalidToken
		}
		if err != nil || userID == "" {
			log.Debug("Authentication failed",
				zap.String("path", c.Request.URL.Path),
				zap.Bool("bearer", bearer != ""),
				zap.Error(err),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				dto.NewErrorResponse(dto.ErrCodeUnauthorized, authErrorMessage(err), GetRequestID(c)))
			return
		}

		c.Set(UserIDKey, userID)
		c.Request = c.Request.WithContext(logger.WithUserID(ctx, userID))
		c.Next()
	}
}

// Credentials returns the raw bearer token and session identifier sent with the request
func Credentials(c *gin.Context, sessionCookie string) (bearer, session string) {
	if h := c.GetHeader(authHeader); strings.HasPrefix(h, bearerPrefix) {
		bearer = strings.TrimSpace(strings.TrimPrefix(h, bearerPrefix))
	}
	if sessionCookie != "" {
		if v, err := c.Cookie(sessionCookie); err == nil {
			session = v
		}
	}
	return bearer, session
}

// GetUserID returns the user authenticated by RequireAuth
func GetUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

func authErrorMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token has expired"
	case errors.Is(err, auth.ErrInvalidTokenType):
		return "Invalid token type"
	case errors.Is(err, auth.ErrTokenNotYetValid):
		return "Token is not yet valid"
	default:
		return "Authentication required"
	}
}
