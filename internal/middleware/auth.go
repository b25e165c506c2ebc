package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "ticketdesk/internal/errors"
	"ticketdesk/internal/token"
)

// Context keys set by the auth middleware.
const (
	UserIDKey = "userID"
	RoleKey   = "role"
)

// TokenVerifier turns a bearer token into the identity it asserts.
type TokenVerifier interface {
	Verify(tokenString string) (token.Identity, error)
}

// AuthOption adjusts AuthMiddleware.
type AuthOption func(*authConfig)

type authConfig struct {
	invalidSubject *apperrors.AppError
}

// RejectInvalidSubjectAsBadRequest answers a correctly signed token whose
// subject is not a user id with 400 instead of the default 401.
func RejectInvalidSubjectAsBadRequest() AuthOption {
	return func(cfg *authConfig) {
		cfg.invalidSubject = apperrors.ErrInvalidSubject
	}
}

// AuthMiddleware verifies the bearer token and sets the caller's id and role
// in the context. Requests without a valid token never reach the handler.
func AuthMiddleware(tokens TokenVerifier, opts ...AuthOption) gin.HandlerFunc {
	cfg := authConfig{invalidSubject: apperrors.ErrInvalidToken}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithError(c, apperrors.ErrUnauthorized)
			return
		}
		if !authenticate(c, tokens, authHeader, cfg) {
			return
		}
		c.Next()
	}
}

// OptionalAuth is AuthMiddleware for routes that also serve anonymous
// callers. A missing header passes through; a bad token is still rejected.
func OptionalAuth(tokens TokenVerifier) gin.HandlerFunc {
	cfg := authConfig{invalidSubject: apperrors.ErrInvalidToken}
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}
		if !authenticate(c, tokens, authHeader, cfg) {
			return
		}
		c.Next()
	}
}

func authenticate(c *gin.Context, tokens TokenVerifier, authHeader string, cfg authConfig) bool {
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		abortWithError(c, apperrors.WithMessage(apperrors.ErrInvalidToken, "Invalid authorization header format"))
		return false
	}

	identity, err := tokens.Verify(parts[1])
	if err != nil {
		if errors.Is(err, token.ErrInvalidSubject) {
			abortWithError(c, cfg.invalidSubject)
		} else {
			abortWithError(c, apperrors.ErrInvalidToken)
		}
		return false
	}

	c.Set(UserIDKey, identity.UserID)
	c.Set(RoleKey, identity.Role)
	return true
}

func abortWithError(c *gin.Context, appErr *apperrors.AppError) {
	c.AbortWithStatusJSON(appErr.StatusCode, appErr)
}
