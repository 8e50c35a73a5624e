// Package middleware holds the gin middleware shared by every route group.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aura-community/backend/internal/auth"
	"github.com/aura-community/backend/pkg/response"
)

const (
	// ContextUserID holds the caller's uuid.UUID.
	ContextUserID = "user_id"
	// ContextUserRole holds the caller's platform role.
	ContextUserRole = "user_role"
)

// TokenVerifier resolves a bearer token to the caller.
type TokenVerifier interface {
	Validate(token string) (*auth.Identity, error)
}

// JWT requires "Authorization: Bearer <token>" and stores the caller in the context.
func JWT(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		id, err := verifier.Validate(strings.TrimSpace(token))
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, id.UserID)
		c.Set(ContextUserRole, id.Role)
		c.Next()
	}
}

// UserID returns the caller stored by JWT. It panics on routes without JWT.
func UserID(c *gin.Context) uuid.UUID {
	return c.MustGet(ContextUserID).(uuid.UUID)
}
