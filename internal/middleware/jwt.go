package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/videohub/backend/internal/auth"
	"github.com/videohub/backend/pkg/response"
)

// ContextUsername is the key for the authenticated username in gin context.
const ContextUsername = "username"

// JWT returns a middleware that validates the bearer token and sets the principal in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUsername, claims.Username())
		c.Next()
	}
}

// Username returns the principal set by JWT, or "" when the request is unauthenticated.
func Username(c *gin.Context) string {
	return c.GetString(ContextUsername)
}
