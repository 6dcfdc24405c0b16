package middleware

import (
	"net/http"
	"strings"

	"github.com/catalogsync/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// Roles checked by RequireRole
const (
	RoleReviewer = "reviewer"
	RoleAdmin    = "admin"
)

// RequireRole lets the request through when the token carries any of roles.
// It must run after JWTAuthMiddleware.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetJWTClaims(c)
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeUnauthorized, "Authentication required", GetRequestID(c)))
			return
		}
		for _, role := range roles {
			if claims.HasRole(role) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, dto.NewErrorResponseWithContext(
			dto.ErrCodeForbidden, "Missing required role", GetRequestID(c),
			map[string]string{"required_any": strings.Join(roles, ",")}))
	}
}
