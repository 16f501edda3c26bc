package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"auth-hub/internal/service"
)

// RequireRoles deniega con 403 si el usuario autenticado no tiene ninguno de
// los roles requeridos. Debe montarse después de JWTAuthMiddleware.
func RequireRoles(authzSvc *service.AuthzService, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetAuthClaims(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		allowed, err := authzSvc.Authorize(c.Request.Context(), claims.UserID, roles)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not resolve roles"})
			c.Abort()
			return
		}
		if !allowed {
			c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			c.Abort()
			return
		}
		c.Next()
	}
}
