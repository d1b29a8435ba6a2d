package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"hushhire/internal/common/auth"
	appErr "hushhire/pkg/errors"
	"hushhire/pkg/utils/contextkey"
	"hushhire/pkg/utils/response"
)

// AuthMiddleware enforces JWT validation for manager routes.
func AuthMiddleware(manager *auth.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if manager == nil {
			response.AbortWithErrorCode(c, appErr.ServiceUnavailable, "auth is not configured")
			return
		}
		token := extractBearerToken(c.GetHeader("Authorization"))
		managerID, role, err := manager.Validate(token)
		if err != nil {
			response.AbortWithError(c, err)
			return
		}
		c.Set(string(contextkey.ManagerID), managerID)
		c.Set("manager_role", role)
		ctx := context.WithValue(c.Request.Context(), contextkey.ManagerID, managerID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func extractBearerToken(authHeader string) string {
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
