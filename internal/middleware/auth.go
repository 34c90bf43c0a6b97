package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/medscan/scangate/internal/model"
	"github.com/medscan/scangate/internal/pkg/apperrors"
	"github.com/medscan/scangate/internal/service"
)

const ContextUserKey = "current_user"

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// AuthRequired rejects requests without a valid identity. Token resolution
// already filters out inactive accounts.
func AuthRequired(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "请先登录"})
			c.Abort()
			return
		}
		user, err := auth.ResolveToken(c.Request.Context(), token)
		if err != nil {
			appErr := apperrors.Wrap(err)
			c.JSON(appErr.HTTPStatus, gin.H{"detail": appErr.Message})
			c.Abort()
			return
		}
		c.Set(ContextUserKey, user)
		c.Next()
	}
}

// AuthOptional resolves an identity when one is presented but lets anonymous
// requests through; handlers that need a user decide what 401/403 to return.
func AuthOptional(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			if user, err := auth.ResolveToken(c.Request.Context(), token); err == nil {
				c.Set(ContextUserKey, user)
			}
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user from the request context, or nil.
func CurrentUser(c *gin.Context) *model.User {
	val, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	user, ok := val.(*model.User)
	if !ok {
		return nil
	}
	return user
}

// RequireRole gates a route group to the given roles. Must run after
// AuthRequired.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "请先登录"})
			c.Abort()
			return
		}
		for _, role := range roles {
			if user.Role == role {
				c.Next()
				return
			}
		}
		c.JSON(http.StatusForbidden, gin.H{"detail": "无权限执行此操作"})
		c.Abort()
	}
}
