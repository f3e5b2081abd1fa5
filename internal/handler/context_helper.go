package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rcffuta/elib-api/internal/middleware"
	"github.com/rcffuta/elib-api/internal/models"
	"github.com/rcffuta/elib-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// currentUserID returns the authenticated user id or "" for anonymous requests.
func currentUserID(c *gin.Context) string {
	if claims := claimsFromContext(c); claims != nil {
		return claims.UserID
	}
	return ""
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func withCacheMeta(c *gin.Context, hit bool) response.Meta {
	middleware.SetCacheHit(c, hit)
	return middleware.Meta(c)
}
