package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"example.com/backstage/services/repeater/internal/models"
	"example.com/backstage/services/repeater/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// contextKey is a type for context keys
type contextKey string

// APIKeyContextKey is where the authenticated key is stored on the request
const APIKeyContextKey contextKey = "api_key"

// APIKeyAuth middleware validates API tokens from the Authorization header
func APIKeyAuth(repo repository.Repository, log *logrus.Logger, requiredLevel models.AuthorizationLevel) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header required",
			})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid Authorization header format. Expected: 'Bearer {token}'",
			})
			c.Abort()
			return
		}

		apiKey, err := repo.GetAPIKeyByKey(c.Request.Context(), parts[1])
		if err != nil {
			log.WithError(err).Warn("Invalid API key")
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid API key",
			})
			c.Abort()
			return
		}

		if apiKey.ExpiresAt != nil && apiKey.ExpiresAt.Before(time.Now()) {
			log.Warn("Expired API key")
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "API key expired",
			})
			c.Abort()
			return
		}

		if apiKey.AuthorizationLevel < requiredLevel {
			log.Warnf("Insufficient permissions. Required: %d, Provided: %d",
				requiredLevel, apiKey.AuthorizationLevel)
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Insufficient permissions",
			})
			c.Abort()
			return
		}

		// Update last used timestamp without blocking the request
		now := time.Now()
		apiKey.LastUsedAt = &now
		go func() {
			repo.UpdateAPIKey(context.Background(), apiKey)
		}()

		c.Set(string(APIKeyContextKey), apiKey)

		c.Next()
	}
}
