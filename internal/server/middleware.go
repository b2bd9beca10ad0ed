package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lijunhao/projfin/internal/apperr"
	"github.com/lijunhao/projfin/internal/models"
)

const userContextKey = "current_user"

// identityMiddleware resolves the bearer token into a user record and
// stores it on the request context. Services receive the user, never the
// token.
func (s *Server) identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			abortWith(c, apperr.Unauthorized("missing bearer token"))
			return
		}

		userID, err := s.deps.Tokens.Verify(strings.TrimSpace(token))
		if err != nil {
			abortWith(c, apperr.Unauthorized("invalid or expired token"))
			return
		}

		u, err := s.deps.Users.GetByID(c.Request.Context(), userID)
		if err != nil {
			abortWith(c, err)
			return
		}

		c.Set(userContextKey, u)
		c.Next()
	}
}

// currentUser returns the identity resolved by identityMiddleware.
func currentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(userContextKey); ok {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
