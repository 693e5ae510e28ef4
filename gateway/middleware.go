package gateway

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/example/foodhall/pkg/apperr"
	"github.com/example/foodhall/pkg/auth"
	"github.com/example/foodhall/pkg/config"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const userIDKey = "userID"

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if id := c.GetString(userIDKey); id != "" {
			fields = append(fields, zap.String("user_id", id))
		}
		logger.Info("HTTP request", fields...)
	}
}

func corsMiddleware(cfg *config.CORSConfig) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 {
		c.AllowAllOrigins = true
		c.AllowCredentials = false
	} else {
		c.AllowOrigins = cfg.AllowedOrigins
	}
	return cors.New(c)
}

// authMiddleware accepts the token from the cookie or an Authorization bearer header.
// A missing token is 401; a token that fails verification is 403.
func authMiddleware(tokens TokenVerifier, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(cookieName)
		if token == "" {
			if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
				token = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
			}
		}
		if token == "" {
			abort(c, http.StatusUnauthorized, "Token Missing")
			return
		}

		userID, err := tokens.Verify(token)
		if err != nil {
			msg := "Invalid Token"
			if errors.Is(err, auth.ErrTokenExpired) {
				msg = "Token expired"
			}
			abort(c, http.StatusForbidden, msg)
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// adminMiddleware re-fetches the user since the token carries only the id.
func adminMiddleware(users AuthAPI, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := users.User(c.Request.Context(), c.GetString(userIDKey))
		if err != nil {
			if apperr.KindOf(err) == apperr.KindNotFound {
				abort(c, http.StatusUnauthorized, "User not found")
				return
			}
			logger.Error("Failed to load user for admin check", zap.Error(err))
			abort(c, http.StatusInternalServerError, "Server Error")
			return
		}
		if !user.IsAdmin() {
			abort(c, http.StatusForbidden, "Admin access required")
			return
		}
		c.Next()
	}
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}
