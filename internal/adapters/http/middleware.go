package http

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/dkeye/Telehealth/internal/adapters/signal"
	"github.com/dkeye/Telehealth/internal/domain"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const userIDKey = "user_id"

// AuthMiddleware resolves the bearer token and stores the identity under
// "user_id".
func AuthMiddleware(identity signal.IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Not authenticated"})
			return
		}
		uid, err := identity.Resolve(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Could not validate credentials"})
			return
		}
		c.Set(userIDKey, uid)
		c.Next()
	}
}

func currentUser(c *gin.Context) domain.UserID {
	uid, _ := c.Get(userIDKey)
	v, _ := uid.(domain.UserID)
	return v
}

// corsConfig allows the listed origins with credentials. An empty list or
// "*" allows any origin; the origin is echoed back so credentials still work.
func corsConfig(allowed []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		cfg.AllowOriginFunc = func(string) bool { return true }
		return cfg
	}
	cfg.AllowOrigins = allowed
	return cfg
}
