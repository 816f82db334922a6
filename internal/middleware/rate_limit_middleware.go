package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/recetasapp/recetas-backend/internal/errors"
	"github.com/recetasapp/recetas-backend/pkg/redis"
)

// RateLimit throttles a route per client IP using a Redis counter.
// Applied to the endpoints that issue verification codes; the flows
// themselves put no cap on resends. When Redis is unavailable the
// middleware fails open.
func RateLimit(limit int64, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		client := redis.GetClient()
		if client == nil {
			c.Next()
			return
		}

		key := fmt.Sprintf("throttle:%s:%s", c.FullPath(), c.ClientIP())
		hits, err := redis.CountRequest(c.Request.Context(), key, window)
		if err != nil {
			GetLoggerFromContext(c).Warn("Rate limit check failed", map[string]interface{}{
				"error": err.Error(),
			})
			c.Next()
			return
		}

		if hits > limit {
			GetLoggerFromContext(c).Warn("Request throttled", map[string]interface{}{
				"path": c.Request.URL.Path,
				"ip":   c.ClientIP(),
				"hits": hits,
			})
			apperrors.TooManyRequests(c, "")
			c.Abort()
			return
		}

		c.Next()
	}
}
