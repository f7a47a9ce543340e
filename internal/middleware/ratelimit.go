package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/developerashishcanada/carpoolreact/pkg/cache"
	apperrors "github.com/developerashishcanada/carpoolreact/pkg/errors"
	"github.com/developerashishcanada/carpoolreact/pkg/logger"
)

// RateLimit limits each authenticated user through limiter. A nil limiter
// disables the check, and a redis failure lets the request through.
func RateLimit(limiter *cache.RateLimiter, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		allowed, err := limiter.Allow(c.Request.Context(), UserID(c))
		if err != nil {
			log.Warn("Rate limiter unavailable", logger.Err(err))
			c.Next()
			return
		}
		if !allowed {
			log.Info("Rate limit exceeded",
				logger.String("user_id", UserID(c)),
				logger.String("path", c.FullPath()),
			)
			abort(c, apperrors.ErrRateLimitExceeded)
			return
		}
		c.Next()
	}
}
