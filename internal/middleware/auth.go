package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/developerashishcanada/carpoolreact/internal/identity"
	apperrors "github.com/developerashishcanada/carpoolreact/pkg/errors"
	"github.com/developerashishcanada/carpoolreact/pkg/logger"
)

const userIDKey = "user_id"

// Auth verifies the bearer token and stores the caller's user id in the
// context. Browsers cannot set headers on a websocket upgrade, so a "token"
// query parameter is accepted as well.
func Auth(provider identity.Provider, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			abort(c, apperrors.Unauthorized("Authorization header is required", nil))
			return
		}

		userID, err := provider.Verify(c.Request.Context(), token)
		if err != nil {
			log.Debug("Token rejected",
				logger.String("path", c.FullPath()),
				logger.Err(err),
			)
			abort(c, apperrors.ErrInvalidToken)
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserID returns the authenticated user id, or "" outside Auth
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func abort(c *gin.Context, err *apperrors.AppError) {
	c.AbortWithStatusJSON(err.Status, gin.H{
		"code":    err.Code,
		"message": err.Message,
	})
}
