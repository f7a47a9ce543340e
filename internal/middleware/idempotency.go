package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/developerashishcanada/carpoolreact/pkg/cache"
	apperrors "github.com/developerashishcanada/carpoolreact/pkg/errors"
	"github.com/developerashishcanada/carpoolreact/pkg/logger"
)

const (
	idempotencyHeader = "Idempotency-Key"

	// idempotencyLockTTL bounds a reservation whose holder died mid-request.
	// It outlasts the server's write timeout.
	idempotencyLockTTL = 30 * time.Second
)

// cachedResponse stores the response for idempotent requests.
type cachedResponse struct {
	StatusCode int             `json:"status_code"`
	Body       json.RawMessage `json:"body"`
	Headers    http.Header     `json:"headers"`
}

// responseWriter wraps gin.ResponseWriter to capture the response.
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency replays the stored response of a mutating request carrying an
// Idempotency-Key already seen for the same user. Keys are scoped per user.
// While the first request with a key is running the key is reserved, and a
// second request with it gets 409. Server errors release the key unstored so
// the client can retry. Without redis, or when redis fails, requests pass
// through.
func Idempotency(redisClient *redis.Client, ttl time.Duration, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if redisClient == nil {
			c.Next()
			return
		}
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut && c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		key := c.GetHeader(idempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		cacheKey := "idempotency:" + UserID(c) + ":" + c.FullPath() + ":" + key

		if replayed, ok := replay(c, redisClient, cacheKey, log); !ok || replayed {
			return
		}

		lock, acquired, err := cache.TryLock(ctx, redisClient, cacheKey+":lock", idempotencyLockTTL)
		if err != nil {
			log.Warn("Idempotency reservation failed", logger.Err(err))
			c.Next()
			return
		}
		if !acquired {
			abort(c, apperrors.ErrRequestInProgress)
			return
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				log.Warn("Failed to release idempotency key", logger.Err(err))
			}
		}()

		// The holder before us may have finished between the lookup and the lock
		if replayed, ok := replay(c, redisClient, cacheKey, log); !ok || replayed {
			return
		}

		w := &responseWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
		}
		c.Writer = w

		c.Next()

		// Server errors are retryable, so they are not stored.
		if c.Writer.Status() >= 200 && c.Writer.Status() < 500 {
			response := cachedResponse{
				StatusCode: c.Writer.Status(),
				Body:       w.body.Bytes(),
				Headers:    extractResponseHeaders(c),
			}
			if err := setCachedResponse(context.WithoutCancel(ctx), redisClient, cacheKey, &response, ttl); err != nil {
				log.Warn("Failed to store idempotent response", logger.Err(err))
			}
		}
	}
}

// replay writes the stored response for cacheKey if there is one. ok is
// false when the lookup failed; the request has then already been passed on.
func replay(c *gin.Context, client *redis.Client, cacheKey string, log *logger.Logger) (replayed, ok bool) {
	cached, err := getCachedResponse(c.Request.Context(), client, cacheKey)
	if err != nil && err != redis.Nil {
		log.Warn("Idempotency lookup failed", logger.Err(err))
		c.Next()
		return false, false
	}
	if cached == nil {
		return false, true
	}

	for k, v := range cached.Headers {
		for _, val := range v {
			c.Header(k, val)
		}
	}
	c.Header("Idempotent-Replay", "true")
	c.Data(cached.StatusCode, "application/json", cached.Body)
	c.Abort()
	return true, true
}

func getCachedResponse(ctx context.Context, client *redis.Client, key string) (*cachedResponse, error) {
	data, err := client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}

	var cached cachedResponse
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}

	return &cached, nil
}

func setCachedResponse(ctx context.Context, client *redis.Client, key string, response *cachedResponse, ttl time.Duration) error {
	data, err := json.Marshal(response)
	if err != nil {
		return err
	}

	return client.Set(ctx, key, data, ttl).Err()
}

// extractResponseHeaders keeps only Content-Type.
func extractResponseHeaders(c *gin.Context) http.Header {
	headers := make(http.Header)
	if ct := c.Writer.Header().Get("Content-Type"); ct != "" {
		headers.Set("Content-Type", ct)
	}
	return headers
}
