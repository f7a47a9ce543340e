package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/developerashishcanada/carpoolreact/pkg/logger"
)

type stubProvider map[string]string

func (p stubProvider) Verify(ctx context.Context, token string) (string, error) {
	if id, ok := p[token]; ok {
		return id, nil
	}
	return "", errors.New("unknown token")
}

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Auth(stubProvider{"good": "user-1"}, logger.NewNop()))
	r.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, UserID(c))
	})
	return r
}

func TestAuth(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		query      string
		wantStatus int
		wantBody   string
	}{
		{name: "bearer header", header: "Bearer good", wantStatus: http.StatusOK, wantBody: "user-1"},
		{name: "lower-case scheme", header: "bearer good", wantStatus: http.StatusOK, wantBody: "user-1"},
		{name: "query token", query: "?token=good", wantStatus: http.StatusOK, wantBody: "user-1"},
		{name: "missing", wantStatus: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic good", wantStatus: http.StatusUnauthorized},
		{name: "unknown token", header: "Bearer bad", wantStatus: http.StatusUnauthorized},
	}

	r := newAuthRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, w.Body.String())
			} else {
				assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
			}
		})
	}
}

func TestIdempotencyAndRateLimit_PassThroughWithoutRedis(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	calls := 0
	r.POST("/deposit",
		Idempotency(nil, 0, logger.NewNop()),
		RateLimit(nil, logger.NewNop()),
		func(c *gin.Context) {
			calls++
			c.Status(http.StatusCreated)
		},
	)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/deposit", nil)
		req.Header.Set(idempotencyHeader, "same-key")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusCreated, w.Code)
	}
	assert.Equal(t, 2, calls)
}
