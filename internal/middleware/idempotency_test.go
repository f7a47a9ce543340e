package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/developerashishcanada/carpoolreact/pkg/errors"
	"github.com/developerashishcanada/carpoolreact/pkg/logger"
)

func newIdempotencyRouter(t *testing.T, handler gin.HandlerFunc) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	r := gin.New()
	r.POST("/deposit", Idempotency(client, time.Hour, logger.NewNop()), handler)
	return r, mr
}

func postDeposit(r *gin.Engine, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/deposit", nil)
	req.Header.Set(idempotencyHeader, key)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func lockKeys(mr *miniredis.Miniredis) []string {
	var locks []string
	for _, k := range mr.Keys() {
		if strings.HasSuffix(k, ":lock") {
			locks = append(locks, k)
		}
	}
	return locks
}

func TestIdempotency_ReplaysCompletedRequest(t *testing.T) {
	var calls int32
	r, mr := newIdempotencyRouter(t, func(c *gin.Context) {
		n := atomic.AddInt32(&calls, 1)
		c.JSON(http.StatusCreated, gin.H{"call": n})
	})

	first := postDeposit(r, "k1")
	second := postDeposit(r, "k1")
	other := postDeposit(r, "k2")

	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replay"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Empty(t, other.Header().Get("Idempotent-Replay"))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Empty(t, lockKeys(mr), "reservations are released")
}

func TestIdempotency_RejectsSameKeyWhileInFlight(t *testing.T) {
	var calls int32
	entered := make(chan struct{})
	release := make(chan struct{})
	r, mr := newIdempotencyRouter(t, func(c *gin.Context) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(entered)
			<-release
		}
		c.JSON(http.StatusCreated, gin.H{"ok": true})
	})

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() { done <- postDeposit(r, "same") }()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first request never reached the handler")
	}
	assert.Len(t, lockKeys(mr), 1)

	concurrent := postDeposit(r, "same")
	assert.Equal(t, http.StatusConflict, concurrent.Code)
	assert.Contains(t, concurrent.Body.String(), apperrors.CodeConflict)

	close(release)
	var first *httptest.ResponseRecorder
	select {
	case first = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("first request did not finish")
	}
	require.Equal(t, http.StatusCreated, first.Code)

	retry := postDeposit(r, "same")
	assert.Equal(t, http.StatusCreated, retry.Code)
	assert.Equal(t, "true", retry.Header().Get("Idempotent-Replay"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "handler ran once")
}

func TestIdempotency_ServerErrorReleasesKey(t *testing.T) {
	var calls int32
	r, mr := newIdempotencyRouter(t, func(c *gin.Context) {
		if atomic.AddInt32(&calls, 1) == 1 {
			c.JSON(http.StatusInternalServerError, gin.H{"code": apperrors.CodeInternal})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"ok": true})
	})

	assert.Equal(t, http.StatusInternalServerError, postDeposit(r, "k").Code)
	assert.Empty(t, lockKeys(mr))

	retry := postDeposit(r, "k")
	assert.Equal(t, http.StatusCreated, retry.Code)
	assert.Empty(t, retry.Header().Get("Idempotent-Replay"))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestIdempotency_ExpiredReservationDoesNotBlock(t *testing.T) {
	r, mr := newIdempotencyRouter(t, func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	// A holder that died mid-request leaves its reservation behind
	require.NoError(t, mr.Set("idempotency::/deposit:k:lock", "dead-holder"))
	mr.SetTTL("idempotency::/deposit:k:lock", idempotencyLockTTL)

	assert.Equal(t, http.StatusConflict, postDeposit(r, "k").Code)

	mr.FastForward(idempotencyLockTTL + time.Second)
	assert.Equal(t, http.StatusCreated, postDeposit(r, "k").Code)
}
