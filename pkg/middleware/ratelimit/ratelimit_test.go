package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestLimiterAllowsBurstThenBlocks(t *testing.T) {
	l := NewPerMinute(2)
	fixed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))

	fixed = fixed.Add(30 * time.Second)
	assert.True(t, l.Allow("a"))
}

func TestLimiterForgetsIdleKeys(t *testing.T) {
	l := NewPerMinute(1)
	fixed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	l.Allow("a")
	fixed = fixed.Add(time.Hour)
	l.Allow("b")

	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.visitors["a"]
	assert.False(t, ok)
}

func TestLimiterSweepsOncePerIdleTTL(t *testing.T) {
	l := NewPerMinute(1)
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	fixed := start
	l.now = func() time.Time { return fixed }
	has := func(key string) bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		_, ok := l.visitors[key]
		return ok
	}

	l.Allow("a")
	fixed = start.Add(8 * time.Minute)
	l.Allow("b")
	fixed = start.Add(11 * time.Minute)
	l.Allow("c")
	assert.False(t, has("a"))
	assert.True(t, has("b"))

	// b is idle now but the last sweep was only 8 minutes ago.
	fixed = start.Add(19 * time.Minute)
	l.Allow("d")
	assert.True(t, has("b"))

	fixed = start.Add(22 * time.Minute)
	l.Allow("e")
	assert.False(t, has("b"))
	assert.True(t, has("d"))
}

func TestMiddlewareReturns429(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := NewPerMinute(1)
	r := gin.New()
	r.GET("/", l.Middleware(nil), func(c *gin.Context) { c.Status(http.StatusOK) })

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
}
