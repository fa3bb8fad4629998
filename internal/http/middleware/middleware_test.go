package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	echo "github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func newEcho(mws ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.GET("/", func(c echo.Context) error {
		k, _ := AdminKeyFromCtx(c)
		return c.String(http.StatusOK, k)
	}, mws...)
	return e
}

func call(e *echo.Echo, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAPIKeyMiddleware(t *testing.T) {
	e := newEcho(APIKeyMiddleware([]string{" ops-key ", ""}))

	assert.Equal(t, http.StatusUnauthorized, call(e, "").Code)
	assert.Equal(t, http.StatusUnauthorized, call(e, "nope").Code)

	rec := call(e, "ops-key")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ops-key", rec.Body.String())
}

func TestAPIKeyMiddleware_NoKeysConfigured(t *testing.T) {
	e := newEcho(APIKeyMiddleware(nil))
	assert.Equal(t, http.StatusUnauthorized, call(e, "anything").Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	now := time.Unix(1700000000, 250*int64(time.Millisecond))
	e := newEcho(
		APIKeyMiddleware([]string{"a", "b"}),
		RateLimitMiddleware(RateLimitConfig{
			Redis:          rdb,
			RPS:            2,
			RetryAfterHint: true,
			Now:            func() time.Time { return now },
		}),
	)

	assert.Equal(t, http.StatusOK, call(e, "a").Code)
	assert.Equal(t, http.StatusOK, call(e, "a").Code)
	rec := call(e, "a")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, call(e, "b").Code, "keys are limited independently")

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, call(e, "a").Code)
}

func TestRateLimitMiddleware_FailsOpenWithoutRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	e := newEcho(
		APIKeyMiddleware([]string{"a"}),
		RateLimitMiddleware(RateLimitConfig{Redis: rdb, RPS: 1}),
	)
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, call(e, "a").Code)
	}
}
