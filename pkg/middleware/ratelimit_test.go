package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueline/blueline/pkg/contextkeys"
	"github.com/blueline/blueline/pkg/identity"
)

func testRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestDistributedRateLimiterAllow(t *testing.T) {
	client, _ := testRedis(t)
	ctx := context.Background()

	rl := NewDistributedRateLimiter(client,
		&RateLimitConfig{RequestsPerWindow: 3, WindowDuration: time.Minute}, "test")

	for i := 0; i < 3; i++ {
		allowed, err := rl.Allow(ctx, "k1")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d within the window", i+1)
	}

	allowed, err := rl.Allow(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, allowed, "fourth request exceeds the window")

	// Other keys have their own window.
	allowed, err = rl.Allow(ctx, "k2")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestDistributedRateLimiterWindowReset(t *testing.T) {
	client, mr := testRedis(t)
	ctx := context.Background()

	rl := NewDistributedRateLimiter(client,
		&RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}, "test")

	allowed, err := rl.Allow(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = rl.Allow(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, allowed)

	mr.FastForward(2 * time.Minute)

	allowed, err = rl.Allow(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, allowed, "new window after expiry")
}

func TestRateLimitMiddlewareBlocksAfterLimit(t *testing.T) {
	client, _ := testRedis(t)

	m := NewRateLimitMiddleware(client)
	m.ipLimiter = NewDistributedRateLimiter(client,
		&RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute}, "ratelimit:ip")

	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestRateLimitMiddlewareKeysByPrincipal(t *testing.T) {
	client, _ := testRedis(t)

	m := NewRateLimitMiddleware(client)
	m.userLimiter = NewDistributedRateLimiter(client,
		&RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}, "ratelimit:user")

	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(profileID string) int {
		r := httptest.NewRequest("GET", "/", nil)
		ctx := contextkeys.WithPrincipal(r.Context(), &identity.Principal{ID: profileID})
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r.WithContext(ctx))
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("alice"))
	assert.Equal(t, http.StatusTooManyRequests, send("alice"))
	assert.Equal(t, http.StatusOK, send("bob"), "limits are per profile")
}

func TestRateLimitMiddlewareFailsOpenWhenRedisDown(t *testing.T) {
	client, mr := testRedis(t)
	mr.Close()

	m := NewRateLimitMiddleware(client)
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusOK, w.Code, "broken limiter never blocks traffic")
}
