package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"pgregory.net/rapid"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// =============================================================================
// Generators for property-based testing
// =============================================================================

func clientKeyGenerator() *rapid.Generator[string] {
	return rapid.StringMatching(`10\.0\.[0-9]{1,3}\.[0-9]{1,3}`)
}

// =============================================================================
// Property: Requests within burst succeed, the next one is blocked
// =============================================================================

func testRateLimiter_BurstThenBlocked(t *rapid.T) {
	burst := rapid.IntRange(1, 50).Draw(t, "burst")
	rl := NewRateLimiter(Config{RPS: 0.001, Burst: burst, CleanupInterval: time.Hour})
	defer rl.Stop()

	key := clientKeyGenerator().Draw(t, "key")
	for i := 0; i < burst; i++ {
		if !rl.Allow(key) {
			t.Fatalf("request %d of %d should have been allowed", i+1, burst)
		}
	}
	if rl.Allow(key) {
		t.Fatalf("request beyond burst of %d should have been blocked", burst)
	}
}

func TestRateLimiter_BurstThenBlocked(t *testing.T) {
	rapid.Check(t, testRateLimiter_BurstThenBlocked)
}

// =============================================================================
// Property: Clients are isolated from each other
// =============================================================================

func testRateLimiter_ClientsIsolated(t *rapid.T) {
	rl := NewRateLimiter(Config{RPS: 0.001, Burst: 3, CleanupInterval: time.Hour})
	defer rl.Stop()

	a := clientKeyGenerator().Draw(t, "a")
	b := clientKeyGenerator().Filter(func(s string) bool { return s != a }).Draw(t, "b")

	for i := 0; i < 3; i++ {
		rl.Allow(a)
	}
	if rl.Allow(a) {
		t.Fatalf("client %s should be exhausted", a)
	}
	if !rl.Allow(b) {
		t.Fatalf("client %s should not be affected by %s", b, a)
	}
	if rl.Len() != 2 {
		t.Fatalf("expected 2 tracked clients, got %d", rl.Len())
	}
}

func TestRateLimiter_ClientsIsolated(t *testing.T) {
	rapid.Check(t, testRateLimiter_ClientsIsolated)
}

func TestRateLimiter_CleanupDropsIdle(t *testing.T) {
	rl := NewRateLimiter(Config{RPS: 1, Burst: 1, CleanupInterval: time.Hour})
	defer rl.Stop()

	rl.Allow("10.0.0.1")
	rl.mu.Lock()
	rl.limiters["10.0.0.1"].lastUsed = time.Now().Add(-2 * time.Hour)
	rl.mu.Unlock()
	rl.Allow("10.0.0.2")

	rl.Cleanup()
	assert.Equal(t, 1, rl.Len())
}

func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	rl := NewRateLimiter(Config{RPS: 1000, Burst: 1000, CleanupInterval: time.Hour})
	defer rl.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				rl.Allow("10.0.0.1")
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, rl.Len())
}

func TestRateLimiter_StopTwice(t *testing.T) {
	rl := NewRateLimiter(Config{RPS: 1, Burst: 1})
	rl.Stop()
	rl.Stop()
}

func TestFormPostMiddleware(t *testing.T) {
	rl := NewRateLimiter(Config{RPS: 0.001, Burst: 2, CleanupInterval: time.Hour})
	defer rl.Stop()

	h := FormPostMiddleware(rl, ClientAddr)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	do := func(method string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/parabank/login.htm", nil)
		req.RemoteAddr = "10.0.0.9:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	first := do(http.MethodPost)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
	require.Equal(t, http.StatusOK, do(http.MethodPost).Code)

	blocked := do(http.MethodPost)
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Equal(t, "1", blocked.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, do(http.MethodGet).Code)
}

func TestClientAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", ClientAddr(req))
	req.RemoteAddr = "unix"
	assert.Equal(t, "unix", ClientAddr(req))
}
