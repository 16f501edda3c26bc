package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestMemoryRateLimiter_AllowsUpToMax(t *testing.T) {
	limiter := NewMemoryRateLimiter(time.Minute, 3)

	for i := 0; i < 3; i++ {
		if !limiter.Allow("a@x.com") {
			t.Fatalf("request %d must be allowed", i+1)
		}
	}
	if limiter.Allow("a@x.com") {
		t.Fatalf("request over max must be denied")
	}
}

func TestMemoryRateLimiter_KeysAreIndependent(t *testing.T) {
	limiter := NewMemoryRateLimiter(time.Minute, 1)

	if !limiter.Allow("a@x.com") {
		t.Fatalf("first key must be allowed")
	}
	if limiter.Allow("a@x.com") {
		t.Fatalf("first key must be exhausted")
	}
	if !limiter.Allow("b@x.com") {
		t.Fatalf("second key must not share the first key's quota")
	}
}

func TestMemoryRateLimiter_WindowExpires(t *testing.T) {
	limiter := NewMemoryRateLimiter(20*time.Millisecond, 1)

	if !limiter.Allow("a@x.com") {
		t.Fatalf("first request must be allowed")
	}
	if limiter.Allow("a@x.com") {
		t.Fatalf("second request inside the window must be denied")
	}

	time.Sleep(30 * time.Millisecond)
	if !limiter.Allow("a@x.com") {
		t.Fatalf("request after the window must be allowed again")
	}
}

func TestMemoryRateLimiter_EvictsLapsedKeys(t *testing.T) {
	limiter := NewMemoryRateLimiter(20*time.Millisecond, 1).(*memoryRateLimiter)

	for _, key := range []string{"a@x.com", "b@x.com", "c@x.com", "d@x.com"} {
		limiter.Allow(key)
	}

	time.Sleep(30 * time.Millisecond)

	// Una clave nueva tras la ventana dispara el barrido; las claves viejas
	// no deben quedar retenidas.
	limiter.Allow("fresh@x.com")

	limiter.mu.Lock()
	size := len(limiter.hits)
	limiter.mu.Unlock()
	if size != 1 {
		t.Fatalf("expected lapsed keys to be evicted, %d keys remain", size)
	}
}

type fakeRateEvaler struct {
	count   int64
	err     error
	lastKey string
}

func (f *fakeRateEvaler) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	if len(keys) > 0 {
		f.lastKey = keys[0]
	}
	cmd := redis.NewCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.count++
	cmd.SetVal(f.count)
	return cmd
}

func TestRedisRateLimiter_DeniesOverMax(t *testing.T) {
	fake := &fakeRateEvaler{}
	limiter := &redisRateLimiter{client: fake, window: time.Minute, max: 2, prefix: "auth:rl:"}

	if !limiter.Allow("A@X.com") {
		t.Fatalf("first request must be allowed")
	}
	if fake.lastKey != "auth:rl:a@x.com" {
		t.Fatalf("expected normalized prefixed key, got %q", fake.lastKey)
	}
	if !limiter.Allow("a@x.com") {
		t.Fatalf("second request must be allowed")
	}
	if limiter.Allow("a@x.com") {
		t.Fatalf("third request must be denied")
	}
}

func TestRedisRateLimiter_FailsOpen(t *testing.T) {
	fake := &fakeRateEvaler{err: errors.New("connection refused")}
	limiter := &redisRateLimiter{client: fake, window: time.Minute, max: 1, prefix: "auth:rl:"}

	if !limiter.Allow("a@x.com") {
		t.Fatalf("limiter must fail open when redis is unavailable")
	}
}

func TestRedisRateLimiter_RejectsEmptyKey(t *testing.T) {
	limiter := &redisRateLimiter{client: &fakeRateEvaler{}, window: time.Minute, max: 1, prefix: "auth:rl:"}

	if limiter.Allow("   ") {
		t.Fatalf("blank key must be denied")
	}
}
