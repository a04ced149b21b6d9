package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

type window struct {
	count int
	ends  time.Time
}

// LocalLimiter keeps fixed-window counters in process memory. It serves a
// single instance; use RedisLimiter when replicas share budgets.
type LocalLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

// NewLocalLimiter returns an empty LocalLimiter
func NewLocalLimiter() *LocalLimiter {
	return &LocalLimiter{windows: make(map[string]*window), now: time.Now}
}

// Take counts one request for key under p
func (l *LocalLimiter) Take(_ context.Context, key string, p Policy) (Decision, error) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || !now.Before(w.ends) {
		w = &window{ends: now.Add(p.Window)}
		l.windows[key] = w
	}
	w.count++
	return decide(p, w.count, w.ends.Sub(now)), nil
}

// Sweep drops windows that have ended
func (l *LocalLimiter) Sweep() {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, w := range l.windows {
		if !now.Before(w.ends) {
			delete(l.windows, key)
		}
	}
}

// Run sweeps every interval until ctx is done
func (l *LocalLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

func decide(p Policy, count int, resetIn time.Duration) Decision {
	return Decision{
		Allowed:   count <= p.Limit,
		Limit:     p.Limit,
		Remaining: max(p.Limit-count, 0),
		ResetIn:   resetIn,
	}
}

// takeScript increments the window counter and starts its expiry on first
// use, returning the count and the milliseconds left
var takeScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {n, ttl}
`)

// RedisLimiter shares fixed-window counters across replicas. Each Take is
// one atomic script call.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

// NewRedisLimiter stores counters under prefix
func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "synergyhub:ratelimit"
	}
	return &RedisLimiter{client: client, prefix: prefix}
}

// Take counts one request for key under p
func (l *RedisLimiter) Take(ctx context.Context, key string, p Policy) (Decision, error) {
	redisKey := fmt.Sprintf("%s:%s:%d", l.prefix, key, p.Window.Milliseconds())
	reply, err := takeScript.Run(ctx, l.client, []string{redisKey}, p.Window.Milliseconds()).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit %s: %w", key, err)
	}
	vals, ok := reply.([]interface{})
	if !ok || len(vals) != 2 {
		return Decision{}, fmt.Errorf("rate limit %s: unexpected reply %v", key, reply)
	}
	count, ok1 := vals[0].(int64)
	ttl, ok2 := vals[1].(int64)
	if !ok1 || !ok2 {
		return Decision{}, fmt.Errorf("rate limit %s: unexpected reply %v", key, reply)
	}
	return decide(p, int(count), time.Duration(ttl)*time.Millisecond), nil
}
