// Package ratelimit implements the per-(entity,user) and per-(entity,command)
// rate limits described in spec.md §4.2 step 5: a fixed-window counter in
// Redis, shared across every router process, falling back to an in-memory
// limiter (golang.org/x/time/rate) when Redis is unreachable so the router
// degrades to "enforce locally" rather than "stop enforcing" (spec.md §8
// degraded-mode requirement).
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limit describes a fixed-window budget: at most Count events per Window.
type Limit struct {
	Count  int64
	Window time.Duration
}

// Limiter enforces Limit budgets keyed by an arbitrary namespaced subject
// (e.g. "router:user:<entity_id>:<user_id>" or "router:command:<entity_id>:<command>").
type Limiter struct {
	redis *redis.Client
	log   *slog.Logger

	mu       sync.Mutex
	fallback map[string]*rate.Limiter
}

// New builds a Limiter backed by client. client may be nil, in which case
// every call uses the in-memory fallback exclusively — useful for tests and
// for standalone deployments without Redis.
func New(client *redis.Client, log *slog.Logger) *Limiter {
	if log == nil {
		log = slog.Default()
	}
	return &Limiter{
		redis:    client,
		log:      log,
		fallback: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether one event against key is permitted under lim. On
// Redis error it logs a warning and falls back to an in-memory token bucket
// approximating the same budget, rather than failing open or closed outright.
func (l *Limiter) Allow(ctx context.Context, key string, lim Limit) (bool, error) {
	if l.redis == nil {
		return l.allowFallback(key, lim), nil
	}

	allowed, err := l.allowRedis(ctx, key, lim)
	if err != nil {
		l.log.WarnContext(ctx, "ratelimit: redis unavailable, using in-memory fallback", "key", key, "error", err)
		return l.allowFallback(key, lim), nil
	}
	return allowed, nil
}

// allowRedis implements a fixed-window counter: INCR the window-bucketed key,
// setting its expiry to the window length only on the first increment of
// that window, so windows align to wall-clock boundaries of size Window
// rather than to each caller's first-request time.
func (l *Limiter) allowRedis(ctx context.Context, key string, lim Limit) (bool, error) {
	bucket := time.Now().UnixNano() / lim.Window.Nanoseconds()
	windowKey := fmt.Sprintf("ratelimit:%s:%d", key, bucket)

	count, err := l.redis.Incr(ctx, windowKey).Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit: incr: %w", err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, windowKey, lim.Window).Err(); err != nil {
			return false, fmt.Errorf("ratelimit: expire: %w", err)
		}
	}

	return count <= lim.Count, nil
}

func (l *Limiter) allowFallback(key string, lim Limit) bool {
	l.mu.Lock()
	limiter, ok := l.fallback[key]
	if !ok {
		// Approximate the fixed window as a token bucket refilling at the
		// same average rate, burst sized to the window's full budget.
		ratePerSec := float64(lim.Count) / lim.Window.Seconds()
		limiter = rate.NewLimiter(rate.Limit(ratePerSec), int(lim.Count))
		l.fallback[key] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow()
}
