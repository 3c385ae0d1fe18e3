package handlers

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/fieldline/customer-api/internal/platform/auth"
	"github.com/fieldline/customer-api/internal/platform/httpx"
)

type rateLimiter interface {
	Allow(key string) bool
}

// tokenBucketLimiter keeps one token bucket per key and forgets buckets idle for longer than idle.
type tokenBucketLimiter struct {
	limit rate.Limit
	burst int
	idle  time.Duration
	clock func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastPrune time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newRateLimiter allows perMinute requests per key with the given burst. A non-positive
// perMinute disables limiting.
func newRateLimiter(perMinute, burst int, clock func() time.Time) rateLimiter {
	if perMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = perMinute
	}
	if clock == nil {
		clock = time.Now
	}
	return &tokenBucketLimiter{
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   burst,
		idle:    10 * time.Minute,
		clock:   clock,
		buckets: make(map[string]*bucket),
	}
}

func (l *tokenBucketLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "anonymous"
	}
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	allowed := b.limiter.AllowN(now, 1)
	l.pruneIdleLocked(now)
	return allowed
}

func (l *tokenBucketLimiter) pruneIdleLocked(now time.Time) {
	if now.Sub(l.lastPrune) < l.idle {
		return
	}
	l.lastPrune = now
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.idle {
			delete(l.buckets, key)
		}
	}
}

// RateLimit rejects requests from a caller that exceeds perMinute requests. It runs ahead of
// account resolution, so callers are keyed by identity, then remote address.
func RateLimit(perMinute, burst int, clock func() time.Time) func(http.Handler) http.Handler {
	limiter := newRateLimiter(perMinute, burst, clock)
	retryAfter := "1"
	if perMinute > 0 {
		retryAfter = strconv.Itoa(int(math.Ceil(60 / float64(perMinute))))
	}
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(rateLimitKey(r)) {
				w.Header().Set("Retry-After", retryAfter)
				httpx.WriteError(r.Context(), w, httpx.NewError("rate_limited", "too many requests", http.StatusTooManyRequests))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rateLimitKey(r *http.Request) string {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok && identity.UID != "" {
		return "uid:" + identity.UID
	}
	return "ip:" + r.RemoteAddr
}
