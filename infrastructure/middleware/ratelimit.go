// Package middleware provides HTTP middleware for the control plane.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/solarfleet/control-plane/internal/httputil"
	"github.com/solarfleet/control-plane/internal/reqctx"
	"github.com/solarfleet/control-plane/pkg/logger"
)

// KeyedLimiter enforces a per-key token bucket (one bucket per
// authenticated principal or, failing that, caller IP) so one noisy
// device or dashboard user can't starve the rest of a tenant's quota.
type KeyedLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	perSec   rate.Limit
	burst    int
	limit    int
	window   time.Duration
	log      *logger.Logger
}

// NewRateLimiter builds a KeyedLimiter from a flat requests-per-second
// budget.
func NewRateLimiter(requestsPerSecond, burst int, log *logger.Logger) *KeyedLimiter {
	return &KeyedLimiter{
		limiters: make(map[string]*rate.Limiter),
		perSec:   rate.Limit(requestsPerSecond),
		burst:    burst,
		limit:    requestsPerSecond,
		window:   time.Second,
		log:      log,
	}
}

// NewRateLimiterWithWindow builds a KeyedLimiter from a fixed request
// budget over a window (e.g. 100 requests per minute), converting it
// to the equivalent steady-state rate.
func NewRateLimiterWithWindow(limit int, window time.Duration, burst int, log *logger.Logger) *KeyedLimiter {
	if window <= 0 {
		window = time.Second
	}
	perSec := float64(limit) / window.Seconds()
	if perSec < 0 {
		perSec = 0
	}

	return &KeyedLimiter{
		limiters: make(map[string]*rate.Limiter),
		perSec:   rate.Limit(perSec),
		burst:    burst,
		limit:    limit,
		window:   window,
		log:      log,
	}
}

// LimiterCount reports how many per-key buckets are currently tracked.
func (rl *KeyedLimiter) LimiterCount() int {
	if rl == nil {
		return 0
	}
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.limiters)
}

func (rl *KeyedLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, ok := rl.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rl.perSec, rl.burst)
		rl.limiters[key] = limiter
	}
	return limiter
}

// bucketKey picks the authenticated principal's rate-limit key when
// one was established upstream, falling back to the caller's IP.
func bucketKey(r *http.Request) string {
	if key := reqctx.RateLimitKey(r.Context()); key != "" {
		return key
	}
	if ip := httputil.ClientIP(r); ip != "" {
		return ip
	}
	return "unknown"
}

// Handler rejects requests over the key's budget with 429 and a
// Retry-After header; everything else passes through untouched.
func (rl *KeyedLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := bucketKey(r)
		limiter := rl.getLimiter(key)

		if !limiter.Allow() {
			if rl.log != nil {
				rl.log.WithFields(map[string]interface{}{
					"key":    key,
					"path":   r.URL.Path,
					"method": r.Method,
				}).Warn("rate limit exceeded")
			}

			window := rl.window
			if window <= 0 {
				window = time.Second
			}
			fault := errRateLimitExceeded(rl.limit, window.String())
			if seconds := int(math.Ceil(window.Seconds())); seconds > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
			}
			httputil.WriteErrorResponse(w, r, fault.HTTPStatus, string(fault.Code), fault.Message, fault.Details)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Cleanup discards every tracked bucket once the map grows past a
// size where leaked per-key state would otherwise accumulate forever.
func (rl *KeyedLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.limiters) > 10000 {
		rl.limiters = make(map[string]*rate.Limiter)
	}
}

// StartCleanup runs Cleanup on a ticker until the returned stop func
// is called.
func (rl *KeyedLimiter) StartCleanup(interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	var once sync.Once

	go func() {
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-done:
				return
			}
		}
	}()

	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}
