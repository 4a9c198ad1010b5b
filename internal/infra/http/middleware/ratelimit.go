package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/connecthub/api/internal/config"
	"github.com/connecthub/api/pkg/apierror"
	"github.com/connecthub/api/pkg/logger"
)

// RateLimiter implements a per-IP token bucket rate limiter.
type RateLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	cleanup  time.Duration
	log      *logger.Logger
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a rate limiter and starts its cleanup loop.
func NewRateLimiter(cfg *config.RateLimitConfig, log *logger.Logger) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate.Limit(cfg.RequestsPerSec),
		burst:    cfg.Burst,
		cleanup:  cfg.CleanupInterval,
		log:      log,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}

	go rl.cleanupVisitors()

	return rl
}

// Stop stops the cleanup goroutine and waits for it to exit. Safe to
// call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.done)
	})
	<-rl.stopped
}

func (rl *RateLimiter) getVisitor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	if !exists {
		limiter := rate.NewLimiter(rl.rate, rl.burst)
		rl.visitors[ip] = &visitor{limiter: limiter, lastSeen: time.Now()}
		return limiter
	}

	v.lastSeen = time.Now()
	return v.limiter
}

func (rl *RateLimiter) cleanupVisitors() {
	ticker := time.NewTicker(rl.cleanup)
	defer ticker.Stop()
	defer close(rl.stopped)

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.mu.Lock()
			for ip, v := range rl.visitors {
				if time.Since(v.lastSeen) > 3*time.Minute {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Middleware returns the rate limiting middleware.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := getClientIP(r)
			limiter := rl.getVisitor(ip)

			tokens := limiter.Tokens()
			remaining := int(math.Max(0, math.Floor(tokens)-1))

			tokensToRefill := float64(rl.burst) - tokens
			resetTime := time.Now()
			if tokensToRefill > 0 && rl.rate > 0 {
				secondsToRefill := tokensToRefill / float64(rl.rate)
				resetTime = resetTime.Add(time.Duration(secondsToRefill * float64(time.Second)))
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.burst))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

			if !limiter.Allow() {
				rl.log.Warn("rate limit exceeded",
					"ip", ip,
					"path", r.URL.Path,
					"request_id", GetRequestID(r.Context()),
				)

				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Retry-After", "1")
				apierror.TooManyRequests("").WriteJSON(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitWithStop creates the rate limiting middleware and returns a
// stop function for graceful shutdown. When rate limiting is disabled
// the middleware is a pass-through and the stop function a no-op.
func RateLimitWithStop(cfg *config.RateLimitConfig, log *logger.Logger) (func(http.Handler) http.Handler, func()) {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}, func() {}
	}

	rl := NewRateLimiter(cfg, log)
	return rl.Middleware(), rl.Stop
}

// getClientIP extracts the client IP, preferring proxy headers over
// RemoteAddr. Only trust these headers behind a trusted proxy.
func getClientIP(r *http.Request) string {
	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		return strings.TrimSpace(xrip)
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		return ip[:idx]
	}
	return ip
}
