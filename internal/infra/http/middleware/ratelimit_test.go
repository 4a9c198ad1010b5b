package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connecthub/api/internal/config"
	"github.com/connecthub/api/pkg/logger"
)

func TestRateLimiter(t *testing.T) {
	t.Run("allows bursts up to the limit then rejects", func(t *testing.T) {
		rl := NewRateLimiter(&config.RateLimitConfig{
			Enabled:         true,
			RequestsPerSec:  1,
			Burst:           2,
			CleanupInterval: time.Minute,
		}, logger.NewNop())
		defer rl.Stop()

		mw := rl.Middleware()
		send := func() *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "10.0.0.1:1234"
			rec := httptest.NewRecorder()
			mw(okHandler()).ServeHTTP(rec, req)
			return rec
		}

		assert.Equal(t, http.StatusOK, send().Code)
		assert.Equal(t, http.StatusOK, send().Code)

		rec := send()
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
		assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	})

	t.Run("tracks clients independently", func(t *testing.T) {
		rl := NewRateLimiter(&config.RateLimitConfig{
			Enabled:         true,
			RequestsPerSec:  1,
			Burst:           1,
			CleanupInterval: time.Minute,
		}, logger.NewNop())
		defer rl.Stop()

		mw := rl.Middleware()
		send := func(addr string) int {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = addr
			rec := httptest.NewRecorder()
			mw(okHandler()).ServeHTTP(rec, req)
			return rec.Code
		}

		assert.Equal(t, http.StatusOK, send("10.0.0.1:1234"))
		assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:5678"))
		assert.Equal(t, http.StatusOK, send("10.0.0.2:1234"))
	})

	t.Run("disabled config yields a pass-through", func(t *testing.T) {
		mw, stop := RateLimitWithStop(&config.RateLimitConfig{Enabled: false}, logger.NewNop())
		defer stop()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		for i := 0; i < 50; i++ {
			rec := httptest.NewRecorder()
			mw(okHandler()).ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code)
		}
	})
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "remote addr without headers",
			remoteAddr: "10.0.0.1:1234",
			want:       "10.0.0.1",
		},
		{
			name:       "x-real-ip wins",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Real-IP": "203.0.113.7", "X-Forwarded-For": "198.51.100.1"},
			want:       "203.0.113.7",
		},
		{
			name:       "first forwarded entry",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.2"},
			want:       "198.51.100.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}

func TestBodyLimit(t *testing.T) {
	readAll := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			http.Error(w, "body too large", http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	t.Run("small body passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("ok"))
		rec := httptest.NewRecorder()
		BodyLimit(16)(readAll).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("oversized body is cut off", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 64)))
		rec := httptest.NewRecorder()
		BodyLimit(16)(readAll).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("GET requests are exempt", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		BodyLimit(1)(okHandler()).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
