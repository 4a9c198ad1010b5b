package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/connecthub/api/internal/metrics"
)

// Metrics records request counts and latency per route. The chi route
// pattern is used as the label so path parameters do not blow up the
// label cardinality.
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}

			metrics.HTTPRequestsTotal.WithLabelValues(
				r.Method,
				route,
				strconv.Itoa(wrapped.statusCode),
			).Inc()

			metrics.HTTPRequestDuration.WithLabelValues(
				r.Method,
				route,
			).Observe(time.Since(start).Seconds())
		})
	}
}
