package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/connecthub/api/pkg/apierror"
)

// Timeout cancels the request context after the given duration. If the
// handler has not written anything by then, a 504 is returned.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			done := make(chan struct{})

			tw := &timeoutWriter{
				ResponseWriter: w,
			}

			go func() {
				next.ServeHTTP(tw, r.WithContext(ctx))
				close(done)
			}()

			select {
			case <-done:
				return
			case <-ctx.Done():
				tw.mu.Lock()
				defer tw.mu.Unlock()

				if !tw.written {
					tw.timedOut = true
					apierror.New(http.StatusGatewayTimeout, "TIMEOUT", "Request timeout").WriteJSON(w)
				}
			}
		})
	}
}

// timeoutWriter blocks writes once the request has timed out so the
// handler goroutine cannot race a second response onto the wire.
type timeoutWriter struct {
	http.ResponseWriter
	mu       sync.Mutex
	written  bool
	timedOut bool
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.timedOut {
		return 0, context.DeadlineExceeded
	}

	tw.written = true
	return tw.ResponseWriter.Write(b)
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.timedOut {
		return
	}

	tw.written = true
	tw.ResponseWriter.WriteHeader(code)
}
