package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// RequestTimeout bounds handler execution. The handler runs on its own
// goroutine; if the deadline passes first the client gets a 503 and any
// late writes from the handler are swallowed.
func RequestTimeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			dw := &deadlineWriter{inner: w}

			finished := make(chan struct{})
			go func() {
				defer close(finished)
				next.ServeHTTP(dw, r.WithContext(ctx))
			}()

			select {
			case <-finished:
			case <-ctx.Done():
				dw.expire()
			}
		})
	}
}

// deadlineWriter serializes the race between the handler goroutine and the
// timeout path: whichever writes first wins, the loser is discarded.
type deadlineWriter struct {
	inner http.ResponseWriter

	mu      sync.Mutex
	expired bool
	started bool
}

func (dw *deadlineWriter) Header() http.Header {
	return dw.inner.Header()
}

func (dw *deadlineWriter) WriteHeader(code int) {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if dw.expired || dw.started {
		return
	}
	dw.started = true
	dw.inner.WriteHeader(code)
}

func (dw *deadlineWriter) Write(b []byte) (int, error) {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if dw.expired {
		return 0, http.ErrHandlerTimeout
	}
	dw.started = true
	return dw.inner.Write(b)
}

// expire marks the response as timed out and emits the 503 unless the
// handler already produced output.
func (dw *deadlineWriter) expire() {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	dw.expired = true
	if dw.started {
		return
	}
	dw.started = true
	dw.inner.Header().Set("Content-Type", "application/json")
	dw.inner.WriteHeader(http.StatusServiceUnavailable)
	_, _ = dw.inner.Write([]byte(`{"error":"request timed out"}`))
}
