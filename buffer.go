package uxum

import (
	"fmt"
	"net/http"
)

// buffer serializes bursts into a bounded concurrency envelope: at most
// cfg.Queue requests run the inner stack at once, the rest wait their turn.
// Waiters are released in FIFO order.
func buffer(cfg *BufferConfig) (Middleware, error) {
	if cfg.Queue <= 0 {
		return nil, fmt.Errorf("%w: queue must be positive, got %d", ErrInvalidBuffer, cfg.Queue)
	}

	slots := make(chan struct{}, cfg.Queue)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case slots <- struct{}{}:
			case <-r.Context().Done():
				// Client gone or request cancelled while queued.
				writeProblem(w, Error(http.StatusServiceUnavailable,
					"request cancelled while waiting for a slot"))
				return
			}
			defer func() { <-slots }()

			next.ServeHTTP(w, r)
		})
	}, nil
}
