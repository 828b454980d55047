package uxum

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// circuitBreaker builds a per-handler breaker around the inner stack.
// A 5xx from the inner stack counts as a failure; once the failure ratio
// trips the breaker, requests are rejected with 503 until the cooldown
// elapses and half-open probes succeed again.
func circuitBreaker(name string, cfg *CircuitBreakerConfig, logger *zap.Logger) Middleware {
	maxRequests := cfg.MaxRequests
	if maxRequests == 0 {
		maxRequests = 1
	}
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	minRequests := cfg.MinRequests
	if minRequests == 0 {
		minRequests = 5
	}
	failureRatio := cfg.FailureRatio
	if failureRatio <= 0 {
		failureRatio = 0.5
	}

	cb := gobreaker.NewCircuitBreaker[int](gobreaker.Settings{
		Name:        name,
		MaxRequests: maxRequests,
		Interval:    cfg.Interval,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= minRequests && ratio >= failureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("handler", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			status, err := cb.Execute(func() (int, error) {
				rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
				next.ServeHTTP(rec, r)
				if rec.status >= http.StatusInternalServerError {
					return rec.status, fmt.Errorf("handler %s returned %d", name, rec.status)
				}
				return rec.status, nil
			})
			if err == nil || status != 0 {
				// Inner stack ran; its response is already written.
				return
			}
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				w.Header().Set("Retry-After", formatSeconds(cooldown))
				writeProblem(w, Error(http.StatusServiceUnavailable,
					http.StatusText(http.StatusServiceUnavailable)))
			}
		})
	}
}

func formatSeconds(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 1 {
		secs = 1
	}
	return fmt.Sprintf("%d", secs)
}

// statusRecorder captures the status code written by an inner handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap returns the underlying ResponseWriter (supports http.ResponseController).
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
