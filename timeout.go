package uxum

import (
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// XTimeoutHeader carries a client-requested timeout as an ISO-8601
// duration. It is honored only when the handler's timeout config says so.
const XTimeoutHeader = "X-Timeout"

// timeoutService computes the effective deadline for each request and
// races the inner chain against it. When the timer fires first the caller
// gets a 504 and the inner chain's eventual output is discarded; the inner
// work itself is never aborted, since tearing down arbitrary in-flight
// work (mid-write, holding locks) is unsafe in general.
func timeoutService(cfg *TimeoutConfig, logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, bounded := cfg.resolve(r, logger)
			if !bounded {
				next.ServeHTTP(w, r)
				return
			}

			deadline := time.Now().Add(d)
			ctx := WithDeadline(r.Context(), deadline)
			r = r.WithContext(ctx)

			tw := &timeoutWriter{inner: w, header: make(http.Header)}
			done := make(chan struct{})
			panicChan := make(chan any, 1)

			go func() {
				defer func() {
					if p := recover(); p != nil {
						panicChan <- p
					}
				}()
				next.ServeHTTP(tw, r)
				close(done)
			}()

			timer := time.NewTimer(d)
			defer timer.Stop()

			select {
			case p := <-panicChan:
				panic(p)
			case <-done:
				tw.flush()
			case <-timer.C:
				if tw.abandon() {
					logger.Warn("request timed out",
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.String("request_id", RequestIDFrom(ctx)),
						zap.Duration("timeout", d),
					)
					writeProblem(w, Error(http.StatusGatewayTimeout, "request timed out"))
				}
			}
		})
	}
}

// resolve computes the request's time budget. Client-supplied values that
// fail to parse fall back to the configured default; values outside the
// configured [min, max] range are discarded entirely, leaving the request
// unbounded. Out-of-range values are never clamped.
func (cfg *TimeoutConfig) resolve(r *http.Request, logger *zap.Logger) (time.Duration, bool) {
	var d *time.Duration

	if cfg.UseXTimeout {
		if h := r.Header.Get(XTimeoutHeader); h != "" {
			parsed, err := ParseDuration(h)
			if err != nil {
				logger.Warn("unparseable X-Timeout header, using default",
					zap.String("value", h),
					zap.Error(err),
				)
			} else {
				d = &parsed
			}
		}
	}

	if d == nil {
		d = cfg.Default
	}
	if d == nil {
		return 0, false
	}
	if cfg.Min != nil && *d < *cfg.Min {
		return 0, false
	}
	if cfg.Max != nil && *d > *cfg.Max {
		return 0, false
	}
	return *d, true
}

// timeoutWriter buffers the inner chain's response so nothing touches the
// real ResponseWriter until the race is decided. After abandon, writes
// from the still-running inner chain land in a dead buffer.
type timeoutWriter struct {
	inner http.ResponseWriter

	mu        sync.Mutex
	header    http.Header
	body      []byte
	status    int
	abandoned bool
}

func (tw *timeoutWriter) Header() http.Header {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.header
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.status == 0 {
		tw.status = code
	}
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.abandoned {
		// Pretend the write succeeded so the inner chain runs to
		// completion undisturbed.
		return len(b), nil
	}
	if tw.status == 0 {
		tw.status = http.StatusOK
	}
	tw.body = append(tw.body, b...)
	return len(b), nil
}

// flush copies the buffered response to the real writer. Called only when
// the inner chain finished before the timer.
func (tw *timeoutWriter) flush() {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	dst := tw.inner.Header()
	for k, vv := range tw.header {
		dst[k] = vv
	}
	status := tw.status
	if status == 0 {
		status = http.StatusOK
	}
	tw.inner.WriteHeader(status)
	//nolint:errcheck,gosec // best-effort after WriteHeader
	tw.inner.Write(tw.body)
}

// abandon marks the buffer dead so later writes are discarded. Returns
// false on a second call.
func (tw *timeoutWriter) abandon() bool {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.abandoned {
		return false
	}
	tw.abandoned = true
	return true
}
