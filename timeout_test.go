package uxum

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func durPtr(d time.Duration) *time.Duration { return &d }

func TestTimeoutConfig_resolve(t *testing.T) {
	t.Parallel()

	cfg := &TimeoutConfig{
		UseXTimeout: true,
		Default:     durPtr(2 * time.Second),
		Min:         durPtr(time.Second),
		Max:         durPtr(5 * time.Second),
	}

	tests := map[string]struct {
		header      string
		wantBounded bool
		want        time.Duration
	}{
		"no header uses default":      {header: "", wantBounded: true, want: 2 * time.Second},
		"header within range":         {header: "PT3S", wantBounded: true, want: 3 * time.Second},
		"below min is discarded":      {header: "PT0.1S", wantBounded: false},
		"above max is discarded":      {header: "PT10S", wantBounded: false},
		"garbage falls back":          {header: "soon", wantBounded: true, want: 2 * time.Second},
		"exactly min is kept":         {header: "PT1S", wantBounded: true, want: time.Second},
		"exactly max is kept":         {header: "PT5S", wantBounded: true, want: 5 * time.Second},
		"garbage below-min fallback":  {header: "PT", wantBounded: true, want: 2 * time.Second},
		"negative-like value rejects": {header: "-PT1S", wantBounded: true, want: 2 * time.Second},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				r.Header.Set(XTimeoutHeader, tc.header)
			}

			got, bounded := cfg.resolve(r, zap.NewNop())
			assert.Equal(t, tc.wantBounded, bounded)
			if tc.wantBounded {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestTimeoutConfig_resolve_headerIgnoredWhenDisabled(t *testing.T) {
	t.Parallel()

	cfg := &TimeoutConfig{Default: durPtr(time.Second)}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(XTimeoutHeader, "PT30S")

	got, bounded := cfg.resolve(r, zap.NewNop())
	require.True(t, bounded)
	assert.Equal(t, time.Second, got)
}

func TestTimeoutConfig_resolve_noDefaultIsUnbounded(t *testing.T) {
	t.Parallel()

	cfg := &TimeoutConfig{UseXTimeout: true}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, bounded := cfg.resolve(r, zap.NewNop())
	assert.False(t, bounded)
}

func TestTimeoutService_completion(t *testing.T) {
	t.Parallel()

	cfg := &TimeoutConfig{Default: durPtr(time.Second)}
	mw := timeoutService(cfg, zap.NewNop())

	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remaining, ok := RemainingTime(r.Context())
		require.True(t, ok)
		assert.Positive(t, remaining)
		assert.LessOrEqual(t, remaining, time.Second)

		w.Header().Set("X-Custom", "yes")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("done")) //nolint:errcheck,gosec
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "yes", rec.Header().Get("X-Custom"))
	assert.Equal(t, "done", rec.Body.String())
}

func TestTimeoutService_unbounded(t *testing.T) {
	t.Parallel()

	mw := timeoutService(&TimeoutConfig{}, zap.NewNop())
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := DeadlineFrom(r.Context())
		assert.False(t, ok)
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTimeoutService_gatewayTimeout(t *testing.T) {
	t.Parallel()

	var finished atomic.Bool

	cfg := &TimeoutConfig{Default: durPtr(100 * time.Millisecond)}
	mw := timeoutService(cfg, zap.NewNop())

	h := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(400 * time.Millisecond)
		// The inner chain keeps running after the caller got its 504; the
		// write lands in the dead buffer.
		w.Write([]byte("too late")) //nolint:errcheck,gosec
		finished.Store(true)
	}))

	rec := httptest.NewRecorder()
	start := time.Now()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	elapsed := time.Since(start)

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Less(t, elapsed, 350*time.Millisecond, "caller must be released by the timer, not the handler")
	assert.NotContains(t, rec.Body.String(), "too late")

	require.Eventually(t, finished.Load, 2*time.Second, 10*time.Millisecond,
		"inner chain must run to completion undisturbed")
}

func TestTimeoutService_xTimeoutBound(t *testing.T) {
	t.Parallel()

	cfg := &TimeoutConfig{
		UseXTimeout: true,
		Default:     durPtr(5 * time.Second),
		Min:         durPtr(50 * time.Millisecond),
	}
	mw := timeoutService(cfg, zap.NewNop())

	h := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(XTimeoutHeader, "PT0.1S")

	start := time.Now()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestTimeoutService_panicPropagates(t *testing.T) {
	t.Parallel()

	cfg := &TimeoutConfig{Default: durPtr(time.Second)}
	mw := timeoutService(cfg, zap.NewNop())

	h := mw(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	require.PanicsWithValue(t, "boom", func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestTimeoutWriter(t *testing.T) {
	t.Parallel()

	t.Run("flush copies the buffered response", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		tw := &timeoutWriter{inner: rec, header: make(http.Header)}

		tw.Header().Set("X-A", "1")
		tw.WriteHeader(http.StatusTeapot)
		tw.Write([]byte("tea")) //nolint:errcheck,gosec
		tw.flush()

		assert.Equal(t, http.StatusTeapot, rec.Code)
		assert.Equal(t, "1", rec.Header().Get("X-A"))
		assert.Equal(t, "tea", rec.Body.String())
	})

	t.Run("abandoned writes are discarded", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		tw := &timeoutWriter{inner: rec, header: make(http.Header)}

		require.True(t, tw.abandon())
		require.False(t, tw.abandon())

		n, err := tw.Write([]byte("lost"))
		require.NoError(t, err)
		assert.Equal(t, 4, n)
		assert.Empty(t, tw.body)
	})

	t.Run("first status wins", func(t *testing.T) {
		t.Parallel()

		tw := &timeoutWriter{inner: httptest.NewRecorder(), header: make(http.Header)}
		tw.WriteHeader(http.StatusAccepted)
		tw.WriteHeader(http.StatusConflict)
		assert.Equal(t, http.StatusAccepted, tw.status)
	})
}
