package uxum_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unikmhz/uxum"
)

func TestPropagatingTransport(t *testing.T) {
	t.Parallel()

	var got http.Header
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(upstream.Close)

	client := uxum.NewClient()

	t.Run("forwards request id and remaining budget", func(t *testing.T) {
		ctx := uxum.WithRequestID(context.Background(), "req-123")
		ctx = uxum.WithDeadline(ctx, time.Now().Add(500*time.Millisecond))

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, upstream.URL, nil)
		require.NoError(t, err)

		resp, err := client.Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, "req-123", got.Get(uxum.RequestIDHeader))

		forwarded := got.Get(uxum.XTimeoutHeader)
		require.NotEmpty(t, forwarded)
		remaining, err := uxum.ParseDuration(forwarded)
		require.NoError(t, err)
		assert.Greater(t, remaining, 100*time.Millisecond)
		assert.LessOrEqual(t, remaining, 500*time.Millisecond)
	})

	t.Run("no ambient state means no headers", func(t *testing.T) {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, upstream.URL, nil)
		require.NoError(t, err)

		resp, err := client.Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Empty(t, got.Get(uxum.RequestIDHeader))
		assert.Empty(t, got.Get(uxum.XTimeoutHeader))
	})

	t.Run("explicit headers win over ambient state", func(t *testing.T) {
		ctx := uxum.WithRequestID(context.Background(), "ambient-id")
		ctx = uxum.WithDeadline(ctx, time.Now().Add(time.Minute))

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, upstream.URL, nil)
		require.NoError(t, err)
		req.Header.Set(uxum.RequestIDHeader, "explicit-id")
		req.Header.Set(uxum.XTimeoutHeader, "PT9S")

		resp, err := client.Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, "explicit-id", got.Get(uxum.RequestIDHeader))
		assert.Equal(t, "PT9S", got.Get(uxum.XTimeoutHeader))
	})
}

func TestPropagatingTransport_doesNotMutateRequest(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(upstream.Close)

	ctx := uxum.WithRequestID(context.Background(), "req-456")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, upstream.URL, nil)
	require.NoError(t, err)

	resp, err := uxum.NewClient().Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Empty(t, req.Header.Get(uxum.RequestIDHeader), "RoundTrip must clone, not mutate")
}
