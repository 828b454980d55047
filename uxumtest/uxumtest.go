// Package uxumtest provides typed test helpers for the uxum framework.
package uxumtest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/unikmhz/uxum"
)

// Client wraps an httptest.Server for convenient router testing.
type Client struct {
	Server *httptest.Server
}

// NewClient creates a test client from an assembled router.
func NewClient(t testing.TB, r *uxum.Router) *Client {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &Client{Server: srv}
}

// Response holds a decoded response.
type Response[T any] struct {
	Status  int
	Headers http.Header
	Body    *T
	Raw     *http.Response
}

// Option customizes an outgoing test request.
type Option func(*http.Request)

// WithHeader sets a request header.
func WithHeader(key, value string) Option {
	return func(r *http.Request) {
		r.Header.Set(key, value)
	}
}

// WithBasicAuth sets Basic credentials on the request.
func WithBasicAuth(user, pass string) Option {
	return func(r *http.Request) {
		r.SetBasicAuth(user, pass)
	}
}

// Get sends a typed GET request.
func Get[Resp any](t testing.TB, c *Client, path string, opts ...Option) *Response[Resp] {
	t.Helper()
	return do[Resp](t, c, http.MethodGet, path, nil, opts...)
}

// Post sends a typed POST request with a JSON body.
func Post[Req, Resp any](t testing.TB, c *Client, path string, body *Req, opts ...Option) *Response[Resp] {
	t.Helper()
	return do[Resp](t, c, http.MethodPost, path, body, opts...)
}

func do[Resp any](t testing.TB, c *Client, method, path string, body any, opts ...Option) *Response[Resp] {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("uxumtest: marshal request body: %v", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, c.Server.URL+path, reqBody)
	if err != nil {
		t.Fatalf("uxumtest: build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("uxumtest: do request: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck // test helper

	out := &Response[Resp]{
		Status:  resp.StatusCode,
		Headers: resp.Header,
		Raw:     resp,
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("uxumtest: read response body: %v", err)
	}
	if len(raw) > 0 {
		var decoded Resp
		if err := json.Unmarshal(raw, &decoded); err == nil {
			out.Body = &decoded
		}
	}
	return out
}
