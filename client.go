package uxum

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// propagatingTransport forwards the ambient request state on outbound
// calls: the request id verbatim, the remaining time budget as an
// ISO-8601 X-Timeout value, and the current trace context. The values are
// read from the outbound request's context, so handlers only need to pass
// their ctx into http.NewRequestWithContext.
type propagatingTransport struct {
	base http.RoundTripper
}

// NewTransport wraps an http.RoundTripper with deadline, request-id and
// trace-context propagation. A nil base uses http.DefaultTransport.
func NewTransport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &propagatingTransport{base: base}
}

// NewClient returns an http.Client that propagates the calling request's
// deadline, request id and trace context to downstream services.
func NewClient() *http.Client {
	return &http.Client{Transport: NewTransport(nil)}
}

func (t *propagatingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	// Clone before mutating headers; RoundTrippers must not modify the
	// caller's request.
	req = req.Clone(ctx)

	if id := RequestIDFrom(ctx); id != "" && req.Header.Get(RequestIDHeader) == "" {
		req.Header.Set(RequestIDHeader, id)
	}

	if remaining, ok := RemainingTime(ctx); ok && req.Header.Get(XTimeoutHeader) == "" {
		req.Header.Set(XTimeoutHeader, FormatDuration(remaining))
	}

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	return t.base.RoundTrip(req)
}
