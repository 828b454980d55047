package uxum

import (
	"context"
	"net/http"
	"time"
)

type contextKey[T any] struct{}

// SetValue stores a typed value in the request context. For use in middleware.
func SetValue[T any](r *http.Request, val T) *http.Request {
	ctx := context.WithValue(r.Context(), contextKey[T]{}, val)
	return r.WithContext(ctx)
}

// GetValue retrieves a typed value from the request context. For use in handlers.
func GetValue[T any](ctx context.Context) (T, bool) {
	val, ok := ctx.Value(contextKey[T]{}).(T)
	return val, ok
}

type requestIDKey struct{}

type deadlineKey struct{}

// WithRequestID returns a context carrying the given request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the request id established for the current request,
// or "" when called outside a request.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WithDeadline returns a context carrying the given absolute deadline as the
// request's effective deadline. It does not arm a timer; enforcement is the
// timeout service's job.
func WithDeadline(ctx context.Context, deadline time.Time) context.Context {
	return context.WithValue(ctx, deadlineKey{}, deadline)
}

// DeadlineFrom returns the effective deadline of the current request.
// ok is false when the request is unbounded or no deadline was established.
func DeadlineFrom(ctx context.Context) (deadline time.Time, ok bool) {
	deadline, ok = ctx.Value(deadlineKey{}).(time.Time)
	return deadline, ok
}

// RemainingTime reports how much of the request's time budget is left.
// ok is false for unbounded requests.
func RemainingTime(ctx context.Context) (d time.Duration, ok bool) {
	deadline, ok := DeadlineFrom(ctx)
	if !ok {
		return 0, false
	}
	return time.Until(deadline), true
}
