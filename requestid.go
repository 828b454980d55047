package uxum

import (
	"net/http"

	"github.com/google/uuid"
)

func init() {
	// Batch crypto/rand reads into a pool to avoid a syscall per UUID.
	uuid.EnableRandPool()
}

// RequestIDHeader is the header carrying the per-request correlation id,
// both inbound (trusted if present) and on responses.
const RequestIDHeader = "X-Request-Id"

// requestID establishes the request id as early as possible: taken from the
// inbound header when present, generated otherwise. The id is echoed on the
// response and stored in the ambient context for the rest of the request's
// task tree.
func requestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = uuid.New().String()
			}

			w.Header().Set(RequestIDHeader, id)
			ctx := WithRequestID(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
