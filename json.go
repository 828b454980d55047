package uxum

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// HandlerFunc is a typed handler signature for JSON endpoints: the
// framework owns serialization, the function never sees
// http.ResponseWriter or *http.Request.
type HandlerFunc[Req, Resp any] func(ctx context.Context, req *Req) (*Resp, error)

// JSON adapts a typed handler function into the http.Handler the registry
// expects. The request body (if any) is decoded as JSON into Req; the
// response is encoded as JSON, or 204 for a nil response. Errors become
// problem responses via their StatusCoder, defaulting to 500.
func JSON[Req, Resp any](fn HandlerFunc[Req, Resp]) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Req
		if r.Body != nil {
			err := json.NewDecoder(r.Body).Decode(&req)
			if err != nil && !errors.Is(err, io.EOF) {
				writeProblem(w, Error(http.StatusBadRequest, "invalid JSON body: "+err.Error()))
				return
			}
		}

		resp, err := fn(r.Context(), &req)
		if err != nil {
			writeProblem(w, err)
			return
		}

		if resp == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		status := http.StatusOK
		if sc, ok := any(resp).(StatusCoder); ok {
			status = sc.StatusCode()
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		//nolint:errcheck,errchkjson,gosec // best-effort after WriteHeader
		json.NewEncoder(w).Encode(resp)
	})
}
