package uxum

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors raised during router assembly. Assembly errors are fatal:
// NewRouter returns them instead of serving a partial router.
var (
	ErrDuplicateHandlerName = errors.New("duplicate handler name")
	ErrDuplicateRoute       = errors.New("conflicting route pattern")
	ErrInvalidRateLimit     = errors.New("invalid rate limit config")
	ErrInvalidBuffer        = errors.New("invalid buffer config")
	ErrInvalidCORS          = errors.New("invalid CORS config")
	ErrInvalidTimeout       = errors.New("invalid timeout config")
	ErrUnknownRole          = errors.New("unknown role")
)

// StatusCoder is implemented by errors or responses that carry an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

// ProblemDetail is an RFC 9457 problem details response.
//
//nolint:errname // RFC 9457 standard name
type ProblemDetail struct {
	Type     string `json:"type,omitempty"`
	Title    string `json:"title,omitempty"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// Error returns the detail message (or title if detail is empty).
func (p *ProblemDetail) Error() string {
	if p.Detail != "" {
		return p.Detail
	}
	return p.Title
}

// StatusCode returns the HTTP status code.
func (p *ProblemDetail) StatusCode() int { return p.Status }

// HTTPError is an error with an HTTP status code.
type HTTPError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Error returns the error message.
func (e *HTTPError) Error() string { return e.Message }

// StatusCode returns the HTTP status code.
func (e *HTTPError) StatusCode() int { return e.Status }

// Error returns an error with the given HTTP status code and message.
func Error(status int, message string) error {
	return &HTTPError{Status: status, Message: message}
}

// Errorf returns a formatted error with the given HTTP status code.
func Errorf(status int, format string, args ...any) error {
	return &HTTPError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// ErrorStatus extracts the HTTP status code from an error. Returns
// http.StatusInternalServerError if the error does not implement StatusCoder.
func ErrorStatus(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}

// writeProblem writes an error as an RFC 9457 problem details response.
func writeProblem(w http.ResponseWriter, err error) {
	status := ErrorStatus(err)

	var pd *ProblemDetail
	if !errors.As(err, &pd) {
		pd = &ProblemDetail{
			Type:   "about:blank",
			Title:  http.StatusText(status),
			Status: status,
			Detail: err.Error(),
		}
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(pd.Status)
	//nolint:errcheck,errchkjson,gosec // best-effort after WriteHeader
	json.NewEncoder(w).Encode(pd)
}
