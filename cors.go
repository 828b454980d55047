package uxum

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// cors builds a per-handler CORS layer. Configured values become response
// header values verbatim, so they are validated at assembly time; a bad
// value aborts startup rather than emitting a malformed header.
func cors(cfg *CORSConfig) (Middleware, error) {
	c := *cfg
	if len(c.AllowOrigins) == 0 {
		c.AllowOrigins = []string{"*"}
	}
	if len(c.AllowMethods) == 0 {
		c.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	}
	if len(c.AllowHeaders) == 0 {
		c.AllowHeaders = []string{"Content-Type", "Authorization"}
	}

	for _, vals := range [][]string{c.AllowOrigins, c.AllowMethods, c.AllowHeaders, c.ExposeHeaders} {
		for _, v := range vals {
			if !validHeaderValue(v) {
				return nil, fmt.Errorf("%w: invalid header value %q", ErrInvalidCORS, v)
			}
		}
	}

	origins := strings.Join(c.AllowOrigins, ", ")
	methods := strings.Join(c.AllowMethods, ", ")
	headers := strings.Join(c.AllowHeaders, ", ")
	expose := strings.Join(c.ExposeHeaders, ", ")
	maxAge := ""
	if c.MaxAge > 0 {
		maxAge = strconv.Itoa(c.MaxAge)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origins)
			w.Header().Set("Access-Control-Allow-Methods", methods)
			w.Header().Set("Access-Control-Allow-Headers", headers)

			if expose != "" {
				w.Header().Set("Access-Control-Expose-Headers", expose)
			}
			if c.AllowCredentials {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			if maxAge != "" {
				w.Header().Set("Access-Control-Max-Age", maxAge)
			}

			w.Header().Set("Vary", "Origin")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}

// validHeaderValue rejects values that would corrupt a joined header:
// empty strings, control characters, commas, and embedded whitespace.
func validHeaderValue(v string) bool {
	if v == "" {
		return false
	}
	for i := 0; i < len(v); i++ {
		c := v[i]
		if c < 0x21 || c == 0x7f || c == ',' {
			return false
		}
	}
	return true
}
