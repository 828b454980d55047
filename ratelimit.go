package uxum

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// rateLimit builds a token-bucket rate limiting layer for one handler.
// The bucket is keyed by the configured strategy: one global bucket, one
// bucket per transport-level peer, or one per client IP recovered from
// forwarding headers.
func rateLimit(cfg *RateLimitConfig) (Middleware, error) {
	if cfg.RPS <= 0 {
		return nil, fmt.Errorf("%w: rps must be positive, got %v", ErrInvalidRateLimit, cfg.RPS)
	}

	var keyFunc func(r *http.Request) string
	switch cfg.Key {
	case RateLimitKeyGlobal, "":
		keyFunc = nil
	case RateLimitKeyPeerIP:
		keyFunc = peerIP
	case RateLimitKeySmartIP:
		keyFunc = smartIP
	default:
		return nil, fmt.Errorf("%w: unknown key strategy %q", ErrInvalidRateLimit, cfg.Key)
	}

	burst := cfg.BurstSize()
	retryAfter := strconv.FormatFloat(1/cfg.RPS, 'f', 0, 64)
	if retryAfter == "0" {
		retryAfter = "1"
	}

	var (
		mu          sync.Mutex
		limiters    = make(map[string]*limiterEntry)
		global      = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
		lastCleanup time.Time
	)
	const (
		cleanupInterval = time.Minute
		maxIdle         = 5 * time.Minute
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := global
			if keyFunc != nil {
				key := keyFunc(r)

				mu.Lock()
				now := time.Now()

				// Lazy cleanup of idle per-key buckets.
				if now.Sub(lastCleanup) >= cleanupInterval {
					for k, e := range limiters {
						if now.Sub(e.lastSeen) > maxIdle {
							delete(limiters, k)
						}
					}
					lastCleanup = now
				}

				entry, ok := limiters[key]
				if !ok {
					entry = &limiterEntry{
						limiter: rate.NewLimiter(rate.Limit(cfg.RPS), burst),
					}
					limiters[key] = entry
				}
				entry.lastSeen = now
				mu.Unlock()

				limiter = entry.limiter
			}

			if cfg.ExtraHeaders {
				w.Header().Set("X-RateLimit-Limit", strconv.FormatFloat(cfg.RPS, 'f', -1, 64))
				w.Header().Set("X-RateLimit-Burst", strconv.Itoa(burst))
			}

			if !limiter.Allow() {
				w.Header().Set("Retry-After", retryAfter)
				writeProblem(w, Error(http.StatusTooManyRequests,
					http.StatusText(http.StatusTooManyRequests)))
				return
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// peerIP keys by the transport-level peer address.
func peerIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// smartIP recovers the client IP from proxy headers, consulting Forwarded,
// X-Forwarded-For and X-Real-Ip in that priority order before falling back
// to the peer address.
func smartIP(r *http.Request) string {
	if fwd := r.Header.Get("Forwarded"); fwd != "" {
		if ip := parseForwardedFor(fwd); ip != "" {
			return ip
		}
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if real := strings.TrimSpace(r.Header.Get("X-Real-Ip")); real != "" {
		return real
	}
	return peerIP(r)
}

// parseForwardedFor extracts the first for= element of an RFC 7239
// Forwarded header, stripping quotes, brackets and any port.
func parseForwardedFor(header string) string {
	first, _, _ := strings.Cut(header, ",")
	for _, part := range strings.Split(first, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || !strings.EqualFold(k, "for") {
			continue
		}
		v = strings.Trim(v, `"`)
		if host, _, err := net.SplitHostPort(v); err == nil {
			v = host
		}
		return strings.Trim(v, "[]")
	}
	return ""
}
