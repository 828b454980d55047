package uxum

import (
	"context"
	"errors"
	"net/http"
	"slices"
)

// The auth layer is generic over two independently pluggable capabilities:
// an Extractor pulls credentials out of a request, a Provider decides
// whether to trust them. Transport parsing and trust decisions stay
// swappable and testable in isolation.

// Identity names an authenticated caller. The provider enriches it with
// resolved roles before it is injected into the request context.
type Identity struct {
	Username  string
	Roles     []string
	SuperUser bool
}

// Credentials is the secret material extracted alongside an identity.
type Credentials struct {
	Secret []byte
}

// Extractor parses caller-supplied credentials out of a raw request and
// knows how to format the layer's failures as HTTP responses.
type Extractor interface {
	// Extract returns the claimed identity and credentials, or one of the
	// auth errors below.
	Extract(r *http.Request) (Identity, Credentials, error)
	// WriteError formats an auth failure as an HTTP response.
	WriteError(w http.ResponseWriter, err error)
}

// Provider validates credentials and checks permissions against a trust
// store. Implementations must be safe for concurrent use.
type Provider interface {
	// Authenticate verifies the credentials and returns the identity
	// enriched with resolved roles.
	Authenticate(ident Identity, creds Credentials) (Identity, error)
	// Authorize checks a single permission for an authenticated identity.
	Authorize(ident Identity, permission string) error
}

// Auth failure sentinels. ErrNoAuthProvided and ErrAuthenticationFailed
// deliberately render as identical responses: a caller probing for valid
// usernames learns nothing from the reply.
var (
	ErrNoAuthProvided       = errors.New("no authentication provided")
	ErrUnknownAuthScheme    = errors.New("unknown authentication scheme")
	ErrInvalidAuthPayload   = errors.New("invalid authentication payload")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrPermissionDenied     = errors.New("permission denied")
)

// IdentityFrom returns the authenticated caller injected by the auth layer,
// so handler bodies can read "who is calling".
func IdentityFrom(ctx context.Context) (Identity, bool) {
	return GetValue[Identity](ctx)
}

// authLayer wires an extractor and a provider around the inner service.
// The request walks extract → authenticate → authorize (each required
// permission, then required roles) → dispatch; any failure short-circuits
// into the extractor's error formatter and the inner service never runs.
func authLayer(ext Extractor, prov Provider, permissions, roles []string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, creds, err := ext.Extract(r)
			if err != nil {
				ext.WriteError(w, err)
				return
			}

			ident, err = prov.Authenticate(ident, creds)
			if err != nil {
				ext.WriteError(w, err)
				return
			}

			if !ident.SuperUser {
				for _, perm := range permissions {
					if err := prov.Authorize(ident, perm); err != nil {
						ext.WriteError(w, err)
						return
					}
				}
				if len(roles) > 0 && !holdsAnyRole(ident, roles) {
					ext.WriteError(w, ErrPermissionDenied)
					return
				}
			}

			next.ServeHTTP(w, SetValue(r, ident))
		})
	}
}

// holdsAnyRole reports whether the identity holds at least one of the
// required roles.
func holdsAnyRole(ident Identity, required []string) bool {
	for _, role := range required {
		if slices.Contains(ident.Roles, role) {
			return true
		}
	}
	return false
}

// NoopExtractor admits every request with an anonymous identity. Paired
// with NoopProvider it makes the composition uniform for routes that opt
// out of authentication.
type NoopExtractor struct{}

// Extract returns an anonymous identity and no credentials.
func (NoopExtractor) Extract(*http.Request) (Identity, Credentials, error) {
	return Identity{}, Credentials{}, nil
}

// WriteError writes a problem response for the rare failure injected by a
// downstream provider.
func (NoopExtractor) WriteError(w http.ResponseWriter, err error) {
	writeProblem(w, err)
}

// NoopProvider trusts every identity and grants every permission.
type NoopProvider struct{}

// Authenticate accepts any identity unchanged.
func (NoopProvider) Authenticate(ident Identity, _ Credentials) (Identity, error) {
	return ident, nil
}

// Authorize grants every permission.
func (NoopProvider) Authorize(Identity, string) error { return nil }
