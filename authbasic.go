package uxum

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// BasicExtractor parses HTTP Basic credentials from the Authorization
// header, per RFC 7617.
type BasicExtractor struct {
	realm string
}

// NewBasicExtractor creates a Basic extractor advertising the given realm
// in its WWW-Authenticate challenge.
func NewBasicExtractor(realm string) *BasicExtractor {
	if realm == "" {
		realm = "Restricted"
	}
	return &BasicExtractor{realm: realm}
}

// Extract parses "Authorization: Basic <base64(user:pass)>".
func (e *BasicExtractor) Extract(r *http.Request) (Identity, Credentials, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return Identity{}, Credentials{}, ErrNoAuthProvided
	}

	scheme, payload, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Basic") {
		return Identity{}, Credentials{}, fmt.Errorf("%w: %q", ErrUnknownAuthScheme, scheme)
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return Identity{}, Credentials{}, fmt.Errorf("%w: %v", ErrInvalidAuthPayload, err)
	}
	if !utf8.Valid(decoded) {
		return Identity{}, Credentials{}, fmt.Errorf("%w: payload is not valid UTF-8", ErrInvalidAuthPayload)
	}

	user, pass, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return Identity{}, Credentials{}, fmt.Errorf("%w: missing separator", ErrInvalidAuthPayload)
	}

	return Identity{Username: user}, Credentials{Secret: []byte(pass)}, nil
}

// WriteError maps auth failures onto HTTP responses: 401 with a Basic
// challenge for missing or rejected credentials, 403 for permission
// denial, 400 for payloads the extractor could not parse. The 401 body is
// constant so that missing credentials, unknown users and wrong passwords
// are indistinguishable to the caller.
func (e *BasicExtractor) WriteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNoAuthProvided) || errors.Is(err, ErrAuthenticationFailed):
		w.Header().Set("WWW-Authenticate", e.challenge())
		writeProblem(w, &ProblemDetail{
			Title:  http.StatusText(http.StatusUnauthorized),
			Status: http.StatusUnauthorized,
		})
	case errors.Is(err, ErrPermissionDenied):
		writeProblem(w, &ProblemDetail{
			Title:  http.StatusText(http.StatusForbidden),
			Status: http.StatusForbidden,
			Detail: err.Error(),
		})
	case errors.Is(err, ErrUnknownAuthScheme) || errors.Is(err, ErrInvalidAuthPayload):
		writeProblem(w, &ProblemDetail{
			Title:  http.StatusText(http.StatusBadRequest),
			Status: http.StatusBadRequest,
			Detail: err.Error(),
		})
	default:
		writeProblem(w, err)
	}
}

func (e *BasicExtractor) challenge() string {
	return fmt.Sprintf("Basic realm=%q, charset=\"UTF-8\"", e.realm)
}

// ConfigProvider is the config-backed trust store: users with plaintext or
// bcrypt-hashed passwords, roles with permission sets and an optional
// super-user flag. It is read-only after construction and therefore safe
// to share across requests.
type ConfigProvider struct {
	users     map[string]configUser
	roles     map[string]RoleConfig
	dummyHash []byte
}

type configUser struct {
	password []byte
	hash     []byte
	roles    []string
}

// NewConfigProvider builds a provider from the static auth configuration.
func NewConfigProvider(cfg AuthConfig) *ConfigProvider {
	users := make(map[string]configUser, len(cfg.Users))
	for name, u := range cfg.Users {
		cu := configUser{roles: u.Roles}
		if u.PasswordHash != "" {
			cu.hash = []byte(u.PasswordHash)
		} else {
			cu.password = []byte(u.Password)
		}
		users[name] = cu
	}

	// Pre-compute a hash to verify against for unknown usernames, so the
	// lookup miss is not observable through timing.
	dummyHash, _ := bcrypt.GenerateFromPassword([]byte("uxum-dummy"), bcrypt.DefaultCost)

	return &ConfigProvider{
		users:     users,
		roles:     cfg.Roles,
		dummyHash: dummyHash,
	}
}

// Authenticate verifies the password and resolves the user's roles.
// Unknown user and wrong password return the same error value.
func (p *ConfigProvider) Authenticate(ident Identity, creds Credentials) (Identity, error) {
	user, found := p.users[ident.Username]
	if !found {
		bcrypt.CompareHashAndPassword(p.dummyHash, creds.Secret) //nolint:errcheck // timing equalizer
		return Identity{}, ErrAuthenticationFailed
	}

	if user.hash != nil {
		if bcrypt.CompareHashAndPassword(user.hash, creds.Secret) != nil {
			return Identity{}, ErrAuthenticationFailed
		}
	} else if subtle.ConstantTimeCompare(user.password, creds.Secret) != 1 {
		return Identity{}, ErrAuthenticationFailed
	}

	ident.Roles = user.roles
	for _, role := range user.roles {
		if p.roles[role].SuperUser {
			ident.SuperUser = true
			break
		}
	}
	return ident, nil
}

// Authorize grants the permission when any of the identity's roles lists
// it, or unconditionally for super users.
func (p *ConfigProvider) Authorize(ident Identity, permission string) error {
	if ident.SuperUser {
		return nil
	}
	for _, role := range ident.Roles {
		for _, perm := range p.roles[role].Permissions {
			if perm == permission {
				return nil
			}
		}
	}
	return fmt.Errorf("%w: %s", ErrPermissionDenied, permission)
}

// Enabled reports whether any users are configured.
func (p *ConfigProvider) Enabled() bool {
	return len(p.users) > 0
}
