package uxum

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func basicHeader(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func TestBasicExtractor_Extract(t *testing.T) {
	t.Parallel()

	ext := NewBasicExtractor("test")

	tests := map[string]struct {
		header   string
		wantUser string
		wantPass string
		wantErr  error
	}{
		"valid credentials": {
			header:   basicHeader("alice", "s3cret"),
			wantUser: "alice",
			wantPass: "s3cret",
		},
		"password containing colons": {
			header:   basicHeader("alice", "a:b:c"),
			wantUser: "alice",
			wantPass: "a:b:c",
		},
		"empty password": {
			header:   basicHeader("alice", ""),
			wantUser: "alice",
			wantPass: "",
		},
		"missing header": {
			wantErr: ErrNoAuthProvided,
		},
		"bearer scheme": {
			header:  "Bearer abcdef",
			wantErr: ErrUnknownAuthScheme,
		},
		"bare token": {
			header:  "abcdef",
			wantErr: ErrUnknownAuthScheme,
		},
		"broken base64": {
			header:  "Basic !!!not-base64!!!",
			wantErr: ErrInvalidAuthPayload,
		},
		"payload without separator": {
			header:  "Basic " + base64.StdEncoding.EncodeToString([]byte("no-colon-here")),
			wantErr: ErrInvalidAuthPayload,
		},
		"payload is not utf8": {
			header:  "Basic " + base64.StdEncoding.EncodeToString([]byte{0xff, 0xfe, ':', 'x'}),
			wantErr: ErrInvalidAuthPayload,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}

			ident, creds, err := ext.Extract(r)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantUser, ident.Username)
			assert.Equal(t, tc.wantPass, string(creds.Secret))
		})
	}
}

func TestBasicExtractor_WriteError(t *testing.T) {
	t.Parallel()

	ext := NewBasicExtractor("api")

	tests := map[string]struct {
		err           error
		wantStatus    int
		wantChallenge bool
	}{
		"no auth":          {err: ErrNoAuthProvided, wantStatus: http.StatusUnauthorized, wantChallenge: true},
		"bad credentials":  {err: ErrAuthenticationFailed, wantStatus: http.StatusUnauthorized, wantChallenge: true},
		"denied":           {err: ErrPermissionDenied, wantStatus: http.StatusForbidden},
		"unknown scheme":   {err: ErrUnknownAuthScheme, wantStatus: http.StatusBadRequest},
		"invalid payload":  {err: ErrInvalidAuthPayload, wantStatus: http.StatusBadRequest},
		"unexpected error": {err: assert.AnError, wantStatus: http.StatusInternalServerError},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			ext.WriteError(rec, tc.err)

			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantChallenge {
				assert.Equal(t, `Basic realm="api", charset="UTF-8"`, rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestBasicExtractor_indistinguishable401(t *testing.T) {
	t.Parallel()

	// Missing credentials and rejected credentials must render the exact
	// same response, or a caller could probe for valid usernames.
	ext := NewBasicExtractor("api")

	render := func(err error) (int, string, string) {
		rec := httptest.NewRecorder()
		ext.WriteError(rec, err)
		return rec.Code, rec.Header().Get("WWW-Authenticate"), rec.Body.String()
	}

	noAuthStatus, noAuthChallenge, noAuthBody := render(ErrNoAuthProvided)
	failedStatus, failedChallenge, failedBody := render(ErrAuthenticationFailed)

	assert.Equal(t, noAuthStatus, failedStatus)
	assert.Equal(t, noAuthChallenge, failedChallenge)
	assert.Equal(t, noAuthBody, failedBody)
}

func testAuthConfig(t *testing.T) AuthConfig {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("hashed-pass"), bcrypt.MinCost)
	require.NoError(t, err)

	return AuthConfig{
		Realm: "test",
		Users: map[string]UserConfig{
			"alice": {Password: "s3cret", Roles: []string{"ops"}},
			"bob":   {Password: "hunter2", Roles: []string{"viewer"}},
			"carol": {PasswordHash: string(hash), Roles: []string{"ops"}},
			"root":  {Password: "toor", Roles: []string{"admin"}},
		},
		Roles: map[string]RoleConfig{
			"ops":    {Permissions: []string{"stats.read", "stats.write"}},
			"viewer": {Permissions: []string{"stats.read"}},
			"admin":  {SuperUser: true},
		},
	}
}

func TestConfigProvider_Authenticate(t *testing.T) {
	t.Parallel()

	prov := NewConfigProvider(testAuthConfig(t))

	tests := map[string]struct {
		user, pass string
		wantErr    bool
		wantRoles  []string
		wantSuper  bool
	}{
		"plaintext match":   {user: "alice", pass: "s3cret", wantRoles: []string{"ops"}},
		"bcrypt match":      {user: "carol", pass: "hashed-pass", wantRoles: []string{"ops"}},
		"super user":        {user: "root", pass: "toor", wantRoles: []string{"admin"}, wantSuper: true},
		"wrong password":    {user: "alice", pass: "guess", wantErr: true},
		"wrong bcrypt pass": {user: "carol", pass: "guess", wantErr: true},
		"unknown user":      {user: "mallory", pass: "s3cret", wantErr: true},
		"empty username":    {user: "", pass: "", wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ident, err := prov.Authenticate(
				Identity{Username: tc.user},
				Credentials{Secret: []byte(tc.pass)},
			)
			if tc.wantErr {
				// Unknown user and wrong password are the same error value.
				require.ErrorIs(t, err, ErrAuthenticationFailed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.user, ident.Username)
			assert.Equal(t, tc.wantRoles, ident.Roles)
			assert.Equal(t, tc.wantSuper, ident.SuperUser)
		})
	}
}

func TestConfigProvider_Authorize(t *testing.T) {
	t.Parallel()

	prov := NewConfigProvider(testAuthConfig(t))

	tests := map[string]struct {
		ident   Identity
		perm    string
		wantErr bool
	}{
		"granted via role":       {ident: Identity{Roles: []string{"viewer"}}, perm: "stats.read"},
		"granted via any role":   {ident: Identity{Roles: []string{"viewer", "ops"}}, perm: "stats.write"},
		"denied":                 {ident: Identity{Roles: []string{"viewer"}}, perm: "stats.write", wantErr: true},
		"no roles":               {ident: Identity{}, perm: "stats.read", wantErr: true},
		"super user grants all":  {ident: Identity{SuperUser: true}, perm: "anything.at.all"},
		"unknown role is denied": {ident: Identity{Roles: []string{"ghost"}}, perm: "stats.read", wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			err := prov.Authorize(tc.ident, tc.perm)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrPermissionDenied)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestAuthLayer(t *testing.T) {
	t.Parallel()

	ext := NewBasicExtractor("test")
	prov := NewConfigProvider(testAuthConfig(t))

	serve := func(mw Middleware, authHeader string) *httptest.ResponseRecorder {
		var ident Identity
		h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, _ = IdentityFrom(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if authHeader != "" {
			req.Header.Set("Authorization", authHeader)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code == http.StatusOK {
			assert.NotEmpty(t, ident.Username, "identity must be injected on success")
		}
		return rec
	}

	tests := map[string]struct {
		permissions []string
		roles       []string
		header      string
		wantStatus  int
	}{
		"authenticated, no requirements": {
			header:     basicHeader("bob", "hunter2"),
			wantStatus: http.StatusOK,
		},
		"permission granted": {
			permissions: []string{"stats.read"},
			header:      basicHeader("bob", "hunter2"),
			wantStatus:  http.StatusOK,
		},
		"all permissions required": {
			permissions: []string{"stats.read", "stats.write"},
			header:      basicHeader("bob", "hunter2"),
			wantStatus:  http.StatusForbidden,
		},
		"role requirement met": {
			roles:      []string{"ops", "viewer"},
			header:     basicHeader("bob", "hunter2"),
			wantStatus: http.StatusOK,
		},
		"role requirement unmet": {
			roles:      []string{"ops"},
			header:     basicHeader("bob", "hunter2"),
			wantStatus: http.StatusForbidden,
		},
		"super user bypasses permissions": {
			permissions: []string{"stats.write", "secrets.rotate"},
			header:      basicHeader("root", "toor"),
			wantStatus:  http.StatusOK,
		},
		"super user bypasses roles": {
			roles:      []string{"ops"},
			header:     basicHeader("root", "toor"),
			wantStatus: http.StatusOK,
		},
		"no credentials": {
			wantStatus: http.StatusUnauthorized,
		},
		"wrong password": {
			header:     basicHeader("bob", "wrong"),
			wantStatus: http.StatusUnauthorized,
		},
		"unknown user": {
			header:     basicHeader("mallory", "hunter2"),
			wantStatus: http.StatusUnauthorized,
		},
		"malformed payload": {
			header:     "Basic %%%",
			wantStatus: http.StatusBadRequest,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			mw := authLayer(ext, prov, tc.permissions, tc.roles)
			rec := serve(mw, tc.header)
			assert.Equal(t, tc.wantStatus, rec.Code)
		})
	}
}

func TestAuthLayer_identical401Bodies(t *testing.T) {
	t.Parallel()

	ext := NewBasicExtractor("test")
	prov := NewConfigProvider(testAuthConfig(t))
	h := authLayer(ext, prov, nil, nil)(okHandler())

	serve := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		return rec
	}

	noCreds := serve("")
	wrongPass := serve(basicHeader("bob", "nope"))
	unknownUser := serve(basicHeader("mallory", "hunter2"))

	assert.Equal(t, noCreds.Body.String(), wrongPass.Body.String())
	assert.Equal(t, noCreds.Body.String(), unknownUser.Body.String())
	assert.Equal(t, noCreds.Header().Get("WWW-Authenticate"), wrongPass.Header().Get("WWW-Authenticate"))
	assert.Equal(t, noCreds.Header().Get("WWW-Authenticate"), unknownUser.Header().Get("WWW-Authenticate"))
}

func TestNoopAuth(t *testing.T) {
	t.Parallel()

	h := authLayer(NoopExtractor{}, NoopProvider{}, []string{"anything"}, nil)(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
