package uxum

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// AppConfig is the externally supplied configuration consumed by NewRouter.
// The zero value (or DefaultAppConfig) serves every registered handler with
// defaults: no buffering, no rate limiting, no timeout, auth disabled.
type AppConfig struct {
	AppName    string `yaml:"app_name"`
	AppVersion string `yaml:"app_version"`

	Handlers map[string]HandlerConfig `yaml:"handlers"`
	Auth     AuthConfig               `yaml:"auth"`
	APIDoc   APIDocConfig             `yaml:"api_doc"`
	Metrics  MetricsConfig            `yaml:"metrics"`
	Probes   ProbesConfig             `yaml:"probes"`
}

// HandlerConfig is a per-handler override, looked up by handler name during
// router assembly. A nil sub-config means the corresponding layer is not
// built for that handler.
type HandlerConfig struct {
	Disabled       bool                  `yaml:"disabled"`
	Hidden         bool                  `yaml:"hidden"`
	NoAuth         bool                  `yaml:"no_auth"`
	Roles          []string              `yaml:"roles"`
	CORS           *CORSConfig           `yaml:"cors"`
	Buffer         *BufferConfig         `yaml:"buffer"`
	RateLimit      *RateLimitConfig      `yaml:"rate_limit"`
	CircuitBreaker *CircuitBreakerConfig `yaml:"circuit_breaker"`
	Timeout        *TimeoutConfig        `yaml:"timeout"`
}

// BufferConfig bounds the number of requests admitted into a handler at
// once. Requests beyond Queue wait their turn in FIFO order.
type BufferConfig struct {
	Queue int `yaml:"queue"`
}

// RateLimitKey selects the dimension used to bucket requests for
// token-bucket throttling.
type RateLimitKey string

const (
	// RateLimitKeyGlobal throttles all requests through a single bucket.
	RateLimitKeyGlobal RateLimitKey = "global"
	// RateLimitKeyPeerIP buckets by the transport-level peer address.
	RateLimitKeyPeerIP RateLimitKey = "peer_ip"
	// RateLimitKeySmartIP consults Forwarded, X-Forwarded-For and X-Real-Ip
	// (in that order) before falling back to the peer address.
	RateLimitKeySmartIP RateLimitKey = "smart_ip"
)

// RateLimitConfig configures token-bucket rate limiting for one handler.
// The burst size is BurstRPS * BurstDuration (in seconds), floored at 1.
type RateLimitConfig struct {
	Key           RateLimitKey  `yaml:"key"`
	RPS           float64       `yaml:"rps"`
	BurstRPS      float64       `yaml:"burst_rps"`
	BurstDuration time.Duration `yaml:"burst_duration"`
	ExtraHeaders  bool          `yaml:"extra_headers"`
}

// BurstSize returns the bucket capacity implied by the burst settings.
func (c *RateLimitConfig) BurstSize() int {
	if c.BurstRPS <= 0 || c.BurstDuration <= 0 {
		return 1
	}
	n := int(c.BurstRPS * c.BurstDuration.Seconds())
	if n < 1 {
		return 1
	}
	return n
}

// CircuitBreakerConfig configures the per-handler circuit breaker.
type CircuitBreakerConfig struct {
	MaxRequests  uint32        `yaml:"max_requests"`  // half-open probe budget
	Interval     time.Duration `yaml:"interval"`      // closed-state counter reset
	Cooldown     time.Duration `yaml:"cooldown"`      // open-state duration
	MinRequests  uint32        `yaml:"min_requests"`  // samples before tripping
	FailureRatio float64       `yaml:"failure_ratio"` // trip threshold
}

// TimeoutConfig configures per-request deadline computation.
type TimeoutConfig struct {
	UseXTimeout bool           `yaml:"use_x_timeout"`
	Default     *time.Duration `yaml:"default_timeout"`
	Min         *time.Duration `yaml:"min_timeout"`
	Max         *time.Duration `yaml:"max_timeout"`
}

// CORSConfig configures per-handler Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	AllowOrigins     []string `yaml:"allow_origins"`
	AllowMethods     []string `yaml:"allow_methods"`
	AllowHeaders     []string `yaml:"allow_headers"`
	ExposeHeaders    []string `yaml:"expose_headers"`
	AllowCredentials bool     `yaml:"allow_credentials"`
	MaxAge           int      `yaml:"max_age"` // seconds
}

// AuthConfig is the static trust store for the config-backed auth provider.
// Auth is enabled when at least one user is configured.
type AuthConfig struct {
	Realm string                `yaml:"realm"`
	Users map[string]UserConfig `yaml:"users"`
	Roles map[string]RoleConfig `yaml:"roles"`
}

// UserConfig describes one user: a plaintext password or a bcrypt hash,
// plus assigned role names.
type UserConfig struct {
	Password     string   `yaml:"password"`
	PasswordHash string   `yaml:"password_hash"`
	Roles        []string `yaml:"roles"`
}

// RoleConfig describes one role: granted permissions, and an optional
// super-user flag that bypasses permission checks entirely.
type RoleConfig struct {
	Permissions []string `yaml:"permissions"`
	SuperUser   bool     `yaml:"super_user"`
}

// APIDocConfig configures the OpenAPI spec and docs UI endpoints.
type APIDocConfig struct {
	Disabled bool   `yaml:"disabled"`
	SpecPath string `yaml:"spec_path"` // default /openapi.json
	DocPath  string `yaml:"doc_path"`  // default /apidoc
}

// MetricsConfig configures the Prometheus exporter endpoint.
type MetricsConfig struct {
	Disabled bool   `yaml:"disabled"`
	Path     string `yaml:"path"` // default /metrics
}

// ProbesConfig configures the readiness/liveness probes and the
// maintenance-mode toggles. The toggle endpoints are mounted only when
// authentication is configured; with an empty trust store they would be
// open to any caller, so they are left out and maintenance mode is then
// reachable only through Router.SetMaintenance.
type ProbesConfig struct {
	Disabled  bool   `yaml:"disabled"`
	ReadyPath string `yaml:"ready_path"` // default /probe/ready
	LivePath  string `yaml:"live_path"`  // default /probe/live
}

// DefaultAppConfig returns a configuration that serves all registered
// handlers with default settings.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		AppName:    "uxum-app",
		AppVersion: "dev",
	}
}

// handler returns the per-handler override for name, or a zero config.
func (c *AppConfig) handler(name string) HandlerConfig {
	if c.Handlers == nil {
		return HandlerConfig{}
	}
	return c.Handlers[name]
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// LoadConfig reads an AppConfig from a YAML file, expanding ${ENV_VAR}
// references from the environment before parsing.
func LoadConfig(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses an AppConfig from YAML bytes.
func ParseConfig(data []byte) (*AppConfig, error) {
	expanded := expandEnvVars(string(data))

	cfg := DefaultAppConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} with environment variable values,
// leaving unset references untouched.
func expandEnvVars(input string) string {
	return envPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		return match
	})
}

// validate rejects configs that cannot possibly assemble: users referencing
// roles that are never defined.
func (c *AppConfig) validate() error {
	for name, user := range c.Auth.Users {
		for _, role := range user.Roles {
			if _, ok := c.Auth.Roles[role]; !ok {
				return fmt.Errorf("%w: user %q references role %q", ErrUnknownRole, name, role)
			}
		}
	}
	return nil
}
