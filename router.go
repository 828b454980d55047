package uxum

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Router is the assembled service: every enabled registered handler
// wrapped in its middleware stack, the collaborator endpoints, and the
// process-wide layers around the whole thing. It implements http.Handler.
type Router struct {
	mux     *http.ServeMux
	handler http.Handler

	cfg     *AppConfig
	logger  *zap.Logger
	metrics *metricsSet
	spec    *OpenAPISpec
	maint   maintenance

	extractor Extractor
	provider  Provider
}

type routerOptions struct {
	logger    *zap.Logger
	handlers  []*Handler
	extractor Extractor
	provider  Provider
	mounts    []mount
}

type mount struct {
	pattern string
	handler http.Handler
}

// RouterOption configures router assembly.
type RouterOption func(*routerOptions)

// WithLogger sets the logger used by the assembled middleware. Defaults to
// a no-op logger.
func WithLogger(logger *zap.Logger) RouterOption {
	return func(o *routerOptions) {
		o.logger = logger
	}
}

// WithHandlers assembles the router from an explicit handler list instead
// of the process-wide registry.
func WithHandlers(handlers ...*Handler) RouterOption {
	return func(o *routerOptions) {
		o.handlers = append(o.handlers, handlers...)
	}
}

// WithAuth overrides the extractor/provider pair built from configuration.
func WithAuth(ext Extractor, prov Provider) RouterOption {
	return func(o *routerOptions) {
		o.extractor = ext
		o.provider = prov
	}
}

// WithMount merges a collaborator sub-router at the given ServeMux
// pattern, e.g. WithMount("GET /debug/vars", expvar.Handler()).
func WithMount(pattern string, h http.Handler) RouterOption {
	return func(o *routerOptions) {
		o.mounts = append(o.mounts, mount{pattern: pattern, handler: h})
	}
}

// NewRouter assembles all registered handlers into a Router. Assembly is
// all-or-nothing: a duplicate handler name, a conflicting route pattern
// or an invalid per-handler config returns an error and no router.
func NewRouter(cfg *AppConfig, opts ...RouterOption) (*Router, error) {
	if cfg == nil {
		cfg = DefaultAppConfig()
	}

	o := &routerOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}

	handlers := o.handlers
	if handlers == nil {
		handlers = defaultRegistry.snapshot()
	}

	r := &Router{
		mux:     http.NewServeMux(),
		cfg:     cfg,
		logger:  o.logger,
		metrics: newMetricsSet(),
	}

	authEnabled := true
	r.extractor, r.provider = o.extractor, o.provider
	if r.extractor == nil || r.provider == nil {
		if len(cfg.Auth.Users) > 0 {
			r.extractor = NewBasicExtractor(cfg.Auth.Realm)
			r.provider = NewConfigProvider(cfg.Auth)
		} else {
			r.extractor, r.provider = NoopExtractor{}, NoopProvider{}
			authEnabled = false
		}
	}

	// Group descriptors by path, preserving registration order. Disabled
	// handlers still reserve their name for uniqueness checking.
	seen := make(map[string]struct{}, len(handlers))
	var paths []string
	groups := make(map[string][]*Handler)
	for _, h := range handlers {
		if _, dup := seen[h.name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateHandlerName, h.name)
		}
		seen[h.name] = struct{}{}

		if _, ok := groups[h.path]; !ok {
			paths = append(paths, h.path)
		}
		groups[h.path] = append(groups[h.path], h)
	}

	var enabled []*Handler
	for _, path := range paths {
		for _, h := range groups[path] {
			hc := cfg.handler(h.name)
			if hc.Disabled {
				continue
			}

			stacked, err := r.buildStack(h, hc)
			if err != nil {
				return nil, fmt.Errorf("handler %q: %w", h.name, err)
			}
			if err := r.handle(h.method+" "+muxPath(path), stacked); err != nil {
				return nil, fmt.Errorf("handler %q: %w", h.name, err)
			}
			enabled = append(enabled, h)
		}
	}

	r.spec = buildSpec(cfg.AppName, cfg.AppVersion, enabled, cfg)
	if err := r.mountCollaborators(o.mounts, authEnabled); err != nil {
		return nil, err
	}

	// Process-wide layers, outermost first: span creation, request id,
	// metrics, access log, Server header.
	r.handler = chain(r.mux,
		tracingMiddleware(),
		requestID(),
		r.metrics.middleware(),
		AccessLog(r.logger),
		serverHeader(cfg.AppName, cfg.AppVersion),
	)

	return r, nil
}

// buildStack wraps one handler's service in its per-handler middleware
// stack. Order is fixed and deliberate, outermost first: error boundary,
// name tagging, CORS, buffering, rate limiting, circuit breaking, auth,
// timeout. Auth and timeout always run when configured, even for handlers
// that decline buffering or rate limiting.
func (r *Router) buildStack(h *Handler, hc HandlerConfig) (http.Handler, error) {
	mw := []Middleware{
		errorBoundary(r.logger),
		tagHandlerName(h.name, h.path),
	}

	if hc.CORS != nil {
		m, err := cors(hc.CORS)
		if err != nil {
			return nil, err
		}
		mw = append(mw, m)
	}
	if hc.Buffer != nil {
		m, err := buffer(hc.Buffer)
		if err != nil {
			return nil, err
		}
		mw = append(mw, m)
	}
	if hc.RateLimit != nil {
		m, err := rateLimit(hc.RateLimit)
		if err != nil {
			return nil, err
		}
		mw = append(mw, m)
	}
	if hc.CircuitBreaker != nil {
		mw = append(mw, circuitBreaker(h.name, hc.CircuitBreaker, r.logger))
	}
	if !h.noAuth && !hc.NoAuth {
		mw = append(mw, authLayer(r.extractor, r.provider, h.permissions, hc.Roles))
	}
	if hc.Timeout != nil {
		mw = append(mw, timeoutService(hc.Timeout, r.logger))
	}

	return chain(h.service, mw...), nil
}

// handle registers a pattern on the mux, converting ServeMux pattern
// conflicts (which it reports by panicking) into an assembly error.
func (r *Router) handle(pattern string, h http.Handler) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrDuplicateRoute, rec)
		}
	}()
	r.mux.Handle(pattern, h)
	return nil
}

// mountCollaborators wires the conventional endpoints: OpenAPI spec, docs
// UI, metrics exporter, probes, maintenance toggles, plus any custom
// mounts. The maintenance toggles are mounted only when authentication is
// configured; without a trust store there is nothing to gate them with.
func (r *Router) mountCollaborators(mounts []mount, authEnabled bool) error {
	cfg := r.cfg

	if !cfg.APIDoc.Disabled {
		specPath := cfg.APIDoc.SpecPath
		if specPath == "" {
			specPath = "/openapi.json"
		}
		docPath := cfg.APIDoc.DocPath
		if docPath == "" {
			docPath = "/apidoc"
		}
		if err := r.handle("GET "+specPath, specHandler(r.spec)); err != nil {
			return err
		}
		if err := r.handle("GET "+docPath, docsHandler(cfg.AppName, specPath)); err != nil {
			return err
		}
	}

	if !cfg.Metrics.Disabled {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		if err := r.handle("GET "+path, r.metrics.handler()); err != nil {
			return err
		}
	}

	if !cfg.Probes.Disabled {
		readyPath := cfg.Probes.ReadyPath
		if readyPath == "" {
			readyPath = "/probe/ready"
		}
		livePath := cfg.Probes.LivePath
		if livePath == "" {
			livePath = "/probe/live"
		}
		if err := r.handle("GET "+readyPath, r.maint.readyHandler()); err != nil {
			return err
		}
		if err := r.handle("GET "+livePath, r.maint.liveHandler()); err != nil {
			return err
		}

		if authEnabled {
			gate := authLayer(r.extractor, r.provider, []string{MaintenancePermission}, nil)
			if err := r.handle("POST /maintenance/on", gate(r.maint.toggleHandler(true))); err != nil {
				return err
			}
			if err := r.handle("POST /maintenance/off", gate(r.maint.toggleHandler(false))); err != nil {
				return err
			}
		}
	}

	for _, m := range mounts {
		if err := r.handle(m.pattern, m.handler); err != nil {
			return err
		}
	}
	return nil
}

// muxPath converts ":name" path segments into ServeMux "{name}" wildcards.
func muxPath(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	segs := strings.Split(path, "/")
	for i, seg := range segs {
		if strings.HasPrefix(seg, ":") {
			segs[i] = "{" + seg[1:] + "}"
		}
	}
	return strings.Join(segs, "/")
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

// ListenAndServe starts an HTTP server on the given address. It blocks
// until the context is cancelled, then shuts down gracefully.
func (r *Router) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
