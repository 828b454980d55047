package uxum

import "net/http"

// Handler is an immutable descriptor for one registered request handler:
// identity (name, path, method), the executable service, and metadata used
// for authorization and OpenAPI generation. Descriptors are created once,
// registered, and never mutated.
type Handler struct {
	name        string
	path        string
	method      string
	service     http.Handler
	permissions []string
	noAuth      bool
	hasBody     bool
	spec        Operation
}

// HandlerOption configures a Handler at creation time.
type HandlerOption func(*Handler)

// WithPath sets the URL path template for the handler. Path parameters use
// ":name" segments, e.g. "/users/:id". Defaults to "/" + the handler name.
func WithPath(path string) HandlerOption {
	return func(h *Handler) {
		h.path = path
	}
}

// WithMethod sets the HTTP method. Defaults to GET, or POST when the
// handler declares a request body via WithRequestBody.
func WithMethod(method string) HandlerOption {
	return func(h *Handler) {
		h.method = method
	}
}

// WithPermissions declares permissions a caller must hold, all of them,
// for the handler to be dispatched.
func WithPermissions(perms ...string) HandlerOption {
	return func(h *Handler) {
		h.permissions = append(h.permissions, perms...)
	}
}

// WithNoAuth exempts the handler from the authentication layer.
func WithNoAuth() HandlerOption {
	return func(h *Handler) {
		h.noAuth = true
	}
}

// WithRequestBody declares that the handler consumes a request body,
// switching the default method to POST.
func WithRequestBody() HandlerOption {
	return func(h *Handler) {
		h.hasBody = true
	}
}

// WithOperation attaches OpenAPI operation metadata to the handler.
func WithOperation(op Operation) HandlerOption {
	return func(h *Handler) {
		h.spec = op
	}
}

// WithSummary sets the OpenAPI summary for the handler.
func WithSummary(s string) HandlerOption {
	return func(h *Handler) {
		h.spec.Summary = s
	}
}

// WithDescription sets the OpenAPI description for the handler.
func WithDescription(d string) HandlerOption {
	return func(h *Handler) {
		h.spec.Description = d
	}
}

// WithTags adds OpenAPI tags to the handler.
func WithTags(tags ...string) HandlerOption {
	return func(h *Handler) {
		h.spec.Tags = append(h.spec.Tags, tags...)
	}
}

// NewHandler creates a handler descriptor. Absent options, the handler is
// mounted at GET /<name> and requires authentication with no specific
// permissions.
func NewHandler(name string, service http.Handler, opts ...HandlerOption) *Handler {
	h := &Handler{
		name:    name,
		service: service,
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.path == "" {
		h.path = "/" + name
	}
	if h.method == "" {
		if h.hasBody {
			h.method = http.MethodPost
		} else {
			h.method = http.MethodGet
		}
	}
	return h
}

// Name returns the unique handler name.
func (h *Handler) Name() string { return h.name }

// Path returns the URL path template.
func (h *Handler) Path() string { return h.path }

// Method returns the HTTP method.
func (h *Handler) Method() string { return h.method }

// Permissions returns the permissions required to dispatch the handler.
func (h *Handler) Permissions() []string { return h.permissions }
