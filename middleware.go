package uxum

import (
	"context"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"
)

// Middleware is the standard middleware signature compatible with the entire
// Go middleware ecosystem.
type Middleware func(next http.Handler) http.Handler

// chain applies middleware in declaration order: the first element ends up
// outermost.
func chain(h http.Handler, mw ...Middleware) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

// errorBoundary is the outermost per-handler layer. It converts any panic
// escaping the inner stack into a generic 500 problem response, so the
// assembled stack is infallible from the router's perspective.
func errorBoundary(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("panic recovered",
						zap.Any("panic", rec),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.String("request_id", RequestIDFrom(r.Context())),
						zap.ByteString("stack", debug.Stack()),
					)
					writeProblem(w, Error(http.StatusInternalServerError,
						http.StatusText(http.StatusInternalServerError)))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// handlerNameHolder is planted in the request context by the metrics
// middleware before routing and filled in by the per-handler tagging layer
// after routing, so completed requests can be attributed to a handler
// without re-parsing the route.
type handlerNameHolder struct {
	name    string
	pattern string
}

type handlerNameKey struct{}

func withHandlerNameHolder(ctx context.Context) (context.Context, *handlerNameHolder) {
	h := &handlerNameHolder{}
	return context.WithValue(ctx, handlerNameKey{}, h), h
}

// tagHandlerName stamps the handler's name and route template onto the
// request's holder, when one exists. Routes mounted outside the registry
// have no holder; that is fine.
func tagHandlerName(name, pattern string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if h, ok := r.Context().Value(handlerNameKey{}).(*handlerNameHolder); ok {
				h.name = name
				h.pattern = pattern
			}
			next.ServeHTTP(w, r)
		})
	}
}

// HandlerNameFrom returns the name of the handler the request was routed
// to, or "" for routes outside the registry.
func HandlerNameFrom(ctx context.Context) string {
	if h, ok := ctx.Value(handlerNameKey{}).(*handlerNameHolder); ok {
		return h.name
	}
	return ""
}

// serverHeader advertises the application and framework in every response.
func serverHeader(appName, appVersion string) Middleware {
	value := appName + "/" + appVersion + " uxum/" + Version
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Server", value)
			next.ServeHTTP(w, r)
		})
	}
}

// Version is the framework version advertised in the Server header.
const Version = "0.1.0"
