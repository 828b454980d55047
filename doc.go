// Package uxum is a framework for building HTTP services from
// independently declared handlers. Handlers register themselves into a
// process-wide registry (typically from init functions), and NewRouter
// assembles them into a single http.Handler: one multi-method endpoint per
// path, each handler wrapped in a configurable middleware stack.
//
// A minimal program:
//
//	func init() {
//		uxum.Register(uxum.NewHandler("hello", http.HandlerFunc(hello),
//			uxum.WithPath("/hello")))
//	}
//
//	func main() {
//		r, err := uxum.NewRouter(uxum.DefaultAppConfig())
//		if err != nil {
//			log.Fatal(err)
//		}
//		r.ListenAndServe(context.Background(), ":8080")
//	}
//
// The per-handler stack is built from configuration at assembly time, in a
// fixed order: error boundary, handler-name tagging, CORS, request
// buffering, rate limiting, circuit breaking, authentication and
// authorization, and finally the timeout service. Every layer is optional
// except the error boundary; configuration is looked up by handler name.
//
// Request-scoped state (the effective deadline and the request id) rides on
// the request context and is readable anywhere under the request via
// DeadlineFrom and RequestIDFrom. Outbound calls made through NewClient
// forward both to downstream services as X-Timeout and X-Request-Id
// headers, so deadlines propagate end to end without explicit plumbing.
//
// The same handler declarations drive an OpenAPI 3.1 document served at
// /openapi.json, with an interactive documentation page at /apidoc.
// Prometheus metrics, OpenTelemetry spans, readiness and liveness probes,
// and an authenticated maintenance-mode toggle are wired in by NewRouter.
package uxum
