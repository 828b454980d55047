// Command sample demonstrates the uxum framework: handlers registered at
// init time, assembled into a router with per-handler middleware from a
// YAML config.
//
// Run:
//
//	go run ./cmd/sample
//	go run ./cmd/sample -config sample.yaml
//
// Then explore:
//
//	GET  http://localhost:8080/hello              — plain handler
//	GET  http://localhost:8080/greet/world        — path parameter
//	POST http://localhost:8080/echo               — typed JSON handler
//	GET  http://localhost:8080/slow               — timeout demo (X-Timeout honored)
//	GET  http://localhost:8080/admin/stats        — requires stats.read permission
//	GET  http://localhost:8080/openapi.json       — OpenAPI spec
//	GET  http://localhost:8080/apidoc             — docs UI
//	GET  http://localhost:8080/metrics            — Prometheus exporter
//	GET  http://localhost:8080/probe/ready        — readiness probe
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/unikmhz/uxum"
)

func init() {
	uxum.Register(uxum.NewHandler("hello",
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprintln(w, "hello")
		}),
		uxum.WithNoAuth(),
		uxum.WithSummary("Say hello"),
	))

	uxum.Register(uxum.NewHandler("greet",
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, "hello, %s\n", r.PathValue("name"))
		}),
		uxum.WithPath("/greet/:name"),
		uxum.WithNoAuth(),
		uxum.WithSummary("Greet by name"),
	))

	uxum.Register(uxum.NewHandler("echo",
		uxum.JSON(func(_ context.Context, req *echoRequest) (*echoResponse, error) {
			return &echoResponse{Message: req.Message}, nil
		}),
		uxum.WithPath("/echo"),
		uxum.WithRequestBody(),
		uxum.WithNoAuth(),
		uxum.WithSummary("Echo a message"),
	))

	uxum.Register(uxum.NewHandler("slow",
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(5 * time.Second):
				fmt.Fprintln(w, "done")
			case <-r.Context().Done():
			}
		}),
		uxum.WithPath("/slow"),
		uxum.WithNoAuth(),
		uxum.WithSummary("Sleep five seconds"),
	))

	uxum.Register(uxum.NewHandler("admin_stats",
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, _ := uxum.IdentityFrom(r.Context())
			fmt.Fprintf(w, "stats for %s\n", ident.Username)
		}),
		uxum.WithPath("/admin/stats"),
		uxum.WithPermissions("stats.read"),
		uxum.WithSummary("Admin statistics"),
	))
}

type echoRequest struct {
	Message string `json:"message"`
}

type echoResponse struct {
	Message string `json:"message"`
}

func main() {
	configFlag := flag.String("config", "", "Path to a YAML config file")
	addrFlag := flag.String("addr", ":8080", "Listen address")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	cfg := defaultConfig()
	if *configFlag != "" {
		cfg, err = uxum.LoadConfig(*configFlag)
		if err != nil {
			logger.Fatal("config load failed", zap.Error(err))
		}
	}

	r, err := uxum.NewRouter(cfg, uxum.WithLogger(logger))
	if err != nil {
		logger.Fatal("router assembly failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger.Info("starting server", zap.String("addr", *addrFlag))

	if err := r.ListenAndServe(ctx, *addrFlag); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", zap.Error(err))
	}

	logger.Info("server stopped")
}

func defaultConfig() *uxum.AppConfig {
	twoSeconds := 2 * time.Second
	oneSecond := time.Second
	tenSeconds := 10 * time.Second

	cfg := uxum.DefaultAppConfig()
	cfg.AppName = "sample"
	cfg.AppVersion = "1.0.0"
	cfg.Handlers = map[string]uxum.HandlerConfig{
		"slow": {
			Timeout: &uxum.TimeoutConfig{
				UseXTimeout: true,
				Default:     &twoSeconds,
				Min:         &oneSecond,
				Max:         &tenSeconds,
			},
		},
		"hello": {
			RateLimit: &uxum.RateLimitConfig{
				Key:           uxum.RateLimitKeySmartIP,
				RPS:           5,
				BurstRPS:      10,
				BurstDuration: time.Second,
				ExtraHeaders:  true,
			},
		},
	}
	cfg.Auth = uxum.AuthConfig{
		Realm: "sample",
		Users: map[string]uxum.UserConfig{
			"admin": {Password: "admin", Roles: []string{"admin"}},
			"bob":   {Password: "hunter2", Roles: []string{"viewer"}},
		},
		Roles: map[string]uxum.RoleConfig{
			"admin":  {SuperUser: true},
			"viewer": {Permissions: []string{"stats.read"}},
		},
	}
	return cfg
}
