package uxum

import (
	"net/http"
	"sync/atomic"
)

// maintenance is the process-visible maintenance switch. While on, the
// readiness probe reports 503 so load balancers drain the instance;
// liveness is unaffected.
type maintenance struct {
	on atomic.Bool
}

func (m *maintenance) set(v bool) { m.on.Store(v) }

// Maintenance reports whether maintenance mode is currently on.
func (r *Router) Maintenance() bool { return r.maint.on.Load() }

// SetMaintenance toggles maintenance mode programmatically, equivalent to
// the /maintenance/on and /maintenance/off endpoints.
func (r *Router) SetMaintenance(on bool) { r.maint.set(on) }

func (m *maintenance) liveHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck,gosec // best-effort after WriteHeader
		w.Write([]byte("OK"))
	})
}

func (m *maintenance) readyHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if m.on.Load() {
			writeProblem(w, Error(http.StatusServiceUnavailable, "maintenance mode is on"))
			return
		}
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck,gosec // best-effort after WriteHeader
		w.Write([]byte("OK"))
	})
}

func (m *maintenance) toggleHandler(on bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		m.set(on)
		w.WriteHeader(http.StatusNoContent)
	})
}

// MaintenancePermission gates the maintenance toggle endpoints through the
// auth layer.
const MaintenancePermission = "maintenance"
