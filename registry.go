package uxum

import "sync"

// The process-wide registry is append-only: Register is called from init
// functions in independently compiled packages, before any router is
// assembled. NewRouter snapshots it read-only, so iteration afterwards
// needs no locking. Registration cannot fail; duplicate names surface as
// ErrDuplicateHandlerName at assembly time.
var defaultRegistry registry

type registry struct {
	mu       sync.Mutex
	handlers []*Handler
}

func (reg *registry) add(h *Handler) {
	reg.mu.Lock()
	reg.handlers = append(reg.handlers, h)
	reg.mu.Unlock()
}

func (reg *registry) snapshot() []*Handler {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	out := make([]*Handler, len(reg.handlers))
	copy(out, reg.handlers)
	return out
}

// Register adds a handler to the process-wide registry. It is intended to
// be called from init functions; calls after router assembly have no effect
// on already-built routers.
func Register(h *Handler) {
	defaultRegistry.add(h)
}

// RegisteredHandlers returns a snapshot of the process-wide registry.
func RegisteredHandlers() []*Handler {
	return defaultRegistry.snapshot()
}
