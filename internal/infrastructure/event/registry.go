package event

import (
	"slices"
	"sync"

	"github.com/erp/retailops/internal/domain/shared"
)

// HandlerRegistry maps event types to handlers. Handlers registered with no
// type receive every event.
type HandlerRegistry struct {
	mu       sync.RWMutex
	byType   map[string][]shared.EventHandler
	wildcard []shared.EventHandler
}

// NewHandlerRegistry creates an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{byType: make(map[string][]shared.EventHandler)}
}

// Register adds handler under each of eventTypes
func (r *HandlerRegistry) Register(handler shared.EventHandler, eventTypes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(eventTypes) == 0 {
		r.wildcard = append(r.wildcard, handler)
		return
	}
	for _, t := range eventTypes {
		r.byType[t] = append(r.byType[t], handler)
	}
}

// Unregister removes handler wherever it is registered.
func (r *HandlerRegistry) Unregister(handler shared.EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	same := func(h shared.EventHandler) bool { return h == handler }
	r.wildcard = slices.DeleteFunc(r.wildcard, same)
	for t, hs := range r.byType {
		hs = slices.DeleteFunc(hs, same)
		if len(hs) == 0 {
			delete(r.byType, t)
			continue
		}
		r.byType[t] = hs
	}
}

// Handlers returns the handlers for eventType followed by the wildcard
// handlers.
func (r *HandlerRegistry) Handlers(eventType string) []shared.EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Concat(r.byType[eventType], r.wildcard)
}

// Len returns the number of distinct registered handlers.
func (r *HandlerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[shared.EventHandler]struct{})
	for _, h := range r.wildcard {
		seen[h] = struct{}{}
	}
	for _, hs := range r.byType {
		for _, h := range hs {
			seen[h] = struct{}{}
		}
	}
	return len(seen)
}
