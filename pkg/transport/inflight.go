package transport

import "sync"

// InFlightRegistry tracks requests that are being served, mapping a
// registration key to the function that aborts the request's signal. It
// lets the server abort every in-flight request when a graceful shutdown
// runs out of time.
//
// All methods are safe for concurrent access.
type InFlightRegistry struct {
	mu      sync.Mutex
	entries map[string]func()
}

// NewInFlightRegistry creates a new empty registry.
func NewInFlightRegistry() *InFlightRegistry {
	return &InFlightRegistry{
		entries: make(map[string]func()),
	}
}

// Register adds an in-flight request. abort is called if the request is
// cancelled through the registry.
func (r *InFlightRegistry) Register(key string, abort func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = abort
}

// Cancel aborts one in-flight request. Returns true if the key was found,
// false if it was not registered (already completed or never existed).
func (r *InFlightRegistry) Cancel(key string) bool {
	r.mu.Lock()
	abort, ok := r.entries[key]
	delete(r.entries, key)
	r.mu.Unlock()

	if !ok {
		return false
	}
	abort()
	return true
}

// CancelAll aborts every registered request and empties the registry.
// Returns the number of requests aborted.
func (r *InFlightRegistry) CancelAll() int {
	r.mu.Lock()
	aborts := make([]func(), 0, len(r.entries))
	for key, abort := range r.entries {
		aborts = append(aborts, abort)
		delete(r.entries, key)
	}
	r.mu.Unlock()

	for _, abort := range aborts {
		abort()
	}
	return len(aborts)
}

// Remove removes a request from the registry without aborting it.
// Called when a request completes normally.
func (r *InFlightRegistry) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
}

// Len returns the number of registered requests.
func (r *InFlightRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
