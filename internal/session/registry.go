package session

import (
	"sync"

	"github.com/google/uuid"
)

// Registry tracks the live engines by attempt so every connection for the
// same attempt shares one state machine. One engine per attempt is the
// property the submission guard relies on.
type Registry struct {
	mu      sync.Mutex
	engines map[uuid.UUID]*Engine
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{engines: make(map[uuid.UUID]*Engine)}
}

// Get returns the live engine for an attempt, if any.
func (r *Registry) Get(attemptID uuid.UUID) (*Engine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.engines[attemptID]
	return e, ok
}

// GetOrPut returns the registered engine for the attempt, or registers the
// candidate and returns it. The loser's candidate must be torn down by the
// caller.
func (r *Registry) GetOrPut(attemptID uuid.UUID, candidate *Engine) (*Engine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.engines[attemptID]; ok {
		return e, false
	}
	r.engines[attemptID] = candidate
	return candidate, true
}

// Evict removes and tears down the attempt's engine.
func (r *Registry) Evict(attemptID uuid.UUID) {
	r.mu.Lock()
	e, ok := r.engines[attemptID]
	delete(r.engines, attemptID)
	r.mu.Unlock()
	if ok {
		e.Teardown()
	}
}

// Len reports how many attempts are currently live.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.engines)
}
