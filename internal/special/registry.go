package special

import (
	"fmt"
	"sync"
)

// Registry maps achievement IDs to their special predicates.
// It provides a thread-safe way to register and retrieve predicates.
type Registry struct {
	predicates map[string]Predicate
	mu         sync.RWMutex
}

// NewRegistry creates a new predicate registry.
func NewRegistry() *Registry {
	return &Registry{
		predicates: make(map[string]Predicate),
	}
}

// Register binds a predicate to an achievement ID.
// If a predicate is already bound to the ID, it will be replaced.
func (r *Registry) Register(achievementID string, p Predicate) error {
	if p == nil {
		return fmt.Errorf("cannot register nil predicate")
	}
	if achievementID == "" {
		return fmt.Errorf("achievement id cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.predicates[achievementID] = p
	return nil
}

// Get retrieves the predicate for an achievement ID.
// Returns the predicate and true if found, nil and false otherwise.
func (r *Registry) Get(achievementID string) (Predicate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.predicates[achievementID]
	return p, ok
}

// IDs returns all achievement IDs with a registered predicate.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.predicates))
	for id := range r.predicates {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of registered predicates.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.predicates)
}

// Unregister removes the predicate for an achievement ID.
// Returns true if a predicate was found and removed, false otherwise.
func (r *Registry) Unregister(achievementID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.predicates[achievementID]; ok {
		delete(r.predicates, achievementID)
		return true
	}
	return false
}

// DefaultRegistry is the global predicate registry instance.
var DefaultRegistry = NewRegistry()

// Register binds a predicate in the default registry.
func Register(achievementID string, p Predicate) error {
	return DefaultRegistry.Register(achievementID, p)
}

// Get retrieves a predicate from the default registry.
func Get(achievementID string) (Predicate, bool) {
	return DefaultRegistry.Get(achievementID)
}
