package workflow

import (
	"regexp"
	"sync"
)

// idPattern matches identifiers issued by the workflow engine.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9]{16}$`)

// IsWorkflowID reports whether s is already an engine identifier rather
// than a symbolic name.
func IsWorkflowID(s string) bool {
	return idPattern.MatchString(s)
}

// Registry maps symbolic workflow names to engine identifiers.
type Registry struct {
	mu  sync.RWMutex
	ids map[string]string
}

// NewRegistry creates a registry seeded with entries.
func NewRegistry(entries map[string]string) *Registry {
	r := &Registry{ids: make(map[string]string, len(entries))}
	for name, id := range entries {
		r.ids[name] = id
	}
	return r
}

// Register adds or replaces one mapping.
func (r *Registry) Register(name, id string) {
	r.mu.Lock()
	r.ids[name] = id
	r.mu.Unlock()
}

// Replace swaps the whole table, used on config reload.
func (r *Registry) Replace(entries map[string]string) {
	ids := make(map[string]string, len(entries))
	for name, id := range entries {
		ids[name] = id
	}
	r.mu.Lock()
	r.ids = ids
	r.mu.Unlock()
}

// Resolve returns the engine identifier for nameOrID. Identifiers pass
// through unchanged.
func (r *Registry) Resolve(nameOrID string) (string, bool) {
	if IsWorkflowID(nameOrID) {
		return nameOrID, true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.ids[nameOrID]
	return id, ok
}

// Entries returns a copy of the table.
func (r *Registry) Entries() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.ids))
	for k, v := range r.ids {
		out[k] = v
	}
	return out
}
