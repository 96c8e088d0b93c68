package agent

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the agents available to a process. It is built once at
// startup by the composition root and passed to callers explicitly; there
// is no global instance.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Agent
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]Agent)}
}

// Register adds an agent under its own name. Registering the same name
// twice is a wiring bug and fails loudly.
func (r *Registry) Register(a Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := a.Name()
	if name == "" {
		return fmt.Errorf("agent has no name")
	}
	if _, exists := r.agents[name]; exists {
		return fmt.Errorf("agent %s already registered", name)
	}
	r.agents[name] = a
	return nil
}

// Get looks up an agent by name.
func (r *Registry) Get(name string) (Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.agents[name]
	if !ok {
		return nil, fmt.Errorf("agent %s not registered", name)
	}
	return a, nil
}

// Names returns the registered agent names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
