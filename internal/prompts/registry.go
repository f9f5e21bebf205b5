package prompts

import (
	"fmt"
	"sync"
)

type promptKey struct {
	id      string
	version PromptVersion
}

// PromptRegistry holds prompts by id and version.
type PromptRegistry struct {
	mu      sync.RWMutex
	prompts map[promptKey]*Prompt
}

var (
	defaultRegistry     *PromptRegistry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the registry the role prompts are registered in.
func DefaultRegistry() *PromptRegistry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewPromptRegistry()
	})
	return defaultRegistry
}

func NewPromptRegistry() *PromptRegistry {
	return &PromptRegistry{prompts: make(map[promptKey]*Prompt)}
}

// Register adds p. Registering the same id and version twice is an error.
func (r *PromptRegistry) Register(p *Prompt) error {
	if p == nil || p.ID == "" || p.Version == "" {
		return fmt.Errorf("prompt needs an id and a version")
	}
	k := promptKey{p.ID, p.Version}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.prompts[k]; dup {
		return fmt.Errorf("prompt %s version %s already registered", p.ID, p.Version)
	}
	r.prompts[k] = p
	return nil
}

// MustRegister is Register for package initialization.
func (r *PromptRegistry) MustRegister(p *Prompt) {
	if err := r.Register(p); err != nil {
		panic(err)
	}
}

func (r *PromptRegistry) Get(id string, version PromptVersion) (*Prompt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.prompts[promptKey{id, version}]
	if !ok {
		return nil, fmt.Errorf("prompt %s version %s not found", id, version)
	}
	return p, nil
}
