package config

import (
	"fmt"
	"sync"

	"github.com/loreforge/loreforge/pkg/llm"
)

// ErrProviderNotRegistered is returned when a configured provider name has
// no registered factory.
var ErrProviderNotRegistered = fmt.Errorf("config: provider not registered")

// ProviderFactory builds an LLM provider from its configuration entry.
type ProviderFactory func(entry ProviderEntry) (llm.Provider, error)

// Registry maps provider names to factories. Binaries register the
// providers they link in; the loader only records the name.
type Registry struct {
	mu  sync.RWMutex
	llm map[string]ProviderFactory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{llm: make(map[string]ProviderFactory)}
}

// RegisterLLM registers a factory under a provider name, replacing any
// previous registration.
func (r *Registry) RegisterLLM(name string, factory ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// CreateLLM builds the provider named in the entry.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.llm[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// Names returns the registered provider names, unordered.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.llm))
	for name := range r.llm {
		names = append(names, name)
	}
	return names
}
