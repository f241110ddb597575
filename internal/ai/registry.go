package ai

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

type ProviderFactory func(model string) (Provider, error)

// Registry maps AI_PROVIDER names to completion backends.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

func (r *Registry) Register(name string, f ProviderFactory) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

func (r *Registry) Get(name string, model string) (Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown ai provider %q (have %s)", name, strings.Join(r.Names(), ", "))
	}
	return f(model)
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for n := range r.factories {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Configured reports whether p carries the credentials it needs. Providers
// without credentials (local Ollama) are always configured.
func Configured(p Provider) bool {
	if p == nil {
		return false
	}
	if c, ok := p.(interface{ Configured() bool }); ok {
		return c.Configured()
	}
	return true
}
