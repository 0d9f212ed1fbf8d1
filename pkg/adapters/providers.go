// Package adapters holds the provider registry shared by the llm,
// embedding and vectorstore adapter packages. Providers register a factory
// from an init func and callers build instances by name.
package adapters

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
)

// Registry maps provider names to factories of one adapter kind.
type Registry[F any] struct {
	kind      string
	mu        sync.RWMutex
	factories map[string]F
}

// NewRegistry returns an empty registry; kind prefixes its errors.
func NewRegistry[F any](kind string) *Registry[F] {
	return &Registry[F]{kind: kind, factories: map[string]F{}}
}

// Register adds f under name. Names are unique.
func (r *Registry[F]) Register(name string, f F) error {
	if name == "" {
		return fmt.Errorf("%s: empty provider name", r.kind)
	}
	if v := reflect.ValueOf(f); !v.IsValid() || (v.Kind() == reflect.Func && v.IsNil()) {
		return fmt.Errorf("%s: nil factory for %q", r.kind, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("%s: provider %q already registered", r.kind, name)
	}
	r.factories[name] = f
	return nil
}

// Resolve returns the factory registered under name.
func (r *Registry[F]) Resolve(name string) (F, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Names lists the registered providers in sorted order.
func (r *Registry[F]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Unknown is the error for a provider name nobody registered.
func (r *Registry[F]) Unknown(provider string) error {
	return fmt.Errorf("%s: unknown provider %q (registered: %v)", r.kind, provider, r.Names())
}
