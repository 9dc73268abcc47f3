package providers

import (
	"fmt"
	"sort"
	"strings"
)

// Registry manages the available adapters of one kind
type Registry[T Named] struct {
	providers map[string]T
}

// NewRegistry creates a new provider registry
func NewRegistry[T Named]() *Registry[T] {
	return &Registry[T]{
		providers: make(map[string]T),
	}
}

// Register adds a provider to the registry
func (r *Registry[T]) Register(provider T) {
	r.providers[strings.ToLower(provider.Name())] = provider
}

// Get retrieves a provider by name
func (r *Registry[T]) Get(name string) (T, error) {
	provider, exists := r.providers[strings.ToLower(name)]
	if !exists {
		var zero T
		return zero, fmt.Errorf("provider %s not found (available: %s)", name, strings.Join(r.List(), ", "))
	}
	return provider, nil
}

// List returns all available provider names, sorted
func (r *Registry[T]) List() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasProvider checks if a provider is registered
func (r *Registry[T]) HasProvider(name string) bool {
	_, exists := r.providers[strings.ToLower(name)]
	return exists
}
