package codegen

import (
	"fmt"
	"sort"
)

// Factory builds a generator for one run
type Factory func(opts Options) Generator

// Registry maps dialect names to generator factories
type Registry struct {
	generators map[string]Factory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{generators: make(map[string]Factory)}
}

// Register adds or replaces the factory for a dialect
func (r *Registry) Register(language string, factory Factory) {
	r.generators[language] = factory
}

// Get returns a generator for the dialect
func (r *Registry) Get(language string, opts Options) (Generator, error) {
	factory, exists := r.generators[language]
	if !exists {
		return nil, fmt.Errorf("unsupported language: %s", language)
	}
	return factory(opts), nil
}

// Languages lists the registered dialects in sorted order
func (r *Registry) Languages() []string {
	languages := make([]string, 0, len(r.generators))
	for lang := range r.generators {
		languages = append(languages, lang)
	}
	sort.Strings(languages)
	return languages
}
