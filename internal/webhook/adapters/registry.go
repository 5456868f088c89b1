package adapters

import (
	"strings"

	"github.com/veritasweb/payments/internal/webhook/domain"
)

// Registry maps provider tags to their authenticity/parsing adapters.
type Registry struct {
	adapters map[string]domain.Adapter
}

// NewRegistry indexes the given adapters by provider tag.
func NewRegistry(adapters ...domain.Adapter) *Registry {
	registry := &Registry{adapters: map[string]domain.Adapter{}}
	for _, adapter := range adapters {
		if adapter == nil {
			continue
		}
		provider := strings.ToLower(strings.TrimSpace(adapter.Provider()))
		if provider == "" {
			continue
		}
		registry.adapters[provider] = adapter
	}
	return registry
}

// Lookup returns the adapter for the provider tag, if registered.
func (r *Registry) Lookup(provider string) (domain.Adapter, bool) {
	if r == nil {
		return nil, false
	}
	adapter, ok := r.adapters[strings.ToLower(strings.TrimSpace(provider))]
	return adapter, ok
}
