package ecommerce

import (
	"fmt"
	"sort"

	"github.com/erp/connhub/internal/domain/connection"
)

// Registry resolves platform adapters by code. It is built once at startup and is
// read-only afterwards.
type Registry struct {
	adapters map[connection.PlatformCode]connection.PlatformAdapter
	codes    []connection.PlatformCode
}

// NewRegistry creates a registry from the enabled adapters. Registering two adapters
// for the same platform is an error.
func NewRegistry(adapters ...connection.PlatformAdapter) (*Registry, error) {
	r := &Registry{
		adapters: make(map[connection.PlatformCode]connection.PlatformAdapter, len(adapters)),
	}
	for _, adapter := range adapters {
		code := adapter.PlatformCode()
		if _, exists := r.adapters[code]; exists {
			return nil, fmt.Errorf("ecommerce: duplicate adapter for platform %s", code)
		}
		r.adapters[code] = adapter
		r.codes = append(r.codes, code)
	}
	sort.Slice(r.codes, func(i, j int) bool { return r.codes[i] < r.codes[j] })
	return r, nil
}

// Get returns the adapter for a platform
func (r *Registry) Get(code connection.PlatformCode) (connection.PlatformAdapter, error) {
	adapter, ok := r.adapters[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", connection.ErrPlatformNotSupported, code)
	}
	return adapter, nil
}

// List returns the registered platform codes
func (r *Registry) List() []connection.PlatformCode {
	codes := make([]connection.PlatformCode, len(r.codes))
	copy(codes, r.codes)
	return codes
}

// Ensure Registry implements AdapterRegistry
var _ connection.AdapterRegistry = (*Registry)(nil)
