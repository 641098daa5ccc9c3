// Package search resolves locators into concrete elements. A Registry maps
// every locator attribute type and filter type to its implementation; the
// Engine walks a Locator (primary strategy, filters, children, visibility)
// against a search context.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/xkilldash9x/stepwise/internal/locator"
	"github.com/xkilldash9x/stepwise/internal/webdriver"
)

// Strategy performs the initial lookup for one attribute type.
type Strategy func(ctx context.Context, sc webdriver.SearchContext, value string, params locator.SearchParameters) ([]webdriver.Element, error)

// Filter narrows a match set. Implementations must return an order-preserving
// subset of their input.
type Filter func(ctx context.Context, elements []webdriver.Element, value string) ([]webdriver.Element, error)

// UnsupportedLocatorError is a configuration error: no implementation is
// registered for the requested type. It is never retried.
type UnsupportedLocatorError struct {
	Kind string
}

func (e *UnsupportedLocatorError) Error() string {
	return fmt.Sprintf("unsupported locator: no implementation registered for %s", e.Kind)
}

// Registry is a lookup table built once at startup.
type Registry struct {
	strategies map[locator.AttributeType]Strategy
	filters    map[locator.FilterType]Filter
}

// RegistryOption customises a Registry under construction.
type RegistryOption func(*Registry)

// WithStrategy registers or replaces the strategy for t.
func WithStrategy(t locator.AttributeType, s Strategy) RegistryOption {
	return func(r *Registry) { r.strategies[t] = s }
}

// WithFilter registers or replaces the filter for t.
func WithFilter(t locator.FilterType, f Filter) RegistryOption {
	return func(r *Registry) { r.filters[t] = f }
}

// WithBuiltins registers every built-in strategy and filter.
func WithBuiltins() RegistryOption {
	return func(r *Registry) {
		for t, s := range builtinStrategies() {
			r.strategies[t] = s
		}
		for t, f := range builtinFilters() {
			r.filters[t] = f
		}
	}
}

// NewRegistry builds a registry from the given options. An empty option list
// yields an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		strategies: make(map[locator.AttributeType]Strategy),
		filters:    make(map[locator.FilterType]Filter),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DefaultRegistry returns a registry populated with the built-ins, followed by
// any overrides.
func DefaultRegistry(overrides ...RegistryOption) *Registry {
	return NewRegistry(append([]RegistryOption{WithBuiltins()}, overrides...)...)
}

// ResolveStrategy returns the strategy for t.
func (r *Registry) ResolveStrategy(t locator.AttributeType) (Strategy, error) {
	s, ok := r.strategies[t]
	if !ok || s == nil {
		return nil, &UnsupportedLocatorError{Kind: "attribute type " + t.String()}
	}
	return s, nil
}

// ResolveFilter returns the filter for t.
func (r *Registry) ResolveFilter(t locator.FilterType) (Filter, error) {
	f, ok := r.filters[t]
	if !ok || f == nil {
		return nil, &UnsupportedLocatorError{Kind: "filter type " + t.String()}
	}
	return f, nil
}

// Validate reports every enum member that has no implementation. Call it at
// startup so a gap surfaces before the first step runs.
func (r *Registry) Validate() error {
	var missing []string
	for _, t := range locator.AttributeTypes() {
		if _, err := r.ResolveStrategy(t); err != nil {
			missing = append(missing, "attribute type "+t.String())
		}
	}
	for _, t := range locator.FilterTypes() {
		if _, err := r.ResolveFilter(t); err != nil {
			missing = append(missing, "filter type "+t.String())
		}
	}
	if len(missing) > 0 {
		return &UnsupportedLocatorError{Kind: strings.Join(missing, ", ")}
	}
	return nil
}
