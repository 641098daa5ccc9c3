package search

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/stepwise/internal/locator"
	"github.com/xkilldash9x/stepwise/internal/webdriver"
)

// Result is the ordered match set of a resolution. Duplicates are kept: a
// repeated DOM structure legitimately yields repeated handles.
type Result []webdriver.Element

// Len returns the number of matches.
func (r Result) Len() int { return len(r) }

// IDs returns the driver ids of the matches in order.
func (r Result) IDs() []string {
	ids := make([]string, len(r))
	for i, el := range r {
		ids[i] = el.ID()
	}
	return ids
}

// Describe renders the match set for logs and failure messages.
func (r Result) Describe() string {
	return fmt.Sprintf("%d element(s) [%s]", len(r), strings.Join(r.IDs(), ", "))
}

// Engine resolves locators against a search context. It never waits and
// never retries; those concerns belong to the wait package.
type Engine struct {
	registry *Registry
	logger   *zap.Logger
}

// NewEngine creates an engine over registry. A nil logger disables logging.
func NewEngine(registry *Registry, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{registry: registry, logger: logger.Named("search")}
}

// Registry returns the registry the engine dispatches through.
func (e *Engine) Registry() *Registry { return e.registry }

// FindElements resolves loc against sc:
//  1. the primary strategy produces the initial ordered list,
//  2. each filter narrows it in order,
//  3. the visibility parameter is applied,
//  4. each child locator is resolved against every surviving element and the
//     concatenation replaces the parent set.
//
// Visibility always applies to the elements a locator itself matched, so a
// child with its own visibility keeps it: an INVISIBLE child under a VISIBLE
// parent finds the hidden descendants of the displayed parents.
//
// The full set is always returned; deciding what 0 or 2+ matches mean is the
// caller's job.
func (e *Engine) FindElements(ctx context.Context, sc webdriver.SearchContext, loc locator.Locator) (Result, error) {
	if loc.IsZero() {
		return nil, &locator.InvalidLocatorError{Reason: "locator was not constructed"}
	}

	strategy, err := e.registry.ResolveStrategy(loc.Type())
	if err != nil {
		return nil, err
	}
	// Resolve every filter before touching the browser so a configuration gap
	// surfaces even when the primary lookup finds nothing.
	filters := loc.Filters()
	fns := make([]Filter, len(filters))
	for i, f := range filters {
		if fns[i], err = e.registry.ResolveFilter(f.Type); err != nil {
			return nil, err
		}
	}

	elements, err := strategy(ctx, sc, loc.Value(), loc.Parameters())
	if err != nil {
		return nil, fmt.Errorf("searching for%s: %w", loc, err)
	}
	e.logger.Debug("Primary strategy resolved.",
		zap.Stringer("type", loc.Type()), zap.String("value", loc.Value()), zap.Int("matches", len(elements)))

	for i, f := range filters {
		elements, err = fns[i](ctx, elements, f.Value)
		if err != nil {
			return nil, fmt.Errorf("applying%s %w", f, err)
		}
	}

	elements, err = FilterVisibility(ctx, elements, loc.Parameters().Visibility)
	if err != nil {
		return nil, fmt.Errorf("applying visibility %s: %w", loc.Parameters().Visibility, err)
	}

	if children := loc.Children(); len(children) > 0 {
		var scoped []webdriver.Element
		for _, parent := range elements {
			for _, child := range children {
				matches, err := e.FindElements(ctx, parent, child)
				if err != nil {
					return nil, err
				}
				scoped = append(scoped, matches...)
			}
		}
		elements = scoped
	}

	if elements == nil {
		elements = []webdriver.Element{}
	}
	return Result(elements), nil
}

// FilterVisibility keeps displayed elements for Visible, hidden ones for
// Invisible and everything for All. Order is preserved.
func FilterVisibility(ctx context.Context, elements []webdriver.Element, v locator.Visibility) ([]webdriver.Element, error) {
	if v == locator.All {
		return elements, nil
	}
	want := v == locator.Visible
	out := make([]webdriver.Element, 0, len(elements))
	for _, el := range elements {
		displayed, err := el.IsDisplayed(ctx)
		if err != nil {
			return nil, err
		}
		if displayed == want {
			out = append(out, el)
		}
	}
	return out, nil
}
