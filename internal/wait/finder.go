package wait

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/stepwise/internal/locator"
	"github.com/xkilldash9x/stepwise/internal/search"
	"github.com/xkilldash9x/stepwise/internal/webdriver"
)

var (
	// ErrNotFound is returned by FindOne when nothing matched.
	ErrNotFound = errors.New("no element found")
	// ErrNotUnique is returned by FindOne when several elements matched a
	// locator that does not allow MatchAll.
	ErrNotUnique = errors.New("more than one element found")
)

// Finder composes the search engine with patience. Raw engine calls never
// wait or retry; Finder decides per locator whether to poll.
type Finder struct {
	engine *search.Engine
	opts   Options
	logger *zap.Logger
}

// NewFinder creates a Finder with default wait options.
func NewFinder(engine *search.Engine, opts Options, logger *zap.Logger) *Finder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Finder{engine: engine, opts: opts, logger: logger.Named("finder")}
}

// Engine returns the underlying search engine.
func (f *Finder) Engine() *search.Engine { return f.engine }

// Options returns the default wait options.
func (f *Finder) Options() Options { return f.opts }

// FindElements resolves loc with the finder's default options.
func (f *Finder) FindElements(ctx context.Context, root webdriver.SearchContext, loc locator.Locator) (search.Result, error) {
	return f.FindElementsWith(ctx, root, loc, f.opts)
}

// FindElementsWith resolves loc from root. When the locator asks to wait for
// its element, the engine is polled until something matches or opts.Timeout
// elapses; a timeout yields an empty result, not an error. Otherwise the
// engine is called once, and a transient error is retried exactly once by
// re-resolving from root.
func (f *Finder) FindElementsWith(ctx context.Context, root webdriver.SearchContext, loc locator.Locator, opts Options) (search.Result, error) {
	if loc.Parameters().WaitForElement {
		res := Until(ctx, root, opts, PresenceOf(f.engine, loc), false, nil)
		switch {
		case res.Passed:
			return res.Value, nil
		case res.TimedOut():
			f.logger.Debug("No element appeared before timeout.", zap.String("locator", loc.String()), zap.Duration("timeout", opts.Timeout))
			return search.Result{}, nil
		default:
			return nil, res.Err
		}
	}

	res, err := f.engine.FindElements(ctx, root, loc)
	if err != nil && webdriver.IsTransient(err) {
		f.logger.Debug("Transient error during search, re-resolving from root.", zap.Error(err))
		res, err = f.engine.FindElements(ctx, root, loc)
	}
	return res, err
}

// FindOne applies the call-site "exactly one" rule: zero matches is
// ErrNotFound, several matches is ErrNotUnique unless the locator allows
// MatchAll, in which case the first match is returned.
func (f *Finder) FindOne(ctx context.Context, root webdriver.SearchContext, loc locator.Locator) (webdriver.Element, error) {
	return f.FindOneWith(ctx, root, loc, f.opts)
}

// FindOneWith is FindOne with explicit wait options.
func (f *Finder) FindOneWith(ctx context.Context, root webdriver.SearchContext, loc locator.Locator, opts Options) (webdriver.Element, error) {
	res, err := f.FindElementsWith(ctx, root, loc, opts)
	if err != nil {
		return nil, err
	}
	switch {
	case res.Len() == 0:
		return nil, fmt.Errorf("%w with search attributes:%s", ErrNotFound, loc)
	case res.Len() > 1 && !loc.Parameters().MatchAll:
		return nil, fmt.Errorf("%w (%d) with search attributes:%s", ErrNotUnique, res.Len(), loc)
	}
	return res[0], nil
}
