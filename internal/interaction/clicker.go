// Package interaction performs clicks, focus, typing and hovering on resolved
// elements with a single bounded retry for transient driver errors, then
// works out what the action did to the page.
package interaction

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/stepwise/internal/alert"
	"github.com/xkilldash9x/stepwise/internal/assertion"
	"github.com/xkilldash9x/stepwise/internal/config"
	"github.com/xkilldash9x/stepwise/internal/events"
	"github.com/xkilldash9x/stepwise/internal/wait"
	"github.com/xkilldash9x/stepwise/internal/webdriver"
)

// maxAttempts is the first try plus one retry.
const maxAttempts = 2

// ClickResult describes one Click call. Clicked is false only when both
// attempts failed with retryable errors; that failure is recorded in the
// assertion sink rather than returned.
type ClickResult struct {
	Clicked       bool
	NewPageLoaded bool
	AlertPresent  bool
	Attempts      int
	ScriptClick   bool
}

// ContextResetHook is called after a click that did not raise an alert, so
// cached search contexts can be dropped.
type ContextResetHook func(ctx context.Context)

// Clicker is the interaction engine for one driver session.
type Clicker struct {
	driver      webdriver.Driver
	alerts      *alert.Coordinator
	classifier  *Classifier
	sink        assertion.Sink
	events      events.Sink
	reset       ContextResetHook
	settle      wait.Options
	scriptClick map[string]bool
	logger      *zap.Logger
}

// Option configures a Clicker.
type Option func(*Clicker)

// WithClassifier replaces the default error classifier.
func WithClassifier(c *Classifier) Option {
	return func(cl *Clicker) { cl.classifier = c }
}

// WithAssertionSink sets where exhausted retries are recorded.
func WithAssertionSink(s assertion.Sink) Option {
	return func(cl *Clicker) { cl.sink = s }
}

// WithEvents sets the sink for page-load and context-reset notifications.
func WithEvents(s events.Sink) Option {
	return func(cl *Clicker) { cl.events = s }
}

// WithContextReset registers the hook run after a click without an alert.
func WithContextReset(h ContextResetHook) Option {
	return func(cl *Clicker) { cl.reset = h }
}

// WithSettleWait bounds the post-click wait for an alert or page load.
func WithSettleWait(o wait.Options) Option {
	return func(cl *Clicker) { cl.settle = o }
}

// WithScriptClickBrowsers lists browsers on which an intercepted click may be
// replaced by a script click.
func WithScriptClickBrowsers(browsers ...string) Option {
	return func(cl *Clicker) {
		cl.scriptClick = make(map[string]bool, len(browsers))
		for _, b := range browsers {
			cl.scriptClick[strings.ToLower(b)] = true
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(cl *Clicker) { cl.logger = l }
}

// NewClicker creates a Clicker with the default classification table and a
// discarding assertion and event sink.
func NewClicker(driver webdriver.Driver, alerts *alert.Coordinator, opts ...Option) *Clicker {
	c := &Clicker{
		driver:      driver,
		alerts:      alerts,
		classifier:  NewClassifier(DefaultTable()),
		sink:        assertion.Discard,
		events:      events.Discard,
		settle:      wait.DefaultOptions(),
		scriptClick: map[string]bool{},
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("interaction")
	if c.alerts == nil {
		c.alerts = alert.NewCoordinator(driver, c.settle, c.logger)
	}
	return c
}

// NewClickerFromConfig applies the interaction configuration before opts.
func NewClickerFromConfig(driver webdriver.Driver, alerts *alert.Coordinator, cfg config.InteractionConfig, poll wait.Options, opts ...Option) (*Clicker, error) {
	table, err := TableFromConfig(cfg.Classification)
	if err != nil {
		return nil, err
	}
	base := []Option{
		WithClassifier(NewClassifier(table)),
		WithSettleWait(poll.WithTimeout(cfg.PageLoadTimeout)),
		WithScriptClickBrowsers(cfg.ScriptClickBrowsers...),
	}
	return NewClicker(driver, alerts, append(base, opts...)...), nil
}

// Click clicks el natively, retrying once on a retryable error and falling
// back to a script click where the browser allows it. After a successful
// click it checks for an alert first and otherwise waits, bounded, for an
// alert or page-load completion; the context reset hook and exactly one
// PageLoadEnded event follow only when no alert is open.
func (c *Clicker) Click(ctx context.Context, el webdriver.Element) (ClickResult, error) {
	var res ClickResult
	baseline := c.captureRoot(ctx)

	out, err := c.perform(ctx, "click", el, el.Click, true)
	res.Attempts = out.attempts
	res.ScriptClick = out.script
	if err != nil || !out.done {
		return res, err
	}
	res.Clicked = true

	c.afterClick(ctx, baseline, &res)
	return res, nil
}

// Focus focuses el through script.
func (c *Clicker) Focus(ctx context.Context, el webdriver.Element) (bool, error) {
	out, err := c.perform(ctx, "focus", el, func(ctx context.Context) error {
		_, err := c.driver.ExecuteScript(ctx, webdriver.ScriptFocus, el)
		return err
	}, false)
	return out.done, err
}

// Type sends text to el, clearing it first when clearFirst is set. A retry
// repeats the clear.
func (c *Clicker) Type(ctx context.Context, el webdriver.Element, text string, clearFirst bool) (bool, error) {
	out, err := c.perform(ctx, "type", el, func(ctx context.Context) error {
		if clearFirst {
			if err := el.Clear(ctx); err != nil {
				return err
			}
		}
		return el.SendKeys(ctx, text)
	}, false)
	return out.done, err
}

// Clear empties an editable element.
func (c *Clicker) Clear(ctx context.Context, el webdriver.Element) (bool, error) {
	out, err := c.perform(ctx, "clear", el, el.Clear, false)
	return out.done, err
}

// Hover moves the pointer over el by dispatching mouse events in page.
func (c *Clicker) Hover(ctx context.Context, el webdriver.Element) (bool, error) {
	out, err := c.perform(ctx, "hover", el, func(ctx context.Context) error {
		_, err := c.driver.ExecuteScript(ctx, webdriver.ScriptHover, el)
		return err
	}, false)
	return out.done, err
}

type outcome struct {
	done     bool
	attempts int
	script   bool
}

// perform runs act under the Idle -> Clicking -> {Succeeded, Retryable,
// Fatal} machine with one Retryable -> Clicking transition.
func (c *Clicker) perform(ctx context.Context, op string, el webdriver.Element, act func(context.Context) error, allowScript bool) (outcome, error) {
	var out outcome
	browser := strings.ToLower(c.driver.BrowserName())
	var last error

	for out.attempts < maxAttempts {
		out.attempts++
		err := act(ctx)
		class := c.classifier.Classify(err, browser)

		if class == ClassEscalateToScriptClick {
			if allowScript && c.scriptClick[browser] {
				c.logger.Debug("Native click intercepted; clicking through script.", zap.String("element", el.ID()), zap.Error(err))
				if _, serr := c.driver.ExecuteScript(ctx, webdriver.ScriptClick, el); serr != nil {
					return out, fmt.Errorf("script click on element %s after %v: %w", el.ID(), err, serr)
				}
				out.done, out.script = true, true
				return out, nil
			}
			class = ClassRetryable
		}

		switch class {
		case ClassSuccess:
			out.done = true
			return out, nil
		case ClassFatal:
			return out, fmt.Errorf("%s on element %s: %w", op, el.ID(), err)
		}
		last = err
		c.logger.Debug("Retryable interaction error.",
			zap.String("op", op),
			zap.String("element", el.ID()),
			zap.Int("attempt", out.attempts),
			zap.Error(err))
	}

	c.sink.Fail(fmt.Sprintf("%s on element %s failed after %d attempts: %v", op, el.ID(), out.attempts, last))
	return out, nil
}

// captureRoot grabs the document element so a later staleness check can
// tell whether the page was replaced. Failure means "no baseline".
func (c *Clicker) captureRoot(ctx context.Context) webdriver.Element {
	roots, err := c.driver.FindElements(ctx, webdriver.XPath("/html"))
	if err != nil || len(roots) == 0 {
		c.logger.Debug("No baseline root before click.", zap.Error(err))
		return nil
	}
	return roots[0]
}

// Post-click outcomes. The empty string keeps the wait polling.
const (
	settledNeither = ""
	settledAlert   = "alert"
	settledLoaded  = "loaded"
)

func (c *Clicker) afterClick(ctx context.Context, baseline webdriver.Element, res *ClickResult) {
	// An open dialog blocks everything else in the page, so it is checked
	// before anything that would talk to the document.
	if c.alerts.IsAlertPresent(ctx) {
		c.alertOpen(ctx, res)
		return
	}

	cond := wait.NewCondition("alert to be present or document ready state to be complete",
		func(ctx context.Context, _ webdriver.SearchContext) (string, error) {
			if c.alerts.IsAlertPresent(ctx) {
				return settledAlert, nil
			}
			state, err := c.driver.ExecuteScript(ctx, webdriver.ScriptReadyState)
			if err != nil {
				if errors.Is(err, webdriver.ErrUnsupported) {
					return settledLoaded, nil
				}
				return settledNeither, err
			}
			if s, _ := state.(string); s == "complete" {
				return settledLoaded, nil
			}
			return settledNeither, nil
		})
	w := wait.Until(ctx, c.driver, c.settle, cond, false, nil)
	if w.Err != nil && !w.TimedOut() {
		c.logger.Debug("Post-click wait aborted.", zap.Error(w.Err))
	}
	if (w.Passed && w.Value == settledAlert) || (!w.Passed && c.alerts.IsAlertPresent(ctx)) {
		c.alertOpen(ctx, res)
		return
	}

	res.NewPageLoaded = isStale(ctx, baseline)
	if c.reset != nil {
		c.reset(ctx)
		c.post(ctx, events.TypeContextReset, events.ContextReset{Reason: "click"})
	}
	c.post(ctx, events.TypePageLoadEnded, events.PageLoadEnded{NewPageLoaded: res.NewPageLoaded})
}

func (c *Clicker) alertOpen(ctx context.Context, res *ClickResult) {
	res.AlertPresent = true
	text, _ := c.driver.AlertText(ctx)
	c.post(ctx, events.TypeAlertDetected, events.AlertDetected{Text: text})
}

func (c *Clicker) post(ctx context.Context, t events.Type, payload any) {
	if err := c.events.Post(ctx, t, payload); err != nil {
		c.logger.Warn("Could not post interaction event.", zap.String("type", string(t)), zap.Error(err))
	}
}

func isStale(ctx context.Context, el webdriver.Element) bool {
	if el == nil {
		return false
	}
	_, err := el.IsEnabled(ctx)
	return errors.Is(err, webdriver.ErrStaleElement)
}
