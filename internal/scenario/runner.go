package scenario

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/stepwise/internal/alert"
	"github.com/xkilldash9x/stepwise/internal/assertion"
	"github.com/xkilldash9x/stepwise/internal/config"
	"github.com/xkilldash9x/stepwise/internal/events"
	"github.com/xkilldash9x/stepwise/internal/interaction"
	"github.com/xkilldash9x/stepwise/internal/search"
	"github.com/xkilldash9x/stepwise/internal/wait"
	"github.com/xkilldash9x/stepwise/internal/webdriver"
)

// Outcome classifies a finished step.
type Outcome int

const (
	// Passed means the step did what it asked.
	Passed Outcome = iota
	// SoftFailed means the step recorded assertion failures but the
	// scenario continued.
	SoftFailed
	// Fatal means the step returned an error and the scenario stopped.
	Fatal
	// Skipped steps come after a fatal one.
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Passed:
		return "passed"
	case SoftFailed:
		return "soft-failed"
	case Fatal:
		return "fatal"
	case Skipped:
		return "skipped"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// StepResult is the record of one step.
type StepResult struct {
	Index     int
	Name      string
	Action    Action
	Outcome   Outcome
	Failures  []string
	Err       error
	Matched   int
	Click     *interaction.ClickResult
	AlertText string
	Elapsed   time.Duration
}

// Report is the result of running one scenario.
type Report struct {
	Scenario      string
	Steps         []StepResult
	ContextResets int
	Elapsed       time.Duration
}

// Count returns how many steps ended with o.
func (r Report) Count(o Outcome) int {
	n := 0
	for _, s := range r.Steps {
		if s.Outcome == o {
			n++
		}
	}
	return n
}

// Passed reports whether every step passed.
func (r Report) Passed() bool {
	return r.Count(Passed) == len(r.Steps)
}

// Err combines the fatal error and every soft failure, or nil.
func (r Report) Err() error {
	var err error
	for _, s := range r.Steps {
		for _, f := range s.Failures {
			err = multierr.Append(err, fmt.Errorf("%s: %s", s.Name, f))
		}
		if s.Err != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", s.Name, s.Err))
		}
	}
	return err
}

// Runner executes scenarios against one driver session. A Runner runs one
// scenario at a time.
type Runner struct {
	driver   webdriver.Driver
	finder   *wait.Finder
	alerts   *alert.Coordinator
	clicker  *interaction.Clicker
	recorder *assertion.Recorder
	limiter  *rate.Limiter
	logger   *zap.Logger
	resets   atomic.Int64
}

type runnerOptions struct {
	wait        wait.Options
	alertWait   wait.Options
	interaction *config.InteractionConfig
	registry    *search.Registry
	events      events.Sink
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// Option configures a Runner.
type Option func(*runnerOptions)

// WithWait sets the default bounds for element waits.
func WithWait(o wait.Options) Option {
	return func(ro *runnerOptions) { ro.wait = o }
}

// WithAlertWait sets the bounds for alert steps.
func WithAlertWait(o wait.Options) Option {
	return func(ro *runnerOptions) { ro.alertWait = o }
}

// WithInteraction applies the interaction configuration to the clicker.
func WithInteraction(cfg config.InteractionConfig) Option {
	return func(ro *runnerOptions) { ro.interaction = &cfg }
}

// WithRegistry replaces the default search strategy registry.
func WithRegistry(r *search.Registry) Option {
	return func(ro *runnerOptions) { ro.registry = r }
}

// WithEvents forwards page-load notifications to s.
func WithEvents(s events.Sink) Option {
	return func(ro *runnerOptions) { ro.events = s }
}

// WithStepRate paces steps to at most r per second. Zero leaves steps
// unpaced.
func WithStepRate(r float64) Option {
	return func(ro *runnerOptions) {
		if r > 0 {
			ro.limiter = rate.NewLimiter(rate.Limit(r), 1)
		} else {
			ro.limiter = nil
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(ro *runnerOptions) { ro.logger = l }
}

// NewRunner wires the engines around driver.
func NewRunner(driver webdriver.Driver, opts ...Option) (*Runner, error) {
	ro := runnerOptions{
		wait:      wait.DefaultOptions(),
		alertWait: wait.Options{Timeout: 2 * time.Second, Poll: 100 * time.Millisecond},
		events:    events.Discard,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&ro)
	}
	if ro.registry == nil {
		ro.registry = search.DefaultRegistry()
	}
	if err := ro.registry.Validate(); err != nil {
		return nil, fmt.Errorf("search registry: %w", err)
	}

	logger := ro.logger.Named("scenario")
	r := &Runner{
		driver:   driver,
		finder:   wait.NewFinder(search.NewEngine(ro.registry, ro.logger), ro.wait, ro.logger),
		alerts:   alert.NewCoordinator(driver, ro.alertWait, ro.logger),
		recorder: assertion.NewRecorder(ro.logger),
		limiter:  ro.limiter,
		logger:   logger,
	}

	clickOpts := []interaction.Option{
		interaction.WithAssertionSink(r.recorder),
		interaction.WithEvents(ro.events),
		interaction.WithContextReset(func(context.Context) { r.resets.Add(1) }),
		interaction.WithLogger(ro.logger),
	}
	if ro.interaction != nil {
		c, err := interaction.NewClickerFromConfig(driver, r.alerts, *ro.interaction, ro.wait, clickOpts...)
		if err != nil {
			return nil, fmt.Errorf("interaction config: %w", err)
		}
		r.clicker = c
	} else {
		r.clicker = interaction.NewClicker(driver, r.alerts, clickOpts...)
	}
	return r, nil
}

// Run executes sc step by step. A fatal step stops the scenario and the
// rest are reported as skipped; soft failures do not.
func (r *Runner) Run(ctx context.Context, sc *Scenario) Report {
	start := time.Now()
	r.resets.Store(0)
	r.recorder.Reset()

	steps := sc.Steps
	if sc.URL != "" {
		steps = append([]Step{{Name: "open " + sc.URL, Action: ActionNavigate, URL: sc.URL}}, steps...)
	}

	report := Report{Scenario: sc.Name, Steps: make([]StepResult, 0, len(steps))}
	stopped := false
	for i, step := range steps {
		sr := StepResult{Index: i, Name: step.Label(i), Action: step.Action}
		if stopped {
			sr.Outcome = Skipped
			report.Steps = append(report.Steps, sr)
			continue
		}

		stepStart := time.Now()
		err := r.pace(ctx)
		if err == nil {
			err = r.exec(ctx, step, &sr)
		}
		sr.Elapsed = time.Since(stepStart)
		sr.Failures = r.recorder.Reset()
		switch {
		case err != nil:
			sr.Outcome = Fatal
			sr.Err = err
			stopped = true
			r.logger.Error("Step failed.", zap.String("scenario", sc.Name), zap.String("step", sr.Name), zap.Error(err))
		case len(sr.Failures) > 0:
			sr.Outcome = SoftFailed
			r.logger.Warn("Step soft-failed.", zap.String("scenario", sc.Name), zap.String("step", sr.Name), zap.Strings("failures", sr.Failures))
		default:
			sr.Outcome = Passed
			r.logger.Debug("Step passed.", zap.String("scenario", sc.Name), zap.String("step", sr.Name), zap.Duration("elapsed", sr.Elapsed))
		}
		report.Steps = append(report.Steps, sr)
	}

	report.ContextResets = int(r.resets.Load())
	report.Elapsed = time.Since(start)
	r.logger.Info("Scenario finished.",
		zap.String("scenario", sc.Name),
		zap.Int("passed", report.Count(Passed)),
		zap.Int("soft_failed", report.Count(SoftFailed)),
		zap.Int("fatal", report.Count(Fatal)),
		zap.Int("context_resets", report.ContextResets),
	)
	return report
}

func (r *Runner) pace(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	return r.limiter.Wait(ctx)
}

func (r *Runner) exec(ctx context.Context, step Step, sr *StepResult) error {
	opts := r.finder.Options()
	if step.Timeout > 0 {
		opts = opts.WithTimeout(step.Timeout)
	}
	loc := step.Target()

	switch step.Action {
	case ActionNavigate:
		nav, ok := r.driver.(webdriver.Navigator)
		if !ok {
			return fmt.Errorf("navigate: %w", webdriver.ErrUnsupported)
		}
		return nav.Navigate(ctx, step.URL)

	case ActionFind:
		res, err := r.finder.FindElementsWith(ctx, r.driver, loc, opts)
		if err != nil {
			return err
		}
		sr.Matched = res.Len()
		if res.Len() == 0 {
			r.recorder.Fail("no element found with search attributes:" + loc.String())
		}
		return nil

	case ActionWaitVisible:
		res := wait.Until(ctx, r.driver, opts, wait.VisibilityOf(r.finder.Engine(), loc), true, r.recorder)
		sr.Matched = res.Value.Len()
		return waitErr(res.Err, res.TimedOut())

	case ActionWaitInvisible:
		res := wait.Until(ctx, r.driver, opts, wait.InvisibilityOf(r.finder.Engine(), loc), true, r.recorder)
		return waitErr(res.Err, res.TimedOut())

	case ActionAcceptAlert, ActionDismissAlert:
		return r.handleAlert(ctx, step, sr)
	}

	el, err := r.finder.FindOneWith(ctx, r.driver, loc, opts)
	switch {
	case errors.Is(err, wait.ErrNotFound), errors.Is(err, wait.ErrNotUnique):
		r.recorder.Fail(err.Error())
		return nil
	case err != nil:
		return err
	}
	sr.Matched = 1

	switch step.Action {
	case ActionClick:
		res, err := r.clicker.Click(ctx, el)
		sr.Click = &res
		return err
	case ActionType:
		_, err = r.clicker.Type(ctx, el, step.Text, step.Clear)
	case ActionFocus:
		_, err = r.clicker.Focus(ctx, el)
	case ActionHover:
		_, err = r.clicker.Hover(ctx, el)
	default:
		err = fmt.Errorf("unknown action %q", step.Action)
	}
	return err
}

// waitErr keeps timeouts soft; they were recorded by the wait.
func waitErr(err error, timedOut bool) error {
	if err == nil || timedOut {
		return nil
	}
	return err
}

func (r *Runner) handleAlert(ctx context.Context, step Step, sr *StepResult) error {
	var present bool
	if step.Timeout > 0 {
		present = r.alerts.WaitForAlertWith(ctx, r.finder.Options().WithTimeout(step.Timeout))
	} else {
		present = r.alerts.WaitForAlert(ctx)
	}
	if !present {
		r.recorder.Fail("no alert present")
		return nil
	}
	if text, err := r.alerts.Text(ctx); err == nil {
		sr.AlertText = text
	}

	var err error
	switch {
	case step.Action == ActionDismissAlert:
		err = r.alerts.Dismiss(ctx)
	case step.Text != "":
		if err = r.alerts.SendKeys(ctx, step.Text); err == nil {
			err = r.alerts.Accept(ctx)
		}
	default:
		err = r.alerts.Accept(ctx)
	}
	if errors.Is(err, webdriver.ErrNoAlert) {
		r.recorder.Fail("alert closed before it could be handled")
		return nil
	}
	return err
}
