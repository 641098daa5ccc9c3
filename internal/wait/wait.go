// Package wait polls conditions against a search context until they produce a
// truthy value or a timeout elapses. Every call carries its own timeout and
// polling interval; there is no shared wait state to leak between flows.
package wait

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/xkilldash9x/stepwise/internal/assertion"
	"github.com/xkilldash9x/stepwise/internal/config"
	"github.com/xkilldash9x/stepwise/internal/webdriver"
)

// minPoll guards against a busy loop when a caller passes a zero interval.
const minPoll = 5 * time.Millisecond

// Options bound a single wait.
type Options struct {
	Timeout time.Duration
	Poll    time.Duration
}

// Bounds used when nothing is configured.
const (
	DefaultTimeout = 10 * time.Second
	DefaultPoll    = 500 * time.Millisecond
)

// DefaultOptions returns the unconfigured bounds.
func DefaultOptions() Options {
	return Options{Timeout: DefaultTimeout, Poll: DefaultPoll}
}

// OptionsFrom converts configured defaults into Options.
func OptionsFrom(cfg config.WaitConfig) Options {
	return Options{Timeout: cfg.Timeout, Poll: cfg.PollInterval}
}

// WithTimeout returns a copy with a different timeout.
func (o Options) WithTimeout(d time.Duration) Options {
	o.Timeout = d
	return o
}

// WithPoll returns a copy with a different polling interval.
func (o Options) WithPoll(d time.Duration) Options {
	o.Poll = d
	return o
}

// Condition is evaluated on every poll. String describes it for failure
// messages, e.g. "visibility of element with search attributes: ...".
type Condition[T any] interface {
	Evaluate(ctx context.Context, sc webdriver.SearchContext) (T, error)
	String() string
}

type funcCondition[T any] struct {
	desc string
	fn   func(ctx context.Context, sc webdriver.SearchContext) (T, error)
}

func (c funcCondition[T]) Evaluate(ctx context.Context, sc webdriver.SearchContext) (T, error) {
	return c.fn(ctx, sc)
}

func (c funcCondition[T]) String() string { return c.desc }

// NewCondition adapts a function into a described Condition.
func NewCondition[T any](desc string, fn func(ctx context.Context, sc webdriver.SearchContext) (T, error)) Condition[T] {
	return funcCondition[T]{desc: desc, fn: fn}
}

// Result is the outcome of a wait. When Passed is true, Value is truthy.
type Result[T any] struct {
	Passed  bool
	Value   T
	Err     error
	Elapsed time.Duration
	Polls   int
}

// TimedOut reports whether the wait ended on its timeout, as opposed to an
// aborting error.
func (r Result[T]) TimedOut() bool {
	var te *TimeoutError
	return errors.As(r.Err, &te)
}

// TimeoutError is the first-class timeout outcome. Cause is the last ignored
// error seen while polling, if any.
type TimeoutError struct {
	Condition string
	Timeout   time.Duration
	Cause     error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("timed out after %v waiting for %s", e.Timeout, e.Condition)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *TimeoutError) Unwrap() error { return e.Cause }

// Until polls cond against sc. Stale-element and no-such-element errors are
// treated as "not yet"; any other error ends the wait immediately. On timeout
// the failure is recorded in sink when recordFailure is set.
//
// The sleep between polls is clipped to the remaining time, so a wait that
// never passes returns after at least opts.Timeout and before
// opts.Timeout+opts.Poll (plus the cost of the final evaluation).
func Until[T any](ctx context.Context, sc webdriver.SearchContext, opts Options, cond Condition[T], recordFailure bool, sink assertion.Sink) Result[T] {
	poll := opts.Poll
	if poll < minPoll {
		poll = minPoll
	}

	var (
		res     Result[T]
		lastErr error
		start   = time.Now()
	)
	for {
		res.Polls++
		v, err := cond.Evaluate(ctx, sc)
		res.Value = v
		switch {
		case err == nil && Truthy(v):
			res.Passed = true
			res.Elapsed = time.Since(start)
			return res
		case err != nil && !webdriver.IsTransient(err):
			res.Err = fmt.Errorf("waiting for %s: %w", cond, err)
			res.Elapsed = time.Since(start)
			return res
		case err != nil:
			lastErr = err
		}

		elapsed := time.Since(start)
		if elapsed >= opts.Timeout {
			res.Elapsed = elapsed
			te := &TimeoutError{Condition: cond.String(), Timeout: opts.Timeout, Cause: lastErr}
			res.Err = te
			if recordFailure && sink != nil {
				sink.Fail(te.Error())
			}
			return res
		}

		sleep := poll
		if remaining := opts.Timeout - elapsed; remaining < sleep {
			sleep = remaining
		}
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			res.Err = ctx.Err()
			res.Elapsed = time.Since(start)
			return res
		case <-timer.C:
		}
	}
}

// Truthy reports whether v counts as a passing condition value: non-nil,
// non-false, and non-empty for strings, slices and maps.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return !rv.IsNil() && rv.Len() > 0
	case reflect.Ptr, reflect.Interface, reflect.Chan, reflect.Func:
		return !rv.IsNil()
	}
	return true
}
