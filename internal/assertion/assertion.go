// Package assertion records soft failures: checks that fail a step without
// aborting the rest of the flow. The step layer owns a Recorder and reads it
// after each step; nothing recorded here is ever dropped.
package assertion

import (
	"errors"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Sink receives soft failures.
type Sink interface {
	Fail(msg string)
}

// Recorder is a thread-safe Sink that keeps every failure in order.
type Recorder struct {
	mu       sync.Mutex
	logger   *zap.Logger
	failures []string
}

var _ Sink = (*Recorder)(nil)

// NewRecorder creates an empty recorder. A nil logger disables logging.
func NewRecorder(logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{logger: logger.Named("assertion")}
}

// Fail implements Sink.
func (r *Recorder) Fail(msg string) {
	r.mu.Lock()
	r.failures = append(r.failures, msg)
	r.mu.Unlock()
	r.logger.Warn("Soft assertion failed.", zap.String("failure", msg))
}

// Failures returns a copy of the recorded messages.
func (r *Recorder) Failures() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.failures...)
}

// Count returns the number of recorded failures.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.failures)
}

// Err combines every failure into one error, or nil when none were recorded.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var err error
	for _, f := range r.failures {
		err = multierr.Append(err, errors.New(f))
	}
	return err
}

// Reset clears the recorder between steps and returns what it held.
func (r *Recorder) Reset() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.failures
	r.failures = nil
	return out
}

// Discard is a Sink that drops failures. It exists for callers that pass
// recordFailure=false and still need a non-nil sink.
var Discard Sink = discard{}

type discard struct{}

func (discard) Fail(string) {}
