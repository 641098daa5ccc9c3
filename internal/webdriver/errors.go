package webdriver

import (
	"errors"
	"fmt"
)

var (
	// ErrStaleElement means a handle no longer refers to a live node.
	ErrStaleElement = errors.New("stale element reference")
	// ErrNoSuchElement means a lookup that required a node found none.
	ErrNoSuchElement = errors.New("no such element")
	// ErrNoAlert means no native dialog is open.
	ErrNoAlert = errors.New("no such alert")
	// ErrNoSuchWindow means the current window has been closed.
	ErrNoSuchWindow = errors.New("no such window")
	// ErrUnsupported means the driver does not implement an operation.
	ErrUnsupported = errors.New("operation not supported by driver")
)

// DriverError is a failure reported by the browser. Message is the raw text
// the browser produced; the interaction engine classifies on it.
type DriverError struct {
	Op      string
	Message string
	Err     error
}

func (e *DriverError) Error() string {
	if e.Op == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *DriverError) Unwrap() error { return e.Err }

// NewDriverError builds a DriverError, optionally wrapping a sentinel.
func NewDriverError(op, message string, sentinel error) *DriverError {
	return &DriverError{Op: op, Message: message, Err: sentinel}
}

// IsTransient reports whether err is one of the errors a poll loop may ignore.
func IsTransient(err error) bool {
	return errors.Is(err, ErrStaleElement) || errors.Is(err, ErrNoSuchElement)
}
