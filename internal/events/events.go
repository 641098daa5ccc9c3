// Package events carries interaction notifications (page loads, context
// resets, alerts) from the engines to whoever is listening.
package events

import (
	"context"
	"time"
)

// Type identifies a message on the bus.
type Type string

const (
	TypePageLoadEnded Type = "page_load_ended"
	TypeContextReset  Type = "context_reset"
	TypeAlertDetected Type = "alert_detected"
)

// PageLoadEnded is posted once after every click that did not raise an
// alert. NewPageLoaded is true when the pre-click root element went stale.
type PageLoadEnded struct {
	NewPageLoaded bool
}

// ContextReset is posted when a click invalidates cached search contexts.
type ContextReset struct {
	Reason string
}

// AlertDetected is posted when a click left a native dialog open.
type AlertDetected struct {
	Text string
}

// Message is the envelope delivered to subscribers.
type Message struct {
	ID        string
	Timestamp time.Time
	Type      Type
	Payload   any
}

// Sink is the publishing side of the bus. The engines depend on this and
// nothing else.
type Sink interface {
	Post(ctx context.Context, t Type, payload any) error
}

type discard struct{}

func (discard) Post(context.Context, Type, any) error { return nil }

// Discard is a Sink that drops everything.
var Discard Sink = discard{}
