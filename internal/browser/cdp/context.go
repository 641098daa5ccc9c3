package cdp

import (
	"context"
	"time"
)

// CombineContext returns a context carrying primary's values (the chromedp
// tab) that ends when either primary or op ends. op's deadline is applied.
func CombineContext(primary, op context.Context) (context.Context, context.CancelFunc) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if dl, ok := op.Deadline(); ok {
		ctx, cancel = context.WithDeadline(primary, dl)
	} else {
		ctx, cancel = context.WithCancel(primary)
	}
	go func() {
		select {
		case <-op.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (time.Time, bool) { return time.Time{}, false }
func (valueOnlyContext) Done() <-chan struct{}       { return nil }
func (valueOnlyContext) Err() error                  { return nil }

// Detach keeps ctx's values but drops its cancellation, so the browser
// process outlives the context that launched it.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
