// Package alert detects and consumes native browser dialogs (alert, confirm,
// prompt) that an action may have raised.
package alert

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/stepwise/internal/wait"
	"github.com/xkilldash9x/stepwise/internal/webdriver"
)

// Coordinator wraps a driver's dialog handling with presence checks that
// never fail and a native-context fallback for hybrid drivers.
type Coordinator struct {
	driver webdriver.Driver
	opts   wait.Options
	logger *zap.Logger
}

// NewCoordinator creates a Coordinator. opts bounds WaitForAlert.
func NewCoordinator(driver webdriver.Driver, opts wait.Options, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{driver: driver, opts: opts, logger: logger.Named("alert")}
}

// IsAlertPresent reports whether a dialog is open. It never returns an error:
// "no alert" is false, and "no such window" is false after falling back to
// the first remaining window so later calls have a window to talk to.
func (c *Coordinator) IsAlertPresent(ctx context.Context) bool {
	_, err := c.driver.AlertText(ctx)
	switch {
	case err == nil:
		return true
	case errors.Is(err, webdriver.ErrNoAlert):
		return false
	case errors.Is(err, webdriver.ErrNoSuchWindow):
		c.fallbackToFirstWindow(ctx)
		return false
	default:
		c.logger.Debug("Alert check failed; treating as no alert.", zap.Error(err))
		return false
	}
}

func (c *Coordinator) fallbackToFirstWindow(ctx context.Context) {
	ws, ok := c.driver.(webdriver.WindowSwitcher)
	if !ok {
		return
	}
	handles, err := ws.WindowHandles(ctx)
	if err != nil || len(handles) == 0 {
		c.logger.Debug("No window to fall back to.", zap.Error(err))
		return
	}
	if err := ws.SwitchToWindow(ctx, handles[0]); err != nil {
		c.logger.Debug("Window fallback failed.", zap.String("handle", handles[0]), zap.Error(err))
		return
	}
	c.logger.Debug("Current window closed; switched to first remaining window.", zap.String("handle", handles[0]))
}

// WaitForAlert polls IsAlertPresent for the configured bounded timeout. It is
// meant for actions whose dialog may render slightly after they return.
func (c *Coordinator) WaitForAlert(ctx context.Context) bool {
	return c.WaitForAlertWith(ctx, c.opts)
}

// WaitForAlertWith is WaitForAlert with explicit bounds.
func (c *Coordinator) WaitForAlertWith(ctx context.Context, opts wait.Options) bool {
	cond := wait.NewCondition("alert to be present", func(ctx context.Context, _ webdriver.SearchContext) (bool, error) {
		return c.IsAlertPresent(ctx), nil
	})
	return wait.Until(ctx, c.driver, opts, cond, false, nil).Passed
}

// Text returns the open dialog's message.
func (c *Coordinator) Text(ctx context.Context) (string, error) {
	var text string
	err := c.withNativeFallback(ctx, "read alert text", func(ctx context.Context) error {
		var err error
		text, err = c.driver.AlertText(ctx)
		return err
	})
	return text, err
}

// Accept accepts the open dialog.
func (c *Coordinator) Accept(ctx context.Context) error {
	return c.withNativeFallback(ctx, "accept alert", c.driver.AcceptAlert)
}

// Dismiss dismisses the open dialog.
func (c *Coordinator) Dismiss(ctx context.Context) error {
	return c.withNativeFallback(ctx, "dismiss alert", c.driver.DismissAlert)
}

// SendKeys types text into an open prompt.
func (c *Coordinator) SendKeys(ctx context.Context, text string) error {
	return c.withNativeFallback(ctx, "send alert text", func(ctx context.Context) error {
		return c.driver.SendAlertText(ctx, text)
	})
}

// withNativeFallback runs fn and, if it fails on a driver that has a native
// context, retries it there and then restores the original context. A
// missing dialog is never retried.
func (c *Coordinator) withNativeFallback(ctx context.Context, op string, fn func(context.Context) error) error {
	err := fn(ctx)
	if err == nil || errors.Is(err, webdriver.ErrNoAlert) {
		return err
	}
	cs, ok := c.driver.(webdriver.ContextSwitcher)
	if !ok {
		return fmt.Errorf("%s: %w", op, err)
	}

	prev, cerr := cs.CurrentContext(ctx)
	if cerr != nil {
		return fmt.Errorf("%s: %w (current context unavailable: %v)", op, err, cerr)
	}
	c.logger.Debug("Retrying alert operation in native context.", zap.String("op", op), zap.String("from", prev), zap.Error(err))
	if serr := cs.SwitchContext(ctx, webdriver.NativeContext); serr != nil {
		return fmt.Errorf("%s: %w (switch to %s failed: %v)", op, err, webdriver.NativeContext, serr)
	}
	defer func() {
		if rerr := cs.SwitchContext(ctx, prev); rerr != nil {
			c.logger.Warn("Could not restore browser context.", zap.String("context", prev), zap.Error(rerr))
		}
	}()

	if nerr := fn(ctx); nerr != nil {
		return fmt.Errorf("%s in %s: %w", op, webdriver.NativeContext, nerr)
	}
	return nil
}
