package htmldom

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/stepwise/internal/webdriver"
)

// ExecuteScript emulates the named scripts of the webdriver package and any
// script registered with HandleScript.
func (d *Document) ExecuteScript(ctx context.Context, script string, args ...any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.alertOpen() {
		return nil, errAlertOpen("execute script")
	}

	switch script {
	case webdriver.ScriptReadyState:
		d.mu.RLock()
		defer d.mu.RUnlock()
		return d.readyState, nil
	case webdriver.ScriptActiveElement:
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.focused == nil || !attached(d.root, d.focused) {
			return nil, nil
		}
		return d.handleLocked(d.focused), nil
	case webdriver.ScriptClick:
		el, err := d.elementArg(script, args)
		if err != nil {
			return nil, err
		}
		return nil, d.dispatchClick(ctx, el, "script")
	case webdriver.ScriptFocus:
		el, err := d.elementArg(script, args)
		if err != nil {
			return nil, err
		}
		d.mu.Lock()
		d.focused = el.node
		d.mu.Unlock()
		return nil, nil
	case webdriver.ScriptHover:
		el, err := d.elementArg(script, args)
		if err != nil {
			return nil, err
		}
		d.mu.Lock()
		d.hovers = append(d.hovers, el.id)
		d.mu.Unlock()
		return nil, nil
	case webdriver.ScriptScrollIntoView:
		_, err := d.elementArg(script, args)
		return nil, err
	}

	d.mu.RLock()
	h, ok := d.scriptHandlers[script]
	d.mu.RUnlock()
	if !ok {
		d.logger.Debug("Unsupported script requested.", zap.String("script", script))
		return nil, webdriver.NewDriverError("execute script", "javascript error: no script engine available", webdriver.ErrUnsupported)
	}
	return h(ctx, d, args)
}

// ExecuteAsyncScript runs synchronously; the emulated scripts do not suspend.
func (d *Document) ExecuteAsyncScript(ctx context.Context, script string, args ...any) (any, error) {
	return d.ExecuteScript(ctx, script, args...)
}

// elementArg extracts a live element handle from args[0].
func (d *Document) elementArg(script string, args []any) (*Element, error) {
	if len(args) == 0 {
		return nil, webdriver.NewDriverError("execute script", "javascript error: arguments[0] is undefined", nil)
	}
	el, ok := args[0].(*Element)
	if !ok || el.doc != d {
		return nil, webdriver.NewDriverError("execute script", fmt.Sprintf("javascript error: arguments[0] is not an element of this document (%T)", args[0]), nil)
	}
	if err := el.live("execute script"); err != nil {
		return nil, err
	}
	return el, nil
}
