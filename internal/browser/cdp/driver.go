package cdp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/stepwise/internal/webdriver"
)

// BrowserName is what the driver reports for classification purposes.
const BrowserName = "chrome"

// Driver implements webdriver.Driver, Navigator and WindowSwitcher for one
// Chrome tab.
type Driver struct {
	logger     *zap.Logger
	navTimeout time.Duration

	// browserCtx outlives every tab; new targets are attached from it.
	browserCtx context.Context

	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	target target.ID
	// retained holds contexts of live tabs switched away from; cancelling
	// one closes its tab, so that waits for Close.
	retained []context.CancelFunc

	dialogMu     sync.Mutex
	dialogText   *string
	dialogOpened chan struct{}
	promptText   *string
}

var (
	_ webdriver.Driver         = (*Driver)(nil)
	_ webdriver.Navigator      = (*Driver)(nil)
	_ webdriver.WindowSwitcher = (*Driver)(nil)
)

func newDriver(browserCtx, ctx context.Context, cancel context.CancelFunc, logger *zap.Logger, navTimeout time.Duration) *Driver {
	return &Driver{
		logger:       logger,
		navTimeout:   navTimeout,
		browserCtx:   browserCtx,
		ctx:          ctx,
		cancel:       cancel,
		target:       targetOf(ctx),
		dialogOpened: make(chan struct{}),
	}
}

// targetOf returns the id of the page target attached to ctx.
func targetOf(ctx context.Context) target.ID {
	if c := chromedp.FromContext(ctx); c != nil && c.Target != nil {
		return c.Target.TargetID
	}
	return ""
}

func (d *Driver) tabCtx() context.Context {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.ctx
}

// listen tracks JavaScript dialogs of the tab behind ctx.
func (d *Driver) listen(ctx context.Context) {
	chromedp.ListenTarget(ctx, func(ev any) {
		switch e := ev.(type) {
		case *page.EventJavascriptDialogOpening:
			d.dialogMu.Lock()
			msg := e.Message
			if d.dialogText == nil {
				close(d.dialogOpened)
			}
			d.dialogText = &msg
			d.dialogMu.Unlock()
			d.logger.Debug("Dialog opened.", zap.String("type", string(e.Type)), zap.String("message", e.Message))
		case *page.EventJavascriptDialogClosed:
			d.dialogMu.Lock()
			d.resetDialogLocked()
			d.dialogMu.Unlock()
		}
	})
}

// resetDialogLocked forgets the open dialog. Caller holds dialogMu.
func (d *Driver) resetDialogLocked() {
	if d.dialogText != nil {
		d.dialogOpened = make(chan struct{})
	}
	d.dialogText = nil
	d.promptText = nil
}

func (d *Driver) dialog() (string, bool) {
	d.dialogMu.Lock()
	defer d.dialogMu.Unlock()
	if d.dialogText == nil {
		return "", false
	}
	return *d.dialogText, true
}

// raceDialog runs fn but returns early, successfully, if a dialog opens
// first. Chrome does not answer input or runtime calls while a dialog is
// showing, so an action that raises one would otherwise hang.
func (d *Driver) raceDialog(ctx context.Context, fn func(context.Context) error) error {
	d.dialogMu.Lock()
	opened := d.dialogOpened
	d.dialogMu.Unlock()

	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()
	select {
	case err := <-done:
		return err
	case <-opened:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BrowserName implements webdriver.Driver.
func (d *Driver) BrowserName() string { return BrowserName }

// Close closes the tab and any tab the driver switched away from.
func (d *Driver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancel()
	for _, cancel := range d.retained {
		cancel()
	}
	d.retained = nil
}

func (d *Driver) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(d.tabCtx(), ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// document returns a remote handle to the current document.
func (d *Driver) document(ctx context.Context) (runtime.RemoteObjectID, error) {
	if text, open := d.dialog(); open {
		return "", webdriver.NewDriverError("find elements", "unexpected alert open: {Alert text : "+text+"}", nil)
	}
	var obj *runtime.RemoteObject
	err := d.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		res, exc, err := runtime.Evaluate("document").Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		obj = res
		return nil
	}))
	if err != nil {
		return "", classifyJSError(err.Error(), err)
	}
	return obj.ObjectID, nil
}

// FindElements implements webdriver.SearchContext for the whole page.
func (d *Driver) FindElements(ctx context.Context, by webdriver.By) ([]webdriver.Element, error) {
	doc, err := d.document(ctx)
	if err != nil {
		return nil, err
	}
	return d.findFrom(ctx, doc, by)
}

func (d *Driver) findFrom(ctx context.Context, scope runtime.RemoteObjectID, by webdriver.By) ([]webdriver.Element, error) {
	arr, err := d.callOn(ctx, scope, jsFind, false, by.Using, by.Value)
	if err != nil {
		return nil, fmt.Errorf("find elements %s: %w", by, err)
	}
	lenObj, err := d.callOn(ctx, arr.ObjectID, jsLength, true)
	if err != nil {
		return nil, err
	}
	n, err := decodeValue(lenObj)
	if err != nil {
		return nil, err
	}
	count, _ := n.(float64)

	out := make([]webdriver.Element, 0, int(count))
	for i := 0; i < int(count); i++ {
		obj, err := d.callOn(ctx, arr.ObjectID, jsIndex, false, i)
		if err != nil {
			return nil, err
		}
		out = append(out, &Element{driver: d, object: obj.ObjectID})
	}
	return out, nil
}

// ExecuteScript implements webdriver.ScriptExecutor. Returned DOM nodes
// become elements; other values are decoded from JSON.
func (d *Driver) ExecuteScript(ctx context.Context, script string, args ...any) (any, error) {
	return d.execute(ctx, script, false, args)
}

// ExecuteAsyncScript awaits a returned promise.
func (d *Driver) ExecuteAsyncScript(ctx context.Context, script string, args ...any) (any, error) {
	return d.execute(ctx, script, true, args)
}

func (d *Driver) execute(ctx context.Context, script string, await bool, args []any) (any, error) {
	fn, objects, err := scriptFunction(script, args)
	if err != nil {
		return nil, err
	}
	doc, err := d.document(ctx)
	if err != nil {
		return nil, err
	}
	res, err := d.call(ctx, runtime.CallFunctionOn(fn).WithObjectID(doc).WithArguments(objects).WithAwaitPromise(await))
	if err != nil {
		return nil, err
	}
	if res == nil {
		// A dialog opened while the script ran.
		return nil, nil
	}
	switch {
	case res.Subtype == runtime.SubtypeNode:
		return &Element{driver: d, object: res.ObjectID}, nil
	case res.ObjectID != "":
		s, err := d.callOn(ctx, res.ObjectID, jsStringify, true)
		if err != nil {
			return nil, err
		}
		raw, err := decodeValue(s)
		if err != nil {
			return nil, err
		}
		str, _ := raw.(string)
		if str == "" {
			return nil, nil
		}
		var v any
		if err := json.Unmarshal([]byte(str), &v); err != nil {
			return nil, fmt.Errorf("decoding script result: %w", err)
		}
		return v, nil
	}
	return decodeValue(res)
}

// Navigate loads url and waits for the load event.
func (d *Driver) Navigate(ctx context.Context, url string) error {
	if d.navTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.navTimeout)
		defer cancel()
	}
	if err := d.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

// CurrentURL implements webdriver.Navigator.
func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	var u string
	if err := d.run(ctx, chromedp.Location(&u)); err != nil {
		return "", err
	}
	return u, nil
}

// AlertText implements webdriver.AlertHandler.
func (d *Driver) AlertText(ctx context.Context) (string, error) {
	if err := d.tabCtx().Err(); err != nil {
		return "", webdriver.NewDriverError("get alert text", "no such window: target window already closed", webdriver.ErrNoSuchWindow)
	}
	text, open := d.dialog()
	if !open {
		return "", webdriver.NewDriverError("get alert text", "no such alert", webdriver.ErrNoAlert)
	}
	return text, nil
}

// AcceptAlert implements webdriver.AlertHandler. Text stored by
// SendAlertText is submitted as the prompt answer.
func (d *Driver) AcceptAlert(ctx context.Context) error {
	accept := page.HandleJavaScriptDialog(true)
	d.dialogMu.Lock()
	if d.promptText != nil {
		accept = accept.WithPromptText(*d.promptText)
	}
	d.dialogMu.Unlock()
	return d.handleDialog(ctx, "accept alert", accept)
}

// DismissAlert implements webdriver.AlertHandler.
func (d *Driver) DismissAlert(ctx context.Context) error {
	return d.handleDialog(ctx, "dismiss alert", page.HandleJavaScriptDialog(false))
}

// SendAlertText stores the answer for the open prompt. Chrome takes the
// answer only together with the accept, so the dialog stays open until
// AcceptAlert.
func (d *Driver) SendAlertText(ctx context.Context, text string) error {
	if err := d.tabCtx().Err(); err != nil {
		return webdriver.NewDriverError("send alert text", "no such window: target window already closed", webdriver.ErrNoSuchWindow)
	}
	d.dialogMu.Lock()
	defer d.dialogMu.Unlock()
	if d.dialogText == nil {
		return webdriver.NewDriverError("send alert text", "no such alert", webdriver.ErrNoAlert)
	}
	d.promptText = &text
	return nil
}

func (d *Driver) handleDialog(ctx context.Context, op string, action chromedp.Action) error {
	if _, open := d.dialog(); !open {
		return webdriver.NewDriverError(op, "no such alert", webdriver.ErrNoAlert)
	}
	if err := d.run(ctx, action); err != nil {
		return webdriver.NewDriverError(op, err.Error(), nil)
	}
	// The closed event may trail the command; clear eagerly so the next
	// check does not see a dialog that is already gone.
	d.dialogMu.Lock()
	d.resetDialogLocked()
	d.dialogMu.Unlock()
	return nil
}

// WindowHandles lists page targets. It queries the browser rather than the
// tab, so it keeps working after the current tab has been closed, which is
// never listed once its context is gone.
func (d *Driver) WindowHandles(ctx context.Context) ([]string, error) {
	runCtx, cancel := CombineContext(d.browserCtx, ctx)
	defer cancel()
	infos, err := chromedp.Targets(runCtx)
	if err != nil {
		return nil, webdriver.NewDriverError("window handles", err.Error(), nil)
	}

	d.mu.RLock()
	current, closed := d.target, d.ctx.Err() != nil
	d.mu.RUnlock()

	var handles []string
	for _, info := range infos {
		if info.Type != "page" || (closed && info.TargetID == current) {
			continue
		}
		handles = append(handles, string(info.TargetID))
	}
	return handles, nil
}

// SwitchToWindow attaches the driver to another page target. A previous tab
// that is still open stays open until Close.
func (d *Driver) SwitchToWindow(ctx context.Context, handle string) error {
	next, cancel := chromedp.NewContext(d.browserCtx, chromedp.WithTargetID(target.ID(handle)))
	attached := make(chan error, 1)
	go func() { attached <- chromedp.Run(next) }()
	select {
	case err := <-attached:
		if err != nil {
			cancel()
			return webdriver.NewDriverError("switch to window", "no such window: "+err.Error(), webdriver.ErrNoSuchWindow)
		}
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}

	d.mu.Lock()
	prevCtx, prevCancel := d.ctx, d.cancel
	d.ctx, d.cancel, d.target = next, cancel, target.ID(handle)
	if prevCtx.Err() == nil {
		d.retained = append(d.retained, prevCancel)
		prevCancel = func() {}
	}
	d.mu.Unlock()
	d.dialogMu.Lock()
	d.resetDialogLocked()
	d.dialogMu.Unlock()
	d.listen(next)
	prevCancel()
	d.logger.Debug("Switched window.", zap.String("handle", handle))
	return nil
}

// CurrentWindowHandle returns the id of the attached page target.
func (d *Driver) CurrentWindowHandle() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return string(d.target)
}
