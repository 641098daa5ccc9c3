package cdp

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/stepwise/internal/webdriver"
)

// Element is a non-owning handle to a node: the driver plus a remote object
// id. Navigation invalidates the id and every call then reports a stale
// element.
type Element struct {
	driver *Driver
	object runtime.RemoteObjectID
}

var _ webdriver.Element = (*Element)(nil)

// ID implements webdriver.Element.
func (e *Element) ID() string { return string(e.object) }

// FindElements implements webdriver.SearchContext scoped to the element.
// Absolute XPath is rooted at the element, as the static driver does.
func (e *Element) FindElements(ctx context.Context, by webdriver.By) ([]webdriver.Element, error) {
	if by.Using == webdriver.ByXPath {
		by.Value = scopedXPath(by.Value)
	}
	return e.driver.findFrom(ctx, e.object, by)
}

// scopedXPath makes a leading "/" relative to the context node.
func scopedXPath(expr string) string {
	trimmed := strings.TrimLeft(expr, " \t\n")
	switch {
	case strings.HasPrefix(trimmed, "/"):
		return "." + trimmed
	case strings.HasPrefix(trimmed, "(/"):
		return "(." + trimmed[1:]
	}
	return expr
}

func (e *Element) value(ctx context.Context, op, fn string, args ...any) (any, error) {
	res, err := e.driver.callOn(ctx, e.object, fn, true, args...)
	if err != nil {
		return nil, relabel(op, err)
	}
	return decodeValue(res)
}

func relabel(op string, err error) error {
	if de, ok := err.(*webdriver.DriverError); ok {
		return &webdriver.DriverError{Op: op, Message: de.Message, Err: de.Err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

type clickPoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Error string  `json:"error"`
}

// Click dispatches a real left click at the element's centre after a hit
// test, the way chromedriver does, so overlays surface as "element click
// intercepted".
func (e *Element) Click(ctx context.Context) error {
	res, err := e.driver.callOn(ctx, e.object, jsClickPoint, true)
	if err != nil {
		return relabel("element click", err)
	}
	var pt clickPoint
	if err := json.Unmarshal(res.Value, &pt); err != nil {
		return fmt.Errorf("element click: decoding hit test: %w", err)
	}
	if pt.Error != "" {
		return webdriver.NewDriverError("element click", pt.Error, nil)
	}

	runCtx, cancel := CombineContext(e.driver.tabCtx(), ctx)
	defer cancel()
	err = e.driver.raceDialog(runCtx, func(ctx context.Context) error {
		return chromedp.Run(ctx,
			input.DispatchMouseEvent(input.MouseMoved, pt.X, pt.Y),
			input.DispatchMouseEvent(input.MousePressed, pt.X, pt.Y).WithButton(input.Left).WithClickCount(1),
			input.DispatchMouseEvent(input.MouseReleased, pt.X, pt.Y).WithButton(input.Left).WithClickCount(1),
		)
	})
	if err != nil {
		return relabel("element click", classifyJSError(err.Error(), err))
	}
	return nil
}

// Clear empties an editable element.
func (e *Element) Clear(ctx context.Context) error {
	_, err := e.value(ctx, "clear", jsEditable, true)
	return err
}

// SendKeys focuses the element and inserts keys as typed text.
func (e *Element) SendKeys(ctx context.Context, keys string) error {
	if _, err := e.value(ctx, "send keys", jsEditable, false); err != nil {
		return err
	}
	if err := e.driver.run(ctx, input.InsertText(keys)); err != nil {
		return relabel("send keys", classifyJSError(err.Error(), err))
	}
	return nil
}

// IsDisplayed implements webdriver.Element.
func (e *Element) IsDisplayed(ctx context.Context) (bool, error) {
	v, err := e.value(ctx, "is displayed", jsIsDisplayed)
	b, _ := v.(bool)
	return b, err
}

// IsEnabled implements webdriver.Element.
func (e *Element) IsEnabled(ctx context.Context) (bool, error) {
	v, err := e.value(ctx, "is enabled", jsIsEnabled)
	b, _ := v.(bool)
	return b, err
}

// GetAttribute implements webdriver.Element.
func (e *Element) GetAttribute(ctx context.Context, name string) (string, error) {
	v, err := e.value(ctx, "get attribute", jsGetAttribute, name)
	s, _ := v.(string)
	return s, err
}

// Text returns the rendered text.
func (e *Element) Text(ctx context.Context) (string, error) {
	v, err := e.value(ctx, "get text", jsText)
	s, _ := v.(string)
	return s, err
}

// TagName implements webdriver.Element.
func (e *Element) TagName(ctx context.Context) (string, error) {
	v, err := e.value(ctx, "get tag name", jsTagName)
	s, _ := v.(string)
	return s, err
}
