package cdp

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/stepwise/internal/webdriver"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// liveGuard prefixes every element function. The message is mapped back to
// ErrStaleElement by classifyJSError.
const liveGuard = `if (!this.isConnected) { throw new Error('stale element reference: element is not attached to the page document'); }`

// jsFind returns an array of elements under this for a locator mechanism.
const jsFind = `function(using, value) {
  var root = this, out = [];
  switch (using) {
  case 'xpath':
    var snap;
    try {
      snap = (root.ownerDocument || root).evaluate(value, root, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
    } catch (e) {
      throw new Error('invalid selector: ' + e.message);
    }
    for (var i = 0; i < snap.snapshotLength; i++) {
      var n = snap.snapshotItem(i);
      if (n.nodeType === 1) { out.push(n); }
    }
    return out;
  case 'css selector':
    try {
      return Array.prototype.slice.call(root.querySelectorAll(value));
    } catch (e) {
      throw new Error('invalid selector: ' + e.message);
    }
  case 'link text':
  case 'partial link text':
    var links = root.querySelectorAll('a');
    for (var j = 0; j < links.length; j++) {
      var text = (links[j].innerText || '').trim();
      if (using === 'link text' ? text === value : text.indexOf(value) !== -1) { out.push(links[j]); }
    }
    return out;
  case 'tag name':
    return Array.prototype.slice.call(root.getElementsByTagName(value));
  }
  throw new Error('invalid argument: unknown locator strategy ' + using);
}`

// jsClickPoint scrolls the element into view and returns the centre of its
// first client rect, or the element that would receive a click there.
const jsClickPoint = `function() {
  ` + liveGuard + `
  this.scrollIntoView({block: 'center', inline: 'center'});
  var rects = this.getClientRects();
  if (rects.length === 0) { return {error: 'element not interactable: element has no size'}; }
  var r = rects[0], x = r.left + r.width / 2, y = r.top + r.height / 2;
  var hit = document.elementFromPoint(x, y);
  if (hit && hit !== this && !this.contains(hit)) {
    var html = hit.outerHTML || hit.nodeName;
    if (html.length > 120) { html = html.slice(0, 120) + '...'; }
    return {error: 'element click intercepted: Element is not clickable at point (' + Math.round(x) + ', ' + Math.round(y) + '). Other element would receive the click: ' + html};
  }
  return {x: x, y: y};
}`

const jsIsDisplayed = `function() {
  ` + liveGuard + `
  for (var el = this; el && el.nodeType === 1; el = el.parentElement) {
    var s = window.getComputedStyle(el);
    if (s.display === 'none') { return false; }
  }
  var style = window.getComputedStyle(this);
  if (style.visibility === 'hidden' || style.visibility === 'collapse' || style.opacity === '0') { return false; }
  if (this.tagName === 'INPUT' && (this.type || '').toLowerCase() === 'hidden') { return false; }
  var r = this.getBoundingClientRect();
  return r.width > 0 && r.height > 0;
}`

const jsIsEnabled = `function() {
  ` + liveGuard + `
  if (this.disabled) { return false; }
  var fs = this.closest ? this.closest('fieldset[disabled]') : null;
  return !fs || (fs.firstElementChild && fs.firstElementChild.tagName === 'LEGEND' && fs.firstElementChild.contains(this));
}`

const jsGetAttribute = `function(name) {
  ` + liveGuard + `
  var lower = name.toLowerCase();
  var booleans = ['checked', 'disabled', 'selected', 'hidden', 'readonly', 'required', 'multiple', 'autofocus'];
  if (booleans.indexOf(lower) !== -1) {
    return (this[lower] === true || this.hasAttribute(lower)) ? 'true' : '';
  }
  if (lower === 'value' && 'value' in this) { return String(this.value); }
  var v = this.getAttribute(name);
  return v === null ? '' : v;
}`

const jsText = `function() {
  ` + liveGuard + `
  return (this.innerText || '').trim();
}`

const jsTagName = `function() {
  ` + liveGuard + `
  return this.tagName.toLowerCase();
}`

// jsEditable focuses the element after checking it accepts text.
const jsEditable = `function(clear) {
  ` + liveGuard + `
  var editable = this.tagName === 'INPUT' || this.tagName === 'TEXTAREA' || this.isContentEditable;
  if (!editable || this.readOnly || this.disabled) {
    throw new Error('invalid element state: element must be user-editable');
  }
  this.focus();
  if (clear) {
    if (this.isContentEditable) { this.textContent = ''; } else { this.value = ''; }
    this.dispatchEvent(new Event('input', {bubbles: true}));
    this.dispatchEvent(new Event('change', {bubbles: true}));
  }
  return true;
}`

const jsLength = `function() { return this.length; }`
const jsIndex = `function(i) { return this[i]; }`
const jsStringify = `function() { return JSON.stringify(this); }`

// scriptFunction wraps a WebDriver-style script body so it sees its
// arguments as arguments[0..n]. Element arguments travel as remote object
// ids; everything else is inlined as a JSON literal.
func scriptFunction(script string, args []any) (string, []*runtime.CallArgument, error) {
	var (
		literals []string
		objects  []*runtime.CallArgument
	)
	for i, a := range args {
		if el, ok := a.(*Element); ok {
			literals = append(literals, fmt.Sprintf("__el[%d]", len(objects)))
			objects = append(objects, &runtime.CallArgument{ObjectID: el.object})
			continue
		}
		b, err := json.Marshal(a)
		if err != nil {
			return "", nil, fmt.Errorf("encoding script argument %d: %w", i, err)
		}
		literals = append(literals, string(b))
	}
	fn := fmt.Sprintf("function() { var __el = arguments; return (function() {\n%s\n}).apply(window, [%s]); }",
		script, strings.Join(literals, ", "))
	return fn, objects, nil
}

// callOn runs fn with this bound to object. Plain Go arguments are inlined
// as JSON, which is enough for the strings, numbers and booleans used here.
func (d *Driver) callOn(ctx context.Context, object runtime.RemoteObjectID, fn string, byValue bool, args ...any) (*runtime.RemoteObject, error) {
	var literals []string
	for _, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return nil, err
		}
		literals = append(literals, string(b))
	}
	decl := fmt.Sprintf("function() { return (%s).apply(this, [%s]); }", fn, strings.Join(literals, ", "))
	res, err := d.call(ctx, runtime.CallFunctionOn(decl).WithObjectID(object).WithReturnByValue(byValue))
	if err == nil && res == nil {
		text, _ := d.dialog()
		return nil, webdriver.NewDriverError("execute", "unexpected alert open: {Alert text : "+text+"}", nil)
	}
	return res, err
}

// call executes a prepared CallFunctionOn inside the tab, refusing to talk
// to a page blocked by a dialog.
func (d *Driver) call(ctx context.Context, p *runtime.CallFunctionOnParams) (*runtime.RemoteObject, error) {
	if text, open := d.dialog(); open {
		return nil, webdriver.NewDriverError("execute", "unexpected alert open: {Alert text : "+text+"}", nil)
	}
	runCtx, cancel := CombineContext(d.tabCtx(), ctx)
	defer cancel()

	var (
		res *runtime.RemoteObject
		exc *runtime.ExceptionDetails
	)
	err := d.raceDialog(runCtx, func(ctx context.Context) error {
		return chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			res, exc, err = p.Do(ctx)
			return err
		}))
	})
	if err != nil {
		return nil, classifyJSError(err.Error(), err)
	}
	if exc != nil {
		return nil, classifyJSError(exceptionText(exc), nil)
	}
	return res, nil
}

func exceptionText(exc *runtime.ExceptionDetails) string {
	if exc.Exception != nil && exc.Exception.Description != "" {
		// Descriptions carry a stack; the first line is the message.
		line, _, _ := strings.Cut(exc.Exception.Description, "\n")
		return strings.TrimPrefix(line, "Error: ")
	}
	return exc.Text
}

// classifyJSError maps browser error wording onto the webdriver sentinels.
func classifyJSError(msg string, cause error) error {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "stale element reference"),
		strings.Contains(lower, "could not find object with given id"),
		strings.Contains(lower, "cannot find context with specified id"),
		strings.Contains(lower, "execution context was destroyed"),
		strings.Contains(lower, "inspected target navigated or closed"):
		return &webdriver.DriverError{Op: "execute", Message: "stale element reference: " + msg, Err: webdriver.ErrStaleElement}
	case strings.Contains(lower, "no such window"), strings.Contains(lower, "no target with given id"):
		return webdriver.NewDriverError("execute", msg, webdriver.ErrNoSuchWindow)
	}
	if cause != nil {
		return &webdriver.DriverError{Op: "execute", Message: msg, Err: cause}
	}
	return webdriver.NewDriverError("execute", "javascript error: "+msg, nil)
}

// decodeValue converts a by-value remote object into Go values.
func decodeValue(obj *runtime.RemoteObject) (any, error) {
	if obj == nil || obj.Type == runtime.TypeUndefined || len(obj.Value) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(obj.Value, &v); err != nil {
		return nil, fmt.Errorf("decoding script result: %w", err)
	}
	return v, nil
}
