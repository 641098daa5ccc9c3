package htmldom

import (
	"context"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/stepwise/internal/webdriver"
)

// Element is a handle to a node of one document generation.
type Element struct {
	doc        *Document
	node       *html.Node
	generation int
	id         string
}

var _ webdriver.Element = (*Element)(nil)

var booleanAttrs = map[string]bool{
	"checked": true, "disabled": true, "selected": true, "hidden": true,
	"readonly": true, "required": true, "multiple": true, "autofocus": true,
}

// ID implements webdriver.Element.
func (e *Element) ID() string { return e.id }

// Node exposes the underlying node for tests and diagnostics.
func (e *Element) Node() *html.Node { return e.node }

// live verifies the handle and that no dialog blocks the page.
func (e *Element) live(op string) error {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	if e.generation != e.doc.generation || !attached(e.doc.root, e.node) {
		return webdriver.NewDriverError(op, "stale element reference: element is not attached to the page document", webdriver.ErrStaleElement)
	}
	if e.doc.alert != nil {
		return errAlertOpen(op)
	}
	return nil
}

// FindElements implements webdriver.SearchContext scoped to this element.
func (e *Element) FindElements(ctx context.Context, by webdriver.By) ([]webdriver.Element, error) {
	if err := e.live("find elements"); err != nil {
		return nil, err
	}
	return e.doc.find(ctx, e.node, by)
}

// Click performs a native click. Hidden elements are not interactable.
func (e *Element) Click(ctx context.Context) error {
	if err := e.live("click"); err != nil {
		return err
	}
	if !displayed(e.node) {
		return webdriver.NewDriverError("click", "element not interactable", nil)
	}
	return e.doc.dispatchClick(ctx, e, "native")
}

// Clear empties an editable control.
func (e *Element) Clear(ctx context.Context) error {
	if err := e.live("clear"); err != nil {
		return err
	}
	if err := e.editable("clear"); err != nil {
		return err
	}
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if e.node.Data == "textarea" {
		for c := e.node.FirstChild; c != nil; c = e.node.FirstChild {
			e.node.RemoveChild(c)
		}
		return nil
	}
	setAttr(e.node, "value", "")
	return nil
}

// SendKeys appends keys to the control's value.
func (e *Element) SendKeys(ctx context.Context, keys string) error {
	if err := e.live("send keys"); err != nil {
		return err
	}
	if !displayed(e.node) {
		return webdriver.NewDriverError("send keys", "element not interactable", nil)
	}
	if err := e.editable("send keys"); err != nil {
		return err
	}
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if e.node.Data == "textarea" {
		e.node.AppendChild(&html.Node{Type: html.TextNode, Data: keys})
	} else {
		setAttr(e.node, "value", htmlquery.SelectAttr(e.node, "value")+keys)
	}
	e.doc.focused = e.node
	return nil
}

func (e *Element) editable(op string) error {
	switch e.node.Data {
	case "input", "textarea":
	default:
		if !strings.EqualFold(htmlquery.SelectAttr(e.node, "contenteditable"), "true") {
			return webdriver.NewDriverError(op, "invalid element state: element must be user-editable", nil)
		}
	}
	if hasAttr(e.node, "readonly") || hasAttr(e.node, "disabled") {
		return webdriver.NewDriverError(op, "invalid element state: element is read-only or disabled", nil)
	}
	return nil
}

// IsDisplayed implements webdriver.Element.
func (e *Element) IsDisplayed(ctx context.Context) (bool, error) {
	if err := e.live("is displayed"); err != nil {
		return false, err
	}
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return displayed(e.node), nil
}

// IsEnabled is false for disabled controls and controls inside a disabled
// fieldset.
func (e *Element) IsEnabled(ctx context.Context) (bool, error) {
	if err := e.live("is enabled"); err != nil {
		return false, err
	}
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	if hasAttr(e.node, "disabled") {
		return false, nil
	}
	if fs := findAncestor(e.node, "fieldset"); fs != nil && hasAttr(fs, "disabled") {
		return false, nil
	}
	return true, nil
}

// GetAttribute follows WebDriver conventions: boolean attributes report
// "true" or "", and a textarea's value is its text.
func (e *Element) GetAttribute(ctx context.Context, name string) (string, error) {
	if err := e.live("get attribute"); err != nil {
		return "", err
	}
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	name = strings.ToLower(name)
	if booleanAttrs[name] {
		if hasAttr(e.node, name) {
			return "true", nil
		}
		return "", nil
	}
	if name == "value" && e.node.Data == "textarea" {
		return htmlquery.InnerText(e.node), nil
	}
	return htmlquery.SelectAttr(e.node, name), nil
}

// Text returns the rendered text, empty for hidden elements.
func (e *Element) Text(ctx context.Context) (string, error) {
	if err := e.live("get text"); err != nil {
		return "", err
	}
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	if !displayed(e.node) {
		return "", nil
	}
	return visibleText(e.node), nil
}

// TagName implements webdriver.Element.
func (e *Element) TagName(ctx context.Context) (string, error) {
	if err := e.live("get tag name"); err != nil {
		return "", err
	}
	return strings.ToLower(e.node.Data), nil
}

// dispatchClick applies the built-in consequences of a click and runs the
// handler registered for the element id.
func (d *Document) dispatchClick(ctx context.Context, e *Element, via string) error {
	d.mu.Lock()
	d.clicks = append(d.clicks, via+":"+e.id)
	d.focused = e.node
	handler := d.clickHandlers[htmlquery.SelectAttr(e.node, "id")]
	if e.node.Data == "input" {
		switch strings.ToLower(htmlquery.SelectAttr(e.node, "type")) {
		case "checkbox":
			if hasAttr(e.node, "checked") {
				removeAttr(e.node, "checked")
			} else {
				setAttr(e.node, "checked", "checked")
			}
		case "radio":
			d.selectRadioLocked(e.node)
		}
	}
	d.mu.Unlock()

	if handler != nil {
		return handler(ctx, d, e)
	}
	return nil
}

// selectRadioLocked checks n and unchecks the rest of its group.
func (d *Document) selectRadioLocked(n *html.Node) {
	name := htmlquery.SelectAttr(n, "name")
	if name == "" {
		setAttr(n, "checked", "checked")
		return
	}
	scope := findAncestor(n, "form")
	if scope == nil {
		scope = d.root
	}
	for _, radio := range htmlquery.Find(scope, ".//input[@type='radio']") {
		if htmlquery.SelectAttr(radio, "name") != name {
			continue
		}
		if radio == n {
			setAttr(radio, "checked", "checked")
		} else {
			removeAttr(radio, "checked")
		}
	}
}
