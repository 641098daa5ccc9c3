// Package webdriver defines the browser capabilities the location and
// interaction engines consume. Concrete drivers (chromedp, the static HTML
// driver, test mocks) implement these interfaces; the engines never import a
// concrete driver.
package webdriver

import (
	"context"
	"fmt"
)

// Locator strategies as defined by the W3C WebDriver specification.
const (
	ByCSSSelector     = "css selector"
	ByXPath           = "xpath"
	ByLinkText        = "link text"
	ByPartialLinkText = "partial link text"
	ByTagName         = "tag name"
)

// By is a single low-level query understood by a driver.
type By struct {
	Using string
	Value string
}

func (b By) String() string {
	return fmt.Sprintf("%s=%q", b.Using, b.Value)
}

// XPath returns an xpath query.
func XPath(expr string) By { return By{Using: ByXPath, Value: expr} }

// CSS returns a css selector query.
func CSS(selector string) By { return By{Using: ByCSSSelector, Value: selector} }

// SearchContext is anything elements can be searched from: the page root or a
// previously found element.
type SearchContext interface {
	FindElements(ctx context.Context, by By) ([]Element, error)
}

// Element is an opaque handle to a node owned by the driver. It holds an id,
// never a pointer back into a parent wrapper.
type Element interface {
	SearchContext

	// ID is the driver-scoped identifier of the underlying node.
	ID() string
	Click(ctx context.Context) error
	Clear(ctx context.Context) error
	SendKeys(ctx context.Context, keys string) error
	IsDisplayed(ctx context.Context) (bool, error)
	IsEnabled(ctx context.Context) (bool, error)
	GetAttribute(ctx context.Context, name string) (string, error)
	Text(ctx context.Context) (string, error)
	TagName(ctx context.Context) (string, error)
}

// ScriptExecutor runs JavaScript in the page. Element arguments are passed as
// handles and arrive in the script as DOM nodes.
type ScriptExecutor interface {
	ExecuteScript(ctx context.Context, script string, args ...any) (any, error)
	ExecuteAsyncScript(ctx context.Context, script string, args ...any) (any, error)
}

// AlertHandler exposes native browser dialogs (alert, confirm, prompt).
type AlertHandler interface {
	// AlertText returns ErrNoAlert when no dialog is open.
	AlertText(ctx context.Context) (string, error)
	// AcceptAlert submits text stored by SendAlertText as the prompt answer.
	AcceptAlert(ctx context.Context) error
	DismissAlert(ctx context.Context) error
	// SendAlertText sets the answer of an open prompt. The dialog stays
	// open until AcceptAlert or DismissAlert.
	SendAlertText(ctx context.Context, text string) error
}

// Driver is the root search context of a browser session.
type Driver interface {
	SearchContext
	ScriptExecutor
	AlertHandler

	// BrowserName is the lower-case browser identifier ("chrome", "firefox", ...).
	BrowserName() string
}

// Navigator is implemented by drivers able to load URLs.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
}

// WindowSwitcher is implemented by drivers with multiple top-level windows.
type WindowSwitcher interface {
	WindowHandles(ctx context.Context) ([]string, error)
	SwitchToWindow(ctx context.Context, handle string) error
}

// Context names used by hybrid mobile drivers.
const (
	NativeContext = "NATIVE_APP"
	WebContext    = "WEBVIEW"
)

// ContextSwitcher is implemented by mobile/embedded drivers that expose both a
// native and a web context.
type ContextSwitcher interface {
	CurrentContext(ctx context.Context) (string, error)
	SwitchContext(ctx context.Context, name string) error
}
