// Package htmldom is a pure-Go driver over a parsed HTML document. It has no
// JavaScript engine: the named scripts of the webdriver package are emulated,
// clicks run registered handlers, and replacing the document invalidates every
// outstanding element handle the way a navigation does in a real browser.
//
// It backs the offline `locate --file` command and the package tests of the
// location, wait and interaction engines.
package htmldom

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/stepwise/internal/webdriver"
)

// ClickHandler runs when an element with a registered id is clicked, natively
// or through the script click. Returning an error makes the click fail with it.
type ClickHandler func(ctx context.Context, d *Document, el *Element) error

// ScriptHandler emulates a script the driver does not recognise.
type ScriptHandler func(ctx context.Context, d *Document, args []any) (any, error)

// Document is a static DOM implementing webdriver.Driver and
// webdriver.Navigator.
type Document struct {
	mu sync.RWMutex

	logger      *zap.Logger
	browserName string

	root       *html.Node
	generation int
	ids        map[*html.Node]string
	nextID     int
	url        string
	readyState string
	focused    *html.Node

	alert        *string
	promptText   string
	alertHistory []string

	clickHandlers  map[string]ClickHandler
	scriptHandlers map[string]ScriptHandler
	pages          map[string]string
	clicks         []string
	hovers         []string
}

var (
	_ webdriver.Driver    = (*Document)(nil)
	_ webdriver.Navigator = (*Document)(nil)
)

// Option configures a Document.
type Option func(*Document)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Document) { d.logger = logger.Named("htmldom") }
}

// WithBrowserName overrides the reported browser name.
func WithBrowserName(name string) Option {
	return func(d *Document) { d.browserName = name }
}

// WithURL sets the initial document URL.
func WithURL(u string) Option {
	return func(d *Document) { d.url = u }
}

// WithPage registers markup served when Navigate is called with url.
func WithPage(url, markup string) Option {
	return func(d *Document) { d.pages[url] = markup }
}

// Parse reads a document from r.
func Parse(r io.Reader, opts ...Option) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	d := &Document{
		logger:         zap.NewNop(),
		browserName:    "htmldom",
		root:           root,
		ids:            make(map[*html.Node]string),
		url:            "about:blank",
		readyState:     "complete",
		clickHandlers:  make(map[string]ClickHandler),
		scriptHandlers: make(map[string]ScriptHandler),
		pages:          make(map[string]string),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// ParseString reads a document from markup.
func ParseString(markup string, opts ...Option) (*Document, error) {
	return Parse(strings.NewReader(markup), opts...)
}

// MustParse is ParseString for fixtures; it panics on error.
func MustParse(markup string, opts ...Option) *Document {
	d, err := ParseString(markup, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

// Load reads a document from a file on disk.
func Load(path string, opts ...Option) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f, append([]Option{WithURL("file://" + path)}, opts...)...)
}

// Replace swaps in a new document, as a navigation would. Every handle
// obtained before the call becomes stale.
func (d *Document) Replace(markup string) error {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return fmt.Errorf("failed to parse HTML: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.root = root
	d.generation++
	d.ids = make(map[*html.Node]string)
	d.focused = nil
	d.logger.Debug("Document replaced.", zap.Int("generation", d.generation))
	return nil
}

// Generation counts document replacements.
func (d *Document) Generation() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.generation
}

// OnClick registers a handler for the element whose id attribute is id.
func (d *Document) OnClick(id string, h ClickHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clickHandlers[id] = h
}

// HandleScript registers an emulation for script.
func (d *Document) HandleScript(script string, h ScriptHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scriptHandlers[script] = h
}

// SetReadyState sets the value reported for document.readyState.
func (d *Document) SetReadyState(state string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.readyState = state
}

// OpenAlert opens a native dialog with text.
func (d *Document) OpenAlert(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.alert = &text
	d.promptText = ""
}

// AlertHistory returns "accept:<text>" / "dismiss:<text>" entries in order.
func (d *Document) AlertHistory() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.alertHistory...)
}

// Clicks returns the ids of clicked elements in order, prefixed "native:" or
// "script:".
func (d *Document) Clicks() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.clicks...)
}

// Hovers returns the ids of hovered elements in order.
func (d *Document) Hovers() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.hovers...)
}

// BrowserName implements webdriver.Driver.
func (d *Document) BrowserName() string { return d.browserName }

// FindElements implements webdriver.SearchContext from the document root.
func (d *Document) FindElements(ctx context.Context, by webdriver.By) ([]webdriver.Element, error) {
	d.mu.RLock()
	root := d.root
	d.mu.RUnlock()
	return d.find(ctx, root, by)
}

// Navigate implements webdriver.Navigator using pages registered with WithPage.
func (d *Document) Navigate(ctx context.Context, url string) error {
	d.mu.RLock()
	markup, ok := d.pages[url]
	d.mu.RUnlock()
	if !ok {
		return webdriver.NewDriverError("navigate", fmt.Sprintf("no page registered for %s", url), nil)
	}
	if err := d.Replace(markup); err != nil {
		return err
	}
	d.mu.Lock()
	d.url = url
	d.mu.Unlock()
	return nil
}

// CurrentURL implements webdriver.Navigator.
func (d *Document) CurrentURL(ctx context.Context) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.url, nil
}

// AlertText implements webdriver.AlertHandler.
func (d *Document) AlertText(ctx context.Context) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.alert == nil {
		return "", webdriver.NewDriverError("alert text", "no such alert", webdriver.ErrNoAlert)
	}
	return *d.alert, nil
}

// AcceptAlert implements webdriver.AlertHandler.
func (d *Document) AcceptAlert(ctx context.Context) error {
	return d.closeAlert("accept")
}

// DismissAlert implements webdriver.AlertHandler.
func (d *Document) DismissAlert(ctx context.Context) error {
	return d.closeAlert("dismiss")
}

// SendAlertText implements webdriver.AlertHandler.
func (d *Document) SendAlertText(ctx context.Context, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.alert == nil {
		return webdriver.NewDriverError("send alert text", "no such alert", webdriver.ErrNoAlert)
	}
	d.promptText = text
	return nil
}

// PromptText returns the answer submitted by the last accepted prompt.
func (d *Document) PromptText() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.promptText
}

func (d *Document) closeAlert(action string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.alert == nil {
		return webdriver.NewDriverError(action+" alert", "no such alert", webdriver.ErrNoAlert)
	}
	d.alertHistory = append(d.alertHistory, action+":"+*d.alert)
	d.alert = nil
	if action == "dismiss" {
		d.promptText = ""
	}
	return nil
}

// alertOpen reports whether a dialog blocks the page. Caller holds no lock.
func (d *Document) alertOpen() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.alert != nil
}

// handle returns the element handle for n in the current generation.
// Caller holds the write lock.
func (d *Document) handleLocked(n *html.Node) *Element {
	id, ok := d.ids[n]
	if !ok {
		d.nextID++
		id = fmt.Sprintf("node-%d-%d", d.generation, d.nextID)
		d.ids[n] = id
	}
	return &Element{doc: d, node: n, generation: d.generation, id: id}
}

func (d *Document) wrap(nodes []*html.Node) []webdriver.Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]webdriver.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, d.handleLocked(n))
	}
	return out
}
