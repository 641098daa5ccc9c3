package htmldom

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/stepwise/internal/webdriver"
)

// errAlertOpen mirrors the error real drivers raise for any page command while
// a dialog is showing.
func errAlertOpen(op string) error {
	return webdriver.NewDriverError(op, "unexpected alert open", nil)
}

// find runs a query scoped to from.
func (d *Document) find(ctx context.Context, from *html.Node, by webdriver.By) ([]webdriver.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.alertOpen() {
		return nil, errAlertOpen("find elements")
	}

	var nodes []*html.Node
	switch by.Using {
	case webdriver.ByXPath:
		found, err := htmlquery.QueryAll(from, by.Value)
		if err != nil {
			return nil, webdriver.NewDriverError("find elements", fmt.Sprintf("invalid selector: %s: %v", by.Value, err), nil)
		}
		for _, n := range found {
			if n.Type == html.ElementNode {
				nodes = append(nodes, n)
			}
		}
	case webdriver.ByCSSSelector:
		if _, err := cascadia.ParseGroup(by.Value); err != nil {
			return nil, webdriver.NewDriverError("find elements", fmt.Sprintf("invalid selector: %s: %v", by.Value, err), nil)
		}
		nodes = goquery.NewDocumentFromNode(from).Find(by.Value).Nodes
	case webdriver.ByLinkText, webdriver.ByPartialLinkText:
		partial := by.Using == webdriver.ByPartialLinkText
		walkDescendants(from, func(n *html.Node) {
			if n.Type != html.ElementNode || n.Data != "a" {
				return
			}
			text := visibleText(n)
			if (partial && strings.Contains(text, by.Value)) || (!partial && text == strings.TrimSpace(by.Value)) {
				nodes = append(nodes, n)
			}
		})
	case webdriver.ByTagName:
		tag := strings.ToLower(by.Value)
		walkDescendants(from, func(n *html.Node) {
			if n.Type == html.ElementNode && n.Data == tag {
				nodes = append(nodes, n)
			}
		})
	default:
		return nil, webdriver.NewDriverError("find elements", fmt.Sprintf("invalid locator strategy %q", by.Using), webdriver.ErrUnsupported)
	}
	return d.wrap(nodes), nil
}

// walkDescendants visits every descendant of n in document order, excluding n.
func walkDescendants(n *html.Node, visit func(*html.Node)) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		visit(c)
		walkDescendants(c, visit)
	}
}

var nonRenderedTags = map[string]bool{
	"head": true, "script": true, "style": true, "title": true,
	"meta": true, "link": true, "template": true, "noscript": true,
}

// displayed approximates the rendered state from markup alone: the hidden
// attribute, inline display/visibility styles, hidden inputs and
// non-rendered tags on the node or any ancestor.
func displayed(n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		if nonRenderedTags[cur.Data] {
			return false
		}
		if hasAttr(cur, "hidden") {
			return false
		}
		if cur.Data == "input" && strings.EqualFold(htmlquery.SelectAttr(cur, "type"), "hidden") {
			return false
		}
		style := strings.ReplaceAll(strings.ToLower(htmlquery.SelectAttr(cur, "style")), " ", "")
		if strings.Contains(style, "display:none") {
			return false
		}
		if cur == n && strings.Contains(style, "visibility:hidden") {
			return false
		}
	}
	return true
}

// visibleText is the whitespace-normalised text of the displayed subtree.
func visibleText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		switch cur.Type {
		case html.TextNode:
			b.WriteString(cur.Data)
			b.WriteByte(' ')
		case html.ElementNode:
			if nonRenderedTags[cur.Data] || !displayedSelf(cur) {
				return
			}
			if cur.Data == "br" {
				b.WriteByte(' ')
			}
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// displayedSelf checks only the node's own hiding markup.
func displayedSelf(n *html.Node) bool {
	if hasAttr(n, "hidden") {
		return false
	}
	style := strings.ReplaceAll(strings.ToLower(htmlquery.SelectAttr(n, "style")), " ", "")
	return !strings.Contains(style, "display:none") && !strings.Contains(style, "visibility:hidden")
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func removeAttr(n *html.Node, key string) {
	for i, attr := range n.Attr {
		if attr.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

func setAttr(n *html.Node, key, val string) {
	for i, attr := range n.Attr {
		if attr.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func findAncestor(n *html.Node, tag string) *html.Node {
	for cur := n.Parent; cur != nil; cur = cur.Parent {
		if cur.Type == html.ElementNode && cur.Data == tag {
			return cur
		}
	}
	return nil
}

// attached reports whether n is still reachable from root.
func attached(root, n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur == root {
			return true
		}
	}
	return false
}
