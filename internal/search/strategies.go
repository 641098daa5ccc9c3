package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xkilldash9x/stepwise/internal/locator"
	"github.com/xkilldash9x/stepwise/internal/webdriver"
)

const (
	upperAlpha = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerAlpha = "abcdefghijklmnopqrstuvwxyz"
)

// byQuery adapts a value-to-By translation into a Strategy.
func byQuery(translate func(value string) webdriver.By) Strategy {
	return func(ctx context.Context, sc webdriver.SearchContext, value string, _ locator.SearchParameters) ([]webdriver.Element, error) {
		return sc.FindElements(ctx, translate(value))
	}
}

// relativeXPath builds a descendant-scoped query from a predicate.
func relativeXPath(format string) func(string) webdriver.By {
	return func(value string) webdriver.By {
		return webdriver.XPath(fmt.Sprintf(format, XPathLiteral(value)))
	}
}

func builtinStrategies() map[locator.AttributeType]Strategy {
	return map[locator.AttributeType]Strategy{
		locator.ID:   byQuery(relativeXPath(".//*[@id=%s]")),
		locator.Name: byQuery(relativeXPath(".//*[@name=%s]")),
		locator.XPath: byQuery(func(v string) webdriver.By {
			return webdriver.XPath(v)
		}),
		locator.CSS: byQuery(func(v string) webdriver.By {
			return webdriver.CSS(v)
		}),
		locator.LinkText: byQuery(func(v string) webdriver.By {
			return webdriver.By{Using: webdriver.ByLinkText, Value: v}
		}),
		locator.PartialLinkText: byQuery(func(v string) webdriver.By {
			return webdriver.By{Using: webdriver.ByPartialLinkText, Value: v}
		}),
		locator.TagName: byQuery(func(v string) webdriver.By {
			return webdriver.By{Using: webdriver.ByTagName, Value: strings.ToLower(strings.TrimSpace(v))}
		}),
		locator.ClassName: byQuery(func(v string) webdriver.By {
			return webdriver.XPath(fmt.Sprintf(
				".//*[contains(concat(' ', normalize-space(@class), ' '), %s)]",
				XPathLiteral(" "+strings.TrimSpace(v)+" ")))
		}),
		locator.CaseSensitiveText: byQuery(relativeXPath(".//*[text()[normalize-space(.)=%s]]")),
		locator.CaseInsensitiveText: byQuery(func(v string) webdriver.By {
			return webdriver.XPath(fmt.Sprintf(
				".//*[text()[translate(normalize-space(.), '%s', '%s')=%s]]",
				upperAlpha, lowerAlpha, XPathLiteral(strings.ToLower(strings.TrimSpace(v)))))
		}),
		locator.ContainsText: byQuery(relativeXPath(".//*[text()[contains(normalize-space(.), %s)]]")),
		locator.Attribute: byQuery(func(v string) webdriver.By {
			name, value, _ := locator.SplitAttributeValue(v)
			return webdriver.XPath(fmt.Sprintf(".//*[@%s=%s]", name, XPathLiteral(value)))
		}),
		locator.Placeholder: byQuery(relativeXPath(".//*[@placeholder=%s]")),
		locator.Title:       byQuery(relativeXPath(".//*[@title=%s]")),
	}
}

// XPathLiteral quotes s as an XPath 1.0 string literal. Strings containing
// both quote characters are assembled with concat().
func XPathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	args := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			args = append(args, `"'"`)
		}
		if p != "" {
			args = append(args, "'"+p+"'")
		}
	}
	return "concat(" + strings.Join(args, ", ") + ")"
}

// keepIf is the shared shape of the built-in filters.
func keepIf(pred func(ctx context.Context, el webdriver.Element, value string) (bool, error)) Filter {
	return func(ctx context.Context, elements []webdriver.Element, value string) ([]webdriver.Element, error) {
		out := make([]webdriver.Element, 0, len(elements))
		for _, el := range elements {
			ok, err := pred(ctx, el, value)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, el)
			}
		}
		return out, nil
	}
}

func builtinFilters() map[locator.FilterType]Filter {
	return map[locator.FilterType]Filter{
		locator.FilterText: keepIf(func(ctx context.Context, el webdriver.Element, value string) (bool, error) {
			text, err := el.Text(ctx)
			return strings.TrimSpace(text) == strings.TrimSpace(value), err
		}),
		locator.FilterContainsText: keepIf(func(ctx context.Context, el webdriver.Element, value string) (bool, error) {
			text, err := el.Text(ctx)
			return strings.Contains(text, value), err
		}),
		locator.FilterAttribute: keepIf(func(ctx context.Context, el webdriver.Element, value string) (bool, error) {
			name, want, err := locator.SplitAttributeValue(value)
			if err != nil {
				return false, err
			}
			got, err := el.GetAttribute(ctx, name)
			return got == want, err
		}),
		locator.FilterClassName: keepIf(func(ctx context.Context, el webdriver.Element, value string) (bool, error) {
			class, err := el.GetAttribute(ctx, "class")
			if err != nil {
				return false, err
			}
			for _, c := range strings.Fields(class) {
				if c == strings.TrimSpace(value) {
					return true, nil
				}
			}
			return false, nil
		}),
		locator.FilterEnabled: keepIf(func(ctx context.Context, el webdriver.Element, value string) (bool, error) {
			want, err := strconv.ParseBool(strings.TrimSpace(value))
			if err != nil {
				return false, &locator.InvalidLocatorError{Reason: err.Error()}
			}
			enabled, err := el.IsEnabled(ctx)
			return enabled == want, err
		}),
		locator.FilterTagName: keepIf(func(ctx context.Context, el webdriver.Element, value string) (bool, error) {
			tag, err := el.TagName(ctx)
			return strings.EqualFold(tag, strings.TrimSpace(value)), err
		}),
		locator.FilterIndex: indexFilter,
	}
}

// indexFilter keeps the n-th element (1-based), or nothing when out of range.
func indexFilter(_ context.Context, elements []webdriver.Element, value string) ([]webdriver.Element, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 1 {
		return nil, &locator.InvalidLocatorError{Reason: fmt.Sprintf("index filter needs a positive integer, got %q", value)}
	}
	if n > len(elements) {
		return []webdriver.Element{}, nil
	}
	return []webdriver.Element{elements[n-1]}, nil
}
