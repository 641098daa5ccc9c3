// Package locator holds the declarative description of how to find UI
// elements: a primary attribute, ordered filters, nested child locators and
// search parameters. Locators are immutable values validated at construction.
package locator

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// InvalidLocatorError is returned when a locator cannot be constructed.
type InvalidLocatorError struct {
	Reason string
}

func (e *InvalidLocatorError) Error() string {
	return "invalid locator: " + e.Reason
}

// SearchParameters control how the search engine and its callers treat the
// match set.
type SearchParameters struct {
	Visibility     Visibility
	WaitForElement bool
	MatchAll       bool
}

// DefaultSearchParameters returns visible-only, waiting, exactly-one semantics.
func DefaultSearchParameters() SearchParameters {
	return SearchParameters{Visibility: Visible, WaitForElement: true}
}

// Filter narrows a match set.
type Filter struct {
	Type  FilterType
	Value string
}

func (f Filter) String() string {
	return fmt.Sprintf(" Filter %s: '%s';", f.Type, f.Value)
}

// Locator is an immutable search description. Construct it with New.
type Locator struct {
	attributeType AttributeType
	value         string
	filters       []Filter
	children      []Locator
	params        SearchParameters
}

// Option configures a Locator during construction.
type Option func(*Locator)

// WithFilter appends a filter. Filters run in the order they are added.
func WithFilter(t FilterType, value string) Option {
	return func(l *Locator) { l.filters = append(l.filters, Filter{Type: t, Value: value}) }
}

// WithChild appends a child locator resolved against every parent match.
func WithChild(child Locator) Option {
	return func(l *Locator) { l.children = append(l.children, child) }
}

// WithParameters replaces the search parameters.
func WithParameters(p SearchParameters) Option {
	return func(l *Locator) { l.params = p }
}

// WithVisibility sets the visibility restriction.
func WithVisibility(v Visibility) Option {
	return func(l *Locator) { l.params.Visibility = v }
}

// WithWaitForElement sets whether finders should poll for the element.
func WithWaitForElement(wait bool) Option {
	return func(l *Locator) { l.params.WaitForElement = wait }
}

// WithMatchAll sets whether callers accept more than one match.
func WithMatchAll(all bool) Option {
	return func(l *Locator) { l.params.MatchAll = all }
}

// New builds and validates a Locator.
func New(t AttributeType, value string, opts ...Option) (Locator, error) {
	l := Locator{attributeType: t, value: value, params: DefaultSearchParameters()}
	for _, opt := range opts {
		opt(&l)
	}
	if err := l.validate(); err != nil {
		return Locator{}, err
	}
	return l, nil
}

// MustNew is New for statically known locators; it panics on invalid input.
func MustNew(t AttributeType, value string, opts ...Option) Locator {
	l, err := New(t, value, opts...)
	if err != nil {
		panic(err)
	}
	return l
}

func (l *Locator) validate() error {
	if !l.attributeType.Valid() {
		return &InvalidLocatorError{Reason: fmt.Sprintf("unknown attribute type %d", int(l.attributeType))}
	}
	if strings.TrimSpace(l.value) == "" {
		return &InvalidLocatorError{Reason: fmt.Sprintf("%s requires a non-empty value", l.attributeType)}
	}
	if l.attributeType == Attribute {
		if _, _, err := SplitAttributeValue(l.value); err != nil {
			return err
		}
	}
	switch l.params.Visibility {
	case Visible, All, Invisible:
	default:
		return &InvalidLocatorError{Reason: fmt.Sprintf("unknown visibility %d", int(l.params.Visibility))}
	}
	for _, f := range l.filters {
		if err := validateFilter(f); err != nil {
			return err
		}
	}
	return nil
}

func validateFilter(f Filter) error {
	if !f.Type.Valid() {
		return &InvalidLocatorError{Reason: fmt.Sprintf("unknown filter type %d", int(f.Type))}
	}
	switch f.Type {
	case FilterAttribute:
		_, _, err := SplitAttributeValue(f.Value)
		return err
	case FilterIndex:
		n, err := strconv.Atoi(strings.TrimSpace(f.Value))
		if err != nil || n < 1 {
			return &InvalidLocatorError{Reason: fmt.Sprintf("index filter needs a positive integer, got %q", f.Value)}
		}
	case FilterEnabled:
		if _, err := strconv.ParseBool(strings.TrimSpace(f.Value)); err != nil {
			return &InvalidLocatorError{Reason: fmt.Sprintf("enabled filter needs true or false, got %q", f.Value)}
		}
	case FilterText, FilterContainsText:
		if f.Value == "" {
			return &InvalidLocatorError{Reason: fmt.Sprintf("%s filter requires a value", f.Type)}
		}
	default:
		if strings.TrimSpace(f.Value) == "" {
			return &InvalidLocatorError{Reason: fmt.Sprintf("%s filter requires a value", f.Type)}
		}
	}
	return nil
}

// SplitAttributeValue splits "name=value" into its parts. The name must be an
// XML name without a namespace prefix; the value may be empty.
func SplitAttributeValue(s string) (string, string, error) {
	name, value, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", &InvalidLocatorError{Reason: fmt.Sprintf("attribute value must be name=value, got %q", s)}
	}
	if !validAttributeName(name) {
		return "", "", &InvalidLocatorError{Reason: fmt.Sprintf("%q is not a valid attribute name", name)}
	}
	return name, value, nil
}

// validAttributeName follows the XML NCName production.
func validAttributeName(name string) bool {
	for i, r := range name {
		switch {
		case r == '_' || unicode.IsLetter(r):
		case i > 0 && (r == '-' || r == '.' || r == '\u00B7' || unicode.IsDigit(r) || unicode.In(r, unicode.Mn, unicode.Mc)):
		default:
			return false
		}
	}
	return true
}

// Type returns the primary attribute type.
func (l Locator) Type() AttributeType { return l.attributeType }

// Value returns the primary search value.
func (l Locator) Value() string { return l.value }

// Parameters returns the search parameters.
func (l Locator) Parameters() SearchParameters { return l.params }

// Filters returns a copy of the filters.
func (l Locator) Filters() []Filter {
	out := make([]Filter, len(l.filters))
	copy(out, l.filters)
	return out
}

// Children returns a copy of the child locators.
func (l Locator) Children() []Locator {
	out := make([]Locator, len(l.children))
	copy(out, l.children)
	return out
}

// IsZero reports whether l was never constructed.
func (l Locator) IsZero() bool { return l.attributeType == 0 }

// With returns a copy of l with additional options applied and re-validated.
func (l Locator) With(opts ...Option) (Locator, error) {
	c := Locator{
		attributeType: l.attributeType,
		value:         l.value,
		filters:       l.Filters(),
		children:      l.Children(),
		params:        l.params,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if err := c.validate(); err != nil {
		return Locator{}, err
	}
	return c, nil
}

// String renders a deterministic description used in failure messages,
// e.g. " XPath: '//button'; Visibility: VISIBLE;".
func (l Locator) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, " %s: '%s';", l.attributeType, l.value)
	for _, f := range l.filters {
		b.WriteString(f.String())
	}
	for _, c := range l.children {
		fmt.Fprintf(&b, " Child: [%s ];", c.String())
	}
	fmt.Fprintf(&b, " Visibility: %s;", l.params.Visibility)
	if l.params.MatchAll {
		b.WriteString(" Match All;")
	}
	return b.String()
}

// Equal reports value equality, including filters and children in order.
func (l Locator) Equal(o Locator) bool {
	if l.attributeType != o.attributeType || l.value != o.value || l.params != o.params {
		return false
	}
	if len(l.filters) != len(o.filters) || len(l.children) != len(o.children) {
		return false
	}
	for i := range l.filters {
		if l.filters[i] != o.filters[i] {
			return false
		}
	}
	for i := range l.children {
		if !l.children[i].Equal(o.children[i]) {
			return false
		}
	}
	return true
}
