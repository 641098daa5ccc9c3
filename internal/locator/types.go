package locator

import (
	"fmt"
	"strings"
)

// AttributeType identifies the primary search strategy of a Locator. The set
// is closed; the search registry must carry a strategy for every member.
type AttributeType int

const (
	ID AttributeType = iota + 1
	Name
	XPath
	CSS
	LinkText
	PartialLinkText
	TagName
	ClassName
	CaseSensitiveText
	CaseInsensitiveText
	ContainsText
	Attribute
	Placeholder
	Title
)

var attributeTypeNames = map[AttributeType]string{
	ID:                  "ID",
	Name:                "Name",
	XPath:               "XPath",
	CSS:                 "CSS",
	LinkText:            "Link Text",
	PartialLinkText:     "Partial Link Text",
	TagName:             "Tag Name",
	ClassName:           "Class Name",
	CaseSensitiveText:   "Case Sensitive Text",
	CaseInsensitiveText: "Case Insensitive Text",
	ContainsText:        "Contains Text",
	Attribute:           "Attribute",
	Placeholder:         "Placeholder",
	Title:               "Title",
}

// AttributeTypes lists every member of the enum in declaration order.
func AttributeTypes() []AttributeType {
	out := make([]AttributeType, 0, len(attributeTypeNames))
	for t := ID; t <= Title; t++ {
		out = append(out, t)
	}
	return out
}

func (t AttributeType) String() string {
	if name, ok := attributeTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("AttributeType(%d)", int(t))
}

// Valid reports whether t is a member of the enum.
func (t AttributeType) Valid() bool {
	_, ok := attributeTypeNames[t]
	return ok
}

// ParseAttributeType accepts the display name in any case, with spaces,
// underscores or dashes ("xpath", "LINK_TEXT", "case-sensitive-text").
func ParseAttributeType(s string) (AttributeType, error) {
	key := normalizeKey(s)
	for t, name := range attributeTypeNames {
		if normalizeKey(name) == key {
			return t, nil
		}
	}
	switch key {
	case "text":
		return CaseSensitiveText, nil
	case "selector", "cssselector":
		return CSS, nil
	}
	return 0, &InvalidLocatorError{Reason: fmt.Sprintf("unknown attribute type %q", s)}
}

// FilterType identifies a filter applied to an initial match set.
type FilterType int

const (
	FilterText FilterType = iota + 1
	FilterContainsText
	FilterAttribute
	FilterClassName
	FilterEnabled
	FilterIndex
	FilterTagName
)

var filterTypeNames = map[FilterType]string{
	FilterText:         "Text",
	FilterContainsText: "Contains Text",
	FilterAttribute:    "Attribute",
	FilterClassName:    "Class Name",
	FilterEnabled:      "Enabled",
	FilterIndex:        "Index",
	FilterTagName:      "Tag Name",
}

// FilterTypes lists every member of the enum in declaration order.
func FilterTypes() []FilterType {
	out := make([]FilterType, 0, len(filterTypeNames))
	for t := FilterText; t <= FilterTagName; t++ {
		out = append(out, t)
	}
	return out
}

func (t FilterType) String() string {
	if name, ok := filterTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("FilterType(%d)", int(t))
}

// Valid reports whether t is a member of the enum.
func (t FilterType) Valid() bool {
	_, ok := filterTypeNames[t]
	return ok
}

// ParseFilterType accepts the display name in any case.
func ParseFilterType(s string) (FilterType, error) {
	key := normalizeKey(s)
	for t, name := range filterTypeNames {
		if normalizeKey(name) == key {
			return t, nil
		}
	}
	return 0, &InvalidLocatorError{Reason: fmt.Sprintf("unknown filter type %q", s)}
}

// Visibility restricts the final result set by displayed state.
type Visibility int

const (
	Visible Visibility = iota
	All
	Invisible
)

func (v Visibility) String() string {
	switch v {
	case Visible:
		return "VISIBLE"
	case All:
		return "ALL"
	case Invisible:
		return "INVISIBLE"
	}
	return fmt.Sprintf("Visibility(%d)", int(v))
}

// ParseVisibility accepts ALL, VISIBLE or INVISIBLE in any case.
func ParseVisibility(s string) (Visibility, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "VISIBLE", "":
		return Visible, nil
	case "ALL":
		return All, nil
	case "INVISIBLE", "HIDDEN":
		return Invisible, nil
	}
	return 0, &InvalidLocatorError{Reason: fmt.Sprintf("unknown visibility %q", s)}
}

func normalizeKey(s string) string {
	r := strings.NewReplacer(" ", "", "_", "", "-", "")
	return strings.ToLower(r.Replace(strings.TrimSpace(s)))
}
