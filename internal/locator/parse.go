package locator

import (
	"sort"
	"strconv"
	"strings"
)

// Keys understood by Parse.
const (
	KeyType       = "type"
	KeyValue      = "value"
	KeyVisibility = "visibility"
	KeyWait       = "wait"
	KeyMatchAll   = "match_all"
	keyFilter     = "filter."
)

// Parse builds a Locator from the flat key/value form of a step table row:
//
//	type: xpath
//	value: //button
//	visibility: all
//	filter.text: Go
//
// Filters are applied in key order so the result is deterministic.
func Parse(row map[string]string) (Locator, error) {
	t, err := ParseAttributeType(row[KeyType])
	if err != nil {
		return Locator{}, err
	}

	opts := []Option{}
	if v, ok := row[KeyVisibility]; ok {
		vis, err := ParseVisibility(v)
		if err != nil {
			return Locator{}, err
		}
		opts = append(opts, WithVisibility(vis))
	}
	if v, ok := row[KeyWait]; ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return Locator{}, &InvalidLocatorError{Reason: "wait must be true or false"}
		}
		opts = append(opts, WithWaitForElement(b))
	}
	if v, ok := row[KeyMatchAll]; ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return Locator{}, &InvalidLocatorError{Reason: "match_all must be true or false"}
		}
		opts = append(opts, WithMatchAll(b))
	}

	var filterKeys []string
	for k := range row {
		if strings.HasPrefix(k, keyFilter) {
			filterKeys = append(filterKeys, k)
		}
	}
	sort.Strings(filterKeys)
	for _, k := range filterKeys {
		ft, err := ParseFilterType(strings.TrimPrefix(k, keyFilter))
		if err != nil {
			return Locator{}, err
		}
		opts = append(opts, WithFilter(ft, row[k]))
	}

	return New(t, row[KeyValue], opts...)
}
