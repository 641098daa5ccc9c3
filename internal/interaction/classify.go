package interaction

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/xkilldash9x/stepwise/internal/config"
)

// Class is the outcome of classifying a driver error.
type Class int

const (
	ClassSuccess Class = iota
	ClassRetryable
	ClassFatal
	ClassEscalateToScriptClick
)

func (c Class) String() string {
	switch c {
	case ClassSuccess:
		return "success"
	case ClassRetryable:
		return "retryable"
	case ClassFatal:
		return "fatal"
	case ClassEscalateToScriptClick:
		return "script_click"
	}
	return fmt.Sprintf("Class(%d)", int(c))
}

// ParseClass accepts the class names and aliases of config rules.
func ParseClass(s string) (Class, error) {
	name, _ := config.CanonicalRuleClass(s)
	switch name {
	case config.ClassRetryable:
		return ClassRetryable, nil
	case config.ClassFatal:
		return ClassFatal, nil
	case config.ClassScriptClick:
		return ClassEscalateToScriptClick, nil
	}
	return ClassFatal, fmt.Errorf("unknown error class %q", s)
}

// Rule maps driver error wording to a class. A rule with Browsers set only
// applies to those browsers.
type Rule struct {
	Pattern  *regexp.Regexp
	Class    Class
	Browsers []string
}

func (r Rule) appliesTo(browser string) bool {
	if len(r.Browsers) == 0 {
		return true
	}
	for _, b := range r.Browsers {
		if strings.EqualFold(b, browser) {
			return true
		}
	}
	return false
}

// Table is an ordered, versioned rule list. The first matching rule wins.
// Driver wording is not a stable contract, so the table is data and can be
// replaced from configuration.
type Table struct {
	Version int
	Rules   []Rule
}

// DefaultTable carries chromedriver, geckodriver and CDP wording.
func DefaultTable() Table {
	rule := func(pattern string, class Class, browsers ...string) Rule {
		return Rule{Pattern: regexp.MustCompile(pattern), Class: class, Browsers: browsers}
	}
	return Table{
		Version: 1,
		Rules: []Rule{
			rule(`(?i)other element would receive the click`, ClassEscalateToScriptClick),
			rule(`(?i)element click intercepted`, ClassRetryable),
			rule(`(?i)element (is )?not clickable at point`, ClassRetryable),
			rule(`(?i)timed out receiving message from renderer`, ClassRetryable),
			rule(`(?i)element not interactable`, ClassRetryable),
			rule(`(?i)is not reachable by keyboard`, ClassRetryable, "firefox"),
			rule(`(?i)could not be scrolled into view`, ClassRetryable, "firefox"),
			rule(`(?i)stale element reference`, ClassRetryable),
		},
	}
}

// TableFromConfig builds a table from configuration. An empty rule list
// yields DefaultTable.
func TableFromConfig(cfg config.ClassificationConfig) (Table, error) {
	if len(cfg.Rules) == 0 {
		return DefaultTable(), nil
	}
	t := Table{Version: cfg.Version, Rules: make([]Rule, 0, len(cfg.Rules))}
	for i, rc := range cfg.Rules {
		re, err := regexp.Compile(rc.Pattern)
		if err != nil {
			return Table{}, fmt.Errorf("classification rule %d: %w", i, err)
		}
		class, err := ParseClass(rc.Class)
		if err != nil {
			return Table{}, fmt.Errorf("classification rule %d: %w", i, err)
		}
		t.Rules = append(t.Rules, Rule{Pattern: re, Class: class, Browsers: append([]string(nil), rc.Browsers...)})
	}
	return t, nil
}

// Classifier turns driver errors into a Class using a Table.
type Classifier struct {
	table Table
}

// NewClassifier creates a classifier over table.
func NewClassifier(table Table) *Classifier {
	return &Classifier{table: table}
}

// Version reports the table version in use.
func (c *Classifier) Version() int { return c.table.Version }

// Classify maps err to a class for the given browser. nil is ClassSuccess;
// context cancellation and anything unmatched are ClassFatal.
func (c *Classifier) Classify(err error, browser string) Class {
	if err == nil {
		return ClassSuccess
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassFatal
	}
	msg := err.Error()
	for _, r := range c.table.Rules {
		if r.appliesTo(browser) && r.Pattern.MatchString(msg) {
			return r.Class
		}
	}
	return ClassFatal
}
