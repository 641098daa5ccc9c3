// Package scenario runs YAML step lists against a driver through the
// location, wait, alert and interaction engines.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/stepwise/internal/locator"
)

// Action names a step kind.
type Action string

const (
	ActionNavigate      Action = "navigate"
	ActionFind          Action = "find"
	ActionClick         Action = "click"
	ActionType          Action = "type"
	ActionFocus         Action = "focus"
	ActionHover         Action = "hover"
	ActionWaitVisible   Action = "wait_visible"
	ActionWaitInvisible Action = "wait_invisible"
	ActionAcceptAlert   Action = "accept_alert"
	ActionDismissAlert  Action = "dismiss_alert"
)

// needsLocator reports whether the action targets an element.
func (a Action) needsLocator() bool {
	switch a {
	case ActionFind, ActionClick, ActionType, ActionFocus, ActionHover, ActionWaitVisible, ActionWaitInvisible:
		return true
	}
	return false
}

func (a Action) valid() bool {
	switch a {
	case ActionNavigate, ActionAcceptAlert, ActionDismissAlert:
		return true
	}
	return a.needsLocator()
}

// Scenario is a named list of steps. URL, when set, is loaded before the
// first step.
type Scenario struct {
	Name  string `yaml:"name"`
	URL   string `yaml:"url,omitempty"`
	Steps []Step `yaml:"steps"`
}

// Step is one action. Locator uses the flat key form of locator.Parse.
type Step struct {
	Name    string            `yaml:"name,omitempty"`
	Action  Action            `yaml:"action"`
	Locator map[string]string `yaml:"locator,omitempty"`
	Text    string            `yaml:"text,omitempty"`
	Clear   bool              `yaml:"clear,omitempty"`
	URL     string            `yaml:"url,omitempty"`
	Timeout time.Duration     `yaml:"timeout,omitempty"`

	loc locator.Locator
}

// Label is the step's display name.
func (s Step) Label(i int) string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("step %d (%s)", i+1, s.Action)
}

// Target returns the parsed locator. It is the zero Locator for actions that
// do not target an element.
func (s Step) Target() locator.Locator { return s.loc }

// ErrEmpty is returned for a scenario without steps.
var ErrEmpty = errors.New("scenario has no steps")

// Validate parses every step locator and reports all problems at once.
func (sc *Scenario) Validate() error {
	if len(sc.Steps) == 0 {
		return ErrEmpty
	}
	var errs error
	for i := range sc.Steps {
		step := &sc.Steps[i]
		if !step.Action.valid() {
			errs = multierr.Append(errs, fmt.Errorf("%s: unknown action %q", step.Label(i), step.Action))
			continue
		}
		switch {
		case step.Action.needsLocator():
			loc, err := locator.Parse(step.Locator)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", step.Label(i), err))
				continue
			}
			step.loc = loc
		case len(step.Locator) > 0:
			errs = multierr.Append(errs, fmt.Errorf("%s: %s takes no locator", step.Label(i), step.Action))
		}
		if step.Action == ActionNavigate && step.URL == "" {
			errs = multierr.Append(errs, fmt.Errorf("%s: navigate needs a url", step.Label(i)))
		}
		if step.Timeout < 0 {
			errs = multierr.Append(errs, fmt.Errorf("%s: timeout must not be negative", step.Label(i)))
		}
	}
	return errs
}

// Decode reads one scenario document. Unknown keys are rejected.
func Decode(r io.Reader) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("decoding scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %q: %w", sc.Name, err)
	}
	return &sc, nil
}

// Load reads a scenario file. The file name is used when the scenario is
// unnamed.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	sc, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if sc.Name == "" {
		sc.Name = path
	}
	return sc, nil
}
