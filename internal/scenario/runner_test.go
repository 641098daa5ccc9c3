package scenario

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/stepwise/internal/browser/htmldom"
	"github.com/xkilldash9x/stepwise/internal/config"
	"github.com/xkilldash9x/stepwise/internal/events"
	"github.com/xkilldash9x/stepwise/internal/mocks"
	"github.com/xkilldash9x/stepwise/internal/wait"
	"github.com/xkilldash9x/stepwise/internal/webdriver"
)

const cart = `<html><body>
<form>
  <input id="name" value="guest">
  <button id="pay" type="button">Pay</button>
  <button id="save" type="button">Save</button>
  <button class="dup">A</button><button class="dup">B</button>
</form>
<div id="menu">Menu</div>
<p id="note" hidden>Thanks</p>
</body></html>`

const cartURL = "https://shop.test/cart"

var fast = wait.Options{Timeout: 200 * time.Millisecond, Poll: 10 * time.Millisecond}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}

func decode(t *testing.T, doc string) *Scenario {
	t.Helper()
	sc, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)
	return sc
}

func outcomes(r Report) []Outcome {
	out := make([]Outcome, len(r.Steps))
	for i, s := range r.Steps {
		out[i] = s.Outcome
	}
	return out
}

type recordingSink struct {
	mu    sync.Mutex
	types []events.Type
}

func (s *recordingSink) Post(_ context.Context, t events.Type, _ any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.types = append(s.types, t)
	return nil
}

func newCart(t *testing.T) *htmldom.Document {
	t.Helper()
	return htmldom.MustParse("<html></html>",
		htmldom.WithLogger(zaptest.NewLogger(t)),
		htmldom.WithPage(cartURL, cart),
	)
}

func TestRunPassesEveryStep(t *testing.T) {
	doc := newCart(t)
	doc.OnClick("pay", func(_ context.Context, d *htmldom.Document, _ *htmldom.Element) error {
		d.OpenAlert("Confirm payment?")
		return nil
	})
	sink := &recordingSink{}
	r, err := NewRunner(doc,
		WithWait(fast),
		WithAlertWait(fast),
		WithEvents(sink),
		WithLogger(zaptest.NewLogger(t)),
	)
	require.NoError(t, err)

	sc := decode(t, `name: pay
url: https://shop.test/cart
steps:
  - action: wait_visible
    locator: {type: id, value: pay}
  - action: find
    locator: {type: tag_name, value: button, visibility: all}
  - action: type
    locator: {type: id, value: name}
    text: Ada
    clear: true
  - action: focus
    locator: {type: id, value: name}
  - action: hover
    locator: {type: id, value: menu}
  - action: click
    locator: {type: id, value: pay}
  - action: accept_alert
    text: yes
  - action: click
    locator: {type: id, value: save}
  - action: wait_invisible
    locator: {type: id, value: note}
`)
	report := r.Run(context.Background(), sc)
	require.NoError(t, report.Err())
	assert.True(t, report.Passed())
	assert.Equal(t, "pay", report.Scenario)
	require.Len(t, report.Steps, 10)
	assert.Equal(t, "open "+cartURL, report.Steps[0].Name)

	assert.Equal(t, 1, report.Steps[1].Matched)
	assert.Equal(t, 4, report.Steps[2].Matched)

	payClick := report.Steps[6].Click
	require.NotNil(t, payClick)
	assert.True(t, payClick.Clicked)
	assert.True(t, payClick.AlertPresent)
	assert.Equal(t, "Confirm payment?", report.Steps[7].AlertText)
	assert.Equal(t, []string{"accept:Confirm payment?"}, doc.AlertHistory())
	assert.Equal(t, "yes", doc.PromptText())

	saveClick := report.Steps[8].Click
	require.NotNil(t, saveClick)
	assert.False(t, saveClick.AlertPresent)

	// Only the click that raised no alert resets contexts.
	assert.Equal(t, 1, report.ContextResets)
	assert.Equal(t, []events.Type{events.TypeAlertDetected, events.TypeContextReset, events.TypePageLoadEnded}, sink.types)

	names, err := doc.FindElements(context.Background(), webdriver.CSS("#name"))
	require.NoError(t, err)
	v, err := names[0].GetAttribute(context.Background(), "value")
	require.NoError(t, err)
	assert.Equal(t, "Ada", v)
	assert.Len(t, doc.Hovers(), 1)
}

func TestRunSoftFailuresContinue(t *testing.T) {
	doc := htmldom.MustParse(cart)
	r, err := NewRunner(doc, WithWait(fast), WithAlertWait(fast))
	require.NoError(t, err)

	sc := decode(t, `name: soft
steps:
  - action: find
    locator: {type: id, value: missing}
  - action: wait_visible
    locator: {type: id, value: note}
    timeout: 30ms
  - action: accept_alert
    timeout: 30ms
  - action: click
    locator: {type: class_name, value: dup}
  - action: click
    locator: {type: class_name, value: dup, match_all: true}
`)
	report := r.Run(context.Background(), sc)

	want := []Outcome{SoftFailed, SoftFailed, SoftFailed, SoftFailed, Passed}
	if diff := cmp.Diff(want, outcomes(report)); diff != "" {
		t.Fatalf("outcomes mismatch (-want +got):\n%s", diff)
	}
	assert.Contains(t, report.Steps[0].Failures[0], "no element found")
	assert.Contains(t, report.Steps[1].Failures[0], "timed out after 30ms")
	assert.Equal(t, []string{"no alert present"}, report.Steps[2].Failures)
	assert.Contains(t, report.Steps[3].Failures[0], wait.ErrNotUnique.Error())
	assert.Len(t, multierr.Errors(report.Err()), 4)
	assert.False(t, report.Passed())
	assert.Equal(t, 4, report.Count(SoftFailed))
}

func TestRunFatalSkipsRest(t *testing.T) {
	doc := htmldom.MustParse(cart)
	boom := errors.New("invalid session id")
	doc.OnClick("pay", func(context.Context, *htmldom.Document, *htmldom.Element) error { return boom })
	r, err := NewRunner(doc, WithWait(fast))
	require.NoError(t, err)

	report := r.Run(context.Background(), decode(t, `steps:
  - action: click
    locator: {type: id, value: pay}
  - action: hover
    locator: {type: id, value: menu}
`))
	if diff := cmp.Diff([]Outcome{Fatal, Skipped}, outcomes(report)); diff != "" {
		t.Fatalf("outcomes mismatch (-want +got):\n%s", diff)
	}
	assert.ErrorIs(t, report.Steps[0].Err, boom)
	assert.ErrorIs(t, report.Err(), boom)
	assert.Empty(t, doc.Hovers())
}

func TestRunNavigateFailures(t *testing.T) {
	t.Run("UnknownPage", func(t *testing.T) {
		r, err := NewRunner(newCart(t), WithWait(fast))
		require.NoError(t, err)
		report := r.Run(context.Background(), &Scenario{Name: "lost", URL: "https://shop.test/404", Steps: []Step{{Action: ActionDismissAlert}}})
		assert.Equal(t, []Outcome{Fatal, Skipped}, outcomes(report))
	})

	t.Run("DriverCannotNavigate", func(t *testing.T) {
		r, err := NewRunner(&mocks.MockDriver{}, WithWait(fast))
		require.NoError(t, err)
		report := r.Run(context.Background(), &Scenario{Steps: []Step{{Action: ActionNavigate, URL: cartURL}}})
		require.Len(t, report.Steps, 1)
		assert.ErrorIs(t, report.Steps[0].Err, webdriver.ErrUnsupported)
	})
}

func TestRunStepRateHonoursCancellation(t *testing.T) {
	r, err := NewRunner(htmldom.MustParse(cart), WithStepRate(1))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := r.Run(ctx, decode(t, "steps:\n  - action: find\n    locator: {type: id, value: pay}\n  - action: dismiss_alert\n"))
	assert.Equal(t, []Outcome{Fatal, Skipped}, outcomes(report))
	assert.ErrorIs(t, report.Steps[0].Err, context.Canceled)
}

func TestNewRunnerRejectsBadInteractionConfig(t *testing.T) {
	cfg := config.NewDefaultConfig().Interaction()
	cfg.Classification.Rules = []config.RuleConfig{{Pattern: "(", Class: "retryable"}}
	_, err := NewRunner(htmldom.MustParse(cart), WithInteraction(cfg))
	assert.ErrorContains(t, err, "interaction config")

	_, err = NewRunner(htmldom.MustParse(cart), WithInteraction(config.NewDefaultConfig().Interaction()))
	assert.NoError(t, err)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "soft-failed", SoftFailed.String())
	assert.Equal(t, "outcome(9)", Outcome(9).String())
}
