package cdp

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/stepwise/internal/browser/htmldom"
	"github.com/xkilldash9x/stepwise/internal/scenario"
	"github.com/xkilldash9x/stepwise/internal/wait"
	"github.com/xkilldash9x/stepwise/internal/webdriver"
)

const promptPage = `<html><body>
<button id="ask" onclick="document.getElementById('out').textContent = prompt('Name?')">Ask</button>
<p id="out"></p>
</body></html>`

// promptDriver is a driver under test plus the page-specific hooks the
// contract needs.
type promptDriver struct {
	driver webdriver.Driver
	// answer returns the text the page received from the last prompt.
	answer func(ctx context.Context) string
}

func staticPromptDriver(t *testing.T) promptDriver {
	doc := htmldom.MustParse(promptPage, htmldom.WithLogger(zaptest.NewLogger(t)))
	doc.OnClick("ask", func(_ context.Context, d *htmldom.Document, _ *htmldom.Element) error {
		d.OpenAlert("Name?")
		return nil
	})
	return promptDriver{driver: doc, answer: func(context.Context) string { return doc.PromptText() }}
}

func chromePromptDriver(t *testing.T) promptDriver {
	d := openTab(t, startBrowser(t), promptPage)
	return promptDriver{driver: d, answer: func(ctx context.Context) string {
		els, err := d.FindElements(ctx, webdriver.CSS("#out"))
		if err != nil || len(els) != 1 {
			return ""
		}
		text, _ := els[0].Text(ctx)
		return text
	}}
}

func clickAsk(ctx context.Context, t *testing.T, d webdriver.Driver) {
	t.Helper()
	els, err := d.FindElements(ctx, webdriver.CSS("#ask"))
	require.NoError(t, err)
	require.Len(t, els, 1)
	require.NoError(t, els[0].Click(ctx))
}

func TestPromptAnswerContract(t *testing.T) {
	drivers := map[string]func(*testing.T) promptDriver{
		"htmldom": staticPromptDriver,
		"chrome":  chromePromptDriver,
	}
	for name, setup := range drivers {
		t.Run(name, func(t *testing.T) {
			pd := setup(t)
			d := pd.driver
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
			defer cancel()

			assert.ErrorIs(t, d.SendAlertText(ctx, "early"), webdriver.ErrNoAlert)

			clickAsk(ctx, t, d)
			require.Eventually(t, func() bool {
				text, err := d.AlertText(ctx)
				return err == nil && text == "Name?"
			}, 5*time.Second, 20*time.Millisecond)

			require.NoError(t, d.SendAlertText(ctx, "Ada"))
			text, err := d.AlertText(ctx)
			require.NoError(t, err, "sending prompt text must leave the dialog open")
			assert.Equal(t, "Name?", text)

			require.NoError(t, d.AcceptAlert(ctx))
			_, err = d.AlertText(ctx)
			assert.ErrorIs(t, err, webdriver.ErrNoAlert)
			assert.Eventually(t, func() bool { return pd.answer(ctx) == "Ada" }, 5*time.Second, 20*time.Millisecond)

			r, err := scenario.NewRunner(d,
				scenario.WithWait(wait.Options{Timeout: 2 * time.Second, Poll: 20 * time.Millisecond}),
				scenario.WithAlertWait(wait.Options{Timeout: 2 * time.Second, Poll: 20 * time.Millisecond}),
				scenario.WithLogger(zaptest.NewLogger(t)),
			)
			require.NoError(t, err)
			sc, err := scenario.Decode(strings.NewReader(`name: prompt
steps:
  - action: click
    locator: {type: id, value: ask}
  - action: accept_alert
    text: Grace
`))
			require.NoError(t, err)
			report := r.Run(ctx, sc)
			require.NoError(t, report.Err())
			assert.True(t, report.Passed())
			assert.Equal(t, "Name?", report.Steps[1].AlertText)
			assert.Eventually(t, func() bool { return pd.answer(ctx) == "Grace" }, 5*time.Second, 20*time.Millisecond)
		})
	}
}
