package cdp

import (
	"context"
	"net/url"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/stepwise/internal/alert"
	"github.com/xkilldash9x/stepwise/internal/config"
	"github.com/xkilldash9x/stepwise/internal/wait"
	"github.com/xkilldash9x/stepwise/internal/webdriver"
)

const fixture = `<html><body>
<button id="go" onclick="alert('saved')">Save</button>
<div id="cover-target"><button id="covered">Hidden</button>
<div style="position:fixed;top:0;left:0;width:100%;height:100%;background:#fff" id="overlay"></div></div>
<input id="name" value="old">
<p id="hidden" style="display:none">secret</p>
</body></html>`

// startBrowser launches a headless Chrome, skipping when none is installed.
func startBrowser(t *testing.T) *Browser {
	t.Helper()
	if testing.Short() {
		t.Skip("browser test skipped in short mode")
	}
	var found bool
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser"} {
		if _, err := exec.LookPath(name); err == nil {
			found = true
			break
		}
	}
	if !found {
		t.Skip("no Chrome binary on PATH")
	}

	cfg := config.NewDefaultConfig().Browser()
	cfg.Headless = true
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	b, err := Launch(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { b.Close(5 * time.Second) })
	return b
}

// openTab opens a tab of b showing markup.
func openTab(t *testing.T, b *Browser, markup string) *Driver {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	d, err := b.NewDriver(ctx)
	require.NoError(t, err)
	require.NoError(t, d.Navigate(ctx, "data:text/html,"+url.PathEscape(markup)))
	return d
}

func startDriver(t *testing.T) *Driver {
	t.Helper()
	return openTab(t, startBrowser(t), fixture)
}

func TestDriverAgainstChrome(t *testing.T) {
	d := startDriver(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	els, err := d.FindElements(ctx, webdriver.CSS("#name"))
	require.NoError(t, err)
	require.Len(t, els, 1)
	input := els[0]

	v, err := input.GetAttribute(ctx, "value")
	require.NoError(t, err)
	assert.Equal(t, "old", v)
	require.NoError(t, input.Clear(ctx))
	require.NoError(t, input.SendKeys(ctx, "new"))
	v, err = input.GetAttribute(ctx, "value")
	require.NoError(t, err)
	assert.Equal(t, "new", v)

	hidden, err := d.FindElements(ctx, webdriver.XPath("//p[@id='hidden']"))
	require.NoError(t, err)
	require.Len(t, hidden, 1)
	shown, err := hidden[0].IsDisplayed(ctx)
	require.NoError(t, err)
	assert.False(t, shown)

	state, err := d.ExecuteScript(ctx, "return document.readyState;")
	require.NoError(t, err)
	assert.Equal(t, "complete", state)

	covered, err := d.FindElements(ctx, webdriver.CSS("#covered"))
	require.NoError(t, err)
	require.Len(t, covered, 1)
	err = covered[0].Click(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "element click intercepted")

	_, err = d.AlertText(ctx)
	assert.ErrorIs(t, err, webdriver.ErrNoAlert)

	_, err = d.ExecuteScript(ctx, "document.getElementById('overlay').remove();")
	require.NoError(t, err)
	buttons, err := d.FindElements(ctx, webdriver.CSS("#go"))
	require.NoError(t, err)
	require.Len(t, buttons, 1)
	require.NoError(t, buttons[0].Click(ctx))

	assert.Eventually(t, func() bool {
		text, err := d.AlertText(ctx)
		return err == nil && text == "saved"
	}, 5*time.Second, 50*time.Millisecond)
	require.NoError(t, d.AcceptAlert(ctx))
	_, err = d.AlertText(ctx)
	assert.ErrorIs(t, err, webdriver.ErrNoAlert)
}

func TestClosedWindowFallsBackToLiveTab(t *testing.T) {
	b := startBrowser(t)
	d := openTab(t, b, fixture)
	other := openTab(t, b, `<title>other</title><p id="other">still here</p>`)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	closed := d.CurrentWindowHandle()
	handles, err := d.WindowHandles(ctx)
	require.NoError(t, err)
	assert.Contains(t, handles, closed)
	assert.Contains(t, handles, other.CurrentWindowHandle())

	d.mu.RLock()
	closeTab := d.cancel
	d.mu.RUnlock()
	closeTab()

	_, err = d.AlertText(ctx)
	require.ErrorIs(t, err, webdriver.ErrNoSuchWindow)

	handles, err = d.WindowHandles(ctx)
	require.NoError(t, err)
	assert.NotContains(t, handles, closed)

	coord := alert.NewCoordinator(d, wait.Options{Timeout: time.Second, Poll: 50 * time.Millisecond}, zaptest.NewLogger(t))
	assert.False(t, coord.IsAlertPresent(ctx))

	assert.NotEqual(t, closed, d.CurrentWindowHandle())
	_, err = d.CurrentURL(ctx)
	require.NoError(t, err)
	_, err = d.AlertText(ctx)
	assert.ErrorIs(t, err, webdriver.ErrNoAlert)
	els, err := d.FindElements(ctx, webdriver.XPath("//body"))
	require.NoError(t, err)
	assert.Len(t, els, 1)
}

func TestElementXPathStaysInsideElement(t *testing.T) {
	d := startDriver(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	scopes, err := d.FindElements(ctx, webdriver.CSS("#cover-target"))
	require.NoError(t, err)
	require.Len(t, scopes, 1)

	inputs, err := scopes[0].FindElements(ctx, webdriver.XPath("//input"))
	require.NoError(t, err)
	assert.Empty(t, inputs)

	buttons, err := scopes[0].FindElements(ctx, webdriver.XPath("//button"))
	require.NoError(t, err)
	require.Len(t, buttons, 1)
	id, err := buttons[0].GetAttribute(ctx, "id")
	require.NoError(t, err)
	assert.Equal(t, "covered", id)
}
