package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loginPage = `<html><body>
<form>
  <input id="user" name="user">
  <button id="login" type="button">Log in</button>
  <button id="reset" type="button" disabled>Reset</button>
</form>
<p id="hint" hidden>Forgot?</p>
</body></html>`

// execute runs a fresh command tree with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "stepwise "+Version+"\n", out)

	out, err = execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "stepwise version "+Version)
}

func TestLocateFile(t *testing.T) {
	page := writeTemp(t, "login.html", loginPage)

	out, err := execute(t, "locate", "--file", page, "--type", "tag_name", "--value", "button")
	require.NoError(t, err)
	assert.Contains(t, out, "2 element(s) matched")
	assert.Contains(t, out, `"Log in"`)
	assert.Contains(t, out, "visible,disabled")

	out, err = execute(t, "locate", "--file", page, "--type", "id", "--value", "hint", "--visibility", "all", "--format", "json")
	require.NoError(t, err)
	var got []match
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "p", got[0].Tag)
	assert.False(t, got[0].Displayed)

	out, err = execute(t, "locate", "--file", page, "--type", "xpath", "--value", "//button", "--filter", "text=Log in")
	require.NoError(t, err)
	assert.Contains(t, out, "1 element(s) matched")
}

func TestLocateRejectsBadInput(t *testing.T) {
	page := writeTemp(t, "login.html", loginPage)

	_, err := execute(t, "locate", "--type", "id", "--value", "user")
	assert.ErrorContains(t, err, "exactly one of --file or --url")

	_, err = execute(t, "locate", "--file", page, "--type", "sonar", "--value", "x")
	assert.ErrorContains(t, err, "sonar")

	_, err = execute(t, "locate", "--file", page, "--type", "id", "--value", "user", "--filter", "text")
	assert.ErrorContains(t, err, "must be type=value")

	_, err = execute(t, "locate", "--file", page, "--type", "id", "--value", "user", "--format", "xml")
	assert.ErrorContains(t, err, `unknown format "xml"`)
}

func TestRunScenario(t *testing.T) {
	page := writeTemp(t, "login.html", loginPage)
	good := writeTemp(t, "good.yaml", `name: login
steps:
  - action: type
    locator: {type: id, value: user}
    text: ada
  - action: click
    locator: {type: id, value: login}
  - action: wait_invisible
    locator: {type: id, value: hint}
`)
	bad := writeTemp(t, "bad.yaml", `name: broken
steps:
  - action: find
    locator: {type: id, value: nope}
    timeout: 10ms
`)

	out, err := execute(t, "run", "--html", page, good)
	require.NoError(t, err)
	assert.Contains(t, out, "PASS login (3 steps, 0 soft-failed, 0 fatal, 0 skipped, 1 context resets")

	out, err = execute(t, "run", "--html", page, "--parallel", "2", good, bad)
	assert.ErrorContains(t, err, "1 of 2 scenarios did not pass")
	assert.Contains(t, out, "PASS login")
	assert.Contains(t, out, "FAIL broken")
	assert.Contains(t, out, "no element found")
}

func TestRunRejectsInvalidScenario(t *testing.T) {
	path := writeTemp(t, "invalid.yaml", "steps:\n  - action: teleport\n")
	_, err := execute(t, "run", path)
	assert.ErrorContains(t, err, `unknown action "teleport"`)
}

func TestConfigSources(t *testing.T) {
	page := writeTemp(t, "login.html", loginPage)

	t.Run("MissingExplicitFile", func(t *testing.T) {
		_, err := execute(t, "--config", filepath.Join(t.TempDir(), "none.yaml"), "locate", "--file", page, "--type", "id", "--value", "user")
		assert.ErrorContains(t, err, "failed to initialize configuration")
	})

	t.Run("InvalidFromFile", func(t *testing.T) {
		cfg := writeTemp(t, "config.yaml", "wait:\n  poll_interval: 0s\n")
		_, err := execute(t, "--config", cfg, "version")
		assert.ErrorContains(t, err, "wait.poll_interval must be positive")
	})

	t.Run("InvalidFromEnv", func(t *testing.T) {
		t.Setenv("STEPWISE_ALERT_POLL_INTERVAL", "0s")
		_, err := execute(t, "version")
		assert.ErrorContains(t, err, "failed to load or validate config")
	})
}
