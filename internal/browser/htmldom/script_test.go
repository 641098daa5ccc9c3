package htmldom

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/stepwise/internal/webdriver"
)

func TestExecuteScriptBuiltins(t *testing.T) {
	ctx := context.Background()
	d := MustParse(checkout)
	pay := mustFindOne(t, d, byID("pay"))

	state, err := d.ExecuteScript(ctx, webdriver.ScriptReadyState)
	require.NoError(t, err)
	assert.Equal(t, "complete", state)
	d.SetReadyState("loading")
	state, err = d.ExecuteAsyncScript(ctx, webdriver.ScriptReadyState)
	require.NoError(t, err)
	assert.Equal(t, "loading", state)

	active, err := d.ExecuteScript(ctx, webdriver.ScriptActiveElement)
	require.NoError(t, err)
	assert.Nil(t, active)

	_, err = d.ExecuteScript(ctx, webdriver.ScriptFocus, pay)
	require.NoError(t, err)
	active, err = d.ExecuteScript(ctx, webdriver.ScriptActiveElement)
	require.NoError(t, err)
	assert.Equal(t, pay.ID(), active.(*Element).ID())

	_, err = d.ExecuteScript(ctx, webdriver.ScriptHover, pay)
	require.NoError(t, err)
	assert.Equal(t, []string{pay.ID()}, d.Hovers())

	_, err = d.ExecuteScript(ctx, webdriver.ScriptScrollIntoView, pay)
	assert.NoError(t, err)
}

func TestExecuteScriptArguments(t *testing.T) {
	ctx := context.Background()
	d := MustParse(checkout)
	other := MustParse(checkout)
	foreign := mustFindOne(t, other, byID("pay"))

	_, err := d.ExecuteScript(ctx, webdriver.ScriptClick)
	assert.ErrorContains(t, err, "arguments[0] is undefined")

	_, err = d.ExecuteScript(ctx, webdriver.ScriptClick, "pay")
	assert.ErrorContains(t, err, "not an element of this document")

	_, err = d.ExecuteScript(ctx, webdriver.ScriptFocus, foreign)
	assert.ErrorContains(t, err, "not an element of this document")
}

func TestExecuteScriptHandlers(t *testing.T) {
	ctx := context.Background()
	d := MustParse(checkout)

	_, err := d.ExecuteScript(ctx, "return window.innerWidth;")
	assert.ErrorIs(t, err, webdriver.ErrUnsupported)

	d.HandleScript("return window.innerWidth;", func(ctx context.Context, doc *Document, args []any) (any, error) {
		return 1280, nil
	})
	got, err := d.ExecuteScript(ctx, "return window.innerWidth;")
	require.NoError(t, err)
	assert.Equal(t, 1280, got)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = d.ExecuteScript(cancelled, webdriver.ScriptReadyState)
	assert.ErrorIs(t, err, context.Canceled)
}
