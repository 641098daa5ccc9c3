package scenario

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/stepwise/internal/browser/htmldom"
)

func TestRunAll(t *testing.T) {
	scenarios := []*Scenario{
		decode(t, "name: one\nsteps:\n  - action: find\n    locator: {type: id, value: pay}\n"),
		decode(t, "name: two\nsteps:\n  - action: find\n    locator: {type: id, value: missing}\n"),
		decode(t, "name: three\nsteps:\n  - action: hover\n    locator: {type: id, value: menu}\n"),
	}
	released := make(chan string, len(scenarios))
	factory := func(ctx context.Context, sc *Scenario) (*Runner, func(), error) {
		r, err := NewRunner(htmldom.MustParse(cart), WithWait(fast))
		return r, func() { released <- sc.Name }, err
	}

	reports, err := RunAll(context.Background(), scenarios, 2, factory)
	require.NoError(t, err)
	require.Len(t, reports, 3)
	assert.Equal(t, "one", reports[0].Scenario)
	assert.True(t, reports[0].Passed())
	assert.Equal(t, "two", reports[1].Scenario)
	assert.Equal(t, 1, reports[1].Count(SoftFailed))
	assert.Equal(t, "three", reports[2].Scenario)
	assert.Len(t, released, 3)
}

func TestRunAllSessionFailure(t *testing.T) {
	scenarios := []*Scenario{decode(t, "name: one\nsteps:\n  - action: dismiss_alert\n")}
	factory := func(context.Context, *Scenario) (*Runner, func(), error) {
		return nil, nil, errors.New("chrome not found")
	}
	_, err := RunAll(context.Background(), scenarios, 0, factory)
	assert.ErrorContains(t, err, `opening session for "one": chrome not found`)
}
