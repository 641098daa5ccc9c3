package wait

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/stepwise/internal/browser/htmldom"
	"github.com/xkilldash9x/stepwise/internal/locator"
	"github.com/xkilldash9x/stepwise/internal/search"
	"github.com/xkilldash9x/stepwise/internal/webdriver"
)

const (
	loadingPage = `<html><body><div id="spinner">Loading</div><button id="save" style="display:none">Save</button></body></html>`
	loadedPage  = `<html><body><button id="save">Save</button><p id="status" class="done">Saved</p></body></html>`
)

var fast = Options{Timeout: 2 * time.Second, Poll: 10 * time.Millisecond}

func newEngine() *search.Engine {
	return search.NewEngine(search.DefaultRegistry(), nil)
}

func replaceAfter(t *testing.T, doc *htmldom.Document, d time.Duration, markup string) {
	t.Helper()
	go func() {
		time.Sleep(d)
		_ = doc.Replace(markup)
	}()
}

func TestVisibilityAndPresence(t *testing.T) {
	ctx := context.Background()
	engine := newEngine()
	doc := htmldom.MustParse(loadingPage)
	save := locator.MustNew(locator.ID, "save")

	hidden := Until(ctx, doc, Options{Timeout: 30 * time.Millisecond, Poll: 10 * time.Millisecond}, VisibilityOf(engine, save), false, nil)
	assert.False(t, hidden.Passed)

	present := Until(ctx, doc, fast, PresenceOf(engine, locator.MustNew(locator.ID, "save", locator.WithVisibility(locator.All))), false, nil)
	require.True(t, present.Passed)
	assert.Equal(t, 1, present.Value.Len())

	replaceAfter(t, doc, 30*time.Millisecond, loadedPage)
	visible := Until(ctx, doc, fast, VisibilityOf(engine, save), false, nil)
	require.True(t, visible.Passed)
	assert.Equal(t, 1, visible.Value.Len())
	assert.Contains(t, VisibilityOf(engine, save).String(), "visibility of element with search attributes: ID: 'save'")
}

func TestInvisibilityAndStaleness(t *testing.T) {
	ctx := context.Background()
	engine := newEngine()
	doc := htmldom.MustParse(loadingPage)

	spinner, err := doc.FindElements(ctx, webdriver.CSS("#spinner"))
	require.NoError(t, err)
	require.Len(t, spinner, 1)

	replaceAfter(t, doc, 30*time.Millisecond, loadedPage)
	gone := Until(ctx, doc, fast, InvisibilityOf(engine, locator.MustNew(locator.ID, "spinner")), false, nil)
	assert.True(t, gone.Passed)

	stale := Until(ctx, doc, fast, StalenessOf(spinner[0]), false, nil)
	assert.True(t, stale.Passed)
}

func TestElementConditions(t *testing.T) {
	ctx := context.Background()
	doc := htmldom.MustParse(loadedPage)
	els, err := doc.FindElements(ctx, webdriver.CSS("#status"))
	require.NoError(t, err)
	status := els[0]

	assert.True(t, Until(ctx, doc, fast, TextToBePresentInElement(status, "Save"), false, nil).Passed)
	assert.True(t, Until(ctx, doc, fast, AttributeToBe(status, "class", "done"), false, nil).Passed)

	clickable := Until(ctx, doc, fast, ElementToBeClickable(status), false, nil)
	require.True(t, clickable.Passed)
	assert.Equal(t, status.ID(), clickable.Value.ID())

	count := Until(ctx, doc, fast, NumberOfElementsToBe(newEngine(), locator.MustNew(locator.TagName, "button"), 1), false, nil)
	assert.True(t, count.Passed)
}

func TestAlertAndReadyState(t *testing.T) {
	ctx := context.Background()
	doc := htmldom.MustParse(loadedPage)

	none := Until(ctx, doc, Options{Timeout: 20 * time.Millisecond, Poll: 5 * time.Millisecond}, AlertIsPresent(doc), false, nil)
	assert.False(t, none.Passed)
	assert.True(t, none.TimedOut())

	go func() {
		time.Sleep(20 * time.Millisecond)
		doc.OpenAlert("Are you sure?")
	}()
	assert.True(t, Until(ctx, doc, fast, AlertIsPresent(doc), false, nil).Passed)
	require.NoError(t, doc.AcceptAlert(ctx))

	doc.SetReadyState("loading")
	go func() {
		time.Sleep(20 * time.Millisecond)
		doc.SetReadyState("complete")
	}()
	assert.True(t, Until(ctx, doc, fast, DocumentReady(doc), false, nil).Passed)
}

func TestNotAndOr(t *testing.T) {
	ctx := context.Background()
	stale := NewCondition("stale", func(ctx context.Context, _ webdriver.SearchContext) (bool, error) {
		return false, webdriver.ErrStaleElement
	})
	fatal := NewCondition("fatal", func(ctx context.Context, _ webdriver.SearchContext) (bool, error) {
		return false, errors.New("boom")
	})
	yes := NewCondition("yes", func(ctx context.Context, _ webdriver.SearchContext) (bool, error) {
		return true, nil
	})

	assert.True(t, Until(ctx, nil, fast, Not(stale), false, nil).Passed)
	assert.False(t, Until(ctx, nil, Options{Timeout: 10 * time.Millisecond}, Not(yes), false, nil).Passed)
	assert.Error(t, Until(ctx, nil, fast, Not(fatal), false, nil).Err)

	or := Or(stale, yes)
	assert.True(t, Until(ctx, nil, fast, or, false, nil).Passed)
	assert.Equal(t, "at least one condition to be valid: stale || yes", or.String())
}

// flakyContext fails the first n searches with a stale-element error.
type flakyContext struct {
	webdriver.SearchContext
	failures int32
	calls    int32
}

func (f *flakyContext) FindElements(ctx context.Context, by webdriver.By) ([]webdriver.Element, error) {
	atomic.AddInt32(&f.calls, 1)
	if atomic.AddInt32(&f.failures, -1) >= 0 {
		return nil, webdriver.NewDriverError("find elements", "stale element reference", webdriver.ErrStaleElement)
	}
	return f.SearchContext.FindElements(ctx, by)
}

func TestFinder(t *testing.T) {
	ctx := context.Background()
	engine := newEngine()
	finder := NewFinder(engine, fast, nil)

	t.Run("NoWaitRetriesTransientOnce", func(t *testing.T) {
		root := &flakyContext{SearchContext: htmldom.MustParse(loadedPage), failures: 1}
		loc := locator.MustNew(locator.ID, "save", locator.WithWaitForElement(false))
		res, err := finder.FindElements(ctx, root, loc)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Len())
		assert.Equal(t, int32(2), atomic.LoadInt32(&root.calls))
	})

	t.Run("NoWaitGivesUpAfterOneRetry", func(t *testing.T) {
		root := &flakyContext{SearchContext: htmldom.MustParse(loadedPage), failures: 5}
		loc := locator.MustNew(locator.ID, "save", locator.WithWaitForElement(false))
		_, err := finder.FindElements(ctx, root, loc)
		assert.ErrorIs(t, err, webdriver.ErrStaleElement)
		assert.Equal(t, int32(2), atomic.LoadInt32(&root.calls))
	})

	t.Run("WaitsForElement", func(t *testing.T) {
		doc := htmldom.MustParse(loadingPage)
		replaceAfter(t, doc, 30*time.Millisecond, loadedPage)
		res, err := finder.FindElements(ctx, doc, locator.MustNew(locator.ID, "status"))
		require.NoError(t, err)
		assert.Equal(t, 1, res.Len())
	})

	t.Run("TimeoutIsEmptyNotError", func(t *testing.T) {
		doc := htmldom.MustParse(loadingPage)
		res, err := finder.FindElementsWith(ctx, doc, locator.MustNew(locator.ID, "missing"), fast.WithTimeout(20*time.Millisecond))
		require.NoError(t, err)
		assert.NotNil(t, res)
		assert.Equal(t, 0, res.Len())
	})

	t.Run("FindOne", func(t *testing.T) {
		doc := htmldom.MustParse(`<html><body><p>a</p><p>b</p></body></html>`)
		short := NewFinder(engine, fast.WithTimeout(20*time.Millisecond), nil)

		_, err := short.FindOne(ctx, doc, locator.MustNew(locator.TagName, "p"))
		assert.ErrorIs(t, err, ErrNotUnique)

		el, err := short.FindOne(ctx, doc, locator.MustNew(locator.TagName, "p", locator.WithMatchAll(true)))
		require.NoError(t, err)
		txt, _ := el.Text(ctx)
		assert.Equal(t, "a", txt)

		_, err = short.FindOne(ctx, doc, locator.MustNew(locator.TagName, "span"))
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
