package cdp

import (
	"errors"
	"testing"

	"github.com/chromedp/cdproto/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/stepwise/internal/webdriver"
)

func TestScriptFunction(t *testing.T) {
	el := &Element{object: runtime.RemoteObjectID("obj-1")}
	fn, objects, err := scriptFunction("return arguments[0].id + arguments[1];", []any{el, "x"})
	require.NoError(t, err)

	require.Len(t, objects, 1)
	assert.Equal(t, runtime.RemoteObjectID("obj-1"), objects[0].ObjectID)
	assert.Contains(t, fn, "apply(window, [__el[0], \"x\"])")
	assert.Contains(t, fn, "return arguments[0].id + arguments[1];")
}

func TestScriptFunctionRejectsUnencodable(t *testing.T) {
	_, _, err := scriptFunction("return 1;", []any{make(chan int)})
	assert.ErrorContains(t, err, "encoding script argument 0")
}

func TestClassifyJSError(t *testing.T) {
	tests := []struct {
		name     string
		msg      string
		sentinel error
		contains string
	}{
		{"GuardedStale", "stale element reference: element is not attached to the page document", webdriver.ErrStaleElement, "stale element reference"},
		{"ReleasedObject", "Could not find object with given id", webdriver.ErrStaleElement, "stale element reference"},
		{"Navigated", "Execution context was destroyed.", webdriver.ErrStaleElement, "stale element reference"},
		{"ClosedTab", "No target with given id found", webdriver.ErrNoSuchWindow, "No target"},
		{"Plain", "foo is not defined", nil, "javascript error: foo is not defined"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyJSError(tt.msg, nil)
			var de *webdriver.DriverError
			require.True(t, errors.As(err, &de))
			assert.Contains(t, de.Message, tt.contains)
			if tt.sentinel != nil {
				assert.ErrorIs(t, err, tt.sentinel)
			} else {
				assert.False(t, webdriver.IsTransient(err))
			}
		})
	}
}

func TestClassifyJSErrorKeepsCause(t *testing.T) {
	cause := errors.New("websocket closed")
	err := classifyJSError(cause.Error(), cause)
	assert.ErrorIs(t, err, cause)
}

func TestExceptionText(t *testing.T) {
	exc := &runtime.ExceptionDetails{
		Text:      "Uncaught",
		Exception: &runtime.RemoteObject{Description: "Error: invalid selector: xpath\n    at <anonymous>:1:1"},
	}
	assert.Equal(t, "invalid selector: xpath", exceptionText(exc))
	assert.Equal(t, "Uncaught", exceptionText(&runtime.ExceptionDetails{Text: "Uncaught"}))
}

func TestDecodeValue(t *testing.T) {
	v, err := decodeValue(nil)
	assert.NoError(t, err)
	assert.Nil(t, v)

	v, err = decodeValue(&runtime.RemoteObject{Type: runtime.TypeUndefined})
	assert.NoError(t, err)
	assert.Nil(t, v)

	v, err = decodeValue(&runtime.RemoteObject{Type: runtime.TypeString, Value: []byte(`"complete"`)})
	require.NoError(t, err)
	assert.Equal(t, "complete", v)

	v, err = decodeValue(&runtime.RemoteObject{Type: runtime.TypeNumber, Value: []byte(`3`)})
	require.NoError(t, err)
	assert.Equal(t, float64(3), v)
}

func TestScopedXPath(t *testing.T) {
	tests := map[string]string{
		"//span":           ".//span",
		"  //span":         ".//span",
		"/html/body":       "./html/body",
		"(//li)[2]":        "(.//li)[2]",
		".//span":          ".//span",
		"span[@class='x']": "span[@class='x']",
		"self::div":        "self::div",
		"//a | //b":        ".//a | //b",
	}
	for in, want := range tests {
		assert.Equal(t, want, scopedXPath(in), in)
	}
}
