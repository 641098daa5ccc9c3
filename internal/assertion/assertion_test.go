package assertion

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRecorder(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := NewRecorder(zap.New(core))

	assert.NoError(t, r.Err())
	r.Fail("first")
	r.Fail("second")

	assert.Equal(t, 2, r.Count())
	assert.Equal(t, []string{"first", "second"}, r.Failures())
	assert.Len(t, multierr.Errors(r.Err()), 2)
	assert.Equal(t, 2, logs.FilterMessage("Soft assertion failed.").Len())

	assert.Equal(t, []string{"first", "second"}, r.Reset())
	assert.Equal(t, 0, r.Count())
}

func TestRecorderConcurrent(t *testing.T) {
	r := NewRecorder(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Fail("x")
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, r.Count())
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() { Discard.Fail("ignored") })
}
