package cdp

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/stepwise/internal/config"
)

func flagMap(flags []launchFlag) map[string]any {
	m := make(map[string]any, len(flags))
	for _, f := range flags {
		m[f.name] = f.value
	}
	return m
}

func TestLaunchFlags(t *testing.T) {
	t.Run("Headless", func(t *testing.T) {
		m := flagMap(launchFlags(config.BrowserConfig{Headless: true}))
		assert.Equal(t, true, m["headless"])
		assert.Equal(t, true, m["disable-gpu"])
		assert.NotContains(t, m, "ignore-certificate-errors")
		assert.NotContains(t, m, "window-size")
	})

	t.Run("Headful", func(t *testing.T) {
		m := flagMap(launchFlags(config.BrowserConfig{}))
		assert.Equal(t, false, m["headless"])
	})

	t.Run("TLSAndViewport", func(t *testing.T) {
		cfg := config.BrowserConfig{IgnoreTLSErrors: true}
		cfg.Viewport.Width, cfg.Viewport.Height = 1024, 768
		m := flagMap(launchFlags(cfg))
		assert.Equal(t, true, m["ignore-certificate-errors"])
		assert.Equal(t, true, m["allow-insecure-localhost"])
		assert.Equal(t, "1024,768", m["window-size"])
	})

	t.Run("CustomArgsOverride", func(t *testing.T) {
		flags := launchFlags(config.BrowserConfig{
			Headless: true,
			Args:     []string{"--lang=de-DE", "mute-audio", "--headless=new"},
		})
		m := flagMap(flags)
		assert.Equal(t, "de-DE", m["lang"])
		assert.Equal(t, true, m["mute-audio"])
		// Later flags win, the same way chromedp applies them.
		assert.Equal(t, "new", m["headless"])
	})

	t.Run("Sandbox", func(t *testing.T) {
		m := flagMap(launchFlags(config.BrowserConfig{}))
		if runtime.GOOS == "linux" {
			assert.Equal(t, true, m["no-sandbox"])
		} else {
			assert.NotContains(t, m, "no-sandbox")
		}
	})
}

func TestAllocatorOptions(t *testing.T) {
	base := AllocatorOptions(config.BrowserConfig{})
	withPath := AllocatorOptions(config.BrowserConfig{ExecPath: "/opt/chrome"})
	assert.Len(t, withPath, len(base)+1)
}
