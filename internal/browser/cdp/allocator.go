// Package cdp drives a real Chrome over the DevTools protocol through
// chromedp. Element handles are remote object ids; every element operation
// is a small in-page function called on that object.
package cdp

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/stepwise/internal/config"
)

// launchFlag is one Chrome command-line switch.
type launchFlag struct {
	name  string
	value any
}

// launchFlags lists the switches derived from configuration, in the order
// they are applied. Later entries win.
func launchFlags(cfg config.BrowserConfig) []launchFlag {
	flags := []launchFlag{
		{"headless", cfg.Headless},
		{"disable-gpu", cfg.Headless},
		{"disable-extensions", true},
	}
	if cfg.IgnoreTLSErrors {
		flags = append(flags,
			launchFlag{"ignore-certificate-errors", true},
			launchFlag{"allow-insecure-localhost", true},
		)
	}
	if cfg.Viewport.Width > 0 && cfg.Viewport.Height > 0 {
		flags = append(flags, launchFlag{"window-size", fmt.Sprintf("%d,%d", cfg.Viewport.Width, cfg.Viewport.Height)})
	}
	for _, arg := range cfg.Args {
		name, value, hasValue := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if hasValue {
			flags = append(flags, launchFlag{name, value})
		} else {
			flags = append(flags, launchFlag{name, true})
		}
	}
	// Containers rarely allow the Chrome sandbox.
	if runtime.GOOS == "linux" {
		flags = append(flags,
			launchFlag{"no-sandbox", true},
			launchFlag{"disable-dev-shm-usage", true},
		)
	}
	return flags
}

// AllocatorOptions turns browser configuration into chromedp launch options
// on top of chromedp's defaults.
func AllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	for _, f := range launchFlags(cfg) {
		opts = append(opts, chromedp.Flag(f.name, f.value))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}

// Browser owns one Chrome process. Tabs are opened from the context of
// the first tab, which keeps the process alive until Close.
type Browser struct {
	cfg           config.BrowserConfig
	logger        *zap.Logger
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// Launch starts Chrome and waits, bounded by ctx, for it to answer.
func Launch(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Browser, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("cdp")

	allocCtx, allocCancel := chromedp.NewExecAllocator(Detach(ctx), AllocatorOptions(cfg)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithErrorf(logger.Sugar().Debugf))
	b := &Browser{cfg: cfg, logger: logger, allocCancel: allocCancel, browserCtx: browserCtx, browserCancel: browserCancel}

	// The first Run starts the process and must not use a context that is
	// cancelled afterwards, so the caller's deadline is applied around it.
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(browserCtx) }()
	select {
	case err := <-started:
		if err != nil {
			b.shutdown()
			return nil, fmt.Errorf("browser failed to start: %w", err)
		}
	case <-ctx.Done():
		b.shutdown()
		return nil, fmt.Errorf("browser failed to start: %w", ctx.Err())
	}
	logger.Info("Browser launched.", zap.Bool("headless", cfg.Headless))
	return b, nil
}

// NewDriver opens a fresh tab and returns a driver bound to it.
func (b *Browser) NewDriver(ctx context.Context) (*Driver, error) {
	var opts []chromedp.ContextOption
	if b.cfg.Debug {
		opts = append(opts, chromedp.WithDebugf(b.logger.Sugar().Debugf))
	}
	tabCtx, cancel := chromedp.NewContext(b.browserCtx, opts...)

	opened := make(chan error, 1)
	go func() { opened <- chromedp.Run(tabCtx) }()
	select {
	case err := <-opened:
		if err != nil {
			cancel()
			return nil, fmt.Errorf("opening tab: %w", err)
		}
	case <-ctx.Done():
		cancel()
		return nil, fmt.Errorf("opening tab: %w", ctx.Err())
	}

	d := newDriver(b.browserCtx, tabCtx, cancel, b.logger, b.cfg.NavigationTimeout)
	d.listen(tabCtx)
	return d, nil
}

// Close terminates the browser, waiting at most timeout for a graceful
// shutdown before killing the process.
func (b *Browser) Close(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		if err := chromedp.Cancel(b.browserCtx); err != nil {
			b.logger.Debug("Graceful browser close failed.", zap.Error(err))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		b.logger.Warn("Browser did not shut down in time.", zap.Duration("timeout", timeout))
	}
	b.shutdown()
}

func (b *Browser) shutdown() {
	b.browserCancel()
	b.allocCancel()
}
