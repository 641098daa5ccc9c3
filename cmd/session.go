package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/stepwise/internal/browser/cdp"
	"github.com/xkilldash9x/stepwise/internal/browser/htmldom"
	"github.com/xkilldash9x/stepwise/internal/config"
	"github.com/xkilldash9x/stepwise/internal/webdriver"
)

// browserCloseTimeout bounds a graceful Chrome shutdown.
const browserCloseTimeout = 5 * time.Second

// sessions opens drivers for commands: tabs of one Chrome when a browser is
// requested, otherwise independent static documents.
type sessions struct {
	cfg    config.Interface
	logger *zap.Logger

	htmlFile string
	pages    map[string]string

	browser *cdp.Browser
}

func newSessions(ctx context.Context, cfg config.Interface, logger *zap.Logger, useBrowser bool, htmlFile string, pages map[string]string) (*sessions, error) {
	s := &sessions{cfg: cfg, logger: logger, htmlFile: htmlFile, pages: pages}
	if useBrowser {
		b, err := cdp.Launch(ctx, cfg.Browser(), logger)
		if err != nil {
			return nil, fmt.Errorf("launching browser: %w", err)
		}
		s.browser = b
	}
	return s, nil
}

// sessionOverrides are command-line settings that take precedence over the
// loaded configuration. Zero values leave the configuration alone.
type sessionOverrides struct {
	headful    bool
	chromePath string
	timeout    time.Duration
	poll       time.Duration
}

func (o sessionOverrides) apply(cfg config.Interface) {
	if o.headful {
		cfg.SetBrowserHeadless(false)
	}
	if o.chromePath != "" {
		cfg.SetBrowserExecPath(o.chromePath)
	}
	if o.timeout > 0 {
		cfg.SetWaitTimeout(o.timeout)
	}
	if o.poll > 0 {
		cfg.SetWaitPollInterval(o.poll)
	}
}

// open returns a new driver and the function that releases it.
func (s *sessions) open(ctx context.Context) (webdriver.Driver, func(), error) {
	if s.browser != nil {
		d, err := s.browser.NewDriver(ctx)
		if err != nil {
			return nil, nil, err
		}
		return d, d.Close, nil
	}

	opts := []htmldom.Option{htmldom.WithLogger(s.logger)}
	for url, path := range s.pages {
		markup, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("reading page for %s: %w", url, err)
		}
		opts = append(opts, htmldom.WithPage(url, string(markup)))
	}
	if s.htmlFile == "" {
		doc, err := htmldom.ParseString("<html><head></head><body></body></html>", opts...)
		return doc, func() {}, err
	}
	doc, err := htmldom.Load(s.htmlFile, opts...)
	if err != nil {
		return nil, nil, err
	}
	return doc, func() {}, nil
}

// Close shuts the browser down, if one was launched.
func (s *sessions) Close() {
	if s.browser != nil {
		s.browser.Close(browserCloseTimeout)
	}
}
