package cmd

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/stepwise/internal/events"
	"github.com/xkilldash9x/stepwise/internal/observability"
	"github.com/xkilldash9x/stepwise/internal/scenario"
	"github.com/xkilldash9x/stepwise/internal/wait"
)

type runOptions struct {
	html     string
	pages    map[string]string
	browser  bool
	parallel int
	stepRate float64
	sessionOverrides
}

func newRunCmd() *cobra.Command {
	var o runOptions
	cmd := &cobra.Command{
		Use:   "run scenario.yaml [more.yaml...]",
		Short: "Run YAML step scenarios",
		Long: `Run executes each scenario in its own session. Without --browser a session
is a static document loaded from --html, with --page registering the markup
served for a URL. With --browser every scenario gets its own Chrome tab.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			o.apply(cfg)
			ctx := cmd.Context()
			logger := observability.GetLogger()

			scenarios := make([]*scenario.Scenario, 0, len(args))
			for _, path := range args {
				sc, err := scenario.Load(path)
				if err != nil {
					return err
				}
				scenarios = append(scenarios, sc)
			}

			bus := events.NewBus(logger, 64)
			stopLog := logEvents(bus, logger)
			defer func() {
				bus.Shutdown()
				stopLog()
			}()

			s, err := newSessions(ctx, cfg, logger, o.browser, o.html, o.pages)
			if err != nil {
				return err
			}
			defer s.Close()

			runnerOpts := []scenario.Option{
				scenario.WithWait(wait.OptionsFrom(cfg.Wait())),
				scenario.WithAlertWait(wait.Options{Timeout: cfg.Alert().Timeout, Poll: cfg.Alert().PollInterval}),
				scenario.WithInteraction(cfg.Interaction()),
				scenario.WithEvents(bus),
				scenario.WithStepRate(o.stepRate),
				scenario.WithLogger(logger),
			}
			factory := func(ctx context.Context, _ *scenario.Scenario) (*scenario.Runner, func(), error) {
				driver, release, err := s.open(ctx)
				if err != nil {
					return nil, nil, err
				}
				r, err := scenario.NewRunner(driver, runnerOpts...)
				if err != nil {
					release()
					return nil, nil, err
				}
				return r, release, nil
			}

			reports, err := scenario.RunAll(ctx, scenarios, o.parallel, factory)
			if err != nil {
				return err
			}
			failed := writeReports(cmd.OutOrStdout(), reports)
			if failed > 0 {
				return fmt.Errorf("%d of %d scenarios did not pass", failed, len(reports))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.html, "html", "", "HTML file each static session starts from")
	f.StringToStringVar(&o.pages, "page", nil, "url=file pairs served on navigation in static sessions")
	f.BoolVar(&o.browser, "browser", false, "run in Chrome instead of static documents")
	f.IntVar(&o.parallel, "parallel", 1, "scenarios run at once (0 for no limit)")
	f.Float64Var(&o.stepRate, "step-rate", 0, "maximum steps per second per scenario (0 for unpaced)")
	f.BoolVar(&o.headful, "headful", false, "show the browser window (with --browser)")
	f.StringVar(&o.chromePath, "chrome-path", "", "Chrome executable (with --browser)")
	f.DurationVar(&o.timeout, "timeout", 0, "override wait.timeout")
	f.DurationVar(&o.poll, "poll", 0, "override wait.poll_interval")
	return cmd
}

// logEvents logs interaction events until the bus shuts down. The returned
// function waits for the logger goroutine to finish.
func logEvents(bus *events.Bus, logger *zap.Logger) func() {
	ch, _ := bus.Subscribe(events.TypePageLoadEnded, events.TypeContextReset, events.TypeAlertDetected)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for msg := range ch {
			logger.Debug("Interaction event.", zap.String("type", string(msg.Type)), zap.String("id", msg.ID), zap.Any("payload", msg.Payload))
			bus.Acknowledge(msg)
		}
	}()
	return wg.Wait
}

// writeReports prints a summary per scenario and returns how many did not
// pass.
func writeReports(w io.Writer, reports []scenario.Report) int {
	failed := 0
	for _, r := range reports {
		status := "PASS"
		if !r.Passed() {
			status = "FAIL"
			failed++
		}
		fmt.Fprintf(w, "%s %s (%d steps, %d soft-failed, %d fatal, %d skipped, %d context resets, %s)\n",
			status, r.Scenario, len(r.Steps), r.Count(scenario.SoftFailed), r.Count(scenario.Fatal),
			r.Count(scenario.Skipped), r.ContextResets, r.Elapsed.Round(time.Millisecond))
		for _, s := range r.Steps {
			switch s.Outcome {
			case scenario.SoftFailed:
				for _, f := range s.Failures {
					fmt.Fprintf(w, "    %-12s %s: %s\n", s.Outcome, s.Name, f)
				}
			case scenario.Fatal:
				fmt.Fprintf(w, "    %-12s %s: %v\n", s.Outcome, s.Name, s.Err)
			}
		}
	}
	return failed
}
