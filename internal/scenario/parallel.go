package scenario

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// RunnerFactory opens a session for one scenario. release is called once the
// scenario finishes.
type RunnerFactory func(ctx context.Context, sc *Scenario) (r *Runner, release func(), err error)

// RunAll runs scenarios concurrently, at most parallel at a time, each in its
// own session from newRunner. Reports keep the order of scenarios. Only a
// failure to open a session is returned as an error; step failures live in
// the reports.
func RunAll(ctx context.Context, scenarios []*Scenario, parallel int, newRunner RunnerFactory) ([]Report, error) {
	reports := make([]Report, len(scenarios))
	g, gctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, sc := range scenarios {
		g.Go(func() error {
			r, release, err := newRunner(gctx, sc)
			if err != nil {
				return fmt.Errorf("opening session for %q: %w", sc.Name, err)
			}
			defer release()
			reports[i] = r.Run(gctx, sc)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}
