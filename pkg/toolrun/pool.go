package toolrun

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// RunAll executes independent units on a bounded worker pool. Results come
// back indexed like the input, failures stay inside each Result and never
// cancel siblings. Cancellation of ctx prevents not-yet-started units from
// running, in-flight processes are killed through their command context.
func (r *Runner) RunAll(ctx context.Context, units []Unit, limit int) []Result {

	if limit < 1 {
		limit = 1
	}

	results := make([]Result, len(units))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, u := range units {
		i, u := i, u
		g.Go(func() error {
			// Checked between units, not mid-invocation
			if err := gctx.Err(); err != nil {
				results[i] = Result{UnitID: u.ID, Err: fmt.Errorf("%s canceled: %w", u.Cmd.Name, err)}
				return nil
			}
			results[i] = r.Run(gctx, u)
			return nil
		})
	}

	_ = g.Wait() // errors captured in Result.Err

	return results
}
