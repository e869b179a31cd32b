package bulk

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Result is the outcome of the action applied to one target.
type Result struct {
	TargetID string
	OK       bool
	Err      error
}

// Outcome aggregates per-target results. OK is the logical AND of all
// results and is vacuously true for an empty target set.
type Outcome struct {
	Results []Result
	OK      bool
}

// Execute applies action to every target concurrently, without ordering
// or throttling, and waits for all of them before aggregating. Callers
// are responsible for bounding the target set when the underlying API
// rate-limits. Individual failures are logged with the target
// identified; only the aggregate is meant for the end user.
func Execute[T any](ctx context.Context, targets []T, id func(T) string, action func(context.Context, T) error, logger *zap.Logger) Outcome {
	results := make([]Result, len(targets))

	group, ctx := errgroup.WithContext(ctx)
	for i, target := range targets {
		i, target := i, target
		group.Go(func() error {
			err := action(ctx, target)
			results[i] = Result{TargetID: id(target), OK: err == nil, Err: err}
			if err != nil {
				logger.Error("bulk action failed", zap.String("target", id(target)), zap.Error(err))
			}
			return nil
		})
	}
	_ = group.Wait()

	outcome := Outcome{Results: results, OK: true}
	for _, result := range results {
		if !result.OK {
			outcome.OK = false
			break
		}
	}
	return outcome
}
