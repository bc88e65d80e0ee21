package analyzer

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zachacious/go-mockspec/internal/config"
	"github.com/Zachacious/go-mockspec/internal/model"
	"golang.org/x/sync/errgroup"
)

// BatchPolicy decides how a batch reacts to a failing function.
type BatchPolicy int

const (
	// CollectAll analyzes every function and collects all errors.
	CollectAll BatchPolicy = iota
	// AbortOnFirst cancels the batch at the first function that fails or
	// has an unresolved invocation.
	AbortOnFirst
)

func (p BatchPolicy) String() string {
	if p == AbortOnFirst {
		return config.BatchAbort
	}
	return config.BatchCollect
}

// ParseBatchPolicy maps a configuration value to a BatchPolicy.
func ParseBatchPolicy(s string) (BatchPolicy, error) {
	switch s {
	case "", config.BatchCollect:
		return CollectAll, nil
	case config.BatchAbort:
		return AbortOnFirst, nil
	}
	return CollectAll, fmt.Errorf("unknown batch policy %q", s)
}

// Batch analyzes names with at most workers functions in flight. Reports
// keep the order of names.
//
// Under CollectAll failures live in the reports and the returned error is
// only set when ctx is cancelled. Under AbortOnFirst the first failure
// cancels the remaining work and is returned; reports holds the functions
// analyzed so far.
func (a *Analyzer) Batch(ctx context.Context, names []string, policy BatchPolicy, workers int) ([]*model.FunctionReport, error) {
	if workers < 1 {
		workers = 1
	}
	a.logger.Info("Phase 2: resolving invocations", "functions", len(names), "workers", workers, "policy", policy)

	reports := make([]*model.FunctionReport, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, name := range names {
		g.Go(func() error {
			if gctx.Err() != nil && policy == AbortOnFirst {
				return nil
			}
			report := a.Analyze(gctx, name)
			if policy == AbortOnFirst && errors.Is(report.Err, context.Canceled) && ctx.Err() == nil {
				// cancelled by another function's failure
				return nil
			}
			reports[i] = report
			if policy == AbortOnFirst && report.Failed() {
				return fmt.Errorf("analyzing %s: %w", name, firstError(report))
			}
			return nil
		})
	}
	err := g.Wait()

	out := make([]*model.FunctionReport, 0, len(reports))
	for _, r := range reports {
		if r != nil {
			out = append(out, r)
		}
	}
	if err == nil {
		err = ctx.Err()
	}
	return out, err
}

// firstError returns the function error or the first invocation error.
func firstError(r *model.FunctionReport) error {
	if r.Err != nil {
		return r.Err
	}
	for _, res := range r.Results {
		if res.Err != nil {
			return res.Err
		}
	}
	return nil
}
