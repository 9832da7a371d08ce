package sim

import (
	"context"
	"sync"

	"github.com/sunstead/sunstead/pkg/policy"
	"github.com/sunstead/sunstead/pkg/types"
)

// Compare runs several policies over one scenario concurrently and returns
// the results in the same order. The forecast is materialized once so every
// policy sees identical inputs; each run owns its own battery state, tasks,
// and accumulator. An empty policy list compares all registered policies.
func (r *Runner) Compare(ctx context.Context, req Request, policies []string) ([]types.RunResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if len(policies) == 0 {
		policies = policy.Names()
	}
	pols := make([]policy.Policy, len(policies))
	for i, name := range policies {
		p, err := policy.New(name)
		if err != nil {
			return nil, err
		}
		pols[i] = p
	}

	start := startFor(req)
	totalSteps := req.Days * req.Scenario.Config.StepsPerDay()
	ghi, source, status, err := r.resolveForecast(ctx, req, start, totalSteps)
	if err != nil {
		return nil, err
	}

	results := make([]types.RunResult, len(pols))
	errs := make([]error, len(pols))
	var wg sync.WaitGroup
	for i := range pols {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = r.runWith(ctx, req, pols[i], ghi, source, status, start, totalSteps)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
