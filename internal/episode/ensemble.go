package episode

import (
	"context"
	"sync"
)

// Ensemble runs independent episodes with consecutive seeds in parallel.
// Each run builds its own runner so no simulator state is shared.
type Ensemble struct {
	build     func(seed int64) (*Runner, Config, error)
	numRuns   int
	seedStart int64
}

func NewEnsemble(build func(seed int64) (*Runner, Config, error), numRuns int, seedStart int64) *Ensemble {
	return &Ensemble{build: build, numRuns: numRuns, seedStart: seedStart}
}

func (e *Ensemble) Run(ctx context.Context) ([]*Result, error) {
	results := make([]*Result, e.numRuns)
	errs := make([]error, e.numRuns)

	var wg sync.WaitGroup
	for i := 0; i < e.numRuns; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			seed := e.seedStart + int64(idx)
			runner, cfg, err := e.build(seed)
			if err != nil {
				errs[idx] = err
				return
			}
			cfg.Seed = seed
			results[idx], errs[idx] = runner.Run(ctx, cfg)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
