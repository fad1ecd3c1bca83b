package optimize

import (
	"context"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/evdnx/backcast/errs"
)

// GridOptions configures an exhaustive (optionally sub-sampled) sweep.
type GridOptions struct {
	// Admissible filters a combination out of the sweep before it runs.
	Admissible func(map[string]any) bool
	// MaxTries sub-samples the admissible set: a float64 in (0,1] is a
	// fraction, an int is an absolute cap. nil runs everything.
	MaxTries any
	Maximize Objective
	Seed     uint64
	// Workers bounds sweep concurrency; 0 defaults to GOMAXPROCS — Go
	// has no fork-based process pool, so thread parallelism is the only
	// mode (spec.md §5's "falls back to thread-based parallelism" is
	// therefore not a fallback here, it is the whole story).
	Workers int
}

// Grid runs every (optionally filtered and sub-sampled) combination in
// space through run, in parallel, and returns the combination that
// maximizes opts.Maximize.
func Grid(ctx context.Context, space ParamSpace, run RunFunc, opts GridOptions) (*Report, error) {
	if err := space.Validate(); err != nil {
		return nil, err
	}
	if opts.Maximize == nil {
		return nil, &errs.OptimizerInputError{Reason: "GridOptions.Maximize is required"}
	}

	combos := space.combinations()
	if opts.Admissible != nil {
		filtered := make([]map[string]any, 0, len(combos))
		for _, c := range combos {
			if opts.Admissible(c) {
				filtered = append(filtered, c)
			}
		}
		combos = filtered
	}
	if len(combos) == 0 {
		return nil, &errs.OptimizerInputError{Reason: "no admissible parameter combinations"}
	}

	combos = subsample(combos, opts.MaxTries, opts.Seed)

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	runs := make([]Combination, len(combos))
	for i, params := range combos {
		i, params := i, params
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result, err := run(gctx, params)
			if err != nil {
				runs[i] = Combination{Params: params, Err: err}
				return nil
			}
			runs[i] = Combination{Params: params, Result: result, Score: opts.Maximize(result)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return bestOf(runs), nil
}

// subsample shrinks combos to maxTries entries via a seeded Fisher-Yates
// shuffle, so the same seed always yields the same sub-sample
// (spec.md §4.6's determinism clause).
func subsample(combos []map[string]any, maxTries any, seed uint64) []map[string]any {
	if maxTries == nil {
		return combos
	}
	n := len(combos)

	var limit int
	switch v := maxTries.(type) {
	case float64:
		if v <= 0 || v > 1 {
			return combos
		}
		limit = int(float64(n) * v)
		if limit < 1 {
			limit = 1
		}
	case int:
		limit = v
	default:
		return combos
	}
	if limit >= n {
		return combos
	}

	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	shuffled := make([]map[string]any, n)
	copy(shuffled, combos)
	r.Shuffle(n, func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	return shuffled[:limit]
}
