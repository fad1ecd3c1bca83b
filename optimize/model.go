package optimize

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	gonumopt "gonum.org/v1/gonum/optimize"

	"github.com/evdnx/backcast/errs"
)

// ModelOptions configures the model-based search.
type ModelOptions struct {
	Maximize Objective
	Seed     uint64
	// MaxIters bounds each restart's simplex iterations; 0 defaults to 200.
	MaxIters int
	// Restarts bounds how many randomly perturbed starting points are
	// tried; 0 defaults to 8. Acts as the "global" component around
	// gonum's otherwise-local simplex method.
	Restarts int
}

type axisKind int

const (
	kindFloat axisKind = iota
	kindInt
	kindCategorical
)

// axisEncoding maps one ParamAxis onto a slice of continuous dimensions
// a gonum optimizer can search: a float or int axis gets one dimension
// clamped to [lo, hi]; a categorical axis gets one dimension per value,
// decoded by argmax (one-hot relaxation), per spec.md §4.6's "bounds
// inferred from each parameter's values".
type axisEncoding struct {
	kind   axisKind
	values []any
	lo, hi float64
	dims   int
}

func classify(values []any) axisKind {
	allFloat, allInt := true, true
	for _, v := range values {
		switch v.(type) {
		case float64:
			allInt = false
		case int:
			allFloat = false
		default:
			allFloat, allInt = false, false
		}
	}
	switch {
	case allInt:
		return kindInt
	case allFloat:
		return kindFloat
	default:
		return kindCategorical
	}
}

func encodeAxis(a ParamAxis) axisEncoding {
	switch classify(a.Values) {
	case kindFloat:
		lo, hi := minMaxFloat(a.Values)
		return axisEncoding{kind: kindFloat, values: a.Values, lo: lo, hi: hi, dims: 1}
	case kindInt:
		lo, hi := minMaxInt(a.Values)
		return axisEncoding{kind: kindInt, values: a.Values, lo: lo, hi: hi, dims: 1}
	default:
		return axisEncoding{kind: kindCategorical, values: a.Values, dims: len(a.Values)}
	}
}

func (e axisEncoding) decode(x []float64) any {
	switch e.kind {
	case kindFloat:
		return clamp(x[0], e.lo, e.hi)
	case kindInt:
		return int(math.Round(clamp(x[0], e.lo, e.hi)))
	default:
		best := 0
		for i := 1; i < len(x); i++ {
			if x[i] > x[best] {
				best = i
			}
		}
		return e.values[best]
	}
}

func (e axisEncoding) initial() []float64 {
	if e.kind == kindCategorical {
		v := make([]float64, e.dims)
		v[0] = 1
		return v
	}
	return []float64{(e.lo + e.hi) / 2}
}

func minMaxFloat(values []any) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		f := v.(float64)
		if f < lo {
			lo = f
		}
		if f > hi {
			hi = f
		}
	}
	return lo, hi
}

func minMaxInt(values []any) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		f := float64(v.(int))
		if f < lo {
			lo = f
		}
		if f > hi {
			hi = f
		}
	}
	return lo, hi
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func perturb(initial []float64, encodings []axisEncoding, r *rand.Rand) []float64 {
	out := make([]float64, len(initial))
	copy(out, initial)
	off := 0
	for _, e := range encodings {
		if e.kind == kindCategorical {
			for j := 0; j < e.dims; j++ {
				out[off+j] = r.Float64()
			}
		} else if span := e.hi - e.lo; span > 0 {
			out[off] = clamp(out[off]+(r.Float64()-0.5)*span, e.lo, e.hi)
		}
		off += e.dims
	}
	return out
}

// Model searches space with gonum's Nelder-Mead simplex method, run
// from several randomly perturbed starting points to approximate the
// global search spec.md §4.6 asks of "an external sequential
// model-based optimization library" — no dedicated Bayesian-optimization
// package exists anywhere in the retrieved corpus, so gonum's
// general-purpose optimizer stands in (see DESIGN.md).
func Model(ctx context.Context, space ParamSpace, run RunFunc, opts ModelOptions) (*Report, error) {
	if err := space.Validate(); err != nil {
		return nil, err
	}
	if opts.Maximize == nil {
		return nil, &errs.OptimizerInputError{Reason: "ModelOptions.Maximize is required"}
	}

	encodings := make([]axisEncoding, len(space.Axes))
	var totalDims int
	for i, a := range space.Axes {
		encodings[i] = encodeAxis(a)
		totalDims += encodings[i].dims
	}

	initial := make([]float64, 0, totalDims)
	for _, e := range encodings {
		initial = append(initial, e.initial()...)
	}

	decodeAll := func(x []float64) map[string]any {
		params := make(map[string]any, len(space.Axes))
		off := 0
		for i, e := range encodings {
			params[space.Axes[i].Name] = e.decode(x[off : off+e.dims])
			off += e.dims
		}
		return params
	}

	var memo sync.Map
	var mu sync.Mutex
	var runErr error
	evaluated := make(map[string]Combination)

	objective := func(x []float64) float64 {
		if err := ctx.Err(); err != nil {
			mu.Lock()
			if runErr == nil {
				runErr = err
			}
			mu.Unlock()
			return math.Inf(1)
		}
		params := decodeAll(x)
		key := canonicalKey(params)
		if cached, ok := memo.Load(key); ok {
			return cached.(float64)
		}

		result, err := run(ctx, params)
		var score float64
		if err != nil {
			mu.Lock()
			evaluated[key] = Combination{Params: params, Err: err}
			mu.Unlock()
			score = math.Inf(1)
		} else {
			score = -opts.Maximize(result)
			mu.Lock()
			evaluated[key] = Combination{Params: params, Result: result, Score: -score}
			mu.Unlock()
		}
		memo.Store(key, score)
		return score
	}

	maxIters := opts.MaxIters
	if maxIters <= 0 {
		maxIters = 200
	}
	restarts := opts.Restarts
	if restarts <= 0 {
		restarts = 8
	}

	problem := gonumopt.Problem{Func: objective}
	settings := &gonumopt.Settings{MajorIterations: maxIters}

	r := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0xda3e39cb94b95bdb))
	bestF := math.Inf(1)
	var bestX []float64
	for i := 0; i < restarts; i++ {
		start := initial
		if i > 0 {
			start = perturb(initial, encodings, r)
		}
		res, err := gonumopt.Minimize(problem, start, settings, &gonumopt.NelderMead{})
		if err != nil && res == nil {
			continue
		}
		if res.F < bestF {
			bestF = res.F
			bestX = res.X
		}
	}
	if runErr != nil {
		return nil, runErr
	}
	if bestX == nil {
		return nil, fmt.Errorf("model-based optimization found no feasible result")
	}

	bestParams := decodeAll(bestX)
	key := canonicalKey(bestParams)
	best, ok := evaluated[key]
	if !ok || best.Result == nil {
		result, err := run(ctx, bestParams)
		if err != nil {
			return nil, err
		}
		best = Combination{Params: bestParams, Result: result, Score: opts.Maximize(result)}
	}

	runs := make([]Combination, 0, len(evaluated))
	for _, c := range evaluated {
		runs = append(runs, c)
	}
	return &Report{Best: best.Params, BestResult: best.Result, BestScore: best.Score, Runs: runs}, nil
}
