package optimize

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/evdnx/backcast/errs"
	"github.com/evdnx/backcast/stats"
)

// peakRun scores a single integer parameter "x" by how close it is to 3,
// so the optimum is known in advance: x=3 yields Sharpe=0, every other
// value a negative Sharpe.
func peakRun(ctx context.Context, params map[string]any) (*stats.Result, error) {
	x := float64(params["x"].(int))
	return &stats.Result{Sharpe: -((x - 3) * (x - 3))}, nil
}

func TestGridFindsKnownOptimum(t *testing.T) {
	space := ParamSpace{Axes: []ParamAxis{{Name: "x", Values: []any{1, 2, 3, 4, 5}}}}
	obj, err := ByMetric("sharpe")
	if err != nil {
		t.Fatalf("ByMetric() error = %v", err)
	}

	report, err := Grid(context.Background(), space, peakRun, GridOptions{Maximize: obj})
	if err != nil {
		t.Fatalf("Grid() error = %v", err)
	}
	if report.Best["x"] != 3 {
		t.Fatalf("Best[x] = %v, want 3", report.Best["x"])
	}
	if report.BestScore != 0 {
		t.Fatalf("BestScore = %v, want 0", report.BestScore)
	}
	if len(report.Runs) != 5 {
		t.Fatalf("len(Runs) = %d, want 5", len(report.Runs))
	}
}

func TestGridRejectsEmptySpace(t *testing.T) {
	obj, _ := ByMetric("sharpe")
	_, err := Grid(context.Background(), ParamSpace{}, peakRun, GridOptions{Maximize: obj})
	var oie *errs.OptimizerInputError
	if !errors.As(err, &oie) {
		t.Fatalf("err = %v, want *errs.OptimizerInputError", err)
	}
}

func TestGridRejectsMissingMaximize(t *testing.T) {
	space := ParamSpace{Axes: []ParamAxis{{Name: "x", Values: []any{1}}}}
	_, err := Grid(context.Background(), space, peakRun, GridOptions{})
	var oie *errs.OptimizerInputError
	if !errors.As(err, &oie) {
		t.Fatalf("err = %v, want *errs.OptimizerInputError", err)
	}
}

func TestGridAdmissibleFilterExhaustsToError(t *testing.T) {
	space := ParamSpace{Axes: []ParamAxis{{Name: "x", Values: []any{1, 2, 3}}}}
	obj, _ := ByMetric("sharpe")
	_, err := Grid(context.Background(), space, peakRun, GridOptions{
		Maximize:   obj,
		Admissible: func(map[string]any) bool { return false },
	})
	var oie *errs.OptimizerInputError
	if !errors.As(err, &oie) {
		t.Fatalf("err = %v, want *errs.OptimizerInputError", err)
	}
}

func TestGridMaxTriesFractionShrinksRunCount(t *testing.T) {
	space := ParamSpace{Axes: []ParamAxis{{Name: "x", Values: []any{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}}}}
	obj, _ := ByMetric("sharpe")
	report, err := Grid(context.Background(), space, peakRun, GridOptions{
		Maximize: obj,
		MaxTries: 0.3,
		Seed:     42,
	})
	if err != nil {
		t.Fatalf("Grid() error = %v", err)
	}
	if len(report.Runs) != 3 {
		t.Fatalf("len(Runs) = %d, want 3 (30%% of 10)", len(report.Runs))
	}
}

func TestGridDeterministicWithSameSeed(t *testing.T) {
	space := ParamSpace{Axes: []ParamAxis{{Name: "x", Values: []any{1, 2, 3, 4, 5, 6, 7, 8}}}}
	obj, _ := ByMetric("sharpe")

	r1, err := Grid(context.Background(), space, peakRun, GridOptions{Maximize: obj, MaxTries: 4, Seed: 7})
	if err != nil {
		t.Fatalf("Grid() error = %v", err)
	}
	r2, err := Grid(context.Background(), space, peakRun, GridOptions{Maximize: obj, MaxTries: 4, Seed: 7})
	if err != nil {
		t.Fatalf("Grid() error = %v", err)
	}
	for i := range r1.Runs {
		if r1.Runs[i].Params["x"] != r2.Runs[i].Params["x"] {
			t.Fatalf("run %d: x = %v vs %v, want identical sub-sample under the same seed", i, r1.Runs[i].Params["x"], r2.Runs[i].Params["x"])
		}
	}
}

func TestGridFailedRunYieldsNullResultNotAbort(t *testing.T) {
	space := ParamSpace{Axes: []ParamAxis{{Name: "x", Values: []any{1, 2, 3}}}}
	obj, _ := ByMetric("sharpe")
	run := func(ctx context.Context, params map[string]any) (*stats.Result, error) {
		if params["x"] == 2 {
			return nil, errors.New("synthetic failure")
		}
		return peakRun(ctx, params)
	}

	report, err := Grid(context.Background(), space, run, GridOptions{Maximize: obj})
	if err != nil {
		t.Fatalf("Grid() error = %v, want nil (a single failed run must not abort the sweep)", err)
	}
	if report.Best["x"] != 3 {
		t.Fatalf("Best[x] = %v, want 3", report.Best["x"])
	}
	var sawFailure bool
	for _, r := range report.Runs {
		if r.Err != nil {
			sawFailure = true
		}
	}
	if !sawFailure {
		t.Fatal("expected one run to carry the synthetic failure")
	}
}

func TestModelFindsKnownOptimumOnFloatAxis(t *testing.T) {
	space := ParamSpace{Axes: []ParamAxis{{Name: "y", Values: []any{0.0, 10.0}}}}
	run := func(ctx context.Context, params map[string]any) (*stats.Result, error) {
		y := params["y"].(float64)
		return &stats.Result{Sharpe: -(y - 6) * (y - 6)}, nil
	}
	obj, _ := ByMetric("sharpe")

	report, err := Model(context.Background(), space, run, ModelOptions{Maximize: obj, Seed: 1})
	if err != nil {
		t.Fatalf("Model() error = %v", err)
	}
	y := report.Best["y"].(float64)
	if math.Abs(y-6) > 0.5 {
		t.Fatalf("Best[y] = %v, want close to 6", y)
	}
}

func TestModelRejectsMissingMaximize(t *testing.T) {
	space := ParamSpace{Axes: []ParamAxis{{Name: "y", Values: []any{0.0, 1.0}}}}
	_, err := Model(context.Background(), space, nil, ModelOptions{})
	var oie *errs.OptimizerInputError
	if !errors.As(err, &oie) {
		t.Fatalf("err = %v, want *errs.OptimizerInputError", err)
	}
}

func TestByMetricRejectsUnknownName(t *testing.T) {
	_, err := ByMetric("not-a-real-metric")
	var oie *errs.OptimizerInputError
	if !errors.As(err, &oie) {
		t.Fatalf("err = %v, want *errs.OptimizerInputError", err)
	}
}
