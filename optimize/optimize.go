// Package optimize searches a strategy's parameter space for the
// combination that maximizes a chosen statistic, either exhaustively
// (Grid) or via a model-based search (Model), per spec.md §4.6.
package optimize

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/evdnx/backcast/errs"
	"github.com/evdnx/backcast/stats"
)

// ParamAxis is one named parameter and the discrete values Grid draws
// from (Model additionally infers a continuous/categorical bound from
// the same slice — see model.go).
type ParamAxis struct {
	Name   string
	Values []any
}

// ParamSpace is the Cartesian product of its axes.
type ParamSpace struct {
	Axes []ParamAxis
}

// Validate rejects an empty space or an axis with no values before any
// run starts (spec.md §7's "Optimizer input error").
func (s ParamSpace) Validate() error {
	if len(s.Axes) == 0 {
		return &errs.OptimizerInputError{Reason: "parameter space has no axes"}
	}
	for _, a := range s.Axes {
		if a.Name == "" {
			return &errs.OptimizerInputError{Reason: "parameter axis has no name"}
		}
		if len(a.Values) == 0 {
			return &errs.OptimizerInputError{Reason: fmt.Sprintf("parameter axis %q has no values", a.Name)}
		}
	}
	return nil
}

func (s ParamSpace) combinations() []map[string]any {
	combos := []map[string]any{{}}
	for _, axis := range s.Axes {
		next := make([]map[string]any, 0, len(combos)*len(axis.Values))
		for _, c := range combos {
			for _, v := range axis.Values {
				nc := make(map[string]any, len(c)+1)
				for k, vv := range c {
					nc[k] = vv
				}
				nc[axis.Name] = v
				next = append(next, nc)
			}
		}
		combos = next
	}
	return combos
}

// RunFunc is the caller-supplied collaborator that builds and executes
// one backtest for a given parameter combination — the optimizer never
// constructs a strategy or broker itself (spec.md §5: "each worker
// receives ... an independent strategy parameter set").
type RunFunc func(ctx context.Context, params map[string]any) (*stats.Result, error)

// Objective scores a completed run; Grid and Model both maximize it.
type Objective func(*stats.Result) float64

// ByMetric builds an Objective from one of the named Result fields, the
// "maximize key" spec.md §4.6 allows as an alternative to a callable.
func ByMetric(name string) (Objective, error) {
	switch strings.ToLower(name) {
	case "sharpe":
		return func(r *stats.Result) float64 { return r.Sharpe }, nil
	case "sortino":
		return func(r *stats.Result) float64 { return r.Sortino }, nil
	case "calmar":
		return func(r *stats.Result) float64 { return r.Calmar }, nil
	case "sqn":
		return func(r *stats.Result) float64 { return r.SQN }, nil
	case "kelly":
		return func(r *stats.Result) float64 { return r.Kelly }, nil
	case "profitfactor":
		return func(r *stats.Result) float64 { return r.ProfitFactor }, nil
	case "returnpct":
		return func(r *stats.Result) float64 { return r.ReturnPct }, nil
	case "returnannpct":
		return func(r *stats.Result) float64 { return r.ReturnAnnPct }, nil
	case "cagrpct":
		return func(r *stats.Result) float64 { return r.CAGRPct }, nil
	case "winratepct":
		return func(r *stats.Result) float64 { return r.WinRatePct }, nil
	case "equityfinal":
		return func(r *stats.Result) float64 { return r.EquityFinal }, nil
	default:
		return nil, &errs.OptimizerInputError{Reason: fmt.Sprintf("unknown metric %q", name)}
	}
}

// Combination is one evaluated parameter set: either Result is set (a
// completed run, scored) or Err is set (a failed run, per spec.md §7's
// "a single failed run returns a null result for that combination;
// aggregation proceeds").
type Combination struct {
	Params map[string]any
	Result *stats.Result
	Score  float64
	Err    error
}

// Report is the outcome of one Grid or Model search.
type Report struct {
	Best       map[string]any
	BestResult *stats.Result
	BestScore  float64
	Runs       []Combination
}

func bestOf(runs []Combination) *Report {
	best := -1
	for i, r := range runs {
		if r.Result == nil {
			continue
		}
		if best == -1 || r.Score > runs[best].Score {
			best = i
		}
	}
	rep := &Report{Runs: runs}
	if best >= 0 {
		rep.Best = runs[best].Params
		rep.BestResult = runs[best].Result
		rep.BestScore = runs[best].Score
	}
	return rep
}

func canonicalKey(params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%v;", k, params[k])
	}
	return b.String()
}
