// Package indicator implements declared-indicator arrays: a function is
// run once over the full data view when it is first declared, producing an
// array aligned with the bar series (spec.md §4.3); the simulation loop
// later exposes a length-(i+1) prefix of that array with no re-copy.
package indicator

import (
	"fmt"
	"math"

	"github.com/evdnx/backcast/data"
	"github.com/evdnx/backcast/errs"
)

// Func computes an indicator's full-length value array from a full data
// view. Leading NaNs encode the warm-up period. Implementations may be
// hand-written (plain math over view.Close(), etc.) or backed by a
// third-party indicator library such as goti (see builtins.go).
type Func func(view *data.View) ([]float64, error)

// Option configures how a declared indicator is presented (plotting
// metadata only — the engine does not render, but carries the flags for
// any downstream plot backend per spec.md §6).
type Option func(*Declared)

func WithName(name string) Option   { return func(d *Declared) { d.Name = name } }
func WithColor(color string) Option { return func(d *Declared) { d.Color = color } }
func Overlay() Option               { return func(d *Declared) { d.Overlay = true } }
func Scatter() Option               { return func(d *Declared) { d.Scatter = true } }
func NoPlot() Option                { return func(d *Declared) { d.Plot = false } }

// Declared is the result of a single I(...) call: a named, aligned
// array plus plotting metadata.
type Declared struct {
	Name    string
	Values  []float64
	Plot    bool
	Overlay bool
	Scatter bool
	Color   string
}

// WarmupBars returns the count of leading NaNs in the longest warm-up
// among the declared indicators — the simulation loop starts bar
// iteration at 1+WarmupBars so every visible indicator value is finite
// on the first Next() call (spec.md §4.3).
func WarmupBars(declared []Declared) int {
	max := 0
	for _, d := range declared {
		if n := leadingNaNs(d.Values); n > max {
			max = n
		}
	}
	return max
}

func leadingNaNs(v []float64) int {
	n := 0
	for _, x := range v {
		if !math.IsNaN(x) {
			break
		}
		n++
	}
	return n
}

// Declare runs fn once over view and wraps the result, recovering a
// panicking indicator function into an IndicatorError and validating
// that the returned array is aligned with the view's length.
func Declare(name string, fn Func, view *data.View, opts ...Option) (d Declared, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &errs.IndicatorError{Name: name, Cause: fmt.Errorf("panic: %v", r)}
		}
	}()

	values, ferr := fn(view)
	if ferr != nil {
		return Declared{}, &errs.IndicatorError{Name: name, Cause: ferr}
	}
	if len(values) != view.Len() {
		return Declared{}, &errs.IndicatorError{Name: name,
			Cause: fmt.Errorf("returned %d values for a %d-bar view", len(values), view.Len())}
	}

	d = Declared{Name: name, Values: values, Plot: true}
	for _, opt := range opts {
		opt(&d)
	}
	return d, nil
}

// Prefix returns the first n values of a declared indicator — the
// rebind the simulation loop performs at each bar (spec.md §9), with no
// copy: it is a re-slice of the already-computed array.
func (d Declared) Prefix(n int) []float64 {
	if n > len(d.Values) {
		n = len(d.Values)
	}
	return d.Values[:n]
}
