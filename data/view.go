package data

import (
	"github.com/evdnx/backcast/types"
	"github.com/rocketlaunchr/dataframe-go"
)

// View presents the prefix of a Series visible at simulated "now": the
// full series during Strategy.Init, and 0..current during Strategy.Next
// (spec.md §4.2). A View never copies the underlying Series; it carries
// a pointer and a visible length.
type View struct {
	series *Series
	n      int
}

// FullView returns a view over the entire series (used during Init).
func (s *Series) FullView() *View { return &View{series: s, n: s.Len()} }

// Prefix returns a view over the first n bars (used during Next, where
// n is typically i+1 for "reveal 0..i").
func (s *Series) Prefix(n int) *View {
	if n > s.Len() {
		n = s.Len()
	}
	if n < 0 {
		n = 0
	}
	return &View{series: s, n: n}
}

// Len returns the number of bars visible in this view.
func (v *View) Len() int { return v.n }

// Series returns the underlying full series (for code that needs the
// total length or passthrough columns by name).
func (v *View) Series() *Series { return v.series }

func (v *View) Open() []float64   { return v.series.Open[:v.n] }
func (v *View) High() []float64   { return v.series.High[:v.n] }
func (v *View) Low() []float64    { return v.series.Low[:v.n] }
func (v *View) Close() []float64  { return v.series.Close[:v.n] }
func (v *View) Volume() []float64 { return v.series.Volume[:v.n] }
func (v *View) Index() []int64    { return v.series.Index[:v.n] }

// Extra returns a passthrough column sliced to this view, or nil if the
// column does not exist.
func (v *View) Extra(name string) []float64 {
	col, ok := v.series.Extra[name]
	if !ok {
		return nil
	}
	return col[:v.n]
}

// Now returns the last bar in the view — "now" in strategy terms.
func (v *View) Now() types.Bar {
	if v.n == 0 {
		return types.Bar{}
	}
	i := v.n - 1
	return types.Bar{
		Open:   v.series.Open[i],
		High:   v.series.High[i],
		Low:    v.series.Low[i],
		Close:  v.series.Close[i],
		Volume: v.series.Volume[i],
	}
}

// PipSize delegates to the underlying series (pip size is a property of
// the sample, not of how much of it is currently visible).
func (v *View) PipSize() float64 { return v.series.PipSize() }

// DataFrame adapts the current view into a rocketlaunchr/dataframe-go
// DataFrame for strategies that prefer pandas-style ergonomics over raw
// slices. It is rebuilt on every call rather than cached, keeping Series
// the single source of truth (SPEC_FULL.md §4.2).
func (v *View) DataFrame() *dataframe.DataFrame {
	cols := []dataframe.Series{
		dataframe.NewSeriesFloat64("Open", nil, toInterface(v.Open())...),
		dataframe.NewSeriesFloat64("High", nil, toInterface(v.High())...),
		dataframe.NewSeriesFloat64("Low", nil, toInterface(v.Low())...),
		dataframe.NewSeriesFloat64("Close", nil, toInterface(v.Close())...),
		dataframe.NewSeriesFloat64("Volume", nil, toInterface(v.Volume())...),
	}
	for name, col := range v.series.Extra {
		cols = append(cols, dataframe.NewSeriesFloat64(name, nil, toInterface(col[:v.n])...))
	}
	return dataframe.NewDataFrame(cols...)
}

func toInterface(v []float64) []interface{} {
	out := make([]interface{}, len(v))
	for i, x := range v {
		out[i] = x
	}
	return out
}
