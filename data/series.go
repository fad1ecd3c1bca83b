// Package data implements the OHLCV data window: the full bar series and
// the prefix "view" a strategy sees at simulated "now" (spec.md §4.2).
package data

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/evdnx/backcast/errs"
	"github.com/evdnx/backcast/logger"
	"github.com/evdnx/backcast/types"
)

// Series is a columnar OHLCV table indexed by a strictly monotonic
// timestamp (Temporal=true, Index holds Unix seconds) or an integer
// period ordinal (Temporal=false).
type Series struct {
	Index    []int64
	Temporal bool
	Open     []float64
	High     []float64
	Low      []float64
	Close    []float64
	Volume   []float64 // may contain NaN entries if missing
	Extra    map[string][]float64
}

// NewSeries builds a Series, sorting it (and logging a runtime warning)
// if the index is not already monotonic increasing. log may be nil.
func NewSeries(index []int64, temporal bool, open, high, low, close, volume []float64, log logger.Logger) (*Series, error) {
	n := len(index)
	if len(open) != n || len(high) != n || len(low) != n || len(close) != n {
		return nil, errs.NewConfigurationError("series", "Open/High/Low/Close must all be the same length as Index")
	}
	if volume == nil {
		volume = make([]float64, n)
		for i := range volume {
			volume[i] = math.NaN()
		}
	}
	if len(volume) != n {
		return nil, errs.NewConfigurationError("series", "Volume must match Index length when provided")
	}
	for i := 0; i < n; i++ {
		if math.IsNaN(open[i]) || math.IsInf(open[i], 0) ||
			math.IsNaN(high[i]) || math.IsInf(high[i], 0) ||
			math.IsNaN(low[i]) || math.IsInf(low[i], 0) ||
			math.IsNaN(close[i]) || math.IsInf(close[i], 0) {
			return nil, errs.NewConfigurationError("series", "Open/High/Low/Close must be finite, non-null")
		}
	}

	s := &Series{Index: index, Temporal: temporal, Open: open, High: high, Low: low, Close: close, Volume: volume}

	if !sort.IsSorted(sortableIndex(index)) {
		if log != nil {
			log.Warn("series index is not monotonic increasing; sorting",
				logger.String("warning_kind", "non_monotonic_index"))
		}
		s.sortInPlace()
	}
	if !temporal && log != nil {
		log.Warn("series index is not temporal; annualization defaults to 252 bars/year",
			logger.String("warning_kind", "non_temporal_index"))
	}
	return s, nil
}

type sortableIndex []int64

func (s sortableIndex) Len() int           { return len(s) }
func (s sortableIndex) Less(i, j int) bool { return s[i] < s[j] }
func (s sortableIndex) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

func (s *Series) sortInPlace() {
	order := make([]int, len(s.Index))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return s.Index[order[i]] < s.Index[order[j]] })

	reorderInt64(s.Index, order)
	reorderFloat64(s.Open, order)
	reorderFloat64(s.High, order)
	reorderFloat64(s.Low, order)
	reorderFloat64(s.Close, order)
	reorderFloat64(s.Volume, order)
	for k, v := range s.Extra {
		reorderFloat64(v, order)
		s.Extra[k] = v
	}
}

func reorderInt64(v []int64, order []int) {
	out := make([]int64, len(v))
	for i, idx := range order {
		out[i] = v[idx]
	}
	copy(v, out)
}

func reorderFloat64(v []float64, order []int) {
	out := make([]float64, len(v))
	for i, idx := range order {
		out[i] = v[idx]
	}
	copy(v, out)
}

// Len returns the number of bars in the full series.
func (s *Series) Len() int { return len(s.Index) }

// BarAt returns the OHLCV values at index i, the form the broker's
// OnBar matches against (a View only ever exposes sliced columns, not
// a single row).
func (s *Series) BarAt(i int) types.Bar {
	return types.Bar{
		Open: s.Open[i], High: s.High[i], Low: s.Low[i], Close: s.Close[i], Volume: s.Volume[i],
	}
}

// PipSize infers the smallest meaningful price increment as 10^-d, where
// d is the maximum number of fractional digits observed across OHLC in
// the sample (spec.md §4.2).
func (s *Series) PipSize() float64 {
	maxDigits := 0
	check := func(v []float64) {
		for _, x := range v {
			if d := fractionalDigits(x); d > maxDigits {
				maxDigits = d
			}
		}
	}
	check(s.Open)
	check(s.High)
	check(s.Low)
	check(s.Close)
	return math.Pow(10, -float64(maxDigits))
}

func fractionalDigits(v float64) int {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	i := strings.IndexByte(s, '.')
	if i < 0 {
		return 0
	}
	return len(s) - i - 1
}
