package indicator

import (
	"math"

	"github.com/evdnx/backcast/data"
)

// SMA returns a Func computing the simple moving average of Close over
// period bars; the first period-1 entries are NaN.
func SMA(period int) Func {
	return func(view *data.View) ([]float64, error) {
		return sma(view.Close(), period), nil
	}
}

// EMA returns a Func computing the exponential moving average of Close
// over period bars, seeded by the SMA of the first period bars; entries
// before the seed are NaN.
func EMA(period int) Func {
	return func(view *data.View) ([]float64, error) {
		return ema(view.Close(), period), nil
	}
}

func sma(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period <= 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i < period-1 {
			out[i] = math.NaN()
		} else {
			out[i] = sum / float64(period)
		}
	}
	return out
}

func ema(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period <= 0 || len(values) == 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	alpha := 2 / (float64(period) + 1)
	seed := sma(values, period)
	for i := range out {
		switch {
		case i < period-1:
			out[i] = math.NaN()
		case i == period-1:
			out[i] = seed[i]
		default:
			out[i] = alpha*values[i] + (1-alpha)*out[i-1]
		}
	}
	return out
}
