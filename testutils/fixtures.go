package testutils

import "github.com/evdnx/backcast/types"

// ConstantBars returns n bars all equal to price, with the given volume:
// the bar shape of the "constant-price sanity" scenario from spec.md §8.
// The current broker/simulate tests build their bars inline and do not
// call it.
func ConstantBars(n int, price, volume float64) []types.Bar {
	bars := make([]types.Bar, n)
	for i := range bars {
		bars[i] = types.Bar{Open: price, High: price, Low: price, Close: price, Volume: volume}
	}
	return bars
}

// Bar is a convenience constructor for a single OHLCV bar.
func Bar(open, high, low, close, volume float64) types.Bar {
	return types.Bar{Open: open, High: high, Low: low, Close: close, Volume: volume}
}
