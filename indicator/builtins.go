package indicator

import (
	"math"

	"github.com/evdnx/goti"

	"github.com/evdnx/backcast/data"
)

// suiteValue extracts one indicator's current value from a goti suite,
// the way every strategy in the source pack pulls a single oscillator
// reading after feeding a bar (e.g. suite.GetRSI().Calculate(),
// suite.GetAMDO().Calculate()).
type suiteValue func(s *goti.IndicatorSuite) (float64, error)

// fromSuite feeds view's OHLCV bar-by-bar into a freshly built goti
// suite and samples get after each bar, producing a full-length array
// with NaN for every bar where the suite is still warming up (mirrors
// the len(suite.GetRSI().GetCloses()) < N warm-up check used throughout
// the strategy pack).
func fromSuite(cfg goti.Config, get suiteValue) Func {
	return func(view *data.View) ([]float64, error) {
		suite, err := goti.NewIndicatorSuiteWithConfig(cfg)
		if err != nil {
			return nil, err
		}
		n := view.Len()
		high, low, close, vol := view.High(), view.Low(), view.Close(), view.Volume()
		out := make([]float64, n)
		for i := 0; i < n; i++ {
			if err := suite.Add(high[i], low[i], close[i], vol[i]); err != nil {
				return nil, err
			}
			v, verr := get(suite)
			if verr != nil {
				out[i] = math.NaN()
				continue
			}
			out[i] = v
		}
		return out, nil
	}
}

// RSI wraps goti's RSI oscillator as a declared-indicator Func.
func RSI(cfg goti.Config) Func {
	return fromSuite(cfg, func(s *goti.IndicatorSuite) (float64, error) { return s.GetRSI().Calculate() })
}

// MFI wraps goti's Money Flow Index.
func MFI(cfg goti.Config) Func {
	return fromSuite(cfg, func(s *goti.IndicatorSuite) (float64, error) { return s.GetMFI().Calculate() })
}

// VWAO wraps goti's Volume-Weighted Average Oscillator.
func VWAO(cfg goti.Config) Func {
	return fromSuite(cfg, func(s *goti.IndicatorSuite) (float64, error) { return s.GetVWAO().Calculate() })
}

// HMA wraps goti's Hull Moving Average.
func HMA(cfg goti.Config) Func {
	return fromSuite(cfg, func(s *goti.IndicatorSuite) (float64, error) { return s.GetHMA().Calculate() })
}

// AMDO wraps goti's Adaptive Momentum/Directional Oscillator.
func AMDO(cfg goti.Config) Func {
	return fromSuite(cfg, func(s *goti.IndicatorSuite) (float64, error) { return s.GetAMDO().Calculate() })
}

// ATSO wraps goti's Adaptive Trend Strength Oscillator.
func ATSO(cfg goti.Config) Func {
	return fromSuite(cfg, func(s *goti.IndicatorSuite) (float64, error) { return s.GetATSO().Calculate() })
}
