// Package stats turns a finished backtest's closed-trade table and
// per-bar equity curve into the named scalars spec.md §4.5 calls for.
// Moment and regression computations use gonum.org/v1/gonum/stat rather
// than hand-rolled loops, the numerics library the pack evidences via
// a sibling trading repo's go.mod.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/evdnx/backcast/data"
	"github.com/evdnx/backcast/types"
)

// EquityPoint is one row of the per-bar equity table: the recorded
// equity, its drawdown from the running peak, and how many bars the
// run has been in that drawdown.
type EquityPoint struct {
	Index            int64
	Equity           float64
	DrawdownPct      float64
	DrawdownDuration int
}

// Result is the full statistics report for one backtest run.
type Result struct {
	Start, End int64
	Duration   int

	ExposureTimePct float64
	EquityFinal     float64
	EquityPeak      float64

	ReturnPct        float64
	BuyHoldReturnPct float64
	ReturnAnnPct     float64
	VolatilityAnnPct float64
	CAGRPct          float64

	Sharpe  float64
	Sortino float64
	Calmar  float64

	AlphaPct float64
	Beta     float64

	MaxDrawdownPct      float64
	AvgDrawdownPct      float64
	MaxDrawdownDuration int
	AvgDrawdownDuration int

	NumTrades     int
	WinRatePct    float64
	BestTradePct  float64
	WorstTradePct float64
	AvgTradePct   float64

	MaxTradeDuration int
	AvgTradeDuration int

	ProfitFactor  float64
	ExpectancyPct float64
	SQN           float64
	Kelly         float64

	EquityCurve []EquityPoint
	Trades      []types.Trade

	// Aborted is set when the run terminated early on the broker's
	// out-of-money signal; the equity tail is back-filled from the last
	// recorded value rather than force-closing remaining positions
	// (spec.md §4.4).
	Aborted bool
}

// Compute builds a Result from a run's closed trades, recorded equity
// curve, and the full bar series it ran over.
func Compute(closed []types.Trade, equityCurve []float64, series *data.Series, riskFreeRate float64, aborted bool) *Result {
	r := &Result{Trades: closed, Aborted: aborted}
	n := len(equityCurve)
	if n == 0 {
		return r
	}

	r.Start = series.Index[0]
	r.End = series.Index[n-1]
	r.Duration = n - 1

	curve, maxDD, avgDD, maxDDDur, avgDDDur := equityCurveWithDrawdown(series.Index[:n], equityCurve)
	r.EquityCurve = curve
	r.MaxDrawdownPct = maxDD
	r.AvgDrawdownPct = avgDD
	r.MaxDrawdownDuration = maxDDDur
	r.AvgDrawdownDuration = avgDDDur

	initial := equityCurve[0]
	r.EquityFinal = equityCurve[n-1]
	r.EquityPeak = maxOf(equityCurve)
	if initial != 0 {
		r.ReturnPct = (r.EquityFinal/initial - 1) * 100
	}

	if series.Close[0] != 0 {
		r.BuyHoldReturnPct = (series.Close[n-1]/series.Close[0] - 1) * 100
	}

	annFactor := annualizationFactor(series)
	years := float64(n-1) / annFactor
	if years > 0 && initial > 0 && r.EquityFinal > 0 {
		r.CAGRPct = (math.Pow(r.EquityFinal/initial, 1/years) - 1) * 100
	}

	rets := periodReturns(equityCurve)
	if len(rets) > 0 {
		mean, stdev := stat.MeanStdDev(rets, nil)
		periodRF := riskFreeRate / annFactor
		r.VolatilityAnnPct = stdev * math.Sqrt(annFactor) * 100
		r.ReturnAnnPct = mean * annFactor * 100
		if stdev > 0 {
			r.Sharpe = (mean - periodRF) / stdev * math.Sqrt(annFactor)
		}
		if downside := downsideStdDev(rets, periodRF); downside > 0 {
			r.Sortino = (mean - periodRF) / downside * math.Sqrt(annFactor)
		}
		if r.MaxDrawdownPct > 0 {
			r.Calmar = r.ReturnAnnPct / r.MaxDrawdownPct
		}

		bhRets := periodReturns(series.Close[:n])
		beta, alpha := regressionBetaAlpha(rets, bhRets)
		r.Beta = beta
		r.AlphaPct = alpha * annFactor * 100
	}

	if n > 1 {
		r.ExposureTimePct = float64(totalExposedBars(closed, n)) / float64(n-1) * 100
	}

	computeTradeStats(r, closed)
	return r
}

func annualizationFactor(series *data.Series) float64 {
	const defaultBarsPerYear = 252
	if !series.Temporal || len(series.Index) < 2 {
		return defaultBarsPerYear
	}
	diffs := make([]float64, 0, len(series.Index)-1)
	for i := 1; i < len(series.Index); i++ {
		diffs = append(diffs, float64(series.Index[i]-series.Index[i-1]))
	}
	sort.Float64s(diffs)
	median := medianOf(diffs)
	if median <= 0 {
		return defaultBarsPerYear
	}
	const secondsPerYear = 365.25 * 24 * 3600
	return secondsPerYear / median
}

func medianOf(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func periodReturns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		out[i-1] = values[i]/values[i-1] - 1
	}
	return out
}

func downsideStdDev(rets []float64, mar float64) float64 {
	var sumSq float64
	var count int
	for _, r := range rets {
		if r < mar {
			d := r - mar
			sumSq += d * d
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return math.Sqrt(sumSq / float64(count))
}

// regressionBetaAlpha regresses strategy returns on buy&hold returns
// (y = alpha + beta*x) to get the standard per-period alpha/beta pair.
func regressionBetaAlpha(rets, bhRets []float64) (beta, periodAlpha float64) {
	n := len(rets)
	if len(bhRets) < n {
		n = len(bhRets)
	}
	if n < 2 {
		return 0, 0
	}
	alpha, b := stat.LinearRegression(bhRets[:n], rets[:n], nil, false)
	return b, alpha
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// equityCurveWithDrawdown walks the equity curve once, tracking the
// running peak, and returns the per-bar drawdown table plus the
// max/average drawdown depth and episode duration across the whole run.
func equityCurveWithDrawdown(idx []int64, equity []float64) (curve []EquityPoint, maxDD, avgDD float64, maxDur, avgDur int) {
	n := len(equity)
	curve = make([]EquityPoint, n)
	peak := equity[0]
	lastPeakIdx := 0

	for i, e := range equity {
		if e >= peak {
			peak = e
			lastPeakIdx = i
		}
		dd := 0.0
		if peak > 0 {
			dd = (peak - e) / peak * 100
		}
		dur := i - lastPeakIdx
		curve[i] = EquityPoint{Index: idx[i], Equity: e, DrawdownPct: dd, DrawdownDuration: dur}
		if dd > maxDD {
			maxDD = dd
		}
		if dur > maxDur {
			maxDur = dur
		}
	}

	var episodeDurations []int
	var episodeDur int
	for _, p := range curve {
		if p.DrawdownDuration == 0 {
			if episodeDur > 0 {
				episodeDurations = append(episodeDurations, episodeDur)
			}
			episodeDur = 0
			continue
		}
		episodeDur = p.DrawdownDuration
	}
	if episodeDur > 0 {
		episodeDurations = append(episodeDurations, episodeDur)
	}
	if len(episodeDurations) > 0 {
		var sum int
		for _, d := range episodeDurations {
			sum += d
		}
		avgDur = sum / len(episodeDurations)
	}

	if maxDD > 0 {
		var sumDD float64
		var count int
		for _, p := range curve {
			if p.DrawdownPct > 0 {
				sumDD += p.DrawdownPct
				count++
			}
		}
		avgDD = sumDD / float64(count)
	}
	return curve, maxDD, avgDD, maxDur, avgDur
}

// totalExposedBars counts the distinct bars during which at least one
// trade was open, deduplicating overlapping trades.
func totalExposedBars(trades []types.Trade, n int) int {
	exposed := make([]bool, n)
	for _, t := range trades {
		end := t.ExitBar
		if end < 0 || end >= n {
			end = n - 1
		}
		for b := t.EntryBar; b <= end; b++ {
			if b >= 0 && b < n {
				exposed[b] = true
			}
		}
	}
	count := 0
	for _, e := range exposed {
		if e {
			count++
		}
	}
	return count
}

func computeTradeStats(r *Result, closed []types.Trade) {
	r.NumTrades = len(closed)
	if len(closed) == 0 {
		return
	}

	pctRets := make([]float64, len(closed))
	var wins, losses int
	var sumWinDollar, sumLossDollar float64
	var sumWinPct, sumLossPct float64
	best, worst := math.Inf(-1), math.Inf(1)
	var sumDur, maxDur int

	for i, t := range closed {
		pl := t.PL(t.ExitPrice)
		pct := t.PLPercent(t.ExitPrice) * 100
		pctRets[i] = pct

		if pct > best {
			best = pct
		}
		if pct < worst {
			worst = pct
		}
		if pl > 0 {
			wins++
			sumWinDollar += pl
			sumWinPct += pct
		} else if pl < 0 {
			losses++
			sumLossDollar += -pl
			sumLossPct += -pct
		}
		dur := t.Duration()
		sumDur += dur
		if dur > maxDur {
			maxDur = dur
		}
	}

	count := float64(len(closed))
	r.WinRatePct = float64(wins) / count * 100
	r.BestTradePct = best
	r.WorstTradePct = worst
	r.MaxTradeDuration = maxDur
	r.AvgTradeDuration = sumDur / len(closed)

	var sumPct float64
	for _, p := range pctRets {
		sumPct += p
	}
	r.AvgTradePct = sumPct / count

	switch {
	case sumLossDollar > 0:
		r.ProfitFactor = sumWinDollar / sumLossDollar
	case sumWinDollar > 0:
		r.ProfitFactor = math.Inf(1)
	}

	winRate := float64(wins) / count
	avgWinPct, avgLossPct := 0.0, 0.0
	if wins > 0 {
		avgWinPct = sumWinPct / float64(wins)
	}
	if losses > 0 {
		avgLossPct = sumLossPct / float64(losses)
	}
	r.ExpectancyPct = winRate*avgWinPct - (1-winRate)*avgLossPct

	if len(pctRets) > 1 {
		meanR, stdR := stat.MeanStdDev(pctRets, nil)
		if stdR > 0 {
			r.SQN = math.Sqrt(count) * meanR / stdR
		}
	}

	avgWinDollar, avgLossDollar := 0.0, 0.0
	if wins > 0 {
		avgWinDollar = sumWinDollar / float64(wins)
	}
	if losses > 0 {
		avgLossDollar = sumLossDollar / float64(losses)
	}
	if avgLossDollar > 0 {
		ratio := avgWinDollar / avgLossDollar
		r.Kelly = winRate - (1-winRate)/ratio
	}
}
