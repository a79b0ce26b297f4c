// Package perf computes per-strategy performance metrics from closed
// trades and capital history. All metrics are recomputed in full on every
// call; nothing here is incremental, so a lost cache never skews results.
package perf

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openclaw/paper-engine/internal/ledger"
	"github.com/openclaw/paper-engine/internal/model"
)

// Params holds the annualization constants for risk-adjusted ratios.
type Params struct {
	TradesPerYear float64
	RiskFreeRate  float64
}

// DefaultParams assumes roughly 250 trading days at 10 trades a day.
func DefaultParams() Params {
	return Params{TradesPerYear: 2500, RiskFreeRate: 0.05}
}

// Compute derives the full metrics snapshot for one strategy. history is
// the capital time series used for drawdown and peak; when empty, a
// synthetic series is rebuilt from closed trades in exit order.
func Compute(pf ledger.PortfolioView, history []decimal.Decimal, p Params) model.StrategyMetrics {
	m := model.StrategyMetrics{
		Strategy:       pf.Strategy,
		CurrentCapital: pf.CurrentCapital,
		PeakCapital:    pf.InitialCapital,
		LastUpdated:    time.Now().UTC(),
	}

	trades := pf.ClosedPositions
	if len(trades) == 0 {
		return m
	}

	m.TotalTrades = len(trades)
	for _, t := range trades {
		m.TotalReturn = m.TotalReturn.Add(t.PnL())
	}
	if pf.InitialCapital.IsPositive() {
		m.TotalReturnPct, _ = m.TotalReturn.Div(pf.InitialCapital).
			Mul(decimal.NewFromInt(100)).Float64()
	}

	// Win/loss breakdown. Zero-pnl trades count as losses.
	var grossProfit, grossLoss decimal.Decimal
	for _, t := range trades {
		pnl := t.PnL()
		if pnl.IsPositive() {
			m.WinningTrades++
			grossProfit = grossProfit.Add(pnl)
		} else {
			m.LosingTrades++
			grossLoss = grossLoss.Add(pnl)
		}
	}
	m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades) * 100

	if m.WinningTrades > 0 {
		m.AverageWin = grossProfit.Div(decimal.NewFromInt(int64(m.WinningTrades)))
	}
	if m.LosingTrades > 0 {
		m.AverageLoss = grossLoss.Div(decimal.NewFromInt(int64(m.LosingTrades)))
	}

	m.ProfitFactor = profitFactor(grossProfit, grossLoss.Abs())
	m.Expectancy = m.TotalReturn.Div(decimal.NewFromInt(int64(m.TotalTrades)))

	m.AverageHoldTimeHours = averageHoldHours(trades)

	returns := tradeReturns(trades, pf.InitialCapital)
	m.SharpeRatio = sharpe(returns, p)
	m.SortinoRatio = sortino(returns, p)

	m.MaxDrawdown = maxDrawdown(capitalSeries(history, trades, pf.InitialCapital))
	m.PeakCapital = peakCapital(history, pf.InitialCapital)

	return m
}

// profitFactor returns gross profit over gross loss. A strategy with
// winners and zero losers is +Inf; one with no winners at all is 0.
func profitFactor(grossProfit, grossLoss decimal.Decimal) float64 {
	if grossLoss.IsPositive() {
		f, _ := grossProfit.Div(grossLoss).Float64()
		return f
	}
	if grossProfit.IsPositive() {
		return math.Inf(1)
	}
	return 0
}

func averageHoldHours(trades []model.Position) float64 {
	var total float64
	var n int
	for _, t := range trades {
		if t.ExitTime == nil {
			continue
		}
		total += t.ExitTime.Sub(t.EntryTime).Hours()
		n++
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}

// tradeReturns expresses each trade's pnl as a fraction of starting
// capital. The fixed denominator keeps the series comparable across the
// run even as capital drifts.
func tradeReturns(trades []model.Position, initial decimal.Decimal) []float64 {
	if !initial.IsPositive() {
		return nil
	}
	out := make([]float64, 0, len(trades))
	for _, t := range trades {
		r, _ := t.PnL().Div(initial).Float64()
		out = append(out, r)
	}
	return out
}

// sharpe annualizes the per-trade return series:
//
//	(mean*K - rf) / (std * sqrt(K))
//
// Population variance, matching how the series is a complete record
// rather than a sample.
func sharpe(returns []float64, p Params) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean := meanOf(returns)
	var variance float64
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns))
	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}
	return (mean*p.TradesPerYear - p.RiskFreeRate) / (std * math.Sqrt(p.TradesPerYear))
}

// sortino penalizes downside only. With no negative returns the downside
// deviation is zero and the ratio is +Inf. Downside variance is divided
// by the full sample size, not just the count of losers.
func sortino(returns []float64, p Params) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean := meanOf(returns)

	var downside float64
	var negatives int
	for _, r := range returns {
		if r < 0 {
			downside += r * r
			negatives++
		}
	}
	if negatives == 0 {
		return math.Inf(1)
	}
	std := math.Sqrt(downside / float64(len(returns)))
	if std == 0 {
		return 0
	}
	return (mean*p.TradesPerYear - p.RiskFreeRate) / (std * math.Sqrt(p.TradesPerYear))
}

func meanOf(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// capitalSeries prefers the recorded capital history. Without one it
// rebuilds the equity curve from closed trades in exit order.
func capitalSeries(history []decimal.Decimal, trades []model.Position, initial decimal.Decimal) []decimal.Decimal {
	if len(history) > 0 {
		return history
	}

	sorted := make([]model.Position, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		return exitOrEntry(sorted[i]).Before(exitOrEntry(sorted[j]))
	})

	series := make([]decimal.Decimal, 0, len(sorted)+1)
	capital := initial
	series = append(series, capital)
	for _, t := range sorted {
		capital = capital.Add(t.PnL())
		series = append(series, capital)
	}
	return series
}

func exitOrEntry(t model.Position) time.Time {
	if t.ExitTime != nil {
		return *t.ExitTime
	}
	return t.EntryTime
}

// maxDrawdown returns the largest peak-to-trough decline as a percentage
// of the peak. Fewer than two points means no drawdown.
func maxDrawdown(series []decimal.Decimal) float64 {
	if len(series) < 2 {
		return 0
	}
	peak := series[0]
	var maxDD float64
	for _, capital := range series {
		if capital.GreaterThan(peak) {
			peak = capital
		}
		if peak.IsPositive() {
			dd, _ := peak.Sub(capital).Div(peak).Float64()
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD * 100
}

func peakCapital(history []decimal.Decimal, initial decimal.Decimal) decimal.Decimal {
	peak := initial
	for _, c := range history {
		if c.GreaterThan(peak) {
			peak = c
		}
	}
	return peak
}
