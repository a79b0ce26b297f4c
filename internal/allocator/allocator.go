// Package allocator ranks strategies by a composite performance score
// and periodically reallocates the shared capital pool toward winners.
package allocator

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openclaw/paper-engine/internal/ledger"
	"github.com/openclaw/paper-engine/internal/metrics"
	"github.com/openclaw/paper-engine/internal/model"
	"github.com/openclaw/paper-engine/internal/perf"
)

// Scores need at least this many closed trades before a strategy is
// ranked above zero.
const minTradesForScore = 3

// minAllocationShare and maxAllocationShare bound how lopsided the split
// can get: no qualified strategy drops below 10% of an equal share, and
// none takes more than half the pool.
const (
	minAllocationShare = 0.1
	maxAllocationShare = 0.5
)

// Config controls rebalance cadence and score weighting.
type Config struct {
	RebalanceInterval   time.Duration
	PerformanceWeight   float64
	RiskWeight          float64
	MinTradesForRanking int
}

// Allocator computes and applies capital allocations across strategies.
type Allocator struct {
	cfg          Config
	tracker      *perf.Tracker
	ledger       *ledger.Ledger
	totalCapital decimal.Decimal

	mu            sync.Mutex
	lastRebalance time.Time
	history       []RebalanceRecord
	now           func() time.Time
}

// RebalanceRecord captures one completed rebalance.
type RebalanceRecord struct {
	Timestamp   time.Time                `json:"timestamp"`
	Allocations []model.AllocationResult `json:"allocations"`
}

// Summary reports the current allocation state for the API.
type Summary struct {
	TotalCapital  decimal.Decimal          `json:"total_capital"`
	LastRebalance *time.Time               `json:"last_rebalance,omitempty"`
	Strategies    []model.AllocationResult `json:"strategies"`
}

// New creates an allocator over the given ledger and tracker.
// totalCapital is the pool redistributed on every rebalance.
func New(cfg Config, tracker *perf.Tracker, ldg *ledger.Ledger, totalCapital decimal.Decimal) *Allocator {
	return &Allocator{
		cfg:          cfg,
		tracker:      tracker,
		ledger:       ldg,
		totalCapital: totalCapital,
		now:          time.Now,
	}
}

// SetClock overrides the time source. Used in tests.
func (a *Allocator) SetClock(now func() time.Time) {
	a.mu.Lock()
	a.now = now
	a.mu.Unlock()
}

// Score computes the composite score for one metrics snapshot:
// a weighted blend of Sharpe, win rate and profit factor, less a
// drawdown penalty. Never negative.
func (a *Allocator) Score(m model.StrategyMetrics) float64 {
	if m.TotalTrades < minTradesForScore {
		return 0
	}

	sharpeScore := clamp01(m.SharpeRatio / 2)
	winRateScore := clamp01(m.WinRate / 100)
	profitFactorScore := clamp01((m.ProfitFactor - 1) / 2)
	drawdownPenalty := clamp01(m.MaxDrawdown / 20)

	performance := 0.4*sharpeScore + 0.3*winRateScore + 0.3*profitFactorScore
	score := a.cfg.PerformanceWeight*performance - a.cfg.RiskWeight*drawdownPenalty

	if score < 0 {
		return 0
	}
	return score
}

// currentCapital looks up a strategy's current capital in the ledger,
// zero when no portfolio exists for it.
func (a *Allocator) currentCapital(name string) decimal.Decimal {
	pf, ok := a.ledger.Portfolio(name)
	if !ok {
		return decimal.Zero
	}
	return pf.CurrentCapital
}

type ranking struct {
	name    string
	score   float64
	metrics model.StrategyMetrics
}

// rank recomputes metrics for every portfolio and sorts by score
// descending. Sort is stable so equal scores keep portfolio order.
func (a *Allocator) rank() []ranking {
	portfolios := a.ledger.Portfolios()
	rankings := make([]ranking, 0, len(portfolios))
	for _, pf := range portfolios {
		m := a.tracker.Calculate(pf)
		rankings = append(rankings, ranking{
			name:    pf.Strategy,
			score:   a.Score(m),
			metrics: m,
		})
	}
	sort.SliceStable(rankings, func(i, j int) bool {
		return rankings[i].score > rankings[j].score
	})
	return rankings
}

// CalculateAllocations produces the target capital per strategy without
// applying it. Strategies qualify with a positive score, or on grace
// while they have too few trades to rank. With nothing qualified the
// pool splits equally.
func (a *Allocator) CalculateAllocations() []model.AllocationResult {
	rankings := a.rank()
	if len(rankings) == 0 {
		return nil
	}

	var qualified []ranking
	for _, r := range rankings {
		if r.score > 0 || r.metrics.TotalTrades < a.cfg.MinTradesForRanking {
			qualified = append(qualified, r)
		}
	}

	if len(qualified) == 0 {
		perStrategy := a.totalCapital.Div(decimal.NewFromInt(int64(len(rankings))))
		results := make([]model.AllocationResult, 0, len(rankings))
		for i, r := range rankings {
			current := a.currentCapital(r.name)
			results = append(results, model.AllocationResult{
				Strategy:         r.name,
				CurrentCapital:   current,
				NewAllocation:    perStrategy,
				AllocationChange: perStrategy.Sub(current),
				Rank:             i + 1,
				Score:            r.score,
				Reason:           model.ReasonEqualNoQualified,
			})
		}
		return results
	}

	var totalScore float64
	for _, r := range qualified {
		totalScore += r.score
	}

	equalShare := a.totalCapital.Div(decimal.NewFromInt(int64(len(qualified))))
	minAllocation := equalShare.Mul(decimal.NewFromFloat(minAllocationShare))
	maxAllocation := a.totalCapital.Mul(decimal.NewFromFloat(maxAllocationShare))

	results := make([]model.AllocationResult, 0, len(qualified))
	for i, r := range qualified {
		current := a.currentCapital(r.name)

		var base decimal.Decimal
		if totalScore > 0 {
			base = a.totalCapital.Mul(decimal.NewFromFloat(r.score / totalScore))
		} else {
			base = equalShare
		}

		alloc := base
		if alloc.LessThan(minAllocation) {
			alloc = minAllocation
		}
		if alloc.GreaterThan(maxAllocation) {
			alloc = maxAllocation
		}

		results = append(results, model.AllocationResult{
			Strategy:         r.name,
			CurrentCapital:   current,
			NewAllocation:    alloc,
			AllocationChange: alloc.Sub(current),
			Rank:             i + 1,
			Score:            r.score,
			Reason:           allocationReason(r.score, r.metrics.TotalTrades),
		})
	}

	// The floor and cap can push the sum past the pool; scale back down.
	var totalAllocated decimal.Decimal
	for _, r := range results {
		totalAllocated = totalAllocated.Add(r.NewAllocation)
	}
	if totalAllocated.GreaterThan(a.totalCapital) {
		scale := a.totalCapital.Div(totalAllocated)
		for i := range results {
			results[i].NewAllocation = results[i].NewAllocation.Mul(scale)
			results[i].AllocationChange = results[i].NewAllocation.Sub(results[i].CurrentCapital)
		}
	}

	return results
}

func allocationReason(score float64, totalTrades int) string {
	switch {
	case score >= 0.5:
		return model.ReasonHighPerformer
	case score >= 0.25:
		return model.ReasonModeratePerformer
	case totalTrades < 5:
		return model.ReasonInsufficientHistory
	default:
		return model.ReasonLowPerformer
	}
}

// ShouldRebalance reports whether the rebalance interval has elapsed.
// A fresh allocator rebalances immediately.
func (a *Allocator) ShouldRebalance() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.lastRebalance.IsZero() {
		return true
	}
	return a.now().Sub(a.lastRebalance) >= a.cfg.RebalanceInterval
}

// Rebalance computes allocations and applies them to the ledger,
// resetting each strategy's return baseline to the new allocation.
// Returns nil when the interval has not elapsed.
func (a *Allocator) Rebalance(ctx context.Context) []model.AllocationResult {
	if !a.ShouldRebalance() {
		return nil
	}
	return a.ForceRebalance(ctx)
}

// ForceRebalance applies a rebalance regardless of the interval.
func (a *Allocator) ForceRebalance(ctx context.Context) []model.AllocationResult {
	allocations := a.CalculateAllocations()

	for _, alloc := range allocations {
		if err := a.ledger.ApplyAllocation(alloc.Strategy, alloc.NewAllocation); err != nil {
			slog.Error("failed to apply allocation",
				"strategy", alloc.Strategy,
				"error", err)
			continue
		}
		slog.Info("capital reallocated",
			"strategy", alloc.Strategy,
			"old", alloc.CurrentCapital,
			"new", alloc.NewAllocation,
			"change", alloc.AllocationChange,
			"rank", alloc.Rank,
			"score", alloc.Score,
			"reason", alloc.Reason)

		a.tracker.RecordCapitalSnapshot(ctx, alloc.Strategy, alloc.NewAllocation)
	}

	a.mu.Lock()
	a.lastRebalance = a.now()
	a.history = append(a.history, RebalanceRecord{
		Timestamp:   a.lastRebalance,
		Allocations: allocations,
	})
	a.mu.Unlock()

	metrics.Rebalances.Inc()
	return allocations
}

// AllocationSummary returns the current target allocations and the time
// of the last rebalance.
func (a *Allocator) AllocationSummary() Summary {
	allocations := a.CalculateAllocations()

	a.mu.Lock()
	var last *time.Time
	if !a.lastRebalance.IsZero() {
		t := a.lastRebalance
		last = &t
	}
	a.mu.Unlock()

	return Summary{
		TotalCapital:  a.totalCapital,
		LastRebalance: last,
		Strategies:    allocations,
	}
}

// History returns a copy of all completed rebalances.
func (a *Allocator) History() []RebalanceRecord {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]RebalanceRecord, len(a.history))
	copy(out, a.history)
	return out
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
