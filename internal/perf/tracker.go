package perf

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openclaw/paper-engine/internal/ledger"
	"github.com/openclaw/paper-engine/internal/model"
	"github.com/openclaw/paper-engine/internal/store"
)

// Tracker records trade and capital history to the store and keeps an
// in-memory cache of the latest computed metrics per strategy.
type Tracker struct {
	store     store.Store
	params    Params
	minTrades int

	mu      sync.RWMutex
	metrics map[string]model.StrategyMetrics
	history map[string][]decimal.Decimal
}

// NewTracker creates a tracker backed by the given store. minTrades is
// the qualification threshold for the leaderboard.
func NewTracker(st store.Store, params Params, minTrades int) *Tracker {
	return &Tracker{
		store:     st,
		params:    params,
		minTrades: minTrades,
		metrics:   make(map[string]model.StrategyMetrics),
		history:   make(map[string][]decimal.Decimal),
	}
}

// RecordTrade persists a closed trade. Persistence failures are logged,
// not fatal: metrics recompute from the ledger either way.
func (t *Tracker) RecordTrade(ctx context.Context, pos model.Position) {
	if err := t.store.InsertTrade(ctx, pos); err != nil {
		slog.Error("failed to persist trade",
			"position_id", pos.ID,
			"strategy", pos.Strategy,
			"error", err)
	}
}

// RecordCapitalSnapshot appends a point to the strategy's capital series
// and persists it.
func (t *Tracker) RecordCapitalSnapshot(ctx context.Context, strategy string, capital decimal.Decimal) {
	t.mu.Lock()
	t.history[strategy] = append(t.history[strategy], capital)
	t.mu.Unlock()

	snap := model.CapitalSnapshot{
		Timestamp: time.Now().UTC(),
		Strategy:  strategy,
		Capital:   capital,
	}
	if err := t.store.InsertCapitalSnapshot(ctx, snap); err != nil {
		slog.Error("failed to persist capital snapshot",
			"strategy", strategy,
			"error", err)
	}
}

// TradeHistory reads a strategy's persisted closed trades from the store.
func (t *Tracker) TradeHistory(ctx context.Context, strategy string) ([]model.Position, error) {
	return t.store.ListTradesByStrategy(ctx, strategy)
}

// LoadCapitalHistory seeds the in-memory capital series from the store.
// Called once at startup so drawdown spans restarts.
func (t *Tracker) LoadCapitalHistory(ctx context.Context, strategies []string) error {
	for _, strategy := range strategies {
		snaps, err := t.store.ListCapitalHistory(ctx, strategy)
		if err != nil {
			return fmt.Errorf("perf: load capital history for %s: %w", strategy, err)
		}
		if len(snaps) == 0 {
			continue
		}
		series := make([]decimal.Decimal, len(snaps))
		for i, snap := range snaps {
			series[i] = snap.Capital
		}

		t.mu.Lock()
		t.history[strategy] = series
		t.mu.Unlock()
	}
	return nil
}

// Calculate recomputes metrics for one portfolio and caches the result.
func (t *Tracker) Calculate(pf ledger.PortfolioView) model.StrategyMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := Compute(pf, t.history[pf.Strategy], t.params)
	t.metrics[pf.Strategy] = m
	return m
}

// Metrics returns the cached snapshot for a strategy, if one exists.
func (t *Tracker) Metrics(strategy string) (model.StrategyMetrics, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.metrics[strategy]
	return m, ok
}

// AllMetrics returns a copy of every cached snapshot.
func (t *Tracker) AllMetrics() map[string]model.StrategyMetrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]model.StrategyMetrics, len(t.metrics))
	for k, v := range t.metrics {
		out[k] = v
	}
	return out
}

// Leaderboard returns strategies with enough closed trades to qualify,
// ranked by Sharpe ratio.
func (t *Tracker) Leaderboard() []model.StrategyMetrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var qualified []model.StrategyMetrics
	for _, m := range t.metrics {
		if m.TotalTrades >= t.minTrades {
			qualified = append(qualified, m)
		}
	}
	sort.SliceStable(qualified, func(i, j int) bool {
		return qualified[i].SharpeRatio > qualified[j].SharpeRatio
	})
	return qualified
}

// SaveDailySnapshot persists today's metrics row for a strategy.
func (t *Tracker) SaveDailySnapshot(ctx context.Context, m model.StrategyMetrics) {
	date := time.Now().UTC().Format("2006-01-02")
	if err := t.store.UpsertDailyMetrics(ctx, date, m); err != nil {
		slog.Error("failed to persist daily metrics",
			"strategy", m.Strategy,
			"date", date,
			"error", err)
	}
}

// CapitalHistory returns a copy of the in-memory capital series.
func (t *Tracker) CapitalHistory(strategy string) []decimal.Decimal {
	t.mu.RLock()
	defer t.mu.RUnlock()

	src := t.history[strategy]
	out := make([]decimal.Decimal, len(src))
	copy(out, src)
	return out
}
