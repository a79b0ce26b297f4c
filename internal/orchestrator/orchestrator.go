// Package orchestrator runs the trading loop: poll markets, fan
// snapshots through the strategies, execute signals against the ledger,
// check exits, settle expired markets and rebalance capital on schedule.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/openclaw/paper-engine/internal/allocator"
	"github.com/openclaw/paper-engine/internal/api"
	"github.com/openclaw/paper-engine/internal/feed"
	"github.com/openclaw/paper-engine/internal/ledger"
	"github.com/openclaw/paper-engine/internal/model"
	"github.com/openclaw/paper-engine/internal/perf"
	"github.com/openclaw/paper-engine/internal/strategy"
)

const statusLogInterval = 5 * time.Minute

// Orchestrator coordinates one poll cycle at a time. It owns no state
// beyond loop bookkeeping; all trading state lives in the ledger.
type Orchestrator struct {
	feed       feed.Feed
	ledger     *ledger.Ledger
	tracker    *perf.Tracker
	alloc      *allocator.Allocator
	strategies []strategy.Strategy
	hub        *api.EventHub

	pollInterval time.Duration
	lastStatus   time.Time
}

// New creates an orchestrator. Pass nil for hub if WebSocket
// broadcasting is not needed.
func New(
	f feed.Feed,
	ldg *ledger.Ledger,
	tracker *perf.Tracker,
	alloc *allocator.Allocator,
	strategies []strategy.Strategy,
	hub *api.EventHub,
	pollInterval time.Duration,
) *Orchestrator {
	return &Orchestrator{
		feed:         f,
		ledger:       ldg,
		tracker:      tracker,
		alloc:        alloc,
		strategies:   strategies,
		hub:          hub,
		pollInterval: pollInterval,
	}
}

// Run executes poll cycles until the context is cancelled. On shutdown
// it persists a final daily metrics snapshot per strategy.
func (o *Orchestrator) Run(ctx context.Context) {
	slog.Info("trading loop started",
		"strategies", len(o.strategies),
		"poll_interval", o.pollInterval)

	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.saveFinalMetrics()
			slog.Info("trading loop stopped")
			return
		case <-ticker.C:
			if err := o.RunOnce(ctx); err != nil {
				slog.Error("poll cycle failed", "error", err)
			}
		}
	}
}

// RunOnce executes a single poll cycle.
func (o *Orchestrator) RunOnce(ctx context.Context) error {
	snaps, err := o.feed.Poll(ctx)
	if err != nil {
		return err
	}

	for _, snap := range snaps {
		if snap.Status == "settled" {
			o.settleMarket(ctx, snap)
			continue
		}
		o.processSignals(snap)
		o.checkExits(ctx, snap)
	}

	if o.alloc.ShouldRebalance() {
		if allocations := o.alloc.Rebalance(ctx); len(allocations) > 0 {
			slog.Info("capital rebalanced", "strategies", len(allocations))
			o.broadcast(api.Event{Type: api.EventRebalanced, Payload: allocations})
		}
	}

	o.logStatus()
	return nil
}

// processSignals runs every strategy over one snapshot and executes the
// resulting signals. Both-sides signals are informational only.
func (o *Orchestrator) processSignals(snap model.MarketSnapshot) {
	for _, st := range o.strategies {
		sig := st.Analyze(snap)
		if sig == nil || sig.Side == model.SideBoth {
			continue
		}

		pos, err := o.ledger.Execute(*sig, snap.YesPrice)
		if err != nil {
			if ledger.IsRejection(err) {
				slog.Debug("signal rejected",
					"strategy", sig.Strategy,
					"market", sig.MarketID,
					"reason", ledger.RejectReason(err))
			} else if !errors.Is(err, ledger.ErrUnknownStrategy) {
				slog.Error("signal execution failed",
					"strategy", sig.Strategy,
					"market", sig.MarketID,
					"error", err)
			}
			continue
		}

		slog.Info("position opened",
			"strategy", pos.Strategy,
			"market", pos.MarketID,
			"side", pos.Side,
			"quantity", pos.Quantity,
			"entry_price", pos.EntryPrice)

		o.broadcast(api.Event{
			Type:       api.EventPositionOpened,
			Strategy:   pos.Strategy,
			MarketID:   pos.MarketID,
			PositionID: pos.ID,
			Side:       string(pos.Side),
			Quantity:   strconv.FormatInt(pos.Quantity, 10),
			Price:      pos.EntryPrice.String(),
		})
	}
}

// checkExits asks each strategy whether its open positions in this
// market should close, and records any fills.
func (o *Orchestrator) checkExits(ctx context.Context, snap model.MarketSnapshot) {
	for _, st := range o.strategies {
		closed := o.ledger.CheckExits(st, snap)
		for _, pos := range closed {
			o.recordClose(ctx, pos)
		}
	}
}

// settleMarket expires every open position in a market that has
// resolved, at the terminal YES price of 0 or 1.
func (o *Orchestrator) settleMarket(ctx context.Context, snap model.MarketSnapshot) {
	for _, pos := range o.ledger.Positions(model.StatusOpen) {
		if pos.MarketID != snap.MarketID {
			continue
		}
		expired, err := o.ledger.Expire(pos.ID, snap.YesPrice)
		if err != nil {
			slog.Error("settlement failed",
				"position_id", pos.ID,
				"market", snap.MarketID,
				"error", err)
			continue
		}
		o.recordClose(ctx, expired)
	}
}

func (o *Orchestrator) recordClose(ctx context.Context, pos *model.Position) {
	o.tracker.RecordTrade(ctx, *pos)

	if pf, ok := o.ledger.Portfolio(pos.Strategy); ok {
		o.tracker.RecordCapitalSnapshot(ctx, pos.Strategy, pf.CurrentCapital)
	}

	slog.Info("position closed",
		"strategy", pos.Strategy,
		"market", pos.MarketID,
		"pnl", pos.PnL(),
		"reason", pos.Metadata["close_reason"])

	o.broadcast(api.Event{
		Type:       api.EventPositionClosed,
		Strategy:   pos.Strategy,
		MarketID:   pos.MarketID,
		PositionID: pos.ID,
		Side:       string(pos.Side),
		PnL:        pos.PnL().String(),
		Reason:     pos.Metadata["close_reason"],
	})
}

// logStatus logs a portfolio summary at most every five minutes.
func (o *Orchestrator) logStatus() {
	now := time.Now()
	if now.Sub(o.lastStatus) < statusLogInterval {
		return
	}
	o.lastStatus = now

	s := o.ledger.Summary()
	slog.Info("trading status",
		"total_capital", s.TotalCapital,
		"total_pnl", s.TotalPnL,
		"daily_pnl", s.DailyPnL)
}

func (o *Orchestrator) saveFinalMetrics() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, pf := range o.ledger.Portfolios() {
		m := o.tracker.Calculate(pf)
		o.tracker.SaveDailySnapshot(ctx, m)
	}
}

func (o *Orchestrator) broadcast(ev api.Event) {
	if o.hub != nil {
		o.hub.Broadcast(ev)
	}
}

