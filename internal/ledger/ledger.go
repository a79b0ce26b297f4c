// Package ledger implements the paper trading engine: per-strategy
// virtual portfolios, risk-checked trade execution, and the position
// lifecycle (open → closed/expired).
//
// All monetary values use shopspring/decimal — never float64 for money.
package ledger

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openclaw/paper-engine/internal/metrics"
	"github.com/openclaw/paper-engine/internal/model"
)

// RiskLimits are the process-wide limits enforced on every execution.
type RiskLimits struct {
	MaxTotalCapital        decimal.Decimal
	MaxPositionSize        decimal.Decimal
	MaxDailyLoss           decimal.Decimal
	MaxConcurrentPositions int
	MaxExposurePct         decimal.Decimal // fraction of MaxTotalCapital, 0–1
}

// ExitPredicate is the per-strategy exit capability consulted by
// CheckExits. Implemented by the strategy variants.
type ExitPredicate interface {
	Name() string
	ShouldExit(pos model.PositionView, snap model.MarketSnapshot) bool
}

// Ledger owns all portfolios and serializes their mutation behind one
// mutex. Throughput is tens of operations per minute, so a single lock is
// simpler than per-portfolio locking and makes the cross-portfolio
// aggregate checks trivially consistent.
type Ledger struct {
	mu     sync.Mutex
	limits RiskLimits

	portfolios map[string]*portfolio
	names      []string // insertion order, for deterministic iteration

	dailyPnL  decimal.Decimal
	dailyDate time.Time

	now func() time.Time // injectable clock for tests
}

// New creates an empty ledger with the given risk limits.
func New(limits RiskLimits) *Ledger {
	return &Ledger{
		limits:     limits,
		portfolios: make(map[string]*portfolio),
		dailyPnL:   decimal.Zero,
		now:        time.Now,
	}
}

// InitPortfolio creates the virtual portfolio for a strategy with its
// starting capital. Called once per enabled strategy at startup.
func (l *Ledger) InitPortfolio(strategy string, capital decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.portfolios[strategy]; ok {
		return
	}
	l.portfolios[strategy] = newPortfolio(strategy, capital)
	l.names = append(l.names, strategy)
	metrics.StrategyCapital.WithLabelValues(strategy).Set(capital.InexactFloat64())

	slog.Info("portfolio initialized", "strategy", strategy, "capital", capital.String())
}

// Execute runs a signal through the risk checks and opens a position at
// the current market price. yesPrice is the market's YES price; the
// effective contract price flips for NO-side signals.
//
// Rejections return a typed rejection error and change no state.
// Side "both" must be filtered before this call.
func (l *Ledger) Execute(sig model.Signal, yesPrice decimal.Decimal) (*model.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pf, ok := l.portfolios[sig.Strategy]
	if !ok {
		slog.Warn("no portfolio for strategy", "strategy", sig.Strategy)
		return nil, ErrUnknownStrategy
	}

	one := decimal.NewFromInt(1)
	if !yesPrice.IsPositive() || yesPrice.GreaterThanOrEqual(one) {
		return nil, ErrInvalidPrice
	}

	price := yesPrice
	if sig.Side == model.SideNo {
		price = one.Sub(yesPrice)
	}

	quantity := sig.Size.Div(price).IntPart() // floor: both operands positive
	if quantity <= 0 {
		l.reject(sig, ErrQuantityTooSmall)
		return nil, ErrQuantityTooSmall
	}

	if err := l.checkRiskLimits(sig, pf); err != nil {
		l.reject(sig, err)
		return nil, err
	}

	entryCost := decimal.NewFromInt(quantity).Mul(price)
	pos := &model.Position{
		ID:         uuid.New().String(),
		Strategy:   sig.Strategy,
		MarketID:   sig.MarketID,
		Ticker:     sig.MarketID,
		Side:       sig.Side,
		Quantity:   quantity,
		EntryPrice: price,
		EntryTime:  l.now().UTC(),
		EntryCost:  entryCost,
		Status:     model.StatusOpen,
		Metadata:   cloneMeta(sig.Metadata),
	}
	pf.open[pos.ID] = pos

	metrics.PositionsOpened.WithLabelValues(sig.Strategy, string(sig.Side)).Inc()
	metrics.OpenPositions.Inc()

	slog.Info("paper trade opened",
		"strategy", sig.Strategy,
		"market", sig.MarketID,
		"side", sig.Side,
		"quantity", quantity,
		"price", price.String(),
		"cost", entryCost.String(),
	)

	out := *pos
	return &out, nil
}

// checkRiskLimits evaluates the risk checks in order, returning the first
// violated limit. Caller holds the lock; the aggregate checks read across
// all portfolios under that same lock, so the snapshot is consistent.
func (l *Ledger) checkRiskLimits(sig model.Signal, pf *portfolio) error {
	if sig.Size.GreaterThan(pf.availableCapital()) {
		return ErrInsufficientCapital
	}
	if sig.Size.GreaterThan(l.limits.MaxPositionSize) {
		return ErrPositionTooLarge
	}

	totalExposure := decimal.Zero
	totalOpen := 0
	for _, p := range l.portfolios {
		totalExposure = totalExposure.Add(p.exposure())
		totalOpen += len(p.open)
	}

	maxExposure := l.limits.MaxTotalCapital.Mul(l.limits.MaxExposurePct)
	if totalExposure.Add(sig.Size).GreaterThan(maxExposure) {
		return ErrExposureCapExceeded
	}
	if totalOpen >= l.limits.MaxConcurrentPositions {
		return ErrMaxPositionsReached
	}
	// The breaker only counts losses from the current UTC day, so the
	// counter must roll over here too, not just on close.
	l.rollDailyLocked()
	if l.dailyPnL.LessThan(l.limits.MaxDailyLoss.Neg()) {
		return ErrDailyLossLimit
	}
	return nil
}

func (l *Ledger) reject(sig model.Signal, err error) {
	reason := RejectReason(err)
	metrics.Rejections.WithLabelValues(reason).Inc()
	slog.Debug("signal rejected",
		"strategy", sig.Strategy,
		"market", sig.MarketID,
		"size", sig.Size.String(),
		"reason", reason,
	)
}

// Close closes an open position at the given market YES price. Position
// ids are globally unique, so the lookup spans all portfolios. Closing an
// unknown or already-closed id returns ErrPositionNotFound and never
// double-applies P&L.
func (l *Ledger) Close(positionID string, yesPrice decimal.Decimal, reason string) (*model.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeLocked(positionID, yesPrice, reason, model.StatusClosed)
}

// Expire marks an open position EXPIRED at the market's settlement YES
// price. Capital settles exactly as a close; only the terminal status and
// reason differ.
func (l *Ledger) Expire(positionID string, settlementYesPrice decimal.Decimal) (*model.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeLocked(positionID, settlementYesPrice, "market_expired", model.StatusExpired)
}

func (l *Ledger) closeLocked(positionID string, yesPrice decimal.Decimal, reason string, status model.PositionStatus) (*model.Position, error) {
	for _, pf := range l.portfolios {
		pos, ok := pf.open[positionID]
		if !ok {
			continue
		}

		one := decimal.NewFromInt(1)
		price := yesPrice
		if pos.Side == model.SideNo {
			price = one.Sub(yesPrice)
		}
		exitValue := decimal.NewFromInt(pos.Quantity).Mul(price)
		now := l.now().UTC()

		pos.ExitPrice = &price
		pos.ExitTime = &now
		pos.ExitValue = &exitValue
		pos.Status = status
		if pos.Metadata == nil {
			pos.Metadata = make(map[string]string)
		}
		pos.Metadata["close_reason"] = reason

		pnl := pos.PnL()
		pf.currentCapital = pf.currentCapital.Add(pnl)
		pf.closed = append(pf.closed, pos)
		delete(pf.open, positionID)

		l.rollDailyLocked()
		l.dailyPnL = l.dailyPnL.Add(pnl)

		metrics.PositionsClosed.WithLabelValues(pf.strategy, reason).Inc()
		metrics.OpenPositions.Dec()
		metrics.StrategyCapital.WithLabelValues(pf.strategy).Set(pf.currentCapital.InexactFloat64())
		metrics.DailyPnL.Set(l.dailyPnL.InexactFloat64())

		slog.Info("paper trade closed",
			"strategy", pf.strategy,
			"market", pos.Ticker,
			"status", status,
			"pnl", pnl.String(),
			"pnl_pct", pos.PnLPct(),
			"reason", reason,
		)

		out := *pos
		return &out, nil
	}

	slog.Warn("position not found", "position_id", positionID)
	return nil, ErrPositionNotFound
}

// CheckExits asks the strategy's exit predicate about every open position
// on the snapshot's market and closes the ones it flags, at the snapshot
// price with reason "strategy_exit". The predicate is an external
// collaborator, so it runs outside the ledger lock on copied views.
func (l *Ledger) CheckExits(pred ExitPredicate, snap model.MarketSnapshot) []*model.Position {
	type candidate struct {
		id   string
		view model.PositionView
	}

	l.mu.Lock()
	var candidates []candidate
	if pf, ok := l.portfolios[pred.Name()]; ok {
		for id, pos := range pf.open {
			if pos.MarketID != snap.MarketID {
				continue
			}
			candidates = append(candidates, candidate{id: id, view: pos.View()})
		}
	}
	l.mu.Unlock()

	var closed []*model.Position
	for _, c := range candidates {
		if !pred.ShouldExit(c.view, snap) {
			continue
		}
		pos, err := l.Close(c.id, snap.YesPrice, "strategy_exit")
		if err != nil {
			continue // raced with another close; already terminal
		}
		closed = append(closed, pos)
	}
	return closed
}

// rollDailyLocked resets the daily P&L counter when the UTC day changes.
func (l *Ledger) rollDailyLocked() {
	today := l.now().UTC().Truncate(24 * time.Hour)
	if !l.dailyDate.Equal(today) {
		l.dailyDate = today
		l.dailyPnL = decimal.Zero
	}
}

// ResetDailyStats zeroes the daily P&L counter immediately, regardless
// of the UTC day. Rollover at the day boundary is automatic; this is a
// manual override for re-arming the breaker mid-day.
func (l *Ledger) ResetDailyStats() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dailyPnL = decimal.Zero
	l.dailyDate = l.now().UTC().Truncate(24 * time.Hour)
	metrics.DailyPnL.Set(0)
}

// DailyPnL returns the realized P&L accumulated in the current UTC day.
func (l *Ledger) DailyPnL() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dailyPnL
}

// ApplyAllocation overwrites a portfolio's capital with a new allocation.
// Both current capital and the initial-capital baseline are reset — the
// percentage-return baseline intentionally restarts at each rebalance.
func (l *Ledger) ApplyAllocation(strategy string, newCapital decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	pf, ok := l.portfolios[strategy]
	if !ok {
		return ErrUnknownStrategy
	}
	pf.currentCapital = newCapital
	pf.initialCapital = newCapital
	metrics.StrategyCapital.WithLabelValues(strategy).Set(newCapital.InexactFloat64())
	return nil
}

// Portfolio returns a consistent copy of one strategy's portfolio.
func (l *Ledger) Portfolio(strategy string) (PortfolioView, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pf, ok := l.portfolios[strategy]
	if !ok {
		return PortfolioView{}, false
	}
	return pf.view(), true
}

// Portfolios returns consistent copies of all portfolios in the order
// they were initialized.
func (l *Ledger) Portfolios() []PortfolioView {
	l.mu.Lock()
	defer l.mu.Unlock()

	views := make([]PortfolioView, 0, len(l.names))
	for _, name := range l.names {
		views = append(views, l.portfolios[name].view())
	}
	return views
}

// Positions returns copies of positions across all portfolios filtered by
// status; an empty status returns everything.
func (l *Ledger) Positions(status model.PositionStatus) []model.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []model.Position
	for _, name := range l.names {
		pf := l.portfolios[name]
		if status == "" || status == model.StatusOpen {
			for _, pos := range pf.open {
				out = append(out, *pos)
			}
		}
		if status != model.StatusOpen {
			for _, pos := range pf.closed {
				if status == "" || pos.Status == status {
					out = append(out, *pos)
				}
			}
		}
	}
	return out
}

// StrategySummary is one strategy's row in the ledger summary.
type StrategySummary struct {
	Capital       decimal.Decimal `json:"capital"`
	Available     decimal.Decimal `json:"available"`
	Exposure      decimal.Decimal `json:"exposure"`
	OpenPositions int             `json:"open_positions"`
	TotalTrades   int             `json:"total_trades"`
	WinRate       float64         `json:"win_rate"`
	TotalPnL      decimal.Decimal `json:"total_pnl"`
}

// Summary aggregates capital and P&L across all portfolios.
type Summary struct {
	TotalCapital decimal.Decimal            `json:"total_capital"`
	TotalPnL     decimal.Decimal            `json:"total_pnl"`
	DailyPnL     decimal.Decimal            `json:"daily_pnl"`
	Strategies   map[string]StrategySummary `json:"strategies"`
}

// Summary returns a consistent snapshot of all portfolios.
func (l *Ledger) Summary() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Summary{
		TotalCapital: decimal.Zero,
		TotalPnL:     decimal.Zero,
		DailyPnL:     l.dailyPnL,
		Strategies:   make(map[string]StrategySummary, len(l.portfolios)),
	}
	for name, pf := range l.portfolios {
		s.TotalCapital = s.TotalCapital.Add(pf.currentCapital)
		s.TotalPnL = s.TotalPnL.Add(pf.realizedPnL())
		s.Strategies[name] = StrategySummary{
			Capital:       pf.currentCapital,
			Available:     pf.availableCapital(),
			Exposure:      pf.exposure(),
			OpenPositions: len(pf.open),
			TotalTrades:   len(pf.closed),
			WinRate:       pf.winRate(),
			TotalPnL:      pf.realizedPnL(),
		}
	}
	return s
}

// SetClock overrides the ledger's clock. Test hook.
func (l *Ledger) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

func cloneMeta(meta map[string]string) map[string]string {
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
