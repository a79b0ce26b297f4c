// Package model defines the core domain types shared across the paper
// trading engine. All monetary values use shopspring/decimal — never
// float64 for money. Dimensionless ratios (Sharpe, drawdown percentages,
// profit factor) are float64.
package model

import (
	"encoding/json"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Side of a binary-outcome contract.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"

	// SideBoth is emitted by market-making strategies and is filtered
	// upstream — it is never passed to the ledger.
	SideBoth Side = "both"
)

// PositionStatus is the lifecycle state of a position.
// The only transitions are OPEN→CLOSED and OPEN→EXPIRED; both are terminal.
type PositionStatus string

const (
	StatusOpen    PositionStatus = "open"
	StatusClosed  PositionStatus = "closed"
	StatusExpired PositionStatus = "expired"
)

// Position is one simulated contract holding. Created by the ledger on
// execution; mutated exactly once when closed or expired, never deleted.
type Position struct {
	ID         string            `json:"id"`
	Strategy   string            `json:"strategy"`
	MarketID   string            `json:"market_id"`
	Ticker     string            `json:"ticker"`
	Side       Side              `json:"side"`
	Quantity   int64             `json:"quantity"`
	EntryPrice decimal.Decimal   `json:"entry_price"`
	EntryTime  time.Time         `json:"entry_time"`
	EntryCost  decimal.Decimal   `json:"entry_cost"`
	ExitPrice  *decimal.Decimal  `json:"exit_price,omitempty"`
	ExitTime   *time.Time        `json:"exit_time,omitempty"`
	ExitValue  *decimal.Decimal  `json:"exit_value,omitempty"`
	Status     PositionStatus    `json:"status"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// PnL is zero while the position is open and exit_value − entry_cost once
// it has been closed or expired.
func (p *Position) PnL() decimal.Decimal {
	if p.Status == StatusOpen || p.ExitValue == nil {
		return decimal.Zero
	}
	return p.ExitValue.Sub(p.EntryCost)
}

// PnLPct returns the realized P&L as a percentage of entry cost.
func (p *Position) PnLPct() float64 {
	if p.EntryCost.IsZero() {
		return 0
	}
	pct, _ := p.PnL().Div(p.EntryCost).Mul(decimal.NewFromInt(100)).Float64()
	return pct
}

// View returns the reduced read-only view handed to strategy exit
// predicates. The metadata map is copied so predicates cannot mutate
// ledger state.
func (p *Position) View() PositionView {
	meta := make(map[string]string, len(p.Metadata))
	for k, v := range p.Metadata {
		meta[k] = v
	}
	return PositionView{
		EntryPrice: p.EntryPrice,
		Side:       p.Side,
		Metadata:   meta,
	}
}

// PositionView is the narrow slice of position state exposed to strategy
// exit predicates.
type PositionView struct {
	EntryPrice decimal.Decimal   `json:"entry_price"`
	Side       Side              `json:"side"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Signal is a trade suggestion produced by a strategy.
type Signal struct {
	MarketID   string            `json:"market_id"`
	Side       Side              `json:"side"`
	Confidence float64           `json:"confidence"` // 0–1
	Size       decimal.Decimal   `json:"size"`       // requested dollar size
	Strategy   string            `json:"strategy"`
	Timestamp  time.Time         `json:"timestamp"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// MarketSnapshot is a point-in-time view of one market, produced by the
// feed and consumed for entries, exits, and exit-price resolution.
type MarketSnapshot struct {
	MarketID     string          `json:"market_id"`
	Ticker       string          `json:"ticker"`
	Title        string          `json:"title,omitempty"`
	YesPrice     decimal.Decimal `json:"yes_price"`
	NoPrice      decimal.Decimal `json:"no_price"`
	BestBid      decimal.Decimal `json:"best_bid"`
	BestAsk      decimal.Decimal `json:"best_ask"`
	Volume       int64           `json:"volume"`
	OpenInterest int64           `json:"open_interest"`
	Status       string          `json:"status"` // "open", "settled"
	CloseTime    time.Time       `json:"close_time"`
	LastUpdated  time.Time       `json:"last_updated"`
}

// CloseInHours returns the hours remaining until the market closes,
// floored at zero. A zero CloseTime means "no known close" and reports a
// large sentinel.
func (m MarketSnapshot) CloseInHours() float64 {
	if m.CloseTime.IsZero() {
		return 9999
	}
	h := time.Until(m.CloseTime).Hours()
	if h < 0 {
		return 0
	}
	return h
}

// CapitalSnapshot is one point of a strategy's capital time series, used
// for drawdown computation.
type CapitalSnapshot struct {
	Timestamp time.Time       `json:"timestamp"`
	Strategy  string          `json:"strategy"`
	Capital   decimal.Decimal `json:"capital"`
}

// StrategyMetrics is a point-in-time performance snapshot for one
// strategy, always fully recomputed from closed-trade history and the
// capital time series.
type StrategyMetrics struct {
	Strategy string `json:"strategy"`

	// Returns
	TotalReturn    decimal.Decimal `json:"total_return"`
	TotalReturnPct float64         `json:"total_return_pct"`

	// Risk-adjusted
	SharpeRatio  float64 `json:"sharpe_ratio"`
	SortinoRatio float64 `json:"sortino_ratio"` // +Inf with no downside
	MaxDrawdown  float64 `json:"max_drawdown"`  // percent of peak

	// Win/loss
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"` // percent

	// Profit
	AverageWin   decimal.Decimal `json:"average_win"`
	AverageLoss  decimal.Decimal `json:"average_loss"`
	ProfitFactor float64         `json:"profit_factor"` // +Inf with no losers
	Expectancy   decimal.Decimal `json:"expectancy"`

	// Time
	AverageHoldTimeHours float64 `json:"average_hold_time_hours"`

	// Capital
	CurrentCapital decimal.Decimal `json:"current_capital"`
	PeakCapital    decimal.Decimal `json:"peak_capital"`

	LastUpdated time.Time `json:"last_updated"`
}

// MarshalJSON renders non-finite ratios as the string "inf" so metric
// snapshots stay valid JSON. ProfitFactor and SortinoRatio are defined as
// +Inf when a strategy has no losing trades.
func (m StrategyMetrics) MarshalJSON() ([]byte, error) {
	type alias StrategyMetrics
	return json.Marshal(struct {
		alias
		SortinoRatio any `json:"sortino_ratio"`
		ProfitFactor any `json:"profit_factor"`
	}{
		alias:        alias(m),
		SortinoRatio: finiteOrString(m.SortinoRatio),
		ProfitFactor: finiteOrString(m.ProfitFactor),
	})
}

// UnmarshalJSON accepts the "inf" sentinel emitted by MarshalJSON.
func (m *StrategyMetrics) UnmarshalJSON(data []byte) error {
	type alias StrategyMetrics
	aux := struct {
		*alias
		SortinoRatio json.RawMessage `json:"sortino_ratio"`
		ProfitFactor json.RawMessage `json:"profit_factor"`
	}{alias: (*alias)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	var err error
	if m.SortinoRatio, err = parseRatio(aux.SortinoRatio); err != nil {
		return err
	}
	m.ProfitFactor, err = parseRatio(aux.ProfitFactor)
	return err
}

func finiteOrString(f float64) any {
	if math.IsInf(f, 1) {
		return "inf"
	}
	if math.IsInf(f, -1) {
		return "-inf"
	}
	return f
}

func parseRatio(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		switch s {
		case "inf":
			return math.Inf(1), nil
		case "-inf":
			return math.Inf(-1), nil
		}
		return 0, nil
	}
	var f float64
	err := json.Unmarshal(raw, &f)
	return f, err
}

// AllocationResult is one row of an allocation decision. Produced fresh on
// every allocation call and never mutated after return.
type AllocationResult struct {
	Strategy         string          `json:"strategy"`
	CurrentCapital   decimal.Decimal `json:"current_capital"`
	NewAllocation    decimal.Decimal `json:"new_allocation"`
	AllocationChange decimal.Decimal `json:"allocation_change"`
	Rank             int             `json:"rank"`
	Score            float64         `json:"score"`
	Reason           string          `json:"reason"`
}

// Allocation reason codes.
const (
	ReasonHighPerformer       = "high_performer"
	ReasonModeratePerformer   = "moderate_performer"
	ReasonInsufficientHistory = "insufficient_history"
	ReasonLowPerformer        = "low_performer"
	ReasonEqualNoQualified    = "equal_allocation_no_qualified"
)
