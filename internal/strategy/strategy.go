// Package strategy defines the trading strategy interface and the three
// built-in signal generators: mean reversion, momentum and market making.
//
// Strategies see market snapshots and emit signals; they never touch
// capital directly. Position sizing inside a strategy is a request, not
// a grant: risk limits are enforced downstream when the signal executes.
package strategy

import (
	"fmt"

	"github.com/openclaw/paper-engine/internal/model"
)

// Strategy is the interface every signal generator implements.
type Strategy interface {
	// Name identifies the strategy. Ledger portfolios are keyed by it.
	Name() string

	// Analyze inspects one market snapshot and returns a signal when an
	// opportunity exists, or nil.
	Analyze(snap model.MarketSnapshot) *model.Signal

	// ShouldExit reports whether an open position from this strategy
	// should be closed at the current market state.
	ShouldExit(pos model.PositionView, snap model.MarketSnapshot) bool
}

// Params holds per-strategy tuning values from configuration.
type Params map[string]float64

// Get returns the named parameter, or def when absent.
func (p Params) Get(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// Registered strategy names.
const (
	NameMeanReversion = "mean_reversion"
	NameMomentum      = "momentum"
	NameMarketMaking  = "market_making"
)

// New builds a strategy by registered name.
func New(name string, params Params) (Strategy, error) {
	switch name {
	case NameMeanReversion:
		return NewMeanReversion(params), nil
	case NameMomentum:
		return NewMomentum(params), nil
	case NameMarketMaking:
		return NewMarketMaking(params), nil
	default:
		return nil, fmt.Errorf("strategy: unknown strategy %q", name)
	}
}
