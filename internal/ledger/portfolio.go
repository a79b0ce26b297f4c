package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/openclaw/paper-engine/internal/model"
)

// portfolio is one strategy's virtual account. All access goes through
// the ledger's lock; nothing here synchronizes on its own.
type portfolio struct {
	strategy       string
	initialCapital decimal.Decimal
	currentCapital decimal.Decimal
	open           map[string]*model.Position
	closed         []*model.Position
}

func newPortfolio(strategy string, capital decimal.Decimal) *portfolio {
	return &portfolio{
		strategy:       strategy,
		initialCapital: capital,
		currentCapital: capital,
		open:           make(map[string]*model.Position),
	}
}

// exposure is the summed entry cost of all open positions.
func (p *portfolio) exposure() decimal.Decimal {
	total := decimal.Zero
	for _, pos := range p.open {
		total = total.Add(pos.EntryCost)
	}
	return total
}

// availableCapital is current capital minus open exposure. Capital is not
// debited at open time, so this is the derived headroom for new positions.
func (p *portfolio) availableCapital() decimal.Decimal {
	return p.currentCapital.Sub(p.exposure())
}

func (p *portfolio) realizedPnL() decimal.Decimal {
	total := decimal.Zero
	for _, pos := range p.closed {
		total = total.Add(pos.PnL())
	}
	return total
}

func (p *portfolio) winningTrades() int {
	n := 0
	for _, pos := range p.closed {
		if pos.PnL().IsPositive() {
			n++
		}
	}
	return n
}

func (p *portfolio) winRate() float64 {
	if len(p.closed) == 0 {
		return 0
	}
	return float64(p.winningTrades()) / float64(len(p.closed)) * 100
}

// PortfolioView is a consistent read-only copy of a portfolio, safe to
// use without holding the ledger lock.
type PortfolioView struct {
	Strategy         string            `json:"strategy"`
	InitialCapital   decimal.Decimal   `json:"initial_capital"`
	CurrentCapital   decimal.Decimal   `json:"current_capital"`
	Exposure         decimal.Decimal   `json:"exposure"`
	AvailableCapital decimal.Decimal   `json:"available_capital"`
	RealizedPnL      decimal.Decimal   `json:"realized_pnl"`
	WinRate          float64           `json:"win_rate"`
	OpenPositions    []model.Position  `json:"open_positions"`
	ClosedPositions  []model.Position  `json:"closed_positions"`
}

// view deep-copies the portfolio. Closed positions are value copies;
// their pointer fields reference immutable post-close data.
func (p *portfolio) view() PortfolioView {
	v := PortfolioView{
		Strategy:         p.strategy,
		InitialCapital:   p.initialCapital,
		CurrentCapital:   p.currentCapital,
		Exposure:         p.exposure(),
		AvailableCapital: p.availableCapital(),
		RealizedPnL:      p.realizedPnL(),
		WinRate:          p.winRate(),
		OpenPositions:    make([]model.Position, 0, len(p.open)),
		ClosedPositions:  make([]model.Position, 0, len(p.closed)),
	}
	for _, pos := range p.open {
		v.OpenPositions = append(v.OpenPositions, *pos)
	}
	for _, pos := range p.closed {
		v.ClosedPositions = append(v.ClosedPositions, *pos)
	}
	return v
}
