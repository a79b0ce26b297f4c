// Package feed provides market data sources for the trading loop.
//
// The Simulator generates binary market prices from an LMSR-style share
// imbalance driven by a seeded random walk, so price paths are both
// realistic (bounded, mean-reverting around accumulated flow) and
// reproducible for a given seed.
package feed

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openclaw/paper-engine/internal/model"
	"github.com/openclaw/paper-engine/internal/ticker"
)

// Price bounds. Simulated markets never quote certainty.
var (
	minPrice = decimal.NewFromFloat(0.01)
	maxPrice = decimal.NewFromFloat(0.99)
)

// Feed supplies market snapshots. Poll returns the current state of every
// tracked market, including markets that have settled since the last poll.
type Feed interface {
	Poll(ctx context.Context) ([]model.MarketSnapshot, error)
}

// SimMarket configures a single simulated market.
type SimMarket struct {
	Ticker    string
	Liquidity float64 // LMSR b parameter; higher = smaller price moves
	StartBias float64 // initial YES share imbalance
}

type simState struct {
	market    *ticker.Market
	title     string
	liquidity float64
	qYes      float64 // net YES share imbalance
	volume    int64
	openInt   int64
	settled   bool
	settleYes bool
}

// Simulator is a deterministic, seeded market simulator.
type Simulator struct {
	mu     sync.Mutex
	rng    *rand.Rand
	states map[string]*simState
	order  []string
	now    func() time.Time
}

// NewSimulator creates a simulator for the given markets. Invalid tickers
// are rejected so configuration mistakes surface at startup.
func NewSimulator(seed int64, markets []SimMarket) (*Simulator, error) {
	s := &Simulator{
		rng:    rand.New(rand.NewSource(seed)),
		states: make(map[string]*simState, len(markets)),
		now:    time.Now,
	}
	for _, m := range markets {
		parsed, err := ticker.Parse(m.Ticker)
		if err != nil {
			return nil, err
		}
		liq := m.Liquidity
		if liq <= 0 {
			liq = 100
		}
		s.states[parsed.Ticker] = &simState{
			market:    parsed,
			title:     parsed.Series + " " + parsed.Strike,
			liquidity: liq,
			qYes:      m.StartBias,
			openInt:   0,
		}
		s.order = append(s.order, parsed.Ticker)
	}
	return s, nil
}

// SetClock overrides the time source. Used in tests.
func (s *Simulator) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Poll advances every market one step of the random walk and returns the
// resulting snapshots. Markets past their expiry are reported once more
// with status "settled" and a terminal price of 0 or 1.
func (s *Simulator) Poll(ctx context.Context) ([]model.MarketSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	snaps := make([]model.MarketSnapshot, 0, len(s.order))
	for _, tk := range s.order {
		st := s.states[tk]
		snaps = append(snaps, s.step(st, now))
	}
	return snaps, nil
}

func (s *Simulator) step(st *simState, now time.Time) model.MarketSnapshot {
	expiry := st.market.Expiry()

	if !st.settled && !now.Before(expiry) {
		// Settle at whichever outcome the walk favors.
		st.settled = true
		st.settleYes = logistic(st.qYes/st.liquidity) >= 0.5
	}

	var yes decimal.Decimal
	status := "active"
	if st.settled {
		status = "settled"
		if st.settleYes {
			yes = decimal.NewFromInt(1)
		} else {
			yes = decimal.Zero
		}
	} else {
		// Random order flow: each step trades a small batch of shares on
		// a uniformly random side.
		flow := (s.rng.Float64()*2 - 1) * st.liquidity * 0.05
		st.qYes += flow
		st.volume += int64(math.Abs(flow)) + 1
		st.openInt += 1

		yes = clampPrice(decimal.NewFromFloat(logistic(st.qYes / st.liquidity)).Round(4))
	}

	spread := decimal.NewFromFloat(0.01)
	bid := yes.Sub(spread)
	ask := yes.Add(spread)
	if bid.LessThan(decimal.Zero) {
		bid = decimal.Zero
	}
	if ask.GreaterThan(decimal.NewFromInt(1)) {
		ask = decimal.NewFromInt(1)
	}

	return model.MarketSnapshot{
		MarketID:     st.market.Ticker,
		Ticker:       st.market.Ticker,
		Title:        st.title,
		YesPrice:     yes,
		NoPrice:      decimal.NewFromInt(1).Sub(yes),
		BestBid:      bid,
		BestAsk:      ask,
		Volume:       st.volume,
		OpenInterest: st.openInt,
		Status:       status,
		CloseTime:    expiry,
		LastUpdated:  now,
	}
}

// logistic is the binary LMSR price: exp(x) / (exp(x) + 1), computed in a
// numerically stable form.
func logistic(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

func clampPrice(p decimal.Decimal) decimal.Decimal {
	if p.LessThan(minPrice) {
		return minPrice
	}
	if p.GreaterThan(maxPrice) {
		return maxPrice
	}
	return p
}
