package strategy

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openclaw/paper-engine/internal/model"
)

// Momentum follows price trends. It keeps a rolling window of prices per
// market and enters when the short moving average pulls away from the
// long one by more than the threshold.
type Momentum struct {
	shortPeriod       int
	longPeriod        int
	momentumThreshold float64
	positionSize      float64

	mu      sync.Mutex
	history map[string][]float64
}

func NewMomentum(p Params) *Momentum {
	return &Momentum{
		shortPeriod:       int(p.Get("short_ma", 5)),
		longPeriod:        int(p.Get("long_ma", 20)),
		momentumThreshold: p.Get("momentum_threshold", 0.02),
		positionSize:      p.Get("position_size", 5.0),
		history:           make(map[string][]float64),
	}
}

func (s *Momentum) Name() string { return NameMomentum }

func (s *Momentum) Analyze(snap model.MarketSnapshot) *model.Signal {
	yes, _ := snap.YesPrice.Float64()

	shortMA, longMA, ok := s.record(snap.MarketID, yes)
	if !ok {
		return nil
	}

	momentum := shortMA - longMA

	var side model.Side
	var reason string
	switch {
	case momentum > s.momentumThreshold && yes > shortMA:
		side, reason = model.SideYes, "upward_momentum"
	case momentum < -s.momentumThreshold && yes < shortMA:
		side, reason = model.SideNo, "downward_momentum"
	default:
		return nil
	}

	return &model.Signal{
		MarketID:   snap.MarketID,
		Side:       side,
		Confidence: math.Min(0.9, 0.5+math.Abs(momentum)),
		Size:       decimal.NewFromFloat(s.positionSize),
		Strategy:   s.Name(),
		Timestamp:  time.Now().UTC(),
		Metadata: map[string]string{
			"reason":   reason,
			"short_ma": strconv.FormatFloat(shortMA, 'f', -1, 64),
			"long_ma":  strconv.FormatFloat(longMA, 'f', -1, 64),
			"momentum": strconv.FormatFloat(momentum, 'f', -1, 64),
		},
	}
}

// ShouldExit closes on a momentum sign flip relative to entry, or when
// the market is within two hours of closing.
func (s *Momentum) ShouldExit(pos model.PositionView, snap model.MarketSnapshot) bool {
	entryMomentum, _ := strconv.ParseFloat(pos.Metadata["momentum"], 64)

	shortMA, longMA, ok := s.averages(snap.MarketID)
	if !ok {
		return false
	}
	current := shortMA - longMA

	if entryMomentum > 0 && current < 0 {
		return true
	}
	if entryMomentum < 0 && current > 0 {
		return true
	}

	return snap.CloseInHours() < 2
}

// record appends a price to the market's window and returns the moving
// averages once the window is full.
func (s *Momentum) record(marketID string, price float64) (shortMA, longMA float64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := append(s.history[marketID], price)
	if len(h) > s.longPeriod {
		h = h[len(h)-s.longPeriod:]
	}
	s.history[marketID] = h

	return s.averagesLocked(marketID)
}

func (s *Momentum) averages(marketID string) (shortMA, longMA float64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.averagesLocked(marketID)
}

func (s *Momentum) averagesLocked(marketID string) (shortMA, longMA float64, ok bool) {
	h := s.history[marketID]
	if len(h) < s.longPeriod {
		return 0, 0, false
	}
	for _, p := range h {
		longMA += p
	}
	longMA /= float64(len(h))
	for _, p := range h[len(h)-s.shortPeriod:] {
		shortMA += p
	}
	shortMA /= float64(s.shortPeriod)
	return shortMA, longMA, true
}
