package strategy

import (
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openclaw/paper-engine/internal/model"
)

// MeanReversion fades extreme prices: it bets NO against a YES price at
// or above the extreme threshold and YES below the floor, expecting
// reversion toward 50 cents.
type MeanReversion struct {
	extremeThreshold float64
	minThreshold     float64
	exitTarget       float64
	baseSize         float64
	maxSize          float64
}

// NewMeanReversion builds the strategy with parameter defaults matching
// a small-account configuration: $5 base size capped at $10.
func NewMeanReversion(p Params) *MeanReversion {
	return &MeanReversion{
		extremeThreshold: p.Get("extreme_threshold", 0.95),
		minThreshold:     p.Get("min_threshold", 0.05),
		exitTarget:       p.Get("exit_target", 0.50),
		baseSize:         p.Get("base_position_size", 5.0),
		maxSize:          p.Get("max_position_size", 10.0),
	}
}

func (s *MeanReversion) Name() string { return NameMeanReversion }

func (s *MeanReversion) Analyze(snap model.MarketSnapshot) *model.Signal {
	yes, _ := snap.YesPrice.Float64()

	if yes >= s.extremeThreshold {
		return &model.Signal{
			MarketID:   snap.MarketID,
			Side:       model.SideNo,
			Confidence: math.Min(0.95, yes),
			Size:       s.positionSize(yes),
			Strategy:   s.Name(),
			Timestamp:  time.Now().UTC(),
			Metadata: map[string]string{
				"reason": "extreme_yes_price",
				"price":  strconv.FormatFloat(yes, 'f', -1, 64),
			},
		}
	}

	if yes <= s.minThreshold {
		return &model.Signal{
			MarketID:   snap.MarketID,
			Side:       model.SideYes,
			Confidence: math.Min(0.95, 1-yes),
			Size:       s.positionSize(yes),
			Strategy:   s.Name(),
			Timestamp:  time.Now().UTC(),
			Metadata: map[string]string{
				"reason": "extreme_no_price",
				"price":  strconv.FormatFloat(yes, 'f', -1, 64),
			},
		}
	}

	return nil
}

// ShouldExit closes when the price has reverted through the exit target,
// or when the market is about to close.
func (s *MeanReversion) ShouldExit(pos model.PositionView, snap model.MarketSnapshot) bool {
	entry, _ := pos.EntryPrice.Float64()
	current, _ := snap.YesPrice.Float64()

	// EntryPrice stores the executed side's price; recover the YES price
	// the position was opened against.
	entryYes := entry
	if pos.Side == model.SideNo {
		entryYes = 1 - entry
	}

	if entryYes > 0.5 && current <= s.exitTarget {
		return true
	}
	if entryYes < 0.5 && current >= s.exitTarget {
		return true
	}

	return snap.CloseInHours() < 1
}

// positionSize scales from 1x at 50 cents to 2x at the extremes.
func (s *MeanReversion) positionSize(yes float64) decimal.Decimal {
	distance := math.Abs(yes - 0.5)
	size := s.baseSize * (1 + distance*2)
	if size > s.maxSize {
		size = s.maxSize
	}
	return decimal.NewFromFloat(size)
}
