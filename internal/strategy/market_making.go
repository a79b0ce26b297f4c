package strategy

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openclaw/paper-engine/internal/model"
)

// MarketMaking signals liquidity-provision opportunities on wide
// bid-ask spreads. It emits a both-sides signal; how (or whether) the
// executor fills both legs is not this strategy's concern.
type MarketMaking struct {
	minSpread    float64
	positionSize float64
}

func NewMarketMaking(p Params) *MarketMaking {
	return &MarketMaking{
		minSpread:    p.Get("min_spread", 0.05),
		positionSize: p.Get("position_size", 5.0),
	}
}

func (s *MarketMaking) Name() string { return NameMarketMaking }

func (s *MarketMaking) Analyze(snap model.MarketSnapshot) *model.Signal {
	bid, _ := snap.BestBid.Float64()
	ask, _ := snap.BestAsk.Float64()

	spread := ask - bid
	if spread < s.minSpread || bid == 0 {
		return nil
	}

	return &model.Signal{
		MarketID:   snap.MarketID,
		Side:       model.SideBoth,
		Confidence: spread,
		Size:       decimal.NewFromFloat(s.positionSize),
		Strategy:   s.Name(),
		Timestamp:  time.Now().UTC(),
		Metadata: map[string]string{
			"spread": strconv.FormatFloat(spread, 'f', -1, 64),
			"mid":    strconv.FormatFloat((bid+ask)/2, 'f', -1, 64),
		},
	}
}

// ShouldExit never fires; market-making positions ride to settlement.
func (s *MarketMaking) ShouldExit(pos model.PositionView, snap model.MarketSnapshot) bool {
	return false
}
