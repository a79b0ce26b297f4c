package strategy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openclaw/paper-engine/internal/model"
)

// d is a test helper for creating decimals from float64.
func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func snap(yes float64) model.MarketSnapshot {
	return model.MarketSnapshot{
		MarketID:  "KXRAIN-26SEP01-NYC",
		YesPrice:  d(yes),
		NoPrice:   d(1 - yes),
		BestBid:   d(yes - 0.01),
		BestAsk:   d(yes + 0.01),
		Status:    "active",
		CloseTime: time.Now().Add(48 * time.Hour),
	}
}

func TestNew_KnownStrategies(t *testing.T) {
	for _, name := range []string{NameMeanReversion, NameMomentum, NameMarketMaking} {
		s, err := New(name, nil)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if s.Name() != name {
			t.Errorf("expected name %s, got %s", name, s.Name())
		}
	}
}

func TestNew_UnknownStrategy(t *testing.T) {
	if _, err := New("arbitrage", nil); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestParams_Get(t *testing.T) {
	p := Params{"x": 1.5}
	if got := p.Get("x", 9); got != 1.5 {
		t.Errorf("expected 1.5, got %v", got)
	}
	if got := p.Get("missing", 9); got != 9 {
		t.Errorf("expected default 9, got %v", got)
	}
}
