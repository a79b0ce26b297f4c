package strategy

import (
	"testing"
	"time"

	"github.com/openclaw/paper-engine/internal/model"
)

// feedPrices runs Analyze over a price sequence and returns the last
// signal seen (or nil).
func feedPrices(s *Momentum, prices []float64) *model.Signal {
	var last *model.Signal
	for _, p := range prices {
		last = s.Analyze(snap(p))
	}
	return last
}

func risingPrices() []float64 {
	prices := make([]float64, 0, 20)
	for i := 0; i < 15; i++ {
		prices = append(prices, 0.40)
	}
	return append(prices, 0.50, 0.55, 0.60, 0.65, 0.70)
}

func TestMomentum_NeedsFullWindow(t *testing.T) {
	s := NewMomentum(nil)

	for i := 0; i < 19; i++ {
		if sig := s.Analyze(snap(0.70)); sig != nil {
			t.Fatalf("tick %d: expected no signal before window fills", i)
		}
	}
}

func TestMomentum_UpwardMomentumBuysYes(t *testing.T) {
	s := NewMomentum(nil)

	// Flat then rising: short MA 0.60 vs long MA 0.45 with price above.
	sig := feedPrices(s, risingPrices())
	if sig == nil {
		t.Fatal("expected upward momentum signal")
	}
	if sig.Side != model.SideYes {
		t.Errorf("expected YES side, got %s", sig.Side)
	}
	if sig.Metadata["reason"] != "upward_momentum" {
		t.Errorf("expected reason upward_momentum, got %q", sig.Metadata["reason"])
	}
	if sig.Metadata["momentum"] == "" {
		t.Error("expected momentum recorded in metadata")
	}
}

func TestMomentum_DownwardMomentumBuysNo(t *testing.T) {
	s := NewMomentum(nil)

	prices := make([]float64, 0, 20)
	for i := 0; i < 15; i++ {
		prices = append(prices, 0.60)
	}
	prices = append(prices, 0.50, 0.45, 0.40, 0.35, 0.30)

	sig := feedPrices(s, prices)
	if sig == nil {
		t.Fatal("expected downward momentum signal")
	}
	if sig.Side != model.SideNo {
		t.Errorf("expected NO side, got %s", sig.Side)
	}
	if sig.Metadata["reason"] != "downward_momentum" {
		t.Errorf("expected reason downward_momentum, got %q", sig.Metadata["reason"])
	}
}

func TestMomentum_FlatMarketNoSignal(t *testing.T) {
	s := NewMomentum(nil)

	prices := make([]float64, 25)
	for i := range prices {
		prices[i] = 0.50
	}
	if sig := feedPrices(s, prices); sig != nil {
		t.Errorf("expected no signal in a flat market, got %s", sig.Side)
	}
}

func TestMomentum_ExitOnReversal(t *testing.T) {
	s := NewMomentum(nil)

	sig := feedPrices(s, risingPrices())
	if sig == nil {
		t.Fatal("expected entry signal")
	}
	pos := model.PositionView{
		EntryPrice: d(0.70),
		Side:       model.SideYes,
		Metadata:   sig.Metadata,
	}

	// Momentum still positive: hold.
	if s.ShouldExit(pos, snap(0.70)) {
		t.Error("should hold while momentum persists")
	}

	// Push falling prices until the short average drops below the long:
	// window becomes the rising tail plus fifteen 0.20 prints.
	for i := 0; i < 15; i++ {
		s.Analyze(snap(0.20))
	}
	if !s.ShouldExit(pos, snap(0.20)) {
		t.Error("should exit after momentum reversal")
	}
}

func TestMomentum_ExitNearClose(t *testing.T) {
	s := NewMomentum(nil)

	feedPrices(s, risingPrices())
	pos := model.PositionView{
		EntryPrice: d(0.70),
		Side:       model.SideYes,
		Metadata:   map[string]string{"momentum": "0.15"},
	}

	closing := snap(0.70)
	closing.CloseTime = time.Now().Add(90 * time.Minute)
	if !s.ShouldExit(pos, closing) {
		t.Error("should exit when the market closes within two hours")
	}
}
