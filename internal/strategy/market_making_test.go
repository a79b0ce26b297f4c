package strategy

import (
	"testing"

	"github.com/openclaw/paper-engine/internal/model"
)

func TestMarketMaking_WideSpreadSignals(t *testing.T) {
	s := NewMarketMaking(nil)

	wide := snap(0.50)
	wide.BestBid = d(0.45)
	wide.BestAsk = d(0.55)

	sig := s.Analyze(wide)
	if sig == nil {
		t.Fatal("expected signal on wide spread")
	}
	if sig.Side != model.SideBoth {
		t.Errorf("expected both sides, got %s", sig.Side)
	}
	if sig.Metadata["spread"] == "" || sig.Metadata["mid"] == "" {
		t.Errorf("expected spread and mid in metadata, got %v", sig.Metadata)
	}
}

func TestMarketMaking_TightSpreadNoSignal(t *testing.T) {
	s := NewMarketMaking(nil)

	tight := snap(0.50)
	tight.BestBid = d(0.49)
	tight.BestAsk = d(0.51)

	if sig := s.Analyze(tight); sig != nil {
		t.Errorf("expected no signal on tight spread, got %v", sig)
	}
}

func TestMarketMaking_EmptyBookNoSignal(t *testing.T) {
	s := NewMarketMaking(nil)

	empty := snap(0.50)
	empty.BestBid = d(0)
	empty.BestAsk = d(1)

	if sig := s.Analyze(empty); sig != nil {
		t.Errorf("expected no signal with an empty bid, got %v", sig)
	}
}

func TestMarketMaking_NeverExits(t *testing.T) {
	s := NewMarketMaking(nil)
	pos := model.PositionView{EntryPrice: d(0.50), Side: model.SideYes}
	if s.ShouldExit(pos, snap(0.99)) {
		t.Error("market making positions ride to settlement")
	}
}
