package strategy

import (
	"math"
	"testing"
	"time"

	"github.com/openclaw/paper-engine/internal/model"
)

func TestMeanReversion_FadesExtremeYes(t *testing.T) {
	s := NewMeanReversion(nil)

	sig := s.Analyze(snap(0.96))
	if sig == nil {
		t.Fatal("expected signal at extreme YES price")
	}
	if sig.Side != model.SideNo {
		t.Errorf("expected NO side, got %s", sig.Side)
	}
	if sig.Metadata["reason"] != "extreme_yes_price" {
		t.Errorf("expected reason extreme_yes_price, got %q", sig.Metadata["reason"])
	}
	// Distance 0.46 from midpoint: 5 * 1.92 = 9.60.
	if got, _ := sig.Size.Float64(); math.Abs(got-9.6) > 1e-9 {
		t.Errorf("expected size 9.60, got %s", sig.Size)
	}
}

func TestMeanReversion_FadesExtremeNo(t *testing.T) {
	s := NewMeanReversion(nil)

	sig := s.Analyze(snap(0.04))
	if sig == nil {
		t.Fatal("expected signal at extreme NO price")
	}
	if sig.Side != model.SideYes {
		t.Errorf("expected YES side, got %s", sig.Side)
	}
	if sig.Metadata["reason"] != "extreme_no_price" {
		t.Errorf("expected reason extreme_no_price, got %q", sig.Metadata["reason"])
	}
}

func TestMeanReversion_QuietMarketNoSignal(t *testing.T) {
	s := NewMeanReversion(nil)

	for _, yes := range []float64{0.06, 0.30, 0.50, 0.80, 0.94} {
		if sig := s.Analyze(snap(yes)); sig != nil {
			t.Errorf("price %v: expected no signal, got %s", yes, sig.Side)
		}
	}
}

func TestMeanReversion_SizeCapped(t *testing.T) {
	s := NewMeanReversion(Params{"base_position_size": 8, "max_position_size": 10})

	sig := s.Analyze(snap(0.97))
	if sig == nil {
		t.Fatal("expected signal")
	}
	// 8 * 1.94 = 15.52 would exceed the cap.
	if !sig.Size.Equal(d(10)) {
		t.Errorf("expected size capped at 10, got %s", sig.Size)
	}
}

func TestMeanReversion_ExitOnReversion(t *testing.T) {
	s := NewMeanReversion(nil)

	// NO position opened against YES at 0.96: view's entry price is the
	// NO side cost, 0.04.
	pos := model.PositionView{EntryPrice: d(0.04), Side: model.SideNo}

	if s.ShouldExit(pos, snap(0.75)) {
		t.Error("should hold while price is still elevated")
	}
	if !s.ShouldExit(pos, snap(0.50)) {
		t.Error("should exit on reversion to the target")
	}
	if !s.ShouldExit(pos, snap(0.30)) {
		t.Error("should exit below the target")
	}
}

func TestMeanReversion_ExitFromBelow(t *testing.T) {
	s := NewMeanReversion(nil)

	// YES position opened at 0.04.
	pos := model.PositionView{EntryPrice: d(0.04), Side: model.SideYes}

	if s.ShouldExit(pos, snap(0.20)) {
		t.Error("should hold while price is still depressed")
	}
	if !s.ShouldExit(pos, snap(0.55)) {
		t.Error("should exit on reversion up through the target")
	}
}

func TestMeanReversion_ExitNearClose(t *testing.T) {
	s := NewMeanReversion(nil)
	pos := model.PositionView{EntryPrice: d(0.04), Side: model.SideNo}

	closing := snap(0.80)
	closing.CloseTime = time.Now().Add(30 * time.Minute)
	if !s.ShouldExit(pos, closing) {
		t.Error("should exit when the market closes within the hour")
	}
}
