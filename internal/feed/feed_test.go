package feed

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func testMarkets() []SimMarket {
	return []SimMarket{
		{Ticker: "KXRAIN-26SEP01-NYC", Liquidity: 40},
		{Ticker: "KXTEMP-26SEP01-B90", Liquidity: 60, StartBias: 10},
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var beforeExpiry = time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

func TestNewSimulator_RejectsBadTicker(t *testing.T) {
	_, err := NewSimulator(1, []SimMarket{{Ticker: "garbage"}})
	if err == nil {
		t.Error("expected error for invalid ticker")
	}
}

func TestPoll_Deterministic(t *testing.T) {
	a, _ := NewSimulator(42, testMarkets())
	b, _ := NewSimulator(42, testMarkets())
	a.SetClock(fixedClock(beforeExpiry))
	b.SetClock(fixedClock(beforeExpiry))

	ctx := context.Background()
	for step := 0; step < 10; step++ {
		snapsA, err := a.Poll(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		snapsB, _ := b.Poll(ctx)

		for i := range snapsA {
			if !snapsA[i].YesPrice.Equal(snapsB[i].YesPrice) {
				t.Fatalf("step %d market %d: diverged %s vs %s",
					step, i, snapsA[i].YesPrice, snapsB[i].YesPrice)
			}
		}
	}
}

func TestPoll_PricesStayBounded(t *testing.T) {
	sim, _ := NewSimulator(7, []SimMarket{
		{Ticker: "KXRAIN-26SEP01-NYC", Liquidity: 5, StartBias: 100},
	})
	sim.SetClock(fixedClock(beforeExpiry))

	ctx := context.Background()
	one := decimal.NewFromInt(1)
	for i := 0; i < 200; i++ {
		snaps, err := sim.Poll(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		s := snaps[0]
		if s.YesPrice.LessThan(minPrice) || s.YesPrice.GreaterThan(maxPrice) {
			t.Fatalf("step %d: yes price %s out of bounds", i, s.YesPrice)
		}
		if !s.YesPrice.Add(s.NoPrice).Equal(one) {
			t.Fatalf("step %d: yes+no != 1: %s + %s", i, s.YesPrice, s.NoPrice)
		}
	}
}

func TestPoll_SnapshotShape(t *testing.T) {
	sim, _ := NewSimulator(1, testMarkets())
	sim.SetClock(fixedClock(beforeExpiry))

	snaps, err := sim.Poll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}

	s := snaps[0]
	if s.MarketID != "KXRAIN-26SEP01-NYC" {
		t.Errorf("unexpected market id %s", s.MarketID)
	}
	if s.Status != "active" {
		t.Errorf("expected status active, got %s", s.Status)
	}
	if s.CloseTime.IsZero() {
		t.Error("expected close time from ticker expiry")
	}
	if s.BestBid.GreaterThanOrEqual(s.BestAsk) {
		t.Errorf("bid %s must be below ask %s", s.BestBid, s.BestAsk)
	}
	if !s.LastUpdated.Equal(beforeExpiry) {
		t.Errorf("expected last updated %v, got %v", beforeExpiry, s.LastUpdated)
	}
}

func TestPoll_SettlesAfterExpiry(t *testing.T) {
	sim, _ := NewSimulator(1, testMarkets())
	sim.SetClock(fixedClock(beforeExpiry))

	ctx := context.Background()
	sim.Poll(ctx) // a few active steps first
	sim.Poll(ctx)

	afterExpiry := time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC)
	sim.SetClock(fixedClock(afterExpiry))

	snaps, err := sim.Poll(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	zero := decimal.Zero
	one := decimal.NewFromInt(1)
	for _, s := range snaps {
		if s.Status != "settled" {
			t.Errorf("%s: expected settled, got %s", s.MarketID, s.Status)
		}
		if !s.YesPrice.Equal(zero) && !s.YesPrice.Equal(one) {
			t.Errorf("%s: expected terminal price 0 or 1, got %s", s.MarketID, s.YesPrice)
		}
	}

	// Settlement is sticky: prices stay terminal on later polls.
	again, _ := sim.Poll(ctx)
	for i, s := range again {
		if !s.YesPrice.Equal(snaps[i].YesPrice) {
			t.Errorf("%s: settled price moved from %s to %s",
				s.MarketID, snaps[i].YesPrice, s.YesPrice)
		}
	}
}

func TestPoll_CancelledContext(t *testing.T) {
	sim, _ := NewSimulator(1, testMarkets())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := sim.Poll(ctx); err == nil {
		t.Error("expected error from cancelled context")
	}
}
