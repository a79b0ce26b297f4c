package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/openclaw/paper-engine/internal/allocator"
	"github.com/openclaw/paper-engine/internal/api"
	"github.com/openclaw/paper-engine/internal/ledger"
	"github.com/openclaw/paper-engine/internal/model"
	"github.com/openclaw/paper-engine/internal/perf"
	"github.com/openclaw/paper-engine/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

type testEnv struct {
	ledger  *ledger.Ledger
	tracker *perf.Tracker
	server  *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	ldg := ledger.New(ledger.RiskLimits{
		MaxTotalCapital:        d(200),
		MaxPositionSize:        d(50),
		MaxDailyLoss:           d(100),
		MaxConcurrentPositions: 20,
		MaxExposurePct:         d(1),
	})
	ldg.InitPortfolio("alpha", d(100))
	ldg.InitPortfolio("beta", d(100))

	tracker := perf.NewTracker(store.NewMemoryStore(), perf.DefaultParams(), 2)
	alloc := allocator.New(allocator.Config{
		RebalanceInterval:   24 * time.Hour,
		PerformanceWeight:   0.7,
		RiskWeight:          0.3,
		MinTradesForRanking: 2,
	}, tracker, ldg, d(200))

	r := chi.NewRouter()
	r.Route("/api/v1", api.NewService(ldg, tracker, alloc, nil).Routes)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testEnv{ledger: ldg, tracker: tracker, server: srv}
}

func (e *testEnv) get(t *testing.T, path string, out any) int {
	t.Helper()
	resp, err := http.Get(e.server.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

func (e *testEnv) openPosition(t *testing.T, strategy string, yes float64) *model.Position {
	t.Helper()
	pos, err := e.ledger.Execute(model.Signal{
		MarketID:  "KXRAIN-26SEP01-NYC",
		Side:      model.SideYes,
		Size:      d(5),
		Strategy:  strategy,
		Timestamp: time.Now().UTC(),
	}, d(yes))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	return pos
}

func TestGetSummary(t *testing.T) {
	env := newTestEnv(t)

	var sum ledger.Summary
	if code := env.get(t, "/api/v1/summary", &sum); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if !sum.TotalCapital.Equal(d(200)) {
		t.Errorf("expected total capital 200, got %s", sum.TotalCapital)
	}
	if len(sum.Strategies) != 2 {
		t.Errorf("expected 2 strategies, got %d", len(sum.Strategies))
	}
}

func TestListPortfolios(t *testing.T) {
	env := newTestEnv(t)

	var views []ledger.PortfolioView
	if code := env.get(t, "/api/v1/portfolios", &views); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 portfolios, got %d", len(views))
	}
	if views[0].Strategy != "alpha" || views[1].Strategy != "beta" {
		t.Errorf("expected insertion order alpha, beta: %+v", views)
	}
}

func TestGetPortfolio(t *testing.T) {
	env := newTestEnv(t)

	var pf ledger.PortfolioView
	if code := env.get(t, "/api/v1/portfolios/alpha", &pf); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if !pf.CurrentCapital.Equal(d(100)) {
		t.Errorf("expected capital 100, got %s", pf.CurrentCapital)
	}

	if code := env.get(t, "/api/v1/portfolios/nope", nil); code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown strategy, got %d", code)
	}
}

func TestGetPortfolioMetrics(t *testing.T) {
	env := newTestEnv(t)

	pos := env.openPosition(t, "alpha", 0.50)
	if _, err := env.ledger.Close(pos.ID, d(0.70), "strategy_exit"); err != nil {
		t.Fatalf("close: %v", err)
	}

	var m model.StrategyMetrics
	if code := env.get(t, "/api/v1/portfolios/alpha/metrics", &m); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if m.Strategy != "alpha" || m.TotalTrades != 1 || m.WinningTrades != 1 {
		t.Errorf("unexpected metrics: %+v", m)
	}

	if code := env.get(t, "/api/v1/portfolios/nope/metrics", nil); code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown strategy, got %d", code)
	}
}

func TestListPositions(t *testing.T) {
	env := newTestEnv(t)

	pos := env.openPosition(t, "alpha", 0.50)
	env.openPosition(t, "beta", 0.40)
	if _, err := env.ledger.Close(pos.ID, d(0.60), "strategy_exit"); err != nil {
		t.Fatalf("close: %v", err)
	}

	var open []model.Position
	if code := env.get(t, "/api/v1/positions", &open); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(open) != 1 || open[0].Strategy != "beta" {
		t.Errorf("expected one open beta position, got %+v", open)
	}

	var closed []model.Position
	env.get(t, "/api/v1/positions?status=closed", &closed)
	if len(closed) != 1 || closed[0].ID != pos.ID {
		t.Errorf("expected the closed position, got %+v", closed)
	}

	if code := env.get(t, "/api/v1/positions?status=bogus", nil); code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad status, got %d", code)
	}
}

func TestListPositions_EmptyIsArray(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/api/v1/positions")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out []model.Position
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("expected a JSON array, decode failed: %v", err)
	}
	if out == nil || len(out) != 0 {
		t.Errorf("expected empty array, got %v", out)
	}
}

func TestGetTradeHistory(t *testing.T) {
	env := newTestEnv(t)

	pos := env.openPosition(t, "alpha", 0.50)
	closed, err := env.ledger.Close(pos.ID, d(0.70), "strategy_exit")
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	env.tracker.RecordTrade(context.Background(), *closed)

	var trades []model.Position
	if code := env.get(t, "/api/v1/trades/alpha", &trades); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(trades) != 1 || trades[0].ID != pos.ID {
		t.Fatalf("expected the recorded trade, got %+v", trades)
	}
	if !trades[0].PnL().Equal(d(2)) {
		t.Errorf("expected pnl 2, got %s", trades[0].PnL())
	}

	// No trades recorded for beta yet: empty array, not null.
	var empty []model.Position
	if code := env.get(t, "/api/v1/trades/beta", &empty); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("expected empty array, got %v", empty)
	}

	if code := env.get(t, "/api/v1/trades/nope", nil); code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown strategy, got %d", code)
	}
}

func TestGetLeaderboard(t *testing.T) {
	env := newTestEnv(t)

	// Two closed trades for alpha clears the min-trades bar; beta has none.
	for _, exit := range []float64{0.60, 0.70} {
		pos := env.openPosition(t, "alpha", 0.50)
		if _, err := env.ledger.Close(pos.ID, d(exit), "strategy_exit"); err != nil {
			t.Fatalf("close: %v", err)
		}
	}

	var board []model.StrategyMetrics
	if code := env.get(t, "/api/v1/leaderboard", &board); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(board) != 1 || board[0].Strategy != "alpha" {
		t.Errorf("expected alpha alone on the board, got %+v", board)
	}
}

func TestGetAllocations(t *testing.T) {
	env := newTestEnv(t)

	var sum allocator.Summary
	if code := env.get(t, "/api/v1/allocations", &sum); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if !sum.TotalCapital.Equal(d(200)) {
		t.Errorf("expected pool 200, got %s", sum.TotalCapital)
	}
	if sum.LastRebalance != nil {
		t.Errorf("expected no rebalance yet, got %v", sum.LastRebalance)
	}
}

func TestTriggerRebalance(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Post(env.server.URL+"/api/v1/rebalance", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var results []model.AllocationResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 allocation rows, got %d", len(results))
	}

	// Fresh strategies split the pool equally and the ledger is updated.
	pf, _ := env.ledger.Portfolio("alpha")
	if !pf.CurrentCapital.Equal(results[0].NewAllocation) && !pf.CurrentCapital.Equal(results[1].NewAllocation) {
		t.Errorf("ledger capital %s does not match any allocation", pf.CurrentCapital)
	}
}
