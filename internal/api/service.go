// Package api provides the HTTP handlers for querying engine state:
// portfolios, positions, performance metrics and capital allocations.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openclaw/paper-engine/internal/allocator"
	"github.com/openclaw/paper-engine/internal/ledger"
	"github.com/openclaw/paper-engine/internal/model"
	"github.com/openclaw/paper-engine/internal/perf"
)

// Service wires the read/query endpoints over the engine components.
type Service struct {
	ledger  *ledger.Ledger
	tracker *perf.Tracker
	alloc   *allocator.Allocator
	hub     *EventHub
}

// NewService creates the API service. Pass nil for hub if WebSocket
// broadcasting is not needed.
func NewService(ldg *ledger.Ledger, tracker *perf.Tracker, alloc *allocator.Allocator, hub *EventHub) *Service {
	return &Service{
		ledger:  ldg,
		tracker: tracker,
		alloc:   alloc,
		hub:     hub,
	}
}

// Routes mounts all API endpoints on the given router.
func (s *Service) Routes(r chi.Router) {
	r.Get("/summary", s.GetSummary)
	r.Get("/portfolios", s.ListPortfolios)
	r.Get("/portfolios/{strategy}", s.GetPortfolio)
	r.Get("/portfolios/{strategy}/metrics", s.GetPortfolioMetrics)
	r.Get("/positions", s.ListPositions)
	r.Get("/trades/{strategy}", s.GetTradeHistory)
	r.Get("/leaderboard", s.GetLeaderboard)
	r.Get("/allocations", s.GetAllocations)
	r.Post("/rebalance", s.TriggerRebalance)
	if s.hub != nil {
		r.Get("/ws", s.hub.HandleWS)
	}
}

// GetSummary handles GET /api/v1/summary
func (s *Service) GetSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.Summary())
}

// ListPortfolios handles GET /api/v1/portfolios
func (s *Service) ListPortfolios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.Portfolios())
}

// GetPortfolio handles GET /api/v1/portfolios/{strategy}
func (s *Service) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	strategy := chi.URLParam(r, "strategy")

	pf, ok := s.ledger.Portfolio(strategy)
	if !ok {
		writeError(w, "unknown strategy: "+strategy, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, pf)
}

// GetPortfolioMetrics handles GET /api/v1/portfolios/{strategy}/metrics
// Metrics are recomputed on every call from the full trade history.
func (s *Service) GetPortfolioMetrics(w http.ResponseWriter, r *http.Request) {
	strategy := chi.URLParam(r, "strategy")

	pf, ok := s.ledger.Portfolio(strategy)
	if !ok {
		writeError(w, "unknown strategy: "+strategy, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, s.tracker.Calculate(pf))
}

// ListPositions handles GET /api/v1/positions
// Optional ?status=open|closed|expired filter; default is open.
func (s *Service) ListPositions(w http.ResponseWriter, r *http.Request) {
	status := model.PositionStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = model.StatusOpen
	}
	switch status {
	case model.StatusOpen, model.StatusClosed, model.StatusExpired:
	default:
		writeError(w, "status must be open, closed or expired", http.StatusBadRequest)
		return
	}

	positions := s.ledger.Positions(status)
	if positions == nil {
		positions = []model.Position{}
	}
	writeJSON(w, http.StatusOK, positions)
}

// GetTradeHistory handles GET /api/v1/trades/{strategy}
// Returns the persisted closed-trade history, read through the store.
func (s *Service) GetTradeHistory(w http.ResponseWriter, r *http.Request) {
	strategy := chi.URLParam(r, "strategy")

	if _, ok := s.ledger.Portfolio(strategy); !ok {
		writeError(w, "unknown strategy: "+strategy, http.StatusNotFound)
		return
	}

	trades, err := s.tracker.TradeHistory(r.Context(), strategy)
	if err != nil {
		slog.Error("trade history read failed", "strategy", strategy, "error", err)
		writeError(w, "trade history unavailable", http.StatusInternalServerError)
		return
	}
	if trades == nil {
		trades = []model.Position{}
	}
	writeJSON(w, http.StatusOK, trades)
}

// GetLeaderboard handles GET /api/v1/leaderboard
// Strategies with enough history, ranked by Sharpe ratio.
func (s *Service) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	// Refresh metrics so the ranking reflects current state.
	for _, pf := range s.ledger.Portfolios() {
		s.tracker.Calculate(pf)
	}

	board := s.tracker.Leaderboard()
	if board == nil {
		board = []model.StrategyMetrics{}
	}
	writeJSON(w, http.StatusOK, board)
}

// GetAllocations handles GET /api/v1/allocations
func (s *Service) GetAllocations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.alloc.AllocationSummary())
}

// TriggerRebalance handles POST /api/v1/rebalance
// Applies allocations immediately, ignoring the rebalance interval.
func (s *Service) TriggerRebalance(w http.ResponseWriter, r *http.Request) {
	allocations := s.alloc.ForceRebalance(r.Context())

	slog.Info("manual rebalance triggered", "strategies", len(allocations))

	if s.hub != nil {
		s.hub.Broadcast(Event{
			Type:    EventRebalanced,
			Payload: allocations,
		})
	}

	writeJSON(w, http.StatusOK, allocations)
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
