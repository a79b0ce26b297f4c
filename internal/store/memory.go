package store

import (
	"context"
	"sync"

	"github.com/openclaw/paper-engine/internal/model"
)

// MemoryStore implements Store with in-memory slices and maps. Used for
// testing and standalone runs without a database.
type MemoryStore struct {
	mu       sync.RWMutex
	trades   []model.Position
	tradeIdx map[string]int // position id → index in trades
	capital  []model.CapitalSnapshot
	daily    map[string]model.StrategyMetrics // date|strategy → rollup
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tradeIdx: make(map[string]int),
		daily:    make(map[string]model.StrategyMetrics),
	}
}

func (s *MemoryStore) InsertTrade(_ context.Context, pos model.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.tradeIdx[pos.ID]; ok {
		s.trades[i] = pos
		return nil
	}
	s.tradeIdx[pos.ID] = len(s.trades)
	s.trades = append(s.trades, pos)
	return nil
}

func (s *MemoryStore) ListTradesByStrategy(_ context.Context, strategy string) ([]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Position
	for _, t := range s.trades {
		if t.Strategy == strategy {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *MemoryStore) InsertCapitalSnapshot(_ context.Context, snap model.CapitalSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capital = append(s.capital, snap)
	return nil
}

func (s *MemoryStore) ListCapitalHistory(_ context.Context, strategy string) ([]model.CapitalSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.CapitalSnapshot
	for _, c := range s.capital {
		if c.Strategy == strategy {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *MemoryStore) UpsertDailyMetrics(_ context.Context, date string, m model.StrategyMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.daily[date+"|"+m.Strategy] = m
	return nil
}
