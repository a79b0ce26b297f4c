package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openclaw/paper-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache over the per-strategy history reads. Writes go to the primary
// store and invalidate the cache.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Writes (primary first, then invalidate) ---

func (s *CachedStore) InsertTrade(ctx context.Context, pos model.Position) error {
	if err := s.primary.InsertTrade(ctx, pos); err != nil {
		return err
	}
	s.rdb.Del(ctx, tradesKey(pos.Strategy))
	return nil
}

func (s *CachedStore) InsertCapitalSnapshot(ctx context.Context, snap model.CapitalSnapshot) error {
	if err := s.primary.InsertCapitalSnapshot(ctx, snap); err != nil {
		return err
	}
	s.rdb.Del(ctx, capitalKey(snap.Strategy))
	return nil
}

func (s *CachedStore) UpsertDailyMetrics(ctx context.Context, date string, m model.StrategyMetrics) error {
	return s.primary.UpsertDailyMetrics(ctx, date, m)
}

// --- Reads (cache first) ---

func (s *CachedStore) ListTradesByStrategy(ctx context.Context, strategy string) ([]model.Position, error) {
	data, err := s.rdb.Get(ctx, tradesKey(strategy)).Bytes()
	if err == nil {
		var trades []model.Position
		if json.Unmarshal(data, &trades) == nil {
			return trades, nil
		}
	}

	trades, err := s.primary.ListTradesByStrategy(ctx, strategy)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(trades); err == nil {
		s.rdb.Set(ctx, tradesKey(strategy), data, s.ttl)
	}
	return trades, nil
}

func (s *CachedStore) ListCapitalHistory(ctx context.Context, strategy string) ([]model.CapitalSnapshot, error) {
	data, err := s.rdb.Get(ctx, capitalKey(strategy)).Bytes()
	if err == nil {
		var snaps []model.CapitalSnapshot
		if json.Unmarshal(data, &snaps) == nil {
			return snaps, nil
		}
	}

	snaps, err := s.primary.ListCapitalHistory(ctx, strategy)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(snaps); err == nil {
		s.rdb.Set(ctx, capitalKey(strategy), data, s.ttl)
	}
	return snaps, nil
}

func tradesKey(strategy string) string  { return fmt.Sprintf("trades:%s", strategy) }
func capitalKey(strategy string) string { return fmt.Sprintf("capital:%s", strategy) }
