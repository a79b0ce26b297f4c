// Package store defines trade-history persistence for the paper trading
// engine. Implementations include PostgreSQL (source of truth), Redis
// (read-through cache), and in-memory (for testing and standalone runs).
package store

import (
	"context"

	"github.com/openclaw/paper-engine/internal/model"
)

// Store persists closed trades, capital snapshots, and daily metric
// rollups. A Position must round-trip losslessly through InsertTrade /
// ListTradesByStrategy.
type Store interface {
	// InsertTrade appends a closed or expired position. Re-inserting the
	// same id replaces the record (positions are immutable after close,
	// so a replace is always a no-op in practice).
	InsertTrade(ctx context.Context, pos model.Position) error

	// ListTradesByStrategy returns a strategy's recorded trades in
	// insertion order.
	ListTradesByStrategy(ctx context.Context, strategy string) ([]model.Position, error)

	// InsertCapitalSnapshot appends a capital time-series point.
	InsertCapitalSnapshot(ctx context.Context, snap model.CapitalSnapshot) error

	// ListCapitalHistory returns a strategy's capital snapshots in time
	// order.
	ListCapitalHistory(ctx context.Context, strategy string) ([]model.CapitalSnapshot, error)

	// UpsertDailyMetrics stores one strategy's metric rollup for a date
	// (YYYY-MM-DD), replacing any previous rollup for that date.
	UpsertDailyMetrics(ctx context.Context, date string, m model.StrategyMetrics) error
}
