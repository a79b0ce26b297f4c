package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/openclaw/paper-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision;
// metadata round-trips as JSONB.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) InsertTrade(ctx context.Context, p model.Position) error {
	meta, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("store: encode metadata for %s: %w", p.ID, err)
	}

	var exitPrice, exitValue *string
	if p.ExitPrice != nil {
		v := p.ExitPrice.String()
		exitPrice = &v
	}
	if p.ExitValue != nil {
		v := p.ExitValue.String()
		exitValue = &v
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO trades (id, strategy, market_id, ticker, side, quantity,
		                     entry_price, entry_time, entry_cost,
		                     exit_price, exit_time, exit_value, status, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6,
		         $7::NUMERIC, $8, $9::NUMERIC,
		         $10::NUMERIC, $11, $12::NUMERIC, $13, $14)
		 ON CONFLICT (id) DO UPDATE SET
		         exit_price = EXCLUDED.exit_price,
		         exit_time  = EXCLUDED.exit_time,
		         exit_value = EXCLUDED.exit_value,
		         status     = EXCLUDED.status,
		         metadata   = EXCLUDED.metadata`,
		p.ID, p.Strategy, p.MarketID, p.Ticker, string(p.Side), p.Quantity,
		p.EntryPrice.String(), p.EntryTime, p.EntryCost.String(),
		exitPrice, p.ExitTime, exitValue, string(p.Status), meta,
	)
	return err
}

func (s *PostgresStore) ListTradesByStrategy(ctx context.Context, strategy string) ([]model.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, strategy, market_id, ticker, side, quantity,
		        entry_price::TEXT, entry_time, entry_cost::TEXT,
		        exit_price::TEXT, exit_time, exit_value::TEXT, status, metadata
		 FROM trades WHERE strategy = $1 ORDER BY entry_time`, strategy)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Position
	for rows.Next() {
		var p model.Position
		var side, status, entryPrice, entryCost string
		var exitPrice, exitValue *string
		var exitTime *time.Time
		var meta []byte

		if err := rows.Scan(&p.ID, &p.Strategy, &p.MarketID, &p.Ticker, &side, &p.Quantity,
			&entryPrice, &p.EntryTime, &entryCost,
			&exitPrice, &exitTime, &exitValue, &status, &meta); err != nil {
			return nil, err
		}

		p.Side = model.Side(side)
		p.Status = model.PositionStatus(status)
		p.EntryPrice, _ = decimal.NewFromString(entryPrice)
		p.EntryCost, _ = decimal.NewFromString(entryCost)
		if exitPrice != nil {
			d, _ := decimal.NewFromString(*exitPrice)
			p.ExitPrice = &d
		}
		if exitValue != nil {
			d, _ := decimal.NewFromString(*exitValue)
			p.ExitValue = &d
		}
		p.ExitTime = exitTime
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &p.Metadata); err != nil {
				return nil, fmt.Errorf("store: decode metadata for %s: %w", p.ID, err)
			}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) InsertCapitalSnapshot(ctx context.Context, snap model.CapitalSnapshot) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO capital_history (timestamp, strategy, capital)
		 VALUES ($1, $2, $3::NUMERIC)`,
		snap.Timestamp, snap.Strategy, snap.Capital.String(),
	)
	return err
}

func (s *PostgresStore) ListCapitalHistory(ctx context.Context, strategy string) ([]model.CapitalSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT timestamp, strategy, capital::TEXT
		 FROM capital_history WHERE strategy = $1 ORDER BY timestamp`, strategy)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CapitalSnapshot
	for rows.Next() {
		var snap model.CapitalSnapshot
		var capital string
		if err := rows.Scan(&snap.Timestamp, &snap.Strategy, &capital); err != nil {
			return nil, err
		}
		snap.Capital, _ = decimal.NewFromString(capital)
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertDailyMetrics(ctx context.Context, date string, m model.StrategyMetrics) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO daily_metrics (date, strategy, capital, pnl, trades, win_rate, sharpe_ratio)
		 VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC, $5, $6, $7)
		 ON CONFLICT (date, strategy) DO UPDATE SET
		         capital = EXCLUDED.capital,
		         pnl = EXCLUDED.pnl,
		         trades = EXCLUDED.trades,
		         win_rate = EXCLUDED.win_rate,
		         sharpe_ratio = EXCLUDED.sharpe_ratio`,
		date, m.Strategy, m.CurrentCapital.String(), m.TotalReturn.String(),
		m.TotalTrades, m.WinRate, m.SharpeRatio,
	)
	return err
}
