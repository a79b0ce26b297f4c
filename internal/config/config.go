// Package config loads engine configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration container.
type Config struct {
	Server      ServerConfig              `yaml:"server"`
	Risk        RiskConfig                `yaml:"risk"`
	Strategies  map[string]StrategyConfig `yaml:"strategies"`
	Allocator   AllocatorConfig           `yaml:"allocator"`
	Performance PerformanceConfig         `yaml:"performance"`
	Feed        FeedConfig                `yaml:"feed"`
	Log         LogConfig                 `yaml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port string `yaml:"port"`
}

// RiskConfig holds process-wide risk limits. All amounts are in dollars.
type RiskConfig struct {
	MaxTotalCapital        float64 `yaml:"max_total_capital"`
	MaxPositionSize        float64 `yaml:"max_position_size"`
	MaxDailyLoss           float64 `yaml:"max_daily_loss"`
	MaxConcurrentPositions int     `yaml:"max_concurrent_positions"`
	MaxExposurePct         float64 `yaml:"max_exposure_pct"` // 0–1
}

// StrategyConfig is one strategy block. A nil Enabled means enabled.
type StrategyConfig struct {
	Enabled        *bool              `yaml:"enabled"`
	InitialCapital float64            `yaml:"initial_capital"`
	Params         map[string]float64 `yaml:"params"`
}

// IsEnabled reports whether the strategy should be instantiated.
func (s StrategyConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// AllocatorConfig holds capital allocator settings.
type AllocatorConfig struct {
	RebalanceIntervalHours float64 `yaml:"rebalance_interval_hours"`
	PerformanceWeight      float64 `yaml:"performance_weight"`
	RiskWeight             float64 `yaml:"risk_weight"`
}

// RebalanceInterval returns the configured interval as a duration.
func (a AllocatorConfig) RebalanceInterval() time.Duration {
	return time.Duration(a.RebalanceIntervalHours * float64(time.Hour))
}

// PerformanceConfig holds metrics engine settings.
type PerformanceConfig struct {
	MinTradesForRanking int     `yaml:"min_trades_for_ranking"`
	TradesPerYear       float64 `yaml:"trades_per_year"`
	RiskFreeRate        float64 `yaml:"risk_free_rate"`
}

// FeedConfig configures the simulated market feed.
type FeedConfig struct {
	PollIntervalSeconds float64            `yaml:"poll_interval_seconds"`
	Seed                int64              `yaml:"seed"`
	Markets             []FeedMarketConfig `yaml:"markets"`
}

// PollInterval returns the polling cadence as a duration.
func (f FeedConfig) PollInterval() time.Duration {
	return time.Duration(f.PollIntervalSeconds * float64(time.Second))
}

// FeedMarketConfig is one simulated market.
type FeedMarketConfig struct {
	Ticker    string  `yaml:"ticker"`
	Liquidity float64 `yaml:"liquidity"`  // price-impact dampening, like LMSR b
	StartBias float64 `yaml:"start_bias"` // initial demand offset
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns the built-in configuration: $200 total capital across
// three strategies, matching the documented paper-trading limits.
func Default() Config {
	return Config{
		Server: ServerConfig{Port: "8080"},
		Risk: RiskConfig{
			MaxTotalCapital:        200,
			MaxPositionSize:        10,
			MaxDailyLoss:           20,
			MaxConcurrentPositions: 10,
			MaxExposurePct:         0.20,
		},
		Strategies: map[string]StrategyConfig{
			"mean_reversion": {
				InitialCapital: 66,
				Params: map[string]float64{
					"extreme_threshold":  0.95,
					"min_threshold":      0.05,
					"exit_target":        0.50,
					"base_position_size": 5,
					"max_position_size":  10,
				},
			},
			"momentum": {
				InitialCapital: 66,
				Params: map[string]float64{
					"short_ma":           5,
					"long_ma":            20,
					"momentum_threshold": 0.02,
					"position_size":      5,
				},
			},
			"market_making": {
				InitialCapital: 66,
				Params: map[string]float64{
					"min_spread":    0.05,
					"position_size": 5,
				},
			},
		},
		Allocator: AllocatorConfig{
			RebalanceIntervalHours: 24,
			PerformanceWeight:      0.7,
			RiskWeight:             0.3,
		},
		Performance: PerformanceConfig{
			MinTradesForRanking: 5,
			TradesPerYear:       2500,
			RiskFreeRate:        0.05,
		},
		Feed: FeedConfig{
			PollIntervalSeconds: 30,
			Seed:                1,
			Markets: []FeedMarketConfig{
				{Ticker: "KXRAIN-26SEP01-NYC", Liquidity: 40},
				{Ticker: "KXTEMP-26SEP01-B90", Liquidity: 60, StartBias: 10},
				{Ticker: "KXBTC-26SEP01-B120K", Liquidity: 25, StartBias: -8},
			},
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. A missing file is not an error — defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to defaults
		case err != nil:
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func (c *Config) validate() error {
	if c.Risk.MaxTotalCapital <= 0 {
		return fmt.Errorf("config: max_total_capital must be positive, got %v", c.Risk.MaxTotalCapital)
	}
	if c.Risk.MaxExposurePct <= 0 || c.Risk.MaxExposurePct > 1 {
		return fmt.Errorf("config: max_exposure_pct must be in (0, 1], got %v", c.Risk.MaxExposurePct)
	}
	if c.Risk.MaxConcurrentPositions <= 0 {
		return fmt.Errorf("config: max_concurrent_positions must be positive, got %d", c.Risk.MaxConcurrentPositions)
	}
	if c.Performance.TradesPerYear <= 0 {
		return fmt.Errorf("config: trades_per_year must be positive, got %v", c.Performance.TradesPerYear)
	}
	for name, s := range c.Strategies {
		if s.IsEnabled() && s.InitialCapital <= 0 {
			return fmt.Errorf("config: strategy %s needs positive initial_capital", name)
		}
	}
	return nil
}

// MaxTotalCapitalDec returns the total capital limit as a decimal.
func (r RiskConfig) MaxTotalCapitalDec() decimal.Decimal {
	return decimal.NewFromFloat(r.MaxTotalCapital)
}
