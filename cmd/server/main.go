package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/openclaw/paper-engine/internal/allocator"
	"github.com/openclaw/paper-engine/internal/api"
	"github.com/openclaw/paper-engine/internal/config"
	"github.com/openclaw/paper-engine/internal/feed"
	"github.com/openclaw/paper-engine/internal/ledger"
	"github.com/openclaw/paper-engine/internal/metrics"
	"github.com/openclaw/paper-engine/internal/orchestrator"
	"github.com/openclaw/paper-engine/internal/perf"
	"github.com/openclaw/paper-engine/internal/store"
	"github.com/openclaw/paper-engine/internal/strategy"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Ledger and strategies ---
	ldg := ledger.New(ledger.RiskLimits{
		MaxTotalCapital:        decimal.NewFromFloat(cfg.Risk.MaxTotalCapital),
		MaxPositionSize:        decimal.NewFromFloat(cfg.Risk.MaxPositionSize),
		MaxDailyLoss:           decimal.NewFromFloat(cfg.Risk.MaxDailyLoss),
		MaxConcurrentPositions: cfg.Risk.MaxConcurrentPositions,
		MaxExposurePct:         decimal.NewFromFloat(cfg.Risk.MaxExposurePct),
	})

	var strategies []strategy.Strategy
	for name, sc := range cfg.Strategies {
		if !sc.IsEnabled() {
			continue
		}
		s, err := strategy.New(name, sc.Params)
		if err != nil {
			slog.Error("strategy init failed", "name", name, "err", err)
			os.Exit(1)
		}
		strategies = append(strategies, s)
		ldg.InitPortfolio(name, decimal.NewFromFloat(sc.InitialCapital))
		slog.Info("strategy initialized", "name", name, "capital", sc.InitialCapital)
	}
	if len(strategies) == 0 {
		slog.Error("no strategies enabled")
		os.Exit(1)
	}

	// --- Performance tracker and allocator ---
	tracker := perf.NewTracker(st, perf.Params{
		TradesPerYear: cfg.Performance.TradesPerYear,
		RiskFreeRate:  cfg.Performance.RiskFreeRate,
	}, cfg.Performance.MinTradesForRanking)

	// Reload persisted capital series so drawdown spans restarts.
	names := make([]string, 0, len(strategies))
	for _, s := range strategies {
		names = append(names, s.Name())
	}
	if err := tracker.LoadCapitalHistory(context.Background(), names); err != nil {
		slog.Error("capital history load failed", "err", err)
		os.Exit(1)
	}

	alloc := allocator.New(allocator.Config{
		RebalanceInterval:   cfg.Allocator.RebalanceInterval(),
		PerformanceWeight:   cfg.Allocator.PerformanceWeight,
		RiskWeight:          cfg.Allocator.RiskWeight,
		MinTradesForRanking: cfg.Performance.MinTradesForRanking,
	}, tracker, ldg, cfg.Risk.MaxTotalCapitalDec())

	// --- Market feed ---
	simMarkets := make([]feed.SimMarket, 0, len(cfg.Feed.Markets))
	for _, m := range cfg.Feed.Markets {
		simMarkets = append(simMarkets, feed.SimMarket{
			Ticker:    m.Ticker,
			Liquidity: m.Liquidity,
			StartBias: m.StartBias,
		})
	}
	sim, err := feed.NewSimulator(cfg.Feed.Seed, simMarkets)
	if err != nil {
		slog.Error("feed init failed", "err", err)
		os.Exit(1)
	}

	// The loop context also stops the WebSocket hub on shutdown.
	loopCtx, stopLoop := context.WithCancel(context.Background())

	// --- WebSocket hub ---
	hub := api.NewEventHub()
	go hub.Run(loopCtx)

	// --- Trading loop ---
	orch := orchestrator.New(sim, ldg, tracker, alloc, strategies, hub, cfg.Feed.PollInterval())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		orch.Run(loopCtx)
	}()

	// --- HTTP router ---
	svc := api.NewService(ldg, tracker, alloc, hub)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"paper-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", svc.Routes)

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("paper-engine listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down paper-engine...")

	// Stop the trading loop first so final metrics are persisted.
	stopLoop()
	select {
	case <-loopDone:
	case <-time.After(10 * time.Second):
		slog.Warn("trading loop did not stop in time")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("paper-engine stopped")
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
