package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ledger-core/config"
	httpHandler "ledger-core/internal/adapter/http/handler"
	"ledger-core/internal/adapter/rates"
	pgStorage "ledger-core/internal/adapter/storage/postgres"
	redisStorage "ledger-core/internal/adapter/storage/redis"
	"ledger-core/internal/core/domain"
	"ledger-core/internal/core/ports"
	"ledger-core/internal/scheduler"
	"ledger-core/internal/service"
	"ledger-core/pkg/logger"

	"github.com/shopspring/decimal"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("ledger-core", cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Ledger Core")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	if err := pgStorage.EnsureSchema(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize storage adapters
	eventStore := pgStorage.NewEventStore(pool)
	snapshotStore := pgStorage.NewSnapshotStore(pool)
	balanceReadModel := pgStorage.NewBalanceReadModel(pool)
	poolDirectory := pgStorage.NewPoolDirectory(pool)
	rateCache := redisStorage.NewRateCache(rdb)
	orderGuard := redisStorage.NewRoutedOrderGuard(rdb)
	spreadStore := redisStorage.NewSpreadStateStore(rdb)

	// Event bus and projections
	bus := service.NewInMemoryEventBus(log)
	service.NewBalanceProjector(balanceReadModel, eventStore, log).Register(bus)
	service.NewPoolProjector(poolDirectory, log).Register(bus)

	// Aggregate repositories
	snapshotEvery := cfg.Snapshots.EveryNEvents
	accounts := service.NewRepository(eventStore, snapshotStore, bus, domain.NewAccount, snapshotEvery, log)
	applications := service.NewRepository(eventStore, snapshotStore, bus, domain.NewLoanApplication, snapshotEvery, log)
	loans := service.NewRepository(eventStore, snapshotStore, bus, domain.NewLoan, snapshotEvery, log)
	pools := service.NewRepository(eventStore, snapshotStore, bus, domain.NewLiquidityPool, snapshotEvery, log)

	// Exchange-rate providers (config order = priority order)
	providerClient := &http.Client{Timeout: cfg.Rates.FetchTimeout}
	providers := make([]ports.RateProvider, 0, len(cfg.Rates.Providers))
	for _, pc := range cfg.Rates.Providers {
		providers = append(providers, rates.NewHTTPProvider(pc.Name, pc.URL, providerClient))
	}
	if len(providers) == 0 {
		log.Warn().Msg("No rate providers configured; only cached and identity rates will resolve")
	}

	rateSvc := service.NewRateRegistry(providers, rateCache, service.RateRegistryOptions{
		AnchorCurrency: cfg.Rates.AnchorCurrency,
		CacheTTL:       cfg.Rates.CacheTTL,
		MaxAge:         cfg.Rates.MaxAge,
		FetchTimeout:   cfg.Rates.FetchTimeout,
		Aggregation:    cfg.Rates.Aggregation,
	}, log)

	// Business services
	riskAssessor := service.NewThresholdRiskAssessor(cfg.Ledger.BlockOverMinor, log)
	ledgerSvc := service.NewLedgerService(accounts, eventStore, balanceReadModel, riskAssessor,
		cfg.Ledger.MaxRetries, cfg.Ledger.HighValueMinor, log)
	loanSvc := service.NewLoanService(applications, loans, log)
	poolSvc := service.NewPoolService(pools, log)

	orderRouter := service.NewRoutingSaga(poolDirectory, orderGuard, eventStore, bus, service.RoutingOptions{
		MaxPriceImpact:   cfg.Routing.MaxPriceImpact,
		MinPoolLiquidity: decimal.NewFromFloat(cfg.Routing.MinPoolLiquidity),
		MinSplitNotional: decimal.NewFromFloat(cfg.Routing.MinSplitNotional),
		MaxRoutes:        cfg.Routing.MaxRoutes,
		DecisionBudget:   cfg.Routing.DecisionBudget,
	}, log)

	spreadMgr := service.NewSpreadController(pools, poolDirectory, spreadStore, rateSvc, bus, service.SpreadOptions{
		MinSpreadBps:      cfg.Spread.MinSpreadBps,
		MaxSpreadBps:      cfg.Spread.MaxSpreadBps,
		DefaultSpreadBps:  cfg.Spread.DefaultSpreadBps,
		ModerateImbalance: cfg.Spread.ModerateImbalance,
		CriticalImbalance: cfg.Spread.CriticalImbalance,
	}, log)
	// After the pool projector: imbalance grading reads the directory.
	spreadMgr.Register(bus)

	// Background jobs
	sched := scheduler.New(log)
	if err := sched.AddJob(cfg.Rates.RefreshInterval, "refresh_stale_rates", rateSvc.RefreshStaleRates); err != nil {
		log.Fatal().Err(err).Msg("Failed to register rate refresh job")
	}
	sched.Start()

	// Health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		LedgerSvc:      ledgerSvc,
		LoanSvc:        loanSvc,
		PoolSvc:        poolSvc,
		RateSvc:        rateSvc,
		OrderRouter:    orderRouter,
		SpreadMgr:      spreadMgr,
		EventStore:     eventStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	<-sched.Stop().Done()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
