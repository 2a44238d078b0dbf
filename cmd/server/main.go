// Command server runs the backtest engine: HTTP API, nightly scoring and
// evaluation job, and the SQLite-backed stores behind them.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Kevinwu901113/stock-pre-sub001/internal/config"
	"github.com/Kevinwu901113/stock-pre-sub001/internal/database"
	backtesthandlers "github.com/Kevinwu901113/stock-pre-sub001/internal/modules/backtest/handlers"
	"github.com/Kevinwu901113/stock-pre-sub001/internal/modules/historical"
	historicalhandlers "github.com/Kevinwu901113/stock-pre-sub001/internal/modules/historical/handlers"
	"github.com/Kevinwu901113/stock-pre-sub001/internal/modules/ledger"
	"github.com/Kevinwu901113/stock-pre-sub001/internal/modules/recommendations"
	recommendationhandlers "github.com/Kevinwu901113/stock-pre-sub001/internal/modules/recommendations/handlers"
	"github.com/Kevinwu901113/stock-pre-sub001/internal/modules/snapshots"
	"github.com/Kevinwu901113/stock-pre-sub001/internal/scheduler"
	"github.com/Kevinwu901113/stock-pre-sub001/internal/scheduler/jobs"
	"github.com/Kevinwu901113/stock-pre-sub001/internal/server"
	"github.com/Kevinwu901113/stock-pre-sub001/internal/services"
	"github.com/Kevinwu901113/stock-pre-sub001/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		println("failed to load configuration:", err.Error())
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting backtest engine")

	// History holds price bars and recommendations, ledger holds the
	// authoritative run records, cache holds rebuildable snapshots.
	historyDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "history.db"),
		Profile: database.ProfileStandard,
		Name:    "history",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open history database")
	}
	defer historyDB.Close()

	ledgerDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "ledger.db"),
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger database")
	}
	defer ledgerDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	priceStore, err := historical.NewPriceStore(historyDB.Conn(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize price store")
	}

	recRepo, err := recommendations.NewRepository(historyDB.Conn(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize recommendations repository")
	}

	runRepo, err := ledger.NewRunRepository(ledgerDB.Conn(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize run repository")
	}

	snapshotRepo, err := snapshots.NewSnapshotRepository(cacheDB.Conn(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize snapshot repository")
	}

	scorer := recommendations.NewScorer(log)
	backtestService := services.NewBacktestService(priceStore, recRepo, scorer, runRepo, snapshotRepo, cfg.Backtest, log)
	recommendationService := services.NewRecommendationService(priceStore, recRepo, scorer, log)

	sched := scheduler.New(log)
	if cfg.BacktestSchedule != "" {
		dailyJob := jobs.NewDailyBacktestJob(recommendationService, backtestService, cfg.BenchmarkSymbol, log)
		if err := sched.AddJob(cfg.BacktestSchedule, dailyJob); err != nil {
			log.Fatal().Err(err).Msg("Failed to register daily backtest job")
		}
		sched.Start()
		defer sched.Stop()
	} else {
		log.Info().Msg("Scheduler disabled, no backtest schedule configured")
	}

	srv := server.New(server.Config{
		Log:                   log,
		Config:                cfg,
		HistoryDB:             historyDB,
		LedgerDB:              ledgerDB,
		CacheDB:               cacheDB,
		Scheduler:             sched,
		BacktestHandler:       backtesthandlers.NewHandler(backtestService, log),
		HistoricalHandler:     historicalhandlers.NewHandler(priceStore, log),
		RecommendationHandler: recommendationhandlers.NewHandler(recommendationService, log),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}

	log.Info().Msg("Backtest engine stopped")
}
