package services

import (
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/Kevinwu901113/stock-pre-sub001/internal/config"
	"github.com/Kevinwu901113/stock-pre-sub001/internal/domain"
	"github.com/Kevinwu901113/stock-pre-sub001/internal/modules/backtest"
	"github.com/Kevinwu901113/stock-pre-sub001/internal/modules/historical"
	"github.com/Kevinwu901113/stock-pre-sub001/internal/modules/ledger"
	"github.com/Kevinwu901113/stock-pre-sub001/internal/modules/recommendations"
	"github.com/Kevinwu901113/stock-pre-sub001/internal/modules/snapshots"
)

func testDefaults() config.BacktestConfig {
	return config.BacktestConfig{
		InitialCapital:      1_000_000,
		CommissionRate:      0.0003,
		SlippageRate:        0.0001,
		MaxPositionPerStock: 0.1,
		MaxStocksPerDay:     5,
		LotSize:             100,
		RiskFreeRate:        0.02,
		PeriodsPerYear:      252,
		SellType:            "open",
	}
}

func newMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestService(t *testing.T) (*BacktestService, *historical.PriceStore, *recommendations.Repository) {
	t.Helper()
	log := zerolog.Nop()

	prices, err := historical.NewPriceStore(newMemoryDB(t), log)
	require.NoError(t, err)
	recRepo, err := recommendations.NewRepository(newMemoryDB(t), log)
	require.NoError(t, err)
	runRepo, err := ledger.NewRunRepository(newMemoryDB(t), log)
	require.NoError(t, err)
	snapshotRepo, err := snapshots.NewSnapshotRepository(newMemoryDB(t), log)
	require.NoError(t, err)

	service := NewBacktestService(prices, recRepo, recommendations.NewScorer(log), runRepo, snapshotRepo, testDefaults(), log)
	return service, prices, recRepo
}

func seedPrices(t *testing.T, prices *historical.PriceStore) {
	t.Helper()
	require.NoError(t, prices.UpsertBars("600000", []domain.PriceBar{
		{Date: "2024-01-02", Open: 9.9, High: 10.1, Low: 9.8, Close: 10.0},
		{Date: "2024-01-03", Open: 10.2, High: 10.5, Low: 10.1, Close: 10.3},
		{Date: "2024-01-04", Open: 10.1, High: 10.2, Low: 9.9, Close: 10.0},
	}))
	require.NoError(t, prices.UpsertBars("000300", []domain.PriceBar{
		{Date: "2024-01-02", Open: 3500, High: 3530, Low: 3490, Close: 3520},
		{Date: "2024-01-03", Open: 3520, High: 3560, Low: 3510, Close: 3540},
		{Date: "2024-01-04", Open: 3540, High: 3550, Low: 3500, Close: 3510},
	}))
}

func TestServiceRunPersistsAndSnapshots(t *testing.T) {
	service, prices, recRepo := newTestService(t)
	seedPrices(t, prices)
	require.NoError(t, recRepo.SaveForDate("2024-01-02", []domain.Recommendation{
		{Symbol: "600000", Score: 0.9},
	}))

	runID, bundle, err := service.Run(RunRequest{
		StartDate: "2024-01-02",
		EndDate:   "2024-01-04",
		Benchmark: "000300",
	})
	require.NoError(t, err)
	require.NotEmpty(t, runID)
	require.NotNil(t, bundle)

	// One buy and one T+1 sell.
	assert.Equal(t, 2, bundle.Result.Stats.TradeCount)
	assert.Equal(t, 1, bundle.Result.Stats.SellCount)
	require.NotNil(t, bundle.Metrics.BenchmarkReturn)

	// The run is listed and reloadable.
	runs, err := service.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].ID)

	reloaded, err := service.GetBundle(runID)
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	assert.Equal(t, bundle.Result.Stats, reloaded.Result.Stats)
	assert.Len(t, reloaded.Result.Trades, 2)
}

func TestServiceRunBenchmarkNeverTrades(t *testing.T) {
	service, prices, recRepo := newTestService(t)
	seedPrices(t, prices)

	// The benchmark itself is recommended; it must be excluded from trading.
	require.NoError(t, recRepo.SaveForDate("2024-01-02", []domain.Recommendation{
		{Symbol: "000300", Score: 0.9},
	}))

	_, bundle, err := service.Run(RunRequest{
		StartDate: "2024-01-02",
		EndDate:   "2024-01-04",
		Benchmark: "000300",
	})
	require.NoError(t, err)
	assert.Empty(t, bundle.Result.Trades)
}

func TestServiceRunMalformedRange(t *testing.T) {
	service, _, _ := newTestService(t)

	_, _, err := service.Run(RunRequest{StartDate: "2024-02-01", EndDate: "2024-01-01"})
	assert.Error(t, err)

	_, _, err = service.Run(RunRequest{})
	assert.Error(t, err)
}

func TestServiceRunNoTradingDays(t *testing.T) {
	service, _, _ := newTestService(t)

	// No price rows at all in the range.
	_, _, err := service.Run(RunRequest{StartDate: "2030-01-01", EndDate: "2030-01-31"})
	require.Error(t, err)
	assert.ErrorIs(t, err, backtest.ErrNoTradingDays)
}

func TestServiceRunOverrides(t *testing.T) {
	service, prices, recRepo := newTestService(t)
	seedPrices(t, prices)
	require.NoError(t, recRepo.SaveForDate("2024-01-02", []domain.Recommendation{
		{Symbol: "600000", Score: 0.9},
	}))

	_, bundle, err := service.Run(RunRequest{
		StartDate:      "2024-01-02",
		EndDate:        "2024-01-04",
		InitialCapital: 50_000,
	})
	require.NoError(t, err)
	assert.Equal(t, 50_000.0, bundle.Result.Config.InitialCapital)
}

func TestServiceGetBundleUnknownRun(t *testing.T) {
	service, _, _ := newTestService(t)

	bundle, err := service.GetBundle("missing")
	require.NoError(t, err)
	assert.Nil(t, bundle)

	report, err := service.Report("missing")
	require.NoError(t, err)
	assert.Empty(t, report)
}

func TestServiceReport(t *testing.T) {
	service, prices, recRepo := newTestService(t)
	seedPrices(t, prices)
	require.NoError(t, recRepo.SaveForDate("2024-01-02", []domain.Recommendation{
		{Symbol: "600000", Score: 0.9},
	}))

	runID, _, err := service.Run(RunRequest{StartDate: "2024-01-02", EndDate: "2024-01-04"})
	require.NoError(t, err)

	report, err := service.Report(runID)
	require.NoError(t, err)
	assert.Contains(t, report, "# Backtest Report")
	assert.Contains(t, report, "Period: 2024-01-02 to 2024-01-04")
}
