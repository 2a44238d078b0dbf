package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BACKTEST_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8002, cfg.Port)
	assert.False(t, cfg.DevMode)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "0 0 18 * * MON-FRI", cfg.BacktestSchedule)
	assert.Equal(t, "", cfg.BenchmarkSymbol)

	assert.Equal(t, 1_000_000.0, cfg.Backtest.InitialCapital)
	assert.Equal(t, 0.0003, cfg.Backtest.CommissionRate)
	assert.Equal(t, 0.0001, cfg.Backtest.SlippageRate)
	assert.Equal(t, 0.1, cfg.Backtest.MaxPositionPerStock)
	assert.Equal(t, 5, cfg.Backtest.MaxStocksPerDay)
	assert.Equal(t, 100, cfg.Backtest.LotSize)
	assert.Equal(t, 252, cfg.Backtest.PeriodsPerYear)
	assert.Equal(t, "open", cfg.Backtest.SellType)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BACKTEST_DATA_DIR", t.TempDir())
	t.Setenv("PORT", "9000")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("BACKTEST_INITIAL_CAPITAL", "500000")
	t.Setenv("BACKTEST_SELL_TYPE", "vwap")
	t.Setenv("BACKTEST_BENCHMARK", "000300")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, 500_000.0, cfg.Backtest.InitialCapital)
	assert.Equal(t, "vwap", cfg.Backtest.SellType)
	assert.Equal(t, "000300", cfg.BenchmarkSymbol)
}

func TestLoadMalformedEnvFallsBack(t *testing.T) {
	t.Setenv("BACKTEST_DATA_DIR", t.TempDir())
	t.Setenv("PORT", "not-a-number")
	t.Setenv("BACKTEST_COMMISSION_RATE", "abc")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8002, cfg.Port)
	assert.Equal(t, 0.0003, cfg.Backtest.CommissionRate)
}

func TestValidate(t *testing.T) {
	valid := Config{
		Backtest: BacktestConfig{InitialCapital: 1, LotSize: 100, SellType: "open"},
	}
	assert.NoError(t, valid.Validate())

	t.Run("rejects non-positive capital", func(t *testing.T) {
		cfg := valid
		cfg.Backtest.InitialCapital = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects non-positive lot size", func(t *testing.T) {
		cfg := valid
		cfg.Backtest.LotSize = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects unknown sell type", func(t *testing.T) {
		cfg := valid
		cfg.Backtest.SellType = "close"
		assert.Error(t, cfg.Validate())
	})
}
