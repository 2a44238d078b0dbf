// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	// Schedule for the daily scoring + backtest job (cron expression).
	// Empty disables the scheduler.
	BacktestSchedule string

	// BenchmarkSymbol is the index series used for benchmark-relative
	// metrics. Empty omits those metrics.
	BenchmarkSymbol string

	Backtest BacktestConfig
}

// BacktestConfig holds the default simulation parameters. Each API request
// may override individual fields; these are the values the daily job runs with.
type BacktestConfig struct {
	InitialCapital      float64
	CommissionRate      float64
	SlippageRate        float64
	MaxPositionPerStock float64 // fraction of initial capital per symbol
	MaxStocksPerDay     int     // cap on new positions opened per day
	LotSize             int     // minimum tradable share increment
	RiskFreeRate        float64 // annual, as decimal
	PeriodsPerYear      int     // 252 for daily data
	SellType            string  // "open" or "vwap"
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("BACKTEST_DATA_DIR", "./data")

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:          absDataDir,
		Port:             getEnvAsInt("PORT", 8002),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		BacktestSchedule: getEnv("BACKTEST_SCHEDULE", "0 0 18 * * MON-FRI"),
		BenchmarkSymbol:  getEnv("BACKTEST_BENCHMARK", ""),
		Backtest: BacktestConfig{
			InitialCapital:      getEnvAsFloat("BACKTEST_INITIAL_CAPITAL", 1_000_000),
			CommissionRate:      getEnvAsFloat("BACKTEST_COMMISSION_RATE", 0.0003),
			SlippageRate:        getEnvAsFloat("BACKTEST_SLIPPAGE_RATE", 0.0001),
			MaxPositionPerStock: getEnvAsFloat("BACKTEST_MAX_POSITION_PER_STOCK", 0.1),
			MaxStocksPerDay:     getEnvAsInt("BACKTEST_MAX_STOCKS_PER_DAY", 5),
			LotSize:             getEnvAsInt("BACKTEST_LOT_SIZE", 100),
			RiskFreeRate:        getEnvAsFloat("BACKTEST_RISK_FREE_RATE", 0.02),
			PeriodsPerYear:      getEnvAsInt("BACKTEST_PERIODS_PER_YEAR", 252),
			SellType:            getEnv("BACKTEST_SELL_TYPE", "open"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present and consistent
func (c *Config) Validate() error {
	if c.Backtest.InitialCapital <= 0 {
		return fmt.Errorf("initial capital must be positive, got %f", c.Backtest.InitialCapital)
	}
	if c.Backtest.LotSize <= 0 {
		return fmt.Errorf("lot size must be positive, got %d", c.Backtest.LotSize)
	}
	if c.Backtest.SellType != "open" && c.Backtest.SellType != "vwap" {
		return fmt.Errorf("sell type must be \"open\" or \"vwap\", got %q", c.Backtest.SellType)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
