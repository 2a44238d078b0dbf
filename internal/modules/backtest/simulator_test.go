package backtest

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kevinwu901113/stock-pre-sub001/internal/domain"
)

func testConfig() Config {
	return Config{
		StartDate:           "2024-01-02",
		EndDate:             "2024-01-10",
		InitialCapital:      1_000_000,
		CommissionRate:      0.0003,
		SlippageRate:        0.0001,
		MaxPositionPerStock: 0.1,
		MaxStocksPerDay:     5,
		LotSize:             100,
		RiskFreeRate:        0.02,
		PeriodsPerYear:      252,
	}
}

func bar(date string, open, close float64) domain.PriceBar {
	return domain.PriceBar{Date: date, Open: open, High: close, Low: open, Close: close}
}

func newTestSimulator(t *testing.T, cfg Config, series map[string][]domain.PriceBar) *Simulator {
	t.Helper()
	sim := NewSimulator(cfg, zerolog.Nop())
	require.NoError(t, sim.LoadPrices(series))
	return sim
}

func TestLoadPricesNoTradingDays(t *testing.T) {
	cfg := testConfig()
	cfg.StartDate = "2030-01-01"
	cfg.EndDate = "2030-01-31"

	sim := NewSimulator(cfg, zerolog.Nop())
	err := sim.LoadPrices(map[string][]domain.PriceBar{
		"600000": {bar("2024-01-02", 10, 10)},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoTradingDays)
}

func TestRunBeforeLoadPrices(t *testing.T) {
	sim := NewSimulator(testConfig(), zerolog.Nop())
	_, err := sim.Run(nil, domain.SellAtOpen)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestNextTradingDay(t *testing.T) {
	sim := newTestSimulator(t, testConfig(), map[string][]domain.PriceBar{
		"600000": {
			bar("2024-01-02", 10, 10),
			bar("2024-01-03", 10, 10),
			bar("2024-01-05", 10, 10), // the 4th is a holiday
		},
	})

	next, ok := sim.NextTradingDay("2024-01-02")
	require.True(t, ok)
	assert.Equal(t, "2024-01-03", next)

	// Gaps are skipped, not interpolated.
	next, ok = sim.NextTradingDay("2024-01-03")
	require.True(t, ok)
	assert.Equal(t, "2024-01-05", next)

	// A date between trading days resolves to the next one.
	next, ok = sim.NextTradingDay("2024-01-04")
	require.True(t, ok)
	assert.Equal(t, "2024-01-05", next)

	_, ok = sim.NextTradingDay("2024-01-05")
	assert.False(t, ok)
}

func TestExecuteBuyLotRounding(t *testing.T) {
	// 100,000 budget at 10.001 affords 9,999.0 shares, rounded down to 9,900.
	series := map[string][]domain.PriceBar{
		"600000": {
			bar("2024-01-02", 9.9, 10.0),
			bar("2024-01-03", 10.2, 10.3),
		},
	}
	sim := newTestSimulator(t, testConfig(), series)

	result, err := sim.Run(map[string][]domain.Recommendation{
		"2024-01-02": {{Symbol: "600000", Score: 0.9}},
	}, domain.SellAtOpen)
	require.NoError(t, err)
	require.Len(t, result.Trades, 2)

	buy := result.Trades[0]
	assert.Equal(t, domain.ActionBuy, buy.Action)
	assert.Equal(t, "2024-01-02", buy.Date)
	assert.Equal(t, int64(9900), buy.Shares)
	assert.InDelta(t, 10.001, buy.Price, 1e-9)
	assert.InDelta(t, 99_009.9, buy.Cost, 1e-6)
	assert.InDelta(t, 29.70297, buy.Commission, 1e-5)
}

func TestSellSettlementProfit(t *testing.T) {
	series := map[string][]domain.PriceBar{
		"600000": {
			bar("2024-01-02", 9.9, 10.0),
			bar("2024-01-03", 10.2, 10.3),
		},
	}
	sim := newTestSimulator(t, testConfig(), series)

	result, err := sim.Run(map[string][]domain.Recommendation{
		"2024-01-02": {{Symbol: "600000", Score: 0.9}},
	}, domain.SellAtOpen)
	require.NoError(t, err)
	require.Len(t, result.Trades, 2)

	sell := result.Trades[1]
	assert.Equal(t, domain.ActionSell, sell.Action)
	assert.Equal(t, "2024-01-03", sell.Date)
	assert.Equal(t, int64(9900), sell.Shares)
	// Open 10.2 reduced by slippage.
	assert.InDelta(t, 10.19898, sell.Price, 1e-9)
	assert.InDelta(t, 100_939.611029, sell.NetRevenue, 1e-5)
	assert.InDelta(t, 1_900.008059, sell.Profit, 1e-5)
	assert.InDelta(t, 0.0191843, sell.ProfitRate, 1e-6)

	// All proceeds return to cash; no open positions remain.
	assert.Empty(t, sim.Positions())
	assert.InDelta(t, 1_001_900.008059, sim.Cash(), 1e-5)
	assert.InDelta(t, 1_001_900.008059, result.Stats.FinalValue, 1e-5)
	assert.Equal(t, 1.0, result.Stats.WinRate)
	assert.Equal(t, 2, result.Stats.TradeCount)
	assert.Equal(t, 1, result.Stats.SellCount)
}

func TestMarkToMarketUsesClose(t *testing.T) {
	series := map[string][]domain.PriceBar{
		"600000": {
			bar("2024-01-02", 9.9, 10.0),
			bar("2024-01-03", 10.2, 10.3),
		},
	}
	sim := newTestSimulator(t, testConfig(), series)

	result, err := sim.Run(map[string][]domain.Recommendation{
		"2024-01-02": {{Symbol: "600000", Score: 0.9}},
	}, domain.SellAtOpen)
	require.NoError(t, err)

	// Seed valuation plus one per trading day.
	require.Len(t, result.Valuations, 3)
	assert.Equal(t, "2024-01-01", result.Valuations[0].Date)
	assert.InDelta(t, 1_000_000, result.Valuations[0].TotalValue, 1e-9)

	// Day one: 9,900 shares at the 10.0 close plus remaining cash.
	day1 := result.Valuations[1]
	assert.InDelta(t, 99_000, day1.PositionValue, 1e-6)
	assert.InDelta(t, 900_960.39703, day1.Cash, 1e-5)
	assert.InDelta(t, 999_960.39703, day1.TotalValue, 1e-5)

	// One return per trading day, measured against the prior valuation.
	require.Len(t, result.Returns, 2)
	assert.InDelta(t, (999_960.39703-1_000_000)/1_000_000, result.Returns[0].Return, 1e-9)
}

func TestCapitalConservationAfterBuys(t *testing.T) {
	cfg := testConfig()
	series := map[string][]domain.PriceBar{
		"600000": {bar("2024-01-02", 9.9, 10.0)},
		"600001": {bar("2024-01-02", 20.1, 20.0)},
		"600002": {bar("2024-01-02", 33.0, 33.3)},
	}
	sim := newTestSimulator(t, cfg, series)

	sim.cash = cfg.InitialCapital
	sim.ExecuteBuy("2024-01-02", []domain.Recommendation{
		{Symbol: "600000", Score: 0.9},
		{Symbol: "600001", Score: 0.8},
		{Symbol: "600002", Score: 0.7},
	})

	invested := 0.0
	for _, pos := range sim.Positions() {
		invested += pos.CostBasis
	}
	assert.InDelta(t, cfg.InitialCapital, sim.Cash()+invested, 1e-6)
}

func TestSequentialCapitalDeduction(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPositionPerStock = 1.0 // cap never binds
	cfg.CommissionRate = 0
	cfg.SlippageRate = 0

	series := map[string][]domain.PriceBar{
		"600000": {bar("2024-01-02", 100, 100)},
		"600001": {bar("2024-01-02", 100, 100)},
	}
	sim := newTestSimulator(t, cfg, series)

	sim.cash = cfg.InitialCapital
	sim.ExecuteBuy("2024-01-02", []domain.Recommendation{
		{Symbol: "600000", Score: 0.9},
		{Symbol: "600001", Score: 0.8},
	})

	positions := sim.Positions()
	require.Len(t, positions, 2)

	// First candidate sees 1,000,000/2; the second sees the 500,000
	// remainder divided by the same candidate count.
	assert.Equal(t, int64(5000), positions[0].Shares)
	assert.Equal(t, int64(2500), positions[1].Shares)
	assert.InDelta(t, 250_000, sim.Cash(), 1e-6)
}

func TestCapitalConstraintRecomputesShares(t *testing.T) {
	cfg := testConfig()
	cfg.InitialCapital = 10_000
	cfg.CommissionRate = 0.01
	cfg.SlippageRate = 0
	cfg.MaxPositionPerStock = 1.0

	series := map[string][]domain.PriceBar{
		"600000": {bar("2024-01-02", 1.0, 1.0)},
	}
	sim := newTestSimulator(t, cfg, series)

	sim.cash = cfg.InitialCapital
	sim.ExecuteBuy("2024-01-02", []domain.Recommendation{{Symbol: "600000", Score: 0.9}})

	// A naive 10,000-share buy would cost 10,100 with commission; the
	// affordable size is 9,900 shares for 9,999 all-in.
	positions := sim.Positions()
	require.Len(t, positions, 1)
	assert.Equal(t, int64(9900), positions[0].Shares)
	assert.InDelta(t, 9_999, positions[0].CostBasis, 1e-9)
	assert.InDelta(t, 1.0, sim.Cash(), 1e-9)
}

func TestUnaffordableCandidateSkipped(t *testing.T) {
	cfg := testConfig()
	cfg.InitialCapital = 500 // less than one lot at any price here

	series := map[string][]domain.PriceBar{
		"600000": {bar("2024-01-02", 10, 10)},
	}
	sim := newTestSimulator(t, cfg, series)

	result, err := sim.Run(map[string][]domain.Recommendation{
		"2024-01-02": {{Symbol: "600000", Score: 0.9}},
	}, domain.SellAtOpen)
	require.NoError(t, err)

	assert.Empty(t, result.Trades)
	assert.InDelta(t, 500, sim.Cash(), 1e-9)
}

func TestMissingCandidateDataSkipped(t *testing.T) {
	series := map[string][]domain.PriceBar{
		"600000": {
			bar("2024-01-02", 9.9, 10.0),
			bar("2024-01-03", 10.2, 10.3),
		},
	}
	sim := newTestSimulator(t, testConfig(), series)

	result, err := sim.Run(map[string][]domain.Recommendation{
		"2024-01-02": {
			{Symbol: "999999", Score: 0.95}, // no data at all
			{Symbol: "600000", Score: 0.90},
		},
	}, domain.SellAtOpen)
	require.NoError(t, err)

	// The gap costs one buy but never aborts the run.
	require.Len(t, result.Trades, 2)
	assert.Equal(t, "600000", result.Trades[0].Symbol)
	assert.Equal(t, "600000", result.Trades[1].Symbol)
}

func TestTruncationPrecedesAvailabilityCheck(t *testing.T) {
	cfg := testConfig()
	cfg.MaxStocksPerDay = 1

	series := map[string][]domain.PriceBar{
		"600000": {bar("2024-01-02", 9.9, 10.0)},
	}
	sim := newTestSimulator(t, cfg, series)

	// The top-ranked candidate has no data. Because ranking truncates
	// before availability is checked, the day executes zero buys rather
	// than falling through to the next candidate.
	result, err := sim.Run(map[string][]domain.Recommendation{
		"2024-01-02": {
			{Symbol: "999999", Score: 0.95},
			{Symbol: "600000", Score: 0.90},
		},
	}, domain.SellAtOpen)
	require.NoError(t, err)

	assert.Empty(t, result.Trades)
}

func TestSellProceedsFundSameDayBuys(t *testing.T) {
	cfg := testConfig()
	cfg.InitialCapital = 10_000
	cfg.CommissionRate = 0
	cfg.SlippageRate = 0
	cfg.MaxPositionPerStock = 1.0

	series := map[string][]domain.PriceBar{
		"600000": {
			bar("2024-01-02", 100, 100),
			bar("2024-01-03", 100, 100),
		},
		"600001": {
			bar("2024-01-02", 100, 100),
			bar("2024-01-03", 100, 100),
		},
	}
	sim := newTestSimulator(t, cfg, series)

	result, err := sim.Run(map[string][]domain.Recommendation{
		"2024-01-02": {{Symbol: "600000", Score: 0.9}},
		"2024-01-03": {{Symbol: "600001", Score: 0.9}},
	}, domain.SellAtOpen)
	require.NoError(t, err)

	// Day two: the 600000 liquidation funds the 600001 purchase in full.
	require.Len(t, result.Trades, 3)
	assert.Equal(t, domain.ActionBuy, result.Trades[0].Action)
	assert.Equal(t, "600000", result.Trades[0].Symbol)
	assert.Equal(t, domain.ActionSell, result.Trades[1].Action)
	assert.Equal(t, "600000", result.Trades[1].Symbol)
	assert.Equal(t, domain.ActionBuy, result.Trades[2].Action)
	assert.Equal(t, "600001", result.Trades[2].Symbol)
	assert.Equal(t, int64(100), result.Trades[2].Shares)

	positions := sim.Positions()
	require.Len(t, positions, 1)
	assert.Equal(t, "600001", positions[0].Symbol)
}

func TestMissingSettlementBarHoldsPosition(t *testing.T) {
	series := map[string][]domain.PriceBar{
		"600000": {
			bar("2024-01-02", 9.9, 10.0),
			// No bars on the 3rd or 4th: the position cannot settle.
		},
		"600001": {
			bar("2024-01-02", 5, 5),
			bar("2024-01-03", 5, 5),
			bar("2024-01-04", 5, 5),
		},
	}
	sim := newTestSimulator(t, testConfig(), series)

	result, err := sim.Run(map[string][]domain.Recommendation{
		"2024-01-02": {{Symbol: "600000", Score: 0.9}},
	}, domain.SellAtOpen)
	require.NoError(t, err)

	// Only the buy executed; the position is held to the end of the run.
	require.Len(t, result.Trades, 1)
	assert.Equal(t, domain.ActionBuy, result.Trades[0].Action)

	positions := sim.Positions()
	require.Len(t, positions, 1)
	assert.Equal(t, "600000", positions[0].Symbol)

	// With no close available the held position is excluded from the
	// valuation on those days.
	day2 := result.Valuations[2]
	assert.Equal(t, "2024-01-03", day2.Date)
	assert.InDelta(t, 0, day2.PositionValue, 1e-9)
}

func TestVWAPSellPrice(t *testing.T) {
	volume := int64(10_000)
	amount := 103_000.0

	cfg := testConfig()
	cfg.SlippageRate = 0

	t.Run("uses amount over volume when present", func(t *testing.T) {
		series := map[string][]domain.PriceBar{
			"600000": {
				bar("2024-01-02", 9.9, 10.0),
				{Date: "2024-01-03", Open: 10.2, Close: 10.4, Volume: &volume, Amount: &amount},
			},
		}
		sim := newTestSimulator(t, cfg, series)

		result, err := sim.Run(map[string][]domain.Recommendation{
			"2024-01-02": {{Symbol: "600000", Score: 0.9}},
		}, domain.SellAtVWAP)
		require.NoError(t, err)

		require.Len(t, result.Trades, 2)
		assert.InDelta(t, 10.3, result.Trades[1].Price, 1e-9)
	})

	t.Run("falls back to open close average", func(t *testing.T) {
		series := map[string][]domain.PriceBar{
			"600000": {
				bar("2024-01-02", 9.9, 10.0),
				bar("2024-01-03", 10.2, 10.4),
			},
		}
		sim := newTestSimulator(t, cfg, series)

		result, err := sim.Run(map[string][]domain.Recommendation{
			"2024-01-02": {{Symbol: "600000", Score: 0.9}},
		}, domain.SellAtVWAP)
		require.NoError(t, err)

		require.Len(t, result.Trades, 2)
		assert.InDelta(t, 10.3, result.Trades[1].Price, 1e-9)
	})
}

func TestStatsWithoutTrades(t *testing.T) {
	series := map[string][]domain.PriceBar{
		"600000": {
			bar("2024-01-02", 10, 10),
			bar("2024-01-03", 10, 10),
		},
	}
	sim := newTestSimulator(t, testConfig(), series)

	result, err := sim.Run(nil, domain.SellAtOpen)
	require.NoError(t, err)

	assert.Empty(t, result.Trades)
	assert.Equal(t, 0.0, result.Stats.TotalReturn)
	assert.Equal(t, 0.0, result.Stats.WinRate)
	assert.Equal(t, 0.0, result.Stats.AvgProfitRate)
	assert.Equal(t, 0.0, result.Stats.SharpeRatio)
	assert.Equal(t, 0.0, result.Stats.MaxDrawdown)
	assert.InDelta(t, 1_000_000, result.Stats.FinalValue, 1e-9)
}

func TestRunIsRepeatable(t *testing.T) {
	series := map[string][]domain.PriceBar{
		"600000": {
			bar("2024-01-02", 9.9, 10.0),
			bar("2024-01-03", 10.2, 10.3),
			bar("2024-01-04", 10.1, 10.0),
		},
	}
	recs := map[string][]domain.Recommendation{
		"2024-01-02": {{Symbol: "600000", Score: 0.9}},
		"2024-01-03": {{Symbol: "600000", Score: 0.8}},
	}

	sim := newTestSimulator(t, testConfig(), series)

	first, err := sim.Run(recs, domain.SellAtOpen)
	require.NoError(t, err)
	second, err := sim.Run(recs, domain.SellAtOpen)
	require.NoError(t, err)

	// Run resets all state, so replays are bit-for-bit identical.
	assert.Equal(t, first.Trades, second.Trades)
	assert.Equal(t, first.Valuations, second.Valuations)
	assert.Equal(t, first.Stats, second.Stats)
}
