// Package backtest contains the simulation and evaluation engine. The
// Simulator replays historical prices against daily buy recommendations
// under T+1 settlement; the evaluator derives risk-adjusted statistics
// from the finished run.
package backtest

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Kevinwu901113/stock-pre-sub001/internal/domain"
	"github.com/Kevinwu901113/stock-pre-sub001/internal/modules/historical"
	"github.com/Kevinwu901113/stock-pre-sub001/pkg/formulas"
	"github.com/rs/zerolog"
)

// ErrNoTradingDays is returned when the loaded price data has no trading
// dates inside the configured range. This is the only fatal condition; all
// per-symbol data gaps are absorbed and logged during the run.
var ErrNoTradingDays = errors.New("no trading days in the requested range")

// ErrNoData is returned when Run is called before prices are loaded
var ErrNoData = errors.New("price data not loaded")

// Config holds the simulation parameters, fixed at construction
type Config struct {
	StartDate           string  `json:"start_date"`
	EndDate             string  `json:"end_date"`
	InitialCapital      float64 `json:"initial_capital"`
	CommissionRate      float64 `json:"commission_rate"`
	SlippageRate        float64 `json:"slippage_rate"`
	MaxPositionPerStock float64 `json:"max_position_per_stock"`
	MaxStocksPerDay     int     `json:"max_stocks_per_day"`
	LotSize             int     `json:"lot_size"`
	RiskFreeRate        float64 `json:"risk_free_rate"`
	PeriodsPerYear      int     `json:"periods_per_year"`
}

// normalize fills unset fields with the conventional defaults
func (c *Config) normalize() {
	if c.LotSize <= 0 {
		c.LotSize = 100
	}
	if c.PeriodsPerYear <= 0 {
		c.PeriodsPerYear = 252
	}
	if c.MaxStocksPerDay <= 0 {
		c.MaxStocksPerDay = 5
	}
	if c.MaxPositionPerStock <= 0 {
		c.MaxPositionPerStock = 0.1
	}
}

// Stats is the summary block computed at the end of a run
type Stats struct {
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	WinRate          float64 `json:"win_rate"`
	AvgProfitRate    float64 `json:"avg_profit_rate"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	FinalValue       float64 `json:"final_value"`
	TradeCount       int     `json:"trade_count"`
	SellCount        int     `json:"sell_count"`
}

// Result bundles everything a completed run produced. It is immutable once
// returned; the evaluator and the persistence layers only read from it.
type Result struct {
	Config     Config                  `json:"config"`
	Trades     []domain.Trade          `json:"trades"`
	Valuations []domain.DailyValuation `json:"valuations"`
	Returns    []domain.DailyReturn    `json:"returns"`
	Stats      Stats                   `json:"stats"`
}

// Simulator deterministically replays one fixed sequence of trading days,
// maintaining cash, open positions, and a full audit trail. It is inherently
// sequential: each day's available capital depends on every prior day, so a
// single run must never be parallelized. Independent runs with private
// Simulator instances are safe to execute concurrently.
type Simulator struct {
	cfg    Config
	prices *historical.PriceSet
	dates  []string // trading dates within [StartDate, EndDate], ascending

	cash       float64
	positions  map[string]*domain.Position
	trades     []domain.Trade
	valuations []domain.DailyValuation
	returns    []domain.DailyReturn

	log zerolog.Logger
}

// NewSimulator creates a Simulator with the given configuration. Prices must
// be loaded with LoadPrices before Run.
func NewSimulator(cfg Config, log zerolog.Logger) *Simulator {
	cfg.normalize()
	return &Simulator{
		cfg:       cfg,
		positions: make(map[string]*domain.Position),
		log:       log.With().Str("component", "simulator").Logger(),
	}
}

// LoadPrices ingests per-symbol price tables and derives the sorted set of
// distinct trading dates intersected with [StartDate, EndDate]. Returns
// ErrNoTradingDays when the intersection is empty.
func (s *Simulator) LoadPrices(series map[string][]domain.PriceBar) error {
	return s.LoadPriceSet(historical.NewPriceSet(series))
}

// LoadPriceSet ingests an already-indexed price set
func (s *Simulator) LoadPriceSet(prices *historical.PriceSet) error {
	dates := prices.TradingDates(s.cfg.StartDate, s.cfg.EndDate)
	if len(dates) == 0 {
		return fmt.Errorf("%w: %s to %s", ErrNoTradingDays, s.cfg.StartDate, s.cfg.EndDate)
	}

	s.prices = prices
	s.dates = dates

	s.log.Info().
		Int("trading_days", len(dates)).
		Str("first", dates[0]).
		Str("last", dates[len(dates)-1]).
		Msg("Price data loaded")

	return nil
}

// NextTradingDay returns the trading date immediately following the given
// date in the loaded trading-day list, and false at the end of the series.
// This lookup is the sole mechanism enforcing T+1 settlement.
func (s *Simulator) NextTradingDay(date string) (string, bool) {
	// First date strictly greater than the argument.
	idx := sort.SearchStrings(s.dates, date)
	if idx < len(s.dates) && s.dates[idx] == date {
		idx++
	}
	if idx >= len(s.dates) {
		return "", false
	}
	return s.dates[idx], true
}

// ExecuteBuy opens new positions for the day's recommendations. Candidates
// are ranked descending by score and truncated to MaxStocksPerDay before
// price availability is checked, so days with data gaps may execute fewer
// buys than the cap. Capital is deducted sequentially down the ranked list:
// later candidates see a smaller remaining pool than earlier ones.
func (s *Simulator) ExecuteBuy(date string, recommendations []domain.Recommendation) {
	if len(recommendations) == 0 {
		return
	}

	ranked := make([]domain.Recommendation, len(recommendations))
	copy(ranked, recommendations)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	if len(ranked) > s.cfg.MaxStocksPerDay {
		ranked = ranked[:s.cfg.MaxStocksPerDay]
	}

	perStockCap := s.cfg.InitialCapital * s.cfg.MaxPositionPerStock
	candidates := float64(len(ranked))

	// Fold over the ranked list carrying the remaining capital. The order
	// dependence is intentional and must be preserved.
	remaining := s.cash
	for _, rec := range ranked {
		bar, ok := s.prices.Bar(rec.Symbol, date)
		if !ok {
			s.log.Warn().
				Str("symbol", rec.Symbol).
				Str("date", date).
				Msg("No price data for candidate, skipping")
			continue
		}

		budget := perStockCap
		if share := remaining / candidates; share < budget {
			budget = share
		}

		buyPrice := bar.Close * (1 + s.cfg.SlippageRate)
		if buyPrice <= 0 {
			s.log.Warn().
				Str("symbol", rec.Symbol).
				Str("date", date).
				Float64("close", bar.Close).
				Msg("Non-positive buy price, skipping")
			continue
		}

		shares := s.affordableShares(budget, buyPrice)
		cost := float64(shares) * buyPrice
		commission := cost * s.cfg.CommissionRate

		// Capital constraint: recompute from what is actually left.
		if cost+commission > remaining {
			shares = s.affordableShares(remaining/(1+s.cfg.CommissionRate), buyPrice)
			cost = float64(shares) * buyPrice
			commission = cost * s.cfg.CommissionRate
		}

		if shares <= 0 {
			s.log.Debug().
				Str("symbol", rec.Symbol).
				Str("date", date).
				Float64("remaining", remaining).
				Msg("Candidate unaffordable at lot size, skipping")
			continue
		}

		total := cost + commission
		s.cash -= total
		remaining -= total

		if pos, exists := s.positions[rec.Symbol]; exists {
			pos.Shares += shares
			pos.CostBasis += total
		} else {
			s.positions[rec.Symbol] = &domain.Position{
				Symbol:    rec.Symbol,
				Shares:    shares,
				CostBasis: total,
				OpenDate:  date,
			}
		}

		s.trades = append(s.trades, domain.Trade{
			Date:       date,
			Symbol:     rec.Symbol,
			Action:     domain.ActionBuy,
			Price:      buyPrice,
			Shares:     shares,
			Commission: commission,
			Cost:       cost,
		})

		s.log.Debug().
			Str("symbol", rec.Symbol).
			Str("date", date).
			Int64("shares", shares).
			Float64("price", buyPrice).
			Float64("cost", cost).
			Float64("cash", s.cash).
			Msg("Buy executed")
	}
}

// affordableShares returns the largest share count payable from budget at
// the given price, rounded down to a whole number of lots.
func (s *Simulator) affordableShares(budget, price float64) int64 {
	if budget <= 0 || price <= 0 {
		return 0
	}
	lot := int64(s.cfg.LotSize)
	lots := int64(budget / price / float64(s.cfg.LotSize))
	return lots * lot
}

// ExecuteSell liquidates every open position whose next trading day after
// its open date is the given date (T+1 settlement).
func (s *Simulator) ExecuteSell(date string, sellType domain.SellType) {
	// Deterministic iteration order over the position table.
	symbols := make([]string, 0, len(s.positions))
	for symbol := range s.positions {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	for _, symbol := range symbols {
		pos := s.positions[symbol]
		next, ok := s.NextTradingDay(pos.OpenDate)
		if !ok || next != date {
			continue
		}

		bar, barOK := s.prices.Bar(symbol, date)
		if !barOK {
			s.log.Warn().
				Str("symbol", symbol).
				Str("date", date).
				Msg("No price data on settlement date, holding position")
			continue
		}

		sellPrice := s.sellPrice(bar, sellType) * (1 - s.cfg.SlippageRate)
		revenue := float64(pos.Shares) * sellPrice
		commission := revenue * s.cfg.CommissionRate
		netRevenue := revenue - commission
		profit := netRevenue - pos.CostBasis
		profitRate := 0.0
		if pos.CostBasis > 0 {
			profitRate = profit / pos.CostBasis
		}

		s.cash += netRevenue
		delete(s.positions, symbol)

		s.trades = append(s.trades, domain.Trade{
			Date:       date,
			Symbol:     symbol,
			Action:     domain.ActionSell,
			Price:      sellPrice,
			Shares:     pos.Shares,
			Commission: commission,
			NetRevenue: netRevenue,
			Profit:     profit,
			ProfitRate: profitRate,
		})

		s.log.Debug().
			Str("symbol", symbol).
			Str("date", date).
			Int64("shares", pos.Shares).
			Float64("price", sellPrice).
			Float64("profit", profit).
			Float64("cash", s.cash).
			Msg("Sell executed")
	}
}

// sellPrice resolves the raw exit price before slippage. The vwap variant
// uses amount/volume when both are available and falls back to the average
// of the day's open and close otherwise; the fallback approximates, but is
// not, a true volume-weighted price.
func (s *Simulator) sellPrice(bar domain.PriceBar, sellType domain.SellType) float64 {
	switch sellType {
	case domain.SellAtVWAP:
		if bar.Amount != nil && bar.Volume != nil && *bar.Volume > 0 {
			return *bar.Amount / float64(*bar.Volume)
		}
		return (bar.Open + bar.Close) / 2
	default:
		return bar.Open
	}
}

// MarkToMarket revalues the portfolio at the day's close: cash plus the
// close-price value of every still-open position. It appends one
// DailyValuation and, when a previous valuation exists, one DailyReturn.
func (s *Simulator) MarkToMarket(date string) {
	positionValue := 0.0
	for symbol, pos := range s.positions {
		bar, ok := s.prices.Bar(symbol, date)
		if !ok {
			s.log.Warn().
				Str("symbol", symbol).
				Str("date", date).
				Msg("No close price for open position, excluded from valuation")
			continue
		}
		positionValue += float64(pos.Shares) * bar.Close
	}

	total := s.cash + positionValue

	if n := len(s.valuations); n > 0 {
		prev := s.valuations[n-1].TotalValue
		if prev != 0 {
			s.returns = append(s.returns, domain.DailyReturn{
				Date:   date,
				Return: (total - prev) / prev,
			})
		}
	}

	s.valuations = append(s.valuations, domain.DailyValuation{
		Date:          date,
		Cash:          s.cash,
		PositionValue: positionValue,
		TotalValue:    total,
	})
}

// RunSingleDay processes one trading day. Sells run before buys so that
// proceeds from T+1 liquidations are available capital for same-day
// purchases; the day closes with a mark-to-market valuation.
func (s *Simulator) RunSingleDay(date string, recommendations []domain.Recommendation, sellType domain.SellType) {
	s.ExecuteSell(date, sellType)
	s.ExecuteBuy(date, recommendations)
	s.MarkToMarket(date)
}

// Run resets state and replays every trading date in ascending order. Days
// absent from recommendationsByDate still execute sells and revaluation,
// just no new buys. The returned Result is complete and immutable.
func (s *Simulator) Run(recommendationsByDate map[string][]domain.Recommendation, sellType domain.SellType) (*Result, error) {
	if s.prices == nil || len(s.dates) == 0 {
		return nil, ErrNoData
	}

	// Reset state.
	s.cash = s.cfg.InitialCapital
	s.positions = make(map[string]*domain.Position)
	s.trades = nil
	s.valuations = nil
	s.returns = nil

	// Seed valuation the day before the first trading day, so the first
	// day's return is measured against the initial capital.
	s.valuations = append(s.valuations, domain.DailyValuation{
		Date:       seedDate(s.dates[0]),
		Cash:       s.cfg.InitialCapital,
		TotalValue: s.cfg.InitialCapital,
	})

	for _, date := range s.dates {
		s.RunSingleDay(date, recommendationsByDate[date], sellType)
	}

	result := &Result{
		Config:     s.cfg,
		Trades:     append([]domain.Trade(nil), s.trades...),
		Valuations: append([]domain.DailyValuation(nil), s.valuations...),
		Returns:    append([]domain.DailyReturn(nil), s.returns...),
		Stats:      s.Stats(),
	}

	s.log.Info().
		Int("trades", len(result.Trades)).
		Float64("final_value", result.Stats.FinalValue).
		Float64("total_return", result.Stats.TotalReturn).
		Msg("Backtest completed")

	return result, nil
}

// Stats computes the summary statistics over the current run state
func (s *Simulator) Stats() Stats {
	stats := Stats{FinalValue: s.cfg.InitialCapital}
	if len(s.valuations) == 0 {
		return stats
	}

	final := s.valuations[len(s.valuations)-1].TotalValue
	stats.FinalValue = final
	stats.TotalReturn = (final - s.cfg.InitialCapital) / s.cfg.InitialCapital

	elapsed := domain.DaysBetween(s.valuations[0].Date, s.valuations[len(s.valuations)-1].Date)
	stats.AnnualizedReturn = formulas.AnnualizedReturn(stats.TotalReturn, elapsed, len(s.valuations)-1, s.cfg.PeriodsPerYear)

	totals := make([]float64, len(s.valuations))
	for i, v := range s.valuations {
		totals[i] = v.TotalValue
	}
	stats.MaxDrawdown = formulas.MaxDrawdown(totals)

	var sells, wins int
	var profitRateSum float64
	for _, t := range s.trades {
		if t.Action != domain.ActionSell {
			continue
		}
		sells++
		profitRateSum += t.ProfitRate
		if t.Profit > 0 {
			wins++
		}
	}
	stats.TradeCount = len(s.trades)
	stats.SellCount = sells
	if sells > 0 {
		stats.WinRate = float64(wins) / float64(sells)
		stats.AvgProfitRate = profitRateSum / float64(sells)
	}

	dailyReturns := make([]float64, len(s.returns))
	for i, r := range s.returns {
		dailyReturns[i] = r.Return
	}
	stats.SharpeRatio = formulas.SharpeRatio(dailyReturns, s.cfg.RiskFreeRate, s.cfg.PeriodsPerYear)

	return stats
}

// Cash returns the current cash balance
func (s *Simulator) Cash() float64 {
	return s.cash
}

// Positions returns a copy of the open position table
func (s *Simulator) Positions() []domain.Position {
	positions := make([]domain.Position, 0, len(s.positions))
	for _, p := range s.positions {
		positions = append(positions, *p)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })
	return positions
}

// seedDate is the calendar day before the first trading day
func seedDate(first string) string {
	t, err := time.Parse(domain.DateLayout, first)
	if err != nil {
		return first
	}
	return t.AddDate(0, 0, -1).Format(domain.DateLayout)
}
