package backtest

import (
	"github.com/Kevinwu901113/stock-pre-sub001/internal/domain"
	"github.com/Kevinwu901113/stock-pre-sub001/pkg/formulas"
)

// Metrics is the evaluator's output. Benchmark-relative fields are nil when
// no benchmark series was supplied.
type Metrics struct {
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	CumulativeReturn float64 `json:"cumulative_return"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	WinRate          float64 `json:"win_rate"`
	AvgProfitRate    float64 `json:"avg_profit_rate"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	SortinoRatio     float64 `json:"sortino_ratio"`
	CalmarRatio      float64 `json:"calmar_ratio"`
	TradeCount       int     `json:"trade_count"`
	SellCount        int     `json:"sell_count"`

	BenchmarkReturn  *float64 `json:"benchmark_return,omitempty"`
	Alpha            *float64 `json:"alpha,omitempty"`
	Beta             *float64 `json:"beta,omitempty"`
	InformationRatio *float64 `json:"information_ratio,omitempty"`
}

// Evaluator is a stateless set of pure functions over a completed backtest
// result and an optional benchmark series. Every method is safe to call
// repeatedly, in any order, and concurrently on the same inputs.
type Evaluator struct {
	RiskFreeRate   float64
	PeriodsPerYear int
}

// NewEvaluator creates an evaluator with the given statistical conventions
func NewEvaluator(riskFreeRate float64, periodsPerYear int) *Evaluator {
	if periodsPerYear <= 0 {
		periodsPerYear = 252
	}
	return &Evaluator{RiskFreeRate: riskFreeRate, PeriodsPerYear: periodsPerYear}
}

// CalculateReturns derives the per-day percentage change of total value
func (e *Evaluator) CalculateReturns(values []domain.DailyValuation) []float64 {
	totals := make([]float64, len(values))
	for i, v := range values {
		totals[i] = v.TotalValue
	}
	return formulas.Returns(totals)
}

// CalculateCumulativeReturn compounds a return series: Π(1+r) − 1
func (e *Evaluator) CalculateCumulativeReturn(returns []float64) float64 {
	return formulas.CumulativeReturn(returns)
}

// CalculateBenchmarkReturns applies the same transform to a benchmark close
// series filtered to [start, end]. Empty bounds are open-ended.
func (e *Evaluator) CalculateBenchmarkReturns(benchmark []domain.BenchmarkBar, start, end string) []float64 {
	var closes []float64
	for _, b := range benchmark {
		if start != "" && b.Date < start {
			continue
		}
		if end != "" && b.Date > end {
			continue
		}
		closes = append(closes, b.Close)
	}
	return formulas.Returns(closes)
}

// CalculateWinRate is the fraction of sell trades with positive profit.
// Returns 0 when there are no sell trades.
func (e *Evaluator) CalculateWinRate(trades []domain.Trade) float64 {
	var sells, wins int
	for _, t := range trades {
		if t.Action != domain.ActionSell {
			continue
		}
		sells++
		if t.Profit > 0 {
			wins++
		}
	}
	if sells == 0 {
		return 0
	}
	return float64(wins) / float64(sells)
}

// CalculateAverageReturn is the mean profit rate over sell trades.
// Returns 0 when there are no sell trades.
func (e *Evaluator) CalculateAverageReturn(trades []domain.Trade) float64 {
	var sells int
	var sum float64
	for _, t := range trades {
		if t.Action != domain.ActionSell {
			continue
		}
		sells++
		sum += t.ProfitRate
	}
	if sells == 0 {
		return 0
	}
	return sum / float64(sells)
}

// CalculateMaxDrawdown is the maximum peak-to-trough decline of total value
func (e *Evaluator) CalculateMaxDrawdown(values []domain.DailyValuation) float64 {
	totals := make([]float64, len(values))
	for i, v := range values {
		totals[i] = v.TotalValue
	}
	return formulas.MaxDrawdown(totals)
}

// CalculateSharpeRatio delegates to the formulas package with the
// evaluator's conventions
func (e *Evaluator) CalculateSharpeRatio(returns []float64) float64 {
	return formulas.SharpeRatio(returns, e.RiskFreeRate, e.PeriodsPerYear)
}

// CalculateSortinoRatio delegates to the formulas package with the
// evaluator's conventions
func (e *Evaluator) CalculateSortinoRatio(returns []float64) float64 {
	return formulas.SortinoRatio(returns, e.RiskFreeRate, e.PeriodsPerYear)
}

// CalculateCalmarRatio is annualized return over max drawdown of the
// valuation series
func (e *Evaluator) CalculateCalmarRatio(values []domain.DailyValuation) float64 {
	totals := make([]float64, len(values))
	for i, v := range values {
		totals[i] = v.TotalValue
	}
	elapsed := 0.0
	if len(values) >= 2 {
		elapsed = domain.DaysBetween(values[0].Date, values[len(values)-1].Date)
	}
	return formulas.CalmarRatio(totals, elapsed, e.PeriodsPerYear)
}

// CalculateAlphaBeta regresses strategy excess returns on benchmark excess
// returns
func (e *Evaluator) CalculateAlphaBeta(returns, benchmarkReturns []float64) (alpha, beta float64) {
	return formulas.AlphaBeta(returns, benchmarkReturns, e.RiskFreeRate, e.PeriodsPerYear)
}

// CalculateInformationRatio is mean active return over tracking error,
// annualized
func (e *Evaluator) CalculateInformationRatio(returns, benchmarkReturns []float64) float64 {
	return formulas.InformationRatio(returns, benchmarkReturns, e.PeriodsPerYear)
}

// Evaluate assembles the full metrics block from a backtest result and an
// optional benchmark series. Benchmark-relative metrics are omitted (nil)
// when benchmark is empty.
func (e *Evaluator) Evaluate(result *Result, benchmark []domain.BenchmarkBar) Metrics {
	returns := e.CalculateReturns(result.Valuations)

	metrics := Metrics{
		TotalReturn:      result.Stats.TotalReturn,
		AnnualizedReturn: result.Stats.AnnualizedReturn,
		CumulativeReturn: formulas.CumulativeReturn(returns),
		MaxDrawdown:      e.CalculateMaxDrawdown(result.Valuations),
		WinRate:          e.CalculateWinRate(result.Trades),
		AvgProfitRate:    e.CalculateAverageReturn(result.Trades),
		SharpeRatio:      e.CalculateSharpeRatio(returns),
		SortinoRatio:     e.CalculateSortinoRatio(returns),
		CalmarRatio:      e.CalculateCalmarRatio(result.Valuations),
		TradeCount:       result.Stats.TradeCount,
		SellCount:        result.Stats.SellCount,
	}

	if len(benchmark) >= 2 {
		benchmarkReturns := e.CalculateBenchmarkReturns(benchmark, result.Config.StartDate, result.Config.EndDate)
		if len(benchmarkReturns) >= 2 {
			benchmarkTotal := formulas.CumulativeReturn(benchmarkReturns)
			alpha, beta := e.CalculateAlphaBeta(returns, benchmarkReturns)
			ir := e.CalculateInformationRatio(returns, benchmarkReturns)

			metrics.BenchmarkReturn = &benchmarkTotal
			metrics.Alpha = &alpha
			metrics.Beta = &beta
			metrics.InformationRatio = &ir
		}
	}

	return metrics
}
