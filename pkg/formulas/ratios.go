package formulas

import (
	"math"
)

// SharpeRatio calculates the annualized Sharpe ratio of a periodic return series.
//
// Sharpe Formula:
//
//	Sharpe = mean(excess return) / stddev(excess return) × sqrt(periods per year)
//
// The annual risk-free rate is converted to a per-period rate by compounding.
// Returns 0 when the excess-return standard deviation is zero (degenerate case,
// e.g. a single-trade backtest).
func SharpeRatio(returns []float64, riskFreeRate float64, periodsPerYear int) float64 {
	if len(returns) < 2 {
		return 0
	}

	periodicRiskFree := DailyRiskFreeRate(riskFreeRate, periodsPerYear)

	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - periodicRiskFree
	}

	stdDev := StdDev(excess)
	if stdDev == 0 {
		return 0
	}

	return Mean(excess) / stdDev * math.Sqrt(float64(periodsPerYear))
}

// SortinoRatio calculates the annualized Sortino ratio: same numerator as
// Sharpe, but the denominator uses only the standard deviation of negative
// excess returns (downside deviation). Returns 0 when no excess return is
// negative or the downside deviation is zero.
func SortinoRatio(returns []float64, riskFreeRate float64, periodsPerYear int) float64 {
	if len(returns) < 2 {
		return 0
	}

	periodicRiskFree := DailyRiskFreeRate(riskFreeRate, periodsPerYear)

	excess := make([]float64, len(returns))
	var downside []float64
	for i, r := range returns {
		excess[i] = r - periodicRiskFree
		if excess[i] < 0 {
			downside = append(downside, excess[i])
		}
	}

	if len(downside) == 0 {
		return 0
	}

	downsideDev := StdDev(downside)
	if downsideDev == 0 {
		return 0
	}

	return Mean(excess) / downsideDev * math.Sqrt(float64(periodsPerYear))
}

// CalmarRatio calculates annualized return divided by maximum drawdown over a
// value series. Returns 0 when the drawdown is zero.
func CalmarRatio(values []float64, elapsedDays float64, periodsPerYear int) float64 {
	if len(values) < 2 || values[0] == 0 {
		return 0
	}

	maxDrawdown := MaxDrawdown(values)
	if maxDrawdown == 0 {
		return 0
	}

	totalReturn := (values[len(values)-1] - values[0]) / values[0]
	annualized := AnnualizedReturn(totalReturn, elapsedDays, len(values)-1, periodsPerYear)

	return annualized / maxDrawdown
}

// AlphaBeta calculates regression-based attribution of a strategy's excess
// return against a benchmark's excess return.
//
//	beta  = cov(excess strategy, excess benchmark) / var(excess benchmark)
//	alpha = periodsPerYear × (mean(excess strategy) − beta × mean(excess benchmark))
//
// Series are truncated to their overlapping length. Both values are 0 when
// the inputs do not overlap or the benchmark variance is zero.
func AlphaBeta(returns, benchmarkReturns []float64, riskFreeRate float64, periodsPerYear int) (alpha, beta float64) {
	n := len(returns)
	if len(benchmarkReturns) < n {
		n = len(benchmarkReturns)
	}
	if n < 2 {
		return 0, 0
	}

	periodicRiskFree := DailyRiskFreeRate(riskFreeRate, periodsPerYear)

	excessStrategy := make([]float64, n)
	excessBenchmark := make([]float64, n)
	for i := 0; i < n; i++ {
		excessStrategy[i] = returns[i] - periodicRiskFree
		excessBenchmark[i] = benchmarkReturns[i] - periodicRiskFree
	}

	benchVariance := Variance(excessBenchmark)
	if benchVariance == 0 {
		return 0, 0
	}

	beta = Covariance(excessStrategy, excessBenchmark) / benchVariance
	alpha = float64(periodsPerYear) * (Mean(excessStrategy) - beta*Mean(excessBenchmark))

	return alpha, beta
}

// InformationRatio calculates the annualized ratio of mean active return to
// its standard deviation, where active return = strategy − benchmark per
// period. Returns 0 for non-overlapping inputs or zero tracking error.
func InformationRatio(returns, benchmarkReturns []float64, periodsPerYear int) float64 {
	n := len(returns)
	if len(benchmarkReturns) < n {
		n = len(benchmarkReturns)
	}
	if n < 2 {
		return 0
	}

	active := make([]float64, n)
	for i := 0; i < n; i++ {
		active[i] = returns[i] - benchmarkReturns[i]
	}

	trackingError := StdDev(active)
	if trackingError == 0 {
		return 0
	}

	return Mean(active) / trackingError * math.Sqrt(float64(periodsPerYear))
}
