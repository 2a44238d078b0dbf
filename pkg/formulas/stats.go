package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Variance calculates the sample variance of a slice of float64 values
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.Variance(data, nil)
}

// Covariance calculates the sample covariance between two equal-length datasets
func Covariance(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return 0
	}
	return stat.Covariance(x, y, nil)
}

// Returns converts a value series to percentage returns.
// Returns[i] = (Value[i+1] - Value[i]) / Value[i]
func Returns(values []float64) []float64 {
	if len(values) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] != 0 {
			returns[i-1] = (values[i] - values[i-1]) / values[i-1]
		}
	}

	return returns
}

// CumulativeReturn compounds a return series: Π(1+r) − 1
func CumulativeReturn(returns []float64) float64 {
	product := 1.0
	for _, r := range returns {
		product *= 1 + r
	}
	return product - 1
}

// DailyRiskFreeRate converts an annual risk-free rate to a per-period rate
// by compounding: (1+annual)^(1/periods) − 1
func DailyRiskFreeRate(annualRate float64, periodsPerYear int) float64 {
	if periodsPerYear <= 0 {
		return 0
	}
	return math.Pow(1+annualRate, 1/float64(periodsPerYear)) - 1
}

// AnnualizedReturn compounds a total return over the elapsed calendar days.
// Falls back to the periods-per-year convention when elapsedDays is not positive.
func AnnualizedReturn(totalReturn float64, elapsedDays float64, periods int, periodsPerYear int) float64 {
	base := 1 + totalReturn
	if base <= 0 {
		return -1
	}
	if elapsedDays > 0 {
		years := elapsedDays / 365.25
		if years > 0 {
			return math.Pow(base, 1/years) - 1
		}
	}
	if periods > 0 && periodsPerYear > 0 {
		years := float64(periods) / float64(periodsPerYear)
		if years > 0 {
			return math.Pow(base, 1/years) - 1
		}
	}
	return totalReturn
}
