package features

import (
	"fmt"
	"math"

	"uplift/internal/stats"
)

// FourierTerms generates 2K seasonality columns for n periods with the given
// seasonal period length. Columns are ordered sin(k=1), cos(k=1), sin(k=2),
// cos(k=2), ... and named seasonality_0 through seasonality_{2K-1}.
func FourierTerms(n, k, period int) (names []string, columns [][]float64) {
	names = make([]string, 0, 2*k)
	columns = make([][]float64, 0, 2*k)
	for harmonic := 1; harmonic <= k; harmonic++ {
		sin := make([]float64, n)
		cos := make([]float64, n)
		for t := 0; t < n; t++ {
			arg := 2 * math.Pi * float64(harmonic) * float64(t) / float64(period)
			sin[t] = math.Sin(arg)
			cos[t] = math.Cos(arg)
		}
		names = append(names, fmt.Sprintf("seasonality_%d", len(names)))
		columns = append(columns, sin)
		names = append(names, fmt.Sprintf("seasonality_%d", len(names)))
		columns = append(columns, cos)
	}
	return names, columns
}

// TrendTerm returns a centered, scaled linear trend for n periods:
// (t - mean(t)) / (std(t) + eps) with the population standard deviation.
func TrendTerm(n int) []float64 {
	ts := make([]float64, n)
	for t := 0; t < n; t++ {
		ts[t] = float64(t)
	}
	mean := stats.Mean(ts)
	std := stats.StdDev(ts)
	out := make([]float64, n)
	for t := 0; t < n; t++ {
		out[t] = (ts[t] - mean) / (std + epsilon)
	}
	return out
}
