package diagnostics

import (
	"math"
	"sort"

	"uplift/internal/stats"
)

// ess computes the effective sample size of the split chains using the
// variogram autocorrelation estimate and Geyer's initial positive sequence.
func ess(chains [][]float64) float64 {
	split := splitChains(chains)
	m := len(split)
	if m == 0 {
		return 0
	}
	n := len(split[0])
	if n < 4 {
		return float64(m * n)
	}

	means := make([]float64, m)
	variances := make([]float64, m)
	for i, chain := range split {
		means[i] = stats.Mean(chain)
		variances[i] = stats.SampleVariance(chain)
	}
	within := stats.Mean(variances)
	between := float64(n) * stats.SampleVariance(means)
	varPlus := (float64(n-1)/float64(n))*within + between/float64(n)
	if varPlus < 1e-10 {
		return float64(m * n)
	}

	// rho[t] from the variogram: 1 - V_t / (2 * varPlus).
	rho := make([]float64, n)
	rho[0] = 1
	for t := 1; t < n; t++ {
		var vt float64
		for _, chain := range split {
			for i := 0; i+t < n; i++ {
				d := chain[i+t] - chain[i]
				vt += d * d
			}
		}
		vt /= float64(m * (n - t))
		rho[t] = 1 - vt/(2*varPlus)
	}

	// Geyer initial positive sequence: sum consecutive pairs while positive.
	var pairSum float64
	for t := 1; t+1 < n; t += 2 {
		pair := rho[t] + rho[t+1]
		if pair < 0 {
			break
		}
		pairSum += pair
	}
	tau := 1 + 2*pairSum
	if tau < 1 {
		tau = 1
	}
	return float64(m*n) / tau
}

// ESSBulk computes the bulk effective sample size on rank-normalized draws.
func ESSBulk(chains [][]float64) float64 {
	return ess(rankNormalize(chains))
}

// ESSTail computes the tail effective sample size: the minimum of the
// effective sample sizes of the 5% and 95% quantile indicator functions.
func ESSTail(chains [][]float64) float64 {
	pooled := pool(chains)
	if len(pooled) == 0 {
		return 0
	}
	lower := stats.Quantile(pooled, 0.05)
	upper := stats.Quantile(pooled, 0.95)

	essLower := ess(indicator(chains, lower))
	essUpper := ess(indicator(chains, upper))
	return math.Min(essLower, essUpper)
}

func indicator(chains [][]float64, threshold float64) [][]float64 {
	out := make([][]float64, len(chains))
	for i, chain := range chains {
		row := make([]float64, len(chain))
		for j, v := range chain {
			if v <= threshold {
				row[j] = 1
			}
		}
		out[i] = row
	}
	return out
}

func pool(chains [][]float64) []float64 {
	var pooled []float64
	for _, chain := range chains {
		pooled = append(pooled, chain...)
	}
	return pooled
}

// rankNormalize maps pooled draws through fractional ranks into standard
// normal scores, preserving the chain layout.
func rankNormalize(chains [][]float64) [][]float64 {
	pooled := pool(chains)
	total := len(pooled)
	if total == 0 {
		return chains
	}

	order := make([]int, total)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return pooled[order[a]] < pooled[order[b]] })

	z := make([]float64, total)
	for rank, idx := range order {
		frac := (float64(rank+1) - 0.375) / (float64(total) + 0.25)
		z[idx] = invNormCDF(frac)
	}

	out := make([][]float64, len(chains))
	offset := 0
	for i, chain := range chains {
		out[i] = z[offset : offset+len(chain)]
		offset += len(chain)
	}
	return out
}

// invNormCDF is Acklam's rational approximation to the standard normal
// quantile function, accurate to about 1e-9 over (0, 1).
func invNormCDF(p float64) float64 {
	if p <= 0 {
		return math.Inf(-1)
	}
	if p >= 1 {
		return math.Inf(1)
	}

	a := []float64{-3.969683028665376e+01, 2.209460984245205e+02, -2.759285104469687e+02,
		1.383577518672690e+02, -3.066479806614716e+01, 2.506628277459239e+00}
	b := []float64{-5.447609879822406e+01, 1.615858368580409e+02, -1.556989798598866e+02,
		6.680131188771972e+01, -1.328068155288572e+01}
	c := []float64{-7.784894002430293e-03, -3.223964580411365e-01, -2.400758277161838e+00,
		-2.549732539343734e+00, 4.374664141464968e+00, 2.938163982698783e+00}
	d := []float64{7.784695709041462e-03, 3.224671290700398e-01, 2.445134137142996e+00,
		3.754408661907416e+00}

	const low, high = 0.02425, 1 - 0.02425
	switch {
	case p < low:
		q := math.Sqrt(-2 * math.Log(p))
		return (((((c[0]*q+c[1])*q+c[2])*q+c[3])*q+c[4])*q + c[5]) /
			((((d[0]*q+d[1])*q+d[2])*q+d[3])*q + 1)
	case p > high:
		q := math.Sqrt(-2 * math.Log(1-p))
		return -(((((c[0]*q+c[1])*q+c[2])*q+c[3])*q+c[4])*q + c[5]) /
			((((d[0]*q+d[1])*q+d[2])*q+d[3])*q + 1)
	default:
		q := p - 0.5
		r := q * q
		return (((((a[0]*r+a[1])*r+a[2])*r+a[3])*r+a[4])*r + a[5]) * q /
			(((((b[0]*r+b[1])*r+b[2])*r+b[3])*r+b[4])*r + 1)
	}
}
