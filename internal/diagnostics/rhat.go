package diagnostics

import (
	"math"

	"uplift/internal/stats"
)

// splitChains halves every chain, doubling the chain count. An odd draw is
// dropped so both halves have equal length.
func splitChains(chains [][]float64) [][]float64 {
	out := make([][]float64, 0, 2*len(chains))
	for _, chain := range chains {
		half := len(chain) / 2
		if half == 0 {
			out = append(out, chain)
			continue
		}
		out = append(out, chain[:half], chain[half:half*2])
	}
	return out
}

// Rhat computes the split-chain potential scale reduction factor. Values
// near 1.0 indicate the chains agree; 1.0 is returned when the draws carry
// no variance at all.
func Rhat(chains [][]float64) float64 {
	split := splitChains(chains)
	m := len(split)
	if m < 2 {
		return 1.0
	}
	n := len(split[0])
	if n < 2 {
		return 1.0
	}

	means := make([]float64, m)
	variances := make([]float64, m)
	for i, chain := range split {
		means[i] = stats.Mean(chain)
		variances[i] = stats.SampleVariance(chain)
	}

	within := stats.Mean(variances)
	between := float64(n) * stats.SampleVariance(means)
	if within < 1e-10 {
		return 1.0
	}

	varPlus := (float64(n-1)/float64(n))*within + between/float64(n)
	return math.Sqrt(varPlus / within)
}
