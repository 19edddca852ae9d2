package diagnostics

import (
	"fmt"
	"math"
	"sort"

	"uplift/internal/sampler"
	"uplift/internal/stats"
)

// hdiProbability is the mass of the reported highest-density interval.
const hdiProbability = 0.94

// ParameterSummary describes one scalar parameter's marginal posterior.
type ParameterSummary struct {
	Mean    float64 `json:"mean"`
	SD      float64 `json:"sd"`
	HDILow  float64 `json:"hdi_3%"`
	HDIHigh float64 `json:"hdi_97%"`
	RHat    float64 `json:"r_hat"`
	ESSBulk float64 `json:"ess_bulk"`
	ESSTail float64 `json:"ess_tail"`
}

// PosteriorSummary is the persisted per-parameter summary artifact.
type PosteriorSummary struct {
	Parameters     map[string]ParameterSummary `json:"parameters"`
	ChannelEffects map[string]float64          `json:"channel_effects"`
}

// Summarize builds the posterior summary. Vector parameters are reported
// element-wise with bracketed names (beta[0], beta[1], ...); channel effects
// map channel names to their mean beta coefficient.
func Summarize(post *sampler.Posterior, channelNames []string) *PosteriorSummary {
	summary := &PosteriorSummary{
		Parameters:     make(map[string]ParameterSummary),
		ChannelEffects: make(map[string]float64),
	}

	addScalar := func(name string, chains [][]float64) {
		if len(chains) == 0 || len(chains[0]) == 0 {
			return
		}
		summary.Parameters[name] = summarizeChains(chains)
	}

	addScalar("intercept", post.Intercept)
	addScalar("sigma", post.Sigma)
	addScalar("nu", post.Nu)
	addScalar("sigma_beta", post.SigmaBeta)

	for i, chains := range sliceColumns(post.Beta) {
		name := fmt.Sprintf("beta[%d]", i)
		summary.Parameters[name] = summarizeChains(chains)
		if i < len(channelNames) {
			summary.ChannelEffects[channelNames[i]] = summary.Parameters[name].Mean
		}
	}
	for i, chains := range sliceColumns(post.Gamma) {
		summary.Parameters[fmt.Sprintf("gamma[%d]", i)] = summarizeChains(chains)
	}

	return summary
}

func summarizeChains(chains [][]float64) ParameterSummary {
	pooled := pool(chains)
	low, high := hdi(pooled, hdiProbability)
	return ParameterSummary{
		Mean:    stats.Mean(pooled),
		SD:      stats.SampleStdDev(pooled),
		HDILow:  low,
		HDIHigh: high,
		RHat:    Rhat(chains),
		ESSBulk: ESSBulk(chains),
		ESSTail: ESSTail(chains),
	}
}

// hdi finds the narrowest window containing prob of the sorted draws.
func hdi(draws []float64, prob float64) (float64, float64) {
	n := len(draws)
	if n == 0 {
		return math.NaN(), math.NaN()
	}
	sorted := append([]float64(nil), draws...)
	sort.Float64s(sorted)

	window := int(math.Ceil(prob * float64(n)))
	if window >= n {
		return sorted[0], sorted[n-1]
	}
	bestLow := 0
	bestWidth := math.Inf(1)
	for i := 0; i+window-1 < n; i++ {
		width := sorted[i+window-1] - sorted[i]
		if width < bestWidth {
			bestWidth = width
			bestLow = i
		}
	}
	return sorted[bestLow], sorted[bestLow+window-1]
}
