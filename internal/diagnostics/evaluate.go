package diagnostics

import (
	"fmt"
	"math"

	"uplift/internal/run"
	"uplift/internal/sampler"
	"uplift/internal/stats"
)

// Thresholds for flagging sampling problems. All comparisons are strict.
const (
	RhatThreshold          = 1.01
	ESSThreshold           = 400.0
	EBFMIThreshold         = 0.2
	TreeDepthRateThreshold = 0.01
)

// Status values for the overall report.
const (
	StatusPass    = "PASS"
	StatusWarning = "WARNING"
)

// RhatStat aggregates R-hat over the elements of one parameter family.
type RhatStat struct {
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
}

// Convergence summarizes chain agreement per parameter family.
type Convergence struct {
	Rhat    map[string]RhatStat `json:"rhat"`
	MaxRhat float64             `json:"max_rhat"`
}

// EBFMI is the energy-based fraction of missing information per chain.
type EBFMI struct {
	Min      float64   `json:"min"`
	Mean     float64   `json:"mean"`
	PerChain []float64 `json:"per_chain"`
}

// SamplingQuality summarizes effective sample sizes and sampler health.
type SamplingQuality struct {
	ESSBulk          map[string]float64 `json:"ess_bulk"`
	ESSTail          map[string]float64 `json:"ess_tail"`
	MinESSBulk       float64            `json:"min_ess_bulk"`
	MinESSTail       float64            `json:"min_ess_tail"`
	NDivergences     int                `json:"n_divergences"`
	DivergenceRate   float64            `json:"divergence_rate"`
	EBFMI            EBFMI              `json:"ebfmi"`
	MaxTreeDepthRate float64            `json:"max_tree_depth_rate"`
}

// SamplingSummary restates the sampling configuration that produced the draws.
type SamplingSummary struct {
	Chains        int `json:"chains"`
	DrawsPerChain int `json:"draws_per_chain"`
	TotalDraws    int `json:"total_draws"`
	Tune          int `json:"tune"`
}

// Report is the persisted diagnostics artifact for a run.
type Report struct {
	RunID           string          `json:"run_id"`
	OverallStatus   string          `json:"overall_status"`
	Convergence     Convergence     `json:"convergence"`
	SamplingQuality SamplingQuality `json:"sampling_quality"`
	Warnings        []string        `json:"warnings"`
	SamplingSummary SamplingSummary `json:"sampling_summary"`
}

// family is one named group of scalar draw matrices, e.g. all beta elements.
type family struct {
	name     string
	elements [][][]float64
}

func families(post *sampler.Posterior) []family {
	var fams []family
	addScalar := func(name string, draws [][]float64) {
		if len(draws) > 0 && len(draws[0]) > 0 {
			fams = append(fams, family{name: name, elements: [][][]float64{draws}})
		}
	}
	addScalar("intercept", post.Intercept)
	addScalar("sigma", post.Sigma)
	if beta := sliceColumns(post.Beta); len(beta) > 0 {
		fams = append(fams, family{name: "beta", elements: beta})
	}
	if gamma := sliceColumns(post.Gamma); len(gamma) > 0 {
		fams = append(fams, family{name: "gamma", elements: gamma})
	}
	addScalar("nu", post.Nu)
	addScalar("sigma_beta", post.SigmaBeta)
	return fams
}

// sliceColumns turns [chain][draw][col] draws into per-column chain matrices.
func sliceColumns(draws [][][]float64) [][][]float64 {
	if len(draws) == 0 || len(draws[0]) == 0 {
		return nil
	}
	cols := len(draws[0][0])
	out := make([][][]float64, cols)
	for c := 0; c < cols; c++ {
		chains := make([][]float64, len(draws))
		for chain := range draws {
			vals := make([]float64, len(draws[chain]))
			for d := range draws[chain] {
				vals[d] = draws[chain][d][c]
			}
			chains[chain] = vals
		}
		out[c] = chains
	}
	return out
}

// Evaluate computes the diagnostics report for a run's posterior draws.
func Evaluate(runID string, post *sampler.Posterior, sampleStats *sampler.SampleStats, sampling run.Sampling) *Report {
	report := &Report{
		RunID: runID,
		Convergence: Convergence{
			Rhat: make(map[string]RhatStat),
		},
		SamplingQuality: SamplingQuality{
			ESSBulk:    make(map[string]float64),
			ESSTail:    make(map[string]float64),
			MinESSBulk: math.Inf(1),
			MinESSTail: math.Inf(1),
		},
		Warnings: []string{},
	}

	chains := post.Chains()
	draws := post.DrawsPerChain()
	report.SamplingSummary = SamplingSummary{
		Chains:        chains,
		DrawsPerChain: draws,
		TotalDraws:    chains * draws,
		Tune:          sampling.Tune,
	}

	for _, fam := range families(post) {
		var rhats, bulks, tails []float64
		for _, element := range fam.elements {
			rhats = append(rhats, Rhat(element))
			bulks = append(bulks, ESSBulk(element))
			tails = append(tails, ESSTail(element))
		}
		maxRhat := stats.Max(rhats)
		report.Convergence.Rhat[fam.name] = RhatStat{Max: maxRhat, Mean: stats.Mean(rhats)}
		if maxRhat > report.Convergence.MaxRhat {
			report.Convergence.MaxRhat = maxRhat
		}

		minBulk := stats.Min(bulks)
		minTail := stats.Min(tails)
		report.SamplingQuality.ESSBulk[fam.name] = minBulk
		report.SamplingQuality.ESSTail[fam.name] = minTail
		if minBulk < report.SamplingQuality.MinESSBulk {
			report.SamplingQuality.MinESSBulk = minBulk
		}
		if minTail < report.SamplingQuality.MinESSTail {
			report.SamplingQuality.MinESSTail = minTail
		}
	}

	if math.IsInf(report.SamplingQuality.MinESSBulk, 1) {
		report.SamplingQuality.MinESSBulk = 0
	}
	if math.IsInf(report.SamplingQuality.MinESSTail, 1) {
		report.SamplingQuality.MinESSTail = 0
	}

	total := chains * draws
	divergences := 0
	treeDepthHits := 0
	treeLimit := math.Pow(2, float64(sampling.MaxTreeDepth))
	for chain := range sampleStats.Diverging {
		for _, diverged := range sampleStats.Diverging[chain] {
			if diverged {
				divergences++
			}
		}
	}
	for chain := range sampleStats.TreeSize {
		for _, size := range sampleStats.TreeSize[chain] {
			if sampling.MaxTreeDepth > 0 && size >= treeLimit {
				treeDepthHits++
			}
		}
	}
	report.SamplingQuality.NDivergences = divergences
	if total > 0 {
		report.SamplingQuality.DivergenceRate = float64(divergences) / float64(total)
		report.SamplingQuality.MaxTreeDepthRate = float64(treeDepthHits) / float64(total)
	}
	report.SamplingQuality.EBFMI = computeEBFMI(sampleStats.Energy)

	report.collectWarnings()
	if len(report.Warnings) == 0 {
		report.OverallStatus = StatusPass
	} else {
		report.OverallStatus = StatusWarning
	}
	return report
}

// computeEBFMI returns var(diff(energy)) / var(energy) per chain, using
// population variances. Chains without energy variance report 0.
func computeEBFMI(energy [][]float64) EBFMI {
	perChain := make([]float64, 0, len(energy))
	for _, chain := range energy {
		if len(chain) < 2 {
			continue
		}
		denom := stats.Variance(chain)
		if denom < 1e-10 {
			perChain = append(perChain, 0)
			continue
		}
		perChain = append(perChain, stats.Variance(stats.Diff(chain))/denom)
	}
	if len(perChain) == 0 {
		return EBFMI{PerChain: []float64{}}
	}
	return EBFMI{
		Min:      stats.Min(perChain),
		Mean:     stats.Mean(perChain),
		PerChain: perChain,
	}
}

func (r *Report) collectWarnings() {
	if r.Convergence.MaxRhat > RhatThreshold {
		r.Warnings = append(r.Warnings, fmt.Sprintf(
			"High R-hat (%.4f > %.2f): chains may not have converged", r.Convergence.MaxRhat, RhatThreshold))
	}
	if !math.IsInf(r.SamplingQuality.MinESSBulk, 1) && r.SamplingQuality.MinESSBulk < ESSThreshold {
		r.Warnings = append(r.Warnings, fmt.Sprintf(
			"Low bulk ESS (%.0f < %.0f): posterior means may be unstable", r.SamplingQuality.MinESSBulk, ESSThreshold))
	}
	if !math.IsInf(r.SamplingQuality.MinESSTail, 1) && r.SamplingQuality.MinESSTail < ESSThreshold {
		r.Warnings = append(r.Warnings, fmt.Sprintf(
			"Low tail ESS (%.0f < %.0f): interval estimates may be unstable", r.SamplingQuality.MinESSTail, ESSThreshold))
	}
	if r.SamplingQuality.NDivergences > 0 {
		r.Warnings = append(r.Warnings, fmt.Sprintf(
			"%d divergent transitions (%.2f%% of draws)", r.SamplingQuality.NDivergences, 100*r.SamplingQuality.DivergenceRate))
	}
	if len(r.SamplingQuality.EBFMI.PerChain) > 0 && r.SamplingQuality.EBFMI.Min < EBFMIThreshold {
		r.Warnings = append(r.Warnings, fmt.Sprintf(
			"Low E-BFMI (%.3f < %.1f): energy transitions are inefficient", r.SamplingQuality.EBFMI.Min, EBFMIThreshold))
	}
	if r.SamplingQuality.MaxTreeDepthRate > TreeDepthRateThreshold {
		r.Warnings = append(r.Warnings, fmt.Sprintf(
			"Max tree depth hit on %.2f%% of draws", 100*r.SamplingQuality.MaxTreeDepthRate))
	}
}
