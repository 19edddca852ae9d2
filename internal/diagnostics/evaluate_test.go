package diagnostics

import (
	"math"
	"strings"
	"testing"

	"uplift/internal/run"
	"uplift/internal/sampler"
)

func cleanPosterior(seed uint64, chains, draws int) *sampler.Posterior {
	intercept := normalChains(seed, chains, draws)
	sigma := normalChains(seed+1, chains, draws)
	nu := normalChains(seed+2, chains, draws)
	sigmaBeta := normalChains(seed+3, chains, draws)

	beta := make([][][]float64, chains)
	gamma := make([][][]float64, chains)
	betaSrc := normalChains(seed+4, chains, draws)
	gammaSrc := normalChains(seed+5, chains, draws)
	for c := 0; c < chains; c++ {
		beta[c] = make([][]float64, draws)
		gamma[c] = make([][]float64, draws)
		for d := 0; d < draws; d++ {
			beta[c][d] = []float64{betaSrc[c][d]}
			gamma[c][d] = []float64{gammaSrc[c][d]}
		}
	}
	return &sampler.Posterior{
		Intercept: intercept,
		Beta:      beta,
		Gamma:     gamma,
		Sigma:     sigma,
		Nu:        nu,
		SigmaBeta: sigmaBeta,
	}
}

func cleanStats(chains, draws int) *sampler.SampleStats {
	diverging := make([][]bool, chains)
	energy := make([][]float64, chains)
	treeSize := make([][]float64, chains)
	g := &lcg{state: 99}
	for c := 0; c < chains; c++ {
		diverging[c] = make([]bool, draws)
		energy[c] = make([]float64, draws)
		treeSize[c] = make([]float64, draws)
		for d := 0; d < draws; d++ {
			energy[c][d] = invNormCDF(clamp01(g.next()))
			treeSize[c][d] = 7
		}
	}
	return &sampler.SampleStats{Diverging: diverging, Energy: energy, TreeSize: treeSize}
}

func clamp01(u float64) float64 {
	if u <= 0 || u >= 1 {
		return 0.5
	}
	return u
}

func testSampling() run.Sampling {
	return run.Sampling{Draws: 1000, Tune: 1000, Chains: 2, TargetAccept: 0.9, MaxTreeDepth: 10}
}

func TestEvaluateCleanRunPasses(t *testing.T) {
	post := cleanPosterior(11, 2, 1000)
	report := Evaluate("run_abc", post, cleanStats(2, 1000), testSampling())

	if report.OverallStatus != StatusPass {
		t.Fatalf("status = %s, warnings = %v", report.OverallStatus, report.Warnings)
	}
	if report.RunID != "run_abc" {
		t.Fatalf("run id = %q", report.RunID)
	}
	if report.SamplingSummary.TotalDraws != 2000 || report.SamplingSummary.DrawsPerChain != 1000 {
		t.Fatalf("sampling summary = %#v", report.SamplingSummary)
	}
	if report.SamplingQuality.NDivergences != 0 || report.SamplingQuality.DivergenceRate != 0 {
		t.Fatalf("unexpected divergences: %#v", report.SamplingQuality)
	}
	if _, ok := report.Convergence.Rhat["beta"]; !ok {
		t.Fatalf("missing beta rhat: %#v", report.Convergence.Rhat)
	}
	if report.Convergence.MaxRhat > RhatThreshold {
		t.Fatalf("max rhat = %v", report.Convergence.MaxRhat)
	}
}

func TestEvaluateFlagsDivergences(t *testing.T) {
	post := cleanPosterior(13, 2, 1000)
	st := cleanStats(2, 1000)
	st.Diverging[0][5] = true
	st.Diverging[1][17] = true

	report := Evaluate("run_abc", post, st, testSampling())
	if report.OverallStatus != StatusWarning {
		t.Fatalf("status = %s, want WARNING", report.OverallStatus)
	}
	if report.SamplingQuality.NDivergences != 2 {
		t.Fatalf("n_divergences = %d, want 2", report.SamplingQuality.NDivergences)
	}
	if report.SamplingQuality.DivergenceRate != 0.001 {
		t.Fatalf("divergence_rate = %v, want 0.001", report.SamplingQuality.DivergenceRate)
	}
	found := false
	for _, w := range report.Warnings {
		if strings.Contains(w, "divergent transitions") {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing divergence warning: %v", report.Warnings)
	}
}

func TestEvaluateFlagsNonConvergence(t *testing.T) {
	post := cleanPosterior(17, 2, 1000)
	for i := range post.Intercept[1] {
		post.Intercept[1][i] += 50
	}
	report := Evaluate("run_abc", post, cleanStats(2, 1000), testSampling())
	if report.OverallStatus != StatusWarning {
		t.Fatalf("status = %s, want WARNING", report.OverallStatus)
	}
	if report.Convergence.MaxRhat <= RhatThreshold {
		t.Fatalf("max rhat = %v, want above threshold", report.Convergence.MaxRhat)
	}
}

func TestEvaluateTreeDepthSaturation(t *testing.T) {
	post := cleanPosterior(19, 2, 1000)
	st := cleanStats(2, 1000)
	// A tree of size 2^max_treedepth means the depth limit was reached;
	// one below stays unflagged.
	for d := 0; d < 50; d++ {
		st.TreeSize[0][d] = 1024
	}
	st.TreeSize[0][60] = 1023

	report := Evaluate("run_abc", post, st, testSampling())
	if got := report.SamplingQuality.MaxTreeDepthRate; got != 50.0/2000.0 {
		t.Fatalf("max_tree_depth_rate = %v, want 0.025", got)
	}
	if report.OverallStatus != StatusWarning {
		t.Fatalf("status = %s, want WARNING", report.OverallStatus)
	}
}

func TestComputeEBFMI(t *testing.T) {
	// Alternating energy: var(energy)=1/4; the seven diffs alternate +-1
	// with mean 1/7, so var(diff)=48/49 and E-BFMI = 192/49.
	energy := [][]float64{{0, 1, 0, 1, 0, 1, 0, 1}}
	got := computeEBFMI(energy)
	if len(got.PerChain) != 1 || math.Abs(got.PerChain[0]-192.0/49.0) > 1e-12 {
		t.Fatalf("ebfmi = %#v, want [192/49]", got)
	}

	// A monotone ramp has constant differences: E-BFMI 0.
	ramp := make([]float64, 100)
	for i := range ramp {
		ramp[i] = float64(i)
	}
	got = computeEBFMI([][]float64{ramp})
	if got.Min != 0 {
		t.Fatalf("ramp ebfmi = %#v, want 0", got)
	}
}

func TestWarningThresholdsAreStrict(t *testing.T) {
	base := func() *Report {
		return &Report{
			Convergence: Convergence{MaxRhat: 1.0},
			SamplingQuality: SamplingQuality{
				MinESSBulk: 1000,
				MinESSTail: 1000,
				EBFMI:      EBFMI{Min: 1, PerChain: []float64{1}},
			},
		}
	}

	r := base()
	r.Convergence.MaxRhat = RhatThreshold
	r.SamplingQuality.MinESSBulk = ESSThreshold
	r.SamplingQuality.MinESSTail = ESSThreshold
	r.SamplingQuality.EBFMI.Min = EBFMIThreshold
	r.SamplingQuality.MaxTreeDepthRate = TreeDepthRateThreshold
	r.collectWarnings()
	if len(r.Warnings) != 0 {
		t.Fatalf("boundary values must not warn: %v", r.Warnings)
	}

	r = base()
	r.Convergence.MaxRhat = 1.0101
	r.SamplingQuality.MinESSBulk = 399.9
	r.SamplingQuality.MinESSTail = 399.9
	r.SamplingQuality.EBFMI.Min = 0.19
	r.SamplingQuality.MaxTreeDepthRate = 0.011
	r.collectWarnings()
	if len(r.Warnings) != 5 {
		t.Fatalf("expected 5 warnings, got %v", r.Warnings)
	}
}

func TestSummarize(t *testing.T) {
	post := cleanPosterior(23, 2, 500)
	summary := Summarize(post, []string{"X_act_tv"})

	p, ok := summary.Parameters["beta[0]"]
	if !ok {
		t.Fatalf("missing beta[0]: %v", summary.Parameters)
	}
	if p.HDILow >= p.HDIHigh {
		t.Fatalf("hdi inverted: %v..%v", p.HDILow, p.HDIHigh)
	}
	if p.ESSBulk <= 0 || p.RHat <= 0 {
		t.Fatalf("bad summary stats: %#v", p)
	}
	if _, ok := summary.Parameters["gamma[0]"]; !ok {
		t.Fatal("missing gamma[0]")
	}
	if _, ok := summary.Parameters["intercept"]; !ok {
		t.Fatal("missing intercept")
	}
	effect, ok := summary.ChannelEffects["X_act_tv"]
	if !ok {
		t.Fatalf("missing channel effect: %v", summary.ChannelEffects)
	}
	if effect != p.Mean {
		t.Fatalf("channel effect %v != beta mean %v", effect, p.Mean)
	}
}

func TestHDICoversNarrowestWindow(t *testing.T) {
	// 100 evenly spaced draws: a 94% window spans 93 steps.
	draws := make([]float64, 100)
	for i := range draws {
		draws[i] = float64(i)
	}
	low, high := hdi(draws, 0.94)
	if high-low != 93 {
		t.Fatalf("hdi width = %v, want 93", high-low)
	}
}
