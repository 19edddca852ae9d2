// Package diagnostics evaluates sampling quality for a finished run.
//
// It computes split-chain R-hat, rank-normalized bulk and tail effective
// sample sizes, divergence counts, per-chain E-BFMI, and the maximum
// tree-depth saturation rate, then rolls them into a PASS/WARNING report.
// A run is never failed for poor diagnostics; the report only warns.
package diagnostics
