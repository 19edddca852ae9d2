// Package sampler defines the boundary to the external posterior sampling
// engine and the draw layout shared by diagnostics and decomposition.
package sampler

import (
	"context"

	"uplift/internal/features"
	"uplift/internal/run"
)

// Priors parameterize the regression model. Scales follow the shipped model:
// intercept ~ Normal(0, InterceptSD), sigma_beta ~ HalfNormal(SigmaBetaSD),
// beta ~ HalfNormal(sigma_beta), gamma ~ Normal(0, GammaSD),
// sigma ~ HalfNormal(SigmaSD), nu ~ Exponential(1/NuMean).
type Priors struct {
	InterceptSD float64 `json:"intercept_sd"`
	SigmaBetaSD float64 `json:"sigma_beta_sd"`
	GammaSD     float64 `json:"gamma_sd"`
	SigmaSD     float64 `json:"sigma_sd"`
	NuMean      float64 `json:"nu_mean"`
}

// DefaultPriors returns the fixed prior scales of the shipped model.
func DefaultPriors() Priors {
	return Priors{
		InterceptSD: 2,
		SigmaBetaSD: 0.5,
		GammaSD:     0.5,
		SigmaSD:     1,
		NuMean:      10,
	}
}

// Design is the regression input: the log target plus the channel and control
// matrices in row-major [period][column] order.
type Design struct {
	YLog         []float64   `json:"y_log"`
	Channels     [][]float64 `json:"channels"`
	Controls     [][]float64 `json:"controls"`
	ChannelNames []string    `json:"channel_names"`
	ControlNames []string    `json:"control_names"`
}

// NewDesign assembles the design from a built feature matrix. Channel columns
// keep the driver-feature order; control columns follow controls, seasonality,
// then trend.
func NewDesign(result *features.Result) Design {
	n := result.Metadata.NPeriods
	channelNames := result.Metadata.DriverFeatures
	controlNames := result.Metadata.ControlNames()

	design := Design{
		YLog:         result.Matrix.YLog,
		Channels:     make([][]float64, n),
		Controls:     make([][]float64, n),
		ChannelNames: channelNames,
		ControlNames: controlNames,
	}
	for t := 0; t < n; t++ {
		row := make([]float64, len(channelNames))
		for c, name := range channelNames {
			row[c] = result.Matrix.Columns[name][t]
		}
		design.Channels[t] = row

		ctrl := make([]float64, len(controlNames))
		for c, name := range controlNames {
			ctrl[c] = result.Matrix.Columns[name][t]
		}
		design.Controls[t] = ctrl
	}
	return design
}

// Request is one sampling job submitted to the engine.
type Request struct {
	Design   Design       `json:"design"`
	Priors   Priors       `json:"priors"`
	Sampling run.Sampling `json:"sampling"`
}

// Posterior holds the draws in [chain][draw] layout; beta and gamma carry an
// extra trailing column dimension.
type Posterior struct {
	Intercept [][]float64   `json:"intercept"`
	Beta      [][][]float64 `json:"beta"`
	Gamma     [][][]float64 `json:"gamma"`
	Sigma     [][]float64   `json:"sigma"`
	Nu        [][]float64   `json:"nu"`
	SigmaBeta [][]float64   `json:"sigma_beta"`
}

// Chains returns the number of chains in the posterior.
func (p *Posterior) Chains() int { return len(p.Intercept) }

// DrawsPerChain returns the number of kept draws per chain.
func (p *Posterior) DrawsPerChain() int {
	if len(p.Intercept) == 0 {
		return 0
	}
	return len(p.Intercept[0])
}

// SampleStats carries the per-draw sampler statistics used by diagnostics.
type SampleStats struct {
	Diverging [][]bool    `json:"diverging"`
	Energy    [][]float64 `json:"energy"`
	TreeSize  [][]float64 `json:"tree_size"`
}

// Result is the engine's response to a sampling request.
type Result struct {
	Posterior Posterior   `json:"posterior"`
	Stats     SampleStats `json:"sample_stats"`
}

// ModelMetadata records what was sampled, persisted alongside the posterior.
type ModelMetadata struct {
	NChannels     int      `json:"n_channels"`
	NControls     int      `json:"n_controls"`
	NObservations int      `json:"n_observations"`
	ChannelNames  []string `json:"channel_names"`
	ControlNames  []string `json:"control_names"`
	Draws         int      `json:"draws"`
	Tune          int      `json:"tune"`
	Chains        int      `json:"chains"`
	TargetAccept  float64  `json:"target_accept"`
	RandomSeed    int64    `json:"random_seed"`
	MaxTreeDepth  int      `json:"max_treedepth"`
}

// NewModelMetadata derives the model metadata for a request.
func NewModelMetadata(req Request) ModelMetadata {
	return ModelMetadata{
		NChannels:     len(req.Design.ChannelNames),
		NControls:     len(req.Design.ControlNames),
		NObservations: len(req.Design.YLog),
		ChannelNames:  req.Design.ChannelNames,
		ControlNames:  req.Design.ControlNames,
		Draws:         req.Sampling.Draws,
		Tune:          req.Sampling.Tune,
		Chains:        req.Sampling.Chains,
		TargetAccept:  req.Sampling.TargetAccept,
		RandomSeed:    req.Sampling.RandomSeed,
		MaxTreeDepth:  req.Sampling.MaxTreeDepth,
	}
}

// Engine produces posterior draws for a sampling request.
type Engine interface {
	Sample(ctx context.Context, req Request) (*Result, error)
}
