package run

import (
	"fmt"
	"strings"
)

// Grain is the time-bucket size of a series.
type Grain string

const (
	GrainWeek  Grain = "WEEK"
	GrainMonth Grain = "MONTH"
)

// PeriodsPerYear returns the seasonal periodicity for the grain.
func (g Grain) PeriodsPerYear() int {
	if g == GrainMonth {
		return 12
	}
	return 52
}

// PeriodsPerMonth returns how many periods one month spans at the grain.
func (g Grain) PeriodsPerMonth() float64 {
	if g == GrainMonth {
		return 1
	}
	return 52.0 / 12.0
}

// AdstockConfig controls geometric carryover decay.
type AdstockConfig struct {
	DecayDefault float64            `json:"decay_default"`
	PerChannel   map[string]float64 `json:"per_channel,omitempty"`
	// MaxLag is accepted for compatibility; the carryover recursion is
	// full-history and does not truncate.
	MaxLag int `json:"max_lag"`
}

// SaturationConfig controls the optional Hill diminishing-returns curve.
// Enabled defaults to false when omitted; saturation must be opted into.
type SaturationConfig struct {
	Enabled *bool   `json:"enabled,omitempty"`
	Type    string  `json:"type"`
	K       float64 `json:"K"`
	S       float64 `json:"S"`
}

// IsEnabled reports whether the saturation transform applies.
func (c SaturationConfig) IsEnabled() bool { return c.Enabled != nil && *c.Enabled }

// SeasonalityConfig controls Fourier seasonality features.
// Enabled defaults to true when omitted.
type SeasonalityConfig struct {
	Enabled *bool `json:"enabled,omitempty"`
	K       int   `json:"K"`
}

// IsEnabled reports whether seasonality features are generated.
func (c SeasonalityConfig) IsEnabled() bool { return c.Enabled == nil || *c.Enabled }

// TrendConfig controls the standardized linear trend feature.
// Enabled defaults to true when omitted.
type TrendConfig struct {
	Enabled *bool `json:"enabled,omitempty"`
}

// IsEnabled reports whether the trend feature is generated.
func (c TrendConfig) IsEnabled() bool { return c.Enabled == nil || *c.Enabled }

// FeatureConfig groups the feature-transform configuration of a run.
type FeatureConfig struct {
	Adstock     AdstockConfig     `json:"adstock"`
	Saturation  SaturationConfig  `json:"saturation"`
	Seasonality SeasonalityConfig `json:"seasonality"`
	Trend       TrendConfig       `json:"trend"`
}

// Windows sizes the modeling time window in months.
type Windows struct {
	CarryoverMonths  int `json:"carryover_months"`
	EstimationMonths int `json:"estimation_months"`
}

// Sampling configures the external posterior sampler.
type Sampling struct {
	Draws        int     `json:"draws"`
	Tune         int     `json:"tune"`
	Chains       int     `json:"chains"`
	TargetAccept float64 `json:"target_accept"`
	RandomSeed   int64   `json:"random_seed"`
	MaxTreeDepth int     `json:"max_treedepth"`
}

// Spec is the immutable configuration of one run. It is created once at run
// creation and never mutated afterwards.
type Spec struct {
	DatasetID     string        `json:"dataset_id"`
	Grain         Grain         `json:"grain"`
	TargetCol     string        `json:"target_col"`
	Drivers       []string      `json:"drivers"`
	Controls      []string      `json:"controls"`
	FeatureConfig FeatureConfig `json:"feature_config"`
	Windows       Windows       `json:"windows"`
	Sampling      Sampling      `json:"sampling"`
}

// Defaults mirror the original modeling service.
const (
	DefaultTargetCol        = "sales"
	DefaultAdstockDecay     = 0.5
	DefaultAdstockMaxLag    = 13
	DefaultSaturationK      = 0.5
	DefaultSaturationS      = 1.0
	DefaultSeasonalityK     = 2
	DefaultCarryoverMonths  = 12
	DefaultEstimationMonths = 12
)

// ApplyDefaults fills unset spec fields with repository defaults.
func (s *Spec) ApplyDefaults() {
	if s.Grain == "" {
		s.Grain = GrainWeek
	}
	if strings.TrimSpace(s.TargetCol) == "" {
		s.TargetCol = DefaultTargetCol
	}
	if s.FeatureConfig.Adstock.DecayDefault == 0 {
		s.FeatureConfig.Adstock.DecayDefault = DefaultAdstockDecay
	}
	if s.FeatureConfig.Adstock.MaxLag == 0 {
		s.FeatureConfig.Adstock.MaxLag = DefaultAdstockMaxLag
	}
	if s.FeatureConfig.Saturation.Type == "" {
		s.FeatureConfig.Saturation.Type = "hill"
	}
	if s.FeatureConfig.Saturation.K == 0 {
		s.FeatureConfig.Saturation.K = DefaultSaturationK
	}
	if s.FeatureConfig.Saturation.S == 0 {
		s.FeatureConfig.Saturation.S = DefaultSaturationS
	}
	if s.FeatureConfig.Seasonality.K == 0 {
		s.FeatureConfig.Seasonality.K = DefaultSeasonalityK
	}
	if s.Windows.CarryoverMonths == 0 {
		s.Windows.CarryoverMonths = DefaultCarryoverMonths
	}
	if s.Windows.EstimationMonths == 0 {
		s.Windows.EstimationMonths = DefaultEstimationMonths
	}
}

// Validate rejects specs that cannot produce a model.
func (s *Spec) Validate() error {
	if strings.TrimSpace(s.DatasetID) == "" {
		return fmt.Errorf("run spec: dataset_id is required")
	}
	switch s.Grain {
	case GrainWeek, GrainMonth:
	default:
		return fmt.Errorf("run spec: grain must be WEEK or MONTH, got %q", s.Grain)
	}
	if s.FeatureConfig.Adstock.DecayDefault < 0 || s.FeatureConfig.Adstock.DecayDefault > 1 {
		return fmt.Errorf("run spec: adstock decay_default must be in [0, 1], got %v", s.FeatureConfig.Adstock.DecayDefault)
	}
	for channel, decay := range s.FeatureConfig.Adstock.PerChannel {
		if decay < 0 || decay > 1 {
			return fmt.Errorf("run spec: adstock decay for %q must be in [0, 1], got %v", channel, decay)
		}
	}
	if s.Windows.CarryoverMonths < 0 || s.Windows.EstimationMonths <= 0 {
		return fmt.Errorf("run spec: windows must cover a positive estimation span")
	}
	return nil
}
