package features

import (
	"fmt"
	"time"

	"uplift/internal/canonical"
	"uplift/internal/run"
	"uplift/internal/services"
)

// FeaturePrefix marks driver and control columns in the design matrix; every
// prefixed column is standardized and carries a scaler entry.
const FeaturePrefix = "X_"

// Matrix holds the feature columns and the target for the modeling window.
type Matrix struct {
	PeriodStart []time.Time          `json:"period_start"`
	Y           []float64            `json:"y"`
	YLog        []float64            `json:"y_log"`
	Columns     map[string][]float64 `json:"columns"`
}

// Metadata describes the feature columns that were produced.
type Metadata struct {
	NPeriods            int      `json:"n_periods"`
	DriverFeatures      []string `json:"driver_features"`
	ControlFeatures     []string `json:"control_features"`
	SeasonalityFeatures []string `json:"seasonality_features"`
	TrendFeatures       []string `json:"trend_features"`
	Target              string   `json:"target"`
	Warnings            []string `json:"warnings,omitempty"`
}

// Result couples the design matrix with its scaler and metadata.
type Result struct {
	Matrix   Matrix
	Scaler   map[string]ColumnScaler
	Metadata Metadata
}

// Build produces the design matrix for a run from the canonical series.
// Requested driver or control columns that are absent from the series are
// recorded as warnings and skipped; the build fails only when no activity
// driver survives.
func Build(series *canonical.Series, info *canonical.ColumnInfo, spec run.Spec) (*Result, error) {
	offset := windowOffset(series.Len(), spec.Grain, spec.Windows)
	n := series.Len() - offset

	target := info.Target
	targetVals, ok := series.Column(target)
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "features", "build",
			fmt.Sprintf("target column %q missing from canonical data", target), nil)
	}

	result := &Result{
		Matrix: Matrix{
			PeriodStart: append([]time.Time(nil), series.PeriodStart[offset:]...),
			Y:           append([]float64(nil), targetVals[offset:]...),
			Columns:     make(map[string][]float64),
		},
		Scaler: make(map[string]ColumnScaler),
	}
	result.Matrix.YLog = LogTransform(result.Matrix.Y)

	var warnings []string

	drivers := spec.Drivers
	if len(drivers) == 0 {
		drivers = info.Drivers
	}
	driverFeatures := make([]string, 0, len(drivers))
	for _, driver := range drivers {
		raw, ok := series.Column(driver)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("driver column '%s' not found; skipping", driver))
			continue
		}
		x := append([]float64(nil), raw[offset:]...)
		x = Adstock(x, decayFor(spec.FeatureConfig.Adstock, driver))
		if spec.FeatureConfig.Saturation.IsEnabled() {
			x = HillSaturation(x, spec.FeatureConfig.Saturation.K, spec.FeatureConfig.Saturation.S)
		}
		name := FeaturePrefix + driver
		result.Matrix.Columns[name] = x
		driverFeatures = append(driverFeatures, name)
	}
	if len(driverFeatures) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "features", "build",
			"no activity driver columns available", nil)
	}

	controls := spec.Controls
	if len(controls) == 0 {
		controls = info.Controls
	}
	controlFeatures := make([]string, 0, len(controls))
	for _, control := range controls {
		raw, ok := series.Column(control)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("control column '%s' not found; skipping", control))
			continue
		}
		name := FeaturePrefix + control
		result.Matrix.Columns[name] = append([]float64(nil), raw[offset:]...)
		controlFeatures = append(controlFeatures, name)
	}

	var seasonalityFeatures []string
	if cfg := spec.FeatureConfig.Seasonality; cfg.IsEnabled() && cfg.K > 0 {
		names, columns := FourierTerms(n, cfg.K, spec.Grain.PeriodsPerYear())
		for i, name := range names {
			result.Matrix.Columns[name] = columns[i]
		}
		seasonalityFeatures = names
	}

	var trendFeatures []string
	if spec.FeatureConfig.Trend.IsEnabled() {
		result.Matrix.Columns["trend"] = TrendTerm(n)
		trendFeatures = []string{"trend"}
	}

	// Every prefixed column is z-scored; seasonality and trend are already
	// on a unit scale.
	for _, name := range driverFeatures {
		result.Scaler[name] = Standardize(result.Matrix.Columns[name])
	}
	for _, name := range controlFeatures {
		result.Scaler[name] = Standardize(result.Matrix.Columns[name])
	}

	result.Metadata = Metadata{
		NPeriods:            n,
		DriverFeatures:      driverFeatures,
		ControlFeatures:     controlFeatures,
		SeasonalityFeatures: seasonalityFeatures,
		TrendFeatures:       trendFeatures,
		Target:              "y_log",
		Warnings:            warnings,
	}
	return result, nil
}

// ControlNames returns the ordered gamma-coefficient columns: controls first,
// then seasonality terms, then the trend.
func (m Metadata) ControlNames() []string {
	names := make([]string, 0, len(m.ControlFeatures)+len(m.SeasonalityFeatures)+len(m.TrendFeatures))
	names = append(names, m.ControlFeatures...)
	names = append(names, m.SeasonalityFeatures...)
	names = append(names, m.TrendFeatures...)
	return names
}

func decayFor(cfg run.AdstockConfig, driver string) float64 {
	if decay, ok := cfg.PerChannel[driver]; ok {
		return decay
	}
	return cfg.DecayDefault
}

// windowOffset trims the series to the carryover plus estimation window,
// keeping the most recent periods.
func windowOffset(total int, grain run.Grain, w run.Windows) int {
	months := w.CarryoverMonths + w.EstimationMonths
	if months <= 0 {
		return 0
	}
	keep := int(float64(months) * grain.PeriodsPerMonth())
	if keep <= 0 || keep >= total {
		return 0
	}
	return total - keep
}
