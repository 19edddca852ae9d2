// Package contrib decomposes predicted sales into baseline and per-channel
// contributions on the original sales scale.
//
// The model is fit in log space, so contributions are computed by
// exponentiating partial linear predictors: each channel's contribution is
// the lift over the intercept-plus-controls baseline attributable to that
// channel alone. Channel keys drop the feature prefix so they read as the
// raw driver names.
package contrib

import (
	"fmt"
	"math"
	"strings"
	"time"

	"uplift/internal/features"
	"uplift/internal/sampler"
	"uplift/internal/services"
	"uplift/internal/stats"
)

const epsilon = 1e-10

// Coefficients are the posterior means used for the point decomposition.
type Coefficients struct {
	Intercept float64
	Beta      []float64
	Gamma     []float64
}

// Means averages the posterior draws into point coefficients.
func Means(post *sampler.Posterior) Coefficients {
	coef := Coefficients{Intercept: meanScalar(post.Intercept)}
	coef.Beta = meanColumns(post.Beta)
	coef.Gamma = meanColumns(post.Gamma)
	return coef
}

func meanScalar(draws [][]float64) float64 {
	var sum float64
	var count int
	for _, chain := range draws {
		sum += stats.Sum(chain)
		count += len(chain)
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func meanColumns(draws [][][]float64) []float64 {
	if len(draws) == 0 || len(draws[0]) == 0 {
		return nil
	}
	cols := len(draws[0][0])
	sums := make([]float64, cols)
	var count int
	for _, chain := range draws {
		for _, draw := range chain {
			for c := 0; c < cols; c++ {
				sums[c] += draw[c]
			}
		}
		count += len(chain)
	}
	for c := range sums {
		sums[c] /= float64(count)
	}
	return sums
}

// ChannelName strips the feature prefix from a driver feature, recovering
// the raw column name used for spend lookups and report keys.
func ChannelName(feature string) string {
	return strings.TrimPrefix(feature, features.FeaturePrefix)
}

// Row is one period of the contribution decomposition.
type Row struct {
	PeriodStart       string             `json:"period_start"`
	YActual           float64            `json:"y_actual"`
	YPredicted        float64            `json:"y_predicted"`
	BaselineIntercept float64            `json:"baseline_intercept"`
	BaselineControls  float64            `json:"baseline_controls"`
	Channels          map[string]float64 `json:"channels"`
}

// BaselineSummary totals the non-media portion of predicted sales.
type BaselineSummary struct {
	InterceptTotal float64 `json:"intercept_total"`
	ControlsTotal  float64 `json:"controls_total"`
	Total          float64 `json:"total"`
	PercentOfSales float64 `json:"percent_of_sales"`
}

// ChannelSummary totals one channel's contribution.
type ChannelSummary struct {
	TotalContribution float64 `json:"total_contribution"`
	MeanContribution  float64 `json:"mean_contribution"`
	PercentOfSales    float64 `json:"percent_of_sales"`
}

// Summary is the persisted contribution_summary artifact.
type Summary struct {
	TotalActualSales    float64                   `json:"total_actual_sales"`
	TotalPredictedSales float64                   `json:"total_predicted_sales"`
	MAPE                float64                   `json:"mape"`
	Baseline            BaselineSummary           `json:"baseline"`
	Channels            map[string]ChannelSummary `json:"channels"`
}

// FittedRow pairs one period's actuals with the model prediction.
type FittedRow struct {
	PeriodStart string  `json:"period_start"`
	YActual     float64 `json:"y_actual"`
	YPredicted  float64 `json:"y_predicted"`
	Residual    float64 `json:"residual"`
}

// FitMetrics summarize prediction quality on the original sales scale.
type FitMetrics struct {
	MAPE float64 `json:"mape"`
	RMSE float64 `json:"rmse"`
	R2   float64 `json:"r2"`
}

// Decomposition bundles every contribution output for a run.
type Decomposition struct {
	Rows       []Row
	Summary    Summary
	Fitted     []FittedRow
	FitMetrics FitMetrics
}

// Compute decomposes predicted sales for every period in the feature window.
func Compute(result *features.Result, coef Coefficients) (*Decomposition, error) {
	matrix := &result.Matrix
	channelFeatures := result.Metadata.DriverFeatures
	controlFeatures := result.Metadata.ControlNames()

	if len(coef.Beta) != len(channelFeatures) {
		return nil, services.Wrap(services.ErrValidation, "contributions", "decompose",
			fmt.Sprintf("posterior has %d beta coefficients for %d channels", len(coef.Beta), len(channelFeatures)), nil)
	}
	if len(coef.Gamma) != len(controlFeatures) {
		return nil, services.Wrap(services.ErrValidation, "contributions", "decompose",
			fmt.Sprintf("posterior has %d gamma coefficients for %d controls", len(coef.Gamma), len(controlFeatures)), nil)
	}

	n := len(matrix.Y)
	dec := &Decomposition{Rows: make([]Row, 0, n), Fitted: make([]FittedRow, 0, n)}

	channelTotals := make(map[string]float64, len(channelFeatures))
	var (
		interceptTotal float64
		controlsTotal  float64
		absPctSum      float64
		residSqSum     float64
	)

	predicted := make([]float64, n)
	for t := 0; t < n; t++ {
		var controlLog float64
		for j, name := range controlFeatures {
			controlLog += coef.Gamma[j] * matrix.Columns[name][t]
		}
		baselineLog := coef.Intercept + controlLog

		baselineIntercept := math.Exp(coef.Intercept) - 1
		baselineControls := math.Exp(baselineLog) - math.Exp(coef.Intercept)

		var mediaLog float64
		channels := make(map[string]float64, len(channelFeatures))
		for c, name := range channelFeatures {
			effect := coef.Beta[c] * matrix.Columns[name][t]
			mediaLog += effect
			contribution := math.Exp(baselineLog+effect) - math.Exp(baselineLog)
			channel := ChannelName(name)
			channels[channel] = contribution
			channelTotals[channel] += contribution
		}

		yPred := math.Exp(baselineLog+mediaLog) - 1
		predicted[t] = yPred
		yActual := matrix.Y[t]
		residual := yActual - yPred

		interceptTotal += baselineIntercept
		controlsTotal += baselineControls
		absPctSum += math.Abs(residual) / (yActual + epsilon)
		residSqSum += residual * residual

		period := formatPeriod(matrix.PeriodStart, t)
		dec.Rows = append(dec.Rows, Row{
			PeriodStart:       period,
			YActual:           yActual,
			YPredicted:        yPred,
			BaselineIntercept: baselineIntercept,
			BaselineControls:  baselineControls,
			Channels:          channels,
		})
		dec.Fitted = append(dec.Fitted, FittedRow{
			PeriodStart: period,
			YActual:     yActual,
			YPredicted:  yPred,
			Residual:    residual,
		})
	}

	totalActual := stats.Sum(matrix.Y)
	totalPredicted := stats.Sum(predicted)
	mape := 0.0
	if n > 0 {
		mape = absPctSum / float64(n) * 100
	}

	pct := func(total float64) float64 {
		return total / (totalActual + epsilon) * 100
	}

	channelSummaries := make(map[string]ChannelSummary, len(channelTotals))
	for channel, total := range channelTotals {
		channelSummaries[channel] = ChannelSummary{
			TotalContribution: total,
			MeanContribution:  total / float64(n),
			PercentOfSales:    pct(total),
		}
	}

	dec.Summary = Summary{
		TotalActualSales:    totalActual,
		TotalPredictedSales: totalPredicted,
		MAPE:                mape,
		Baseline: BaselineSummary{
			InterceptTotal: interceptTotal,
			ControlsTotal:  controlsTotal,
			Total:          interceptTotal + controlsTotal,
			PercentOfSales: pct(interceptTotal + controlsTotal),
		},
		Channels: channelSummaries,
	}

	dec.FitMetrics = FitMetrics{
		MAPE: mape,
		RMSE: rmse(residSqSum, n),
		R2:   rSquared(matrix.Y, residSqSum),
	}
	return dec, nil
}

func formatPeriod(periods []time.Time, t int) string {
	if t < len(periods) {
		return periods[t].Format("2006-01-02")
	}
	return ""
}

func rmse(residSqSum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return math.Sqrt(residSqSum / float64(n))
}

// rSquared measures explained variance against the series' own mean.
func rSquared(actual []float64, residSqSum float64) float64 {
	mean := stats.Mean(actual)
	var totalSq float64
	for _, y := range actual {
		d := y - mean
		totalSq += d * d
	}
	if totalSq < epsilon {
		return 0
	}
	return 1 - residSqSum/totalSq
}
