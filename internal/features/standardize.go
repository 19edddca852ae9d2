package features

import "uplift/internal/stats"

// ColumnScaler records the mean and standard deviation used to z-score a
// feature column, so contributions can be interpreted on the original scale.
type ColumnScaler struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// Standardize z-scores x in place using the sample standard deviation.
// A near-zero standard deviation is replaced by 1.0, leaving a constant
// column centered but unscaled.
func Standardize(x []float64) ColumnScaler {
	mean := stats.Mean(x)
	std := stats.SampleStdDev(x)
	if std < epsilon {
		std = 1.0
	}
	for i := range x {
		x[i] = (x[i] - mean) / std
	}
	return ColumnScaler{Mean: mean, Std: std}
}
