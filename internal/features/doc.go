// Package features builds the model design matrix from a canonical series.
//
// The build trims the series to the configured time window, log-transforms
// the target, applies adstock carryover and optional Hill saturation to each
// activity driver, appends Fourier seasonality terms and a standardized
// trend, and z-scores the driver and control features. The scaler and
// feature metadata are returned alongside the matrix so downstream stages
// can invert or audit the transforms.
package features
