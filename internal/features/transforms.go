package features

import "math"

const epsilon = 1e-10

// Adstock applies geometric carryover over the full history of x:
// y[0] = x[0], y[t] = x[t] + decay*y[t-1].
func Adstock(x []float64, decay float64) []float64 {
	if len(x) == 0 {
		return nil
	}
	out := make([]float64, len(x))
	out[0] = x[0]
	for t := 1; t < len(x); t++ {
		out[t] = x[t] + decay*out[t-1]
	}
	return out
}

// HillSaturation applies the Hill diminishing-returns curve
// s(x) = x^S / (K^S + x^S). Negative inputs are clamped to zero and the
// denominator is floored to keep the curve defined at x = 0 with K = 0.
func HillSaturation(x []float64, k, s float64) []float64 {
	out := make([]float64, len(x))
	ks := math.Pow(k, s)
	for i, v := range x {
		if v < 0 {
			v = 0
		}
		xs := math.Pow(v, s)
		denom := ks + xs
		if denom < epsilon {
			denom = epsilon
		}
		out[i] = xs / denom
	}
	return out
}

// LogTransform returns ln(y+1) element-wise.
func LogTransform(y []float64) []float64 {
	out := make([]float64, len(y))
	for i, v := range y {
		out[i] = math.Log1p(v)
	}
	return out
}
