package econ

import "math"

// Numeric kernels shared by the pricing, wage and tax formulas. All of
// them are total: every input produces a finite, in-range output so the
// regulators never have to branch on NaN mid-formula.

// Lerp linearly interpolates between a and b by t. t is not clamped.
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Clamp bounds v to [lo, hi]. Assumes lo <= hi.
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Saturate bounds v to [0, 1].
func Saturate(v float64) float64 {
	return Clamp(v, 0, 1)
}

// Logit is the inverse sigmoid. p must be in (0, 1); callers clamp with
// an epsilon margin before calling.
func Logit(p float64) float64 {
	return math.Log(p / (1 - p))
}

// Sigmoid is the standard logistic function. Inputs beyond roughly ±40
// saturate to 0 or 1 in float64, so callers clamp the argument first.
func Sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Finite reports whether every value is a normal finite float.
func Finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// RoundInt rounds half away from zero and converts to int.
func RoundInt(v float64) int {
	return int(math.Round(v))
}
