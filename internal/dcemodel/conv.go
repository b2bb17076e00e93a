// Package dcemodel implements the DCEModel family:
// Patlak, ETM, DIETM, 2CXM, DIBEM, AUEM and DISCM. Each model maps a
// parameter vector and one or two resampled input functions onto a
// modelled concentration time course.
package dcemodel

import "math"

// kmaxCutoff is the rate above which the exponential convolution's
// trapezoid contribution is forced to zero to avoid overflow.
const kmaxCutoff = 1.0e6

// convolveExp computes F(t_i) = integral_0^{t_i} e^{-K(t_i-s)} Cp(s) ds via
// the trapezoid-rule + semigroup-identity recurrence shared by every
// compartmental model:
//
//	A_i = dt_i * 0.5 * (Cp(t_i) + Cp(t_{i-1}) * e^{-K dt_i})
//	F_i = F_{i-1} * e^{-K dt_i} + A_i
func convolveExp(times, cp []float64, k float64) []float64 {
	n := len(times)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	out[0] = 0
	for i := 1; i < n; i++ {
		dt := times[i] - times[i-1]
		ek := math.Exp(-k * dt)

		a := 0.0
		if k < kmaxCutoff {
			a = dt * 0.5 * (cp[i] + cp[i-1]*ek)
		}
		out[i] = out[i-1]*ek + a
	}
	return out
}

// shiftAndZero returns times shifted by delay tau, clamping to zero (no
// contrast) before the input function arrives and linearly interpolating
// the supplied curve onto the shifted grid (arterial/portal delay tau_a,
// tau_v in the dual/single-input models).
func shiftAndZero(times, values []float64, tau float64) []float64 {
	n := len(times)
	out := make([]float64, n)
	for i, t := range times {
		shifted := t - tau
		if shifted <= times[0] {
			out[i] = 0
			continue
		}
		if shifted >= times[n-1] {
			out[i] = values[n-1]
			continue
		}
		for j := 1; j < n; j++ {
			if shifted <= times[j] {
				frac := (shifted - times[j-1]) / (times[j] - times[j-1])
				out[i] = values[j-1] + frac*(values[j]-values[j-1])
				break
			}
		}
	}
	return out
}

// allFinite reports whether every parameter is a finite number.
func allFinite(params []float64) bool {
	for _, p := range params {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return false
		}
	}
	return true
}

// zerosFrom fills out[from:] with 0, leaving out[:from] untouched. Used to
// implement computeCtModel's "NaN at step i -> zero from i onward" rule.
func zerosFrom(out []float64, from int) {
	for i := from; i < len(out); i++ {
		out[i] = 0
	}
}

// isBadValue reports whether an intermediate model value is non-finite.
func isBadValue(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}
