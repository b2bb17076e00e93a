// Package optimize implements a bound-constrained nonlinear least-squares
// solver used by the T1, DWI and DCE model fitters: a Levenberg-Marquardt
// iteration with projection-to-bounds at each step, a standard substitute
// for box-constrained Gauss-Newton refinement when no trust-region box
// solver is available (see DESIGN.md for the library tradeoffs).
package optimize

import "math"

// Problem is a least-squares problem: minimise sum(Residuals(p)^2) subject
// to Lower[i] <= p[i] <= Upper[i].
type Problem interface {
	// NumParams returns the parameter count.
	NumParams() int
	// NumResiduals returns the residual vector length.
	NumResiduals() int
	// Evaluate fills residuals (length NumResiduals) and the Jacobian
	// (NumResiduals x NumParams, row-major, residual i's partials in
	// jac[i]) at params.
	Evaluate(params []float64, residuals []float64, jac [][]float64)
}

// Result is the outcome of a bounded least-squares fit.
type Result struct {
	Params     []float64
	Iterations int
	Converged  bool
	SSR        float64
}

// Options configures the Levenberg-Marquardt iteration.
type Options struct {
	MaxIterations int
	GradTol       float64 // convergence on max|gradient| component
	StepTol       float64 // convergence on step norm
	Lower, Upper  []float64
}

// DefaultOptions returns the conventional tolerances used throughout the
// fitters (1e-8 gradient, 1e-4 step, matching the original's epsg/epsx).
func DefaultOptions(nParams, maxIter int) Options {
	lower := make([]float64, nParams)
	upper := make([]float64, nParams)
	for i := range upper {
		upper[i] = math.Inf(1)
	}
	return Options{
		MaxIterations: maxIter,
		GradTol:       1e-8,
		StepTol:       1e-4,
		Lower:         lower,
		Upper:         upper,
	}
}

// BoundedLM runs projected Levenberg-Marquardt from init, clamping every
// trial step into [Lower,Upper] before accepting it.
func BoundedLM(p Problem, init []float64, opts Options) Result {
	n := p.NumParams()
	m := p.NumResiduals()

	params := append([]float64(nil), init...)
	clamp(params, opts.Lower, opts.Upper)

	resid := make([]float64, m)
	jac := make([][]float64, m)
	for i := range jac {
		jac[i] = make([]float64, n)
	}

	p.Evaluate(params, resid, jac)
	ssr := sumSq(resid)

	lambda := 1e-3
	const lambdaUp, lambdaDown = 10.0, 0.1

	iter := 0
	for ; iter < opts.MaxIterations; iter++ {
		// Gradient g = J^T r, Hessian approx H = J^T J.
		g := make([]float64, n)
		h := make([][]float64, n)
		for i := range h {
			h[i] = make([]float64, n)
		}
		for k := 0; k < m; k++ {
			for i := 0; i < n; i++ {
				g[i] += jac[k][i] * resid[k]
				for j := 0; j < n; j++ {
					h[i][j] += jac[k][i] * jac[k][j]
				}
			}
		}

		maxGrad := 0.0
		for _, gi := range g {
			if math.Abs(gi) > maxGrad {
				maxGrad = math.Abs(gi)
			}
		}
		if maxGrad < opts.GradTol {
			break
		}

		// Damped normal equations: (H + lambda*diag(H)) step = -g.
		damped := make([][]float64, n)
		for i := range damped {
			damped[i] = append([]float64(nil), h[i]...)
			damped[i][i] += lambda * h[i][i]
			if damped[i][i] == 0 {
				damped[i][i] = lambda
			}
		}
		neg := make([]float64, n)
		for i := range g {
			neg[i] = -g[i]
		}

		step, ok := solveLinear(damped, neg)
		if !ok {
			lambda *= lambdaUp
			continue
		}

		trial := append([]float64(nil), params...)
		for i := range trial {
			trial[i] += step[i]
		}
		clamp(trial, opts.Lower, opts.Upper)

		trialResid := make([]float64, m)
		trialJac := make([][]float64, m)
		for i := range trialJac {
			trialJac[i] = make([]float64, n)
		}
		p.Evaluate(trial, trialResid, trialJac)
		trialSSR := sumSq(trialResid)

		if trialSSR < ssr {
			stepNorm := norm(diff(trial, params))
			params = trial
			resid = trialResid
			jac = trialJac
			ssr = trialSSR
			lambda *= lambdaDown
			if stepNorm < opts.StepTol {
				iter++
				break
			}
		} else {
			lambda *= lambdaUp
		}
	}

	return Result{
		Params:     params,
		Iterations: iter,
		Converged:  iter < opts.MaxIterations,
		SSR:        ssr,
	}
}

func clamp(x, lower, upper []float64) {
	for i := range x {
		if lower != nil && x[i] < lower[i] {
			x[i] = lower[i]
		}
		if upper != nil && x[i] > upper[i] {
			x[i] = upper[i]
		}
	}
}

func sumSq(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x * x
	}
	return s
}

func norm(v []float64) float64 { return math.Sqrt(sumSq(v)) }

func diff(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

// solveLinear solves A x = b via Gaussian elimination with partial
// pivoting. Returns ok=false if A is singular to working precision.
func solveLinear(a [][]float64, b []float64) ([]float64, bool) {
	n := len(b)
	m := make([][]float64, n)
	for i := range m {
		m[i] = append([]float64(nil), a[i]...)
	}
	x := append([]float64(nil), b...)

	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(m[r][col]) > math.Abs(m[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(m[pivot][col]) < 1e-14 {
			return nil, false
		}
		m[col], m[pivot] = m[pivot], m[col]
		x[col], x[pivot] = x[pivot], x[col]

		for r := col + 1; r < n; r++ {
			factor := m[r][col] / m[col][col]
			for c := col; c < n; c++ {
				m[r][c] -= factor * m[col][c]
			}
			x[r] -= factor * x[col]
		}
	}

	result := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := x[i]
		for j := i + 1; j < n; j++ {
			sum -= m[i][j] * result[j]
		}
		result[i] = sum / m[i][i]
	}
	return result, true
}

// NumericalJacobian fills jac via central differences, for problems whose
// forward model lacks a convenient analytic derivative (e.g. the DCE
// compartmental models).
func NumericalJacobian(residualFn func(params []float64, out []float64), params []float64, jac [][]float64) {
	n := len(params)
	m := len(jac)
	const h = 1e-4

	base := make([]float64, m)
	residualFn(params, base)

	perturbed := append([]float64(nil), params...)
	plus := make([]float64, m)
	minus := make([]float64, m)
	for j := 0; j < n; j++ {
		step := h * math.Max(1.0, math.Abs(params[j]))
		perturbed[j] = params[j] + step
		residualFn(perturbed, plus)
		perturbed[j] = params[j] - step
		residualFn(perturbed, minus)
		perturbed[j] = params[j]

		for i := 0; i < m; i++ {
			jac[i][j] = (plus[i] - minus[i]) / (2 * step)
		}
	}
}
