package optimize

import (
	"math"
	"testing"
)

// linearProblem fits y = a + b*x with analytic Jacobian.
type linearProblem struct {
	x, y []float64
}

func (p *linearProblem) NumParams() int    { return 2 }
func (p *linearProblem) NumResiduals() int { return len(p.x) }

func (p *linearProblem) Evaluate(params []float64, residuals []float64, jac [][]float64) {
	a, b := params[0], params[1]
	for i := range p.x {
		model := a + b*p.x[i]
		residuals[i] = model - p.y[i]
		jac[i][0] = 1
		jac[i][1] = p.x[i]
	}
}

func TestBoundedLMRecoversLinearFit(t *testing.T) {
	x := []float64{0, 1, 2, 3, 4}
	y := make([]float64, len(x))
	const wantA, wantB = 2.0, 3.0
	for i := range x {
		y[i] = wantA + wantB*x[i]
	}

	p := &linearProblem{x: x, y: y}
	opts := DefaultOptions(2, 100)
	opts.Lower = []float64{-100, -100}
	opts.Upper = []float64{100, 100}
	res := BoundedLM(p, []float64{0, 0}, opts)

	if math.Abs(res.Params[0]-wantA) > 1e-4 || math.Abs(res.Params[1]-wantB) > 1e-4 {
		t.Fatalf("got a=%v b=%v, want a=%v b=%v", res.Params[0], res.Params[1], wantA, wantB)
	}
	if res.SSR > 1e-6 {
		t.Fatalf("residual too large: %v", res.SSR)
	}
}

func TestBoundedLMRespectsBounds(t *testing.T) {
	x := []float64{0, 1, 2, 3, 4}
	y := make([]float64, len(x))
	for i := range x {
		y[i] = 2.0 + 3.0*x[i]
	}

	p := &linearProblem{x: x, y: y}
	opts := DefaultOptions(2, 200)
	opts.Lower = []float64{0, 0}
	opts.Upper = []float64{100, 1.0} // slope capped below the true value of 3
	res := BoundedLM(p, []float64{0, 0}, opts)

	if res.Params[1] > 1.0+1e-9 {
		t.Fatalf("slope %v exceeds upper bound 1.0", res.Params[1])
	}
}

func TestNumericalJacobianMatchesAnalytic(t *testing.T) {
	x := []float64{0, 1, 2, 3}
	residualFn := func(params []float64, out []float64) {
		a, b := params[0], params[1]
		for i := range x {
			out[i] = a + b*x[i]
		}
	}
	params := []float64{2.0, 3.0}
	jac := make([][]float64, len(x))
	for i := range jac {
		jac[i] = make([]float64, 2)
	}
	NumericalJacobian(residualFn, params, jac)

	for i := range x {
		if math.Abs(jac[i][0]-1.0) > 1e-4 {
			t.Fatalf("d/da at %d = %v, want 1", i, jac[i][0])
		}
		if math.Abs(jac[i][1]-x[i]) > 1e-4 {
			t.Fatalf("d/db at %d = %v, want %v", i, jac[i][1], x[i])
		}
	}
}
