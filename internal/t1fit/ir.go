package t1fit

import (
	"math"

	"github.com/mberks/madym/internal/errtrack"
	"github.com/mberks/madym/internal/madymerr"
	"github.com/mberks/madym/internal/optimize"
)

const (
	irMinInputs = 3
	irMaxInputs = 50
	irMaxIters  = 500

	irT1Max = 1.0e5
	irM0Max = 1.0e6
)

// irFitter implements IR and, when fittingEW is set, IR-E.
type irFitter struct {
	tr       float64
	tisMS    []float64
	fittingEW bool

	signals []float64
}

func newIR(fixed, variable []float64, fittingEW bool) (Fitter, error) {
	if len(fixed) != 1 {
		return nil, madymerr.New(madymerr.MissingMetadata, "t1fit.newIR", "IR requires exactly one fixed setting (TR)")
	}
	return &irFitter{tr: fixed[0], tisMS: variable, fittingEW: fittingEW}, nil
}

func (f *irFitter) MinimumInputs() int { return irMinInputs }
func (f *irFitter) MaximumInputs() int { return irMaxInputs }

func (f *irFitter) SetInputs(signals []float64) error {
	if len(signals) != len(f.tisMS) {
		return madymerr.New(madymerr.DimensionMismatch, "irFitter.SetInputs", "signal count does not match TI count")
	}
	f.signals = append([]float64(nil), signals...)
	return nil
}

// ToSignal implements S(TI) = |M0 (1 - 2 EW exp(-TI/T1) + exp(-TR/T1))|.
// setting is TI in ms.
func (f *irFitter) ToSignal(t1, m0, ew, setting float64) float64 {
	return math.Abs(m0 * (1 - 2*ew*math.Exp(-setting/t1) + math.Exp(-f.tr/t1)))
}

func (f *irFitter) FitT1() Result {
	lastSignal := f.signals[len(f.signals)-1]

	t1Init, m0Init := 1000.0, lastSignal
	ewInit := 1.0

	if f.fittingEW {
		// Two-pass: seed T1, M0 from an EW=1 fit before fitting all three.
		seed, code := f.refine(t1Init, m0Init, 1.0, false)
		if code != errtrack.OK {
			return Result{Code: code}
		}
		t1Init, m0Init = seed.T1, seed.M0
	}

	res, code := f.refine(t1Init, m0Init, ewInit, f.fittingEW)
	if code != errtrack.OK {
		return Result{Code: code}
	}
	return res
}

func (f *irFitter) refine(t1Init, m0Init, ewInit float64, fitEW bool) (Result, errtrack.Code) {
	prob := &irProblem{tisMS: f.tisMS, signals: f.signals, tr: f.tr, fitEW: fitEW, fixedEW: ewInit}

	init := []float64{t1Init, m0Init}
	lower := []float64{0, 0}
	upper := []float64{irT1Max, irM0Max}
	if fitEW {
		init = append(init, ewInit)
		lower = append(lower, 0)
		upper = append(upper, 1)
	}

	opts := optimize.Options{
		MaxIterations: irMaxIters,
		GradTol:       1e-8,
		StepTol:       1e-4,
		Lower:         lower,
		Upper:         upper,
	}

	res := optimize.BoundedLM(prob, init, opts)
	if !res.Converged {
		return Result{}, errtrack.T1MaxIter
	}

	t1 := res.Params[0]
	m0 := res.Params[1]
	ew := ewInit
	if fitEW {
		ew = res.Params[2]
	}
	if t1 <= 0 || t1 > irT1Max {
		return Result{T1: t1, M0: m0, EW: ew}, errtrack.T1MadValue
	}
	return Result{T1: t1, M0: m0, EW: ew, Code: errtrack.OK}, errtrack.OK
}

// irProblem is the Levenberg-Marquardt problem for IR/IR-E fitting, using
// a numerical Jacobian (the |.| in the forward model makes an analytic
// derivative awkward near the model's zero-crossing).
type irProblem struct {
	tisMS, signals []float64
	tr             float64
	fitEW          bool
	fixedEW        float64
}

func (p *irProblem) NumParams() int {
	if p.fitEW {
		return 3
	}
	return 2
}
func (p *irProblem) NumResiduals() int { return len(p.signals) }

func (p *irProblem) model(params []float64, out []float64) {
	t1, m0 := params[0], params[1]
	ew := p.fixedEW
	if p.fitEW {
		ew = params[2]
	}
	for i, ti := range p.tisMS {
		s := math.Abs(m0 * (1 - 2*ew*math.Exp(-ti/t1) + math.Exp(-p.tr/t1)))
		out[i] = s - p.signals[i]
	}
}

func (p *irProblem) Evaluate(params []float64, residuals []float64, jac [][]float64) {
	p.model(params, residuals)
	optimize.NumericalJacobian(p.model, params, jac)
}
