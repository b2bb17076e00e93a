package t1fit

import (
	"math"

	"github.com/mberks/madym/internal/errtrack"
	"github.com/mberks/madym/internal/madymerr"
	"github.com/mberks/madym/internal/optimize"
)

const (
	vfaMinInputs  = 3
	vfaMaxInputs  = 50
	vfaMaxT1      = 10000.0 // ms, rejected as implausibly long
	vfaMaxIters   = 500
)

// vfaFitter implements VFA and, when usingB1 is set, VFA-B1.
type vfaFitter struct {
	tr        float64
	anglesDeg []float64
	usingB1   bool

	signals []float64
	b1      float64 // multiplies every flip angle; 1.0 when not usingB1
}

func newVFA(fixed, variable []float64, usingB1 bool) (Fitter, error) {
	if len(fixed) != 1 {
		return nil, madymerr.New(madymerr.MissingMetadata, "t1fit.newVFA", "VFA requires exactly one fixed setting (TR)")
	}
	return &vfaFitter{tr: fixed[0], anglesDeg: variable, usingB1: usingB1, b1: 1.0}, nil
}

func (f *vfaFitter) MinimumInputs() int { return vfaMinInputs }
func (f *vfaFitter) MaximumInputs() int { return vfaMaxInputs }

// SetInputs assigns the per-flip-angle signals. When usingB1, the final
// element of signals is the per-voxel B1 correction scalar rather than a
// signal, matching mdm_T1FitterVFA::setInputs.
func (f *vfaFitter) SetInputs(signals []float64) error {
	n := len(signals)
	want := len(f.anglesDeg)
	if f.usingB1 {
		want++
	}
	if n != want {
		return madymerr.New(madymerr.DimensionMismatch, "vfaFitter.SetInputs", "signal count does not match flip-angle count")
	}

	if f.usingB1 {
		f.signals = append([]float64(nil), signals[:n-1]...)
		f.b1 = signals[n-1]
	} else {
		f.signals = append([]float64(nil), signals...)
		f.b1 = 1.0
	}
	return nil
}

func (f *vfaFitter) cosSin() (cosFA, sinFA []float64) {
	n := len(f.anglesDeg)
	cosFA = make([]float64, n)
	sinFA = make([]float64, n)
	for i, deg := range f.anglesDeg {
		rad := deg * math.Pi / 180 * f.b1
		cosFA[i] = math.Cos(rad)
		sinFA[i] = math.Sin(rad)
	}
	return
}

// ToSignal implements the VFA forward model S(alpha) = M0 sin(a) (1-E) /
// (1-cos(a) E), E = exp(-TR/T1). setting is the flip angle in radians;
// ew is unused (VFA has no efficiency term) and kept for interface parity.
func (f *vfaFitter) ToSignal(t1, m0, ew, setting float64) float64 {
	e := math.Exp(-f.tr / t1)
	return m0 * math.Sin(setting) * (1 - e) / (1 - math.Cos(setting)*e)
}

func (f *vfaFitter) FitT1() Result {
	if f.usingB1 && (f.b1 <= 0 || f.b1 > 2) {
		return Result{Code: errtrack.B1Invalid}
	}

	cosFA, sinFA := f.cosSin()

	t1Init, m0Init, ok := vfaLinearFit(f.signals, cosFA, sinFA, f.tr)
	if !ok {
		return Result{Code: errtrack.T1InitFail}
	}

	prob := &vfaProblem{cosFA: cosFA, sinFA: sinFA, signals: f.signals, tr: f.tr}
	opts := optimize.DefaultOptions(2, vfaMaxIters)
	opts.Lower = []float64{0, 0}
	opts.Upper = []float64{math.Inf(1), math.Inf(1)}

	res := optimize.BoundedLM(prob, []float64{t1Init, m0Init}, opts)
	if !res.Converged {
		return Result{Code: errtrack.T1MaxIter}
	}

	t1, m0 := res.Params[0], res.Params[1]
	if t1 <= 0 || t1 > vfaMaxT1 {
		return Result{T1: t1, M0: m0, Code: errtrack.T1MadValue}
	}
	return Result{T1: t1, M0: m0, EW: 1.0, Code: errtrack.OK}
}

// vfaLinearFit implements the Deichmann linearisation: y = S/sin(a),
// x = cos(a)*y, fit y = A + B*x by ordinary least squares, then
// E1 = B, T1 = -TR/ln(B), M0 = A/(1-B).
func vfaLinearFit(signals, cosFA, sinFA []float64, tr float64) (t1, m0 float64, ok bool) {
	n := len(signals)
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range signals {
		y[i] = signals[i] / sinFA[i]
		x[i] = cosFA[i] * y[i]
	}

	var sumX, sumY, sumXX, sumXY float64
	for i := 0; i < n; i++ {
		sumX += x[i]
		sumY += y[i]
		sumXX += x[i] * x[i]
		sumXY += x[i] * y[i]
	}
	nf := float64(n)
	denom := nf*sumXX - sumX*sumX
	if math.Abs(denom) < 1e-12 {
		return 0, 0, false
	}
	b := (nf*sumXY - sumX*sumY) / denom
	a := (sumY - b*sumX) / nf

	if b <= 0 || b >= 1 {
		return 0, 0, false
	}
	t1 = -tr / math.Log(b)
	m0 = a / (1 - b)
	if math.IsNaN(t1) || math.IsNaN(m0) || t1 <= 0 {
		return 0, 0, false
	}
	return t1, m0, true
}

// vfaProblem is the Levenberg-Marquardt problem for refining (T1,M0) given
// the linear-fit seed, with the analytic Jacobian from
// mdm_T1FitterVFA::computeSignalGradient.
type vfaProblem struct {
	cosFA, sinFA, signals []float64
	tr                    float64
}

func (p *vfaProblem) NumParams() int    { return 2 }
func (p *vfaProblem) NumResiduals() int { return len(p.signals) }

func (p *vfaProblem) Evaluate(params []float64, residuals []float64, jac [][]float64) {
	t1, m0 := params[0], params[1]
	for i := range p.signals {
		var e float64
		if t1 != 0 {
			e = math.Exp(-p.tr / t1)
		}
		a := 1 - e*p.cosFA[i]
		sdM0 := p.sinFA[i] * (1 - e) / a
		s := m0 * sdM0

		var sdT1 float64
		if t1 != 0 {
			sdT1 = m0 * p.sinFA[i] * p.tr * e * (p.cosFA[i] - 1) / (a * a * t1 * t1)
		} else {
			sdT1 = 1e9
		}

		residuals[i] = s - p.signals[i]
		jac[i][0] = sdT1
		jac[i][1] = sdM0
	}
}
