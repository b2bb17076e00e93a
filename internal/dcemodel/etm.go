package dcemodel

import "github.com/mberks/madym/internal/errtrack"

// etmModel: Cm = vp*Ca + Ktrans * (Ca convolved with exp(-kep*t)), kep = Ktrans/ve.
type etmModel struct{}

func newETM() *etmModel { return &etmModel{} }

func (m *etmModel) Name() Name           { return ETM }
func (m *etmModel) NumParams() int       { return 4 }
func (m *etmModel) ParamNames() []string { return []string{"Ktrans", "ve", "vp", "tau_a"} }
func (m *etmModel) DualInput() bool      { return false }
func (m *etmModel) RepeatParam() string  { return "" }
func (m *etmModel) InitialParams() []float64 {
	return []float64{0.1, 0.2, 0.05, 0}
}
func (m *etmModel) Bounds() (lower, upper []float64) {
	return []float64{0, 0.001, 0, -0.5}, []float64{5, 1, 1, 0.5}
}

func (m *etmModel) ComputeCtModel(times, ca, _ []float64, params []float64, out []float64) {
	if !allFinite(params) {
		zerosFrom(out, 0)
		return
	}
	ktrans, ve, vp, tauA := params[0], params[1], params[2], params[3]
	if ve <= 0 {
		zerosFrom(out, 0)
		return
	}
	kep := ktrans / ve

	caShifted := shiftAndZero(times, ca, tauA)
	conv := convolveExp(times, caShifted, kep)

	for i := range times {
		out[i] = vp*caShifted[i] + ktrans*conv[i]
		if isBadValue(out[i]) {
			zerosFrom(out, i)
			return
		}
	}
}

func (m *etmModel) CheckParams(params []float64) errtrack.Code {
	if !allFinite(params) {
		return errtrack.DCEFitFail
	}
	ve, vp := params[1], params[2]
	if ve+vp > 1 {
		return errtrack.DCEInvalidParam
	}
	return errtrack.OK
}

// MakeLLSMatrix returns the design matrix for the ETM linear-least-squares
// fast path: columns are integral(Ca), -integral(Ct), Ca,
// letting (Ktrans, ve, vp) be recovered from a single linear solve rather
// than full nonlinear optimisation.
func (m *etmModel) MakeLLSMatrix(times, ca, ct []float64) [][]float64 {
	n := len(times)
	intCa := trapezoidalRunningIntegral(times, ca)
	intCt := trapezoidalRunningIntegral(times, ct)

	design := make([][]float64, n)
	for i := 0; i < n; i++ {
		design[i] = []float64{intCa[i], -intCt[i], ca[i]}
	}
	return design
}

// TransformLLSolution converts the 3 linear coefficients (b0, b1, b2) from
// the LLS solve back into (Ktrans, ve, vp). With the MakeLLSMatrix columns,
// b0 = Ktrans + kep*vp, b1 = kep = Ktrans/ve and b2 = vp, so
// Ktrans = b0 - b1*b2 and ve = Ktrans/b1.
func (m *etmModel) TransformLLSolution(b []float64) (ktrans, ve, vp float64) {
	vp = b[2]
	ktrans = b[0] - b[1]*vp
	if b[1] != 0 {
		ve = ktrans / b[1]
	}
	return
}
