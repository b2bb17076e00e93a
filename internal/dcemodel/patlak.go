package dcemodel

import "github.com/mberks/madym/internal/errtrack"

// patlakModel: Cm = vp*Ca + Ktrans * integral_0^t Ca.
type patlakModel struct{}

func newPatlak() *patlakModel { return &patlakModel{} }

func (m *patlakModel) Name() Name             { return Patlak }
func (m *patlakModel) NumParams() int         { return 3 }
func (m *patlakModel) ParamNames() []string   { return []string{"Ktrans", "vp", "tau_a"} }
func (m *patlakModel) DualInput() bool        { return false }
func (m *patlakModel) RepeatParam() string    { return "" }
func (m *patlakModel) InitialParams() []float64 {
	return []float64{0.1, 0.1, 0}
}
func (m *patlakModel) Bounds() (lower, upper []float64) {
	return []float64{0, 0, -0.5}, []float64{5, 1, 0.5}
}

func (m *patlakModel) ComputeCtModel(times, ca, _ []float64, params []float64, out []float64) {
	if !allFinite(params) {
		zerosFrom(out, 0)
		return
	}
	ktrans, vp, tauA := params[0], params[1], params[2]

	ca = shiftAndZero(times, ca, tauA)
	integral := trapezoidalRunningIntegral(times, ca)

	for i := range times {
		out[i] = vp*ca[i] + ktrans*integral[i]
		if isBadValue(out[i]) {
			zerosFrom(out, i)
			return
		}
	}
}

func (m *patlakModel) CheckParams(params []float64) errtrack.Code {
	if !allFinite(params) {
		return errtrack.DCEFitFail
	}
	vp := params[1]
	if vp < 0 || vp > 1 {
		return errtrack.DCEInvalidParam
	}
	return errtrack.OK
}

// trapezoidalRunningIntegral computes integral_0^{t_i} f via the plain
// trapezoid rule (Patlak's vascular term has no exponential washout, so
// it does not need the semigroup recurrence).
func trapezoidalRunningIntegral(times, f []float64) []float64 {
	n := len(times)
	out := make([]float64, n)
	for i := 1; i < n; i++ {
		dt := times[i] - times[i-1]
		out[i] = out[i-1] + dt*0.5*(f[i]+f[i-1])
	}
	return out
}
