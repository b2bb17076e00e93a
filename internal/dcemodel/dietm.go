package dcemodel

import "github.com/mberks/madym/internal/errtrack"

// dietmModel is ETM with a dual-input plasma supply Cp = fa*Ca(tau_a) +
// (1-fa)*Cv(tau_v).
type dietmModel struct{}

func newDIETM() *dietmModel { return &dietmModel{} }

func (m *dietmModel) Name() Name         { return DIETM }
func (m *dietmModel) NumParams() int     { return 6 }
func (m *dietmModel) DualInput() bool    { return true }
func (m *dietmModel) RepeatParam() string { return "" }
func (m *dietmModel) ParamNames() []string {
	return []string{"Ktrans", "ve", "vp", "fa", "tau_a", "tau_v"}
}
func (m *dietmModel) InitialParams() []float64 {
	return []float64{0.1, 0.2, 0.05, 0.5, 0, 0}
}
func (m *dietmModel) Bounds() (lower, upper []float64) {
	return []float64{0, 0.001, 0, 0, -0.5, -0.5}, []float64{5, 1, 1, 1, 0.5, 0.5}
}

func (m *dietmModel) ComputeCtModel(times, ca, cv []float64, params []float64, out []float64) {
	if !allFinite(params) {
		zerosFrom(out, 0)
		return
	}
	ktrans, ve, vp, fa, tauA, tauV := params[0], params[1], params[2], params[3], params[4], params[5]
	if ve <= 0 {
		zerosFrom(out, 0)
		return
	}
	kep := ktrans / ve

	cp := mixVIFs(times, ca, cv, fa, tauA, tauV)
	conv := convolveExp(times, cp, kep)
	for i := range times {
		out[i] = vp*cp[i] + ktrans*conv[i]
		if isBadValue(out[i]) {
			zerosFrom(out, i)
			return
		}
	}
}

func (m *dietmModel) CheckParams(params []float64) errtrack.Code {
	if !allFinite(params) {
		return errtrack.DCEFitFail
	}
	ve, vp, fa := params[1], params[2], params[3]
	if ve+vp > 1 || fa < 0 || fa > 1 {
		return errtrack.DCEInvalidParam
	}
	return errtrack.OK
}
