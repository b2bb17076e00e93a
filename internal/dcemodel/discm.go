package dcemodel

import "github.com/mberks/madym/internal/errtrack"

// discmModel is the single-compartment dual-input model: a single outflow
// rate k2 applied to a combined arterial/portal inflow F_p*(fa*Ca+(1-fa)*Cv).
type discmModel struct{}

func newDISCM() *discmModel { return &discmModel{} }

func (m *discmModel) Name() Name           { return DISCM }
func (m *discmModel) NumParams() int       { return 5 }
func (m *discmModel) DualInput() bool      { return true }
func (m *discmModel) RepeatParam() string  { return "" }
func (m *discmModel) ParamNames() []string { return []string{"F_p", "k_2", "f_a", "tau_a", "tau_v"} }
func (m *discmModel) InitialParams() []float64 {
	return []float64{0.6, 1.0, 0.5, 0.025, 0}
}
func (m *discmModel) Bounds() (lower, upper []float64) {
	return []float64{0, 0, 0, 0, -0.5}, []float64{10, 10, 1, 0.5, 0.5}
}

func (m *discmModel) ComputeCtModel(times, ca, cv []float64, params []float64, out []float64) {
	if !allFinite(params) {
		zerosFrom(out, 0)
		return
	}
	fp, k2, fa, tauA, tauV := params[0], params[1], params[2], params[3], params[4]

	cp := mixVIFs(times, ca, cv, fa, tauA, tauV)
	for i := range cp {
		cp[i] *= fp
	}
	conv := convolveExp(times, cp, k2)
	for i := range times {
		out[i] = conv[i]
		if isBadValue(out[i]) {
			zerosFrom(out, i)
			return
		}
	}
}

func (m *discmModel) CheckParams(params []float64) errtrack.Code {
	for _, p := range params {
		if isBadValue(p) {
			return errtrack.DCEFitFail
		}
	}
	return errtrack.OK
}

// ResetRerun resets tau_a and tau_v (indices 3, 4) to their initial values,
// letting the fitter attempt a second optimisation pass after a degenerate
// first fit.
func (m *discmModel) ResetRerun(params []float64) {
	init := m.InitialParams()
	params[3] = init[3]
	params[4] = init[4]
}
