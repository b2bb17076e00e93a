package dcemodel

import "github.com/mberks/madym/internal/errtrack"

// dibemModel: Cm = Fpos*(Cp conv e^{-Kpos t}) + Fneg*(Cp conv e^{-Kneg t}),
// with Cp a dual-input mix of the delayed arterial and portal curves.
type dibemModel struct{}

func newDIBEM() *dibemModel { return &dibemModel{} }

func (m *dibemModel) Name() Name          { return DIBEM }
func (m *dibemModel) NumParams() int      { return 7 }
func (m *dibemModel) DualInput() bool     { return true }
func (m *dibemModel) RepeatParam() string { return "" }
func (m *dibemModel) ParamNames() []string {
	return []string{"Fpos", "Fneg", "Kpos", "Kneg", "fa", "tau_a", "tau_v"}
}
func (m *dibemModel) InitialParams() []float64 {
	return []float64{0.2, 0.2, 0.5, 4.0, 0.25, 0.025, 0}
}
func (m *dibemModel) Bounds() (lower, upper []float64) {
	return []float64{0, 0, 0, 0, -0.1, 0, -0.5}, []float64{100, 100, 100, 100, 1.1, 0.5, 0.5}
}

func (m *dibemModel) ComputeCtModel(times, ca, cv []float64, params []float64, out []float64) {
	if !allFinite(params) {
		zerosFrom(out, 0)
		return
	}
	fPos, fNeg, kPos, kNeg, fa, tauA, tauV := params[0], params[1], params[2], params[3], params[4], params[5], params[6]

	cp := mixVIFs(times, ca, cv, fa, tauA, tauV)
	convPos := convolveExp(times, cp, kPos)
	convNeg := convolveExp(times, cp, kNeg)

	for i := range times {
		out[i] = fPos*convPos[i] + fNeg*convNeg[i]
		if isBadValue(out[i]) {
			zerosFrom(out, i)
			return
		}
	}
}

func (m *dibemModel) CheckParams(params []float64) errtrack.Code {
	for _, p := range params {
		if isBadValue(p) {
			return errtrack.DCEFitFail
		}
	}
	return errtrack.OK
}

// dibemFpModel is the restricted DIBEM variant where total flow F_p is a
// fit parameter and Fpos/Fneg are derived from F_p and the uptake fraction
// E_pos, rather than fit independently (mdm_DCEModelDIBEM_Fp).
type dibemFpModel struct{}

// NewDIBEMFp constructs the restricted 4-rate-parameter DIBEM variant.
func NewDIBEMFp() Model { return &dibemFpModel{} }

func (m *dibemFpModel) Name() Name          { return DIBEMFp }
func (m *dibemFpModel) NumParams() int      { return 7 }
func (m *dibemFpModel) DualInput() bool     { return true }
func (m *dibemFpModel) RepeatParam() string { return "" }
func (m *dibemFpModel) ParamNames() []string {
	return []string{"F_p", "Epos", "Kpos", "Kneg", "fa", "tau_a", "tau_v"}
}
func (m *dibemFpModel) InitialParams() []float64 {
	return []float64{1.0, 0.5, 1.0, 1.0, 0.5, 0.025, 0}
}
func (m *dibemFpModel) Bounds() (lower, upper []float64) {
	return []float64{0, 0, 0, 0, -0.5, 0, -0.5}, []float64{100, 1, 100, 100, 1.5, 0.5, 0.5}
}

func (m *dibemFpModel) ComputeCtModel(times, ca, cv []float64, params []float64, out []float64) {
	if !allFinite(params) {
		zerosFrom(out, 0)
		return
	}
	fp, ePos, kPos, kNeg, fa, tauA, tauV := params[0], params[1], params[2], params[3], params[4], params[5], params[6]

	cp := mixVIFs(times, ca, cv, fa, tauA, tauV)
	convPos := convolveExp(times, cp, kPos)
	convNeg := convolveExp(times, cp, kNeg)

	fPos := fp * ePos
	fNeg := fp * (1 - ePos)
	for i := range times {
		out[i] = fNeg*convNeg[i] + fPos*convPos[i]
		if isBadValue(out[i]) {
			zerosFrom(out, i)
			return
		}
	}
}

func (m *dibemFpModel) CheckParams(params []float64) errtrack.Code {
	for _, p := range params {
		if isBadValue(p) {
			return errtrack.DCEFitFail
		}
	}
	return errtrack.OK
}

// mixVIFs combines the delayed arterial and portal input functions into a
// single dual-input plasma curve: fa*Ca(tau_a) + (1-fa)*Cv(tau_v).
func mixVIFs(times, ca, cv []float64, fa, tauA, tauV float64) []float64 {
	caShifted := shiftAndZero(times, ca, tauA)
	cvShifted := shiftAndZero(times, cv, tauV)
	out := make([]float64, len(times))
	for i := range times {
		out[i] = fa*caShifted[i] + (1-fa)*cvShifted[i]
	}
	return out
}
