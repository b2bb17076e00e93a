package dcemodel

import "github.com/mberks/madym/internal/errtrack"

// auemModel is the dual-input hepatic uptake model: derives intra/extra-
// cellular transit times and uptake fraction from (F_p, v_ecs, k_i, k_ef),
// then reduces to the same biexponential convolution as DIBEM.
type auemModel struct{}

func newAUEM() *auemModel { return &auemModel{} }

func (m *auemModel) Name() Name           { return AUEM }
func (m *auemModel) NumParams() int       { return 7 }
func (m *auemModel) DualInput() bool      { return true }
func (m *auemModel) RepeatParam() string  { return "" }
func (m *auemModel) ParamNames() []string {
	return []string{"F_p", "v_ecs", "k_i", "k_ef", "f_a", "tau_a", "tau_v"}
}
func (m *auemModel) InitialParams() []float64 {
	return []float64{0.6, 0.2, 0.2, 0.1, 0.5, 0.025, 0}
}
func (m *auemModel) Bounds() (lower, upper []float64) {
	return []float64{0, 0, 0, 0, 0, 0, -0.5}, []float64{10, 1, 10, 10, 1, 0.5, 0.5}
}

func (m *auemModel) ComputeCtModel(times, ca, cv []float64, params []float64, out []float64) {
	if !allFinite(params) {
		zerosFrom(out, 0)
		return
	}
	fp, vEcs, kI, kEf, fa, tauA, tauV := params[0], params[1], params[2], params[3], params[4], params[5], params[6]

	tE := vEcs / (fp + kI)
	vI := 1 - vEcs
	tI := vI / kEf
	eI := kI / (fp + kI)
	ePos := eI / (1 - tE/tI)

	kNeg := 1 / tE
	fNeg := fp * (1 - ePos)
	kPos := 1 / tI
	fPos := fp * ePos

	if isBadValue(kNeg) || isBadValue(kPos) || isBadValue(fNeg) || isBadValue(fPos) {
		zerosFrom(out, 0)
		return
	}

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

func (m *auemModel) CheckParams(params []float64) errtrack.Code {
	for _, p := range params {
		if isBadValue(p) {
			return errtrack.DCEFitFail
		}
	}
	return errtrack.OK
}
