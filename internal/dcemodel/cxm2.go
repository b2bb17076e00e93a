package dcemodel

import (
	"math"

	"github.com/mberks/madym/internal/errtrack"
)

// cxm2Model is the two-compartment exchange model (Sourbron 2011
// parametrisation). F_p, PS, ve, vp are the primary parameters; the two
// transport rates K+/- and their flow fractions F+/- are derived.
type cxm2Model struct{}

func new2CXM() *cxm2Model { return &cxm2Model{} }

func (m *cxm2Model) Name() Name           { return CXM2 }
func (m *cxm2Model) NumParams() int       { return 5 }
func (m *cxm2Model) DualInput() bool      { return false }
func (m *cxm2Model) RepeatParam() string  { return "" }
func (m *cxm2Model) ParamNames() []string { return []string{"F_p", "PS", "ve", "vp", "tau_a"} }
func (m *cxm2Model) InitialParams() []float64 {
	return []float64{0.6, 0.2, 0.2, 0.2, 0}
}
func (m *cxm2Model) Bounds() (lower, upper []float64) {
	return []float64{1e-5, 1e-5, 1e-5, 1e-5, 0}, []float64{100, 10, 10, 10, 0.5}
}

func (m *cxm2Model) ComputeCtModel(times, ca, _ []float64, params []float64, out []float64) {
	if !allFinite(params) {
		zerosFrom(out, 0)
		return
	}
	fp, ps, ve, vp, tauA := params[0], params[1], params[2], params[3], params[4]

	caShifted := shiftAndZero(times, ca, tauA)

	var kPos, kNeg, ePos float64
	if fp > 0 && ps > 0 {
		// Sourbron 2011 method 1.
		e := ps / (ps + fp)
		frac := ve / (vp + ve)

		tau := (e - e*frac + frac) / (2 * e)
		tauRoot := math.Sqrt(1 - 4*(e*frac*(1-e)*(1-frac))/((e-e*frac+frac)*(e-e*frac+frac)))
		tauPos := tau * (1 + tauRoot)
		tauNeg := tau * (1 - tauRoot)

		kPos = fp / ((vp + ve) * tauNeg)
		kNeg = fp / ((vp + ve) * tauPos)
		ePos = (tauPos - 1) / (tauPos - tauNeg)
	} else {
		// Method 2: degenerate low-flow/low-permeability branch.
		kp := (fp + ps) / vp
		ke := ps / ve
		kb := fp / vp

		kSum := 0.5 * (kp + ke)
		kRoot := 0.5 * math.Sqrt((kp+ke)*(kp+ke)-4*ke*kb)
		kPos = kSum - kRoot
		kNeg = kSum + kRoot
		ePos = (kNeg - kb) / (kNeg - kPos)
	}

	if isBadValue(kPos) || isBadValue(kNeg) || isBadValue(ePos) {
		zerosFrom(out, 0)
		return
	}

	fPos := fp * ePos
	fNeg := fp * (1 - ePos)

	convPos := convolveExp(times, caShifted, kPos)
	convNeg := convolveExp(times, caShifted, kNeg)

	for i := range times {
		out[i] = fNeg*convNeg[i] + fPos*convPos[i]
		if isBadValue(out[i]) {
			zerosFrom(out, i)
			return
		}
	}
}

func (m *cxm2Model) CheckParams(params []float64) errtrack.Code {
	for _, p := range params {
		if isBadValue(p) {
			return errtrack.DCEFitFail
		}
	}
	return errtrack.OK
}
