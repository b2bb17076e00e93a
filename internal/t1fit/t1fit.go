// Package t1fit implements the T1Fitter family: per-voxel
// estimation of T1 and M0 (and, for IR-E, the inversion efficiency EW) from
// multi-acquisition signals. Modeled on the modality Generator interface
// and factory in the DICOM generator's modalities package.
package t1fit

import (
	"github.com/mberks/madym/internal/errtrack"
	"github.com/mberks/madym/internal/madymerr"
)

// Method names a T1 mapping method.
type Method string

const (
	VFA   Method = "VFA"
	VFAB1 Method = "VFA_B1"
	IR    Method = "IR"
	IRE   Method = "IR_E"
)

// AllMethods returns every supported T1 mapping method name.
func AllMethods() []Method { return []Method{VFA, VFAB1, IR, IRE} }

// Result carries the fitted T1, M0 and (when applicable) inversion
// efficiency, plus the per-voxel fault code.
type Result struct {
	T1, M0, EW float64
	Code       errtrack.Code
}

// Fitter is the common T1Fitter operation set: configure signals, then fit.
type Fitter interface {
	// SetInputs assigns the per-acquisition signal intensities. The slice
	// length must be within [MinimumInputs, MaximumInputs].
	SetInputs(signals []float64) error

	// FitT1 estimates T1, M0 (and EW where applicable).
	FitT1() Result

	MinimumInputs() int
	MaximumInputs() int

	// ToSignal forward-simulates a signal at the given acquisition setting
	// (flip angle in radians for VFA*, inversion time in ms for IR*) given
	// fitted T1, M0, EW.
	ToSignal(t1, m0, ew, setting float64) float64
}

// New constructs a Fitter for the named method. fixed holds the method's
// fixed scanner settings (TR for VFA family; TR for IR family) and
// variable holds the per-acquisition settings (flip angles in degrees for
// VFA family, inversion times in ms for IR family).
func New(method Method, fixed, variable []float64) (Fitter, error) {
	switch method {
	case VFA:
		return newVFA(fixed, variable, false)
	case VFAB1:
		return newVFA(fixed, variable, true)
	case IR:
		return newIR(fixed, variable, false)
	case IRE:
		return newIR(fixed, variable, true)
	default:
		return nil, madymerr.New(madymerr.ModelUnknown, "t1fit.New", "unknown T1 method "+string(method))
	}
}
