package dcemodel

import (
	"github.com/mberks/madym/internal/errtrack"
	"github.com/mberks/madym/internal/madymerr"
)

// Name identifies a DCE model variant.
type Name string

const (
	Patlak Name = "Patlak"
	ETM    Name = "ETM"
	DIETM  Name = "DIETM"
	CXM2   Name = "2CXM"
	DIBEM  Name = "DIBEM"
	AUEM   Name = "AUEM"
	DISCM  Name = "DISCM"

	// DIBEMFp is the restricted 4-rate-parameter DIBEM variant where F_p
	// is fit directly instead of independent Fpos/Fneg. Not part of
	// AllNames: selected via NewDIBEMFp, not Name.
	DIBEMFp Name = "DIBEM_Fp"
)

// AllNames returns every mandatory model name.
func AllNames() []Name { return []Name{Patlak, ETM, DIETM, CXM2, DIBEM, AUEM, DISCM} }

// Model is the common operation set every DCE compartmental model
// implements, grounded on the DICOM generator's modality
// Generator/GetGenerator factory pattern.
type Model interface {
	Name() Name
	NumParams() int
	ParamNames() []string
	InitialParams() []float64
	Bounds() (lower, upper []float64)
	// DualInput reports whether the model consumes a portal input (cp) in
	// addition to the arterial input (ca).
	DualInput() bool
	// RepeatParam names the optional parameter the fitter sweeps over a
	// fixed value list, or "" if
	// the model has none.
	RepeatParam() string

	// ComputeCtModel writes Cm(t_i) into out (len(out) == len(times)).
	// Every finite-parameter precondition failure zeroes out and returns.
	ComputeCtModel(times, ca, cp []float64, params []float64, out []float64)

	// CheckParams reports DCE_FIT_FAIL (non-finite parameter),
	// DCE_INVALID_PARAM (model-specific physiological invariant violated)
	// or OK.
	CheckParams(params []float64) errtrack.Code
}

// Rerunnable is implemented by models that reset selected parameters to
// their initial values after a failed fit, for a second optimisation pass.
type Rerunnable interface {
	ResetRerun(params []float64)
}

// New constructs a Model by name.
func New(name Name) (Model, error) {
	switch name {
	case Patlak:
		return newPatlak(), nil
	case ETM:
		return newETM(), nil
	case DIETM:
		return newDIETM(), nil
	case CXM2:
		return new2CXM(), nil
	case DIBEM:
		return newDIBEM(), nil
	case AUEM:
		return newAUEM(), nil
	case DISCM:
		return newDISCM(), nil
	default:
		return nil, madymerr.New(madymerr.ModelUnknown, "dcemodel.New", "unknown DCE model "+string(name))
	}
}
