// Package dwifit implements the DWIFitter family: ADC and
// IVIM diffusion model fitting from multi-b-value signals.
package dwifit

import (
	"github.com/mberks/madym/internal/errtrack"
	"github.com/mberks/madym/internal/madymerr"
)

// Method names a DWI fitting method.
type Method string

const (
	ADC  Method = "ADC"
	IVIM Method = "IVIM"
)

// AllMethods returns every supported DWI method name.
func AllMethods() []Method { return []Method{ADC, IVIM} }

// Result carries the fitted diffusion parameters and per-voxel fault code.
// For ADC only S0 and D (== ADC) are populated; for IVIM, F and DStar are
// also set.
type Result struct {
	S0, D, F, DStar float64
	SSR             float64
	Code            errtrack.Code
}

// Fitter is the common DWIFitter operation set.
type Fitter interface {
	SetInputs(signals []float64) error
	FitModel() Result
	MinimumInputs() int
	MaximumInputs() int
}

// New constructs a Fitter for the named method on the given b-values
// (s/mm^2). linearOnly, when true and method is ADC, skips the nonlinear
// refinement step and returns the linear-fit estimate directly.
func New(method Method, bValues []float64, linearOnly bool) (Fitter, error) {
	switch method {
	case ADC:
		return newADC(bValues, linearOnly)
	case IVIM:
		return newIVIM(bValues)
	default:
		return nil, madymerr.New(madymerr.ModelUnknown, "dwifit.New", "unknown DWI method "+string(method))
	}
}
