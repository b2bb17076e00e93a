// Package aif implements the arterial (and optional portal-venous) input
// function: population formulae, file-loaded curves,
// voxel-averaged auto-selection, and delay resampling onto the dynamic
// time grid.
package aif

import (
	"math"

	"github.com/mberks/madym/internal/madymerr"
)

// Type tags how an input function's baseline was obtained.
type Type int

const (
	// Population is a closed-form formula (Parker by default, or the
	// legacy Weinmann form — see Kind).
	Population Type = iota
	// File is a baseline curve loaded from an ASCII file.
	File
	// Map is a baseline curve derived by averaging voxels (auto-AIF).
	Map
	// Legacy marks the retained AIF_STD (Weinmann) population form.
	Legacy
	// Invalid marks an AIF/PIF that has not been configured.
	Invalid
)

// Kind selects which population formula backs a Population-type AIF.
type Kind int

const (
	// Parker is the Parker et al. MRM 56:993 (2006) sum-of-Gaussians plus
	// sigmoid form, the default population AIF.
	Parker Kind = iota
	// Weinmann is the legacy biexponential population form (mdm_AIF's
	// AIF_STD / aifWeinman). Retained per SPEC_FULL.md §E.1.
	Weinmann
)

// AIF holds the time grid, baseline input functions and the most recently
// resampled (delayed) versions consumed by the DCE models.
type AIF struct {
	// Times is the dynamic time grid in minutes, T = (t1,...,tN).
	Times []float64

	Type       Type
	Kind       Kind
	PortalType Type

	// Dose (mmol/kg), Hct and Prebolus (0-based injection image index)
	// parametrise the population formulae and the file/(1-Hct) scaling.
	Dose     float64
	Hct      float64
	Prebolus int

	baselineAIF []float64 // unscaled, set when Type == File
	baselinePIF []float64 // unscaled portal input, set when PortalType == File

	resampledAIF []float64
	resampledPIF []float64
	lastAIFDelay float64
	haveAIF      bool

	pifIRF     []float64
	haveIRF    bool
	irfOffset  float64
}

// NewPopulation constructs a population AIF (Parker by default) on the
// given time grid.
func NewPopulation(times []float64, dose, hct float64, prebolus int) *AIF {
	return &AIF{
		Times:    append([]float64(nil), times...),
		Type:     Population,
		Kind:     Parker,
		Dose:     dose,
		Hct:      hct,
		Prebolus: prebolus,
	}
}

// NewLegacy constructs a legacy (Weinmann) population AIF.
func NewLegacy(times []float64, dose, hct float64, prebolus int) *AIF {
	a := NewPopulation(times, dose, hct, prebolus)
	a.Type = Legacy
	a.Kind = Weinmann
	return a
}

// NTimes returns the length of the dynamic time grid.
func (a *AIF) NTimes() int { return len(a.Times) }

// Resampled returns the most recently resampled AIF (after a Resample
// call). Its length always equals NTimes().
func (a *AIF) Resampled() []float64 { return a.resampledAIF }

// ResampledPIF returns the most recently resampled portal input function.
func (a *AIF) ResampledPIF() []float64 { return a.resampledPIF }

// Resample produces Ca(ti) evaluated at ti+tau.
// It is idempotent w.r.t. the same delay: calling it twice with the same
// tau is a no-op after the first call.
func (a *AIF) Resample(tau float64) ([]float64, error) {
	if a.haveAIF && a.lastAIFDelay == tau && len(a.resampledAIF) == len(a.Times) {
		return a.resampledAIF, nil
	}

	n := a.NTimes()
	out := make([]float64, n)

	switch a.Type {
	case Population:
		if a.Kind == Weinmann {
			out = a.resampleWeinmann(tau)
		} else {
			out = a.resampleParker(tau)
		}
	case Legacy:
		out = a.resampleWeinmann(tau)
	case File, Map:
		out = resampleLinear(a.Times, a.baselineAIF, tau, a.Hct)
	default:
		return nil, madymerr.New(madymerr.ModelUnknown, "AIF.Resample", "AIF type not configured")
	}

	a.resampledAIF = out
	a.lastAIFDelay = tau
	a.haveAIF = true
	return out, nil
}

// resampleParker implements mdm_AIF::aifPopGJMP: Parker et al. MRM
// 56:993(2006), scaled by dose/0.1 and 1/(1-Hct). The Gaussians and
// sigmoid are centred on the last pre-bolus frame's offset time
// (index Prebolus-1), not the first post-bolus frame.
func (a *AIF) resampleParker(tOffset float64) []float64 {
	const (
		kA1, kMu1, kSigma1 = 5.7326, 0.17046, 0.0563
		kA2, kMu2, kSigma2 = 0.9974, 0.365, 0.132
		kAlpha, kBeta      = 1.050, 0.1685
		kS, kTau           = 38.078, 0.483
	)

	n := a.NTimes()
	out := make([]float64, n)
	offsetTimes := make([]float64, n)
	for i := 0; i < n; i++ {
		offsetTimes[i] = a.Times[i] - a.Times[0] + tOffset
	}

	bolusIdx := a.Prebolus - 1
	if bolusIdx < 0 {
		bolusIdx = 0
	}
	bolus := offsetTimes[bolusIdx]
	for i := 0; i < n; i++ {
		dt := a.Times[i] - bolus
		g1 := kA1 * expSq(dt-kMu1, kSigma1)
		g2 := kA2 * expSq(dt-kMu2, kSigma2)
		sigmoid := kAlpha * expDecay(-kBeta*dt) / (1 + expDecay(-kS*(dt-kTau)))
		out[i] = (a.Dose / 0.1) * (g1 + g2 + sigmoid) / (1.0 - a.Hct)
	}
	return out
}

func expSq(x, sigma float64) float64 {
	return math.Exp(-1.0 * x * x / (2.0 * sigma * sigma))
}

func expDecay(x float64) float64 { return math.Exp(x) }

// resampleWeinmann implements the legacy biexponential AIF_STD form
// (mdm_AIF::aifWeinman), zero before the injection image, then linearly
// resampled onto the shifted grid.
func (a *AIF) resampleWeinmann(tOffset float64) []float64 {
	const (
		kAlpha1, kBeta1 = 3.99, 0.144
		kAlpha2, kBeta2 = 4.78, 0.0111
	)

	n := a.NTimes()
	raw := make([]float64, n)
	offsetTimes := make([]float64, n)
	for i := 0; i < n; i++ {
		offsetTimes[i] = a.Times[i] - a.Times[0] + tOffset
	}

	raw[0] = 0.0
	for i := 1; i < n; i++ {
		if i < a.Prebolus {
			raw[i] = 0.0
		} else {
			raw[i] = a.Dose * (kAlpha1*math.Exp(-kBeta1*a.Times[i-1]) + kAlpha2*math.Exp(-kBeta2*a.Times[i-1]))
		}
	}

	out := make([]float64, n)
	out[0] = 0.0
	for i := 1; i < n; i++ {
		if a.Times[i] <= offsetTimes[0] {
			out[i] = 0.0
			continue
		}
		for j := 1; j < n; j++ {
			if a.Times[i] > offsetTimes[j-1] && a.Times[i] <= offsetTimes[j] {
				dt := offsetTimes[j] - offsetTimes[j-1]
				rem := a.Times[i] - offsetTimes[j-1]
				out[i] = rem/dt*raw[j] + (1.0-rem/dt)*raw[j-1]
				break
			}
		}
	}
	return out
}

// resampleLinear implements resampleLoaded: piecewise-linear interpolation
// with zero extrapolation left and last-value right.
func resampleLinear(times, loaded []float64, tOffset, hct float64) []float64 {
	n := len(times)
	out := make([]float64, n)
	if len(loaded) == 0 {
		return out
	}
	offsetTimes := make([]float64, n)
	for i := 0; i < n; i++ {
		offsetTimes[i] = times[i] + tOffset
	}

	for i := 0; i < n; i++ {
		t := times[i]
		switch {
		case t <= offsetTimes[0]:
			out[i] = 0.0
		case t > offsetTimes[n-1]:
			out[i] = loaded[n-1] / (1.0 - hct)
		default:
			for j := 1; j < n; j++ {
				if t > offsetTimes[j-1] && t <= offsetTimes[j] {
					dt := offsetTimes[j] - offsetTimes[j-1]
					rem := t - offsetTimes[j-1]
					out[i] = (rem/dt*loaded[j] + (1.0-rem/dt)*loaded[j-1]) / (1.0 - hct)
					break
				}
			}
		}
	}
	return out
}
