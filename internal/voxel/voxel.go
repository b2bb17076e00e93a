// Package voxel implements DCEVoxel: per-voxel
// signal->concentration conversion, IAUC integration and the enhancement
// test that gates whether a voxel is handed to the model fitter.
package voxel

import (
	"math"

	"github.com/mberks/madym/internal/errtrack"
	"github.com/mberks/madym/internal/sigconv"
)

// Status is the voxel's terminal conversion/enhancement state.
type Status int

const (
	OK Status = iota
	CaNaN
	DynT1Bad
	M0Bad
	T10Bad
	NonEnhancing
)

// ErrorCode maps a Status to its ErrorTracker bit. T10Bad has no dedicated
// bit in the stable 13-bit layout; it reuses DynT1Negative, the
// closest existing "bad dynamic conversion" code.
func (s Status) ErrorCode() errtrack.Code {
	switch s {
	case CaNaN:
		return errtrack.CaIsNaN
	case DynT1Bad:
		return errtrack.DynT1Negative
	case M0Bad:
		return errtrack.M0Negative
	case T10Bad:
		return errtrack.DynT1Negative
	case NonEnhancing:
		return errtrack.NonEnhIAUC
	default:
		return errtrack.OK
	}
}

// Inputs collects everything a DCEVoxel needs to convert one voxel's
// dynamic signal series into a concentration time course.
type Inputs struct {
	Times []float64 // dynamic time grid, minutes
	Signal []float64 // S(t_i), len == len(Times); nil if already concentration mode

	T10        float64 // baseline T1, ms
	M0         float64
	B1         float64 // multiplicative flip-angle correction; 1.0 if unused
	TR         float64 // ms
	FlipAngle  float64 // degrees
	R1Const    float64 // contrast agent relaxivity, mM^-1 s^-1
	Prebolus   int     // 0-based index of the first post-injection dynamic (= number of pre-injection dynamics)
	UseM0Ratio bool

	IAUCTimes   []float64 // minutes post-bolus
	IAUCAtPeak  bool
}

// Voxel is the immutable per-voxel state computed by New: concentration
// series, IAUC values, enhancement flag and terminal status.
type Voxel struct {
	Ct     []float64
	Status Status

	IAUC     []float64 // one value per Inputs.IAUCTimes, same order
	IAUCPeak float64
	Enhancing bool
}

// New constructs a Voxel: computeCtFromSignal, then computeIAUC, then
// testEnhancing, in that fixed order.
func New(in Inputs) *Voxel {
	v := &Voxel{}
	v.computeCtFromSignal(in)
	if v.Status == OK {
		v.ComputeIAUCAndEnhancement(in)
	}
	return v
}

// ComputeIAUCAndEnhancement runs computeIAUC then testEnhancing. Exported
// for callers that already hold a concentration series (concentration-mode
// dynamics) and construct a Voxel directly rather than via New.
func (v *Voxel) ComputeIAUCAndEnhancement(in Inputs) {
	v.computeIAUC(in)
	v.testEnhancing(in)
}

func (v *Voxel) computeCtFromSignal(in Inputs) {
	n := len(in.Times)
	if in.Signal == nil {
		// Already concentration-mode input; nothing to convert. Ct is left
		// zeroed for the caller to set directly through the Ct field.
		v.Ct = make([]float64, n)
		v.Status = OK
		return
	}

	if in.M0 <= 0 {
		v.Status = M0Bad
		v.Ct = make([]float64, n)
		return
	}
	if in.T10 <= 0 {
		v.Status = T10Bad
		v.Ct = make([]float64, n)
		return
	}

	angle := in.FlipAngle * in.B1 * math.Pi / 180.0
	cosFA, sinFA := math.Cos(angle), math.Sin(angle)

	ct := make([]float64, n)
	var meanPrebolus float64
	if in.UseM0Ratio {
		p := in.Prebolus
		if p < 1 {
			p = 1
		}
		var sum float64
		for k := 0; k < p && k < n; k++ {
			sum += in.Signal[k]
		}
		meanPrebolus = sum / float64(p)
	}

	for k := 0; k < n; k++ {
		var r1 float64
		var status sigconv.Status
		if in.UseM0Ratio {
			r1, status = sigconv.R1FromRatio(in.Signal[k], meanPrebolus, cosFA, in.TR, in.T10)
		} else {
			r1, status = sigconv.R1FromM0(in.Signal[k], sinFA, cosFA, in.M0, in.TR)
		}
		if status != sigconv.OK {
			v.Status = DynT1Bad
			v.Ct = zeroFrom(ct, k, n)
			return
		}

		c, cstatus := sigconv.ConcentrationFromR1(r1, in.T10, in.R1Const)
		if cstatus == sigconv.CaNaN {
			v.Status = CaNaN
			v.Ct = zeroFrom(ct, k, n)
			return
		}
		ct[k] = c
	}

	v.Ct = ct
	v.Status = OK
}

func zeroFrom(ct []float64, from, n int) []float64 {
	for i := from; i < n; i++ {
		ct[i] = 0
	}
	return ct
}

// computeIAUC integrates the trapezoid area under Ct from the prebolus
// time to prebolus+tau for each requested tau, linearly interpolating the
// final partial step.
func (v *Voxel) computeIAUC(in Inputs) {
	n := len(in.Times)
	if n == 0 || in.Prebolus >= n {
		return
	}
	tp := in.Times[in.Prebolus]

	v.IAUC = make([]float64, len(in.IAUCTimes))
	for j, tau := range in.IAUCTimes {
		v.IAUC[j] = integrateUpTo(in.Times, v.Ct, in.Prebolus, tp+tau)
	}

	if in.IAUCAtPeak {
		peakIdx := argmax(v.Ct)
		v.IAUCPeak = integrateUpTo(in.Times, v.Ct, in.Prebolus, in.Times[peakIdx])
	}
}

// integrateUpTo trapezoid-integrates f over [times[from], target], linearly
// interpolating the final partial interval when target falls between grid
// points.
func integrateUpTo(times, f []float64, from int, target float64) float64 {
	n := len(times)
	if from >= n-1 {
		return 0
	}
	var area float64
	for i := from + 1; i < n; i++ {
		if times[i] <= target {
			dt := times[i] - times[i-1]
			area += dt * 0.5 * (f[i] + f[i-1])
			continue
		}
		// Partial final step: interpolate f at target, integrate the sub-
		// interval [times[i-1], target].
		dtFull := times[i] - times[i-1]
		if dtFull <= 0 {
			break
		}
		frac := (target - times[i-1]) / dtFull
		fTarget := f[i-1] + frac*(f[i]-f[i-1])
		dtPart := target - times[i-1]
		area += dtPart * 0.5 * (fTarget + f[i-1])
		break
	}
	return area
}

func argmax(f []float64) int {
	best := 0
	for i, v := range f {
		if v > f[best] {
			best = i
		}
	}
	return best
}

// testEnhancing declares the voxel non-enhancing (and sets NonEnhancing
// status) if any requested IAUC is <= 0.
func (v *Voxel) testEnhancing(in Inputs) {
	v.Enhancing = true
	for _, val := range v.IAUC {
		if val <= 0 {
			v.Enhancing = false
			v.Status = NonEnhancing
			return
		}
	}
}
