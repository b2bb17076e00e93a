package aif

import (
	"math"
	"sort"

	"github.com/mberks/madym/internal/madymerr"
	"github.com/mberks/madym/internal/mlog"
	"github.com/mberks/madym/internal/sigconv"
)

// CandidateVoxel is one mask voxel's dynamic signal time course together
// with the static parameters needed to convert it to concentration.
type CandidateVoxel struct {
	Signal       []float64 // dynamic signal, one sample per a.Times entry
	T10          float64
	M0           float64
	CosFA        float64
	SinFA        float64
	TR           float64
	UseM0Ratio   bool
	R1Const      float64
}

// AutoAIFOptions parametrises the voxel-averaged automatic AIF selection
// (mdm_AIF's auto-AIF routine): the top selectFraction of candidate voxels
// by peak enhancement are averaged, then divided by (1-Hct).
type AutoAIFOptions struct {
	SelectFraction float64 // default 0.05 (top 5%)
	PrebolusImage  int
}

// ComputeAutoAIF derives a Map-type AIF from a voxel population: it ranks
// voxels by peak concentration, averages the top SelectFraction, clamps
// negative values to zero, and records the first index at which the
// averaged curve becomes positive (the arrival gate).
func ComputeAutoAIF(times []float64, hct float64, voxels []CandidateVoxel, opts AutoAIFOptions) (*AIF, int, error) {
	if len(voxels) == 0 {
		return nil, 0, madymerr.New(madymerr.MissingMetadata, "ComputeAutoAIF", "no candidate voxels supplied")
	}
	frac := opts.SelectFraction
	if frac <= 0 {
		frac = 0.05
	}

	n := len(times)
	type scored struct {
		ct   []float64
		peak float64
	}
	all := make([]scored, 0, len(voxels))

	for _, v := range voxels {
		ct := make([]float64, n)
		var meanPrebolus float64
		for i := 0; i <= opts.PrebolusImage && i < len(v.Signal); i++ {
			meanPrebolus += v.Signal[i]
		}
		if opts.PrebolusImage >= 0 {
			meanPrebolus /= float64(opts.PrebolusImage + 1)
		}

		valid := true
		for i := 0; i < n && i < len(v.Signal); i++ {
			var r1 float64
			var status sigconv.Status
			if v.UseM0Ratio {
				r1, status = sigconv.R1FromRatio(v.Signal[i], meanPrebolus, v.CosFA, v.TR, v.T10)
			} else {
				r1, status = sigconv.R1FromM0(v.Signal[i], v.SinFA, v.CosFA, v.M0, v.TR)
			}
			if status != sigconv.OK {
				valid = false
				break
			}
			c, cstatus := sigconv.ConcentrationFromR1(r1, v.T10, v.R1Const)
			if cstatus != sigconv.OK {
				valid = false
				break
			}
			ct[i] = c
		}
		if !valid {
			continue
		}

		peak := ct[0]
		for _, c := range ct {
			if c > peak {
				peak = c
			}
		}
		all = append(all, scored{ct: ct, peak: peak})
	}

	if len(all) == 0 {
		return nil, 0, madymerr.New(madymerr.MissingMetadata, "ComputeAutoAIF", "no candidate voxel produced a valid concentration curve")
	}

	sort.Slice(all, func(i, j int) bool { return all[i].peak > all[j].peak })
	nSelect := int(math.Ceil(frac * float64(len(all))))
	if nSelect < 1 {
		nSelect = 1
	}
	if nSelect > len(all) {
		nSelect = len(all)
	}

	avg := make([]float64, n)
	for _, s := range all[:nSelect] {
		for i := 0; i < n; i++ {
			avg[i] += s.ct[i]
		}
	}
	for i := range avg {
		avg[i] /= float64(nSelect)
		avg[i] /= 1.0 - hct
		if avg[i] < 0 {
			avg[i] = 0
		}
	}

	arrival := 0
	for i, v := range avg {
		if v > 0 {
			arrival = i
			break
		}
	}

	mlog.Program().Infof("auto-AIF: averaged %d/%d candidate voxels, arrival index %d", nSelect, len(all), arrival)

	a := &AIF{
		Times:       append([]float64(nil), times...),
		Type:        Map,
		Hct:         hct,
		Prebolus:    opts.PrebolusImage,
		baselineAIF: avg,
	}
	return a, arrival, nil
}
