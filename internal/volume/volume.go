// Package volume implements VolumeAnalysis: the ROI
// orchestration layer that drives DCEVoxel and DCEModelFitter across a
// full 3D dynamic series and writes parameter, IAUC, residual and
// enhancement-mask output maps.
package volume

import (
	"github.com/mberks/madym/internal/aif"
	"github.com/mberks/madym/internal/dcemodel"
	"github.com/mberks/madym/internal/errtrack"
	"github.com/mberks/madym/internal/fitter"
	"github.com/mberks/madym/internal/image3d"
	"github.com/mberks/madym/internal/madymerr"
	"github.com/mberks/madym/internal/mlog"
	"github.com/mberks/madym/internal/voxel"
)

// Config parametrises one VolumeAnalysis run.
type Config struct {
	// ConcentrationMode: dynamics are already Ct, so voxel signal->Ct
	// conversion is skipped.
	ConcentrationMode bool

	TR, FlipAngle, R1Const float64
	Prebolus               int
	UseM0Ratio             bool

	IAUCTimes  []float64 // minutes post-bolus
	IAUCAtPeak bool

	TestEnhancement bool
	OptimiseModel   bool

	DualInput bool // model consumes a portal input in addition to AIF

	FitConfig fitter.Config

	// InitMapParams, keyed by model parameter name, preloads per-voxel
	// initial theta.
	InitMapParams map[string]*image3d.Image3D

	// PreloadedResiduals, if set, is a baseline residual map: a voxel's
	// new fit residual must beat the preloaded value to be written
	// (incremental refitting).
	PreloadedResiduals *image3d.Image3D

	// ProgressEvery is the fraction of voxels between progress log lines;
	// 0 defaults to 0.1 (roughly every 10%).
	ProgressEvery float64
}

// Analysis owns the dynamic series, AIF, model, ROI, error tracker and all
// output maps for one fitting run.
type Analysis struct {
	model dcemodel.Model
	cfg   Config

	dynamics []*image3d.Image3D
	aif      *aif.AIF
	t1Map    *image3d.Image3D
	m0Map    *image3d.Image3D
	b1Map    *image3d.Image3D
	roi      *image3d.Image3D

	Tracker *errtrack.Tracker

	ParamMaps    map[string]*image3d.Image3D
	IAUCMaps     map[float64]*image3d.Image3D
	IAUCPeakMap  *image3d.Image3D
	ResidualMap  *image3d.Image3D
	EnhancingMap *image3d.Image3D

	times []float64
	ca    []float64
	cp    []float64
}

// New constructs an Analysis. dynamics must all share the reference
// dimensions of dynamics[0]; t1Map/m0Map/b1Map may be nil in concentration
// mode. aifInput is resampled once against the time grid derived from each
// dynamic's Meta.Timestamp.
func New(model dcemodel.Model, dynamics []*image3d.Image3D, aifInput *aif.AIF, t1Map, m0Map, b1Map, roi *image3d.Image3D, cfg Config) (*Analysis, error) {
	if len(dynamics) == 0 {
		return nil, madymerr.New(madymerr.MissingMetadata, "volume.New", "no dynamic images supplied")
	}
	ref := dynamics[0]
	for _, d := range dynamics[1:] {
		if err := ref.CheckSameShape(d, "volume.New"); err != nil {
			return nil, err
		}
	}
	for _, m := range []*image3d.Image3D{t1Map, m0Map, b1Map, roi} {
		if m != nil {
			if err := ref.CheckSameShape(m, "volume.New"); err != nil {
				return nil, err
			}
		}
	}

	times := make([]float64, len(dynamics))
	for i, d := range dynamics {
		t, err := d.Meta.Timestamp.Require("volume.New", "Timestamp")
		if err != nil {
			return nil, err
		}
		times[i] = t
	}

	a := &Analysis{
		model:    model,
		cfg:      cfg,
		dynamics: dynamics,
		aif:      aifInput,
		t1Map:    t1Map,
		m0Map:    m0Map,
		b1Map:    b1Map,
		roi:      roi,
		times:    times,
		Tracker:  errtrack.New(ref),
	}
	a.initMaps(ref)
	return a, nil
}

func (a *Analysis) initMaps(ref *image3d.Image3D) {
	a.ParamMaps = make(map[string]*image3d.Image3D, a.model.NumParams())
	for _, name := range a.model.ParamNames() {
		a.ParamMaps[name] = image3d.Copy(ref)
	}

	a.IAUCMaps = make(map[float64]*image3d.Image3D, len(a.cfg.IAUCTimes))
	for _, tau := range a.cfg.IAUCTimes {
		a.IAUCMaps[tau] = image3d.Copy(ref)
	}
	if a.cfg.IAUCAtPeak {
		a.IAUCPeakMap = image3d.Copy(ref)
	}

	a.ResidualMap = image3d.Copy(ref)
	a.EnhancingMap = image3d.Copy(ref)
}

// resampleInputs resamples the AIF (and PIF, if DualInput) onto the time
// grid with zero delay. Run calls it on entry, so every voxel is fitted
// against the undelayed input functions.
func (a *Analysis) resampleInputs() error {
	ca, err := a.aif.Resample(0)
	if err != nil {
		return err
	}
	a.ca = ca
	if a.cfg.DualInput {
		cp, err := a.aif.ResamplePIF(0, false)
		if err != nil {
			return err
		}
		a.cp = cp
	}
	return nil
}

// Run iterates the ROI (or every voxel if no ROI was supplied), performing
// the per-voxel fit loop. Progress is logged via mlog.Program() at
// cfg.ProgressEvery increments.
func (a *Analysis) Run() error {
	if err := a.resampleInputs(); err != nil {
		return err
	}

	ref := a.dynamics[0]
	n := ref.NumVoxels()
	every := a.cfg.ProgressEvery
	if every <= 0 {
		every = 0.1
	}
	logStep := int(float64(n) * every)
	if logStep < 1 {
		logStep = 1
	}

	for idx := 0; idx < n; idx++ {
		if a.roi != nil && a.roi.At(idx) == 0 {
			continue
		}
		a.runVoxel(idx)

		if idx%logStep == 0 {
			mlog.Program().Infof("volume: %d/%d voxels (%.0f%%)", idx, n, 100*float64(idx)/float64(n))
		}
	}
	mlog.Program().Infof("volume: fit complete, %d voxels processed", n)
	return nil
}

func (a *Analysis) runVoxel(idx int) {
	signal := make([]float64, len(a.dynamics))
	for i, d := range a.dynamics {
		signal[i] = d.At(idx)
	}

	var in voxel.Inputs
	in.Times = a.times
	in.Prebolus = a.cfg.Prebolus
	in.IAUCTimes = a.cfg.IAUCTimes
	in.IAUCAtPeak = a.cfg.IAUCAtPeak

	if a.cfg.ConcentrationMode {
		v := &voxel.Voxel{Ct: signal, Status: voxel.OK}
		v.ComputeIAUCAndEnhancement(in)
		a.recordVoxel(idx, v)
		return
	}

	in.Signal = signal
	in.T10 = a.t1Map.At(idx)
	in.M0 = a.m0Map.At(idx)
	if a.b1Map != nil {
		in.B1 = a.b1Map.At(idx)
	} else {
		in.B1 = 1
	}
	in.TR = a.cfg.TR
	in.FlipAngle = a.cfg.FlipAngle
	in.R1Const = a.cfg.R1Const
	in.UseM0Ratio = a.cfg.UseM0Ratio

	v := voxel.New(in)
	a.recordVoxel(idx, v)
}

func (a *Analysis) recordVoxel(idx int, v *voxel.Voxel) {
	if v.Status != voxel.OK && v.Status != voxel.NonEnhancing {
		a.Tracker.UpdateVoxel(idx, v.Status.ErrorCode())
		return
	}

	for j, tau := range a.cfg.IAUCTimes {
		a.IAUCMaps[tau].Set(idx, v.IAUC[j])
	}
	if a.cfg.IAUCAtPeak {
		a.IAUCPeakMap.Set(idx, v.IAUCPeak)
	}
	a.EnhancingMap.Set(idx, boolToFloat(v.Enhancing))

	if !v.Enhancing && a.cfg.TestEnhancement {
		a.Tracker.UpdateVoxel(idx, errtrack.NonEnhIAUC)
		return
	}

	if !a.cfg.OptimiseModel {
		return
	}

	f := fitter.New(a.model, a.cfg.FitConfig)
	if init := a.sampleInitParams(idx); init != nil {
		f.SetInitialParams(init)
	}
	f.InitialiseModelFit(a.times, a.ca, a.cp, v.Ct)

	code := f.FitModel()
	if a.cfg.PreloadedResiduals != nil {
		baseline := a.cfg.PreloadedResiduals.At(idx)
		if f.LastSSE >= baseline {
			return
		}
	}
	a.Tracker.UpdateVoxel(idx, code)

	params := f.Params()
	for i, name := range a.model.ParamNames() {
		a.ParamMaps[name].Set(idx, params[i])
	}
	a.ResidualMap.Set(idx, f.LastSSE)
}

func (a *Analysis) sampleInitParams(idx int) []float64 {
	if len(a.cfg.InitMapParams) == 0 {
		return nil
	}
	names := a.model.ParamNames()
	out := make([]float64, len(names))
	any := false
	for i, name := range names {
		if m, ok := a.cfg.InitMapParams[name]; ok {
			out[i] = m.At(idx)
			any = true
		} else {
			out[i] = a.model.InitialParams()[i]
		}
	}
	if !any {
		return nil
	}
	return out
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// ComputeMeanCt averages Ct across voxels where labelMap equals value,
// skipping voxels with a bad conversion status. Returns the mean curve and the count of
// skipped/bad voxels.
func (a *Analysis) ComputeMeanCt(labelMap *image3d.Image3D, value float64) (meanCt []float64, badVoxels int) {
	n := labelMap.NumVoxels()
	sum := make([]float64, len(a.times))
	count := 0

	for idx := 0; idx < n; idx++ {
		if labelMap.At(idx) != value {
			continue
		}
		signal := make([]float64, len(a.dynamics))
		for i, d := range a.dynamics {
			signal[i] = d.At(idx)
		}

		in := voxel.Inputs{
			Times: a.times, Signal: signal,
			T10: a.t1Map.At(idx), M0: a.m0Map.At(idx), TR: a.cfg.TR,
			FlipAngle: a.cfg.FlipAngle, R1Const: a.cfg.R1Const,
			Prebolus: a.cfg.Prebolus, UseM0Ratio: a.cfg.UseM0Ratio,
		}
		if a.b1Map != nil {
			in.B1 = a.b1Map.At(idx)
		} else {
			in.B1 = 1
		}

		v := voxel.New(in)
		if v.Status != voxel.OK {
			badVoxels++
			continue
		}
		for i, c := range v.Ct {
			sum[i] += c
		}
		count++
	}

	meanCt = make([]float64, len(a.times))
	if count > 0 {
		for i := range meanCt {
			meanCt[i] = sum[i] / float64(count)
		}
	}
	return meanCt, badVoxels
}
