package volume

import (
	"math"
	"testing"

	"github.com/mberks/madym/internal/aif"
	"github.com/mberks/madym/internal/dcemodel"
	"github.com/mberks/madym/internal/errtrack"
	"github.com/mberks/madym/internal/fitter"
	"github.com/mberks/madym/internal/image3d"
)

func makeDynamics(nx, ny, nz int, times []float64, valueFn func(idx int, t float64) float64) []*image3d.Image3D {
	out := make([]*image3d.Image3D, len(times))
	for i, t := range times {
		img := image3d.New(nx, ny, nz)
		img.Meta.Timestamp = image3d.NewOptFloat(t)
		for idx := 0; idx < img.NumVoxels(); idx++ {
			img.Set(idx, valueFn(idx, t))
		}
		out[i] = img
	}
	return out
}

func TestVolumeRunConcentrationMode(t *testing.T) {
	times := []float64{0, 1, 2, 3, 4, 5}
	dynamics := makeDynamics(2, 2, 1, times, func(idx int, t float64) float64 {
		return t * t * 0.1
	})

	model, _ := dcemodel.New(dcemodel.Patlak)
	aifObj := aif.NewPopulation(times, 0.1, 0.42, 0)

	cfg := Config{
		ConcentrationMode: true,
		IAUCTimes:         []float64{2, 3},
		TestEnhancement:   true,
		OptimiseModel:     true,
		FitConfig:         fitter.Config{MaxIterations: 100},
	}
	a, err := New(model, dynamics, aifObj, nil, nil, nil, nil, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for idx := 0; idx < dynamics[0].NumVoxels(); idx++ {
		if a.Tracker.HasBit(idx, errtrack.DCEFitFail) {
			t.Errorf("voxel %d: unexpected DCEFitFail", idx)
		}
		for _, name := range model.ParamNames() {
			v := a.ParamMaps[name].At(idx)
			if math.IsNaN(v) {
				t.Errorf("voxel %d param %s is NaN", idx, name)
			}
		}
	}
}

func TestVolumeRejectsDimensionMismatch(t *testing.T) {
	times := []float64{0, 1, 2}
	a := image3d.New(2, 2, 1)
	a.Meta.Timestamp = image3d.NewOptFloat(0)
	b := image3d.New(3, 3, 1)
	b.Meta.Timestamp = image3d.NewOptFloat(1)
	c := image3d.New(2, 2, 1)
	c.Meta.Timestamp = image3d.NewOptFloat(2)

	model, _ := dcemodel.New(dcemodel.Patlak)
	aifObj := aif.NewPopulation(times, 0.1, 0.42, 0)

	_, err := New(model, []*image3d.Image3D{a, b, c}, aifObj, nil, nil, nil, nil, Config{ConcentrationMode: true})
	if err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestComputeMeanCtSkipsBadVoxels(t *testing.T) {
	times := []float64{0, 1, 2, 3}
	dynamics := makeDynamics(2, 1, 1, times, func(idx int, t float64) float64 {
		return 100 + t*10
	})
	model, _ := dcemodel.New(dcemodel.Patlak)
	aifObj := aif.NewPopulation(times, 0.1, 0.42, 0)

	t1Map := image3d.New(2, 1, 1)
	t1Map.Set(0, 1000)
	t1Map.Set(1, -1) // bad T1 -> conversion failure
	m0Map := image3d.New(2, 1, 1)
	m0Map.Set(0, 1000)
	m0Map.Set(1, 1000)

	cfg := Config{TR: 5, FlipAngle: 20, R1Const: 4.3, Prebolus: 1}
	a, err := New(model, dynamics, aifObj, t1Map, m0Map, nil, nil, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	label := image3d.New(2, 1, 1)
	label.Set(0, 1)
	label.Set(1, 1)

	mean, bad := a.ComputeMeanCt(label, 1)
	if bad != 1 {
		t.Errorf("badVoxels = %d, want 1", bad)
	}
	if len(mean) != len(times) {
		t.Fatalf("mean length = %d, want %d", len(mean), len(times))
	}
}
