package fitter

import (
	"math"
	"testing"

	"github.com/mberks/madym/internal/dcemodel"
	"github.com/mberks/madym/internal/errtrack"
)

func linspace(start, stop float64, n int) []float64 {
	out := make([]float64, n)
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func bolusAIF(times []float64) []float64 {
	out := make([]float64, len(times))
	for i, t := range times {
		out[i] = 5 * t * math.Exp(-t/2)
	}
	return out
}

func TestFitterRecoversETMParams(t *testing.T) {
	times := linspace(0, 5, 40)
	ca := bolusAIF(times)

	model, err := dcemodel.New(dcemodel.ETM)
	if err != nil {
		t.Fatal(err)
	}
	wantParams := []float64{0.25, 0.3, 0.05, 0}
	target := make([]float64, len(times))
	model.ComputeCtModel(times, ca, nil, wantParams, target)

	f := New(model, Config{MaxIterations: 300})
	f.SetInitialParams([]float64{0.1, 0.2, 0.1, 0})
	f.InitialiseModelFit(times, ca, nil, target)
	code := f.FitModel()

	if code != errtrack.OK {
		t.Fatalf("FitModel() code = %v, want OK", code)
	}
	got := f.Params()
	for i, want := range wantParams[:3] {
		if math.Abs(got[i]-want) > 0.05 {
			t.Errorf("param %d = %v, want ~%v", i, got[i], want)
		}
	}
	if f.LastSSE > 1e-4 {
		t.Errorf("LastSSE = %v, want near zero", f.LastSSE)
	}
}

func TestFitterRespectsFixedParams(t *testing.T) {
	times := linspace(0, 5, 30)
	ca := bolusAIF(times)
	model, _ := dcemodel.New(dcemodel.Patlak)

	target := make([]float64, len(times))
	model.ComputeCtModel(times, ca, nil, []float64{0.2, 0.1, 0}, target)

	f := New(model, Config{
		MaxIterations: 200,
		FixedMask:     []bool{false, true, true},
		FixedValues:   []float64{0, 0.1, 0},
	})
	f.InitialiseModelFit(times, ca, nil, target)
	f.FitModel()

	got := f.Params()
	if got[1] != 0.1 || got[2] != 0 {
		t.Errorf("fixed params changed: got %v", got)
	}
}

func TestFitterRelativeLimitNarrowsBounds(t *testing.T) {
	times := linspace(0, 5, 30)
	ca := bolusAIF(times)
	model, _ := dcemodel.New(dcemodel.Patlak)

	// Target wants Ktrans=2.0, far outside a +/-0.2 window around the
	// Ktrans=0.1 initial value.
	target := make([]float64, len(times))
	model.ComputeCtModel(times, ca, nil, []float64{2.0, 0.1, 0}, target)

	f := New(model, Config{
		MaxIterations:       200,
		RelativeLimitParams: []string{"Ktrans"},
		RelativeLimitValues: []float64{0.2},
	})
	f.SetInitialParams([]float64{0.1, 0.1, 0})
	f.InitialiseModelFit(times, ca, nil, target)
	f.FitModel()

	ktrans := f.Params()[0]
	if ktrans > 0.3+1e-6 {
		t.Errorf("Ktrans = %v, want <= 0.3 (narrowed by relative limit around theta0=0.1)", ktrans)
	}
}

func TestFitterRejectsInvalidParamRegion(t *testing.T) {
	times := linspace(0, 5, 20)
	ca := bolusAIF(times)
	model, _ := dcemodel.New(dcemodel.ETM)

	target := make([]float64, len(times))
	model.ComputeCtModel(times, ca, nil, model.InitialParams(), target)

	f := New(model, Config{MaxIterations: 50})
	f.SetInitialParams([]float64{0.1, 0.9, 0.9, 0}) // ve+vp > 1, invalid region
	f.InitialiseModelFit(times, ca, nil, target)
	code := f.FitModel()

	// Every residual in the ve+vp>1 region is the same constant penalty, so
	// the optimiser finds no gradient there; the fit left in that region is
	// reported as DCEInvalidParam rather than as a usable result.
	ve, vp := f.Params()[1], f.Params()[2]
	if code != errtrack.DCEInvalidParam {
		t.Errorf("FitModel() from a ve+vp>1 start = %v, want DCEInvalidParam (ve=%v vp=%v)", code, ve, vp)
	}
}
