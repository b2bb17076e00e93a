package dcemodel

import (
	"math"
	"testing"

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

// bolusAIF is a simple decaying bolus curve, positive and nonzero, usable
// as a stand-in arterial/portal input for every model's forward pass.
func bolusAIF(times []float64) []float64 {
	out := make([]float64, len(times))
	for i, t := range times {
		out[i] = 5 * t * math.Exp(-t/2)
	}
	return out
}

func TestAllNamesConstructViaFactory(t *testing.T) {
	for _, name := range AllNames() {
		model, err := New(name)
		if err != nil {
			t.Fatalf("New(%s): %v", name, err)
		}
		if model.Name() != name {
			t.Errorf("New(%s).Name() = %s", name, model.Name())
		}
		if len(model.ParamNames()) != model.NumParams() {
			t.Errorf("%s: ParamNames length %d != NumParams %d", name, len(model.ParamNames()), model.NumParams())
		}
		if len(model.InitialParams()) != model.NumParams() {
			t.Errorf("%s: InitialParams length mismatch", name)
		}
		lower, upper := model.Bounds()
		if len(lower) != model.NumParams() || len(upper) != model.NumParams() {
			t.Errorf("%s: Bounds length mismatch", name)
		}
	}
}

func TestNewUnknownModelRejected(t *testing.T) {
	if _, err := New(Name("bogus")); err == nil {
		t.Fatal("expected error for unknown model name")
	}
}

func TestModelsProduceFiniteNonNegativeCurves(t *testing.T) {
	times := linspace(0, 5, 40)
	ca := bolusAIF(times)
	cv := bolusAIF(times)

	for _, name := range AllNames() {
		model, err := New(name)
		if err != nil {
			t.Fatalf("New(%s): %v", name, err)
		}
		params := model.InitialParams()
		out := make([]float64, len(times))
		model.ComputeCtModel(times, ca, cv, params, out)
		for i, v := range out {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("%s: non-finite Ct at index %d: %v", name, i, v)
			}
		}
		if code := model.CheckParams(params); code != errtrack.OK {
			t.Errorf("%s: CheckParams(initial) = %v, want OK", name, code)
		}
	}
}

func TestModelsZeroOutOnNaNParam(t *testing.T) {
	times := linspace(0, 5, 10)
	ca := bolusAIF(times)
	cv := bolusAIF(times)

	for _, name := range AllNames() {
		model, err := New(name)
		if err != nil {
			t.Fatalf("New(%s): %v", name, err)
		}
		params := append([]float64(nil), model.InitialParams()...)
		params[0] = math.NaN()
		out := make([]float64, len(times))
		model.ComputeCtModel(times, ca, cv, params, out)
		for i, v := range out {
			if v != 0 {
				t.Errorf("%s: expected zeroed Ct with NaN param, got out[%d]=%v", name, i, v)
			}
		}
		if code := model.CheckParams(params); code != errtrack.DCEFitFail {
			t.Errorf("%s: CheckParams(NaN) = %v, want DCEFitFail", name, code)
		}
	}
}

func TestETMInvalidParamVeVp(t *testing.T) {
	model, _ := New(ETM)
	params := []float64{0.2, 0.5, 0.6, 0} // ve+vp > 1
	if code := model.CheckParams(params); code != errtrack.DCEInvalidParam {
		t.Errorf("CheckParams(ve+vp>1) = %v, want DCEInvalidParam", code)
	}
}

func TestPatlakInvalidVp(t *testing.T) {
	model, _ := New(Patlak)
	if code := model.CheckParams([]float64{0.1, 1.5, 0}); code != errtrack.DCEInvalidParam {
		t.Errorf("CheckParams(vp=1.5) = %v, want DCEInvalidParam", code)
	}
}

func TestDIETMInvalidFa(t *testing.T) {
	model, _ := New(DIETM)
	params := []float64{0.1, 0.2, 0.05, 1.5, 0, 0}
	if code := model.CheckParams(params); code != errtrack.DCEInvalidParam {
		t.Errorf("CheckParams(fa=1.5) = %v, want DCEInvalidParam", code)
	}
}

func TestETMLLSRoundTrip(t *testing.T) {
	times := linspace(0, 5, 60)
	ca := bolusAIF(times)
	model, _ := New(ETM)
	etm := model.(*etmModel)

	wantKtrans, wantVe, wantVp := 0.25, 0.3, 0.05
	ct := make([]float64, len(times))
	etm.ComputeCtModel(times, ca, nil, []float64{wantKtrans, wantVe, wantVp, 0}, ct)

	design := etm.MakeLLSMatrix(times, ca, ct)
	if len(design) != len(times) {
		t.Fatalf("design matrix rows = %d, want %d", len(design), len(times))
	}
	if len(design[0]) != 3 {
		t.Fatalf("design matrix cols = %d, want 3", len(design[0]))
	}

	// Solve the normal equations (D^T D) b = D^T ct and map b back.
	var ata [3][3]float64
	var atb [3]float64
	for i, row := range design {
		for p := 0; p < 3; p++ {
			atb[p] += row[p] * ct[i]
			for q := 0; q < 3; q++ {
				ata[p][q] += row[p] * row[q]
			}
		}
	}
	for c := 0; c < 3; c++ {
		for r := c + 1; r < 3; r++ {
			f := ata[r][c] / ata[c][c]
			for k := c; k < 3; k++ {
				ata[r][k] -= f * ata[c][k]
			}
			atb[r] -= f * atb[c]
		}
	}
	var b [3]float64
	for i := 2; i >= 0; i-- {
		s := atb[i]
		for j := i + 1; j < 3; j++ {
			s -= ata[i][j] * b[j]
		}
		b[i] = s / ata[i][i]
	}

	gotKtrans, gotVe, gotVp := etm.TransformLLSolution(b[:])
	if math.Abs(gotKtrans-wantKtrans) > 0.1*wantKtrans {
		t.Errorf("LLS Ktrans = %v, want ~%v", gotKtrans, wantKtrans)
	}
	if math.Abs(gotVe-wantVe) > 0.1*wantVe {
		t.Errorf("LLS ve = %v, want ~%v", gotVe, wantVe)
	}
	if math.Abs(gotVp-wantVp) > 0.1*wantVp {
		t.Errorf("LLS vp = %v, want ~%v", gotVp, wantVp)
	}
}

func TestDISCMResetRerun(t *testing.T) {
	model, _ := New(DISCM)
	rerunnable, ok := model.(Rerunnable)
	if !ok {
		t.Fatal("DISCM does not implement Rerunnable")
	}
	params := []float64{1, 1, 1, 0.3, 0.1}
	rerunnable.ResetRerun(params)
	init := model.InitialParams()
	if params[3] != init[3] || params[4] != init[4] {
		t.Errorf("ResetRerun did not restore tau_a/tau_v: got %v, want %v/%v", params[3:5], init[3], init[4])
	}
}

func TestDIBEMFpConstructs(t *testing.T) {
	model := NewDIBEMFp()
	if model.Name() != DIBEMFp {
		t.Errorf("NewDIBEMFp().Name() = %s", model.Name())
	}
	if model.NumParams() != 7 {
		t.Errorf("NumParams() = %d, want 7", model.NumParams())
	}
	times := linspace(0, 5, 20)
	ca := bolusAIF(times)
	cv := bolusAIF(times)
	out := make([]float64, len(times))
	model.ComputeCtModel(times, ca, cv, model.InitialParams(), out)
	for i, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("DIBEMFp: non-finite Ct at %d", i)
		}
	}
}

func Test2CXMBranchesBothFinite(t *testing.T) {
	times := linspace(0, 5, 30)
	ca := bolusAIF(times)
	model, _ := New(CXM2)

	// Branch 1: F_p, PS > 0.
	out1 := make([]float64, len(times))
	model.ComputeCtModel(times, ca, nil, []float64{0.6, 0.2, 0.2, 0.2, 0}, out1)

	// Branch 2: PS == 0 forces the degenerate quadratic form.
	out2 := make([]float64, len(times))
	model.ComputeCtModel(times, ca, nil, []float64{0.6, 0, 0.2, 0.2, 0}, out2)

	for i := range times {
		if math.IsNaN(out1[i]) || math.IsInf(out1[i], 0) {
			t.Fatalf("branch1: non-finite at %d", i)
		}
		if math.IsNaN(out2[i]) || math.IsInf(out2[i], 0) {
			t.Fatalf("branch2: non-finite at %d", i)
		}
	}
}

func TestAUEMForwardModel(t *testing.T) {
	times := linspace(0, 5, 30)
	ca := bolusAIF(times)
	cv := bolusAIF(times)
	model, _ := New(AUEM)
	out := make([]float64, len(times))
	model.ComputeCtModel(times, ca, cv, model.InitialParams(), out)
	if out[0] != 0 {
		t.Errorf("AUEM Ct[0] = %v, want 0", out[0])
	}
	anyPositive := false
	for _, v := range out {
		if v > 0 {
			anyPositive = true
		}
	}
	if !anyPositive {
		t.Error("AUEM produced an all-zero curve for a nonzero bolus input")
	}
}
