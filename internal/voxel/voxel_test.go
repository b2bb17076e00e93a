package voxel

import (
	"math"
	"testing"
)

func TestComputeCtFromSignalM0Mode(t *testing.T) {
	times := []float64{0, 1, 2, 3, 4}
	// Forward model a plausible signal series with M0=1000, T10=1000ms,
	// flip angle 20deg, TR=5ms, so R1FromM0 has a well-defined inverse.
	m0, t10, flip, tr := 1000.0, 1000.0, 20.0, 5.0
	angle := flip * math.Pi / 180
	e1 := math.Exp(-tr / t10)
	signal := make([]float64, len(times))
	for i := range times {
		signal[i] = m0 * math.Sin(angle) * (1 - e1) / (1 - math.Cos(angle)*e1)
	}

	v := New(Inputs{
		Times: times, Signal: signal,
		T10: t10, M0: m0, B1: 1, TR: tr, FlipAngle: flip, R1Const: 4.3,
		Prebolus: 1,
	})
	if v.Status != OK {
		t.Fatalf("status = %v, want OK", v.Status)
	}
	for i, c := range v.Ct {
		if math.IsNaN(c) {
			t.Fatalf("Ct[%d] is NaN", i)
		}
		if math.Abs(c) > 1e-6 {
			t.Errorf("Ct[%d] = %v, want ~0 for unchanged baseline signal", i, c)
		}
	}
}

func TestComputeCtFromSignalRejectsBadM0(t *testing.T) {
	v := New(Inputs{
		Times: []float64{0, 1, 2}, Signal: []float64{1, 2, 3},
		T10: 1000, M0: -1, TR: 5, FlipAngle: 20, R1Const: 4.3,
	})
	if v.Status != M0Bad {
		t.Errorf("status = %v, want M0Bad", v.Status)
	}
}

func TestComputeCtFromSignalRejectsBadT10(t *testing.T) {
	v := New(Inputs{
		Times: []float64{0, 1, 2}, Signal: []float64{1, 2, 3},
		T10: 0, M0: 1000, TR: 5, FlipAngle: 20, R1Const: 4.3,
	})
	if v.Status != T10Bad {
		t.Errorf("status = %v, want T10Bad", v.Status)
	}
}

func TestIAUCMonotonicity(t *testing.T) {
	times := []float64{0, 1, 2, 3, 4, 5}
	ct := []float64{0, 0, 1, 2, 3, 4}
	v := &Voxel{Ct: ct}
	in := Inputs{Times: times, Prebolus: 1, IAUCTimes: []float64{1, 2, 3}}
	v.computeIAUC(in)

	for i := 1; i < len(v.IAUC); i++ {
		if v.IAUC[i] < v.IAUC[i-1] {
			t.Errorf("IAUC not monotonic: %v", v.IAUC)
		}
	}
}

func TestEnhancementGating(t *testing.T) {
	times := []float64{0, 1, 2, 3}
	ct := []float64{0, 0, 0, 0}
	v := &Voxel{Ct: ct}
	in := Inputs{Times: times, Prebolus: 1, IAUCTimes: []float64{1, 2}}
	v.computeIAUC(in)
	v.testEnhancing(in)

	if v.Enhancing {
		t.Error("expected non-enhancing for all-zero Ct")
	}
	if v.Status != NonEnhancing {
		t.Errorf("status = %v, want NonEnhancing", v.Status)
	}
	for _, val := range v.IAUC {
		if val != 0 {
			t.Errorf("IAUC = %v, want all zero", v.IAUC)
		}
	}
}

func TestIAUCAtPeak(t *testing.T) {
	times := []float64{0, 1, 2, 3, 4}
	ct := []float64{0, 1, 3, 2, 1}
	v := &Voxel{Ct: ct}
	in := Inputs{Times: times, Prebolus: 0, IAUCTimes: nil, IAUCAtPeak: true}
	v.computeIAUC(in)

	if v.IAUCPeak <= 0 {
		t.Errorf("IAUCPeak = %v, want > 0", v.IAUCPeak)
	}
}
