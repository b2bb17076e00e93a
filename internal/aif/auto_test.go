package aif

import "testing"

func makeSignal(baseline float64, peak int, n int) []float64 {
	sig := make([]float64, n)
	for i := range sig {
		sig[i] = baseline
	}
	for i := peak; i < n; i++ {
		sig[i] = baseline * 1.8
	}
	return sig
}

func TestComputeAutoAIFSelectsHighestEnhancingVoxels(t *testing.T) {
	times := linspace(0, 5, 20)

	voxels := []CandidateVoxel{
		{Signal: makeSignal(100, 5, 20), T10: 1200, M0: 100, CosFA: 0.9, SinFA: 0.3, TR: 4.0, UseM0Ratio: true, R1Const: 3.4},
		{Signal: makeSignal(100, 5, 20), T10: 1200, M0: 100, CosFA: 0.9, SinFA: 0.3, TR: 4.0, UseM0Ratio: true, R1Const: 3.4},
		{Signal: makeSignal(80, 5, 20), T10: 1200, M0: 100, CosFA: 0.9, SinFA: 0.3, TR: 4.0, UseM0Ratio: true, R1Const: 3.4},
	}

	a, arrival, err := ComputeAutoAIF(times, 0.42, voxels, AutoAIFOptions{SelectFraction: 0.5, PrebolusImage: 3})
	if err != nil {
		t.Fatalf("ComputeAutoAIF: %v", err)
	}
	if a.Type != Map {
		t.Fatalf("expected Type Map, got %v", a.Type)
	}
	if arrival < 0 || arrival >= len(times) {
		t.Fatalf("arrival index out of range: %d", arrival)
	}
	for _, v := range a.baselineAIF {
		if v < 0 {
			t.Fatalf("negative value in averaged AIF: %v", v)
		}
	}
}

func TestComputeAutoAIFRejectsEmptyCandidates(t *testing.T) {
	times := linspace(0, 5, 10)
	if _, _, err := ComputeAutoAIF(times, 0.42, nil, AutoAIFOptions{}); err == nil {
		t.Fatal("expected error for empty candidate list")
	}
}
