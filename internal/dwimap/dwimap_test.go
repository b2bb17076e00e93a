package dwimap

import (
	"math"
	"testing"

	"github.com/mberks/madym/internal/dwifit"
	"github.com/mberks/madym/internal/errtrack"
	"github.com/mberks/madym/internal/image3d"
)

func makeImage(value float64, nx, ny, nz int) *image3d.Image3D {
	img := image3d.New(nx, ny, nz)
	for i := range img.Data {
		img.Data[i] = value
	}
	return img
}

func TestRunRecoversUniformADC(t *testing.T) {
	const s0, adc = 1000.0, 0.0015
	bValues := []float64{0, 200, 500, 800}

	var images []*image3d.Image3D
	for _, b := range bValues {
		images = append(images, makeImage(s0*math.Exp(-adc*b), 2, 2, 1))
	}

	maps, tracker, err := Run(images, bValues, dwifit.ADC, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for idx := 0; idx < maps.D.NumVoxels(); idx++ {
		if tracker.At(idx) != errtrack.OK {
			t.Fatalf("voxel %d: code = %v, want OK", idx, tracker.At(idx))
		}
		if got := maps.D.At(idx); got < adc*0.9 || got > adc*1.1 {
			t.Errorf("voxel %d: D = %v, want near %v", idx, got, adc)
		}
	}
}

func TestRunRejectsBValueCountMismatch(t *testing.T) {
	images := []*image3d.Image3D{makeImage(100, 2, 2, 1)}
	if _, _, err := Run(images, []float64{0, 200}, dwifit.ADC, false); err == nil {
		t.Fatal("expected error for b-value count mismatch")
	}
}

func TestRunFlagsNonPositiveSignal(t *testing.T) {
	bValues := []float64{0, 200, 500}
	images := []*image3d.Image3D{
		makeImage(100, 2, 2, 1),
		makeImage(0, 2, 2, 1),
		makeImage(50, 2, 2, 1),
	}
	_, tracker, err := Run(images, bValues, dwifit.ADC, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if tracker.At(0) != errtrack.DCEInvalidInput {
		t.Fatalf("code = %v, want DCEInvalidInput", tracker.At(0))
	}
}
