package dicomio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mberks/madym/internal/image3d"
)

func TestWriteParameterMapRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ktrans.dcm")

	img := image3d.New(4, 4, 1)
	for i := range img.Data {
		img.Data[i] = float64(i) * 0.1
	}

	if err := WriteParameterMap(path, img, 0, "Ktrans map"); err != nil {
		t.Fatalf("WriteParameterMap: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat output file: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("output DICOM file is empty")
	}

	series, err := ReadSeries(dir)
	if err != nil {
		t.Fatalf("ReadSeries: %v", err)
	}
	if len(series) != 1 {
		t.Fatalf("ReadSeries returned %d images, want 1", len(series))
	}
	if series[0].Nx != 4 || series[0].Ny != 4 {
		t.Errorf("dims = (%d,%d), want (4,4)", series[0].Nx, series[0].Ny)
	}
}

func TestWriteParameterMapRejectsBadSliceIndex(t *testing.T) {
	dir := t.TempDir()
	img := image3d.New(2, 2, 1)
	if err := WriteParameterMap(filepath.Join(dir, "bad.dcm"), img, 5, "bad"); err == nil {
		t.Fatal("expected error for out-of-range slice index")
	}
}

func TestReadSeriesRejectsEmptyDir(t *testing.T) {
	dir := t.TempDir()
	if _, err := ReadSeries(dir); err == nil {
		t.Fatal("expected error for directory with no .dcm files")
	}
}

func TestStackSlicesCombinesDepth(t *testing.T) {
	a := image3d.New(2, 2, 1)
	b := image3d.New(2, 2, 1)
	for i := range b.Data {
		b.Data[i] = 1
	}
	out, err := StackSlices([]*image3d.Image3D{a, b})
	if err != nil {
		t.Fatalf("StackSlices: %v", err)
	}
	if out.Nz != 2 {
		t.Fatalf("Nz = %d, want 2", out.Nz)
	}
	if out.At(out.Index(0, 0, 1)) != 1 {
		t.Errorf("stacked slice 1 not copied correctly")
	}
}

func TestStackSlicesRejectsEmpty(t *testing.T) {
	if _, err := StackSlices(nil); err == nil {
		t.Fatal("expected error for empty slice list")
	}
}
