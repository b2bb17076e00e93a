package rawvol

import (
	"path/filepath"
	"testing"

	"github.com/mberks/madym/internal/image3d"
)

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vol.raw")

	img := image3d.New(2, 3, 4)
	for i := range img.Data {
		img.Data[i] = float64(i) * 1.5
	}

	if err := Write(path, img); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Nx != img.Nx || got.Ny != img.Ny || got.Nz != img.Nz {
		t.Fatalf("dims = (%d,%d,%d), want (%d,%d,%d)", got.Nx, got.Ny, got.Nz, img.Nx, img.Ny, img.Nz)
	}
	for i, v := range img.Data {
		if got.Data[i] != v {
			t.Errorf("Data[%d] = %v, want %v", i, got.Data[i], v)
		}
	}
}

func TestWriteReadRoundTripGzip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vol.raw.gz")

	img := image3d.New(3, 2, 1)
	for i := range img.Data {
		img.Data[i] = float64(i) + 0.25
	}

	if err := Write(path, img); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	for i, v := range img.Data {
		if got.Data[i] != v {
			t.Errorf("Data[%d] = %v, want %v", i, got.Data[i], v)
		}
	}
}

func TestReadMissingFile(t *testing.T) {
	if _, err := Read(filepath.Join(t.TempDir(), "nope.raw")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
