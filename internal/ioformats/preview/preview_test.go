package preview

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mberks/madym/internal/image3d"
)

func TestWritePNGProducesNonEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ktrans.png")

	img := image3d.New(8, 8, 1)
	for i := range img.Data {
		img.Data[i] = float64(i) / float64(len(img.Data))
	}

	wl := AutoWindowLevel(img, 0)
	if err := WritePNG(path, img, 0, wl, "Ktrans"); err != nil {
		t.Fatalf("WritePNG: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("PNG file is empty")
	}
}

func TestWritePNGRejectsBadSliceIndex(t *testing.T) {
	dir := t.TempDir()
	img := image3d.New(4, 4, 1)
	wl := WindowLevel{Level: 0.5, Width: 1}
	if err := WritePNG(filepath.Join(dir, "bad.png"), img, 3, wl, ""); err == nil {
		t.Fatal("expected error for out-of-range slice index")
	}
}

func TestWindowLevelNormalizeClamps(t *testing.T) {
	wl := WindowLevel{Level: 10, Width: 4}
	if n := wl.Normalize(0); n != 0 {
		t.Errorf("Normalize(0) = %v, want 0", n)
	}
	if n := wl.Normalize(100); n != 1 {
		t.Errorf("Normalize(100) = %v, want 1", n)
	}
	if n := wl.Normalize(10); n != 0.5 {
		t.Errorf("Normalize(10) = %v, want 0.5", n)
	}
}

func TestAutoWindowLevelHandlesAllNaN(t *testing.T) {
	img := image3d.New(2, 2, 1)
	for i := range img.Data {
		img.Data[i] = nanValue()
	}
	wl := AutoWindowLevel(img, 0)
	if wl.Width != 1 {
		t.Errorf("fallback width = %v, want 1", wl.Width)
	}
}

func nanValue() float64 {
	var zero float64
	return zero / zero
}
