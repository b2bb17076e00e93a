package seriesload

import (
	"path/filepath"
	"testing"

	"github.com/mberks/madym/internal/image3d"
	"github.com/mberks/madym/internal/ioformats/rawvol"
	"github.com/mberks/madym/internal/ioformats/xtr"
)

func TestLoadRawvolFilesSortedWithSidecar(t *testing.T) {
	dir := t.TempDir()

	a := image3d.New(2, 2, 1)
	for i := range a.Data {
		a.Data[i] = 1
	}
	if err := rawvol.Write(filepath.Join(dir, "001.raw"), a); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := xtr.Write(filepath.Join(dir, "001.raw.xtr"), withB(200)); err != nil {
		t.Fatalf("xtr.Write: %v", err)
	}

	b := image3d.New(2, 2, 1)
	if err := rawvol.Write(filepath.Join(dir, "000.raw"), b); err != nil {
		t.Fatalf("Write: %v", err)
	}

	images, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("got %d images, want 2", len(images))
	}
	if v, ok := images[1].Meta.BValue.Get(); !ok || v != 200 {
		t.Errorf("sidecar metadata not applied to second (001.raw) image: got %v, ok=%v", v, ok)
	}
}

func TestLoadRejectsEmptyDir(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for directory with no volumes")
	}
}

func withB(b float64) image3d.Metadata {
	var md image3d.Metadata
	md.BValue = image3d.NewOptFloat(b)
	return md
}
