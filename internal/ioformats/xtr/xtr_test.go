package xtr

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mberks/madym/internal/image3d"
)

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.xtr")

	var md image3d.Metadata
	md.TR = image3d.NewOptFloat(5.0)
	md.FlipAngle = image3d.NewOptFloat(20.0)
	md.VoxelSizeX = image3d.NewOptFloat(1.5)

	if err := Write(path, md); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	tr, _ := got.TR.Get()
	if tr != 5.0 {
		t.Errorf("TR = %v, want 5.0", tr)
	}
	fa, _ := got.FlipAngle.Get()
	if fa != 20.0 {
		t.Errorf("FlipAngle = %v, want 20.0", fa)
	}
}

func TestReadRejectsUnknownKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.xtr")
	writeRaw(t, path, "BogusKey\t1.0\n")

	if _, err := Read(path); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestReadRejectsMalformedLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "malformed.xtr")
	writeRaw(t, path, "NotAKeyValuePair\n")

	if _, err := Read(path); err == nil {
		t.Fatal("expected error for malformed line")
	}
}

func writeRaw(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
