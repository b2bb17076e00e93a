package image3d

import "testing"

func TestIndexCoordsRoundTrip(t *testing.T) {
	img := New(4, 5, 6)
	for z := 0; z < img.Nz; z++ {
		for y := 0; y < img.Ny; y++ {
			for x := 0; x < img.Nx; x++ {
				idx := img.Index(x, y, z)
				gx, gy, gz := img.Coords(idx)
				if gx != x || gy != y || gz != z {
					t.Fatalf("Coords(Index(%d,%d,%d)) = (%d,%d,%d)", x, y, z, gx, gy, gz)
				}
			}
		}
	}
}

func TestCopyZeroesValuesKeepsMetadata(t *testing.T) {
	ref := New(2, 2, 2)
	ref.Meta.TR = NewOptFloat(3.5)
	ref.Set(0, 42)

	img := Copy(ref)
	if !img.SameShape(ref) {
		t.Fatal("copy shape mismatch")
	}
	if img.At(0) != 0 {
		t.Fatalf("copy should zero values, got %v", img.At(0))
	}
	tr, ok := img.Meta.TR.Get()
	if !ok || tr != 3.5 {
		t.Fatalf("copy should preserve metadata, got %v, %v", tr, ok)
	}
}

func TestCheckSameShape(t *testing.T) {
	a := New(2, 2, 2)
	b := New(3, 2, 2)
	if err := a.CheckSameShape(b, "test"); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
	c := New(2, 2, 2)
	if err := a.CheckSameShape(c, "test"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestOptFloatRequire(t *testing.T) {
	var f OptFloat
	if _, err := f.Require("fn", "TR"); err == nil {
		t.Fatal("expected missing metadata error")
	}
	f = NewOptFloat(7)
	v, err := f.Require("fn", "TR")
	if err != nil || v != 7 {
		t.Fatalf("got %v, %v", v, err)
	}
}
