package errtrack

import (
	"testing"

	"github.com/mberks/madym/internal/image3d"
)

func TestUpdateVoxelIsMonotone(t *testing.T) {
	ref := image3d.New(2, 2, 1)
	tr := New(ref)

	tr.UpdateVoxel(0, T1MaxIter)
	if tr.At(0) != T1MaxIter {
		t.Fatalf("got %v, want T1MaxIter", tr.At(0))
	}

	tr.UpdateVoxel(0, DCEFitFail)
	if !tr.HasBit(0, T1MaxIter) || !tr.HasBit(0, DCEFitFail) {
		t.Fatalf("expected both bits set, got %v", tr.At(0))
	}
}

func TestStringRendersSetBits(t *testing.T) {
	c := T1MaxIter | DCEFitFail
	s := c.String()
	if s != "T1_MAX_ITER|DCE_FIT_FAIL" {
		t.Fatalf("got %q", s)
	}
	if OK.String() != "OK" {
		t.Fatalf("got %q", OK.String())
	}
}

func TestToImagePreservesBits(t *testing.T) {
	ref := image3d.New(2, 1, 1)
	tr := New(ref)
	tr.UpdateVoxel(1, M0Negative)
	img := tr.ToImage()
	if img.At(1) != float64(M0Negative) {
		t.Fatalf("got %v", img.At(1))
	}
}
