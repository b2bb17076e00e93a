package cliutil

import "testing"

func TestParseFloatListSkipsBad(t *testing.T) {
	got := ParseFloatList("1.5, bogus ,2.5")
	if len(got) != 2 || got[0] != 1.5 || got[1] != 2.5 {
		t.Fatalf("got %v", got)
	}
}

func TestParseFloatListEmpty(t *testing.T) {
	if got := ParseFloatList(""); got != nil {
		t.Fatalf("got %v, want nil", got)
	}
}

func TestParseStringListTrims(t *testing.T) {
	got := ParseStringList("Ktrans, ve ,vp")
	want := []string{"Ktrans", "ve", "vp"}
	for i, w := range want {
		if got[i] != w {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestBuildFixedMask(t *testing.T) {
	names := []string{"Ktrans", "ve", "vp"}
	mask, values := BuildFixedMask(names, []string{"ve"}, []float64{0.2})
	if !mask[1] || mask[0] || mask[2] {
		t.Fatalf("mask = %v", mask)
	}
	if values[1] != 0.2 {
		t.Fatalf("values = %v", values)
	}
}

func TestBuildFixedMaskEmpty(t *testing.T) {
	mask, values := BuildFixedMask([]string{"Ktrans"}, nil, nil)
	if mask != nil || values != nil {
		t.Fatalf("expected nil, nil, got %v %v", mask, values)
	}
}
