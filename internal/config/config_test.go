package config

import (
	"path/filepath"
	"testing"
)

func TestApplyDefaults(t *testing.T) {
	var o Options
	o.ApplyDefaults()

	if o.Model == "" || o.T1Method == "" {
		t.Fatal("ApplyDefaults left Model/T1Method unset")
	}
	if o.R1 != 4.3 {
		t.Errorf("R1 default = %v, want 4.3", o.R1)
	}
	if len(o.IAUCTimes) != 3 {
		t.Errorf("IAUCTimes default = %v", o.IAUCTimes)
	}
}

func TestValidateRejectsUnknownModel(t *testing.T) {
	o := Options{Model: "NotAModel", T1Method: "VFA"}
	if err := o.Validate(); err == nil {
		t.Fatal("expected error for unknown model")
	}
}

func TestValidateRejectsBadHct(t *testing.T) {
	o := Options{Model: "ETM", T1Method: "VFA", Hct: 1.5}
	if err := o.Validate(); err == nil {
		t.Fatal("expected error for hct out of range")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	var o Options
	o.ApplyDefaults()
	o.Dose = 0.1
	o.Hct = 0.42

	if err := Save(path, o); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Model != o.Model || loaded.Dose != o.Dose || loaded.Hct != o.Hct {
		t.Errorf("round trip mismatch: got %+v, want %+v", loaded, o)
	}
}
