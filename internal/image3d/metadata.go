package image3d

import "github.com/mberks/madym/internal/madymerr"

// OptFloat is a metadata field that may be unset. The zero value is unset;
// callers must not confuse an unset field with a value of 0.0.
type OptFloat struct {
	val float64
	set bool
}

// NewOptFloat returns a set OptFloat holding v.
func NewOptFloat(v float64) OptFloat { return OptFloat{val: v, set: true} }

// Get returns the value and whether it was set.
func (f OptFloat) Get() (float64, bool) { return f.val, f.set }

// GetOr returns the value, or fallback if unset.
func (f OptFloat) GetOr(fallback float64) float64 {
	if !f.set {
		return fallback
	}
	return f.val
}

// Require returns the value or a MissingMetadata error naming fn and field.
func (f OptFloat) Require(fn, field string) (float64, error) {
	if !f.set {
		return 0, madymerr.New(madymerr.MissingMetadata, fn, field+" is unset")
	}
	return f.val, nil
}

// Metadata holds scanner acquisition fields for one Image3D. Every field is
// either unset (the zero OptFloat) or a single float64.
type Metadata struct {
	FlipAngle            OptFloat // degrees
	TR                   OptFloat // ms
	TE                   OptFloat // ms
	TI                   OptFloat // ms
	BValue               OptFloat // s/mm^2
	InversionEfficiency  OptFloat // dimensionless, EW
	VoxelSizeX           OptFloat // mm
	VoxelSizeY           OptFloat // mm
	VoxelSizeZ           OptFloat // mm
	DirectionCosines     [9]OptFloat
	Origin               [3]OptFloat
	NoiseSigma           OptFloat
	ScaleSlope           OptFloat
	ScaleIntercept       OptFloat
	Timestamp            OptFloat // minutes, relative or absolute depending on loader
}

// Clone returns a deep copy of md (there are no pointer fields, but this
// keeps callers honest about value semantics as the struct grows).
func (md Metadata) Clone() Metadata { return md }
