// Package errtrack implements the per-voxel fault bitmask image. It never raises a Go error; ErrorTracker is purely additive data.
package errtrack

import "github.com/mberks/madym/internal/image3d"

// Code is a per-voxel fault bit. Bit assignment is stable and required for
// output compatibility with existing error-code maps — never renumber.
type Code int32

const (
	OK                Code = 0
	VFAThreshFail     Code = 1 << 0
	T1InitFail        Code = 1 << 1
	T1FitFail         Code = 1 << 2
	T1MaxIter         Code = 1 << 3
	T1MadValue        Code = 1 << 4
	M0Negative        Code = 1 << 5
	NonEnhIAUC        Code = 1 << 6
	CaIsNaN           Code = 1 << 7
	DynT1Negative     Code = 1 << 8
	DCEInvalidInput   Code = 1 << 9
	DCEFitFail        Code = 1 << 10
	DCEInvalidParam   Code = 1 << 11
	B1Invalid         Code = 1 << 12
)

// names gives a stable string per bit for logging/diagnostics.
var names = []struct {
	bit  Code
	name string
}{
	{VFAThreshFail, "VFA_THRESH_FAIL"},
	{T1InitFail, "T1_INIT_FAIL"},
	{T1FitFail, "T1_FIT_FAIL"},
	{T1MaxIter, "T1_MAX_ITER"},
	{T1MadValue, "T1_MAD_VALUE"},
	{M0Negative, "M0_NEGATIVE"},
	{NonEnhIAUC, "NON_ENH_IAUC"},
	{CaIsNaN, "CA_IS_NAN"},
	{DynT1Negative, "DYNT1_NEGATIVE"},
	{DCEInvalidInput, "DCE_INVALID_INPUT"},
	{DCEFitFail, "DCE_FIT_FAIL"},
	{DCEInvalidParam, "DCE_INVALID_PARAM"},
	{B1Invalid, "B1_INVALID"},
}

// String renders the set bits, e.g. "T1_MAX_ITER|DCE_FIT_FAIL", or "OK".
func (c Code) String() string {
	if c == OK {
		return "OK"
	}
	s := ""
	for _, n := range names {
		if c&n.bit != 0 {
			if s != "" {
				s += "|"
			}
			s += n.name
		}
	}
	return s
}

// Tracker is an Image3D of int32 bitmasks, one per voxel of the analysis
// volume.
type Tracker struct {
	Nx, Ny, Nz int
	bits       []int32
}

// New allocates a zero (all-OK) tracker matching ref's dimensions.
func New(ref *image3d.Image3D) *Tracker {
	return &Tracker{
		Nx:   ref.Nx,
		Ny:   ref.Ny,
		Nz:   ref.Nz,
		bits: make([]int32, ref.NumVoxels()),
	}
}

// UpdateVoxel ORs code into the voxel's mask. Bits only ever accumulate.
func (t *Tracker) UpdateVoxel(idx int, code Code) {
	t.bits[idx] |= int32(code)
}

// At returns the current bitmask for a voxel.
func (t *Tracker) At(idx int) Code { return Code(t.bits[idx]) }

// HasBit reports whether idx has the given bit set.
func (t *Tracker) HasBit(idx int, code Code) bool {
	return t.bits[idx]&int32(code) != 0
}

// ToImage renders the tracker as an int32-valued Image3D for output
//.
func (t *Tracker) ToImage() *image3d.Image3D {
	img := image3d.New(t.Nx, t.Ny, t.Nz)
	for i, b := range t.bits {
		img.Set(i, float64(b))
	}
	return img
}
