// Package image3d implements the dense 3D scalar-field type
// shared by every analysis component: dynamic signal volumes, parameter
// maps, T1/M0/B1 maps and the ErrorTracker bitmask image all wrap it.
package image3d

import "github.com/mberks/madym/internal/madymerr"

// Image3D is a regular Nx*Ny*Nz grid of float64 voxels plus its acquisition
// metadata. Values are stored linearised with x varying fastest, the
// conventional voxel-iteration order for every analysis component.
type Image3D struct {
	Nx, Ny, Nz int
	Data       []float64
	Meta       Metadata
}

// New allocates a zero-filled Nx*Ny*Nz image. Dimensions are fixed for the
// lifetime of the image; there is no resize operation.
func New(nx, ny, nz int) *Image3D {
	return &Image3D{
		Nx:   nx,
		Ny:   ny,
		Nz:   nz,
		Data: make([]float64, nx*ny*nz),
	}
}

// Copy constructs a new Image3D with the same dimensions and metadata as
// ref, with all values zeroed.
func Copy(ref *Image3D) *Image3D {
	img := New(ref.Nx, ref.Ny, ref.Nz)
	img.Meta = ref.Meta.Clone()
	return img
}

// NumVoxels returns the total voxel count.
func (img *Image3D) NumVoxels() int { return img.Nx * img.Ny * img.Nz }

// Index converts (x,y,z) coordinates to a linear index, x fastest-varying.
func (img *Image3D) Index(x, y, z int) int {
	return x + img.Nx*(y+img.Ny*z)
}

// Coords is the inverse of Index.
func (img *Image3D) Coords(idx int) (x, y, z int) {
	x = idx % img.Nx
	rest := idx / img.Nx
	y = rest % img.Ny
	z = rest / img.Ny
	return
}

// At returns the voxel value at a linear index.
func (img *Image3D) At(idx int) float64 { return img.Data[idx] }

// Set stores a voxel value at a linear index.
func (img *Image3D) Set(idx int, v float64) { img.Data[idx] = v }

// SameShape reports whether img and other share dimensions.
func (img *Image3D) SameShape(other *Image3D) bool {
	return img.Nx == other.Nx && img.Ny == other.Ny && img.Nz == other.Nz
}

// CheckSameShape returns a DimensionMismatch error if img and other differ
// in shape. fn names the calling operation for the error message.
func (img *Image3D) CheckSameShape(other *Image3D, fn string) error {
	if img.SameShape(other) {
		return nil
	}
	return madymerr.New(madymerr.DimensionMismatch, fn, "image dimensions do not match reference volume")
}

// CheckVoxelSizes compares voxel spacing between img and other, returning a
// VoxelSizeMismatch error (downgradable to a warning by the caller) if
// either image has a set, differing spacing.
func (img *Image3D) CheckVoxelSizes(other *Image3D, fn string) error {
	pairs := [][2]OptFloat{
		{img.Meta.VoxelSizeX, other.Meta.VoxelSizeX},
		{img.Meta.VoxelSizeY, other.Meta.VoxelSizeY},
		{img.Meta.VoxelSizeZ, other.Meta.VoxelSizeZ},
	}
	for _, p := range pairs {
		a, aok := p[0].Get()
		b, bok := p[1].Get()
		if aok && bok && a != b {
			return madymerr.New(madymerr.VoxelSizeMismatch, fn, "voxel spacing disagrees between volumes")
		}
	}
	return nil
}
