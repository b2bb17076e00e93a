// Package dicomio reads a DICOM series directory into a slice of
// image3d.Image3D (one file per slice) and writes a parameter map back out
// as a synthetic single-frame MONOCHROME2 series, for viewers that only
// speak DICOM.
package dicomio

import (
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/mberks/madym/internal/image3d"
	"github.com/mberks/madym/internal/madymerr"
)

// deterministicUID derives a pseudo-UID from seed, for series/instance
// identifiers that only need to be stable and unique within one output
// directory, not globally registered.
func deterministicUID(seed string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(seed))
	return fmt.Sprintf("2.25.%d", h.Sum64())
}

// ReadSeries parses every ".dcm" file in dir and returns one Image3D per
// file (Nz==1), ordered by ImagePositionPatient's z-component ascending.
// Each image carries the acquisition metadata needed by the fitters: TR,
// flip angle, TE, TI, B-value and in-plane pixel spacing.
func ReadSeries(dir string) ([]*image3d.Image3D, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, madymerr.Wrap(madymerr.FileFormatBad, "dicomio.ReadSeries", "reading directory "+dir, err)
	}

	type slice struct {
		img *image3d.Image3D
		z   float64
	}
	var slices []slice

	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".dcm" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		ds, err := dicom.ParseFile(path, nil)
		if err != nil {
			return nil, madymerr.Wrap(madymerr.FileFormatBad, "dicomio.ReadSeries", "parsing "+path, err)
		}
		img, z, err := sliceFromDataset(ds)
		if err != nil {
			return nil, madymerr.Wrap(madymerr.FileFormatBad, "dicomio.ReadSeries", "decoding "+path, err)
		}
		slices = append(slices, slice{img, z})
	}
	if len(slices) == 0 {
		return nil, madymerr.New(madymerr.FileFormatBad, "dicomio.ReadSeries", "no .dcm files found in "+dir)
	}

	sort.Slice(slices, func(i, j int) bool { return slices[i].z < slices[j].z })

	out := make([]*image3d.Image3D, len(slices))
	for i, s := range slices {
		out[i] = s.img
	}
	return out, nil
}

// StackSlices combines single-slice volumes (as returned by ReadSeries, or
// one Image3D per timepoint sub-series in a dynamic 4D load) into one
// Image3D of depth len(slices), copying the first slice's metadata as the
// reference. All slices must share in-plane dimensions.
func StackSlices(slices []*image3d.Image3D) (*image3d.Image3D, error) {
	if len(slices) == 0 {
		return nil, madymerr.New(madymerr.MissingMetadata, "dicomio.StackSlices", "no slices to stack")
	}
	ref := slices[0]
	out := image3d.New(ref.Nx, ref.Ny, len(slices))
	out.Meta = ref.Meta.Clone()
	for z, s := range slices {
		if s.Nx != ref.Nx || s.Ny != ref.Ny {
			return nil, madymerr.New(madymerr.DimensionMismatch, "dicomio.StackSlices", "slice dimensions do not match")
		}
		copy(out.Data[z*ref.Nx*ref.Ny:(z+1)*ref.Nx*ref.Ny], s.Data)
	}
	return out, nil
}

func sliceFromDataset(ds dicom.Dataset) (*image3d.Image3D, float64, error) {
	rows, err := elementInt(ds, tag.Rows)
	if err != nil {
		return nil, 0, err
	}
	cols, err := elementInt(ds, tag.Columns)
	if err != nil {
		return nil, 0, err
	}

	pixelElem, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, 0, fmt.Errorf("missing PixelData: %w", err)
	}
	pixelInfo, ok := pixelElem.Value.GetValue().(dicom.PixelDataInfo)
	if !ok || len(pixelInfo.Frames) == 0 {
		return nil, 0, fmt.Errorf("PixelData has no frames")
	}
	img := image3d.New(cols, rows, 1)
	switch nf := pixelInfo.Frames[0].NativeData.(type) {
	case *frame.NativeFrame[uint16]:
		for i, v := range nf.RawData {
			img.Data[i] = float64(v)
		}
	case *frame.NativeFrame[uint8]:
		for i, v := range nf.RawData {
			img.Data[i] = float64(v)
		}
	default:
		return nil, 0, fmt.Errorf("unsupported native frame sample depth")
	}

	if v, ok := elementFloatOK(ds, tag.RepetitionTime); ok {
		img.Meta.TR = image3d.NewOptFloat(v)
	}
	if v, ok := elementFloatOK(ds, tag.FlipAngle); ok {
		img.Meta.FlipAngle = image3d.NewOptFloat(v)
	}
	if v, ok := elementFloatOK(ds, tag.EchoTime); ok {
		img.Meta.TE = image3d.NewOptFloat(v)
	}
	if v, ok := elementFloatOK(ds, tag.InversionTime); ok {
		img.Meta.TI = image3d.NewOptFloat(v)
	}
	if v, ok := elementFloatOK(ds, tag.DiffusionBValue); ok {
		img.Meta.BValue = image3d.NewOptFloat(v)
	}
	if spacing, ok := elementFloatsOK(ds, tag.PixelSpacing); ok && len(spacing) == 2 {
		img.Meta.VoxelSizeY = image3d.NewOptFloat(spacing[0])
		img.Meta.VoxelSizeX = image3d.NewOptFloat(spacing[1])
	}
	if v, ok := elementFloatOK(ds, tag.SliceThickness); ok {
		img.Meta.VoxelSizeZ = image3d.NewOptFloat(v)
	}

	z := 0.0
	if pos, ok := elementFloatsOK(ds, tag.ImagePositionPatient); ok && len(pos) == 3 {
		img.Meta.Origin[0] = image3d.NewOptFloat(pos[0])
		img.Meta.Origin[1] = image3d.NewOptFloat(pos[1])
		img.Meta.Origin[2] = image3d.NewOptFloat(pos[2])
		z = pos[2]
	}
	return img, z, nil
}

func elementInt(ds dicom.Dataset, t tag.Tag) (int, error) {
	elem, err := ds.FindElementByTag(t)
	if err != nil {
		return 0, err
	}
	switch v := elem.Value.GetValue().(type) {
	case []int:
		if len(v) > 0 {
			return v[0], nil
		}
	case int:
		return v, nil
	}
	return 0, fmt.Errorf("tag %v is not an integer", t)
}

func elementFloatOK(ds dicom.Dataset, t tag.Tag) (float64, bool) {
	vals, ok := elementFloatsOK(ds, t)
	if !ok || len(vals) == 0 {
		return 0, false
	}
	return vals[0], true
}

func elementFloatsOK(ds dicom.Dataset, t tag.Tag) ([]float64, bool) {
	elem, err := ds.FindElementByTag(t)
	if err != nil {
		return nil, false
	}
	strs, ok := elem.Value.GetValue().([]string)
	if !ok {
		return nil, false
	}
	out := make([]float64, 0, len(strs))
	for _, s := range strs {
		var v float64
		if _, err := fmt.Sscanf(s, "%g", &v); err != nil {
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}

// WriteParameterMap serialises a single parameter map slice as a
// synthetic single-frame MONOCHROME2 DICOM file, scaling values to the
// uint16 range so the file is viewable in any DICOM viewer.
func WriteParameterMap(path string, img *image3d.Image3D, sliceIndex int, seriesDescription string) error {
	if img.Nz <= sliceIndex {
		return madymerr.New(madymerr.DimensionMismatch, "dicomio.WriteParameterMap", "slice index out of range")
	}

	width, height := img.Nx, img.Ny
	lo, hi := math.Inf(1), math.Inf(-1)
	offset := sliceIndex * width * height
	for i := 0; i < width*height; i++ {
		v := img.Data[offset+i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	span := hi - lo
	if span <= 0 {
		span = 1
	}

	nativeFrame := frame.NewNativeFrame[uint16](16, height, width, width*height, 1)
	for i := 0; i < width*height; i++ {
		v := img.Data[offset+i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = lo
		}
		scaled := (v - lo) / span * 65535.0
		nativeFrame.RawData[i] = uint16(math.Max(0, math.Min(65535, scaled)))
	}

	sopInstanceUID := deterministicUID(fmt.Sprintf("%s_%d", path, sliceIndex))

	elements := []*dicom.Element{
		mustNewElement(tag.TransferSyntaxUID, []string{"1.2.840.10008.1.2.1"}),
		mustNewElement(tag.Modality, []string{"MR"}),
		mustNewElement(tag.SeriesDescription, []string{seriesDescription}),
		mustNewElement(tag.SeriesInstanceUID, []string{deterministicUID(path + "_series")}),
		mustNewElement(tag.SOPClassUID, []string{"1.2.840.10008.5.1.4.1.1.7"}),
		mustNewElement(tag.SOPInstanceUID, []string{sopInstanceUID}),
		mustNewElement(tag.InstanceNumber, []string{fmt.Sprintf("%d", sliceIndex+1)}),
		mustNewElement(tag.Rows, []int{height}),
		mustNewElement(tag.Columns, []int{width}),
		mustNewElement(tag.BitsAllocated, []int{16}),
		mustNewElement(tag.BitsStored, []int{16}),
		mustNewElement(tag.HighBit, []int{15}),
		mustNewElement(tag.PixelRepresentation, []int{0}),
		mustNewElement(tag.SamplesPerPixel, []int{1}),
		mustNewElement(tag.PhotometricInterpretation, []string{"MONOCHROME2"}),
		mustNewElement(tag.RescaleIntercept, []string{fmt.Sprintf("%.6g", lo)}),
		mustNewElement(tag.RescaleSlope, []string{fmt.Sprintf("%.6g", span/65535.0)}),
		mustNewElement(tag.PixelData, dicom.PixelDataInfo{
			Frames: []*frame.Frame{{Encapsulated: false, NativeData: nativeFrame}},
		}),
	}

	f, err := os.Create(path)
	if err != nil {
		return madymerr.Wrap(madymerr.FileFormatBad, "dicomio.WriteParameterMap", "creating "+path, err)
	}
	defer f.Close()

	if err := dicom.Write(f, dicom.Dataset{Elements: elements}); err != nil {
		return madymerr.Wrap(madymerr.FileFormatBad, "dicomio.WriteParameterMap", "writing "+path, err)
	}
	return nil
}

func mustNewElement(t tag.Tag, value interface{}) *dicom.Element {
	elem, err := dicom.NewElement(t, value)
	if err != nil {
		panic(fmt.Sprintf("dicomio: failed to create element %v: %v", t, err))
	}
	return elem
}
