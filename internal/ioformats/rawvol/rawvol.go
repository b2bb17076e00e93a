// Package rawvol implements a minimal flat-file volume container for
// Image3D: a
// dimensions header followed by little-endian float64 voxel data, with an
// optional gzip variant (stdlib compress/gzip) standing in for the
// project's real Analyze/NIFTI-1 support without pulling in a NIFTI
// library absent from the corpus.
package rawvol

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"io"
	"os"
	"strings"

	"github.com/mberks/madym/internal/image3d"
	"github.com/mberks/madym/internal/madymerr"
)

// Read loads an Image3D from path. A ".gz" extension selects the gzip
// variant transparently.
func Read(path string) (*image3d.Image3D, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, madymerr.Wrap(madymerr.FileFormatBad, "rawvol.Read", "opening "+path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, madymerr.Wrap(madymerr.FileFormatBad, "rawvol.Read", "gzip header "+path, err)
		}
		defer gz.Close()
		r = gz
	}
	br := bufio.NewReader(r)

	var nx, ny, nz int32
	for _, dim := range []*int32{&nx, &ny, &nz} {
		if err := binary.Read(br, binary.LittleEndian, dim); err != nil {
			return nil, madymerr.Wrap(madymerr.FileFormatBad, "rawvol.Read", "reading dimensions "+path, err)
		}
	}

	img := image3d.New(int(nx), int(ny), int(nz))
	for i := range img.Data {
		if err := binary.Read(br, binary.LittleEndian, &img.Data[i]); err != nil {
			return nil, madymerr.Wrap(madymerr.FileFormatBad, "rawvol.Read", "reading voxel data "+path, err)
		}
	}
	return img, nil
}

// Write serialises img to path. A ".gz" extension selects the gzip
// variant.
func Write(path string, img *image3d.Image3D) error {
	f, err := os.Create(path)
	if err != nil {
		return madymerr.Wrap(madymerr.FileFormatBad, "rawvol.Write", "creating "+path, err)
	}
	defer f.Close()

	var w io.Writer = f
	var gz *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(f)
		w = gz
	}
	bw := bufio.NewWriter(w)

	for _, dim := range []int32{int32(img.Nx), int32(img.Ny), int32(img.Nz)} {
		if err := binary.Write(bw, binary.LittleEndian, dim); err != nil {
			return madymerr.Wrap(madymerr.FileFormatBad, "rawvol.Write", "writing dimensions "+path, err)
		}
	}
	for _, v := range img.Data {
		if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
			return madymerr.Wrap(madymerr.FileFormatBad, "rawvol.Write", "writing voxel data "+path, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return madymerr.Wrap(madymerr.FileFormatBad, "rawvol.Write", "flushing "+path, err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return madymerr.Wrap(madymerr.FileFormatBad, "rawvol.Write", "closing gzip writer for "+path, err)
		}
	}
	return nil
}
