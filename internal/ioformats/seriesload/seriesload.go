// Package seriesload loads a directory of per-acquisition volumes shared by
// both madym-fit (dynamic/T1 series) and madym-dwi-fit (b-value series):
// each directory entry is either a subdirectory of single-slice DICOM files
// (stacked via dicomio.StackSlices) or a single rawvol file, sorted by
// name, with an optional "<file>.xtr" sidecar supplying metadata.
package seriesload

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mberks/madym/internal/image3d"
	"github.com/mberks/madym/internal/ioformats/dicomio"
	"github.com/mberks/madym/internal/ioformats/rawvol"
	"github.com/mberks/madym/internal/ioformats/xtr"
	"github.com/mberks/madym/internal/madymerr"
)

// Load reads every entry of dir, in name order, into one Image3D each.
func Load(dir string) ([]*image3d.Image3D, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, madymerr.Wrap(madymerr.FileFormatBad, "seriesload.Load", "reading directory "+dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var out []*image3d.Image3D
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		var img *image3d.Image3D

		if e.IsDir() {
			slices, err := dicomio.ReadSeries(path)
			if err != nil {
				return nil, err
			}
			img, err = dicomio.StackSlices(slices)
			if err != nil {
				return nil, err
			}
		} else {
			ext := filepath.Ext(e.Name())
			if ext != ".raw" && !strings.HasSuffix(e.Name(), ".raw.gz") {
				continue
			}
			img, err = rawvol.Read(path)
			if err != nil {
				return nil, err
			}
		}

		sidecar := path + ".xtr"
		if _, statErr := os.Stat(sidecar); statErr == nil {
			md, err := xtr.Read(sidecar)
			if err != nil {
				return nil, err
			}
			img.Meta = md
		}
		out = append(out, img)
	}
	if len(out) == 0 {
		return nil, madymerr.New(madymerr.FileFormatBad, "seriesload.Load", "no volumes found in "+dir)
	}
	return out, nil
}
