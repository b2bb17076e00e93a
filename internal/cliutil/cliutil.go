// Package cliutil holds the small pieces of flag/output handling shared by
// the madym-fit and madym-dwi-fit command-line entry points, so neither
// "main" package has to import the other (which Go forbids) or duplicate
// the logic.
package cliutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mberks/madym/internal/image3d"
	"github.com/mberks/madym/internal/ioformats/dicomio"
	"github.com/mberks/madym/internal/ioformats/preview"
	"github.com/mberks/madym/internal/ioformats/rawvol"
	"github.com/mberks/madym/internal/madymerr"
)

// WriteMap writes one output map three ways: the lossless rawvol volume
// every map reader in this pipeline round-trips through, a per-slice DICOM
// series for external viewers, and a mid-slice PNG for a quick visual
// sanity check.
func WriteMap(dir, name string, img *image3d.Image3D) error {
	if err := rawvol.Write(filepath.Join(dir, name+".raw"), img); err != nil {
		return err
	}

	dicomDir := filepath.Join(dir, name+"_dicom")
	if err := os.MkdirAll(dicomDir, 0o755); err != nil {
		return madymerr.Wrap(madymerr.FileFormatBad, "cliutil.WriteMap", "creating "+dicomDir, err)
	}
	for z := 0; z < img.Nz; z++ {
		path := filepath.Join(dicomDir, fmt.Sprintf("slice_%03d.dcm", z))
		if err := dicomio.WriteParameterMap(path, img, z, name); err != nil {
			return err
		}
	}

	mid := img.Nz / 2
	wl := preview.AutoWindowLevel(img, mid)
	return preview.WritePNG(filepath.Join(dir, name+".png"), img, mid, wl, name)
}

// BuildFixedMask turns the CLI's parallel fixed_params/fixed_values lists
// into a per-parameter mask and value array ordered to match paramNames.
func BuildFixedMask(paramNames, fixedParams []string, fixedValues []float64) ([]bool, []float64) {
	if len(fixedParams) == 0 {
		return nil, nil
	}
	mask := make([]bool, len(paramNames))
	values := make([]float64, len(paramNames))
	for i, name := range fixedParams {
		for j, pn := range paramNames {
			if pn == name {
				mask[j] = true
				if i < len(fixedValues) {
					values[j] = fixedValues[i]
				}
			}
		}
	}
	return mask, values
}

// ParseFloatList splits a comma-separated flag value into floats, silently
// skipping entries that don't parse.
func ParseFloatList(s string) []float64 {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// ParseStringList splits and trims a comma-separated flag value.
func ParseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
