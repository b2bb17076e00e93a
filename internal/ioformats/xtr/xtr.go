// Package xtr reads and writes the ".xtr" ASCII sidecar: one
// "key<TAB>value" pair per line, carrying the acquisition metadata an
// Image3D needs (TR, flip angle, TE, TI, B-value, voxel spacing, direction
// cosines, noise sigma, timestamp).
package xtr

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mberks/madym/internal/image3d"
	"github.com/mberks/madym/internal/madymerr"
)

// knownKeys lists every recognised field name; any other key is rejected.
var knownKeys = map[string]bool{
	"TimeStamp":  true,
	"ImageType":  true,
	"FlipAngle":  true,
	"TR":         true,
	"TE":         true,
	"TI":         true,
	"B":          true,
	"Xmm":        true,
	"Ymm":        true,
	"Zmm":        true,
	"NoiseSigma": true,
	"DirCos1": true, "DirCos2": true, "DirCos3": true,
	"DirCos4": true, "DirCos5": true, "DirCos6": true,
	"DirCos7": true, "DirCos8": true, "DirCos9": true,
}

// Read parses an .xtr file into an image3d.Metadata. Unknown keys produce
// a madymerr.FileFormatBad error.
func Read(path string) (image3d.Metadata, error) {
	var md image3d.Metadata

	f, err := os.Open(path)
	if err != nil {
		return md, madymerr.Wrap(madymerr.FileFormatBad, "xtr.Read", "opening "+path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			return md, madymerr.New(madymerr.FileFormatBad, "xtr.Read",
				fmt.Sprintf("%s: line %d is not key<TAB>value", path, lineNo))
		}
		key, rawValue := parts[0], strings.TrimSpace(parts[1])
		if !knownKeys[key] {
			return md, madymerr.New(madymerr.FileFormatBad, "xtr.Read",
				fmt.Sprintf("%s: unknown key %q", path, key))
		}
		if key == "ImageType" {
			continue // informational; not carried on Metadata
		}
		value, err := strconv.ParseFloat(rawValue, 64)
		if err != nil {
			return md, madymerr.Wrap(madymerr.FileFormatBad, "xtr.Read",
				fmt.Sprintf("%s: key %q has non-numeric value %q", path, key, rawValue), err)
		}
		assign(&md, key, value)
	}
	if err := scanner.Err(); err != nil {
		return md, madymerr.Wrap(madymerr.FileFormatBad, "xtr.Read", "reading "+path, err)
	}
	return md, nil
}

func assign(md *image3d.Metadata, key string, value float64) {
	switch key {
	case "TimeStamp":
		md.Timestamp = image3d.NewOptFloat(value)
	case "FlipAngle":
		md.FlipAngle = image3d.NewOptFloat(value)
	case "TR":
		md.TR = image3d.NewOptFloat(value)
	case "TE":
		md.TE = image3d.NewOptFloat(value)
	case "TI":
		md.TI = image3d.NewOptFloat(value)
	case "B":
		md.BValue = image3d.NewOptFloat(value)
	case "Xmm":
		md.VoxelSizeX = image3d.NewOptFloat(value)
	case "Ymm":
		md.VoxelSizeY = image3d.NewOptFloat(value)
	case "Zmm":
		md.VoxelSizeZ = image3d.NewOptFloat(value)
	case "NoiseSigma":
		md.NoiseSigma = image3d.NewOptFloat(value)
	default:
		if strings.HasPrefix(key, "DirCos") {
			idx, _ := strconv.Atoi(strings.TrimPrefix(key, "DirCos"))
			if idx >= 1 && idx <= 9 {
				md.DirectionCosines[idx-1] = image3d.NewOptFloat(value)
			}
		}
	}
}

// Write serialises md to path in the key<TAB>value format, writing every
// field that is set.
func Write(path string, md image3d.Metadata) error {
	f, err := os.Create(path)
	if err != nil {
		return madymerr.Wrap(madymerr.FileFormatBad, "xtr.Write", "creating "+path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	defer w.Flush()

	writeField(w, "TimeStamp", md.Timestamp)
	writeField(w, "FlipAngle", md.FlipAngle)
	writeField(w, "TR", md.TR)
	writeField(w, "TE", md.TE)
	writeField(w, "TI", md.TI)
	writeField(w, "B", md.BValue)
	writeField(w, "Xmm", md.VoxelSizeX)
	writeField(w, "Ymm", md.VoxelSizeY)
	writeField(w, "Zmm", md.VoxelSizeZ)
	writeField(w, "NoiseSigma", md.NoiseSigma)
	for i, dc := range md.DirectionCosines {
		writeField(w, fmt.Sprintf("DirCos%d", i+1), dc)
	}
	return nil
}

func writeField(w *bufio.Writer, key string, v image3d.OptFloat) {
	val, ok := v.Get()
	if !ok {
		return
	}
	fmt.Fprintf(w, "%s\t%g\n", key, val)
}
