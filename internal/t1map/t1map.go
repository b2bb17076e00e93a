// Package t1map drives internal/t1fit across every voxel of a stack of
// T1-weighted acquisitions, the T1 mapping stage VolumeAnalysis runs before
// DCE fitting when no pre-computed T1/M0 map is supplied.
// Modeled on internal/volume's per-voxel loop and progress logging.
package t1map

import (
	"github.com/mberks/madym/internal/errtrack"
	"github.com/mberks/madym/internal/image3d"
	"github.com/mberks/madym/internal/madymerr"
	"github.com/mberks/madym/internal/mlog"
	"github.com/mberks/madym/internal/t1fit"
)

// Run fits T1, M0 (and, for IR_E, inversion efficiency) at every voxel of
// images, using b1Map as the per-voxel B1 correction when method is VFA_B1
// (nil is treated as uniform B1 = 1). images must share dimensions and
// must each carry the acquisition setting FitT1 needs: FlipAngle for the
// VFA family, TI for the IR family; images[0].Meta.TR supplies the fixed
// repetition time for both families.
func Run(images []*image3d.Image3D, method t1fit.Method, b1Map *image3d.Image3D) (t1Map, m0Map, ewMap *image3d.Image3D, tracker *errtrack.Tracker, err error) {
	if len(images) == 0 {
		return nil, nil, nil, nil, madymerr.New(madymerr.MissingMetadata, "t1map.Run", "no T1-weighted images supplied")
	}
	ref := images[0]
	for _, img := range images[1:] {
		if err := ref.CheckSameShape(img, "t1map.Run"); err != nil {
			return nil, nil, nil, nil, err
		}
	}
	if b1Map != nil {
		if err := ref.CheckSameShape(b1Map, "t1map.Run"); err != nil {
			return nil, nil, nil, nil, err
		}
	}

	tr, err := ref.Meta.TR.Require("t1map.Run", "TR")
	if err != nil {
		return nil, nil, nil, nil, err
	}

	variable := make([]float64, len(images))
	for i, img := range images {
		switch method {
		case t1fit.VFA, t1fit.VFAB1:
			v, err := img.Meta.FlipAngle.Require("t1map.Run", "FlipAngle")
			if err != nil {
				return nil, nil, nil, nil, err
			}
			variable[i] = v
		case t1fit.IR, t1fit.IRE:
			v, err := img.Meta.TI.Require("t1map.Run", "TI")
			if err != nil {
				return nil, nil, nil, nil, err
			}
			variable[i] = v
		default:
			return nil, nil, nil, nil, madymerr.New(madymerr.ModelUnknown, "t1map.Run", "unknown T1 method "+string(method))
		}
	}

	fitter, err := t1fit.New(method, []float64{tr}, variable)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	t1Map = image3d.Copy(ref)
	m0Map = image3d.Copy(ref)
	ewMap = image3d.Copy(ref)
	tracker = errtrack.New(ref)

	usingB1 := method == t1fit.VFAB1
	n := ref.NumVoxels()
	logStep := n / 10
	if logStep < 1 {
		logStep = 1
	}

	signals := make([]float64, len(images), len(images)+1)
	for idx := 0; idx < n; idx++ {
		for i, img := range images {
			signals[i] = img.At(idx)
		}
		voxelSignals := signals
		if usingB1 {
			b1 := 1.0
			if b1Map != nil {
				b1 = b1Map.At(idx)
			}
			voxelSignals = append(signals, b1)
		}

		if err := fitter.SetInputs(voxelSignals); err != nil {
			tracker.UpdateVoxel(idx, errtrack.T1InitFail)
			continue
		}
		res := fitter.FitT1()
		tracker.UpdateVoxel(idx, res.Code)
		t1Map.Set(idx, res.T1)
		m0Map.Set(idx, res.M0)
		ewMap.Set(idx, res.EW)

		if idx%logStep == 0 {
			mlog.Program().Infof("t1map: %d/%d voxels (%.0f%%)", idx, n, 100*float64(idx)/float64(n))
		}
	}
	mlog.Program().Infof("t1map: fit complete, %d voxels processed", n)
	return t1Map, m0Map, ewMap, tracker, nil
}
