// Package dwimap drives internal/dwifit across every voxel of a stack of
// multi-b-value diffusion acquisitions, the DWI counterpart of
// internal/t1map.
package dwimap

import (
	"github.com/mberks/madym/internal/dwifit"
	"github.com/mberks/madym/internal/errtrack"
	"github.com/mberks/madym/internal/image3d"
	"github.com/mberks/madym/internal/madymerr"
	"github.com/mberks/madym/internal/mlog"
)

// Maps holds every output parameter map a DWI fit can produce; F and DStar
// are left zero-valued for the ADC method.
type Maps struct {
	S0, D, F, DStar, Residual *image3d.Image3D
}

// Run fits method at every voxel of images (one per b-value, ordered to
// match bValues), returning the output maps and a per-voxel ErrorTracker.
func Run(images []*image3d.Image3D, bValues []float64, method dwifit.Method, linearOnly bool) (*Maps, *errtrack.Tracker, error) {
	if len(images) == 0 {
		return nil, nil, madymerr.New(madymerr.MissingMetadata, "dwimap.Run", "no diffusion-weighted images supplied")
	}
	if len(images) != len(bValues) {
		return nil, nil, madymerr.New(madymerr.DimensionMismatch, "dwimap.Run", "image count does not match b-value count")
	}
	ref := images[0]
	for _, img := range images[1:] {
		if err := ref.CheckSameShape(img, "dwimap.Run"); err != nil {
			return nil, nil, err
		}
	}

	fitter, err := dwifit.New(method, bValues, linearOnly)
	if err != nil {
		return nil, nil, err
	}

	maps := &Maps{
		S0:       image3d.Copy(ref),
		D:        image3d.Copy(ref),
		F:        image3d.Copy(ref),
		DStar:    image3d.Copy(ref),
		Residual: image3d.Copy(ref),
	}
	tracker := errtrack.New(ref)

	n := ref.NumVoxels()
	logStep := n / 10
	if logStep < 1 {
		logStep = 1
	}
	signals := make([]float64, len(images))
	for idx := 0; idx < n; idx++ {
		for i, img := range images {
			signals[i] = img.At(idx)
		}
		if err := fitter.SetInputs(signals); err != nil {
			tracker.UpdateVoxel(idx, errtrack.DCEInvalidInput)
			continue
		}
		res := fitter.FitModel()
		tracker.UpdateVoxel(idx, res.Code)
		maps.S0.Set(idx, res.S0)
		maps.D.Set(idx, res.D)
		maps.F.Set(idx, res.F)
		maps.DStar.Set(idx, res.DStar)
		maps.Residual.Set(idx, res.SSR)

		if idx%logStep == 0 {
			mlog.Program().Infof("dwimap: %d/%d voxels (%.0f%%)", idx, n, 100*float64(idx)/float64(n))
		}
	}
	mlog.Program().Infof("dwimap: fit complete, %d voxels processed", n)
	return maps, tracker, nil
}
