package volume

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"github.com/mberks/madym/internal/image3d"
	"github.com/mberks/madym/internal/mlog"
)

// WriteSummary writes "<paramName>_summary.txt" (human-readable) and
// "<paramName>_summary_stats.csv" (mean, stddev, Q1/median/Q3) for every
// output parameter map, restricted to voxels where roi is nil or nonzero
//.
func (a *Analysis) WriteSummary(dir string, roi *image3d.Image3D) error {
	for _, name := range a.model.ParamNames() {
		if err := writeMapSummary(dir, name, a.ParamMaps[name], roi); err != nil {
			return err
		}
	}
	return nil
}

func writeMapSummary(dir, name string, img *image3d.Image3D, roi *image3d.Image3D) error {
	values := collectValues(img, roi)
	sort.Float64s(values)

	mean := stat.Mean(values, nil)
	stddev := stat.StdDev(values, nil)
	var q1, median, q3 float64
	if len(values) > 0 {
		q1 = stat.Quantile(0.25, stat.Empirical, values, nil)
		median = stat.Quantile(0.5, stat.Empirical, values, nil)
		q3 = stat.Quantile(0.75, stat.Empirical, values, nil)
	}

	txtPath := filepath.Join(dir, name+"_summary.txt")
	txt, err := os.Create(txtPath)
	if err != nil {
		return err
	}
	defer txt.Close()
	fmt.Fprintf(txt, "parameter: %s\n", name)
	fmt.Fprintf(txt, "n: %d\n", len(values))
	fmt.Fprintf(txt, "mean: %g\n", mean)
	fmt.Fprintf(txt, "stddev: %g\n", stddev)
	fmt.Fprintf(txt, "q1: %g\nmedian: %g\nq3: %g\n", q1, median, q3)

	csvPath := filepath.Join(dir, name+"_summary_stats.csv")
	csvFile, err := os.Create(csvPath)
	if err != nil {
		return err
	}
	defer csvFile.Close()
	w := csv.NewWriter(csvFile)
	defer w.Flush()
	w.Write([]string{"parameter", "n", "mean", "stddev", "q1", "median", "q3"})
	w.Write([]string{
		name,
		strconv.Itoa(len(values)),
		strconv.FormatFloat(mean, 'g', -1, 64),
		strconv.FormatFloat(stddev, 'g', -1, 64),
		strconv.FormatFloat(q1, 'g', -1, 64),
		strconv.FormatFloat(median, 'g', -1, 64),
		strconv.FormatFloat(q3, 'g', -1, 64),
	})

	mlog.Audit().Infof("wrote summary for %s: n=%d mean=%g stddev=%g", name, len(values), mean, stddev)
	return nil
}

func collectValues(img *image3d.Image3D, roi *image3d.Image3D) []float64 {
	n := img.NumVoxels()
	values := make([]float64, 0, n)
	for idx := 0; idx < n; idx++ {
		if roi != nil && roi.At(idx) == 0 {
			continue
		}
		values = append(values, img.At(idx))
	}
	return values
}
