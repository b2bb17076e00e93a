package aif

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mberks/madym/internal/madymerr"
	"github.com/mberks/madym/internal/mlog"
)

// LoadAIFFile reads a whitespace-separated time/value AIF curve and marks
// the receiver as Type == File, matching mdm_AIF::readIFFromFile.
func (a *AIF) LoadAIFFile(path string) error {
	times, values, err := readIFFromFile(path)
	if err != nil {
		return err
	}
	a.Times = times
	a.baselineAIF = values
	a.Type = File
	return nil
}

// LoadPIFFile reads a whitespace-separated time/value portal input curve.
func (a *AIF) LoadPIFFile(path string) error {
	times, values, err := readIFFromFile(path)
	if err != nil {
		return err
	}
	if len(times) != len(a.Times) {
		return madymerr.New(madymerr.DimensionMismatch, "AIF.LoadPIFFile", "PIF time grid does not match AIF time grid")
	}
	a.baselinePIF = values
	a.PortalType = File
	return nil
}

// readIFFromFile parses lines of "<time> <value>", skipping blank lines.
func readIFFromFile(path string) ([]float64, []float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, madymerr.Wrap(madymerr.FileFormatBad, "readIFFromFile", "unable to open input function file "+path, err)
	}
	defer f.Close()

	var times, values []float64
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, nil, madymerr.New(madymerr.FileFormatBad, "readIFFromFile",
				fmt.Sprintf("%s line %d: expected time and value", path, lineNo))
		}
		t, err1 := strconv.ParseFloat(fields[0], 64)
		v, err2 := strconv.ParseFloat(fields[1], 64)
		if err1 != nil || err2 != nil {
			return nil, nil, madymerr.New(madymerr.FileFormatBad, "readIFFromFile",
				fmt.Sprintf("%s line %d: non-numeric field", path, lineNo))
		}
		times = append(times, t)
		values = append(values, v)
	}
	if err := sc.Err(); err != nil {
		return nil, nil, madymerr.Wrap(madymerr.FileFormatBad, "readIFFromFile", "error reading "+path, err)
	}
	if len(times) < 2 {
		return nil, nil, madymerr.New(madymerr.FileFormatBad, "readIFFromFile", path+" has too few samples")
	}

	mlog.Program().Debugf("read %d samples from %s", len(times), path)
	return times, values, nil
}

// WriteToFile writes the resampled AIF as "<time>\t<value>" lines, matching
// mdm_AIF::writeIFToFile.
func (a *AIF) WriteToFile(path string) error {
	return writeIFToFile(path, a.Times, a.resampledAIF)
}

// WritePIFToFile writes the resampled PIF in the same format.
func (a *AIF) WritePIFToFile(path string) error {
	return writeIFToFile(path, a.Times, a.resampledPIF)
}

func writeIFToFile(path string, times, values []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return madymerr.Wrap(madymerr.FileFormatBad, "writeIFToFile", "unable to create "+path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for i := range times {
		if _, err := fmt.Fprintf(w, "%0.6f\t%0.6f\n", times[i], values[i]); err != nil {
			return madymerr.Wrap(madymerr.FileFormatBad, "writeIFToFile", "error writing "+path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return madymerr.Wrap(madymerr.FileFormatBad, "writeIFToFile", "error flushing "+path, err)
	}
	mlog.Audit().Infof("wrote input function to %s", path)
	return nil
}
