// Command madym-dwi-fit drives internal/dwimap over a directory of
// multi-b-value diffusion volumes, writing per-voxel S0/D(ADC)/F/DStar/
// residual/error-code maps. It is the DWIFitter-family counterpart of
// madym-fit, kept as its own executable the way the real Madym tool suite
// ships one binary per model family; flag handling mirrors madym-fit's.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/mberks/madym/internal/cliutil"
	"github.com/mberks/madym/internal/dwifit"
	"github.com/mberks/madym/internal/dwimap"
	"github.com/mberks/madym/internal/errtrack"
	"github.com/mberks/madym/internal/image3d"
	"github.com/mberks/madym/internal/ioformats/seriesload"
	"github.com/mberks/madym/internal/mlog"
)

var version = "dev"

func main() {
	method := flag.String("method", "ADC", "DWI model: ADC or IVIM")
	linearOnly := flag.Bool("linear_only", false, "ADC only: skip the nonlinear refinement step")
	bValuesFlag := flag.String("b_values", "", "Comma-separated b-values (s/mm^2), overriding per-image metadata")
	inputDir := flag.String("input_dir", "", "Directory of diffusion-weighted volumes, one per b-value (required)")
	outputDir := flag.String("output", "madym_dwi_output", "Output directory")
	programLogFile := flag.String("program_log_file", "", "Program (diagnostic) log file path")
	help := flag.Bool("help", false, "Show help message")
	showVersion := flag.Bool("version", false, "Show version")

	flag.Parse()

	if *showVersion {
		fmt.Printf("madym-dwi-fit %s\n", version)
		os.Exit(0)
	}
	if *help {
		printHelp()
		os.Exit(0)
	}
	if *inputDir == "" {
		fmt.Fprintln(os.Stderr, "Error: -input_dir is required")
		printUsage()
		os.Exit(1)
	}

	if *programLogFile != "" {
		closer, err := mlog.OpenProgramLog(*programLogFile, logrus.InfoLevel)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening program log: %v\n", err)
			os.Exit(1)
		}
		defer closer.Close()
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	if err := run(*inputDir, *outputDir, dwifit.Method(*method), *linearOnly, cliutil.ParseFloatList(*bValuesFlag)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		mlog.Audit().Errorf("madym-dwi-fit failed: %v", err)
		os.Exit(1)
	}

	fmt.Println("madym-dwi-fit: analysis complete")
	fmt.Printf("  Output directory: %s\n", *outputDir)
}

func run(inputDir, outputDir string, method dwifit.Method, linearOnly bool, bValuesOverride []float64) error {
	images, err := seriesload.Load(inputDir)
	if err != nil {
		return err
	}

	bValues := bValuesOverride
	if len(bValues) == 0 {
		bValues = make([]float64, len(images))
		for i, img := range images {
			b, err := img.Meta.BValue.Require("madym-dwi-fit.run", "BValue")
			if err != nil {
				return err
			}
			bValues[i] = b
		}
	}

	maps, tracker, err := dwimap.Run(images, bValues, method, linearOnly)
	if err != nil {
		return err
	}

	return writeOutputs(outputDir, maps, tracker)
}

func writeOutputs(dir string, maps *dwimap.Maps, tracker *errtrack.Tracker) error {
	named := map[string]*image3d.Image3D{
		"S0":        maps.S0,
		"D":         maps.D,
		"F":         maps.F,
		"DStar":     maps.DStar,
		"residuals": maps.Residual,
	}
	for name, img := range named {
		if err := cliutil.WriteMap(dir, name, img); err != nil {
			return err
		}
	}
	return cliutil.WriteMap(dir, "error_codes", tracker.ToImage())
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "\nUsage:")
	fmt.Fprintln(os.Stderr, "  madym-dwi-fit -input_dir <DIR> [options]")
	fmt.Fprintln(os.Stderr, "\nOptions:")
	flag.PrintDefaults()
}

func printHelp() {
	fmt.Println("madym-dwi-fit")
	fmt.Println("=============")
	fmt.Println()
	fmt.Println("Fit diffusion-weighted models (ADC, IVIM) to a multi-b-value MRI series.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  madym-dwi-fit -input_dir <DIR> [options]")
	fmt.Println()
	fmt.Println("Required:")
	fmt.Println("  -input_dir <DIR>    Directory of diffusion-weighted volumes")
	fmt.Println()
	flag.PrintDefaults()
}
