// Command madym-fit drives VolumeAnalysis over a dynamic series, writing
// per-voxel parameter, IAUC, residual, error-code and summary outputs.
// Flag handling and the --config/--save-config/wizard dispatch follow a
// stdlib-flag CLI with a wizard subcommand dispatched ahead of flag.Parse.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/mberks/madym/cmd/madym-fit/wizard"
	"github.com/mberks/madym/internal/aif"
	"github.com/mberks/madym/internal/cliutil"
	"github.com/mberks/madym/internal/config"
	"github.com/mberks/madym/internal/dcemodel"
	"github.com/mberks/madym/internal/errtrack"
	"github.com/mberks/madym/internal/fitter"
	"github.com/mberks/madym/internal/image3d"
	"github.com/mberks/madym/internal/ioformats/rawvol"
	"github.com/mberks/madym/internal/ioformats/seriesload"
	"github.com/mberks/madym/internal/mlog"
	"github.com/mberks/madym/internal/t1fit"
	"github.com/mberks/madym/internal/t1map"
	"github.com/mberks/madym/internal/volume"
)

var version = "dev"

func main() {
	// Check for wizard subcommand before flag.Parse.
	if len(os.Args) > 1 && os.Args[1] == "wizard" {
		var fromConfig string
		for i, arg := range os.Args[2:] {
			if arg == "--from" && i+3 < len(os.Args) {
				fromConfig = os.Args[i+3]
			}
		}
		if err := wizard.Run(fromConfig); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	model := flag.String("model", "", "DCE model: Patlak, ETM, DIETM, 2CXM, DIBEM, AUEM, DISCM")
	t1Method := flag.String("T1_method", "", "T1 mapping method: VFA, VFA_B1, IR, IR_E")
	dose := flag.Float64("dose", 0.1, "Contrast agent dose (mmol/kg)")
	hct := flag.Float64("hct", 0.42, "Haematocrit fraction")
	injectionImage := flag.Int("injection_image", 1, "0-based dynamic index of the bolus injection")
	r1 := flag.Float64("r1", 0, "Contrast agent relaxivity (mM^-1 s^-1)")
	firstImage := flag.Int("first_image", 0, "First dynamic index in the residual window")
	lastImage := flag.Int("last_image", 0, "Last dynamic index in the residual window (0 = to the end)")
	iaucTimes := flag.String("IAUC_times", "", "Comma-separated IAUC times in seconds (default 60,90,120)")
	iaucAtPeak := flag.Bool("IAUC_peak", false, "Also compute IAUC to the signal peak")
	useM0Ratio := flag.Bool("M0_ratio", false, "Use the M0-ratio signal->concentration conversion")
	testEnhancement := flag.Bool("test_enhancement", false, "Reject non-enhancing voxels before model fitting")
	optimiseModel := flag.Bool("optimise_model", true, "Run the nonlinear model fit (disable with -optimise_model=false)")
	concentrationMode := flag.Bool("input_Ct", false, "Dynamics are already concentration, skip signal conversion")

	relativeLimitParams := flag.String("relative_limit_params", "", "Comma-separated parameter names with relative bounds")
	relativeLimitValues := flag.String("relative_limit_values", "", "Comma-separated relative bound fractions")
	fixedParams := flag.String("fixed_params", "", "Comma-separated parameter names to hold fixed")
	fixedValues := flag.String("fixed_values", "", "Comma-separated fixed parameter values")
	initParams := flag.String("init_params", "", "Comma-separated initial parameter values")

	maxIterations := flag.Int("max_iterations", 0, "Maximum optimiser iterations (0 = config default)")
	optType := flag.String("opt_type", "", "Optimiser: BLEIC or NS")

	dynamicDir := flag.String("dynamic_dir", "", "Directory of dynamic series volumes (required)")
	t1Dir := flag.String("T1_dir", "", "Directory of T1-weighted volumes, or a precomputed T1/M0 pair")
	b1Dir := flag.String("B1_dir", "", "Path to a precomputed B1 correction map (VFA_B1 only)")
	outputDir := flag.String("output", "madym_output", "Output directory")
	roiPath := flag.String("roi", "", "Path to an ROI mask volume")
	aifPath := flag.String("aif", "", "Path to an AIF file (population formula used if omitted)")
	pifPath := flag.String("pif", "", "Path to a PIF file (dual-input models only)")

	programLogFile := flag.String("program_log_file", "", "Program (diagnostic) log file path")
	auditLogFile := flag.String("audit_log_file", "", "Audit log file path")

	interactive := flag.Bool("interactive", false, "Launch interactive wizard")
	flag.BoolVar(interactive, "i", false, "Launch interactive wizard (shortcut)")
	configFile := flag.String("config", "", "Load configuration from YAML file")
	saveConfig := flag.String("save-config", "", "Save configuration to YAML file")
	help := flag.Bool("help", false, "Show help message")
	showVersion := flag.Bool("version", false, "Show version")

	flag.Parse()

	if *interactive {
		if err := wizard.Run(""); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}
	if *showVersion {
		fmt.Printf("madym-fit %s\n", version)
		os.Exit(0)
	}
	if *help {
		printHelp()
		os.Exit(0)
	}

	var opts config.Options
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		opts = loaded
	} else {
		opts = config.Options{
			Model:               *model,
			T1Method:            *t1Method,
			Dose:                *dose,
			Hct:                 *hct,
			InjectionImage:      *injectionImage,
			R1:                  *r1,
			FirstImage:          *firstImage,
			LastImage:           *lastImage,
			IAUCTimes:           cliutil.ParseFloatList(*iaucTimes),
			IAUCAtPeak:          *iaucAtPeak,
			UseM0Ratio:          *useM0Ratio,
			TestEnhancement:     *testEnhancement,
			OptimiseModel:       *optimiseModel,
			ConcentrationMode:   *concentrationMode,
			RelativeLimitParams: cliutil.ParseStringList(*relativeLimitParams),
			RelativeLimitValues: cliutil.ParseFloatList(*relativeLimitValues),
			FixedParams:         cliutil.ParseStringList(*fixedParams),
			FixedValues:         cliutil.ParseFloatList(*fixedValues),
			InitParams:          cliutil.ParseFloatList(*initParams),
			MaxIterations:       *maxIterations,
			OptType:             *optType,
			DynamicDir:          *dynamicDir,
			T1Dir:               *t1Dir,
			B1Dir:               *b1Dir,
			OutputDir:           *outputDir,
			ROIPath:             *roiPath,
			AIFPath:             *aifPath,
			PIFPath:             *pifPath,
			ProgramLogFile:      *programLogFile,
			AuditLogFile:        *auditLogFile,
		}
	}
	opts.ApplyDefaults()

	if opts.DynamicDir == "" {
		fmt.Fprintln(os.Stderr, "Error: -dynamic_dir is required")
		printUsage()
		os.Exit(1)
	}
	if err := opts.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if opts.ProgramLogFile != "" {
		closer, err := mlog.OpenProgramLog(opts.ProgramLogFile, logrus.InfoLevel)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening program log: %v\n", err)
			os.Exit(1)
		}
		defer closer.Close()
	}
	if opts.AuditLogFile != "" {
		closer, err := mlog.OpenAuditLog(opts.AuditLogFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening audit log: %v\n", err)
			os.Exit(1)
		}
		defer closer.Close()
	}
	mlog.Audit().Infof("madym-fit starting: model=%s T1_method=%s dynamic_dir=%s", opts.Model, opts.T1Method, opts.DynamicDir)

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		mlog.Audit().Errorf("madym-fit failed: %v", err)
		os.Exit(1)
	}

	if *saveConfig != "" {
		if err := config.Save(*saveConfig, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not save config: %v\n", err)
		} else {
			fmt.Printf("Configuration saved to %s\n", *saveConfig)
		}
	}

	fmt.Println("madym-fit: analysis complete")
	fmt.Printf("  Output directory: %s\n", opts.OutputDir)
	os.Exit(0)
}

// run performs the whole fitting pipeline. Every error it returns is fatal
// (madymerr.Error); per-voxel faults are recorded in the ErrorTracker and
// never propagate here.
func run(opts config.Options) error {
	dynamics, err := loadDynamicSeries(opts.DynamicDir, opts.TemporalResolution)
	if err != nil {
		return err
	}

	var roi *image3d.Image3D
	if opts.ROIPath != "" {
		roi, err = rawvol.Read(opts.ROIPath)
		if err != nil {
			return err
		}
	}

	model, err := dcemodel.New(dcemodel.Name(opts.Model))
	if err != nil {
		return err
	}

	times := make([]float64, len(dynamics))
	for i, d := range dynamics {
		t, err := d.Meta.Timestamp.Require("madym-fit.run", "Timestamp")
		if err != nil {
			return err
		}
		times[i] = t
	}

	var aifInput *aif.AIF
	if opts.AIFPath != "" {
		aifInput = aif.NewPopulation(times, opts.Dose, opts.Hct, opts.InjectionImage)
		if err := aifInput.LoadAIFFile(opts.AIFPath); err != nil {
			return err
		}
	} else {
		aifInput = aif.NewPopulation(times, opts.Dose, opts.Hct, opts.InjectionImage)
	}
	if model.DualInput() && opts.PIFPath != "" {
		if err := aifInput.LoadPIFFile(opts.PIFPath); err != nil {
			return err
		}
	}

	var t1Map, m0Map, b1Map, ewMap *image3d.Image3D
	var t1Tracker *errtrack.Tracker
	if !opts.ConcentrationMode {
		if opts.B1Dir != "" {
			b1Map, err = rawvol.Read(opts.B1Dir)
			if err != nil {
				return err
			}
		}
		t1Map, m0Map, err = loadPrecomputedT1(opts.T1Dir)
		if err != nil {
			return err
		}
		if t1Map == nil {
			t1Images, err := loadDynamicSeries(opts.T1Dir, opts.TemporalResolution)
			if err != nil {
				return err
			}
			t1Map, m0Map, ewMap, t1Tracker, err = t1map.Run(t1Images, t1fit.Method(opts.T1Method), b1Map)
			if err != nil {
				return err
			}
		}
	}

	fitCfg := fitter.Config{
		First:               opts.FirstImage,
		Last:                opts.LastImage,
		MaxIterations:       opts.MaxIterations,
		RelativeLimitParams: opts.RelativeLimitParams,
		RelativeLimitValues: opts.RelativeLimitValues,
	}
	fitCfg.FixedMask, fitCfg.FixedValues = cliutil.BuildFixedMask(model.ParamNames(), opts.FixedParams, opts.FixedValues)

	volCfg := volume.Config{
		ConcentrationMode: opts.ConcentrationMode,
		TR:                dynamics[0].Meta.TR.GetOr(0),
		FlipAngle:         dynamics[0].Meta.FlipAngle.GetOr(0),
		R1Const:           opts.R1,
		Prebolus:          opts.InjectionImage,
		UseM0Ratio:        opts.UseM0Ratio,
		IAUCTimes:         iaucTimesMinutes(opts.IAUCTimes),
		IAUCAtPeak:        opts.IAUCAtPeak,
		TestEnhancement:   opts.TestEnhancement,
		OptimiseModel:     opts.OptimiseModel,
		DualInput:         model.DualInput(),
		FitConfig:         fitCfg,
		InitMapParams:     uniformInitMaps(model.ParamNames(), opts.InitParams, dynamics[0]),
	}
	analysis, err := volume.New(model, dynamics, aifInput, t1Map, m0Map, b1Map, roi, volCfg)
	if err != nil {
		return err
	}
	if err := analysis.Run(); err != nil {
		return err
	}

	return writeOutputs(opts.OutputDir, analysis, roi, t1Map, m0Map, ewMap, b1Map, t1Tracker)
}

func writeOutputs(dir string, a *volume.Analysis, roi, t1Map, m0Map, ewMap, b1Map *image3d.Image3D, t1Tracker *errtrack.Tracker) error {
	for name, img := range a.ParamMaps {
		if err := cliutil.WriteMap(dir, name, img); err != nil {
			return err
		}
	}
	for tau, img := range a.IAUCMaps {
		if err := cliutil.WriteMap(dir, fmt.Sprintf("IAUC%d", int(tau)), img); err != nil {
			return err
		}
	}
	if a.IAUCPeakMap != nil {
		if err := cliutil.WriteMap(dir, "IAUC_peak", a.IAUCPeakMap); err != nil {
			return err
		}
	}
	if err := cliutil.WriteMap(dir, "residuals", a.ResidualMap); err != nil {
		return err
	}
	if err := cliutil.WriteMap(dir, "enhVox", a.EnhancingMap); err != nil {
		return err
	}
	if err := cliutil.WriteMap(dir, "error_codes", a.Tracker.ToImage()); err != nil {
		return err
	}
	if t1Map != nil {
		if err := cliutil.WriteMap(dir, "T1", t1Map); err != nil {
			return err
		}
	}
	if m0Map != nil {
		if err := cliutil.WriteMap(dir, "M0", m0Map); err != nil {
			return err
		}
	}
	if ewMap != nil {
		if err := cliutil.WriteMap(dir, "efficiency", ewMap); err != nil {
			return err
		}
	}
	if b1Map != nil {
		if err := cliutil.WriteMap(dir, "B1", b1Map); err != nil {
			return err
		}
	}
	if t1Tracker != nil {
		if err := cliutil.WriteMap(dir, "T1_error_codes", t1Tracker.ToImage()); err != nil {
			return err
		}
	}
	return a.WriteSummary(dir, roi)
}

// loadPrecomputedT1 looks for "T1.raw"/"M0.raw" directly inside dir (a
// precomputed map pair) and returns them if present; (nil, nil, nil) tells
// the caller to instead treat dir as a stack of T1-weighted acquisitions.
func loadPrecomputedT1(dir string) (t1Map, m0Map *image3d.Image3D, err error) {
	t1Path := filepath.Join(dir, "T1.raw")
	if _, statErr := os.Stat(t1Path); statErr != nil {
		return nil, nil, nil
	}
	t1Map, err = rawvol.Read(t1Path)
	if err != nil {
		return nil, nil, err
	}
	m0Map, err = rawvol.Read(filepath.Join(dir, "M0.raw"))
	if err != nil {
		return nil, nil, err
	}
	return t1Map, m0Map, nil
}

// loadDynamicSeries loads one Image3D per timepoint from dir via
// seriesload.Load, then synthesises a timestamp from each entry's position
// and temporalResSeconds wherever no ".xtr" sidecar supplied one.
func loadDynamicSeries(dir string, temporalResSeconds float64) ([]*image3d.Image3D, error) {
	images, err := seriesload.Load(dir)
	if err != nil {
		return nil, err
	}
	for i, img := range images {
		if _, ok := img.Meta.Timestamp.Get(); !ok {
			img.Meta.Timestamp = image3d.NewOptFloat(float64(i) * temporalResSeconds / 60.0)
		}
	}
	return images, nil
}

// uniformInitMaps builds a constant-valued Image3D per model parameter from
// a flat -init_params list, the uniform-initial-value case of
// Config.InitMapParams's per-voxel override. Returns nil if initParams is
// unset or its length doesn't match the model's parameter count.
func uniformInitMaps(paramNames []string, initParams []float64, ref *image3d.Image3D) map[string]*image3d.Image3D {
	if len(initParams) != len(paramNames) {
		return nil
	}
	out := make(map[string]*image3d.Image3D, len(paramNames))
	for i, name := range paramNames {
		img := image3d.Copy(ref)
		for idx := 0; idx < img.NumVoxels(); idx++ {
			img.Set(idx, initParams[i])
		}
		out[name] = img
	}
	return out
}

// iaucTimesMinutes converts the CLI's IAUC times (seconds) into the
// minutes volume.Config expects.
func iaucTimesMinutes(seconds []float64) []float64 {
	out := make([]float64, len(seconds))
	for i, s := range seconds {
		out[i] = s / 60.0
	}
	return out
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "\nUsage:")
	fmt.Fprintln(os.Stderr, "  madym-fit -dynamic_dir <DIR> -model <MODEL> [options]")
	fmt.Fprintln(os.Stderr, "\nOptions:")
	flag.PrintDefaults()
}

func printHelp() {
	fmt.Println("madym-fit")
	fmt.Println("=========")
	fmt.Println()
	fmt.Println("Fit pharmacokinetic and relaxometry models to a dynamic MRI series.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  madym-fit -dynamic_dir <DIR> -model <MODEL> [options]")
	fmt.Println()
	fmt.Println("Required:")
	fmt.Println("  -dynamic_dir <DIR>    Directory of dynamic series volumes")
	fmt.Println("  -model <NAME>         Patlak, ETM, DIETM, 2CXM, DIBEM, AUEM, DISCM")
	fmt.Println()
	fmt.Println("Run 'madym-fit -help' after setting flags to see every option, or")
	fmt.Println("'madym-fit wizard' for an interactive configuration form.")
	fmt.Println()
	flag.PrintDefaults()
}
