// Package config implements the flat Options struct covering every CLI
// option group, loadable from flags or from a YAML file via
// gopkg.in/yaml.v3, with a --config/--save-config round trip.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mberks/madym/internal/dcemodel"
	"github.com/mberks/madym/internal/madymerr"
	"github.com/mberks/madym/internal/t1fit"
)

// Options is the complete set of options a fitting run needs, independent
// of whether they arrived via flags or a YAML file.
type Options struct {
	Model    string `yaml:"model"`
	T1Method string `yaml:"t1_method"`

	Dose            float64 `yaml:"dose"`
	Hct             float64 `yaml:"hct"`
	InjectionImage  int     `yaml:"injection_image"`
	R1              float64 `yaml:"r1"`
	FirstImage      int     `yaml:"first_image"`
	LastImage       int     `yaml:"last_image"`
	IAUCTimes       []float64 `yaml:"iauc_times"`
	IAUCAtPeak      bool    `yaml:"iauc_at_peak"`
	UseM0Ratio      bool    `yaml:"use_m0_ratio"`
	TestEnhancement bool    `yaml:"test_enhancement"`
	OptimiseModel   bool    `yaml:"optimise_model"`

	RelativeLimitParams []string  `yaml:"relative_limit_params"`
	RelativeLimitValues []float64 `yaml:"relative_limit_values"`
	FixedParams         []string  `yaml:"fixed_params"`
	FixedValues         []float64 `yaml:"fixed_values"`
	InitParams          []float64 `yaml:"init_params"`

	MaxIterations int    `yaml:"max_iterations"`
	OptType       string `yaml:"opt_type"` // "BLEIC" or "NS"

	DynamicDir   string `yaml:"dynamic_dir"`
	T1Dir        string `yaml:"t1_dir"`
	B1Dir        string `yaml:"b1_dir"`
	OutputDir    string `yaml:"output_dir"`
	ROIPath      string `yaml:"roi_path"`
	AIFPath      string `yaml:"aif_path"`
	PIFPath      string `yaml:"pif_path"`

	// ConcentrationMode marks dynamics as already Ct, skipping the
	// signal->concentration conversion stage.
	ConcentrationMode bool `yaml:"concentration_mode"`

	// TemporalResolution is the spacing, in seconds, between dynamic
	// timepoints, used to synthesise a timestamp when the loader (e.g. a
	// flat rawvol series) carries no acquisition-time metadata of its own.
	TemporalResolution float64 `yaml:"temporal_resolution"`

	ProgramLogFile string `yaml:"program_log_file"`
	AuditLogFile   string `yaml:"audit_log_file"`
}

// ApplyDefaults fills unset fields with the conventional defaults used
// throughout the fitters.
func (o *Options) ApplyDefaults() {
	if o.Model == "" {
		o.Model = string(dcemodel.ETM)
	}
	if o.T1Method == "" {
		o.T1Method = string(t1fit.VFA)
	}
	if o.R1 == 0 {
		o.R1 = 4.3 // mM^-1 s^-1, the conventional Gd-DTPA relaxivity at 1.5T
	}
	if o.MaxIterations == 0 {
		o.MaxIterations = 500
	}
	if o.OptType == "" {
		o.OptType = "BLEIC"
	}
	if len(o.IAUCTimes) == 0 {
		o.IAUCTimes = []float64{60, 90, 120}
	}
	if o.TemporalResolution == 0 {
		o.TemporalResolution = 4.97 // seconds, the conventional single-slice DCE-MRI dynamic spacing
	}
}

// Validate rejects option combinations that would produce a fatal error
// downstream: an unresolvable model or T1 method name, or an
// out-of-range Hct.
func (o *Options) Validate() error {
	if _, err := dcemodel.New(dcemodel.Name(o.Model)); err != nil {
		return madymerr.Wrap(madymerr.ModelUnknown, "config.Validate", "unknown model "+o.Model, err)
	}
	if !validT1Method(o.T1Method) {
		return madymerr.New(madymerr.ModelUnknown, "config.Validate", "unknown T1 method "+o.T1Method)
	}
	if o.Hct < 0 || o.Hct >= 1 {
		return madymerr.New(madymerr.MissingMetadata, "config.Validate", "hct must be in [0,1)")
	}
	return nil
}

func validT1Method(m string) bool {
	for _, method := range t1fit.AllMethods() {
		if string(method) == m {
			return true
		}
	}
	return false
}

// Load reads Options from a YAML file (the --config round trip).
func Load(path string) (Options, error) {
	var o Options
	data, err := os.ReadFile(path)
	if err != nil {
		return o, madymerr.Wrap(madymerr.FileFormatBad, "config.Load", "reading config file "+path, err)
	}
	if err := yaml.Unmarshal(data, &o); err != nil {
		return o, madymerr.Wrap(madymerr.FileFormatBad, "config.Load", "parsing config file "+path, err)
	}
	return o, nil
}

// Save writes Options to a YAML file (the --save-config round trip).
func Save(path string, o Options) error {
	data, err := yaml.Marshal(o)
	if err != nil {
		return madymerr.Wrap(madymerr.FileFormatBad, "config.Save", "serialising config", err)
	}
	return os.WriteFile(path, data, 0o644)
}
