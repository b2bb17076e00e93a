// Package wizard implements madym-fit's interactive configuration form,
// built on github.com/charmbracelet/huh, binding huh fields directly to a
// config struct the way a multi-group huh.Form collects a flat options
// struct in one pass.
package wizard

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"

	"github.com/mberks/madym/internal/config"
	"github.com/mberks/madym/internal/dcemodel"
	"github.com/mberks/madym/internal/t1fit"
)

// Run starts the interactive wizard. If fromConfig is non-empty its YAML is
// loaded as the form's starting values; on completion the user is offered a
// path to save the resulting Options.
func Run(fromConfig string) error {
	var opts config.Options
	if fromConfig != "" {
		loaded, err := config.Load(fromConfig)
		if err != nil {
			return err
		}
		opts = loaded
	}
	opts.ApplyDefaults()

	doseStr := strconv.FormatFloat(opts.Dose, 'g', -1, 64)
	hctStr := strconv.FormatFloat(opts.Hct, 'g', -1, 64)
	injectionStr := strconv.Itoa(opts.InjectionImage)
	savePath := "madym_config.yaml"
	confirmed := true

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("model").
				Title("PK model").
				Options(modelOptions()...).
				Value(&opts.Model),

			huh.NewSelect[string]().
				Key("t1_method").
				Title("T1 mapping method").
				Options(t1MethodOptions()...).
				Value(&opts.T1Method),

			huh.NewInput().
				Key("dose").
				Title("Contrast agent dose (mmol/kg)").
				Value(&doseStr).
				Validate(validatePositiveFloat),

			huh.NewInput().
				Key("hct").
				Title("Haematocrit fraction").
				Value(&hctStr).
				Validate(validateFraction),

			huh.NewInput().
				Key("injection_image").
				Title("Bolus injection index (0-based)").
				Value(&injectionStr).
				Validate(validateNonNegativeInt),
		),
		huh.NewGroup(
			huh.NewInput().
				Key("dynamic_dir").
				Title("Dynamic series directory").
				Placeholder("path to DCE dynamic volumes").
				Value(&opts.DynamicDir).
				Validate(validateRequired),

			huh.NewInput().
				Key("t1_dir").
				Title("T1 / VFA series directory").
				Placeholder("path to T1-weighted volumes, or a precomputed T1/M0 pair").
				Value(&opts.T1Dir),

			huh.NewInput().
				Key("aif_path").
				Title("AIF file (blank = population AIF)").
				Value(&opts.AIFPath),

			huh.NewInput().
				Key("output_dir").
				Title("Output directory").
				Value(&opts.OutputDir).
				Validate(validateRequired),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Key("confirm").
				Title("Run madym-fit with these settings?").
				Affirmative("Save and run").
				Negative("Cancel").
				Value(&confirmed),

			huh.NewInput().
				Key("save_path").
				Title("Save configuration to").
				Value(&savePath),
		),
	)

	if err := form.Run(); err != nil {
		return err
	}
	if !confirmed {
		fmt.Println("Cancelled.")
		return nil
	}

	opts.Dose, _ = strconv.ParseFloat(doseStr, 64)
	opts.Hct, _ = strconv.ParseFloat(hctStr, 64)
	opts.InjectionImage, _ = strconv.Atoi(injectionStr)

	if err := opts.Validate(); err != nil {
		return err
	}
	if savePath != "" {
		if err := config.Save(savePath, opts); err != nil {
			return err
		}
		fmt.Printf("Configuration saved to %s\n", savePath)
	}
	fmt.Println("Run: madym-fit -config " + savePath)
	return nil
}

func modelOptions() []huh.Option[string] {
	var out []huh.Option[string]
	for _, m := range dcemodel.AllNames() {
		out = append(out, huh.NewOption(string(m), string(m)))
	}
	return out
}

func t1MethodOptions() []huh.Option[string] {
	var out []huh.Option[string]
	for _, m := range t1fit.AllMethods() {
		out = append(out, huh.NewOption(string(m), string(m)))
	}
	return out
}

func validateRequired(s string) error {
	if s == "" {
		return fmt.Errorf("required")
	}
	return nil
}

func validatePositiveFloat(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return fmt.Errorf("must be a positive number")
	}
	return nil
}

func validateFraction(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || v >= 1 {
		return fmt.Errorf("must be in [0,1)")
	}
	return nil
}

func validateNonNegativeInt(s string) error {
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return fmt.Errorf("must be a non-negative integer")
	}
	return nil
}
