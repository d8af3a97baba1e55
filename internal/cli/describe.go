package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/safecircle/sentinel/internal/detector"
	"github.com/safecircle/sentinel/internal/motion"
	"github.com/safecircle/sentinel/internal/scenario"
)

var describeCmd = &cobra.Command{
	Use:   "describe <scenario>",
	Short: "Describe a scenario in detail",
	Long:  `Shows the axes, phases and overrides of a scenario and whether its phases are expected to cross the impact threshold.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDescribe,
}

func runDescribe(cmd *cobra.Command, args []string) error {
	registry, err := loadScenarios()
	if err != nil {
		return err
	}

	scen, err := registry.Get(args[0])
	if err != nil {
		return fmt.Errorf("scenario not found: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Scenario: %s\n", scen.Name)
	fmt.Fprintf(out, "Description: %s\n", scen.Description)
	fmt.Fprintf(out, "Duration: %s\n", scen.Duration)
	fmt.Fprintf(out, "Default Rate: %s\n\n", scen.DefaultRate)

	fmt.Fprintln(out, "Signals:")
	for _, axis := range scenario.Axes {
		config, ok := scen.Signals[axis]
		if !ok {
			continue
		}
		fmt.Fprintf(out, "  %s\n", axis)
		if config.Baseline != nil {
			fmt.Fprintf(out, "    Baseline: %.2f m/s²\n", *config.Baseline)
		}
		if config.Noise != nil {
			fmt.Fprintf(out, "    Noise: %.2f\n", *config.Noise)
		}
	}

	if len(scen.Phases) > 0 {
		fmt.Fprintln(out, "\nPhases:")
		var offset time.Duration
		for i, phase := range scen.Phases {
			fmt.Fprintf(out, "  %d. %s (at %s, duration: %s)\n", i+1, phase.Name, offset, phase.Duration)
			printOverrides(out, scen, phase, offset)
			if d, unlimited := scenario.ParseDuration(phase.Duration); !unlimited {
				offset += d
			}
		}
	}

	fmt.Fprintln(out)
	return nil
}

func printOverrides(out io.Writer, scen *scenario.Scenario, phase scenario.Phase, offset time.Duration) {
	if len(phase.Overrides) == 0 {
		return
	}
	fmt.Fprintln(out, "     Overrides:")
	for _, axis := range scenario.Axes {
		override, ok := phase.Overrides[axis]
		if !ok {
			continue
		}
		fmt.Fprintf(out, "       %s:", axis)
		if override.Add != 0 {
			fmt.Fprintf(out, " add=%.1f", override.Add)
		}
		if override.Multiply != 0 {
			fmt.Fprintf(out, " multiply=%.1f", override.Multiply)
		}
		if override.Value != nil {
			fmt.Fprintf(out, " value=%.1f", *override.Value)
		}
		if override.Baseline != nil {
			fmt.Fprintf(out, " baseline=%.2f", *override.Baseline)
		}
		if override.Noise != nil {
			fmt.Fprintf(out, " noise=%.2f", *override.Noise)
		}
		fmt.Fprintln(out)
	}

	if peak := peakMagnitude(scen, offset); peak > detector.ImpactThreshold {
		fmt.Fprintf(out, "     ⚠️  nominal magnitude %.1f m/s² crosses the impact threshold\n", peak)
	}
}

// peakMagnitude is the noise-free magnitude at the start of a phase
func peakMagnitude(scen *scenario.Scenario, at time.Duration) float64 {
	var v [3]float64
	for i, axis := range scenario.Axes {
		cfg := scen.GetEffectiveConfig(axis, at)
		if cfg.Value != nil {
			v[i] = *cfg.Value
			continue
		}
		rest := 0.0
		if axis == scenario.AxisZ {
			rest = 9.81
		}
		v[i] = cfg.BaselineOr(rest) + cfg.Add
		if cfg.Multiply != 0 {
			v[i] *= cfg.Multiply
		}
	}
	return motion.Magnitude(v[0], v[1], v[2])
}
