package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/safecircle/sentinel/internal/detector"
	"github.com/safecircle/sentinel/internal/generator"
	"github.com/safecircle/sentinel/internal/models"
	"github.com/safecircle/sentinel/internal/motion"
	"github.com/safecircle/sentinel/internal/recorder"
	"github.com/safecircle/sentinel/internal/scenario"
)

var (
	recordScenario string
	recordDuration string
	recordOut      string
	recordSeed     int64
	recordRate     string
	recordRealtime bool
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a scenario's motion stream to a file",
	Long: `Generates accelerometer samples from a scenario and writes them to an
NDJSON file that 'monitor --source replay' and 'sim replay' can play back.

By default samples are generated as fast as possible with timestamps on the
scenario's virtual timeline. Use --realtime to pace generation on the wall clock.

Examples:
  sentinel sim record --scenario crash --out crash.ndjson --seed 42
  sentinel sim record --scenario commute --duration 1m --rate 50hz --out commute.ndjson`,
	RunE: runRecord,
}

func init() {
	recordCmd.Flags().StringVar(&recordScenario, "scenario", "crash", "Scenario to run")
	recordCmd.Flags().StringVar(&recordDuration, "duration", "", "Duration to record (default: scenario duration, 5m when unlimited)")
	recordCmd.Flags().StringVar(&recordOut, "out", "", "Output file (required)")
	recordCmd.Flags().Int64Var(&recordSeed, "seed", time.Now().UnixNano(), "Random seed")
	recordCmd.Flags().StringVar(&recordRate, "rate", "", "Sample rate (default: scenario rate)")
	recordCmd.Flags().BoolVar(&recordRealtime, "realtime", false, "Pace generation on the wall clock")
	recordCmd.MarkFlagRequired("out")
}

func runRecord(cmd *cobra.Command, args []string) error {
	registry, err := loadScenarios()
	if err != nil {
		return err
	}

	scen, err := registry.Get(recordScenario)
	if err != nil {
		return fmt.Errorf("failed to load scenario '%s': %w", recordScenario, err)
	}
	if recordDuration != "" {
		scen.Duration = recordDuration
	}
	if _, unlimited := scenario.ParseDuration(scen.Duration); unlimited {
		scen.Duration = "5m"
	}

	rate := recordRate
	if rate == "" {
		rate = scen.DefaultRate
	}
	interval := motion.DefaultInterval
	if rate != "" {
		interval, err = scenario.ParseRate(rate)
		if err != nil {
			return fmt.Errorf("invalid rate: %w", err)
		}
	}

	rec, err := recorder.NewRecorder(recordOut)
	if err != nil {
		return fmt.Errorf("failed to create recorder: %w", err)
	}
	defer rec.Close()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	var recordErr error
	impacts := 0
	genConfig := generator.Config{
		Seed:       recordSeed,
		SourceType: "phone",
		OnSample: func(e models.MotionEvent) {
			if e.Accel.Magnitude() > detector.ImpactThreshold {
				impacts++
			}
			if err := rec.RecordJSON(e); err != nil && recordErr == nil {
				recordErr = err
			}
			if n := rec.Entries(); n%1000 == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "\rRecorded ~%d samples...", n)
			}
		},
	}
	if !recordRealtime {
		genConfig.Start = time.Now().UTC().Truncate(time.Second)
	}
	gen := generator.NewGenerator(scenario.NewEngine(scen), genConfig)

	fmt.Fprintf(cmd.OutOrStdout(), "📼 Recording Session Started\n\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Scenario:   %s\n", scen.Name)
	fmt.Fprintf(cmd.OutOrStdout(), "Duration:   %s\n", scen.Duration)
	fmt.Fprintf(cmd.OutOrStdout(), "Interval:   %s\n", interval)
	fmt.Fprintf(cmd.OutOrStdout(), "Seed:       %d\n", recordSeed)
	fmt.Fprintf(cmd.OutOrStdout(), "Output:     %s\n\n", recordOut)

	if recordRealtime {
		err = gen.Stream(ctx, interval, discard(ctx))
	} else {
		err = generateAll(ctx, gen, interval)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("generator error: %w", err)
	}
	if recordErr != nil {
		return fmt.Errorf("recording error: %w", recordErr)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\n\n✅ Recording complete: %s (%d samples, %d above %.0f m/s²)\n",
		recordOut, rec.Entries(), impacts, detector.ImpactThreshold)
	return nil
}

// generateAll runs the generator to completion without pacing
func generateAll(ctx context.Context, gen *generator.Generator, interval time.Duration) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, ok := gen.Next(interval); !ok {
			return nil
		}
	}
}

// discard returns a channel drained until ctx ends
func discard(ctx context.Context) chan<- motion.Sample {
	ch := make(chan motion.Sample, 16)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ch:
			}
		}
	}()
	return ch
}
