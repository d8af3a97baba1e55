package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/safecircle/sentinel/internal/config"
	"github.com/safecircle/sentinel/internal/logger"
)

var (
	appConfig *config.Config
	log       = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Sentinel - accident detection monitor",
	Long: `Sentinel watches an accelerometer stream for violent impacts.

When an impact is detected the position is captured and a 30 second
countdown starts. If nobody cancels it, an emergency alert with the
captured location is sent to the configured contacts.

Motion can come from a built-in scenario, a recording, or a device
pushing samples over HTTP.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command
func Execute() {
	defer func() { _ = log.Sync() }()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalOpts.ConfigFile, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&globalOpts.LogLevel, "log-level", "", "Log level: debug|info|warn|error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.LogFormat, "log-format", "", "Log format: console|json (overrides config)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.ScenarioDir, "scenarios", "", "Directory with additional scenario YAML files")

	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(sosCmd)
	rootCmd.AddCommand(simCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)
}

// setup loads configuration and builds the logger before any command runs
func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(globalOpts.ConfigFile)
	if err != nil {
		return err
	}
	if globalOpts.LogLevel != "" {
		cfg.Log.Level = globalOpts.LogLevel
	}
	if globalOpts.LogFormat != "" {
		cfg.Log.Format = globalOpts.LogFormat
	}

	l, err := logger.New(cfg.Log.Level, cfg.Log.Format, "sentinel")
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	appConfig = cfg
	log = l
	return nil
}
