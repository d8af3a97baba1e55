package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/safecircle/sentinel/internal/alert"
)

var (
	sosAt      string
	sosTimeout time.Duration
)

var sosCmd = &cobra.Command{
	Use:   "sos",
	Short: "Send a manual emergency alert",
	Long: `Sends an SOS alert with the current position to every configured contact
through every configured notifier, without waiting for an impact.

Examples:
  sentinel sos --config sentinel.yaml
  sentinel sos --at "6.5244,3.3792"`,
	RunE: runSOS,
}

func init() {
	sosCmd.Flags().StringVar(&sosAt, "at", "", "Position to report as \"lat,lng\" (default: config location)")
	sosCmd.Flags().DurationVar(&sosTimeout, "timeout", 30*time.Second, "Give up after this long")
}

func runSOS(cmd *cobra.Command, args []string) error {
	cfg := appConfig

	ctx, cancel := signalContext(cmd)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, sosTimeout)
	defer cancelTimeout()

	locator, err := buildLocator(cfg, sosAt)
	if err != nil {
		return err
	}

	stack, err := buildAlertStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer stack.Close()

	opts := stack.options
	opts.Locator = locator
	escalator := alert.NewEscalator(opts, stack.notifiers...)

	a, sendErr := escalator.SOS(ctx)
	if a.AlertID != "" {
		fmt.Fprint(cmd.OutOrStdout(), formatAlert(a))
	}
	if sendErr != nil {
		return fmt.Errorf("sos delivery incomplete: %w", sendErr)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "\n✅ SOS sent")
	return nil
}
