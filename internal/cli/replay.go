package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/safecircle/sentinel/internal/encoding"
	"github.com/safecircle/sentinel/internal/models"
	"github.com/safecircle/sentinel/internal/recorder"
	"github.com/safecircle/sentinel/internal/transport"
)

var (
	replayIn    string
	replaySpeed float64
	replayLoop  bool
	replayHost  string
	replayPort  int
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Stream a recording to WebSocket clients",
	Long: `Replays motion events from a recorded NDJSON file as "motion" frames over
WebSocket, preserving the recorded cadence. Use 'monitor --source replay' to
run the detector over a recording instead.

Examples:
  sentinel sim replay --in crash.ndjson
  sentinel sim replay --in commute.ndjson --speed 2.0 --loop`,
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&replayIn, "in", "", "Input file to replay (required)")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier")
	replayCmd.Flags().BoolVar(&replayLoop, "loop", false, "Loop playback continuously")
	replayCmd.Flags().StringVar(&replayHost, "host", "127.0.0.1", "Host to bind to")
	replayCmd.Flags().IntVar(&replayPort, "port", 8787, "Port to listen on")
	replayCmd.MarkFlagRequired("in")
}

func runReplay(cmd *cobra.Command, args []string) error {
	rep := recorder.NewReplayer(replayIn, replaySpeed, replayLoop)

	count, err := rep.CountEvents()
	if err != nil {
		return fmt.Errorf("failed to read recording: %w", err)
	}

	firstEvent, err := rep.GetFirstEvent()
	if err != nil {
		return fmt.Errorf("failed to read first event: %w", err)
	}

	format, err := encoding.ParseFormat(appConfig.Transport.Encoding)
	if err != nil {
		return err
	}
	wsServer := transport.NewWebSocketServer(replayHost, replayPort, encoding.NewEncoder(format), nil, log.Named("ws"))

	ctx, cancel := signalContext(cmd)
	defer cancel()

	go func() {
		if err := wsServer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("websocket server error", zap.Error(err))
		}
	}()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "▶️  Replay Session Started\n\n")
	fmt.Fprintf(out, "File:         %s\n", replayIn)
	fmt.Fprintf(out, "Events:       %d\n", count)
	fmt.Fprintf(out, "Scenario:     %s\n", firstEvent.Session.Scenario)
	fmt.Fprintf(out, "Speed:        %.1fx\n", replaySpeed)
	fmt.Fprintf(out, "Loop:         %v\n", replayLoop)
	fmt.Fprintf(out, "WebSocket:    %s%s\n\n", wsServer.GetAddress(), transport.WebSocketPath)

	events := make(chan models.MotionEvent, 100)
	frames := make(chan models.Frame, 100)

	go func() {
		defer close(frames)
		for event := range events {
			frames <- models.NewFrame(models.FrameMotion, event)
		}
	}()

	broadcastDone := make(chan struct{})
	go func() {
		defer close(broadcastDone)
		if err := wsServer.BroadcastFromChannel(ctx, frames); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("broadcast error", zap.Error(err))
		}
	}()

	fmt.Fprintln(out, "Press Ctrl+C to stop")
	fmt.Fprintln(out, "\nReplaying events...")

	err = rep.Replay(ctx, events)
	close(events)
	<-broadcastDone

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("replay error: %w", err)
	}

	fmt.Fprintln(out, "\nReplay complete")
	return nil
}
