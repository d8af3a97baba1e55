package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/safecircle/sentinel/internal/encoding"
	"github.com/safecircle/sentinel/internal/generator"
	"github.com/safecircle/sentinel/internal/models"
	"github.com/safecircle/sentinel/internal/motion"
	"github.com/safecircle/sentinel/internal/receiver"
	"github.com/safecircle/sentinel/internal/recorder"
	"github.com/safecircle/sentinel/internal/scenario"
	"github.com/safecircle/sentinel/internal/service"
	"github.com/safecircle/sentinel/internal/transport"
)

var (
	monitorSource   string
	monitorScenario string
	monitorDuration string
	monitorSeed     int64
	monitorIn       string
	monitorSpeed    float64
	monitorLoop     bool
	monitorOut      string
	monitorRoute    string
	monitorNoSensor bool
	monitorIdle     bool
	monitorArchive  string
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the accident monitor",
	Long: `Runs the accident monitor against a motion source and serves its state
to UI clients over WebSocket, SSE, UDP and HTTP.

Sources:
  scenario  synthesize motion from a built-in or custom scenario
  replay    play back a recording made with 'sim record' or --out
  ingest    accept sample batches pushed by a device over HTTP

Examples:
  sentinel monitor --scenario crash --seed 42
  sentinel monitor --source replay --in crash.ndjson --speed 4
  sentinel monitor --source ingest --config sentinel.yaml`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().StringVar(&monitorSource, "source", "scenario", "Motion source: scenario|replay|ingest")
	monitorCmd.Flags().StringVar(&monitorScenario, "scenario", "still", "Scenario to run (source=scenario)")
	monitorCmd.Flags().StringVar(&monitorDuration, "duration", "", "Override the scenario duration (e.g. 2m, unlimited)")
	monitorCmd.Flags().Int64Var(&monitorSeed, "seed", time.Now().UnixNano(), "Random seed for deterministic motion")
	monitorCmd.Flags().StringVar(&monitorIn, "in", "", "Recording to replay (source=replay)")
	monitorCmd.Flags().Float64Var(&monitorSpeed, "speed", 1.0, "Replay speed multiplier")
	monitorCmd.Flags().BoolVar(&monitorLoop, "loop", false, "Loop the recording")
	monitorCmd.Flags().StringVar(&monitorOut, "out", "", "Record the motion stream to an NDJSON file")
	monitorCmd.Flags().StringVar(&monitorRoute, "route", "", "Positions reported per fix: \"lat,lng;lat,lng\" (default: config location)")
	monitorCmd.Flags().BoolVar(&monitorNoSensor, "no-sensor", false, "Simulate a host without a motion sensor")
	monitorCmd.Flags().BoolVar(&monitorIdle, "idle", false, "Do not arm the monitor until a client sends start")
	monitorCmd.Flags().StringVar(&monitorArchive, "archive", "", "Directory to archive ingested batches (source=ingest)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg := appConfig

	format, err := encoding.ParseFormat(cfg.Transport.Encoding)
	if err != nil {
		return err
	}
	encoder := encoding.NewEncoder(format)

	ctx, cancel := signalContext(cmd)
	defer cancel()

	// Motion source
	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	var source motion.Source
	var ingest *motion.ChannelSource
	var sourceLabel string

	switch monitorSource {
	case "scenario":
		gen, label, closeRec, err := buildGenerator()
		if err != nil {
			return err
		}
		if closeRec != nil {
			closers = append(closers, closeRec)
		}
		source, sourceLabel = gen, label
	case "replay":
		if monitorIn == "" {
			return fmt.Errorf("--in is required with --source replay")
		}
		rep := recorder.NewReplayer(monitorIn, monitorSpeed, monitorLoop)
		count, err := rep.CountEvents()
		if err != nil {
			return fmt.Errorf("failed to read recording: %w", err)
		}
		source, sourceLabel = rep, fmt.Sprintf("replay %s (%d events, %.1fx)", monitorIn, count, monitorSpeed)
	case "ingest":
		ingest = motion.NewChannelSource(1024)
		source, sourceLabel = ingest, "ingest "+receiver.SamplesPath
	default:
		return fmt.Errorf("invalid --source %q (expected: scenario|replay|ingest)", monitorSource)
	}

	var sensor motion.Sensor = motion.NewFeed(source, log.Named("motion"))
	if monitorNoSensor {
		sensor = motion.NewUnavailable(log.Named("motion"))
	}

	locator, err := buildLocator(cfg, monitorRoute)
	if err != nil {
		return err
	}

	stack, err := buildAlertStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer stack.Close()

	svc := service.New(service.Options{
		Detector:  cfg.DetectorSettings(),
		Sensor:    sensor,
		Locator:   locator,
		Alert:     stack.options,
		Notifiers: stack.notifiers,
		Logger:    log,
	})
	defer svc.Close()

	// Frame fan-out
	dispatcher := transport.NewDispatcher(svc.Frames(), 100, log.Named("dispatcher"))
	host := cfg.Transport.Host
	wsServer := transport.NewWebSocketServer(host, cfg.Transport.WSPort, encoder, svc, log.Named("ws"))
	sse := transport.NewSSEServer(host, cfg.Transport.SSEPort, encoder, log.Named("sse"))
	udp := transport.NewUDPServer(host, cfg.Transport.UDPPort, encoder, log.Named("udp"))
	console := dispatcher.Subscribe()

	for _, b := range []transport.Broadcaster{wsServer, sse, udp} {
		frames := dispatcher.Subscribe()
		go func(b transport.Broadcaster) {
			if err := b.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("transport stopped", zap.String("address", b.GetAddress()), zap.Error(err))
			}
		}(b)
		go b.BroadcastFromChannel(ctx, frames)
	}
	go dispatcher.Run(ctx)

	// HTTP surface
	token, err := receiverToken(cfg.Receiver.Token)
	if err != nil {
		return err
	}
	httpOpts := []receiver.Option{receiver.WithLogger(log.Named("receiver"))}
	if stack.redis != nil {
		httpOpts = append(httpOpts, receiver.WithIdempotencyStore(receiver.NewRedisStore(stack.redis, "", 24*time.Hour)))
	}
	if monitorArchive != "" {
		archive, err := receiver.NewFileWriter(monitorArchive, "json")
		if err != nil {
			return err
		}
		httpOpts = append(httpOpts, receiver.WithWriter(archive))
	}
	var sink receiver.SampleSink
	if ingest != nil {
		sink = ingest
	}
	httpServer := receiver.NewServer(receiver.Config{
		Host:       cfg.Receiver.Host,
		Port:       cfg.Receiver.Port,
		Token:      token,
		AcceptGzip: cfg.Receiver.Gzip,
	}, sink, svc, httpOpts...)
	go func() {
		if err := httpServer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("receiver stopped", zap.Error(err))
		}
	}()

	time.Sleep(200 * time.Millisecond)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "🛡  Sentinel Monitor Started\n\n")
	fmt.Fprintf(out, "Source:       %s\n", sourceLabel)
	fmt.Fprintf(out, "Threshold:    %.1f m/s²\n", cfg.Detector.Threshold)
	fmt.Fprintf(out, "Countdown:    %ds\n", cfg.Detector.Countdown)
	fmt.Fprintf(out, "Contacts:     %d\n", len(cfg.Contacts))
	fmt.Fprintf(out, "Notifiers:    %v\n", notifierNames(stack.notifiers))
	fmt.Fprintf(out, "WebSocket:    %s%s\n", wsServer.GetAddress(), transport.WebSocketPath)
	fmt.Fprintf(out, "SSE:          %s%s\n", sse.GetAddress(), transport.SSEPath)
	fmt.Fprintf(out, "UDP:          %s\n", udp.GetAddress())
	fmt.Fprintf(out, "HTTP:         %s%s\n", httpServer.GetAddress(), receiver.MonitorPath)
	fmt.Fprintf(out, "Token:        %s\n", token)
	if monitorOut != "" {
		fmt.Fprintf(out, "Recording:    %s\n", monitorOut)
	}
	fmt.Fprintln(out)

	if !monitorIdle {
		if _, err := svc.HandleCommand(ctx, models.CommandStart); err != nil {
			return fmt.Errorf("failed to start monitoring: %w", err)
		}
	}

	var sourceDone <-chan struct{}
	if feed, ok := sensor.(*motion.Feed); ok && monitorSource != "ingest" {
		sourceDone = feed.Done()
	}

	printUntil(ctx, cmd, console, sourceDone, svc, cfg.Detector.Countdown)

	cancel()
	svc.Close()

	stats := httpServer.GetStats()
	fmt.Fprintf(cmd.ErrOrStderr(), "\n📊 Session Stats:\n")
	fmt.Fprintf(cmd.ErrOrStderr(), "   Batches:        %d (%d duplicates, %d errors)\n", stats.TotalReceived, stats.TotalDuplicates, stats.TotalErrors)
	fmt.Fprintf(cmd.ErrOrStderr(), "   Frames dropped: %d\n", dispatcher.GetDroppedCount()+svc.DroppedFrames())
	fmt.Fprintln(cmd.ErrOrStderr(), "\n✓ Shutdown complete")
	return nil
}

// printUntil echoes frames to the console until ctx ends, or until the
// finite source is exhausted and no countdown is pending
func printUntil(ctx context.Context, cmd *cobra.Command, frames <-chan models.Frame, sourceDone <-chan struct{}, svc *service.Service, total int) {
	out := cmd.OutOrStdout()
	settle := time.NewTicker(500 * time.Millisecond)
	defer settle.Stop()

	exhausted := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-sourceDone:
			sourceDone = nil
			exhausted = true
			fmt.Fprintln(out, "Motion source finished")
		case <-settle.C:
			if exhausted && !svc.Snapshot().CountdownActive {
				return
			}
		case frame, ok := <-frames:
			if !ok {
				return
			}
			switch payload := frame.Payload.(type) {
			case models.MonitorState:
				fmt.Fprintf(out, "%s  %s\n", frame.Timestamp, formatState(payload, total))
			case models.AccidentAlert:
				fmt.Fprint(out, formatAlert(payload))
			}
		}
	}
}

// buildGenerator creates the scenario generator, optionally recording its
// output. The returned close func is non-nil when a recording is open.
func buildGenerator() (*generator.Generator, string, func() error, error) {
	registry, err := loadScenarios()
	if err != nil {
		return nil, "", nil, err
	}
	scen, err := registry.Get(monitorScenario)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to load scenario '%s': %w", monitorScenario, err)
	}
	if monitorDuration != "" {
		scen.Duration = monitorDuration
	}

	genConfig := generator.Config{
		Seed:       monitorSeed,
		SourceType: "phone",
	}

	var closeRec func() error
	if monitorOut != "" {
		rec, err := recorder.NewRecorder(monitorOut)
		if err != nil {
			return nil, "", nil, err
		}
		genConfig.OnSample = func(e models.MotionEvent) {
			if err := rec.RecordJSON(e); err != nil {
				log.Warn("failed to record sample", zap.Error(err))
			}
		}
		closeRec = rec.Close
	}

	gen := generator.NewGenerator(scenario.NewEngine(scen), genConfig)
	label := fmt.Sprintf("scenario %s (seed %d, run %s)", scen.Name, monitorSeed, gen.GetRunID())
	return gen, label, closeRec, nil
}
