// Package service assembles the accident monitor, the alert escalator and
// the frame stream consumed by UI transports.
package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/safecircle/sentinel/internal/alert"
	"github.com/safecircle/sentinel/internal/detector"
	"github.com/safecircle/sentinel/internal/location"
	"github.com/safecircle/sentinel/internal/logger"
	"github.com/safecircle/sentinel/internal/models"
	"github.com/safecircle/sentinel/internal/motion"
	"github.com/safecircle/sentinel/internal/transport"
)

// Options configures a Service
type Options struct {
	Detector detector.Config
	Sensor   motion.Sensor
	Locator  location.Provider
	// Alert configures the escalator. Its Locator defaults to Locator and
	// its ImpactTime is supplied by the service.
	Alert     alert.Options
	Notifiers []alert.Notifier
	// FrameBuffer sizes the outgoing frame channel. Default 64.
	FrameBuffer    int
	MonitorOptions []detector.Option
	Logger         *zap.Logger
}

var _ transport.CommandHandler = (*Service)(nil)

// Service runs one monitor and publishes its state and alerts as frames
type Service struct {
	monitor   *detector.Monitor
	escalator *alert.Escalator
	frames    chan models.Frame
	dropped   atomic.Int64
	logger    *zap.Logger
}

// New wires a monitor to an escalator. Alerts are also published on the
// frame stream.
func New(opts Options) *Service {
	log := logger.OrNop(opts.Logger)
	if opts.FrameBuffer <= 0 {
		opts.FrameBuffer = 64
	}

	s := &Service{
		frames: make(chan models.Frame, opts.FrameBuffer),
		logger: log,
	}

	alertOpts := opts.Alert
	if alertOpts.Locator == nil {
		alertOpts.Locator = opts.Locator
	}
	if alertOpts.Logger == nil {
		alertOpts.Logger = log.Named("alert")
	}
	alertOpts.ImpactTime = s.lastImpact

	notifiers := append([]alert.Notifier{alert.NewBroadcastNotifier(s.frames)}, opts.Notifiers...)
	s.escalator = alert.NewEscalator(alertOpts, notifiers...)

	monitorOpts := append([]detector.Option{
		detector.WithLogger(log.Named("detector")),
		detector.WithStateListener(s.publishState),
	}, opts.MonitorOptions...)
	s.monitor = detector.New(opts.Detector, opts.Sensor, opts.Locator, s.escalator.OnAccident, monitorOpts...)

	return s
}

// Frames returns the stream of state and alert frames
func (s *Service) Frames() <-chan models.Frame {
	return s.frames
}

// Monitor returns the underlying monitor
func (s *Service) Monitor() *detector.Monitor {
	return s.monitor
}

// Escalator returns the alert escalator
func (s *Service) Escalator() *alert.Escalator {
	return s.escalator
}

// DroppedFrames returns how many state frames were discarded on a full buffer
func (s *Service) DroppedFrames() int64 {
	return s.dropped.Load()
}

// Snapshot returns the monitor state
func (s *Service) Snapshot() models.MonitorState {
	return s.monitor.Snapshot()
}

// HandleCommand executes a client control command and returns the
// resulting state
func (s *Service) HandleCommand(ctx context.Context, command string) (models.MonitorState, error) {
	switch command {
	case models.CommandStart:
		if err := s.monitor.Start(ctx); err != nil {
			return s.monitor.Snapshot(), err
		}
	case models.CommandStop:
		s.monitor.Stop()
	case models.CommandCancel:
		s.monitor.CancelCountdown()
	case models.CommandSOS:
		if _, err := s.escalator.SOS(ctx); err != nil {
			return s.monitor.Snapshot(), fmt.Errorf("sos: %w", err)
		}
	default:
		return s.monitor.Snapshot(), fmt.Errorf("%w: %q", transport.ErrUnknownCommand, command)
	}
	return s.monitor.Snapshot(), nil
}

// Close stops the monitor and releases the sensor
func (s *Service) Close() error {
	return s.monitor.Close()
}

func (s *Service) lastImpact() *time.Time {
	return s.monitor.Snapshot().LastImpact
}

func (s *Service) publishState(state models.MonitorState) {
	select {
	case s.frames <- models.NewFrame(models.FrameState, state):
	default:
		s.dropped.Add(1)
		s.logger.Debug("state frame dropped, buffer full", zap.String("state", state.State))
	}
}
