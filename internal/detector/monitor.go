// Package detector implements the accident-detection state machine: it
// watches accelerometer magnitude, captures the position on a likely impact,
// runs a cancellable countdown and escalates when nobody responds.
package detector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/safecircle/sentinel/internal/location"
	"github.com/safecircle/sentinel/internal/logger"
	"github.com/safecircle/sentinel/internal/models"
	"github.com/safecircle/sentinel/internal/motion"
)

const (
	// ImpactThreshold is the magnitude in m/s² above which a sample counts as an impact.
	ImpactThreshold = 20.0
	// CountdownSeconds is the window the user has to dismiss a detected impact.
	CountdownSeconds = 30
)

var (
	// ErrPermissionDenied is returned by Start when location access is refused.
	ErrPermissionDenied = errors.New("location permission denied")
	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("monitor closed")
	// ErrStartAborted is returned by Start when Stop is called while it is
	// still waiting for location permission.
	ErrStartAborted = errors.New("monitoring start aborted by stop")
)

// Config holds the tunables of the monitor.
type Config struct {
	ImpactThreshold  float64
	SampleInterval   time.Duration
	CountdownSeconds int
	TickInterval     time.Duration
	FixTimeout       time.Duration
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		ImpactThreshold:  ImpactThreshold,
		SampleInterval:   motion.DefaultInterval,
		CountdownSeconds: CountdownSeconds,
		TickInterval:     time.Second,
		FixTimeout:       15 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ImpactThreshold <= 0 {
		c.ImpactThreshold = d.ImpactThreshold
	}
	if c.SampleInterval <= 0 {
		c.SampleInterval = d.SampleInterval
	}
	if c.CountdownSeconds <= 0 {
		c.CountdownSeconds = d.CountdownSeconds
	}
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.FixTimeout <= 0 {
		c.FixTimeout = d.FixTimeout
	}
	return c
}

// EscalationFunc receives the position captured at impact time when a
// countdown expires.
type EscalationFunc func(location.Point)

// StateListener is notified with a fresh snapshot after every transition and tick.
type StateListener func(models.MonitorState)

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(m *Monitor) { m.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Monitor) { m.logger = logger.OrNop(l) }
}

// WithStateListener registers a state observer.
func WithStateListener(fn StateListener) Option {
	return func(m *Monitor) { m.listener = fn }
}

// Monitor is the accident-detection state machine. All state is owned by
// the monitor and mutated only from its own handlers.
type Monitor struct {
	cfg        Config
	sensor     motion.Sensor
	locator    location.Provider
	onAccident EscalationFunc
	clock      Clock
	logger     *zap.Logger
	listener   StateListener

	mu sync.Mutex

	// monitoring session
	monitoring bool
	closed     bool
	session    uint64
	sub        motion.Subscription
	lastImpact time.Time
	locating   bool
	fixCancel  context.CancelFunc

	// countdown
	countdownActive bool
	remaining       int
	captured        *location.Point
	timerToken      uint64
	stopTimer       func()
}

// New creates an idle monitor.
func New(cfg Config, sensor motion.Sensor, locator location.Provider, onAccident EscalationFunc, opts ...Option) *Monitor {
	cfg = cfg.withDefaults()
	m := &Monitor{
		cfg:        cfg,
		sensor:     sensor,
		locator:    locator,
		onAccident: onAccident,
		clock:      SystemClock{},
		logger:     zap.NewNop(),
		remaining:  cfg.CountdownSeconds,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start arms the monitor. On a host without a motion sensor the monitor is
// reported as monitoring but never fires.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.monitoring {
		m.mu.Unlock()
		return nil
	}
	startSession := m.session
	m.mu.Unlock()

	if !m.sensor.Available() {
		m.logger.Warn("accident detection is not available on this host")
		m.mu.Lock()
		if err := m.checkStartLocked(startSession); err != nil || m.monitoring {
			m.mu.Unlock()
			return err
		}
		m.monitoring = true
		m.session++
		m.mu.Unlock()
		m.notify()
		return nil
	}

	perm, err := m.locator.RequestPermission(ctx)
	if err != nil {
		return fmt.Errorf("failed to request location permission: %w", err)
	}
	if perm != location.PermissionGranted {
		m.logger.Error("location permission denied, monitoring not started")
		return ErrPermissionDenied
	}

	m.mu.Lock()
	if err := m.checkStartLocked(startSession); err != nil || m.monitoring {
		m.mu.Unlock()
		return err
	}
	m.session++
	session := m.session
	m.monitoring = true
	m.mu.Unlock()

	m.sensor.SetInterval(m.cfg.SampleInterval)
	sub := m.sensor.Subscribe(func(s motion.Sample) { m.handleSample(session, s) })

	m.mu.Lock()
	if m.session != session {
		// stopped while subscribing
		m.mu.Unlock()
		sub.Unsubscribe()
		return nil
	}
	m.sub = sub
	m.mu.Unlock()

	m.logger.Info("accident monitoring started",
		zap.Float64("threshold", m.cfg.ImpactThreshold),
		zap.Duration("interval", m.cfg.SampleInterval))
	m.notify()
	return nil
}

// checkStartLocked reports whether a Start that began at startSession may
// still arm the monitor. A concurrent Start that already armed it is not an
// error; callers check monitoring after a nil result.
func (m *Monitor) checkStartLocked(startSession uint64) error {
	if m.closed {
		return ErrClosed
	}
	if m.monitoring {
		return nil
	}
	if m.session != startSession {
		m.logger.Info("monitoring start aborted, stopped while awaiting permission")
		return ErrStartAborted
	}
	return nil
}

// Stop disarms the monitor from any state. A running countdown is dropped
// without escalating. Safe to call repeatedly.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.monitoring && !m.countdownActive && !m.locating {
		// invalidates a Start still waiting for permission
		m.session++
		m.mu.Unlock()
		return
	}

	m.monitoring = false
	m.session++
	sub := m.sub
	m.sub = nil
	fixCancel := m.fixCancel
	m.fixCancel = nil
	m.locating = false
	stopTimer := m.clearCountdownLocked()
	m.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	m.sensor.UnsubscribeAll()
	if stopTimer != nil {
		stopTimer()
	}
	if fixCancel != nil {
		fixCancel()
	}

	m.logger.Info("accident monitoring stopped")
	m.notify()
}

// CancelCountdown dismisses an active countdown and keeps monitoring. It is
// a no-op when no countdown is running.
func (m *Monitor) CancelCountdown() {
	m.mu.Lock()
	if !m.countdownActive {
		m.mu.Unlock()
		return
	}
	remaining := m.remaining
	stopTimer := m.clearCountdownLocked()
	m.mu.Unlock()

	if stopTimer != nil {
		stopTimer()
	}

	m.logger.Info("countdown cancelled by user", zap.Int("remaining", remaining))
	m.notify()
}

// Close tears the monitor down: the countdown is cancelled and every sensor
// subscription released. The monitor cannot be restarted afterwards.
func (m *Monitor) Close() error {
	m.Stop()

	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.sensor.UnsubscribeAll()
	return nil
}

// IsMonitoring reports whether the monitor is armed.
func (m *Monitor) IsMonitoring() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.monitoring
}

// CountdownActive reports whether an escalation countdown is running.
func (m *Monitor) CountdownActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countdownActive
}

// Countdown returns the remaining seconds of the countdown.
func (m *Monitor) Countdown() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remaining
}

// Snapshot returns the observable state.
func (m *Monitor) Snapshot() models.MonitorState {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := models.MonitorState{
		State:           m.stateLocked(),
		IsMonitoring:    m.monitoring,
		SensorAvailable: m.sensor.Available(),
		CountdownActive: m.countdownActive,
		Countdown:       m.remaining,
	}
	if m.captured != nil {
		p := *m.captured
		state.Location = &p
	}
	if !m.lastImpact.IsZero() {
		t := m.lastImpact
		state.LastImpact = &t
	}
	return state
}

func (m *Monitor) stateLocked() string {
	switch {
	case m.countdownActive:
		return models.StateCountdown
	case m.monitoring:
		return models.StateMonitoring
	default:
		return models.StateIdle
	}
}

func (m *Monitor) handleSample(session uint64, s motion.Sample) {
	magnitude := s.Magnitude()
	// NaN compares false both ways and must not count as an impact
	if !(magnitude > m.cfg.ImpactThreshold) {
		return
	}

	m.mu.Lock()
	if !m.monitoring || m.session != session {
		m.mu.Unlock()
		return
	}
	// only a plain armed monitor may start a countdown
	if m.countdownActive || m.locating {
		m.mu.Unlock()
		m.logger.Debug("impact ignored, countdown already in progress", zap.Float64("magnitude", magnitude))
		return
	}
	m.locating = true
	m.lastImpact = m.clock.Now()
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.FixTimeout)
	m.fixCancel = cancel
	m.mu.Unlock()

	m.logger.Warn("potential accident detected", zap.Float64("magnitude", magnitude))

	point, err := m.locator.CurrentPosition(ctx)
	cancel()

	m.mu.Lock()
	if !m.monitoring || m.session != session {
		m.mu.Unlock()
		return
	}
	m.locating = false
	m.fixCancel = nil
	if err != nil {
		m.mu.Unlock()
		m.logger.Error("failed to capture location, impact dropped", zap.Error(err))
		m.notify()
		return
	}
	m.startCountdownLocked(point)
	m.mu.Unlock()

	m.logger.Warn("accident countdown started",
		zap.Int("seconds", m.cfg.CountdownSeconds),
		zap.Float64("latitude", point.Latitude),
		zap.Float64("longitude", point.Longitude))
	m.notify()
}

func (m *Monitor) startCountdownLocked(point location.Point) {
	if m.stopTimer != nil {
		m.stopTimer()
		m.stopTimer = nil
	}

	m.timerToken++
	token := m.timerToken
	m.captured = &point
	m.remaining = m.cfg.CountdownSeconds
	m.countdownActive = true
	m.stopTimer = m.clock.Every(m.cfg.TickInterval, func() { m.tick(token) })
}

func (m *Monitor) tick(token uint64) {
	m.mu.Lock()
	if !m.countdownActive || token != m.timerToken {
		m.mu.Unlock()
		return
	}

	m.remaining--
	if m.remaining > 0 {
		m.mu.Unlock()
		m.notify()
		return
	}

	captured := *m.captured
	stopTimer := m.clearCountdownLocked()
	m.mu.Unlock()

	if stopTimer != nil {
		stopTimer()
	}

	m.logger.Error("no response before countdown expiry, escalating",
		zap.Float64("latitude", captured.Latitude),
		zap.Float64("longitude", captured.Longitude))
	if m.onAccident != nil {
		m.onAccident(captured)
	}
	m.notify()
}

// clearCountdownLocked resets the countdown and invalidates the current
// timer token. The returned stop function must be called without the lock.
func (m *Monitor) clearCountdownLocked() func() {
	stopTimer := m.stopTimer
	m.stopTimer = nil
	m.timerToken++
	m.countdownActive = false
	m.remaining = m.cfg.CountdownSeconds
	m.captured = nil
	return stopTimer
}

func (m *Monitor) notify() {
	if m.listener == nil {
		return
	}
	m.listener(m.Snapshot())
}
