package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safecircle/sentinel/internal/alert"
	"github.com/safecircle/sentinel/internal/detector"
	"github.com/safecircle/sentinel/internal/location"
	"github.com/safecircle/sentinel/internal/models"
	"github.com/safecircle/sentinel/internal/motion"
	"github.com/safecircle/sentinel/internal/transport"
)

var home = location.Point{Latitude: 52.52, Longitude: 13.405}

type captureNotifier struct {
	mu     sync.Mutex
	alerts []models.AccidentAlert
}

func (c *captureNotifier) Name() string { return "capture" }

func (c *captureNotifier) Notify(_ context.Context, a models.AccidentAlert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, a)
	return nil
}

func (c *captureNotifier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.alerts)
}

func newService(t *testing.T, perm location.Permission, countdown int) (*Service, *motion.ChannelSource, *captureNotifier) {
	t.Helper()
	source := motion.NewChannelSource(16)
	capture := &captureNotifier{}
	svc := New(Options{
		Detector: detector.Config{
			CountdownSeconds: countdown,
			TickInterval:     10 * time.Millisecond,
		},
		Sensor:    motion.NewFeed(source, nil),
		Locator:   location.NewStatic(home, perm),
		Alert:     alert.Options{Contacts: []alert.Contact{{Name: "Ada", Phone: "+1"}}},
		Notifiers: []alert.Notifier{capture},
	})
	t.Cleanup(func() { svc.Close() })
	return svc, source, capture
}

func waitFrame(t *testing.T, svc *Service, frameType string, match func(models.Frame) bool) models.Frame {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case f := <-svc.Frames():
			if f.Type == frameType && (match == nil || match(f)) {
				return f
			}
		case <-deadline:
			t.Fatalf("no %s frame received", frameType)
		}
	}
}

func TestService_ImpactEscalatesAndPublishes(t *testing.T) {
	svc, source, capture := newService(t, "", 2)

	state, err := svc.HandleCommand(context.Background(), models.CommandStart)
	require.NoError(t, err)
	assert.Equal(t, models.StateMonitoring, state.State)

	source.Push(motion.Sample{X: 28, Y: 14, Z: 15, At: time.Now()})

	waitFrame(t, svc, models.FrameState, func(f models.Frame) bool {
		return f.Payload.(models.MonitorState).CountdownActive
	})

	frame := waitFrame(t, svc, models.FrameAlert, nil)
	a := frame.Payload.(models.AccidentAlert)
	assert.Equal(t, models.AlertKindCrash, a.Kind)
	assert.Equal(t, home, a.Location)
	assert.NotEmpty(t, a.ImpactAtUTC)
	assert.Eventually(t, func() bool { return capture.count() == 1 }, time.Second, 5*time.Millisecond)

	snap := svc.Snapshot()
	assert.False(t, snap.CountdownActive)
	assert.True(t, snap.IsMonitoring)
}

func TestService_CancelCommand(t *testing.T) {
	svc, source, capture := newService(t, "", 30)

	_, err := svc.HandleCommand(context.Background(), models.CommandStart)
	require.NoError(t, err)
	source.Push(motion.Sample{X: 30})

	require.Eventually(t, func() bool { return svc.Snapshot().CountdownActive }, time.Second, 5*time.Millisecond)

	state, err := svc.HandleCommand(context.Background(), models.CommandCancel)
	require.NoError(t, err)
	assert.False(t, state.CountdownActive)
	assert.Equal(t, 30, state.Countdown)
	assert.Equal(t, models.StateMonitoring, state.State)
	assert.Zero(t, capture.count())
}

func TestService_StopCommand(t *testing.T) {
	svc, _, _ := newService(t, "", 2)
	_, err := svc.HandleCommand(context.Background(), models.CommandStart)
	require.NoError(t, err)

	state, err := svc.HandleCommand(context.Background(), models.CommandStop)
	require.NoError(t, err)
	assert.Equal(t, models.StateIdle, state.State)
}

func TestService_StartPermissionDenied(t *testing.T) {
	svc, _, _ := newService(t, location.PermissionDenied, 2)

	state, err := svc.HandleCommand(context.Background(), models.CommandStart)
	assert.ErrorIs(t, err, detector.ErrPermissionDenied)
	assert.Equal(t, models.StateIdle, state.State)
}

func TestService_SOSCommand(t *testing.T) {
	svc, _, capture := newService(t, "", 2)

	_, err := svc.HandleCommand(context.Background(), models.CommandSOS)
	require.NoError(t, err)

	frame := waitFrame(t, svc, models.FrameAlert, nil)
	assert.Equal(t, models.AlertKindSOS, frame.Payload.(models.AccidentAlert).Kind)
	assert.Equal(t, 1, capture.count())
}

func TestService_SOSWithoutLocation(t *testing.T) {
	svc, _, _ := newService(t, location.PermissionDenied, 2)

	_, err := svc.HandleCommand(context.Background(), models.CommandSOS)
	assert.ErrorIs(t, err, alert.ErrNoLocation)
}

func TestService_UnknownCommand(t *testing.T) {
	svc, _, _ := newService(t, "", 2)

	_, err := svc.HandleCommand(context.Background(), "reboot")
	assert.ErrorIs(t, err, transport.ErrUnknownCommand)
}

func TestService_FullBufferDropsStateFrames(t *testing.T) {
	svc := New(Options{
		Sensor:      motion.NewUnavailable(nil),
		Locator:     location.NewStatic(home, ""),
		FrameBuffer: 1,
	})
	defer svc.Close()

	svc.publishState(models.MonitorState{})
	svc.publishState(models.MonitorState{})
	assert.Equal(t, int64(1), svc.DroppedFrames())
}
