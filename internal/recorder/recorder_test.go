package recorder

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safecircle/sentinel/internal/models"
	"github.com/safecircle/sentinel/internal/motion"
)

func writeRecording(t *testing.T, step time.Duration, accels ...models.Vector3) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.ndjson")
	rec, err := NewRecorder(path)
	require.NoError(t, err)

	start := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	src := models.Source{Type: "phone", ID: "p1"}
	session := models.Session{RunID: "run-1", Scenario: "crash", Seed: 42}
	for i, a := range accels {
		ev := models.NewMotionEvent("evt", src, session, a, int64(i+1), start.Add(time.Duration(i)*step))
		require.NoError(t, rec.RecordJSON(ev))
	}
	// a non-motion line in the middle of the file
	require.NoError(t, rec.RecordJSON(models.AccidentAlert{Schema: models.AlertSchema, AlertID: "a1"}))
	assert.Equal(t, int64(len(accels)+1), rec.Entries())
	require.NoError(t, rec.Close())
	require.NoError(t, rec.Close())
	return path
}

func TestRecorder_WritesNDJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ndjson")
	rec, err := NewRecorder(path)
	require.NoError(t, err)

	require.NoError(t, rec.Record([]byte(`{"a":1}`)))
	require.NoError(t, rec.RecordJSON(map[string]int{"b": 2}))
	require.NoError(t, rec.Close())
	assert.Error(t, rec.Record([]byte(`{}`)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\"a\":1}\n{\"b\":2}\n", string(data))
}

func TestRecorder_Append(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.ndjson")
	for i := 0; i < 2; i++ {
		rec, err := NewAppendRecorder(path)
		require.NoError(t, err)
		require.NoError(t, rec.Record([]byte(`{}`)))
		require.NoError(t, rec.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}\n{}\n", string(data))
}

func TestRecorder_FromChannel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chan.ndjson")
	rec, err := NewRecorder(path)
	require.NoError(t, err)

	ch := make(chan []byte, 3)
	ch <- []byte(`1`)
	ch <- []byte(`2`)
	close(ch)

	count := 0
	require.NoError(t, rec.RecordFromChannel(context.Background(), ch, func() { count++ }))
	assert.Equal(t, 2, count)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n", string(data))
}

func TestReplayer_Metadata(t *testing.T) {
	path := writeRecording(t, 100*time.Millisecond,
		models.Vector3{Z: 9.81}, models.Vector3{X: 28, Y: 14, Z: 15})

	r := NewReplayer(path, 1, false)
	n, err := r.CountEvents()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	first, err := r.GetFirstEvent()
	require.NoError(t, err)
	assert.Equal(t, "crash", first.Session.Scenario)
	assert.Equal(t, 9.81, first.Accel.Z)
}

func TestReplayer_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.ndjson")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	r := NewReplayer(path, 1, true)
	_, err := r.GetFirstEvent()
	assert.Error(t, err)

	// looping over nothing terminates
	assert.NoError(t, r.Replay(context.Background(), make(chan models.MotionEvent)))
}

func TestReplayer_ReplaySpeed(t *testing.T) {
	path := writeRecording(t, 200*time.Millisecond,
		models.Vector3{Z: 9.81}, models.Vector3{Z: 9.81}, models.Vector3{Z: 9.81})

	r := NewReplayer(path, 100, false)
	out := make(chan models.MotionEvent, 10)

	start := time.Now()
	require.NoError(t, r.Replay(context.Background(), out))
	assert.Less(t, time.Since(start), 200*time.Millisecond)
	assert.Len(t, out, 3)
}

func TestReplayer_StreamAsSource(t *testing.T) {
	path := writeRecording(t, 10*time.Millisecond,
		models.Vector3{Z: 9.81}, models.Vector3{X: 28, Y: 14, Z: 15})

	out := make(chan motion.Sample, 4)
	require.NoError(t, NewReplayer(path, 10, false).Stream(context.Background(), motion.DefaultInterval, out))
	require.Len(t, out, 2)

	<-out
	impact := <-out
	assert.Greater(t, impact.Magnitude(), 20.0)
	assert.Equal(t, time.Date(2026, 1, 1, 8, 0, 0, int(10*time.Millisecond), time.UTC), impact.At)
}

func TestReplayer_StreamCancel(t *testing.T) {
	path := writeRecording(t, time.Hour, models.Vector3{Z: 9.81}, models.Vector3{Z: 9.81})

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan motion.Sample, 4)
	errCh := make(chan error, 1)
	go func() { errCh <- NewReplayer(path, 1, true).Stream(ctx, 0, out) }()

	<-out
	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("stream did not stop")
	}
}
