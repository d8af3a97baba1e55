package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safecircle/sentinel/internal/location"
	"github.com/safecircle/sentinel/internal/models"
	"github.com/safecircle/sentinel/internal/recorder"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestParseRoute(t *testing.T) {
	points, err := parseRoute("6.5244,3.3792; 52.52, 13.405;")
	require.NoError(t, err)
	assert.Equal(t, []location.Point{
		{Latitude: 6.5244, Longitude: 3.3792},
		{Latitude: 52.52, Longitude: 13.405},
	}, points)

	for _, bad := range []string{"", ";", "6.5", "a,b", "91,0", "0,181"} {
		_, err := parseRoute(bad)
		assert.Error(t, err, bad)
	}
}

func TestFormatState(t *testing.T) {
	idle := formatState(models.MonitorState{State: models.StateIdle}, 30)
	assert.Contains(t, idle, "Idle")

	inert := formatState(models.MonitorState{State: models.StateMonitoring}, 30)
	assert.Contains(t, inert, "no motion sensor")

	p := location.Point{Latitude: 1, Longitude: 2}
	countdown := formatState(models.MonitorState{
		State:     models.StateCountdown,
		Countdown: 15,
		Location:  &p,
	}, 30)
	assert.Contains(t, countdown, "15s")
	assert.Contains(t, countdown, p.String())
	assert.Equal(t, 15, strings.Count(countdown, "█"))
}

func TestRenderBar(t *testing.T) {
	assert.Equal(t, "░░░░", renderBar(-1, 4))
	assert.Equal(t, "██░░", renderBar(0.5, 4))
	assert.Equal(t, "████", renderBar(2, 4))
}

func TestListScenariosCommand(t *testing.T) {
	out := execute(t, "sim", "list-scenarios")
	for _, name := range []string{"still", "commute", "crash"} {
		assert.Contains(t, out, name)
	}
}

func TestDescribeCommand(t *testing.T) {
	out := execute(t, "sim", "describe", "crash")
	assert.Contains(t, out, "Scenario: crash")
	assert.Contains(t, out, "impact")
	assert.Contains(t, out, "nominal magnitude")

	out = execute(t, "sim", "describe", "commute")
	assert.NotContains(t, out, "nominal magnitude")
}

func TestRecordCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crash.ndjson")
	out := execute(t, "sim", "record", "--scenario", "crash", "--duration", "30s", "--seed", "42", "--out", path)
	assert.Contains(t, out, "Recording complete")
	assert.Contains(t, out, "300 samples, 3 above")

	count, err := recorder.NewReplayer(path, 1, false).CountEvents()
	require.NoError(t, err)
	assert.Equal(t, 300, count)
}

func TestVersionCommand(t *testing.T) {
	assert.Contains(t, execute(t, "version"), "Sentinel v"+Version)
}
