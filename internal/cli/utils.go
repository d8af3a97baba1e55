package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/safecircle/sentinel/internal/location"
	"github.com/safecircle/sentinel/internal/scenario"
)

// getScenarioDir returns the directory with user scenarios, or "" when
// there is none
func getScenarioDir() string {
	if globalOpts.ScenarioDir != "" {
		return globalOpts.ScenarioDir
	}

	// Try current directory first
	if _, err := os.Stat("scenarios"); err == nil {
		return "scenarios"
	}

	// Try relative to executable
	exe, err := os.Executable()
	if err == nil {
		dir := filepath.Join(filepath.Dir(exe), "scenarios")
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
	}

	return ""
}

// loadScenarios returns the built-in scenarios plus any found on disk.
// Scenarios on disk replace built-ins of the same name.
func loadScenarios() (*scenario.Registry, error) {
	registry, err := scenario.NewBuiltinRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to load built-in scenarios: %w", err)
	}
	if dir := getScenarioDir(); dir != "" {
		if err := registry.LoadFromDir(dir); err != nil {
			return nil, fmt.Errorf("failed to load scenarios from %s: %w", dir, err)
		}
	}
	return registry, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(cmd.ErrOrStderr(), "\n⏹  Received interrupt signal, shutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

// parseRoute parses "lat,lng;lat,lng;..." into points
func parseRoute(s string) ([]location.Point, error) {
	var points []location.Point
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		p, err := parsePoint(part)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("route %q has no points", s)
	}
	return points, nil
}

func parsePoint(s string) (location.Point, error) {
	lat, lng, ok := strings.Cut(s, ",")
	if !ok {
		return location.Point{}, fmt.Errorf("invalid point %q (expected lat,lng)", s)
	}
	latitude, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return location.Point{}, fmt.Errorf("invalid latitude in %q: %w", s, err)
	}
	longitude, err := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if err != nil {
		return location.Point{}, fmt.Errorf("invalid longitude in %q: %w", s, err)
	}
	if latitude < -90 || latitude > 90 || longitude < -180 || longitude > 180 {
		return location.Point{}, fmt.Errorf("point %q is out of range", s)
	}
	return location.Point{Latitude: latitude, Longitude: longitude}, nil
}
