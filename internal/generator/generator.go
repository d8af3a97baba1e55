// Package generator synthesizes accelerometer streams from motion scenarios.
package generator

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/safecircle/sentinel/internal/models"
	"github.com/safecircle/sentinel/internal/motion"
	"github.com/safecircle/sentinel/internal/scenario"
)

// Generator drives a scenario engine and emits one sample per interval
type Generator struct {
	engine   *scenario.Engine
	rng      *rand.Rand
	seed     int64
	runID    string
	source   models.Source
	start    time.Time
	sequence int64
	onSample func(models.MotionEvent)
	mu       sync.Mutex
}

// Config holds generator configuration
type Config struct {
	Seed       int64
	SourceType string
	SourceID   string
	// Start stamps the first sample; zero means the time streaming begins.
	Start time.Time
	// OnSample, when set, receives the envelope of every emitted sample.
	OnSample func(models.MotionEvent)
}

// NewGenerator creates a new motion generator
func NewGenerator(engine *scenario.Engine, config Config) *Generator {
	if config.SourceType == "" {
		config.SourceType = "phone"
	}
	if config.SourceID == "" {
		config.SourceID = "sim-" + uuid.NewString()[:8]
	}

	return &Generator{
		engine:   engine,
		rng:      rand.New(rand.NewSource(config.Seed)),
		seed:     config.Seed,
		runID:    uuid.New().String(),
		source:   models.Source{Type: config.SourceType, ID: config.SourceID},
		start:    config.Start,
		onSample: config.OnSample,
	}
}

// Next produces the sample for the current scenario position and advances
// the timeline by interval. The second result is false once the scenario
// is complete.
func (g *Generator) Next(interval time.Duration) (motion.Sample, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.engine.IsComplete() {
		return motion.Sample{}, false
	}
	if g.start.IsZero() {
		g.start = time.Now()
	}

	elapsed := g.engine.GetElapsed()
	sample := motion.Sample{
		X:  generateAxis(g.rng, scenario.AxisX, g.engine.GetSignalConfig(scenario.AxisX)),
		Y:  generateAxis(g.rng, scenario.AxisY, g.engine.GetSignalConfig(scenario.AxisY)),
		Z:  generateAxis(g.rng, scenario.AxisZ, g.engine.GetSignalConfig(scenario.AxisZ)),
		At: g.start.Add(elapsed),
	}
	g.engine.Advance(interval)

	if g.onSample != nil {
		g.onSample(g.eventLocked(sample))
	}
	return sample, true
}

// Stream implements motion.Source, pacing samples on a wall-clock ticker.
// It returns nil when the scenario completes.
func (g *Generator) Stream(ctx context.Context, interval time.Duration, out chan<- motion.Sample) error {
	if interval <= 0 {
		interval = motion.DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			sample, ok := g.Next(interval)
			if !ok {
				return nil
			}
			select {
			case out <- sample:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Event wraps a sample in the motion envelope used for recordings
func (g *Generator) Event(sample motion.Sample) models.MotionEvent {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.eventLocked(sample)
}

func (g *Generator) eventLocked(sample motion.Sample) models.MotionEvent {
	g.sequence++

	session := models.Session{
		RunID:    g.runID,
		Scenario: g.engine.GetScenario().Name,
		Seed:     g.seed,
	}

	return models.NewMotionEvent(
		uuid.New().String(),
		g.source,
		session,
		models.Vector3{X: sample.X, Y: sample.Y, Z: sample.Z},
		g.sequence,
		sample.At,
	)
}

// GetRunID returns the current run ID
func (g *Generator) GetRunID() string {
	return g.runID
}
