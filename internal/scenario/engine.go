package scenario

import (
	"sync"
	"time"
)

// Engine tracks progression through a scenario on a virtual timeline that
// advances by the sampling interval, so a seeded run is reproducible.
type Engine struct {
	scenario *Scenario
	elapsed  time.Duration
	mu       sync.RWMutex
}

// NewEngine creates a new scenario engine
func NewEngine(scenario *Scenario) *Engine {
	return &Engine{scenario: scenario}
}

// GetElapsed returns the scenario time consumed so far
func (e *Engine) GetElapsed() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.elapsed
}

// Advance moves the timeline forward by d
func (e *Engine) Advance(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.elapsed += d
}

// GetCurrentPhase returns the current phase based on elapsed time
func (e *Engine) GetCurrentPhase() *Phase {
	return e.scenario.PhaseAt(e.GetElapsed())
}

// GetSignalConfig returns the effective signal configuration at current time
func (e *Engine) GetSignalConfig(signalName string) *SignalConfig {
	return e.scenario.GetEffectiveConfig(signalName, e.GetElapsed())
}

// IsComplete returns true if the scenario has finished
func (e *Engine) IsComplete() bool {
	duration, unlimited := ParseDuration(e.scenario.Duration)
	if unlimited {
		return false
	}
	return e.GetElapsed() >= duration
}

// GetScenario returns the underlying scenario
func (e *Engine) GetScenario() *Scenario {
	return e.scenario
}

// Reset rewinds the scenario to the beginning
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.elapsed = 0
}
