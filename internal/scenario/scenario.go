package scenario

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Axis signal names
const (
	AxisX = "accel.x"
	AxisY = "accel.y"
	AxisZ = "accel.z"
)

// Axes lists the signals a scenario may configure, in vector order
var Axes = []string{AxisX, AxisY, AxisZ}

// Scenario defines a motion script made of phases applied over per-axis baselines
type Scenario struct {
	Name        string                   `yaml:"name"`
	Description string                   `yaml:"description"`
	Duration    string                   `yaml:"duration"` // e.g., "2m", "unlimited"
	DefaultRate string                   `yaml:"default_rate"`
	Signals     map[string]*SignalConfig `yaml:"signals"`
	Phases      []Phase                  `yaml:"phases"`
}

// Phase represents a time-bounded stage of a scenario with specific overrides
type Phase struct {
	Name      string                   `yaml:"name"`
	Duration  string                   `yaml:"duration"`
	Overrides map[string]*SignalConfig `yaml:"overrides,omitempty"`
}

// SignalConfig defines one axis in m/s². In a phase override only the
// fields that are set replace the base config.
type SignalConfig struct {
	Baseline *float64 `yaml:"baseline,omitempty"`
	Noise    *float64 `yaml:"noise,omitempty"`

	// Override modifiers
	Add      float64  `yaml:"add,omitempty"`
	Multiply float64  `yaml:"multiply,omitempty"`
	Value    *float64 `yaml:"value,omitempty"` // pins the axis, noise is not applied
}

// BaselineOr returns the baseline or def when unset
func (c *SignalConfig) BaselineOr(def float64) float64 {
	if c == nil || c.Baseline == nil {
		return def
	}
	return *c.Baseline
}

// NoiseOr returns the noise standard deviation or def when unset
func (c *SignalConfig) NoiseOr(def float64) float64 {
	if c == nil || c.Noise == nil {
		return def
	}
	return *c.Noise
}

// ParseDuration parses duration strings like "8m", "30s", "unlimited"
func ParseDuration(s string) (time.Duration, bool) {
	if s == "unlimited" || s == "" {
		return 0, true // 0 means unlimited
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, false
	}
	return d, false
}

// ParseRate converts a rate like "10hz" into the interval between samples
func ParseRate(rate string) (time.Duration, error) {
	s := strings.ToLower(strings.TrimSpace(rate))
	if !strings.HasSuffix(s, "hz") {
		return 0, fmt.Errorf("invalid rate %q: must end with hz", rate)
	}
	hz, err := strconv.ParseFloat(strings.TrimSuffix(s, "hz"), 64)
	if err != nil || hz <= 0 {
		return 0, fmt.Errorf("invalid rate %q", rate)
	}
	return time.Duration(float64(time.Second) / hz), nil
}

// Validate checks that durations, rates and signal names are usable
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario name is required")
	}
	if err := validDuration(s.Duration); err != nil {
		return fmt.Errorf("scenario %s: duration: %w", s.Name, err)
	}
	if s.DefaultRate != "" {
		if _, err := ParseRate(s.DefaultRate); err != nil {
			return fmt.Errorf("scenario %s: %w", s.Name, err)
		}
	}
	for name := range s.Signals {
		if !isAxis(name) {
			return fmt.Errorf("scenario %s: unknown signal %q", s.Name, name)
		}
	}
	for i, p := range s.Phases {
		if err := validDuration(p.Duration); err != nil {
			return fmt.Errorf("scenario %s: phase %d (%s): %w", s.Name, i, p.Name, err)
		}
		for name := range p.Overrides {
			if !isAxis(name) {
				return fmt.Errorf("scenario %s: phase %s: unknown signal %q", s.Name, p.Name, name)
			}
		}
	}
	return nil
}

func validDuration(s string) error {
	if s == "" || s == "unlimited" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	if d <= 0 {
		return fmt.Errorf("must be positive, got %s", s)
	}
	return nil
}

func isAxis(name string) bool {
	for _, a := range Axes {
		if a == name {
			return true
		}
	}
	return false
}

// GetEffectiveConfig returns the signal config for a given signal name at a specific time
func (s *Scenario) GetEffectiveConfig(signalName string, elapsed time.Duration) *SignalConfig {
	baseConfig := s.Signals[signalName]
	if baseConfig == nil {
		baseConfig = &SignalConfig{}
	}

	currentPhase := s.PhaseAt(elapsed)
	if currentPhase == nil {
		return baseConfig
	}

	override, ok := currentPhase.Overrides[signalName]
	if !ok || override == nil {
		return baseConfig
	}

	merged := *baseConfig
	if override.Add != 0 {
		merged.Add = override.Add
	}
	if override.Multiply != 0 {
		merged.Multiply = override.Multiply
	}
	if override.Value != nil {
		merged.Value = override.Value
	}
	if override.Baseline != nil {
		merged.Baseline = override.Baseline
	}
	if override.Noise != nil {
		merged.Noise = override.Noise
	}
	return &merged
}

// PhaseAt returns the phase active at elapsed, or nil for a scenario without phases
func (s *Scenario) PhaseAt(elapsed time.Duration) *Phase {
	if len(s.Phases) == 0 {
		return nil
	}

	var currentTime time.Duration
	for i := range s.Phases {
		phaseDuration, unlimited := ParseDuration(s.Phases[i].Duration)
		if unlimited {
			return &s.Phases[i]
		}

		if elapsed < currentTime+phaseDuration {
			return &s.Phases[i]
		}
		currentTime += phaseDuration
	}

	// Return last phase if we've exceeded total duration
	return &s.Phases[len(s.Phases)-1]
}
