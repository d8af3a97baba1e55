package generator

import (
	"math/rand"

	"github.com/safecircle/sentinel/internal/scenario"
)

// Accelerometer range of a typical phone sensor (±16 g)
const maxAccel = 16 * 9.80665

// axisDefaults are the resting baseline and noise per axis when a scenario
// leaves them unset: gravity on Z with light sensor jitter.
var axisDefaults = map[string]struct{ baseline, noise float64 }{
	scenario.AxisX: {0, 0.05},
	scenario.AxisY: {0, 0.05},
	scenario.AxisZ: {9.81, 0.05},
}

// generateAxis produces one axis reading in m/s²
func generateAxis(rng *rand.Rand, axis string, config *scenario.SignalConfig) float64 {
	def := axisDefaults[axis]

	if config != nil && config.Value != nil {
		return clamp(*config.Value, -maxAccel, maxAccel)
	}

	value := config.BaselineOr(def.baseline)
	if config != nil {
		if config.Add != 0 {
			value += config.Add
		}
		if config.Multiply != 0 {
			value *= config.Multiply
		}
	}

	value += rng.NormFloat64() * config.NoiseOr(def.noise)

	return clamp(value, -maxAccel, maxAccel)
}

func clamp(val, min, max float64) float64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
