// Package motion adapts accelerometer streams into the subscription contract
// the accident monitor consumes.
package motion

import (
	"math"
	"time"
)

// DefaultInterval is the sampling cadence used when none is configured.
const DefaultInterval = 100 * time.Millisecond

// Sample is a single 3-axis acceleration reading in m/s².
type Sample struct {
	X, Y, Z float64
	At      time.Time
}

// Magnitude returns sqrt(x²+y²+z²) for the sample.
func (s Sample) Magnitude() float64 {
	return Magnitude(s.X, s.Y, s.Z)
}

// Magnitude is the Euclidean norm of a 3-axis reading.
func Magnitude(x, y, z float64) float64 {
	return math.Sqrt(x*x + y*y + z*z)
}

// Sensor is the motion capability a host exposes.
type Sensor interface {
	// SetInterval configures the delivery cadence. It applies to the next
	// time the underlying stream is started.
	SetInterval(d time.Duration)
	// Subscribe registers a handler for every delivered sample.
	Subscribe(handler func(Sample)) Subscription
	// UnsubscribeAll releases every subscription. Safe to call repeatedly.
	UnsubscribeAll()
	// Available reports whether the host has a motion sensor at all.
	Available() bool
}

// Subscription is a handle to a single registered handler.
type Subscription interface {
	Unsubscribe()
}

type noopSubscription struct{}

func (noopSubscription) Unsubscribe() {}
