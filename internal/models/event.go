package models

import (
	"math"
	"time"
)

// MotionSchema is the schema tag carried by every motion event envelope.
const MotionSchema = "sentinel.motion.v1"

// MotionEvent represents one accelerometer reading wrapped in an envelope
type MotionEvent struct {
	SchemaVersion string  `json:"schema_version"`
	EventID       string  `json:"event_id"`
	Timestamp     string  `json:"ts"`
	Source        Source  `json:"source"`
	Session       Session `json:"session"`
	Accel         Vector3 `json:"accel"`
	Meta          Meta    `json:"meta"`
}

// Vector3 is a 3-axis acceleration in m/s²
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Magnitude returns the Euclidean norm of the vector
func (v Vector3) Magnitude() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Source represents the origin of the sensor data
type Source struct {
	Type string `json:"type"` // "phone" or "wearable"
	ID   string `json:"id"`
}

// Session contains metadata about the generating run
type Session struct {
	RunID    string `json:"run_id"`
	Scenario string `json:"scenario"`
	Seed     int64  `json:"seed"`
}

// Meta contains additional event metadata
type Meta struct {
	Sequence int64 `json:"sequence"`
}

// NewMotionEvent creates a new MotionEvent stamped with at
func NewMotionEvent(eventID string, source Source, session Session, accel Vector3, sequence int64, at time.Time) MotionEvent {
	return MotionEvent{
		SchemaVersion: MotionSchema,
		EventID:       eventID,
		Timestamp:     at.UTC().Format(time.RFC3339Nano),
		Source:        source,
		Session:       session,
		Accel:         accel,
		Meta: Meta{
			Sequence: sequence,
		},
	}
}

// Time parses the event timestamp
func (e MotionEvent) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, e.Timestamp)
}
