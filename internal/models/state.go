package models

import (
	"time"

	"github.com/safecircle/sentinel/internal/location"
)

// Monitor phases as reported to clients
const (
	StateIdle       = "idle"
	StateMonitoring = "monitoring"
	StateCountdown  = "countdown"
)

// MonitorState is the observable state of the accident monitor
type MonitorState struct {
	State           string          `json:"state"`
	IsMonitoring    bool            `json:"is_monitoring"`
	SensorAvailable bool            `json:"sensor_available"`
	CountdownActive bool            `json:"countdown_active"`
	Countdown       int             `json:"countdown"`
	Location        *location.Point `json:"location,omitempty"`
	LastImpact      *time.Time      `json:"last_impact,omitempty"`
}

// Frame types
const (
	FrameState   = "state"
	FrameAlert   = "alert"
	FrameCommand = "command_result"
	FrameMotion  = "motion"
)

// Commands accepted from UI clients
const (
	CommandStart  = "start"
	CommandStop   = "stop"
	CommandCancel = "cancel"
	CommandSOS    = "sos"
)

// Command is a control message sent by a UI client
type Command struct {
	Command string `json:"command"`
}

// CommandResult reports the outcome of a Command back to the sender
type CommandResult struct {
	Command string        `json:"command"`
	OK      bool          `json:"ok"`
	Error   string        `json:"error,omitempty"`
	State   *MonitorState `json:"state,omitempty"`
}

// Frame wraps a payload pushed to UI clients
type Frame struct {
	Type      string `json:"type"`
	Timestamp string `json:"ts"`
	Payload   any    `json:"payload"`
}

// NewFrame creates a frame stamped with the current time
func NewFrame(frameType string, payload any) Frame {
	return Frame{
		Type:      frameType,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Payload:   payload,
	}
}
