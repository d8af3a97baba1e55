package models

import (
	"time"

	"github.com/safecircle/sentinel/internal/location"
)

// AlertSchema is the schema tag of accident alert payloads.
const AlertSchema = "sentinel.alert.v1"

// Alert kinds
const (
	AlertKindCrash = "crash"
	AlertKindSOS   = "sos"
)

// AccidentAlert is the payload handed to the alerting pathway on escalation
type AccidentAlert struct {
	Schema       string         `json:"schema"`
	AlertID      string         `json:"alert_id"`
	Kind         string         `json:"kind"`
	CreatedAtUTC string         `json:"created_at_utc"`
	ImpactAtUTC  string         `json:"impact_at_utc,omitempty"`
	Location     location.Point `json:"location"`
	Address      string         `json:"address,omitempty"`
	MapURL       string         `json:"map_url"`
	Message      string         `json:"message"`
	Contacts     []AlertContact `json:"contacts,omitempty"`
}

// AlertContact is an emergency contact the alert is addressed to
type AlertContact struct {
	Name         string `json:"name"`
	Phone        string `json:"phone,omitempty"`
	Relationship string `json:"relationship,omitempty"`
	PushToken    string `json:"-"`
}

// Validate checks that the alert is complete enough to be delivered
func (a *AccidentAlert) Validate() error {
	if a.Schema != AlertSchema {
		return &ValidationError{Field: "schema", Message: "must be '" + AlertSchema + "'"}
	}
	if a.AlertID == "" {
		return &ValidationError{Field: "alert_id", Message: "is required"}
	}
	if a.Kind != AlertKindCrash && a.Kind != AlertKindSOS {
		return &ValidationError{Field: "kind", Message: "must be 'crash' or 'sos'"}
	}
	if a.CreatedAtUTC == "" {
		return &ValidationError{Field: "created_at_utc", Message: "is required"}
	}
	if _, err := time.Parse(time.RFC3339, a.CreatedAtUTC); err != nil {
		return &ValidationError{Field: "created_at_utc", Message: "must be valid RFC3339 timestamp"}
	}
	if a.Location.Latitude < -90 || a.Location.Latitude > 90 {
		return &ValidationError{Field: "location.latitude", Message: "must be within [-90, 90]"}
	}
	if a.Location.Longitude < -180 || a.Location.Longitude > 180 {
		return &ValidationError{Field: "location.longitude", Message: "must be within [-180, 180]"}
	}
	if a.Message == "" {
		return &ValidationError{Field: "message", Message: "is required"}
	}
	return nil
}

// ValidationError represents a payload validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
