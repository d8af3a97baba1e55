package models

import "time"

// BatchSchema is the schema tag of sample batches pushed to the ingest endpoint.
const BatchSchema = "sentinel.motion.batch.v1"

// SampleBatch is a group of accelerometer readings uploaded by a device
type SampleBatch struct {
	Schema  string        `json:"schema"`
	BatchID string        `json:"batch_id"`
	Device  BatchDevice   `json:"device"`
	Samples []BatchSample `json:"samples"`
}

// BatchDevice contains device metadata
type BatchDevice struct {
	ID       string `json:"id"`
	Platform string `json:"platform"`
}

// BatchSample is one reading inside a batch
type BatchSample struct {
	TS string  `json:"ts"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	Z  float64 `json:"z"`
}

// Validate checks if the batch is well formed
func (b *SampleBatch) Validate() error {
	if b.Schema != BatchSchema {
		return &ValidationError{Field: "schema", Message: "must be '" + BatchSchema + "'"}
	}
	if b.BatchID == "" {
		return &ValidationError{Field: "batch_id", Message: "is required"}
	}
	if b.Device.ID == "" {
		return &ValidationError{Field: "device.id", Message: "is required"}
	}
	if len(b.Samples) == 0 {
		return &ValidationError{Field: "samples", Message: "must not be empty"}
	}
	for _, s := range b.Samples {
		if _, err := time.Parse(time.RFC3339Nano, s.TS); err != nil {
			return &ValidationError{Field: "samples.ts", Message: "must be valid RFC3339 timestamp"}
		}
	}
	return nil
}

// BatchReceipt summarises an accepted batch
type BatchReceipt struct {
	BatchID     string `json:"batch_id"`
	ReceivedAt  string `json:"received_at"`
	SampleCount int    `json:"sample_count"`
	DeviceID    string `json:"device_id"`
	Duplicate   bool   `json:"duplicate,omitempty"`
}

// NewBatchReceipt creates a receipt for a batch
func NewBatchReceipt(batch *SampleBatch, duplicate bool) BatchReceipt {
	return BatchReceipt{
		BatchID:     batch.BatchID,
		ReceivedAt:  time.Now().UTC().Format(time.RFC3339),
		SampleCount: len(batch.Samples),
		DeviceID:    batch.Device.ID,
		Duplicate:   duplicate,
	}
}
