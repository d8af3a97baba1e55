package receiver

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/safecircle/sentinel/internal/models"
	"github.com/safecircle/sentinel/internal/recorder"
)

// Writer archives accepted sample batches
type Writer interface {
	Write(batch *models.SampleBatch) error
	Close() error
}

// StdoutWriter writes batches to a stream
type StdoutWriter struct {
	out    io.Writer
	format string // "json" or "ndjson"
	mu     sync.Mutex
}

// NewStdoutWriter creates a new stdout writer
func NewStdoutWriter(out io.Writer, format string) *StdoutWriter {
	return &StdoutWriter{
		out:    out,
		format: format,
	}
}

func (w *StdoutWriter) Write(batch *models.SampleBatch) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := marshal(batch, w.format)
	if err != nil {
		return err
	}
	_, err = w.out.Write(append(data, '\n'))
	return err
}

func (w *StdoutWriter) Close() error {
	return nil
}

// FileWriter writes each batch to its own file in a directory
type FileWriter struct {
	dir    string
	format string
	mu     sync.Mutex
}

// NewFileWriter creates a new file writer
func NewFileWriter(dir string, format string) (*FileWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &FileWriter{
		dir:    dir,
		format: format,
	}, nil
}

func (w *FileWriter) Write(batch *models.SampleBatch) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := marshal(batch, w.format)
	if err != nil {
		return err
	}

	path := filepath.Join(w.dir, fmt.Sprintf("batch_%s.json", filepath.Base(batch.BatchID)))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func (w *FileWriter) Close() error {
	return nil
}

// RecordWriter appends every sample as a motion event, producing a
// recording the replayer can play back
type RecordWriter struct {
	recorder *recorder.Recorder
	sequence int64
	mu       sync.Mutex
}

// NewRecordWriter wraps rec; the writer owns it and closes it on Close
func NewRecordWriter(rec *recorder.Recorder) *RecordWriter {
	return &RecordWriter{recorder: rec}
}

func (w *RecordWriter) Write(batch *models.SampleBatch) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	source := models.Source{Type: batch.Device.Platform, ID: batch.Device.ID}
	if source.Type == "" {
		source.Type = "phone"
	}
	session := models.Session{RunID: batch.BatchID, Scenario: "ingest"}

	for i, s := range batch.Samples {
		at, err := time.Parse(time.RFC3339Nano, s.TS)
		if err != nil {
			return fmt.Errorf("sample %d: %w", i, err)
		}
		w.sequence++
		event := models.NewMotionEvent(
			fmt.Sprintf("%s-%d", batch.BatchID, i),
			source,
			session,
			models.Vector3{X: s.X, Y: s.Y, Z: s.Z},
			w.sequence,
			at,
		)
		if err := w.recorder.RecordJSON(event); err != nil {
			return err
		}
	}
	return w.recorder.Flush()
}

func (w *RecordWriter) Close() error {
	return w.recorder.Close()
}

// MultiWriter writes to multiple destinations
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a writer that writes to multiple destinations
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

func (w *MultiWriter) Write(batch *models.SampleBatch) error {
	for _, writer := range w.writers {
		if err := writer.Write(batch); err != nil {
			return err
		}
	}
	return nil
}

func (w *MultiWriter) Close() error {
	for _, writer := range w.writers {
		if err := writer.Close(); err != nil {
			return err
		}
	}
	return nil
}

func marshal(batch *models.SampleBatch, format string) ([]byte, error) {
	var data []byte
	var err error
	if format == "ndjson" {
		data, err = json.Marshal(batch)
	} else {
		data, err = json.MarshalIndent(batch, "", "  ")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch: %w", err)
	}
	return data, nil
}
