// Package recorder persists motion streams and alerts as NDJSON and plays
// recordings back as a motion source.
package recorder

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Recorder writes events to an NDJSON file
type Recorder struct {
	file    *os.File
	writer  *bufio.Writer
	entries int64
	closed  bool
	mu      sync.Mutex
}

// NewRecorder creates a new recorder, truncating filename
func NewRecorder(filename string) (*Recorder, error) {
	return open(filename, os.O_CREATE|os.O_WRONLY|os.O_TRUNC)
}

// NewAppendRecorder opens filename for appending, creating it if needed
func NewAppendRecorder(filename string) (*Recorder, error) {
	return open(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND)
}

func open(filename string, flag int) (*Recorder, error) {
	file, err := os.OpenFile(filename, flag, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording file: %w", err)
	}

	return &Recorder{
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

// Record writes a raw byte payload to the file followed by a newline
func (r *Recorder) Record(data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("recorder is closed")
	}
	if _, err := r.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	if _, err := r.writer.WriteString("\n"); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	r.entries++
	return nil
}

// RecordJSON marshals v and writes it as one line
func (r *Recorder) RecordJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}
	return r.Record(data)
}

// RecordFromChannel reads data from a channel and records it
func (r *Recorder) RecordFromChannel(ctx context.Context, dataStream <-chan []byte, onEntry func()) error {
	for {
		select {
		case <-ctx.Done():
			return r.Close()
		case data, ok := <-dataStream:
			if !ok {
				return r.Close() // Channel closed
			}
			if err := r.Record(data); err != nil {
				return err
			}
			if onEntry != nil {
				onEntry()
			}
		}
	}
}

// Entries returns the number of lines written
func (r *Recorder) Entries() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries
}

// Flush flushes the buffer to disk
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writer.Flush()
}

// Close flushes and closes the recorder. Further calls are no-ops.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if err := r.writer.Flush(); err != nil {
		r.file.Close()
		return fmt.Errorf("failed to flush buffer: %w", err)
	}

	if err := r.file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	return nil
}
