package recorder

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/safecircle/sentinel/internal/models"
	"github.com/safecircle/sentinel/internal/motion"
)

// Replayer reads and replays motion events from an NDJSON file. Lines that
// are not motion events (alerts, for instance) are skipped.
type Replayer struct {
	filename   string
	speed      float64
	loop       bool
	eventCount int
	firstEvent *models.MotionEvent
	loaded     bool
}

// NewReplayer creates a new replayer
func NewReplayer(filename string, speed float64, loop bool) *Replayer {
	if speed <= 0 {
		speed = 1.0
	}
	return &Replayer{
		filename: filename,
		speed:    speed,
		loop:     loop,
	}
}

// decodeMotion parses a line, reporting false for non-motion entries
func decodeMotion(line []byte) (models.MotionEvent, bool, error) {
	var event models.MotionEvent
	if err := json.Unmarshal(line, &event); err != nil {
		return event, false, err
	}
	return event, event.SchemaVersion == models.MotionSchema, nil
}

// loadMetadata reads the file once to cache count and first event
func (r *Replayer) loadMetadata() error {
	if r.loaded {
		return nil
	}

	file, err := os.Open(r.filename)
	if err != nil {
		return fmt.Errorf("failed to open recording file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	r.eventCount = 0
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		event, ok, err := decodeMotion(scanner.Bytes())
		if err != nil {
			return fmt.Errorf("failed to parse line %d: %w", lineNum, err)
		}
		if !ok {
			continue
		}
		r.eventCount++
		if r.firstEvent == nil {
			r.firstEvent = &event
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading file: %w", err)
	}

	r.loaded = true
	return nil
}

// Replay reads events and sends them to the output channel with timing
func (r *Replayer) Replay(ctx context.Context, output chan<- models.MotionEvent) error {
	for {
		sent, err := r.replayOnce(ctx, output)
		if err != nil {
			return err
		}

		if !r.loop || sent == 0 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			// Continue looping
		}
	}

	return nil
}

// Stream implements motion.Source. The recording carries its own cadence,
// so interval is ignored.
func (r *Replayer) Stream(ctx context.Context, _ time.Duration, out chan<- motion.Sample) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan models.MotionEvent)
	errCh := make(chan error, 1)
	go func() {
		defer close(events)
		errCh <- r.Replay(ctx, events)
	}()

	for event := range events {
		at, err := event.Time()
		if err != nil {
			at = time.Now()
		}
		sample := motion.Sample{X: event.Accel.X, Y: event.Accel.Y, Z: event.Accel.Z, At: at}
		select {
		case out <- sample:
		case <-ctx.Done():
			cancel()
			for range events {
			}
			return <-errCh
		}
	}
	return <-errCh
}

func (r *Replayer) replayOnce(ctx context.Context, output chan<- models.MotionEvent) (int, error) {
	file, err := os.Open(r.filename)
	if err != nil {
		return 0, fmt.Errorf("failed to open recording file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var lastTimestamp time.Time
	lineNum := 0
	sent := 0

	for scanner.Scan() {
		lineNum++

		event, ok, err := decodeMotion(scanner.Bytes())
		if err != nil {
			return sent, fmt.Errorf("failed to parse event at line %d: %w", lineNum, err)
		}
		if !ok {
			continue
		}

		timestamp, err := event.Time()
		if err != nil {
			return sent, fmt.Errorf("failed to parse timestamp at line %d: %w", lineNum, err)
		}

		if sent > 0 {
			delay := timestamp.Sub(lastTimestamp)
			if r.speed != 1.0 {
				delay = time.Duration(float64(delay) / r.speed)
			}

			if delay > 0 {
				select {
				case <-ctx.Done():
					return sent, ctx.Err()
				case <-time.After(delay):
				}
			}
		}
		lastTimestamp = timestamp

		select {
		case <-ctx.Done():
			return sent, ctx.Err()
		case output <- event:
			sent++
		}
	}

	if err := scanner.Err(); err != nil {
		return sent, fmt.Errorf("error reading file: %w", err)
	}

	return sent, nil
}

// CountEvents returns the number of motion events in the recording
func (r *Replayer) CountEvents() (int, error) {
	if err := r.loadMetadata(); err != nil {
		return 0, err
	}
	return r.eventCount, nil
}

// GetFirstEvent returns the first motion event in the recording
func (r *Replayer) GetFirstEvent() (*models.MotionEvent, error) {
	if err := r.loadMetadata(); err != nil {
		return nil, err
	}
	if r.firstEvent == nil {
		return nil, fmt.Errorf("recording file is empty")
	}
	return r.firstEvent, nil
}
