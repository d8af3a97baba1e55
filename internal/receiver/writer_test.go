package receiver

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/safecircle/sentinel/internal/models"
	"github.com/safecircle/sentinel/internal/recorder"
)

func TestStdoutWriter_Formats(t *testing.T) {
	for _, format := range []string{"json", "ndjson"} {
		var buf bytes.Buffer
		batch := testBatch("out-" + format)
		if err := NewStdoutWriter(&buf, format).Write(&batch); err != nil {
			t.Fatalf("%s: failed to write: %v", format, err)
		}

		output := buf.String()
		if !strings.HasSuffix(output, "\n") {
			t.Errorf("%s: output should end with newline", format)
		}
		if format == "ndjson" && strings.Count(output, "\n") != 1 {
			t.Errorf("ndjson output should be a single line, got %q", output)
		}

		var parsed models.SampleBatch
		if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
			t.Fatalf("%s: output is not valid JSON: %v", format, err)
		}
		if parsed.BatchID != "out-"+format || len(parsed.Samples) != 2 {
			t.Errorf("%s: unexpected batch %+v", format, parsed)
		}
	}
}

func TestFileWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "batches")

	writer, err := NewFileWriter(dir, "json")
	if err != nil {
		t.Fatalf("failed to create file writer: %v", err)
	}
	defer writer.Close()

	batch := testBatch("file-789")
	if err := writer.Write(&batch); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(dir, "batch_file-789.json"))
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}

	var parsed models.SampleBatch
	if err := json.Unmarshal(content, &parsed); err != nil {
		t.Fatalf("file content is not valid JSON: %v", err)
	}
	if parsed.Device.ID != "phone-1" {
		t.Errorf("expected device phone-1, got %q", parsed.Device.ID)
	}
}

func TestFileWriter_SanitizesBatchID(t *testing.T) {
	dir := t.TempDir()
	writer, err := NewFileWriter(dir, "ndjson")
	if err != nil {
		t.Fatal(err)
	}

	batch := testBatch("../../escape")
	if err := writer.Write(&batch); err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "batch_escape.json")); err != nil {
		t.Errorf("expected file inside output dir: %v", err)
	}
}

func TestRecordWriter_ProducesReplayableRecording(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ingest.ndjson")
	rec, err := recorder.NewRecorder(path)
	if err != nil {
		t.Fatal(err)
	}

	writer := NewRecordWriter(rec)
	batch := testBatch("rec-1")
	if err := writer.Write(&batch); err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}

	replayer := recorder.NewReplayer(path, 1, false)
	count, err := replayer.CountEvents()
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("expected 2 motion events, got %d", count)
	}

	first, err := replayer.GetFirstEvent()
	if err != nil {
		t.Fatal(err)
	}
	if first.Source.ID != "phone-1" || first.Source.Type != "android" || first.Session.RunID != "rec-1" {
		t.Errorf("unexpected envelope: %+v", first)
	}
}

func TestMultiWriter(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	multi := NewMultiWriter(NewStdoutWriter(&buf1, "json"), NewStdoutWriter(&buf2, "json"))

	batch := testBatch("multi")
	if err := multi.Write(&batch); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	if buf1.Len() == 0 || buf1.String() != buf2.String() {
		t.Error("both buffers should have identical content")
	}
	if err := multi.Close(); err != nil {
		t.Error(err)
	}
}
