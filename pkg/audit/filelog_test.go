package audit

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileLogger_AppendAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	ctx := context.Background()

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	written := []Event{
		NewEvent(ActionNodeAdded, "raw-data", "type=data_source deps=0"),
		NewEvent(ActionDependencyAdded, "model", "depends on raw-data"),
		NewEvent(ActionStatusChanged, "model", "pending -> stale (invalidated from raw-data)"),
	}
	for _, e := range written {
		if err := logger.Record(ctx, e); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}
	if logger.Count() != 3 {
		t.Errorf("Expected count 3, got %d", logger.Count())
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	read, err := ReadLog(path)
	if err != nil {
		t.Fatalf("ReadLog failed: %v", err)
	}
	if len(read) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(read))
	}
	for i, e := range read {
		if e.ID != written[i].ID || e.Action != written[i].Action || e.Detail != written[i].Detail {
			t.Errorf("Event %d mismatch: wrote %+v, read %+v", i, written[i], e)
		}
	}
}

// Reopening the log appends; earlier sessions' events survive.
func TestFileLogger_AppendAcrossSessions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	ctx := context.Background()

	for session := 0; session < 2; session++ {
		logger, err := NewFileLogger(path)
		if err != nil {
			t.Fatalf("NewFileLogger failed: %v", err)
		}
		if err := logger.Record(ctx, NewEvent(ActionNodeAdded, "a", "")); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
		if err := logger.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}

	events, err := ReadLog(path)
	if err != nil {
		t.Fatalf("ReadLog failed: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("Expected 2 events across sessions, got %d", len(events))
	}
}

func TestFileLogger_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "events.jsonl")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Errorf("Log directory not created: %v", err)
	}
}

func TestReadLog_MalformedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	if err := os.WriteFile(path, []byte("{\"id\":\"ok\"}\nnot json\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := ReadLog(path); err == nil {
		t.Errorf("Expected error for malformed line")
	}
}
