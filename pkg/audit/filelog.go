package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileLogger appends events to a JSONL log file, one event per line.
// The file is only ever appended to, never rewritten.
type FileLogger struct {
	path   string
	file   *os.File
	writer *bufio.Writer
	count  int64
	mu     sync.Mutex
}

// NewFileLogger opens (or creates) the log file for appending.
func NewFileLogger(path string) (*FileLogger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create event log directory: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}

	return &FileLogger{
		path:   path,
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

// Record writes one event as a JSON line and flushes it.
func (l *FileLogger) Record(_ context.Context, event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := l.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if err := l.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush event: %w", err)
	}

	l.count++
	return nil
}

// Sync forces buffered events to disk. Called once per session after the
// snapshot save succeeds, so the log never runs ahead of the graph state
// by more than one session.
func (l *FileLogger) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.writer.Flush(); err != nil {
		return err
	}
	return l.file.Sync()
}

// Count returns the number of events recorded by this logger instance.
func (l *FileLogger) Count() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Close flushes and closes the underlying file.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.writer.Flush(); err != nil {
		return err
	}
	if err := l.file.Sync(); err != nil {
		return err
	}
	return l.file.Close()
}

// ReadLog reads every event from a JSONL log file, in append order.
// Used for history inspection and tests; the engine never reads its own log.
func ReadLog(path string) ([]Event, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	defer file.Close()

	var events []Event
	scanner := bufio.NewScanner(file)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("malformed event at line %d: %w", line, err)
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}
	return events, nil
}
