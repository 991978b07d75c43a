package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Action identifies the kind of change an event records.
type Action string

const (
	ActionNodeAdded         Action = "node_added"
	ActionNodeUpdated       Action = "node_updated"
	ActionNodeRemoved       Action = "node_removed"
	ActionStatusChanged     Action = "status_changed"
	ActionDependencyAdded   Action = "dependency_added"
	ActionDependencyRemoved Action = "dependency_removed"
)

// Event is a single immutable audit record. Every mutation of the graph
// returns one; the engine itself keeps no event history.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	NodeID    string    `json:"nodeId"`
	Detail    string    `json:"detail,omitempty"`
}

// NewEvent creates an event with a fresh ID and the current timestamp.
func NewEvent(action Action, nodeID, detail string) Event {
	return Event{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Action:    action,
		NodeID:    nodeID,
		Detail:    detail,
	}
}

// Sink receives events after a session's mutations. Implementations:
// MemorySink (tests), FileLogger (append-only JSONL), PGStore (Postgres).
type Sink interface {
	Record(ctx context.Context, event Event) error
}

// RecordAll sends a batch of events to a sink, stopping at the first failure.
func RecordAll(ctx context.Context, sink Sink, events []Event) error {
	for _, e := range events {
		if err := sink.Record(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// MemorySink collects events in memory.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Record appends the event.
func (s *MemorySink) Record(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of everything recorded so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Count returns the number of recorded events.
func (s *MemorySink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}
