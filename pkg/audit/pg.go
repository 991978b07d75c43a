package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists events to PostgreSQL. Intended for teams that already
// aggregate audit trails centrally; the JSONL FileLogger remains the default.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore connects to PostgreSQL and ensures the events table exists.
func NewPGStore(ctx context.Context, databaseURL string) (*PGStore, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Connection pooling configuration
	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	s := &PGStore{pool: pool}

	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return s, nil
}

func (s *PGStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS lineage_events (
			id         UUID PRIMARY KEY,
			ts         TIMESTAMPTZ NOT NULL,
			action     TEXT NOT NULL,
			node_id    TEXT NOT NULL,
			detail     TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS lineage_events_node_id_idx ON lineage_events (node_id);
		CREATE INDEX IF NOT EXISTS lineage_events_ts_idx ON lineage_events (ts);
	`)
	return err
}

// Record inserts one event.
func (s *PGStore) Record(ctx context.Context, event Event) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO lineage_events (id, ts, action, node_id, detail)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO NOTHING`,
		event.ID, event.Timestamp, string(event.Action), event.NodeID, event.Detail,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// EventsForNode returns the stored history of one node, oldest first.
func (s *PGStore) EventsForNode(ctx context.Context, nodeID string, limit int) ([]Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, ts, action, node_id, detail
		 FROM lineage_events WHERE node_id = $1
		 ORDER BY ts ASC LIMIT $2`,
		nodeID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var action string
		if err := rows.Scan(&e.ID, &e.Timestamp, &action, &e.NodeID, &e.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Action = Action(action)
		events = append(events, e)
	}
	return events, rows.Err()
}

// Ping checks database connectivity.
func (s *PGStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}
