// Package runstore persists the results of simulation campaigns: one
// row per run recording the scenario that produced it, its trace-event
// tallies, and a snapshot of every node's final routing-table state.
// Runs are append-only, the way internal/usage's token-accounting
// records are.
package runstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunRecord describes one completed simulation run.
type RunRecord struct {
	ID           string
	CampaignID   string
	ScenarioName string
	StartedAt    time.Time
	FinishedAt   time.Time
	NodeCount    int
	EventCount   uint64
}

// RoutingSnapshotRow is one routing-table entry captured at the end of
// a run, for one node.
type RoutingSnapshotRow struct {
	NodeID      string
	Destination string
	NextHop     string
	Status      string
	ManyToOne   bool
}

// EventTally is the number of trace events of one kind seen during a
// run.
type EventTally struct {
	Kind  string
	Count int
}

// Store is an append-only SQLite store for campaign run results. All
// public methods are safe for concurrent use (SQLite serializes
// writes).
type Store struct {
	db *sql.DB
}

// NewStore creates a runstore backed by an already-open database
// handle. Production callers open db with the mattn/go-sqlite3
// driver; tests open it with modernc.org/sqlite against ":memory:" so
// the package's tests don't require cgo.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate runstore schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id            TEXT PRIMARY KEY,
		campaign_id   TEXT NOT NULL,
		scenario_name TEXT NOT NULL,
		started_at    TEXT NOT NULL,
		finished_at   TEXT NOT NULL,
		node_count    INTEGER NOT NULL,
		event_count   INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_campaign ON runs(campaign_id);

	CREATE TABLE IF NOT EXISTS event_tallies (
		run_id TEXT NOT NULL REFERENCES runs(id),
		kind   TEXT NOT NULL,
		count  INTEGER NOT NULL,
		PRIMARY KEY (run_id, kind)
	);

	CREATE TABLE IF NOT EXISTS routing_snapshots (
		run_id      TEXT NOT NULL REFERENCES runs(id),
		node_id     TEXT NOT NULL,
		destination TEXT NOT NULL,
		next_hop    TEXT NOT NULL,
		status      TEXT NOT NULL,
		many_to_one INTEGER NOT NULL,
		PRIMARY KEY (run_id, node_id, destination)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordRun persists one run and its tallies/snapshots in a single
// transaction. If rec.ID is empty, a UUIDv7 is generated.
func (s *Store) RecordRun(ctx context.Context, rec RunRecord, tallies []EventTally, snapshots []RoutingSnapshotRow) (string, error) {
	if rec.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return "", fmt.Errorf("generate run id: %w", err)
		}
		rec.ID = id.String()
	}
	if rec.CampaignID == "" {
		rec.CampaignID = rec.ID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin run transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, campaign_id, scenario_name, started_at, finished_at, node_count, event_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CampaignID, rec.ScenarioName,
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.FinishedAt.UTC().Format(time.RFC3339Nano),
		rec.NodeCount, rec.EventCount,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for _, t := range tallies {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO event_tallies (run_id, kind, count) VALUES (?, ?, ?)`,
			rec.ID, t.Kind, t.Count,
		); err != nil {
			return "", fmt.Errorf("insert event tally %q: %w", t.Kind, err)
		}
	}

	for _, snap := range snapshots {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO routing_snapshots (run_id, node_id, destination, next_hop, status, many_to_one)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			rec.ID, snap.NodeID, snap.Destination, snap.NextHop, snap.Status, snap.ManyToOne,
		); err != nil {
			return "", fmt.Errorf("insert routing snapshot for %q: %w", snap.NodeID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run: %w", err)
	}
	return rec.ID, nil
}

// GetRun returns one run's metadata by id.
func (s *Store) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, campaign_id, scenario_name, started_at, finished_at, node_count, event_count
		 FROM runs WHERE id = ?`, runID)

	var rec RunRecord
	var started, finished string
	if err := row.Scan(&rec.ID, &rec.CampaignID, &rec.ScenarioName, &started, &finished, &rec.NodeCount, &rec.EventCount); err != nil {
		return nil, fmt.Errorf("query run %q: %w", runID, err)
	}
	rec.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	rec.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
	return &rec, nil
}

// ListRunsForCampaign returns every run recorded under campaignID,
// most recent first.
func (s *Store) ListRunsForCampaign(ctx context.Context, campaignID string) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, campaign_id, scenario_name, started_at, finished_at, node_count, event_count
		 FROM runs WHERE campaign_id = ? ORDER BY started_at DESC`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("query campaign %q: %w", campaignID, err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		var started, finished string
		if err := rows.Scan(&rec.ID, &rec.CampaignID, &rec.ScenarioName, &started, &finished, &rec.NodeCount, &rec.EventCount); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		rec.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// EventTallies returns every trace-event tally recorded for runID.
func (s *Store) EventTallies(ctx context.Context, runID string) ([]EventTally, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, count FROM event_tallies WHERE run_id = ? ORDER BY count DESC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query event tallies for %q: %w", runID, err)
	}
	defer rows.Close()

	var out []EventTally
	for rows.Next() {
		var t EventTally
		if err := rows.Scan(&t.Kind, &t.Count); err != nil {
			return nil, fmt.Errorf("scan event tally: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// RoutingSnapshot returns every routing-table row captured for runID,
// ordered by node then destination.
func (s *Store) RoutingSnapshot(ctx context.Context, runID string) ([]RoutingSnapshotRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT node_id, destination, next_hop, status, many_to_one
		 FROM routing_snapshots WHERE run_id = ? ORDER BY node_id, destination`, runID)
	if err != nil {
		return nil, fmt.Errorf("query routing snapshot for %q: %w", runID, err)
	}
	defer rows.Close()

	var out []RoutingSnapshotRow
	for rows.Next() {
		var row RoutingSnapshotRow
		if err := rows.Scan(&row.NodeID, &row.Destination, &row.NextHop, &row.Status, &row.ManyToOne); err != nil {
			return nil, fmt.Errorf("scan routing snapshot row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
