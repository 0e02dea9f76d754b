package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteSnapshotStore implements SnapshotStore using SQLite for persistence.
type SQLiteSnapshotStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

// NewSQLiteSnapshotStore opens (creating if needed) the database at dbPath.
func NewSQLiteSnapshotStore(dbPath string) (*SQLiteSnapshotStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteSnapshotStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLiteSnapshotStore) Path() string {
	return s.dbPath
}

// CreateRun records a new run.
func (s *SQLiteSnapshotStore) CreateRun(ctx context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, scenario, seed, grid_x, grid_y, grid_z, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Scenario, int64(run.Seed),
		run.Grid.X, run.Grid.Y, run.Grid.Z,
		formatTime(run.StartedAt))
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}
	return nil
}

// SaveSnapshot records a snapshot and its neurons in one transaction.
func (s *SQLiteSnapshotStore) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, snap.RunID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("saving snapshot %d: %w: %s", snap.Step, ErrRunNotFound, snap.RunID)
	}
	if err != nil {
		return fmt.Errorf("failed to look up run %s: %w", snap.RunID, err)
	}

	// Replace any earlier snapshot of the same step.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM snapshot_neurons WHERE run_id = ? AND step = ?`, snap.RunID, snap.Step); err != nil {
		return fmt.Errorf("failed to clear snapshot neurons: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM snapshots WHERE run_id = ? AND step = ?`, snap.RunID, snap.Step); err != nil {
		return fmt.Errorf("failed to clear snapshot: %w", err)
	}

	c := snap.Counters
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO snapshots (run_id, step, label, taken_at, fired, dropped, born, died)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.RunID, snap.Step, snap.Label, formatTime(snap.TakenAt),
		c.Fired, c.Dropped, c.Born, c.Died); err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO snapshot_neurons (run_id, step, seq, neuron_id, kind, x, y, z,
			importance, age, can_fire, candidates, recipients, blacklisted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare neuron insert: %w", err)
	}
	defer stmt.Close()

	for i, n := range snap.Neurons {
		if _, err := stmt.ExecContext(ctx,
			snap.RunID, snap.Step, i, n.ID, n.Kind,
			n.Position.X, n.Position.Y, n.Position.Z,
			n.Importance, n.Age, boolToInt(n.CanFire),
			n.Candidates, n.Recipients, n.Blacklisted); err != nil {
			return fmt.Errorf("failed to insert neuron %s: %w", n.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// ListRuns returns all runs ordered by start time.
func (s *SQLiteSnapshotStore) ListRuns(ctx context.Context) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.scenario, r.seed, r.grid_x, r.grid_y, r.grid_z, r.started_at,
			(SELECT COUNT(*) FROM snapshots sn WHERE sn.run_id = r.id)
		FROM runs r
		ORDER BY r.started_at, r.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var seed int64
		var startedAt string
		if err := rows.Scan(&run.ID, &run.Scenario, &seed,
			&run.Grid.X, &run.Grid.Y, &run.Grid.Z, &startedAt, &run.Snapshots); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Seed = uint64(seed)
		if run.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, fmt.Errorf("run %s: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}
	return runs, nil
}

// GetSnapshots returns the snapshots of a run ordered by step.
func (s *SQLiteSnapshotStore) GetSnapshots(ctx context.Context, runID string) ([]Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, runID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up run %s: %w", runID, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT step, label, taken_at, fired, dropped, born, died
		FROM snapshots WHERE run_id = ? ORDER BY step`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}

	var snaps []Snapshot
	for rows.Next() {
		snap := Snapshot{RunID: runID}
		var takenAt string
		c := &snap.Counters
		if err := rows.Scan(&snap.Step, &snap.Label, &takenAt,
			&c.Fired, &c.Dropped, &c.Born, &c.Died); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		if snap.TakenAt, err = parseTime(takenAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("snapshot %d: %w", snap.Step, err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to read snapshots: %w", err)
	}
	rows.Close()

	// With a single connection the neuron queries must run after the
	// snapshot rows are closed.
	for i := range snaps {
		neurons, err := s.getNeurons(ctx, runID, snaps[i].Step)
		if err != nil {
			return nil, err
		}
		snaps[i].Neurons = neurons
	}
	return snaps, nil
}

func (s *SQLiteSnapshotStore) getNeurons(ctx context.Context, runID string, step int) ([]NeuronRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT neuron_id, kind, x, y, z, importance, age, can_fire,
			candidates, recipients, blacklisted
		FROM snapshot_neurons WHERE run_id = ? AND step = ? ORDER BY seq`, runID, step)
	if err != nil {
		return nil, fmt.Errorf("failed to query neurons for step %d: %w", step, err)
	}
	defer rows.Close()

	neurons := []NeuronRecord{}
	for rows.Next() {
		var n NeuronRecord
		var canFire int
		if err := rows.Scan(&n.ID, &n.Kind, &n.Position.X, &n.Position.Y, &n.Position.Z,
			&n.Importance, &n.Age, &canFire, &n.Candidates, &n.Recipients, &n.Blacklisted); err != nil {
			return nil, fmt.Errorf("failed to scan neuron: %w", err)
		}
		n.CanFire = canFire != 0
		neurons = append(neurons, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read neurons: %w", err)
	}
	return neurons, nil
}

// Close closes the database connection.
func (s *SQLiteSnapshotStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
