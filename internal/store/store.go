// Package store defines the SnapshotStore interface for recording the state
// of a brain over the course of a simulation run.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/nvandessel/neurogrid/internal/lattice"
)

// ErrRunNotFound is returned when a snapshot references an unknown run.
var ErrRunNotFound = errors.New("run not found")

// MemoryPath selects the in-memory backend in Open.
const MemoryPath = ":memory:"

// Run describes one execution of a scenario.
type Run struct {
	ID        string       `json:"id"`
	Scenario  string       `json:"scenario"`
	Seed      uint64       `json:"seed"`
	Grid      lattice.Size `json:"grid"`
	StartedAt time.Time    `json:"started_at"`

	// Snapshots is filled in by ListRuns.
	Snapshots int `json:"snapshots"`
}

// Counters are the propagation counters accumulated by a step.
type Counters struct {
	Fired   int `json:"fired"`
	Dropped int `json:"dropped"`
	Born    int `json:"born"`
	Died    int `json:"died"`
}

// Snapshot is the state of a brain after one scenario step.
type Snapshot struct {
	RunID    string         `json:"run_id"`
	Step     int            `json:"step"`
	Label    string         `json:"label"` // e.g. "stimulate (2,2,2)=100"
	TakenAt  time.Time      `json:"taken_at"`
	Counters Counters       `json:"counters"`
	Neurons  []NeuronRecord `json:"neurons"`
}

// NeuronRecord is the stored summary of one neuron.
type NeuronRecord struct {
	ID          string           `json:"id"`
	Kind        string           `json:"kind"` // "generic" or "primary"
	Position    lattice.Position `json:"position"`
	Importance  int              `json:"importance"`
	Age         int              `json:"age"`
	CanFire     bool             `json:"can_fire"`
	Candidates  int              `json:"candidates"`
	Recipients  int              `json:"recipients"`
	Blacklisted int              `json:"blacklisted"`
}

// SnapshotStore defines the interface for persisting runs and snapshots.
type SnapshotStore interface {
	// CreateRun records a new run. The ID must be unique.
	CreateRun(ctx context.Context, run Run) error

	// SaveSnapshot records a snapshot for an existing run. Saving the same
	// step twice replaces the earlier snapshot.
	SaveSnapshot(ctx context.Context, snap Snapshot) error

	// ListRuns returns all runs ordered by start time.
	ListRuns(ctx context.Context) ([]Run, error)

	// GetSnapshots returns the snapshots of a run ordered by step.
	GetSnapshots(ctx context.Context, runID string) ([]Snapshot, error)

	Close() error
}

// Open returns the in-memory store for MemoryPath and a SQLite store at
// path otherwise.
func Open(path string) (SnapshotStore, error) {
	if path == MemoryPath {
		return NewInMemorySnapshotStore(), nil
	}
	return NewSQLiteSnapshotStore(path)
}
