package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
)

// InMemorySnapshotStore implements SnapshotStore for testing and for runs
// that should not outlive the process.
type InMemorySnapshotStore struct {
	mu        sync.RWMutex
	runs      map[string]Run
	snapshots map[string]map[int]Snapshot
}

// NewInMemorySnapshotStore creates a new in-memory store.
func NewInMemorySnapshotStore() *InMemorySnapshotStore {
	return &InMemorySnapshotStore{
		runs:      make(map[string]Run),
		snapshots: make(map[string]map[int]Snapshot),
	}
}

// CreateRun records a new run.
func (s *InMemorySnapshotStore) CreateRun(ctx context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}
	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("run already exists: %s", run.ID)
	}

	run.Snapshots = 0
	s.runs[run.ID] = run
	s.snapshots[run.ID] = make(map[int]Snapshot)
	return nil
}

// SaveSnapshot records a snapshot for an existing run.
func (s *InMemorySnapshotStore) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	steps, ok := s.snapshots[snap.RunID]
	if !ok {
		return fmt.Errorf("saving snapshot %d: %w: %s", snap.Step, ErrRunNotFound, snap.RunID)
	}

	snap.Neurons = slices.Clone(snap.Neurons)
	steps[snap.Step] = snap
	return nil
}

// ListRuns returns all runs ordered by start time.
func (s *InMemorySnapshotStore) ListRuns(ctx context.Context) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]Run, 0, len(s.runs))
	for id, run := range s.runs {
		run.Snapshots = len(s.snapshots[id])
		runs = append(runs, run)
	}
	slices.SortFunc(runs, func(a, b Run) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return runs, nil
}

// GetSnapshots returns the snapshots of a run ordered by step.
func (s *InMemorySnapshotStore) GetSnapshots(ctx context.Context, runID string) ([]Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	steps, ok := s.snapshots[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	out := make([]Snapshot, 0, len(steps))
	for _, snap := range steps {
		snap.Neurons = slices.Clone(snap.Neurons)
		out = append(out, snap)
	}
	slices.SortFunc(out, func(a, b Snapshot) int { return cmp.Compare(a.Step, b.Step) })
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemorySnapshotStore) Close() error {
	return nil
}
