package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nvandessel/neurogrid/internal/lattice"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleRun(id string, started time.Time) Run {
	return Run{
		ID:        id,
		Scenario:  "demo",
		Seed:      42,
		Grid:      lattice.Size{X: 5, Y: 5, Z: 5},
		StartedAt: started,
	}
}

func sampleSnapshot(runID string, step int) Snapshot {
	return Snapshot{
		RunID:    runID,
		Step:     step,
		Label:    "stimulate (2,2,2)=100",
		TakenAt:  t0.Add(time.Duration(step) * time.Second),
		Counters: Counters{Fired: 2, Dropped: 1, Born: 1},
		Neurons: []NeuronRecord{
			{ID: "a", Kind: "generic", Position: lattice.Position{X: 2, Y: 2, Z: 2},
				Importance: 31, Age: 1, Candidates: 1, Recipients: 1},
			{ID: "p", Kind: "primary", Position: lattice.Position{X: 0, Y: 0, Z: 0}, CanFire: true},
		},
	}
}

// testSnapshotStore runs the behavior every SnapshotStore must share.
func testSnapshotStore(t *testing.T, newStore func(t *testing.T) SnapshotStore) {
	t.Run("create and list runs", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.CreateRun(ctx, sampleRun("run-b", t0.Add(time.Minute))); err != nil {
			t.Fatalf("CreateRun() error = %v", err)
		}
		if err := s.CreateRun(ctx, sampleRun("run-a", t0)); err != nil {
			t.Fatalf("CreateRun() error = %v", err)
		}

		runs, err := s.ListRuns(ctx)
		if err != nil {
			t.Fatalf("ListRuns() error = %v", err)
		}
		if len(runs) != 2 {
			t.Fatalf("ListRuns() returned %d runs, want 2", len(runs))
		}
		if runs[0].ID != "run-a" || runs[1].ID != "run-b" {
			t.Errorf("ListRuns() order = %s, %s; want run-a, run-b", runs[0].ID, runs[1].ID)
		}
		got := runs[0]
		if got.Scenario != "demo" || got.Seed != 42 || got.Grid != (lattice.Size{X: 5, Y: 5, Z: 5}) {
			t.Errorf("run fields = %+v", got)
		}
		if !got.StartedAt.Equal(t0) {
			t.Errorf("StartedAt = %v, want %v", got.StartedAt, t0)
		}
	})

	t.Run("duplicate and empty run IDs", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.CreateRun(ctx, sampleRun("run-a", t0)); err != nil {
			t.Fatalf("CreateRun() error = %v", err)
		}
		if err := s.CreateRun(ctx, sampleRun("run-a", t0)); err == nil {
			t.Error("CreateRun() should reject a duplicate ID")
		}
		if err := s.CreateRun(ctx, sampleRun("", t0)); err == nil {
			t.Error("CreateRun() should reject an empty ID")
		}
	})

	t.Run("save and get snapshots", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.CreateRun(ctx, sampleRun("run-a", t0)); err != nil {
			t.Fatalf("CreateRun() error = %v", err)
		}
		for _, step := range []int{2, 0, 1} {
			if err := s.SaveSnapshot(ctx, sampleSnapshot("run-a", step)); err != nil {
				t.Fatalf("SaveSnapshot(%d) error = %v", step, err)
			}
		}

		snaps, err := s.GetSnapshots(ctx, "run-a")
		if err != nil {
			t.Fatalf("GetSnapshots() error = %v", err)
		}
		if len(snaps) != 3 {
			t.Fatalf("GetSnapshots() returned %d, want 3", len(snaps))
		}
		for i, snap := range snaps {
			if snap.Step != i {
				t.Errorf("snapshot %d has step %d", i, snap.Step)
			}
		}

		want := sampleSnapshot("run-a", 1)
		got := snaps[1]
		if got.Label != want.Label || got.Counters != want.Counters || !got.TakenAt.Equal(want.TakenAt) {
			t.Errorf("snapshot = %+v, want %+v", got, want)
		}
		if len(got.Neurons) != 2 {
			t.Fatalf("neurons = %d, want 2", len(got.Neurons))
		}
		for i := range want.Neurons {
			if got.Neurons[i] != want.Neurons[i] {
				t.Errorf("neuron %d = %+v, want %+v", i, got.Neurons[i], want.Neurons[i])
			}
		}

		runs, err := s.ListRuns(ctx)
		if err != nil {
			t.Fatalf("ListRuns() error = %v", err)
		}
		if runs[0].Snapshots != 3 {
			t.Errorf("run snapshot count = %d, want 3", runs[0].Snapshots)
		}
	})

	t.Run("saving a step twice replaces it", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.CreateRun(ctx, sampleRun("run-a", t0)); err != nil {
			t.Fatalf("CreateRun() error = %v", err)
		}
		if err := s.SaveSnapshot(ctx, sampleSnapshot("run-a", 0)); err != nil {
			t.Fatalf("SaveSnapshot() error = %v", err)
		}
		replacement := sampleSnapshot("run-a", 0)
		replacement.Label = "rest 150ms"
		replacement.Neurons = replacement.Neurons[:1]
		if err := s.SaveSnapshot(ctx, replacement); err != nil {
			t.Fatalf("SaveSnapshot() error = %v", err)
		}

		snaps, err := s.GetSnapshots(ctx, "run-a")
		if err != nil {
			t.Fatalf("GetSnapshots() error = %v", err)
		}
		if len(snaps) != 1 || snaps[0].Label != "rest 150ms" || len(snaps[0].Neurons) != 1 {
			t.Errorf("snapshots = %+v, want the replacement only", snaps)
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.SaveSnapshot(ctx, sampleSnapshot("missing", 0)); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("SaveSnapshot() error = %v, want ErrRunNotFound", err)
		}
		if _, err := s.GetSnapshots(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("GetSnapshots() error = %v, want ErrRunNotFound", err)
		}
	})

	t.Run("empty store", func(t *testing.T) {
		s := newStore(t)
		runs, err := s.ListRuns(context.Background())
		if err != nil {
			t.Fatalf("ListRuns() error = %v", err)
		}
		if len(runs) != 0 {
			t.Errorf("ListRuns() = %v, want none", runs)
		}
	})
}

func TestOpen(t *testing.T) {
	mem, err := Open(MemoryPath)
	if err != nil {
		t.Fatalf("Open(memory) error = %v", err)
	}
	defer mem.Close()
	if _, ok := mem.(*InMemorySnapshotStore); !ok {
		t.Errorf("Open(%q) returned %T, want *InMemorySnapshotStore", MemoryPath, mem)
	}

	db, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open(file) error = %v", err)
	}
	defer db.Close()
	if _, ok := db.(*SQLiteSnapshotStore); !ok {
		t.Errorf("Open(file) returned %T, want *SQLiteSnapshotStore", db)
	}
}
