// Package archive exports recorded runs to portable files and imports them
// back into a snapshot store.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/nvandessel/neurogrid/internal/store"
)

// Ext is the file extension of archive files.
const Ext = ".ngrun"

// DefaultDir returns the default archive directory (~/.neurogrid/archives/).
func DefaultDir() (string, error) {
	dir, err := store.GlobalPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "archives"), nil
}

// GeneratePath names an archive for runID in dir. The timestamp prefix makes
// names sort oldest-first.
func GeneratePath(dir, runID string, now time.Time) string {
	short, _, _ := strings.Cut(runID, "-")
	return filepath.Join(dir, fmt.Sprintf("%s-%s%s", now.UTC().Format("20060102-150405"), short, Ext))
}

// Export writes runID and every one of its snapshots to path.
func Export(ctx context.Context, s store.SnapshotStore, runID, path string) (*Header, error) {
	runs, err := s.ListRuns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	i := slices.IndexFunc(runs, func(r store.Run) bool { return r.ID == runID })
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", store.ErrRunNotFound, runID)
	}

	snaps, err := s.GetSnapshots(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshots: %w", err)
	}

	return Write(path, &Archive{
		CreatedAt: time.Now().UTC(),
		Run:       runs[i],
		Snapshots: snaps,
	})
}

// ImportResult reports what Import restored.
type ImportResult struct {
	RunID     string `json:"run_id"`
	Snapshots int    `json:"snapshots"`
}

// ErrRunExists is returned by Import when the store already holds the run.
var ErrRunExists = errors.New("run already exists")

// Import restores the archived run into s. A run that is already present is
// left untouched.
func Import(ctx context.Context, s store.SnapshotStore, path string) (*ImportResult, error) {
	a, err := Read(path)
	if err != nil {
		return nil, err
	}

	runs, err := s.ListRuns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	if slices.ContainsFunc(runs, func(r store.Run) bool { return r.ID == a.Run.ID }) {
		return nil, fmt.Errorf("%w: %s", ErrRunExists, a.Run.ID)
	}

	if err := s.CreateRun(ctx, a.Run); err != nil {
		return nil, fmt.Errorf("failed to restore run: %w", err)
	}
	for _, snap := range a.Snapshots {
		snap.RunID = a.Run.ID
		if err := s.SaveSnapshot(ctx, snap); err != nil {
			return nil, fmt.Errorf("failed to restore snapshot %d: %w", snap.Step, err)
		}
	}

	return &ImportResult{RunID: a.Run.ID, Snapshots: len(a.Snapshots)}, nil
}

// Rotate keeps the keep newest archives in dir and deletes the rest. It
// returns the deleted paths.
func Rotate(dir string, keep int) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read archive directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == Ext {
			names = append(names, e.Name())
		}
	}
	if len(names) <= keep {
		return nil, nil
	}

	// Newest first; the timestamp leads the name.
	slices.Sort(names)
	slices.Reverse(names)

	var deleted []string
	for _, name := range names[max(keep, 0):] {
		path := filepath.Join(dir, name)
		if err := os.Remove(path); err != nil {
			return deleted, fmt.Errorf("failed to remove old archive %s: %w", name, err)
		}
		deleted = append(deleted, path)
	}
	return deleted, nil
}
