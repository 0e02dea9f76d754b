package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/nvandessel/neurogrid/internal/brain"
	"github.com/nvandessel/neurogrid/internal/lattice"
	"github.com/nvandessel/neurogrid/internal/logging"
	"github.com/nvandessel/neurogrid/internal/store"
)

// Options configures a Runner. Zero values fall back to defaults: default
// params, a 5x5x5 grid, the wall clock, a silent logger and no store.
type Options struct {
	Params brain.Params
	Grid   lattice.Size

	// Seed is used when the scenario does not set one. If both are zero a
	// seed is derived from the current time and reported in the result.
	Seed uint64

	Store  store.SnapshotStore
	Logger *slog.Logger
	Events *logging.EventLogger
	Clock  clock.Clock
}

// Runner executes scenarios against a real brain.
type Runner struct {
	opts Options
}

// StepResult captures the outcome of a single step.
type StepResult struct {
	Index      int         `json:"index"`
	Label      string      `json:"label"`
	Stats      brain.Stats `json:"stats"`
	Population int         `json:"population"`
}

// Result captures a whole run.
type Result struct {
	RunID      string       `json:"run_id"`
	Scenario   string       `json:"scenario"`
	Seed       uint64       `json:"seed"`
	Grid       lattice.Size `json:"grid"`
	Steps      []StepResult `json:"steps"`
	Totals     brain.Stats  `json:"totals"` // sum over steps; seeding excluded
	Population int          `json:"population"`
	Cooldowns  int          `json:"pending_cooldowns"`

	// Final holds every neuron after the last step, in grid order.
	Final []brain.State `json:"-"`
}

// NewRunner creates a scenario runner.
func NewRunner(opts Options) *Runner {
	if opts.Params == (brain.Params{}) {
		opts.Params = brain.DefaultParams()
	}
	if opts.Grid == (lattice.Size{}) {
		opts.Grid = lattice.Size{X: 5, Y: 5, Z: 5}
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Runner{opts: opts}
}

// Run builds a brain for the scenario, executes every step and records a
// snapshot after each one. The brain is closed before Run returns.
func (r *Runner) Run(ctx context.Context, sc Scenario) (*Result, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	grid := r.opts.Grid
	if sc.Grid != nil {
		grid = *sc.Grid
	}
	seed := sc.Seed
	if seed == 0 {
		seed = r.opts.Seed
	}
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	b, err := brain.New(brain.Config{Size: grid, Params: r.opts.Params, Seed: seed}, brain.Options{
		Logger: r.opts.Logger,
		Events: r.opts.Events,
		Clock:  r.opts.Clock,
	})
	if err != nil {
		return nil, fmt.Errorf("building brain: %w", err)
	}
	defer b.Close()

	for _, pos := range sc.Neurons {
		if _, err := b.Seed(pos); err != nil {
			return nil, err
		}
	}
	for _, pos := range sc.Primaries {
		if _, err := b.SeedPrimary(pos); err != nil {
			return nil, err
		}
	}

	// Seeding counts births; totals cover the steps only.
	baseline := b.Stats()

	result := &Result{
		RunID:    uuid.NewString(),
		Scenario: sc.Name,
		Seed:     seed,
		Grid:     grid,
		Steps:    make([]StepResult, 0, len(sc.Steps)),
	}

	if r.opts.Store != nil {
		run := store.Run{
			ID:        result.RunID,
			Scenario:  sc.Name,
			Seed:      seed,
			Grid:      grid,
			StartedAt: r.opts.Clock.Now(),
		}
		if err := r.opts.Store.CreateRun(ctx, run); err != nil {
			return nil, fmt.Errorf("recording run: %w", err)
		}
	}

	r.opts.Logger.Info("run started", "run", result.RunID, "scenario", sc.Name,
		"grid", grid.String(), "seed", seed, "steps", len(sc.Steps))

	for i, st := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		stats, err := r.execute(ctx, b, st)
		if err != nil {
			return result, fmt.Errorf("step %d (%s): %w", i+1, st.Label(), err)
		}

		sr := StepResult{Index: i + 1, Label: st.Label(), Stats: stats, Population: b.Population()}
		result.Steps = append(result.Steps, sr)
		r.opts.Logger.Debug("step done", "run", result.RunID, "step", sr.Index,
			"label", sr.Label, "fired", stats.Fired, "dropped", stats.Dropped,
			"born", stats.Born, "died", stats.Died, "population", sr.Population)

		if err := r.snapshot(ctx, result.RunID, sr, b); err != nil {
			return result, err
		}
	}

	result.Totals = b.Stats().Sub(baseline)
	result.Population = b.Population()
	result.Cooldowns = b.PendingCooldowns()
	result.Final = b.States()

	r.opts.Logger.Info("run finished", "run", result.RunID,
		"fired", result.Totals.Fired, "born", result.Totals.Born,
		"died", result.Totals.Died, "population", result.Population)

	return result, nil
}

// execute performs one step and returns the counters it changed.
func (r *Runner) execute(ctx context.Context, b *brain.Brain, st Step) (brain.Stats, error) {
	before := b.Stats()

	switch st.Kind() {
	case KindStimulate:
		return b.Stimulate(st.Stimulate.At, st.Stimulate.Value)
	case KindTrain:
		if st.Train.At != nil {
			if err := b.Train(*st.Train.At, st.Train.Punish, st.Train.Amount); err != nil {
				return brain.Stats{}, err
			}
		} else {
			b.TrainAll(st.Train.Punish, st.Train.Amount)
		}
	case KindRemove:
		if err := b.Remove(*st.Remove); err != nil {
			return brain.Stats{}, err
		}
	case KindRest:
		select {
		case <-ctx.Done():
			return brain.Stats{}, ctx.Err()
		case <-r.opts.Clock.After(*st.Rest):
		}
	}

	return b.Stats().Sub(before), nil
}

func (r *Runner) snapshot(ctx context.Context, runID string, sr StepResult, b *brain.Brain) error {
	if r.opts.Store == nil {
		return nil
	}

	states := b.States()
	neurons := make([]store.NeuronRecord, len(states))
	for i, s := range states {
		neurons[i] = store.NeuronRecord{
			ID:          s.ID.String(),
			Kind:        s.Kind,
			Position:    s.Position,
			Importance:  s.Importance,
			Age:         s.Age,
			CanFire:     s.CanFire,
			Candidates:  s.Candidates,
			Recipients:  len(s.Recipients),
			Blacklisted: s.Blacklisted,
		}
	}

	snap := store.Snapshot{
		RunID:   runID,
		Step:    sr.Index,
		Label:   sr.Label,
		TakenAt: r.opts.Clock.Now(),
		Counters: store.Counters{
			Fired:   sr.Stats.Fired,
			Dropped: sr.Stats.Dropped,
			Born:    sr.Stats.Born,
			Died:    sr.Stats.Died,
		},
		Neurons: neurons,
	}
	if err := r.opts.Store.SaveSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("saving snapshot for step %d: %w", sr.Index, err)
	}
	return nil
}
