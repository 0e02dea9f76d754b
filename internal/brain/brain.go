// Package brain implements a self-organizing network of neurons embedded in
// a 3D lattice. Neurons discover their neighbors once, grow children into
// free cells, connect to existing neighbors, prune stale or weakened
// connections, and are reinforced or punished by scalar training signals.
//
// A Brain owns the grid, the registry of live neurons, the random source and
// the refractory scheduler. It is driven by a single caller: stimuli and
// training run synchronously, and only the refractory cooldown runs on
// timer goroutines.
package brain

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/nvandessel/neurogrid/internal/lattice"
	"github.com/nvandessel/neurogrid/internal/logging"
	"github.com/nvandessel/neurogrid/internal/refractory"
)

// ErrNoNeuron is returned when an operation targets an empty cell.
var ErrNoNeuron = errors.New("no neuron at position")

// Params holds the tunable constants of neuron behavior.
type Params struct {
	// FiringThreshold is the stimulus a neuron must exceed to fire. Default: 55.
	FiringThreshold int

	// MaxLevel caps importance, age and connection age. Default: 10000.
	MaxLevel int

	// InitialImportance is the importance of a new neuron. Default: 30.
	InitialImportance int

	// InitialAge is the age of a new neuron. Default: 1.
	InitialAge int

	// InitialConnectionAge is the age of a new connection. Default: 1.
	InitialConnectionAge int

	// AgeStep is how many reward (or punish) signals move age by one. Default: 5.
	AgeStep int

	// StrikeLimit is the number of invalidations that blacklist a position. Default: 3.
	StrikeLimit int

	// BlacklistResetFirings is the number of firings after which the
	// blacklist is cleared. Default: 10000.
	BlacklistResetFirings int

	// DecayPercent is the output reduction per recipient, in percent. Default: 10.
	DecayPercent int

	// Refractory is the cooldown after firing. Default: 100ms.
	Refractory time.Duration
}

// DefaultParams returns the default neuron parameters.
func DefaultParams() Params {
	return Params{
		FiringThreshold:       55,
		MaxLevel:              10000,
		InitialImportance:     30,
		InitialAge:            1,
		InitialConnectionAge:  1,
		AgeStep:               5,
		StrikeLimit:           3,
		BlacklistResetFirings: 10000,
		DecayPercent:          10,
		Refractory:            100 * time.Millisecond,
	}
}

// Validate checks that the parameters are usable.
func (p Params) Validate() error {
	if p.MaxLevel <= 0 {
		return fmt.Errorf("max_level must be positive, got %d", p.MaxLevel)
	}
	if p.InitialImportance <= 0 || p.InitialImportance > p.MaxLevel {
		return fmt.Errorf("initial_importance must be in (0, %d], got %d", p.MaxLevel, p.InitialImportance)
	}
	if p.InitialConnectionAge <= 0 {
		return fmt.Errorf("initial_connection_age must be positive, got %d", p.InitialConnectionAge)
	}
	if p.AgeStep <= 0 {
		return fmt.Errorf("age_step must be positive, got %d", p.AgeStep)
	}
	if p.StrikeLimit <= 0 {
		return fmt.Errorf("strike_limit must be positive, got %d", p.StrikeLimit)
	}
	if p.BlacklistResetFirings <= 0 {
		return fmt.Errorf("blacklist_reset_firings must be positive, got %d", p.BlacklistResetFirings)
	}
	if p.DecayPercent < 0 || p.DecayPercent > 100 {
		return fmt.Errorf("decay_percent must be between 0 and 100, got %d", p.DecayPercent)
	}
	if p.Refractory < 0 {
		return fmt.Errorf("refractory must be non-negative, got %v", p.Refractory)
	}
	return nil
}

// Config describes a brain to construct.
type Config struct {
	Size   lattice.Size
	Params Params

	// Seed seeds the random source. Zero seeds from the wall clock.
	Seed uint64
}

// Options carries the collaborators of a Brain. Zero values are replaced
// with silent or wall-clock defaults.
type Options struct {
	Logger *slog.Logger
	Events *logging.EventLogger
	Clock  clock.Clock
}

// Stats counts what happened in a brain. Stimulate returns the delta for
// one stimulus; Brain.Stats returns running totals.
type Stats struct {
	Fired   int `json:"fired"`
	Dropped int `json:"dropped"`
	Born    int `json:"born"`
	Died    int `json:"died"`
}

// Sub returns s minus o, field by field.
func (s Stats) Sub(o Stats) Stats {
	return Stats{
		Fired:   s.Fired - o.Fired,
		Dropped: s.Dropped - o.Dropped,
		Born:    s.Born - o.Born,
		Died:    s.Died - o.Died,
	}
}

// Brain is the simulation context: grid, registry, random source and
// refractory scheduler. It is not safe for concurrent use.
type Brain struct {
	params   Params
	grid     *lattice.Grid[Neuron]
	registry []*GenericNeuron
	rng      *rand.Rand
	sched    *refractory.Scheduler
	logger   *slog.Logger
	events   *logging.EventLogger
	stats    Stats
}

// New creates an empty brain.
func New(cfg Config, opts Options) (*Brain, error) {
	if err := cfg.Params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	grid, err := lattice.NewGrid[Neuron](cfg.Size)
	if err != nil {
		return nil, fmt.Errorf("creating grid: %w", err)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &Brain{
		params: cfg.Params,
		grid:   grid,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		sched:  refractory.NewScheduler(opts.Clock),
		logger: logger,
		events: opts.Events,
	}, nil
}

// Close cancels all pending cooldowns. The brain must not be used afterwards.
func (b *Brain) Close() {
	b.sched.Stop()
}

// Params returns the neuron parameters.
func (b *Brain) Params() Params {
	return b.params
}

// Size returns the grid dimensions.
func (b *Brain) Size() lattice.Size {
	return b.grid.Size()
}

// Stats returns running totals since construction.
func (b *Brain) Stats() Stats {
	return b.stats
}

// Population returns the number of live generic neurons.
func (b *Brain) Population() int {
	return len(b.registry)
}

// Live returns the live generic neurons in creation order.
func (b *Brain) Live() []*GenericNeuron {
	return slices.Clone(b.registry)
}

// PendingCooldowns returns the number of neurons waiting to leave the
// refractory state.
func (b *Brain) PendingCooldowns() int {
	return b.sched.Pending()
}

// Seed places a new generic neuron with no parent at pos.
func (b *Brain) Seed(pos lattice.Position) (*GenericNeuron, error) {
	n, err := b.spawn(pos, nil)
	if err != nil {
		return nil, fmt.Errorf("seeding %s: %w", pos, err)
	}
	if n == nil {
		return nil, fmt.Errorf("seeding %s: cell is occupied", pos)
	}
	return n, nil
}

// SeedPrimary places a sensor/effector boundary neuron at pos.
func (b *Brain) SeedPrimary(pos lattice.Position) (*PrimaryNeuron, error) {
	p := &PrimaryNeuron{id: uuid.New(), pos: pos}
	ok, err := b.grid.Place(pos, p)
	if err != nil {
		return nil, fmt.Errorf("seeding primary %s: %w", pos, err)
	}
	if !ok {
		return nil, fmt.Errorf("seeding primary %s: cell is occupied", pos)
	}
	b.events.Log("primary", map[string]any{"id": p.id.String(), "pos": pos.String()})
	return p, nil
}

// Neuron returns the occupant of pos.
func (b *Brain) Neuron(pos lattice.Position) (Neuron, error) {
	n, ok, err := b.grid.Get(pos)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrNoNeuron, pos)
	}
	return n, nil
}

// IsFree reports whether pos is empty.
func (b *Brain) IsFree(pos lattice.Position) (bool, error) {
	return b.grid.IsFree(pos)
}

// Each calls fn for every occupant in grid order until fn returns false.
func (b *Brain) Each(fn func(Neuron) bool) {
	b.grid.Each(func(_ lattice.Position, n Neuron) bool {
		return fn(n)
	})
}

// States summarizes every occupant in grid order.
func (b *Brain) States() []State {
	var out []State
	b.grid.Each(func(_ lattice.Position, n Neuron) bool {
		switch v := n.(type) {
		case *GenericNeuron:
			out = append(out, v.State())
		case *PrimaryNeuron:
			out = append(out, v.State())
		}
		return true
	})
	return out
}

// Remove destroys the occupant of pos. A generic neuron is torn down as if
// it had died; a primary neuron is simply removed from the grid.
func (b *Brain) Remove(pos lattice.Position) error {
	n, err := b.Neuron(pos)
	if err != nil {
		return err
	}
	switch v := n.(type) {
	case *GenericNeuron:
		v.die("removed")
		v.settle()
	default:
		if _, _, err := b.grid.Remove(pos); err != nil {
			return err
		}
	}
	return nil
}

// Stimulate delivers a stimulus to the neuron at pos and returns what the
// resulting propagation did.
func (b *Brain) Stimulate(pos lattice.Position, value int) (Stats, error) {
	n, err := b.Neuron(pos)
	if err != nil {
		return Stats{}, fmt.Errorf("stimulate: %w", err)
	}
	before := b.stats
	n.Activate(value)
	return b.stats.Sub(before), nil
}

// Train applies a training signal to the generic neuron at pos.
func (b *Brain) Train(pos lattice.Position, punish bool, amount int) error {
	n, err := b.Neuron(pos)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}
	g, ok := n.(*GenericNeuron)
	if !ok {
		return fmt.Errorf("train: neuron at %s is not trainable", pos)
	}
	g.Train(punish, amount)
	return nil
}

// TrainAll applies a training signal to every live generic neuron.
// Neurons that die during the broadcast leave the registry immediately;
// the iteration covers the neurons that were alive when it started.
func (b *Brain) TrainAll(punish bool, amount int) {
	for _, n := range slices.Clone(b.registry) {
		n.Train(punish, amount)
	}
}

// spawn constructs a generic neuron at pos and registers it. It returns nil
// without error if the cell is occupied.
func (b *Brain) spawn(pos lattice.Position, parent *lattice.Position) (*GenericNeuron, error) {
	n := newGenericNeuron(b, pos, parent)
	ok, err := b.grid.Place(pos, n)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	b.registry = append(b.registry, n)
	b.stats.Born++

	fields := map[string]any{"id": n.id.String(), "pos": pos.String()}
	if parent != nil {
		fields["parent"] = parent.String()
	}
	b.events.Log("born", fields)
	b.logger.Debug("neuron born", "pos", pos, "population", len(b.registry))
	return n, nil
}

// reap removes a dead neuron from the grid, the registry and the scheduler.
func (b *Brain) reap(n *GenericNeuron) {
	if n.removed {
		return
	}
	n.removed = true
	b.sched.Cancel(n.id)

	if occ, ok, err := b.grid.Get(n.pos); err == nil && ok && occ.ID() == n.id {
		_, _, _ = b.grid.Remove(n.pos)
	}
	b.registry = slices.DeleteFunc(b.registry, func(g *GenericNeuron) bool { return g == n })
	b.stats.Died++

	b.events.Log("died", map[string]any{
		"id":         n.id.String(),
		"pos":        n.pos.String(),
		"reason":     n.deathReason,
		"importance": n.importance,
	})
	b.logger.Debug("neuron died", "pos", n.pos, "reason", n.deathReason, "population", len(b.registry))
}

func (b *Brain) coinFlip() bool {
	return b.rng.IntN(2) == 0
}
