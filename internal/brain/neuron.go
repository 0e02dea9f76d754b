package brain

import (
	"sync"

	"github.com/google/uuid"

	"github.com/nvandessel/neurogrid/internal/lattice"
)

// Neuron is the capability shared by every occupant of the grid.
// The set of implementations is closed: GenericNeuron and PrimaryNeuron.
type Neuron interface {
	// ID identifies this neuron instance. A cell reused after a death
	// holds a neuron with a different ID.
	ID() uuid.UUID

	// Position returns the cell the neuron occupies.
	Position() lattice.Position

	// Activate delivers an external stimulus, starting a new propagation.
	Activate(stimulus int)

	// ResetRefractory returns the neuron to the ready state.
	ResetRefractory()

	receive(p *propagation, stimulus int)
}

// Connection is an outgoing edge to a recipient neuron.
type Connection struct {
	Target   lattice.Position `json:"target"`
	TargetID uuid.UUID        `json:"target_id"`
	Age      int              `json:"age"`
}

type candidate struct {
	pos lattice.Position
	id  uuid.UUID
}

// GenericNeuron grows, connects and propagates stimuli.
type GenericNeuron struct {
	brain *Brain
	id    uuid.UUID
	pos   lattice.Position

	parent    lattice.Position
	hasParent bool

	importance      int
	age             int
	ageCount        int
	reverseAgeCount int
	firings         int

	neighborsFound bool
	hasChild       bool

	candidates []candidate
	recipients []Connection
	strikes    map[lattice.Position]int
	blacklist  map[lattice.Position]struct{}

	// mu guards canFire, the only field touched by cooldown timers.
	mu      sync.Mutex
	canFire bool

	marked      bool
	removed     bool
	deathReason string
}

func newGenericNeuron(b *Brain, pos lattice.Position, parent *lattice.Position) *GenericNeuron {
	n := &GenericNeuron{
		brain:      b,
		id:         uuid.New(),
		pos:        pos,
		importance: b.params.InitialImportance,
		age:        b.params.InitialAge,
		strikes:    make(map[lattice.Position]int),
		blacklist:  make(map[lattice.Position]struct{}),
		canFire:    true,
	}
	if parent != nil {
		n.parent = *parent
		n.hasParent = true
	}
	return n
}

// ID implements Neuron.
func (n *GenericNeuron) ID() uuid.UUID { return n.id }

// Position implements Neuron.
func (n *GenericNeuron) Position() lattice.Position { return n.pos }

// Parent returns the position of the neuron that placed this one.
func (n *GenericNeuron) Parent() (lattice.Position, bool) {
	return n.parent, n.hasParent
}

// Importance returns the neuron's viability credit.
func (n *GenericNeuron) Importance() int { return n.importance }

// Age returns the value added to every propagated stimulus.
func (n *GenericNeuron) Age() int { return n.age }

// HasChild reports whether the neuron has placed a child during growth.
func (n *GenericNeuron) HasChild() bool { return n.hasChild }

// Alive reports whether the neuron is still part of the brain.
func (n *GenericNeuron) Alive() bool { return !n.marked && !n.removed }

// DeathReason returns why the neuron died, or "" if it is alive.
func (n *GenericNeuron) DeathReason() string { return n.deathReason }

// CanFire reports whether the neuron is ready (not refractory).
func (n *GenericNeuron) CanFire() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.canFire
}

// ResetRefractory implements Neuron.
func (n *GenericNeuron) ResetRefractory() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.canFire = true
}

func (n *GenericNeuron) enterRefractory() {
	n.mu.Lock()
	n.canFire = false
	n.mu.Unlock()

	// The scheduler lock is taken after the neuron lock is released;
	// timer callbacks take them in the opposite order.
	n.brain.sched.Schedule(n.id, n.brain.params.Refractory, n.ResetRefractory)
}

// Candidates returns the positions discovered at first activation.
func (n *GenericNeuron) Candidates() []lattice.Position {
	out := make([]lattice.Position, len(n.candidates))
	for i, c := range n.candidates {
		out[i] = c.pos
	}
	return out
}

// Recipients returns a copy of the outgoing connections in delivery order.
func (n *GenericNeuron) Recipients() []Connection {
	out := make([]Connection, len(n.recipients))
	copy(out, n.recipients)
	return out
}

// Strikes returns the invalidation count recorded against pos.
func (n *GenericNeuron) Strikes(pos lattice.Position) int {
	return n.strikes[pos]
}

// Blacklisted reports whether pos is excluded from new connections.
func (n *GenericNeuron) Blacklisted(pos lattice.Position) bool {
	_, ok := n.blacklist[pos]
	return ok
}

// BlacklistLen returns the number of blacklisted positions.
func (n *GenericNeuron) BlacklistLen() int {
	return len(n.blacklist)
}

// State summarizes a neuron for snapshots.
type State struct {
	ID          uuid.UUID        `json:"id"`
	Kind        string           `json:"kind"`
	Position    lattice.Position `json:"position"`
	Importance  int              `json:"importance"`
	Age         int              `json:"age"`
	CanFire     bool             `json:"can_fire"`
	Candidates  int              `json:"candidates"`
	Recipients  []Connection     `json:"recipients,omitempty"`
	Blacklisted int              `json:"blacklisted"`
}

// Kinds reported in State.
const (
	KindGeneric = "generic"
	KindPrimary = "primary"
)

// State returns a summary of the neuron.
func (n *GenericNeuron) State() State {
	return State{
		ID:          n.id,
		Kind:        KindGeneric,
		Position:    n.pos,
		Importance:  n.importance,
		Age:         n.age,
		CanFire:     n.CanFire(),
		Candidates:  len(n.candidates),
		Recipients:  n.Recipients(),
		Blacklisted: len(n.blacklist),
	}
}

// die marks the neuron for removal. The frame that marked it reaps it
// in settle, so the neuron is never torn down under an active caller.
func (n *GenericNeuron) die(reason string) {
	if n.marked {
		return
	}
	n.marked = true
	n.deathReason = reason
}

// settle reaps the neuron if it was marked during the current call.
func (n *GenericNeuron) settle() {
	if n.marked && !n.removed {
		n.brain.reap(n)
	}
}

// PrimaryNeuron is a boundary neuron reserved for sensor and effector I/O.
// It accepts stimuli without acting on them.
type PrimaryNeuron struct {
	id       uuid.UUID
	pos      lattice.Position
	received int
	last     int
}

// ID implements Neuron.
func (p *PrimaryNeuron) ID() uuid.UUID { return p.id }

// Position implements Neuron.
func (p *PrimaryNeuron) Position() lattice.Position { return p.pos }

// Activate implements Neuron.
func (p *PrimaryNeuron) Activate(stimulus int) {
	p.receive(nil, stimulus)
}

// ResetRefractory implements Neuron. Primary neurons are never refractory.
func (p *PrimaryNeuron) ResetRefractory() {}

func (p *PrimaryNeuron) receive(_ *propagation, stimulus int) {
	p.received++
	p.last = stimulus
}

// Received returns how many stimuli reached the neuron and the last value.
func (p *PrimaryNeuron) Received() (count, last int) {
	return p.received, p.last
}

// State returns a summary of the neuron.
func (p *PrimaryNeuron) State() State {
	return State{ID: p.id, Kind: KindPrimary, Position: p.pos, CanFire: true}
}
