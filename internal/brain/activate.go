package brain

import (
	"context"

	"github.com/google/uuid"

	"github.com/nvandessel/neurogrid/internal/logging"
)

// propagation tracks one external stimulus as it fans out. Each neuron
// fires at most once per propagation, which bounds recursion on cyclic
// connection graphs.
type propagation struct {
	fired map[uuid.UUID]struct{}
}

func newPropagation() *propagation {
	return &propagation{fired: make(map[uuid.UUID]struct{})}
}

// Activate implements Neuron.
func (n *GenericNeuron) Activate(stimulus int) {
	n.receive(newPropagation(), stimulus)
}

func (n *GenericNeuron) receive(p *propagation, stimulus int) {
	if n.marked || n.removed {
		return
	}
	defer n.settle()

	if n.importance <= 0 {
		n.die("importance exhausted")
		return
	}

	if !n.neighborsFound {
		n.discoverCandidates()
	}

	if !n.admit(p, stimulus) {
		n.brain.stats.Dropped++
		return
	}
	p.fired[n.id] = struct{}{}
	n.brain.stats.Fired++

	n.importance = min(n.importance+1, n.brain.params.MaxLevel)
	n.pruneRecipients()
	n.countFiring()

	if n.hasHeadroom() {
		n.grow()
	}
	if len(n.recipients) == 0 {
		placed := n.placeNearby()
		connected := n.connectNearby()
		if !placed && !connected {
			n.die("isolated")
			return
		}
	}

	out := n.output(stimulus)
	n.brain.logger.Log(context.Background(), logging.LevelTrace, "neuron fired",
		"pos", n.pos, "stimulus", stimulus, "output", out, "recipients", len(n.recipients))

	// n is already in p.fired, so nothing reached during delivery can
	// re-enter it and change its recipients.
	for _, c := range n.recipients {
		occ, ok, err := n.brain.grid.Get(c.Target)
		if err != nil || !ok || occ.ID() != c.TargetID {
			continue
		}
		occ.receive(p, out)
		if n.marked {
			return
		}
	}

	n.enterRefractory()
}

// admit reports whether a stimulus makes the neuron fire.
func (n *GenericNeuron) admit(p *propagation, stimulus int) bool {
	if stimulus <= n.brain.params.FiringThreshold {
		return false
	}
	if !n.CanFire() {
		return false
	}
	_, fired := p.fired[n.id]
	return !fired
}

// grow places a first child, then alternates at random between placing
// more children and connecting to existing neighbors.
func (n *GenericNeuron) grow() {
	if !n.hasChild {
		if n.placeNearby() {
			n.hasChild = true
		}
		return
	}
	if n.brain.coinFlip() {
		n.placeNearby()
	} else {
		n.connectNearby()
	}
}

// output applies the per-recipient decay to stimulus plus age. The result
// is truncated toward zero and may be negative past ten recipients at the
// default decay.
func (n *GenericNeuron) output(stimulus int) int {
	scale := 100 - n.brain.params.DecayPercent*len(n.recipients)
	return (stimulus + n.age) * scale / 100
}
