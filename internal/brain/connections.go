package brain

import (
	"context"

	"github.com/nvandessel/neurogrid/internal/lattice"
	"github.com/nvandessel/neurogrid/internal/logging"
)

// discoverCandidates records the occupied neighbors of n, excluding its
// parent. It runs once per neuron; the result is never refreshed.
func (n *GenericNeuron) discoverCandidates() {
	n.neighborsFound = true
	for _, pos := range n.brain.grid.Neighbors(n.pos) {
		if n.hasParent && pos == n.parent {
			continue
		}
		occ, ok, err := n.brain.grid.Get(pos)
		if err != nil || !ok {
			continue
		}
		n.candidates = append(n.candidates, candidate{pos: pos, id: occ.ID()})
	}
	n.brain.logger.Log(context.Background(), logging.LevelTrace, "candidates discovered", "pos", n.pos, "count", len(n.candidates))
}

// connectionValid reports whether c still points at the neuron it was made
// for and has positive age.
func (n *GenericNeuron) connectionValid(c Connection) bool {
	if c.Age <= 0 {
		return false
	}
	occ, ok, err := n.brain.grid.Get(c.Target)
	return err == nil && ok && occ.ID() == c.TargetID
}

// pruneRecipients drops invalid connections, recording a strike for each.
func (n *GenericNeuron) pruneRecipients() {
	kept := n.recipients[:0]
	for _, c := range n.recipients {
		if n.connectionValid(c) {
			kept = append(kept, c)
			continue
		}
		n.strike(c.Target)
	}
	n.recipients = kept
}

// strike counts an invalidation against pos and blacklists it at the limit.
func (n *GenericNeuron) strike(pos lattice.Position) {
	n.strikes[pos]++
	if n.strikes[pos] < n.brain.params.StrikeLimit {
		return
	}
	delete(n.strikes, pos)
	n.blacklist[pos] = struct{}{}
	n.brain.events.Log("blacklisted", map[string]any{
		"id":     n.id.String(),
		"pos":    n.pos.String(),
		"target": pos.String(),
	})
}

// countFiring advances the blacklist reset counter. The blacklist is
// cleared on the firing after BlacklistResetFirings.
func (n *GenericNeuron) countFiring() {
	n.firings++
	if n.firings > n.brain.params.BlacklistResetFirings {
		clear(n.blacklist)
		n.firings = 0
	}
}

// hasHeadroom reports whether some candidate is neither connected nor
// blacklisted.
func (n *GenericNeuron) hasHeadroom() bool {
	return len(n.recipients) < len(n.candidates)-len(n.blacklist)
}

func (n *GenericNeuron) isRecipient(pos lattice.Position) bool {
	for _, c := range n.recipients {
		if c.Target == pos {
			return true
		}
	}
	return false
}

// connectNearby connects to a random occupied candidate that is not already
// a recipient and not blacklisted.
func (n *GenericNeuron) connectNearby() bool {
	var eligible []Connection
	for _, c := range n.candidates {
		if n.Blacklisted(c.pos) || n.isRecipient(c.pos) {
			continue
		}
		occ, ok, err := n.brain.grid.Get(c.pos)
		if err != nil || !ok {
			continue
		}
		eligible = append(eligible, Connection{
			Target:   c.pos,
			TargetID: occ.ID(),
			Age:      n.brain.params.InitialConnectionAge,
		})
	}
	if len(eligible) == 0 {
		return false
	}

	pick := eligible[n.brain.rng.IntN(len(eligible))]
	n.recipients = append(n.recipients, pick)
	n.brain.events.Log("connected", map[string]any{
		"id":     n.id.String(),
		"pos":    n.pos.String(),
		"target": pick.Target.String(),
	})
	return true
}

// placeNearby grows a child into a random free candidate position and
// connects to it. The blacklist only restricts connections to existing
// neurons, so a blacklisted cell that has been vacated can be regrown.
func (n *GenericNeuron) placeNearby() bool {
	var free []lattice.Position
	for _, c := range n.candidates {
		if ok, err := n.brain.grid.IsFree(c.pos); err == nil && ok {
			free = append(free, c.pos)
		}
	}
	if len(free) == 0 {
		return false
	}

	pos := free[n.brain.rng.IntN(len(free))]
	child, err := n.brain.spawn(pos, &n.pos)
	if err != nil || child == nil {
		return false
	}
	n.recipients = append(n.recipients, Connection{
		Target:   pos,
		TargetID: child.id,
		Age:      n.brain.params.InitialConnectionAge,
	})
	return true
}
