package brain

// Train applies a scalar reinforcement signal. Punishment lowers importance
// and connection ages and may kill the neuron; reward raises them up to
// MaxLevel. Every AgeStep-th signal of the same kind moves age by one.
func (n *GenericNeuron) Train(punish bool, amount int) {
	if n.marked || n.removed {
		return
	}
	defer n.settle()

	if punish {
		n.punish(amount)
	} else {
		n.reward(amount)
	}
}

func (n *GenericNeuron) punish(amount int) {
	n.importance -= amount
	if n.importance <= 0 {
		n.die("punished")
		return
	}

	n.reverseAgeCount++
	if n.reverseAgeCount >= n.brain.params.AgeStep {
		n.age--
		n.reverseAgeCount = 0
	}

	for i := range n.recipients {
		n.recipients[i].Age -= amount
	}
}

func (n *GenericNeuron) reward(amount int) {
	maxLevel := n.brain.params.MaxLevel
	n.importance = min(n.importance+amount, maxLevel)

	n.ageCount++
	if n.ageCount >= n.brain.params.AgeStep {
		n.age = min(n.age+1, maxLevel)
		n.ageCount = 0
	}

	for i := range n.recipients {
		n.recipients[i].Age = min(n.recipients[i].Age+amount, maxLevel)
	}
}
