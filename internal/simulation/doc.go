// Package simulation drives a brain through a scripted scenario.
//
// A scenario is a YAML file naming the grid, the seed neurons and a list of
// steps: stimuli, training signals, cell removals and rests. The Runner
// builds a real brain.Brain for it, executes the steps in order and records
// a snapshot of every neuron after each step in a store.SnapshotStore.
//
// Usage:
//
//	sc, err := simulation.LoadScenario("demo.yaml")
//	...
//	r := simulation.NewRunner(simulation.Options{Store: s, Params: brain.DefaultParams()})
//	result, err := r.Run(ctx, sc)
//
// Tests assert on the result with the Assert helpers in this package.
package simulation
