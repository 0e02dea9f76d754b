package simulation

import (
	"testing"

	"github.com/nvandessel/neurogrid/internal/brain"
)

// AssertStepStats asserts the counters of one step (1-based index).
func AssertStepStats(t *testing.T, result *Result, step int, want brain.Stats) {
	t.Helper()
	if step < 1 || step > len(result.Steps) {
		t.Fatalf("AssertStepStats: step %d out of range (have %d)", step, len(result.Steps))
	}
	if got := result.Steps[step-1].Stats; got != want {
		t.Errorf("AssertStepStats: step %d (%s): stats %+v, want %+v", step, result.Steps[step-1].Label, got, want)
	}
}

// AssertPopulation asserts the number of live generic neurons after a step.
// Step 0 checks the final population.
func AssertPopulation(t *testing.T, result *Result, step, want int) {
	t.Helper()
	got := result.Population
	if step > 0 {
		if step > len(result.Steps) {
			t.Fatalf("AssertPopulation: step %d out of range (have %d)", step, len(result.Steps))
		}
		got = result.Steps[step-1].Population
	}
	if got != want {
		t.Errorf("AssertPopulation: step %d: population %d, want %d", step, got, want)
	}
}

// AssertTotalsConsistent asserts that the per-step counters add up to the
// run totals.
func AssertTotalsConsistent(t *testing.T, result *Result) {
	t.Helper()
	var sum brain.Stats
	for _, sr := range result.Steps {
		sum.Fired += sr.Stats.Fired
		sum.Dropped += sr.Stats.Dropped
		sum.Born += sr.Stats.Born
		sum.Died += sr.Stats.Died
	}
	if sum != result.Totals {
		t.Errorf("AssertTotalsConsistent: steps sum to %+v, totals are %+v", sum, result.Totals)
	}
}

// AssertNoFiring asserts that no neuron fired after the given step.
func AssertNoFiring(t *testing.T, result *Result, afterStep int) {
	t.Helper()
	for _, sr := range result.Steps {
		if sr.Index > afterStep && sr.Stats.Fired > 0 {
			t.Errorf("AssertNoFiring: step %d (%s) fired %d neurons", sr.Index, sr.Label, sr.Stats.Fired)
		}
	}
}
