package simulation

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/neurogrid/internal/lattice"
)

// Scenario defines a complete simulation experiment.
type Scenario struct {
	Name string `yaml:"name"`

	// Grid overrides the runner's default grid size when set.
	Grid *lattice.Size `yaml:"grid,omitempty"`

	// Seed for the brain's random source. Zero lets the runner choose one.
	Seed uint64 `yaml:"seed,omitempty"`

	Neurons   []lattice.Position `yaml:"neurons"`
	Primaries []lattice.Position `yaml:"primaries,omitempty"`
	Steps     []Step             `yaml:"steps"`
}

// Step is one scenario action. Exactly one field is set.
type Step struct {
	Stimulate *StimulateStep    `yaml:"stimulate,omitempty"`
	Train     *TrainStep        `yaml:"train,omitempty"`
	Remove    *lattice.Position `yaml:"remove,omitempty"`
	Rest      *time.Duration    `yaml:"rest,omitempty"`
}

// StimulateStep delivers an external stimulus to one neuron.
type StimulateStep struct {
	At    lattice.Position `yaml:"at"`
	Value int              `yaml:"value"`
}

// TrainStep applies a training signal to one neuron, or to every live
// neuron when At is nil.
type TrainStep struct {
	Punish bool              `yaml:"punish"`
	Amount int               `yaml:"amount"`
	At     *lattice.Position `yaml:"at,omitempty"`
}

// Step kinds returned by Step.Kind.
const (
	KindStimulate = "stimulate"
	KindTrain     = "train"
	KindRemove    = "remove"
	KindRest      = "rest"
)

// Kind names the action the step performs, or "" if none or several are set.
func (s Step) Kind() string {
	kind, n := "", 0
	if s.Stimulate != nil {
		kind, n = KindStimulate, n+1
	}
	if s.Train != nil {
		kind, n = KindTrain, n+1
	}
	if s.Remove != nil {
		kind, n = KindRemove, n+1
	}
	if s.Rest != nil {
		kind, n = KindRest, n+1
	}
	if n != 1 {
		return ""
	}
	return kind
}

// Label is a short human-readable description used in snapshots.
func (s Step) Label() string {
	switch s.Kind() {
	case KindStimulate:
		return fmt.Sprintf("stimulate %s=%d", s.Stimulate.At, s.Stimulate.Value)
	case KindTrain:
		verb := "reward"
		if s.Train.Punish {
			verb = "punish"
		}
		if s.Train.At == nil {
			return fmt.Sprintf("%s all %d", verb, s.Train.Amount)
		}
		return fmt.Sprintf("%s %s %d", verb, *s.Train.At, s.Train.Amount)
	case KindRemove:
		return fmt.Sprintf("remove %s", *s.Remove)
	case KindRest:
		return fmt.Sprintf("rest %s", *s.Rest)
	default:
		return "invalid"
	}
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("reading scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a YAML scenario.
func ParseScenario(data []byte) (Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return Scenario{}, fmt.Errorf("parsing scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return Scenario{}, err
	}
	return sc, nil
}

// Validate checks the scenario's structure. Positions are checked against
// the grid when the brain is built.
func (sc Scenario) Validate() error {
	var errs []error
	if sc.Grid != nil {
		if err := sc.Grid.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("grid: %w", err))
		}
	}
	if len(sc.Neurons) == 0 && len(sc.Primaries) == 0 {
		errs = append(errs, errors.New("scenario places no neurons"))
	}
	for i, st := range sc.Steps {
		switch st.Kind() {
		case "":
			errs = append(errs, fmt.Errorf("step %d: exactly one of stimulate, train, remove or rest is required", i+1))
		case KindTrain:
			if st.Train.Amount < 0 {
				errs = append(errs, fmt.Errorf("step %d: train amount must be non-negative, got %d", i+1, st.Train.Amount))
			}
		case KindRest:
			if *st.Rest < 0 {
				errs = append(errs, fmt.Errorf("step %d: rest must be non-negative, got %s", i+1, *st.Rest))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid scenario %q: %w", sc.Name, errors.Join(errs...))
	}
	return nil
}
