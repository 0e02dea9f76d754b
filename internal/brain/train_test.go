package brain

import (
	"testing"

	"github.com/nvandessel/neurogrid/internal/lattice"
)

func TestTrainAll_RewardFiveTimes(t *testing.T) {
	tests := []struct {
		name           string
		maxLevel       int
		amount         int
		wantImportance int
		wantAge        int
	}{
		{"below ceiling", 10000, 2, 40, 2},
		{"capped at ceiling", 35, 2, 35, 2},
		{"large amount", 10000, 100, 530, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := newTestBrain(t, lattice.Size{X: 3, Y: 3, Z: 3}, func(p *Params) {
				p.MaxLevel = tt.maxLevel
			})
			a := seed(t, b, center)
			c := seed(t, b, above)

			for i := 0; i < 5; i++ {
				b.TrainAll(false, tt.amount)
			}

			for _, n := range []*GenericNeuron{a, c} {
				if n.Importance() != tt.wantImportance {
					t.Errorf("importance of %s = %d, want %d", n.Position(), n.Importance(), tt.wantImportance)
				}
				if n.Age() != tt.wantAge {
					t.Errorf("age of %s = %d, want %d", n.Position(), n.Age(), tt.wantAge)
				}
			}
		})
	}
}

func TestTrain_RewardFourTimesKeepsAge(t *testing.T) {
	b, _ := newTestBrain(t, lattice.Size{X: 3, Y: 3, Z: 3}, nil)
	n := seed(t, b, center)

	for i := 0; i < 4; i++ {
		n.Train(false, 1)
	}
	if n.Age() != 1 {
		t.Errorf("age after four rewards = %d, want 1", n.Age())
	}
	n.Train(false, 1)
	if n.Age() != 2 {
		t.Errorf("age after five rewards = %d, want 2", n.Age())
	}
}

func TestTrain_AgeCappedAtMaxLevel(t *testing.T) {
	b, _ := newTestBrain(t, lattice.Size{X: 3, Y: 3, Z: 3}, func(p *Params) {
		p.MaxLevel = 40
	})
	n := seed(t, b, center)
	n.age = 40

	for i := 0; i < 5; i++ {
		n.Train(false, 1)
	}
	if n.Age() != 40 {
		t.Errorf("age = %d, want capped at 40", n.Age())
	}
}

func TestTrain_PunishToDeathRemovesNeuron(t *testing.T) {
	tests := []struct {
		name   string
		amount int
	}{
		{"exactly to zero", 30},
		{"below zero", 45},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := newTestBrain(t, lattice.Size{X: 3, Y: 3, Z: 3}, nil)
			a := seed(t, b, center)
			c := seed(t, b, above)

			b.TrainAll(true, tt.amount)

			for _, n := range []*GenericNeuron{a, c} {
				if n.Alive() {
					t.Errorf("%s survived punishment", n.Position())
				}
				if n.DeathReason() != "punished" {
					t.Errorf("death reason = %q, want punished", n.DeathReason())
				}
				if free, _ := b.IsFree(n.Position()); !free {
					t.Errorf("cell %s still occupied", n.Position())
				}
			}
			if b.Population() != 0 {
				t.Errorf("Population = %d, want 0", b.Population())
			}
			if got := b.Stats().Died; got != 2 {
				t.Errorf("Died = %d, want 2", got)
			}

			// Training a dead neuron is a no-op.
			a.Train(false, 10)
			if a.Importance() > 0 {
				t.Errorf("dead neuron was rewarded to %d", a.Importance())
			}
		})
	}
}

func TestTrain_PunishAgesAndConnections(t *testing.T) {
	b, _ := newTestBrain(t, lattice.Size{X: 3, Y: 3, Z: 3}, func(p *Params) {
		p.InitialImportance = 100
	})
	n := seed(t, b, center)
	seed(t, b, above)
	n.discoverCandidates()
	if !n.connectNearby() {
		t.Fatal("expected a connection")
	}

	for i := 0; i < 4; i++ {
		if err := b.Train(center, true, 2); err != nil {
			t.Fatalf("Train: %v", err)
		}
	}
	if n.Age() != 1 {
		t.Errorf("age after four punishments = %d, want 1", n.Age())
	}
	if err := b.Train(center, true, 2); err != nil {
		t.Fatalf("Train: %v", err)
	}
	if n.Age() != 0 {
		t.Errorf("age after five punishments = %d, want 0", n.Age())
	}

	// Five more punishments drive age below zero; no floor applies.
	for i := 0; i < 5; i++ {
		n.Train(true, 2)
	}
	if n.Age() != -1 {
		t.Errorf("age = %d, want -1", n.Age())
	}
	if n.Importance() != 80 {
		t.Errorf("importance = %d, want 80", n.Importance())
	}

	rs := n.Recipients()
	if len(rs) != 1 || rs[0].Age != 1-20 {
		t.Errorf("recipients = %+v, want one at age %d", rs, 1-20)
	}
}

func TestTrain_RewardCapsConnectionAge(t *testing.T) {
	b, _ := newTestBrain(t, lattice.Size{X: 3, Y: 3, Z: 3}, func(p *Params) {
		p.MaxLevel = 50
	})
	n := seed(t, b, center)
	seed(t, b, above)
	n.discoverCandidates()
	n.connectNearby()

	n.Train(false, 30)
	n.Train(false, 30)

	rs := n.Recipients()
	if len(rs) != 1 || rs[0].Age != 50 {
		t.Errorf("recipients = %+v, want one capped at 50", rs)
	}
	if n.Importance() != 50 {
		t.Errorf("importance = %d, want 50", n.Importance())
	}
}

func TestTrainAll_CancelsCooldownOfDeadNeuron(t *testing.T) {
	b, _ := newTestBrain(t, lattice.Size{X: 3, Y: 3, Z: 3}, nil)
	a := seed(t, b, center)
	seed(t, b, above)

	if _, err := b.Stimulate(center, 100); err != nil {
		t.Fatalf("Stimulate: %v", err)
	}
	if b.PendingCooldowns() != 2 {
		t.Fatalf("PendingCooldowns = %d, want 2", b.PendingCooldowns())
	}

	a.Train(true, 100)
	if a.Alive() {
		t.Fatal("expected punished neuron to die")
	}
	if b.PendingCooldowns() != 1 {
		t.Errorf("PendingCooldowns = %d, want 1", b.PendingCooldowns())
	}
	if b.sched.IsPending(a.ID()) {
		t.Error("dead neuron still has a pending cooldown")
	}
}
