package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/neurogrid/internal/brain"
	"github.com/nvandessel/neurogrid/internal/simulation"
	"github.com/nvandessel/neurogrid/internal/store"
)

const pairScenario = `
name: pair
grid: {x: 3, y: 3, z: 3}
seed: 1
neurons:
  - {x: 1, y: 1, z: 1}
  - {x: 1, y: 1, z: 2}
steps:
  - stimulate: {at: {x: 1, y: 1, z: 1}, value: 100}
  - train: {punish: false, amount: 3}
`

// isolateHome points HOME at a temp directory and clears environment
// overrides so tests never touch the real ~/.neurogrid/.
func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	for _, v := range []string{"NEUROGRID_LOG_LEVEL", "NEUROGRID_SEED", "NEUROGRID_DB",
		"NEUROGRID_FIRING_THRESHOLD", "NEUROGRID_REFRACTORY"} {
		t.Setenv(v, "")
	}
	return home
}

// execute runs the CLI with args and returns what it wrote to stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write scenario: %v", err)
	}
	return path
}

func TestNewRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	want := map[string]bool{"version": false, "run": false, "snapshots": false, "config": false, "export": false, "import": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
	for _, flag := range []string{"json", "config", "db"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("persistent flag --%s missing", flag)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out, "neurogrid version "+version) {
		t.Errorf("version output = %q", out)
	}

	out, err = execute(t, "version", "--json")
	if err != nil {
		t.Fatalf("version --json error = %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if got["version"] != version || got["commit"] != commit {
		t.Errorf("version JSON = %v", got)
	}
}

func TestConfigGet(t *testing.T) {
	isolateHome(t)

	tests := []struct {
		key  string
		want string
	}{
		{"neuron.firing_threshold", "neuron.firing_threshold = 55\n"},
		{"neuron.refractory", "neuron.refractory = 100ms\n"},
		{"grid.x", "grid.x = 5\n"},
		{"logging.level", "logging.level = info\n"},
		{"neuron.nope", "Unknown configuration key: neuron.nope\n"},
		{"toplevel", "Unknown configuration key: toplevel\n"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			out, err := execute(t, "config", "get", tt.key)
			if err != nil {
				t.Fatalf("config get error = %v", err)
			}
			if out != tt.want {
				t.Errorf("config get %s = %q, want %q", tt.key, out, tt.want)
			}
		})
	}
}

func TestConfigGet_EnvOverride(t *testing.T) {
	isolateHome(t)
	t.Setenv("NEUROGRID_FIRING_THRESHOLD", "80")

	out, err := execute(t, "config", "get", "neuron.firing_threshold", "--json")
	if err != nil {
		t.Fatalf("config get error = %v", err)
	}
	var got map[string]interface{}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if got["value"] != float64(80) {
		t.Errorf("value = %v, want 80", got["value"])
	}
}

func TestConfigSetThenGet(t *testing.T) {
	home := isolateHome(t)

	out, err := execute(t, "config", "set", "neuron.refractory", "250ms")
	if err != nil {
		t.Fatalf("config set error = %v", err)
	}
	if out != "Set neuron.refractory = 250ms\n" {
		t.Errorf("config set output = %q", out)
	}
	if _, err := os.Stat(filepath.Join(home, ".neurogrid", "config.yaml")); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	out, err = execute(t, "config", "get", "neuron.refractory")
	if err != nil {
		t.Fatalf("config get error = %v", err)
	}
	if out != "neuron.refractory = 250ms\n" {
		t.Errorf("config get after set = %q", out)
	}

	// Other settings keep their defaults.
	out, _ = execute(t, "config", "get", "neuron.max_level")
	if out != "neuron.max_level = 10000\n" {
		t.Errorf("config get max_level = %q", out)
	}
}

func TestConfigSet_Rejected(t *testing.T) {
	home := isolateHome(t)

	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown key", "neuron.colour", "blue"},
		{"fails validation", "neuron.age_step", "0"},
		{"wrong type", "neuron.max_level", "lots"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, "config", "set", tt.key, tt.value)
			if err != nil {
				t.Fatalf("config set error = %v", err)
			}
			if !strings.HasPrefix(out, "Error:") {
				t.Errorf("output = %q, want an error message", out)
			}
		})
	}

	if _, err := os.Stat(filepath.Join(home, ".neurogrid", "config.yaml")); !os.IsNotExist(err) {
		t.Error("rejected set should not write a config file")
	}
}

func TestConfigList(t *testing.T) {
	isolateHome(t)

	out, err := execute(t, "config", "list")
	if err != nil {
		t.Fatalf("config list error = %v", err)
	}
	for _, want := range []string{"neuron.firing_threshold:", "random.seed:", "store.path:", "(default)"} {
		if !strings.Contains(out, want) {
			t.Errorf("config list output missing %q:\n%s", want, out)
		}
	}
}

func TestRunAndSnapshots(t *testing.T) {
	isolateHome(t)
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	scenario := writeScenario(t, pairScenario)

	out, err := execute(t, "run", scenario, "--db", dbPath, "--json")
	if err != nil {
		t.Fatalf("run error = %v", err)
	}
	var result simulation.Result
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("invalid run JSON %q: %v", out, err)
	}
	if len(result.Steps) != 2 {
		t.Fatalf("steps = %d, want 2", len(result.Steps))
	}
	if result.Steps[0].Stats != (brain.Stats{Fired: 2, Dropped: 1}) {
		t.Errorf("step 1 stats = %+v", result.Steps[0].Stats)
	}
	if result.Population != 2 || result.Seed != 1 {
		t.Errorf("population/seed = %d/%d, want 2/1", result.Population, result.Seed)
	}

	out, err = execute(t, "snapshots", "--db", dbPath, "--json")
	if err != nil {
		t.Fatalf("snapshots error = %v", err)
	}
	var listing struct {
		Runs  []store.Run `json:"runs"`
		Count int         `json:"count"`
	}
	if err := json.Unmarshal([]byte(out), &listing); err != nil {
		t.Fatalf("invalid snapshots JSON %q: %v", out, err)
	}
	if listing.Count != 1 || listing.Runs[0].ID != result.RunID || listing.Runs[0].Snapshots != 2 {
		t.Errorf("listing = %+v", listing)
	}

	out, err = execute(t, "snapshots", "--db", dbPath, "--run", result.RunID, "--neurons", "--json")
	if err != nil {
		t.Fatalf("snapshots --run error = %v", err)
	}
	var detail struct {
		Snapshots []store.Snapshot `json:"snapshots"`
	}
	if err := json.Unmarshal([]byte(out), &detail); err != nil {
		t.Fatalf("invalid snapshot JSON %q: %v", out, err)
	}
	if len(detail.Snapshots) != 2 {
		t.Fatalf("snapshots = %d, want 2", len(detail.Snapshots))
	}
	last := detail.Snapshots[1]
	if last.Label != "reward all 3" || len(last.Neurons) != 2 || last.Neurons[0].Importance != 34 {
		t.Errorf("last snapshot = %+v", last)
	}

	out, err = execute(t, "snapshots", "--db", dbPath, "--run", result.RunID)
	if err != nil {
		t.Fatalf("snapshots text error = %v", err)
	}
	if !strings.Contains(out, "stimulate (1,1,1)=100") {
		t.Errorf("snapshots text output missing step label:\n%s", out)
	}
}

func TestRun_TextOutput(t *testing.T) {
	isolateHome(t)
	scenario := writeScenario(t, pairScenario)

	out, err := execute(t, "run", scenario, "--db", store.MemoryPath, "--seed", "9")
	if err != nil {
		t.Fatalf("run error = %v", err)
	}
	for _, want := range []string{"seed 9", "STEP", "reward all 3", "Totals:"} {
		if !strings.Contains(out, want) {
			t.Errorf("run output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Snapshots saved") {
		t.Error("in-memory run should not report a saved database")
	}
}

func TestRun_Errors(t *testing.T) {
	isolateHome(t)

	if _, err := execute(t, "run", filepath.Join(t.TempDir(), "missing.yaml"), "--db", store.MemoryPath); err == nil {
		t.Error("expected error for missing scenario")
	}

	bad := writeScenario(t, "name: bad\nneurons: [{x: 9, y: 9, z: 9}]\ngrid: {x: 3, y: 3, z: 3}\n")
	if _, err := execute(t, "run", bad, "--db", store.MemoryPath); err == nil {
		t.Error("expected error for out-of-bounds neuron")
	}

	if _, err := execute(t, "run"); err == nil {
		t.Error("expected error without a scenario argument")
	}
}

func TestSnapshots_UnknownRun(t *testing.T) {
	isolateHome(t)
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	out, err := execute(t, "snapshots", "--db", dbPath)
	if err != nil {
		t.Fatalf("snapshots error = %v", err)
	}
	if out != "No runs recorded.\n" {
		t.Errorf("empty listing = %q", out)
	}

	if _, err := execute(t, "snapshots", "--db", dbPath, "--run", "nope"); err == nil {
		t.Error("expected error for unknown run")
	}
}

func TestExportImport(t *testing.T) {
	home := isolateHome(t)
	srcDB := filepath.Join(t.TempDir(), "src.db")
	dstDB := filepath.Join(t.TempDir(), "dst.db")
	scenario := writeScenario(t, pairScenario)

	out, err := execute(t, "run", scenario, "--db", srcDB, "--json")
	if err != nil {
		t.Fatalf("run error = %v", err)
	}
	var result simulation.Result
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("invalid run JSON: %v", err)
	}

	archivePath := filepath.Join(t.TempDir(), "pair.ngrun")
	out, err = execute(t, "export", result.RunID, "--db", srcDB, "-o", archivePath)
	if err != nil {
		t.Fatalf("export error = %v", err)
	}
	if !strings.Contains(out, "(2 snapshots)") {
		t.Errorf("export output = %q", out)
	}

	out, err = execute(t, "import", archivePath, "--db", dstDB)
	if err != nil {
		t.Fatalf("import error = %v", err)
	}
	if out != "Imported run "+result.RunID+" (2 snapshots)\n" {
		t.Errorf("import output = %q", out)
	}
	if _, err := execute(t, "import", archivePath, "--db", dstDB); err == nil {
		t.Error("importing the same run twice should fail")
	}

	// Without -o the archive lands in ~/.neurogrid/archives.
	if _, err := execute(t, "export", result.RunID, "--db", dstDB); err != nil {
		t.Fatalf("default export error = %v", err)
	}
	matches, _ := filepath.Glob(filepath.Join(home, ".neurogrid", "archives", "*.ngrun"))
	if len(matches) != 1 {
		t.Errorf("default archives = %v, want one file", matches)
	}

	if _, err := execute(t, "export", "nope", "--db", dstDB, "-o", archivePath); err == nil {
		t.Error("exporting an unknown run should fail")
	}
}

func TestRun_Graph(t *testing.T) {
	isolateHome(t)
	scenario := writeScenario(t, pairScenario)
	graphPath := filepath.Join(t.TempDir(), "final.dot")

	if _, err := execute(t, "run", scenario, "--db", store.MemoryPath, "--graph", graphPath); err != nil {
		t.Fatalf("run error = %v", err)
	}
	data, err := os.ReadFile(graphPath)
	if err != nil {
		t.Fatalf("graph not written: %v", err)
	}
	dot := string(data)
	for _, want := range []string{"digraph neurogrid", `"(1,1,1)" -> "(1,1,2)"`, `"(1,1,2)" -> "(1,1,1)"`} {
		if !strings.Contains(dot, want) {
			t.Errorf("graph missing %s:\n%s", want, dot)
		}
	}

	if _, err := execute(t, "run", scenario, "--db", store.MemoryPath, "--graph", graphPath, "--graph-format", "svg"); err == nil {
		t.Error("expected error for unknown graph format")
	}
}
