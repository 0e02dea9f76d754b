package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nvandessel/neurogrid/internal/config"
	"github.com/nvandessel/neurogrid/internal/logging"
	"github.com/nvandessel/neurogrid/internal/simulation"
	"github.com/nvandessel/neurogrid/internal/store"
	"github.com/nvandessel/neurogrid/internal/visualization"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scenario and record a snapshot after every step",
		Long: `Run a scenario file against a fresh brain.

The scenario names the grid, the seed neurons and a list of steps
(stimulate, train, remove, rest). A snapshot of every neuron is stored
after each step; list them with 'neurogrid snapshots'.

Examples:
  neurogrid run demo.yaml
  neurogrid run demo.yaml --seed 42 --json
  neurogrid run demo.yaml --db :memory:
  neurogrid run demo.yaml --graph final.dot`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			seed, _ := cmd.Flags().GetUint64("seed")
			graphPath, _ := cmd.Flags().GetString("graph")
			graphFormat, _ := cmd.Flags().GetString("graph-format")

			var format visualization.Format
			if graphPath != "" {
				f, err := visualization.ParseFormat(graphFormat)
				if err != nil {
					return err
				}
				format = f
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			sc, err := simulation.LoadScenario(args[0])
			if err != nil {
				return err
			}
			if seed != 0 {
				sc.Seed = seed
			}

			dbPath, err := resolveDBPath(cmd, cfg)
			if err != nil {
				return err
			}
			s, err := store.Open(dbPath)
			if err != nil {
				return fmt.Errorf("failed to open snapshot store: %w", err)
			}
			defer s.Close()

			logger := logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
			events := logging.NewEventLogger(eventDir(cfg), cfg.Logging.Level)
			defer events.Close()

			runner := simulation.NewRunner(simulation.Options{
				Params: cfg.Neuron.Params(),
				Grid:   cfg.Grid,
				Seed:   cfg.Random.Seed,
				Store:  s,
				Logger: logger,
				Events: events,
			})

			result, err := runner.Run(cmd.Context(), sc)
			if err != nil {
				return fmt.Errorf("run failed: %w", err)
			}

			if graphPath != "" {
				data, err := visualization.Render(result.Final, format)
				if err != nil {
					return err
				}
				if err := os.WriteFile(graphPath, data, 0600); err != nil {
					return fmt.Errorf("failed to write graph: %w", err)
				}
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(result)
			}

			name := result.Scenario
			if name == "" {
				name = args[0]
			}
			fmt.Fprintf(out, "Run %s: %s on %s grid, seed %d\n\n", result.RunID, name, result.Grid, result.Seed)
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STEP\tACTION\tFIRED\tDROPPED\tBORN\tDIED\tLIVE")
			for _, sr := range result.Steps {
				fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\t%d\t%d\n", sr.Index, sr.Label,
					sr.Stats.Fired, sr.Stats.Dropped, sr.Stats.Born, sr.Stats.Died, sr.Population)
			}
			w.Flush()
			fmt.Fprintf(out, "\nTotals: fired %d, dropped %d, born %d, died %d; %d live neurons\n",
				result.Totals.Fired, result.Totals.Dropped, result.Totals.Born, result.Totals.Died, result.Population)
			if dbPath != store.MemoryPath {
				fmt.Fprintf(out, "Snapshots saved to %s\n", dbPath)
			}
			if graphPath != "" {
				fmt.Fprintf(out, "Final network written to %s\n", graphPath)
			}
			return nil
		},
	}

	cmd.Flags().Uint64("seed", 0, "Override the scenario's random seed")
	cmd.Flags().String("graph", "", "Write the final network to this file")
	cmd.Flags().String("graph-format", "dot", "Graph file format: dot or json")

	return cmd
}

// eventDir is where events.jsonl goes: the configured directory, else
// ~/.neurogrid.
func eventDir(cfg *config.NeurogridConfig) string {
	if cfg.Logging.Dir != "" {
		return cfg.Logging.Dir
	}
	dir, err := config.Dir()
	if err != nil {
		return "."
	}
	return dir
}
