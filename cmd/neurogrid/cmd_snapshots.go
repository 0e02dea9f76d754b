package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/neurogrid/internal/brain"
	"github.com/nvandessel/neurogrid/internal/store"
)

func newSnapshotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List recorded runs or the snapshots of one run",
		Long: `Without --run, list every recorded run. With --run, list the snapshots
of that run; add --neurons to include every neuron of every snapshot.

Examples:
  neurogrid snapshots
  neurogrid snapshots --run 7f0c... --neurons
  neurogrid snapshots --run 7f0c... --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			runID, _ := cmd.Flags().GetString("run")
			showNeurons, _ := cmd.Flags().GetBool("neurons")

			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if runID == "" {
				runs, err := s.ListRuns(ctx)
				if err != nil {
					return err
				}
				if jsonOut {
					if runs == nil {
						runs = []store.Run{}
					}
					return json.NewEncoder(out).Encode(map[string]interface{}{
						"runs":  runs,
						"count": len(runs),
					})
				}
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded.")
					return nil
				}
				w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "RUN\tSCENARIO\tGRID\tSEED\tSTEPS\tSTARTED")
				for _, r := range runs {
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n", r.ID, r.Scenario, r.Grid, r.Seed,
						r.Snapshots, r.StartedAt.Local().Format(time.DateTime))
				}
				return w.Flush()
			}

			snaps, err := s.GetSnapshots(ctx, runID)
			if err != nil {
				return err
			}
			if !showNeurons {
				for i := range snaps {
					snaps[i].Neurons = nil
				}
			}
			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"run_id":    runID,
					"snapshots": snaps,
					"count":     len(snaps),
				})
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STEP\tACTION\tFIRED\tDROPPED\tBORN\tDIED")
			for _, snap := range snaps {
				c := snap.Counters
				fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\t%d\n", snap.Step, snap.Label, c.Fired, c.Dropped, c.Born, c.Died)
				if showNeurons {
					for _, n := range snap.Neurons {
						fmt.Fprintf(w, "\t  %s %s\t%s\n", n.Kind, n.Position, describeNeuron(n))
					}
				}
			}
			return w.Flush()
		},
	}

	cmd.Flags().String("run", "", "Run ID to show snapshots for")
	cmd.Flags().Bool("neurons", false, "Include per-neuron records")

	return cmd
}

func describeNeuron(n store.NeuronRecord) string {
	if n.Kind == brain.KindPrimary {
		return "boundary"
	}
	state := "ready"
	if !n.CanFire {
		state = "refractory"
	}
	return fmt.Sprintf("importance=%d age=%d recipients=%d/%d blacklisted=%d %s",
		n.Importance, n.Age, n.Recipients, n.Candidates, n.Blacklisted, state)
}
