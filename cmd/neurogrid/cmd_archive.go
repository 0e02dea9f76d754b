package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/neurogrid/internal/archive"
	"github.com/nvandessel/neurogrid/internal/store"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Write a recorded run and its snapshots to an archive file",
		Long: `Export a run and every snapshot it recorded to a compressed archive.

Without --output the archive goes to ~/.neurogrid/archives/ and only the
newest --keep archives there are retained.

Examples:
  neurogrid export 7f0c...
  neurogrid export 7f0c... -o pair.ngrun`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			output, _ := cmd.Flags().GetString("output")
			keep, _ := cmd.Flags().GetInt("keep")
			runID := args[0]

			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			rotateDir := ""
			if output == "" {
				dir, err := archive.DefaultDir()
				if err != nil {
					return err
				}
				output = archive.GeneratePath(dir, runID, time.Now())
				rotateDir = dir
			}

			header, err := archive.Export(cmd.Context(), s, runID, output)
			if err != nil {
				return fmt.Errorf("export failed: %w", err)
			}

			var rotated []string
			if rotateDir != "" && keep > 0 {
				if rotated, err = archive.Rotate(rotateDir, keep); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"path":      output,
					"run_id":    header.RunID,
					"snapshots": header.Snapshots,
					"checksum":  header.Checksum,
					"rotated":   len(rotated),
				})
			}
			fmt.Fprintf(out, "Exported run %s (%d snapshots) to %s\n", header.RunID, header.Snapshots, output)
			if len(rotated) > 0 {
				fmt.Fprintf(out, "Removed %d old archive(s) from %s\n", len(rotated), filepath.Dir(output))
			}
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "", "Archive file to write")
	cmd.Flags().Int("keep", 10, "Archives to retain in the default directory (0 keeps all)")

	return cmd
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <archive>",
		Short: "Restore a run from an archive file",
		Long: `Import a run exported with 'neurogrid export' into the snapshot database.
A run that is already present is not overwritten.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := archive.Import(cmd.Context(), s, args[0])
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(result)
			}
			fmt.Fprintf(out, "Imported run %s (%d snapshots)\n", result.RunID, result.Snapshots)
			return nil
		},
	}
}

// openStore opens the snapshot store selected by --db and the config.
func openStore(cmd *cobra.Command) (store.SnapshotStore, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	dbPath, err := resolveDBPath(cmd, cfg)
	if err != nil {
		return nil, err
	}
	s, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}
	return s, nil
}
