package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var statusFlags struct {
	verbose bool
	json    bool
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which sources changed since the last build",
	Long: `Compares the assets directory against the sources recorded by the
last successful build.

The --verbose flag lists individual changes (new, modified, deleted).
The --json flag outputs the result as JSON for scripting.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusFlags.verbose, "verbose", false,
		"Show individual file changes")
	statusCmd.Flags().BoolVar(&statusFlags.json, "json", false,
		"Output as JSON")

	rootCmd.AddCommand(statusCmd)
}

// StatusOutput is the JSON output format for packler status.
type StatusOutput struct {
	Stale         bool     `json:"stale"`
	StaleDirs     []string `json:"stale_dirs"`
	NewFiles      []string `json:"new_files,omitempty"`
	ModifiedFiles []string `json:"modified_files,omitempty"`
	DeletedFiles  []string `json:"deleted_files,omitempty"`
	Error         string   `json:"error,omitempty"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	tracker := newTracker(cfg)

	if !tracker.HasState() {
		if statusFlags.json {
			return outputJSON(out, StatusOutput{
				Stale:     true,
				StaleDirs: []string{"."},
				Error:     "no state found",
			})
		}
		_, _ = fmt.Fprintln(out, "No state found. Run 'packler build' to create initial state.")
		return nil
	}

	cs, err := tracker.Status(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to detect changes: %w", err)
	}

	if statusFlags.json {
		return outputJSON(out, StatusOutput{
			Stale:         !cs.IsEmpty(),
			StaleDirs:     cs.AffectedDirs(),
			NewFiles:      cs.Added,
			ModifiedFiles: cs.Modified,
			DeletedFiles:  cs.Deleted,
		})
	}

	if cs.IsEmpty() {
		_, _ = fmt.Fprintf(out, "Assets are up to date (%d sources)\n", tracker.TrackedCount())
		return nil
	}

	dirs := cs.AffectedDirs()
	_, _ = fmt.Fprintf(out, "Changed directories (%d):\n", len(dirs))
	for _, dir := range dirs {
		_, _ = fmt.Fprintf(out, "  %s\n", dir)
	}

	if statusFlags.verbose {
		printNames(out, "New files", "+", cs.Added)
		printNames(out, "Modified files", "~", cs.Modified)
		printNames(out, "Deleted files", "-", cs.Deleted)
	}

	_, _ = fmt.Fprintln(out, "\nRun 'packler build' to update the output")
	return nil
}

func printNames(w io.Writer, title, mark string, names []string) {
	if len(names) == 0 {
		return
	}
	_, _ = fmt.Fprintf(w, "\n%s (%d):\n", title, len(names))
	for _, n := range names {
		_, _ = fmt.Fprintf(w, "  %s %s\n", mark, n)
	}
}

func outputJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
