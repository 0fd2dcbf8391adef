package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove build output and state",
	Long: `Removes the output directory, the compiler scratch directory and the
recorded source index. The next build starts from scratch.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		for _, dir := range []string{cfg.DistDir(), cfg.IntermediateDir()} {
			if err := os.RemoveAll(dir); err != nil {
				return fmt.Errorf("failed to remove %s: %w", dir, err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", dir)
		}
		if err := newTracker(cfg).Clear(); err != nil {
			return fmt.Errorf("failed to clear state: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}
