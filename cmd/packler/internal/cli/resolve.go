package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/packler/pkg/manifest"
)

var resolveFlags struct {
	path bool
}

var resolveCmd = &cobra.Command{
	Use:   "resolve NAME...",
	Short: "Print the public URL of logical asset names",
	Long: `Looks up logical names in the published manifest and prints their
URLs with the public prefix applied, one per line. With --path the hashed
output path is printed instead.

  $ packler resolve css/style.css
  /static/css/style.1a2b3c4d5e6f7a8b.css`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		m, err := manifest.Load(cfg.ManifestFile())
		if err != nil {
			return fmt.Errorf("failed to load manifest (run 'packler build' first): %w", err)
		}
		for _, name := range args {
			var ref string
			if resolveFlags.path {
				ref, err = m.Resolve(name)
			} else {
				ref, err = m.URL(name)
			}
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), ref)
		}
		return nil
	},
}

func init() {
	resolveCmd.Flags().BoolVar(&resolveFlags.path, "path", false,
		"Print the hashed path relative to the output directory")

	rootCmd.AddCommand(resolveCmd)
}
