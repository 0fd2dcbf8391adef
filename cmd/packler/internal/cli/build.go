package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/packler/pkg/assets"
)

var buildFlags struct {
	watch         bool
	noIncremental bool
	workers       int
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build hashed assets and the manifest",
	Long: `Builds every asset under the assets directory into the output
directory and writes the manifest.

Outputs whose fingerprint did not change are carried over from the previous
build unless --no-incremental is given. The output directory is replaced
atomically; a failed or interrupted build leaves it untouched.

With --watch, packler keeps running and rebuilds on every change.`,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().BoolVar(&buildFlags.watch, "watch", false,
		"Rebuild when sources change")
	buildCmd.Flags().BoolVar(&buildFlags.noIncremental, "no-incremental", false,
		"Rewrite every output file")
	buildCmd.Flags().IntVar(&buildFlags.workers, "workers", 0,
		"Worker count (default: number of CPUs)")

	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if buildFlags.noIncremental {
		off := false
		cfg.Build.Incremental = &off
	}
	if buildFlags.workers > 0 {
		cfg.Build.Workers = buildFlags.workers
	}

	if buildFlags.watch {
		return watchProject(cmd, cfg)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	p, err := openProject(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	res, err := p.build(ctx)
	if err != nil {
		return err
	}
	printResult(cmd.OutOrStdout(), res)
	return nil
}

func printResult(w io.Writer, res *assets.BuildResult) {
	if res.Unchanged {
		_, _ = fmt.Fprintf(w, "%d assets up to date\n", res.Manifest.Len())
		return
	}
	_, _ = fmt.Fprintf(w, "built %d assets in %s (%d written, %d reused)\n",
		res.Manifest.Len(), res.Duration.Round(time.Millisecond), res.Written, res.Reused)
}
