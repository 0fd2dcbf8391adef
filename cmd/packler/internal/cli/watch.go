package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/packler/cmd/packler/internal/watch"
	"github.com/albertocavalcante/packler/pkg/assets"
	"github.com/albertocavalcante/packler/pkg/config"
)

var watchFlags struct {
	debounce int
	verbose  bool
	json     bool
	noColor  bool
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rebuild assets whenever sources change",
	Long: `Builds once, then watches the assets directory and rebuilds after
every burst of changes. A change that arrives during a build cancels it and
starts over; the output directory only ever holds a complete build.

Example output:

  $ packler watch

  packler: watching 4 directories in /srv/app/assets
  packler: ready

  [14:32:15] building...
  [14:32:15] ✓ built 12 assets in 84ms (12 written, 0 reused)
  [14:32:40] css/style.scss changed, building...
  [14:32:41] ✓ built 12 assets in 310ms (2 written, 10 reused)

Press Ctrl+C to stop watching.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return watchProject(cmd, cfg)
	},
}

func init() {
	watchCmd.Flags().IntVar(&watchFlags.debounce, "debounce", 0,
		"Debounce window in milliseconds (default: from config)")
	watchCmd.Flags().BoolVar(&watchFlags.verbose, "verbose", false,
		"Show file-level changes")
	watchCmd.Flags().BoolVar(&watchFlags.json, "json", false,
		"Stream JSON events (for tooling integration)")
	watchCmd.Flags().BoolVar(&watchFlags.noColor, "no-color", false,
		"Disable colored output")

	rootCmd.AddCommand(watchCmd)
}

func watchProject(cmd *cobra.Command, cfg *config.Config) error {
	// Include SIGHUP to handle terminal hangup
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	logger := watch.NewLogger(watch.LoggerConfig{
		Writer:  cmd.OutOrStdout(),
		Verbose: watchFlags.verbose,
		NoColor: watchFlags.noColor,
		JSON:    watchFlags.json,
	})

	p, err := openProject(cfg, logger.StateChanged)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	debounce := cfg.Watch.Debounce
	if watchFlags.debounce > 0 {
		debounce = watchFlags.debounce
	}

	w, err := watch.New(watch.Config{
		Root:     cfg.SourceDir(),
		Ignore:   cfg.IgnoredDirs(),
		Debounce: time.Duration(debounce) * time.Millisecond,
		Build: func(ctx context.Context) (*assets.BuildResult, error) {
			return p.build(ctx)
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	return w.Run(ctx)
}
