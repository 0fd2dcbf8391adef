package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/packler/pkg/deploy"
)

var deployFlags struct {
	target      string
	concurrency int
}

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Build, then upload the output to a target directory",
	Long: `Builds the assets, then mirrors the output into the target directory
(a mounted bucket or a CDN origin). Hashed files already present in the
target are skipped; the manifest is uploaded last.`,
	RunE: runDeploy,
}

func init() {
	deployCmd.Flags().StringVar(&deployFlags.target, "target", "",
		"Target directory (default: deploy.target from config)")
	deployCmd.Flags().IntVar(&deployFlags.concurrency, "concurrency", 0,
		"Parallel uploads (default: from config)")

	rootCmd.AddCommand(deployCmd)
}

func runDeploy(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	target := cfg.Deploy.Target
	if deployFlags.target != "" {
		target = deployFlags.target
	}
	if target == "" {
		return errors.New("no deploy target: pass --target or set deploy.target")
	}
	concurrency := cfg.Deploy.Concurrency
	if deployFlags.concurrency > 0 {
		concurrency = deployFlags.concurrency
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

	up, err := deploy.Deploy(ctx, &deploy.DirUploader{Root: target}, res.Manifest, deploy.Options{
		Dir:          cfg.DistDir(),
		ManifestName: cfg.Output.Manifest,
		Concurrency:  concurrency,
	})
	if err != nil {
		return fmt.Errorf("deploy failed: %w", err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deployed to %s (%d uploaded, %d skipped)\n", target, up.Uploaded, up.Skipped)
	return nil
}
