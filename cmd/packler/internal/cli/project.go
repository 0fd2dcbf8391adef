package cli

import (
	"context"
	"errors"
	"io"

	"github.com/albertocavalcante/packler/cmd/packler/internal/incremental"
	"github.com/albertocavalcante/packler/internal/log"
	"github.com/albertocavalcante/packler/pkg/assets"
	"github.com/albertocavalcante/packler/pkg/config"
	"github.com/albertocavalcante/packler/pkg/stages"
	"github.com/albertocavalcante/packler/pkg/tools"
)

// loadConfig loads the layered configuration, or only the file named by
// --config.
func loadConfig() (*config.Config, error) {
	if globalFlags.configFile != "" {
		return config.LoadFile(globalFlags.configFile)
	}
	return config.Load(), nil
}

// project ties a loaded config to its pipeline, stages and source index.
type project struct {
	cfg      *config.Config
	pipeline *assets.Pipeline
	stages   []assets.Stage
	tracker  *incremental.Tracker
}

func newTracker(cfg *config.Config) *incremental.Tracker {
	return incremental.NewTracker(cfg.SourceDir(), cfg.StateDir(), cfg.IgnoredDirs())
}

// openProject builds the pipeline described by cfg. Close releases the
// stages.
func openProject(cfg *config.Config, observers ...assets.Observer) (*project, error) {
	st, err := stages.FromConfig(cfg, tools.NewFinder())
	if err != nil {
		return nil, err
	}
	p := assets.New(assets.Options{
		SourceDir:    cfg.SourceDir(),
		OutputDir:    cfg.DistDir(),
		ManifestName: cfg.Output.Manifest,
		PublicPrefix: cfg.Output.PublicPrefix,
		Workers:      cfg.WorkerCount(),
		Incremental:  cfg.IncrementalEnabled(),
		Ignore:       cfg.IgnoredDirs(),
		Stages:       st,
		Observers:    append([]assets.Observer{traceState}, observers...),
	})
	return &project{cfg: cfg, pipeline: p, stages: st, tracker: newTracker(cfg)}, nil
}

func traceState(from, to assets.State) {
	log.Trace("pipeline state", "from", from, "to", to)
}

// build runs the pipeline and, on success, records the consumed sources
// so status can report what changed since.
func (p *project) build(ctx context.Context) (*assets.BuildResult, error) {
	res, err := p.pipeline.Build(ctx)
	if err != nil {
		return nil, err
	}
	digest, err := incremental.HashFile(p.pipeline.ManifestPath())
	if err == nil {
		err = p.tracker.Refresh(ctx, digest)
	}
	if err != nil {
		log.Component("cli").Warnw("failed to record source index", "error", err)
	}
	return res, nil
}

// Close releases stages that hold resources, such as parsers.
func (p *project) Close() error {
	var errs []error
	for _, s := range p.stages {
		if c, ok := s.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
