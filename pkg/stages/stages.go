// Package stages provides the built-in pipeline stages: sass compilation
// before resolution, tree-sitter syntax checks before hashing and
// precompressed sidecars after rewriting.
package stages

import (
	"github.com/albertocavalcante/packler/pkg/assets"
	"github.com/albertocavalcante/packler/pkg/config"
	"github.com/albertocavalcante/packler/pkg/tools"
)

// FromConfig returns the stages enabled in cfg, in registration order.
// finder locates the sass binary; cfg.Sass.Binary takes precedence.
func FromConfig(cfg *config.Config, finder *tools.Finder) ([]assets.Stage, error) {
	var out []assets.Stage

	if cfg.SassEnabled() {
		if finder == nil {
			finder = tools.NewFinder()
		}
		if cfg.Sass.Binary != "" {
			finder = tools.NewFinder(tools.WithPath(SassName, cfg.Sass.Binary))
		}
		out = append(out, &Sass{
			Compiler:        tools.NewRunner(finder, SassName),
			Dir:             cfg.Assets.SassDir,
			Entrypoints:     cfg.Sass.Entrypoints,
			Style:           cfg.Sass.Style,
			Version:         cfg.Sass.Version,
			IntermediateDir: cfg.IntermediateDir(),
			Workers:         cfg.WorkerCount(),
		})
	}

	if cfg.SyntaxCheckEnabled() {
		out = append(out, &Syntax{Workers: cfg.WorkerCount()})
	}

	if cfg.CompressEnabled() {
		var formats []Format
		for _, name := range cfg.Compress.Formats {
			f, err := ParseFormat(name)
			if err != nil {
				return nil, err
			}
			formats = append(formats, f)
		}
		if len(formats) > 0 {
			out = append(out, &Compress{
				Formats: formats,
				MinSize: cfg.Compress.MinSize,
				Workers: cfg.WorkerCount(),
			})
		}
	}

	return out, nil
}
