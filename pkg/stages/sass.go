package stages

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/albertocavalcante/packler/internal/log"
	"github.com/albertocavalcante/packler/pkg/assets"
)

// SassName is the name of the sass stage.
const SassName = "sass"

// Compiler runs the external sass binary. *tools.Runner implements it.
type Compiler interface {
	Run(ctx context.Context, dir string, args ...string) ([]byte, error)
	Version(ctx context.Context) (string, error)
}

// Sass compiles Sass and SCSS sources into CSS before references are
// resolved. Compiled assets take the .css logical name and keep the
// source name as an alias. Partials and non-entrypoints are dropped.
type Sass struct {
	Compiler Compiler

	// Dir is the stylesheet directory, relative to the assets directory,
	// that Entrypoints are relative to.
	Dir string

	// Entrypoints lists the stylesheets to compile. Empty means every
	// non-partial Sass source.
	Entrypoints []string

	// Style is passed to --style. Empty means "expanded".
	Style string

	// Version is the expected compiler version; a mismatch is logged.
	Version string

	// IntermediateDir receives the compiler output.
	IntermediateDir string

	Workers int
}

var _ assets.Stage = (*Sass)(nil)

func (s *Sass) Name() string        { return SassName }
func (s *Sass) Phase() assets.Phase { return assets.PreResolve }

func (s *Sass) Process(ctx context.Context, in []*assets.Asset) ([]*assets.Asset, error) {
	logger := log.Component("sass")

	entrypoints, err := s.entrypoints(in)
	if err != nil {
		return nil, err
	}

	var out, compile []*assets.Asset
	for _, a := range in {
		switch {
		case a.Kind != assets.KindSass:
			out = append(out, a)
		case entrypoints[a.Name]:
			compile = append(compile, a)
			out = append(out, a)
		default:
			logger.Debugw("skipping sass source", "asset", a.Name)
		}
	}
	if len(compile) == 0 {
		return out, nil
	}

	s.checkVersion(ctx)

	g, gctx := errgroup.WithContext(ctx)
	if s.Workers > 0 {
		g.SetLimit(s.Workers)
	}
	for _, a := range compile {
		g.Go(func() error {
			if err := s.compile(gctx, a); err != nil {
				return &assets.BuildError{Stage: SassName, Asset: a.Name, Err: err}
			}
			logger.Infow("compiled stylesheet", "source", a.Source, "asset", a.Name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// entrypoints returns the logical names of the sources to compile.
func (s *Sass) entrypoints(in []*assets.Asset) (map[string]bool, error) {
	out := make(map[string]bool)
	if len(s.Entrypoints) == 0 {
		for _, a := range in {
			if a.Kind == assets.KindSass && !isPartial(a.Name) {
				out[a.Name] = true
			}
		}
		return out, nil
	}

	for _, ep := range s.Entrypoints {
		name := path.Join(s.Dir, filepath.ToSlash(ep))
		found := slices.ContainsFunc(in, func(a *assets.Asset) bool {
			return a.Name == name && a.Kind == assets.KindSass
		})
		if !found {
			return nil, &assets.BuildError{Stage: SassName, Asset: name, Err: fmt.Errorf("entrypoint %q does not exist", ep)}
		}
		out[name] = true
	}
	return out, nil
}

func (s *Sass) compile(ctx context.Context, a *assets.Asset) error {
	name := strings.TrimSuffix(a.Name, path.Ext(a.Name)) + ".css"
	dst := filepath.Join(s.IntermediateDir, "sass", filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("creating intermediate directory: %w", err)
	}

	style := s.Style
	if style == "" {
		style = "expanded"
	}
	args := []string{"--no-source-map", "--style=" + style, a.Path, dst}
	if _, err := s.Compiler.Run(ctx, "", args...); err != nil {
		return err
	}

	css, err := os.ReadFile(dst)
	if err != nil {
		return fmt.Errorf("reading compiled stylesheet: %w", err)
	}
	a.Name = name
	a.Kind = assets.KindCSS
	a.Content = css
	a.Path = dst
	return nil
}

func (s *Sass) checkVersion(ctx context.Context) {
	if s.Version == "" {
		return
	}
	v, err := s.Compiler.Version(ctx)
	if err != nil {
		log.Component("sass").Debugw("could not determine sass version", "error", err)
		return
	}
	if !strings.HasPrefix(v, s.Version) {
		log.Component("sass").Warnw("sass version differs from configuration", "want", s.Version, "got", v)
	}
}

func isPartial(name string) bool {
	return strings.HasPrefix(path.Base(name), "_")
}
