package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/albertocavalcante/packler/internal/log"
	"github.com/albertocavalcante/packler/pkg/manifest"
)

// Stage names used in BuildError for the pipeline's own steps.
const (
	StageEnumerate = "enumerate"
	StageResolve   = "resolve"
	StageHash      = "hash"
	StageRewrite   = "rewrite"
	StageWrite     = "write"
	StagePublish   = "publish"
)

// Options configures a Pipeline.
type Options struct {
	// SourceDir holds the source assets.
	SourceDir string

	// OutputDir is the published directory. It is replaced as a whole.
	OutputDir string

	// ManifestName is the manifest file name inside OutputDir.
	// Defaults to "assets.json".
	ManifestName string

	// PublicPrefix is prepended to rewritten references and manifest URLs.
	PublicPrefix string

	// Workers bounds per-asset parallelism. Zero means runtime.NumCPU().
	Workers int

	// Incremental reuses outputs whose fingerprint did not change.
	Incremental bool

	// Ignore lists directory name prefixes skipped during enumeration.
	Ignore []string

	// Stages are the registered hooks, run in order within their phase.
	Stages []Stage

	// Observers are notified of every pipeline state change.
	Observers []Observer
}

// BuildResult summarizes a successful build.
type BuildResult struct {
	Manifest *manifest.Manifest

	// Order lists the logical names in dependency order.
	Order []string

	// Written counts files written, Reused counts outputs carried over
	// from the previous build.
	Written int
	Reused  int

	// Unchanged is set when the previous output already matched and
	// nothing was written.
	Unchanged bool

	Duration time.Duration
}

// Pipeline builds an output directory from a source directory.
type Pipeline struct {
	opts Options
}

// New creates a pipeline.
func New(opts Options) *Pipeline {
	if opts.ManifestName == "" {
		opts.ManifestName = "assets.json"
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Pipeline{opts: opts}
}

// ManifestPath returns the path of the published manifest.
func (p *Pipeline) ManifestPath() string {
	return filepath.Join(p.opts.OutputDir, p.opts.ManifestName)
}

// Build runs one build. On any failure or cancellation the previous
// output directory is left untouched and no staging directory remains.
func (p *Pipeline) Build(ctx context.Context) (*BuildResult, error) {
	logger := log.Component("pipeline")
	start := time.Now()

	sm := NewStateMachine(p.opts.Observers...)
	b := &build{Pipeline: p, sm: sm, log: logger}

	res, err := b.run(ctx)
	if err != nil {
		sm.Fail()
		logger.Debugw("build failed", "error", err, "duration", time.Since(start))
		return nil, err
	}
	res.Duration = time.Since(start)
	logger.Infow("build finished",
		"assets", len(res.Order),
		"written", res.Written,
		"reused", res.Reused,
		"unchanged", res.Unchanged,
		"duration", res.Duration,
	)
	return res, nil
}

// build holds the state of one Build call.
type build struct {
	*Pipeline
	sm       *StateMachine
	log      *zap.SugaredLogger
	previous *manifest.Manifest
}

func (b *build) run(ctx context.Context) (*BuildResult, error) {
	if err := b.sm.Transition(StateResolving); err != nil {
		return nil, err
	}

	b.previous = b.loadPrevious()

	sources, err := Enumerate(ctx, b.opts.SourceDir, b.opts.Ignore)
	if err != nil {
		return nil, wrapStage(StageEnumerate, "", err)
	}
	b.log.Debugw("enumerated sources", "count", len(sources), "dir", b.opts.SourceDir)

	sources, err = runStages(ctx, b.opts.Stages, PreResolve, sources)
	if err != nil {
		return nil, err
	}

	graph, err := b.resolve(ctx, sources)
	if err != nil {
		return nil, err
	}

	if err := b.sm.Transition(StateHashing); err != nil {
		return nil, err
	}
	if err := b.hash(ctx, graph); err != nil {
		return nil, err
	}

	if err := b.sm.Transition(StateRewriting); err != nil {
		return nil, err
	}
	if err := b.rewrite(ctx, graph); err != nil {
		return nil, err
	}

	reused := b.markReused(graph)
	var fresh []*Asset
	for _, a := range graph.Order() {
		if !a.reused {
			fresh = append(fresh, a)
		}
	}
	if _, err := runStages(ctx, b.opts.Stages, PostRewrite, fresh); err != nil {
		return nil, err
	}

	m, err := b.buildManifest(graph)
	if err != nil {
		return nil, err
	}

	res := &BuildResult{Manifest: m, Order: graph.Names(), Reused: reused}

	if err := b.sm.Transition(StateWriting); err != nil {
		return nil, err
	}
	if b.opts.Incremental && reused == graph.Len() && b.previous.Equal(m) {
		res.Unchanged = true
	} else {
		written, err := b.writeAndPublish(ctx, graph, m)
		if err != nil {
			return nil, err
		}
		res.Written = written
	}

	if err := b.sm.Transition(StateDone); err != nil {
		return nil, err
	}
	return res, nil
}

// loadPrevious reads the published manifest. A missing or unreadable
// manifest only disables reuse.
func (b *build) loadPrevious() *manifest.Manifest {
	m, err := manifest.LoadIfExists(b.ManifestPath())
	if err != nil {
		b.log.Warnw("ignoring previous manifest", "path", b.ManifestPath(), "error", err)
		return nil
	}
	return m
}

func (b *build) resolve(ctx context.Context, sources []*Asset) (*Graph, error) {
	r := &Resolver{PublicPrefix: b.opts.PublicPrefix}
	if b.previous != nil {
		r.Previous = b.previous
	}

	graph, err := r.Resolve(sources)
	if err != nil {
		return nil, wrapStage(StageResolve, "", err)
	}

	for _, s := range b.opts.Stages {
		if s.Phase() != PostResolve {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		before := dependencySets(graph)
		out, err := s.Process(ctx, graph.Order())
		if err != nil {
			return nil, wrapStage(s.Name(), "", err)
		}
		next, err := r.Resolve(out)
		if err != nil {
			return nil, wrapStage(s.Name(), "", err)
		}
		if err := checkDependencySets(s.Name(), before, next); err != nil {
			return nil, err
		}
		graph = next
	}

	b.log.Debugw("resolved dependency graph", "assets", graph.Len())
	for _, idx := range graph.order {
		if len(graph.deps[idx]) == 0 {
			continue
		}
		deps := make([]string, 0, len(graph.deps[idx]))
		for _, d := range graph.deps[idx] {
			deps = append(deps, graph.nodes[d].Name)
		}
		log.Tracew(b.log, "resolved references", "asset", graph.nodes[idx].Name, "deps", deps)
	}
	return graph, nil
}

// hash fingerprints every asset. Nodes are launched in dependency order;
// each waits on the done channels of its dependencies before hashing, so
// the pool never waits on work that cannot start.
func (b *build) hash(ctx context.Context, graph *Graph) error {
	done := make([]chan struct{}, graph.Len())
	for i := range done {
		done[i] = make(chan struct{})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Workers)
	for _, idx := range graph.order {
		g.Go(func() error {
			for _, d := range graph.deps[idx] {
				select {
				case <-done[d]:
				case <-gctx.Done():
					return gctx.Err()
				}
			}

			a := graph.nodes[idx]
			deps := make([]DepFingerprint, 0, len(graph.deps[idx]))
			for _, d := range graph.deps[idx] {
				dep := graph.nodes[d]
				deps = append(deps, DepFingerprint{Name: dep.Name, Fingerprint: dep.Fingerprint})
			}
			a.Fingerprint = ComputePrefixedFingerprint(a.Content, deps, b.opts.PublicPrefix)
			a.OutputPath = HashedPath(a.Name, a.Fingerprint)
			log.Tracew(b.log, "fingerprinted", "asset", a.Name, "fingerprint", a.Fingerprint.String(), "output", a.OutputPath)
			close(done[idx])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return wrapStage(StageHash, "", err)
	}
	return nil
}

// outputTable resolves logical names to the hashed paths of this build.
type outputTable map[string]string

func (t outputTable) Resolve(name string) (string, error) {
	if p, ok := t[name]; ok {
		return p, nil
	}
	return "", fmt.Errorf("%w: %s", manifest.ErrNotFound, name)
}

func (b *build) rewrite(ctx context.Context, graph *Graph) error {
	table := make(outputTable, graph.Len())
	for _, a := range graph.nodes {
		table[a.Name] = a.OutputPath
	}

	rw := &Rewriter{PublicPrefix: b.opts.PublicPrefix}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Workers)
	for _, a := range graph.Order() {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := rw.Rewrite(a.Name, a.Content, a.Refs, table)
			if err != nil {
				return wrapStage(StageRewrite, a.Name, err)
			}
			a.Output = out
			return nil
		})
	}
	return wrapStage(StageRewrite, "", g.Wait())
}

// markReused flags assets whose previous output, sidecars included, can be
// carried over, and returns how many there are.
func (b *build) markReused(graph *Graph) int {
	if !b.opts.Incremental || b.previous == nil {
		return 0
	}
	// Sidecars of the previous build were produced by other stages.
	if stages := sidecarStages(b.opts.Stages); !slices.Equal(b.previous.SidecarStages, stages) {
		b.log.Debugw("sidecar stages changed, rewriting all outputs",
			"previous", b.previous.SidecarStages, "current", stages)
		return 0
	}
	n := 0
	for _, a := range graph.nodes {
		prev, ok := b.previous.Lookup(a.Name)
		if !ok || prev.Fingerprint != a.Fingerprint.String() || prev.Path != a.OutputPath {
			continue
		}
		if !fileExists(b.opts.OutputDir, prev.Path) {
			continue
		}
		complete := true
		for _, s := range prev.Sidecars {
			if !fileExists(b.opts.OutputDir, s) {
				complete = false
				break
			}
		}
		if !complete {
			continue
		}
		a.reused = true
		n++
	}
	b.log.Debugw("incremental comparison", "reused", n, "total", graph.Len())
	return n
}

func (b *build) buildManifest(graph *Graph) (*manifest.Manifest, error) {
	m := manifest.New(b.opts.PublicPrefix)
	m.SidecarStages = sidecarStages(b.opts.Stages)
	for _, a := range graph.Order() {
		e := manifest.Entry{
			Path:        a.OutputPath,
			Fingerprint: a.Fingerprint.String(),
			Source:      a.Source,
			Size:        int64(len(a.Output)),
			ContentType: a.ContentType(),
		}
		if a.reused {
			prev, _ := b.previous.Lookup(a.Name)
			e.Sidecars = slices.Clone(prev.Sidecars)
		} else {
			for _, s := range a.Sidecars {
				e.Sidecars = append(e.Sidecars, a.OutputPath+s.Suffix)
			}
		}
		slices.Sort(e.Sidecars)
		if err := m.Add(a.Name, e); err != nil {
			return nil, wrapStage(StageWrite, a.Name, err)
		}
		m.AddAlias(a.Source, a.Name)
	}
	return m, nil
}

// writeAndPublish writes every output and the manifest into a staging
// directory and swaps it into place. It returns the number of files
// written.
func (b *build) writeAndPublish(ctx context.Context, graph *Graph, m *manifest.Manifest) (int, error) {
	staging, err := newStagingDir(b.opts.OutputDir)
	if err != nil {
		return 0, wrapStage(StageWrite, "", err)
	}
	published := false
	defer func() {
		if !published {
			if err := os.RemoveAll(staging); err != nil {
				b.log.Warnw("failed to remove staging directory", "path", staging, "error", err)
			}
		}
	}()

	var written atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Workers)
	for _, a := range graph.Order() {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if a.reused {
				prev, _ := b.previous.Lookup(a.Name)
				for _, rel := range append([]string{prev.Path}, prev.Sidecars...) {
					if err := linkFile(b.opts.OutputDir, staging, rel); err != nil {
						return wrapStage(StageWrite, a.Name, err)
					}
				}
				return nil
			}
			if err := writeFile(staging, a.OutputPath, a.Output); err != nil {
				return wrapStage(StageWrite, a.Name, err)
			}
			written.Add(1)
			for _, s := range a.Sidecars {
				if err := writeFile(staging, a.OutputPath+s.Suffix, s.Content); err != nil {
					return wrapStage(StageWrite, a.Name, err)
				}
				written.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, wrapStage(StageWrite, "", err)
	}

	data, err := m.Marshal(manifest.FormatFor(b.opts.ManifestName))
	if err != nil {
		return 0, wrapStage(StageWrite, "", err)
	}
	if err := writeFile(staging, b.opts.ManifestName, data); err != nil {
		return 0, wrapStage(StageWrite, "", err)
	}
	written.Add(1)

	// Last point where cancellation leaves the previous output in place.
	if err := ctx.Err(); err != nil {
		return 0, wrapStage(StagePublish, "", err)
	}
	if err := publish(staging, b.opts.OutputDir); err != nil {
		return 0, wrapStage(StagePublish, "", err)
	}
	published = true
	b.log.Debugw("published output", "dir", b.opts.OutputDir, "files", written.Load())
	return int(written.Load()), nil
}
