package assets

import (
	"context"
	"fmt"
	"maps"
	"slices"
)

// Phase is a point in the pipeline where stages run.
type Phase int

const (
	// PreResolve stages run on the enumerated sources, before references
	// are extracted. External compilers hook in here.
	PreResolve Phase = iota

	// PostResolve stages run between the resolver and the hasher. They
	// may transform content but must not change any dependency set.
	PostResolve

	// PostRewrite stages run on rewritten outputs that will be written,
	// after hashing. They may only add sidecars.
	PostRewrite
)

func (p Phase) String() string {
	switch p {
	case PreResolve:
		return "pre-resolve"
	case PostResolve:
		return "post-resolve"
	case PostRewrite:
		return "post-rewrite"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Stage is a named pipeline hook. Process receives the assets of its
// phase and returns the assets the pipeline continues with.
type Stage interface {
	Name() string
	Phase() Phase
	Process(ctx context.Context, assets []*Asset) ([]*Asset, error)
}

// Settings is implemented by stages whose output depends on configuration
// beyond their name. Changing the settings of a PostRewrite stage
// invalidates every reused output.
type Settings interface {
	Settings() string
}

// sidecarStages identifies the PostRewrite stages, in order, with their
// settings.
func sidecarStages(stages []Stage) []string {
	var out []string
	for _, s := range stages {
		if s.Phase() != PostRewrite {
			continue
		}
		id := s.Name()
		if st, ok := s.(Settings); ok {
			id += "(" + st.Settings() + ")"
		}
		out = append(out, id)
	}
	return out
}

// StageFunc adapts a function to a Stage.
type StageFunc struct {
	StageName string
	At        Phase
	Fn        func(ctx context.Context, assets []*Asset) ([]*Asset, error)
}

func (s StageFunc) Name() string { return s.StageName }
func (s StageFunc) Phase() Phase { return s.At }
func (s StageFunc) Process(ctx context.Context, assets []*Asset) ([]*Asset, error) {
	return s.Fn(ctx, assets)
}

// runStages runs every stage registered for phase, in registration order.
func runStages(ctx context.Context, stages []Stage, phase Phase, assets []*Asset) ([]*Asset, error) {
	for _, s := range stages {
		if s.Phase() != phase {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := s.Process(ctx, assets)
		if err != nil {
			return nil, wrapStage(s.Name(), "", err)
		}
		assets = out
	}
	return assets, nil
}

// dependencySets snapshots the dependency set of every asset in g.
func dependencySets(g *Graph) map[string][]string {
	out := make(map[string][]string, g.Len())
	for _, a := range g.nodes {
		out[a.Name] = slices.Clone(a.Deps)
	}
	return out
}

// checkDependencySets reports an error naming the first asset, in logical
// name order, whose dependency set differs from the snapshot or that
// exists on one side only.
func checkDependencySets(stage string, before map[string][]string, after *Graph) error {
	for _, name := range slices.Sorted(maps.Keys(before)) {
		a, ok := after.Asset(name)
		if !ok {
			return &BuildError{Stage: stage, Asset: name, Err: fmt.Errorf("asset removed after resolution")}
		}
		if !slices.Equal(before[name], a.Deps) {
			return &BuildError{Stage: stage, Asset: name, Err: fmt.Errorf("dependency set changed from %v to %v", before[name], a.Deps)}
		}
	}
	for _, a := range after.nodes {
		if _, ok := before[a.Name]; !ok {
			return &BuildError{Stage: stage, Asset: a.Name, Err: fmt.Errorf("asset added after resolution")}
		}
	}
	return nil
}
