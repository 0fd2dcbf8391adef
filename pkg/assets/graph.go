package assets

import (
	"container/heap"
	"fmt"
	"path"
	"slices"
	"strings"
)

// ReverseLookup maps a hashed output path back to a logical name.
// *manifest.Manifest implements it through ByOutputPath.
type ReverseLookup interface {
	ByOutputPath(p string) (string, bool)
}

// Graph is the resolved dependency graph of one build. Nodes live in an
// arena ordered by logical name; edges are index lists.
type Graph struct {
	nodes      []*Asset
	index      map[string]int
	deps       [][]int // node -> dependencies, ascending
	dependents [][]int // node -> dependents, ascending
	order      []int
}

// Resolver builds a Graph from enumerated assets.
type Resolver struct {
	// PublicPrefix is stripped from references before resolution.
	PublicPrefix string

	// Previous resolves references that already name hashed outputs.
	Previous ReverseLookup
}

// Resolve extracts references from every asset, resolves them to logical
// names, and orders the assets so every dependency precedes its
// dependents. It fails with *UnresolvedReferenceError for a reference
// naming no asset and with *CycleError when the graph has a cycle.
func (r *Resolver) Resolve(assets []*Asset) (*Graph, error) {
	nodes := slices.Clone(assets)
	slices.SortFunc(nodes, func(a, b *Asset) int { return strings.Compare(a.Name, b.Name) })

	g := &Graph{
		nodes:      nodes,
		index:      make(map[string]int, len(nodes)),
		deps:       make([][]int, len(nodes)),
		dependents: make([][]int, len(nodes)),
	}
	for i, a := range nodes {
		if a.Name == "" {
			return nil, fmt.Errorf("asset with source %q has no logical name", a.Source)
		}
		if _, ok := g.index[a.Name]; ok {
			return nil, fmt.Errorf("duplicate logical name %q", a.Name)
		}
		g.index[a.Name] = i
	}
	aliases := make(map[string]int)
	for i, a := range nodes {
		if a.Source != "" && a.Source != a.Name {
			if _, ok := g.index[a.Source]; !ok {
				aliases[a.Source] = i
			}
		}
	}

	for i, a := range nodes {
		refs := extractReferences(a.Kind, a.Content, r.PublicPrefix)
		seen := make(map[int]bool)
		for j := range refs {
			ref := &refs[j]
			target, ok := r.lookup(g, aliases, a.Name, ref.Path)
			if !ok {
				return nil, &UnresolvedReferenceError{
					Asset:     a.Name,
					Reference: ref.Raw,
					Missing:   r.logicalPath(a.Name, ref.Path),
				}
			}
			ref.Target = nodes[target].Name
			if !seen[target] {
				seen[target] = true
				g.deps[i] = append(g.deps[i], target)
			}
		}
		slices.Sort(g.deps[i])
		a.Refs = refs
		a.Deps = make([]string, 0, len(g.deps[i]))
		for _, d := range g.deps[i] {
			a.Deps = append(a.Deps, nodes[d].Name)
			g.dependents[d] = append(g.dependents[d], i)
		}
	}
	for i := range g.dependents {
		slices.Sort(g.dependents[i])
	}

	g.order = g.topoOrder()
	if len(g.order) != len(nodes) {
		return nil, &CycleError{Cycle: g.findCycle()}
	}
	return g, nil
}

// logicalPath maps a reference path, as written in the asset named from,
// to the logical name it designates.
func (r *Resolver) logicalPath(from, ref string) string {
	if hasPublicPrefix(ref, r.PublicPrefix) {
		ref = "/" + strings.TrimPrefix(ref, strings.TrimSuffix(r.PublicPrefix, "/")+"/")
	}
	if strings.HasPrefix(ref, "/") {
		return strings.TrimPrefix(path.Clean(ref), "/")
	}
	return path.Clean(path.Join(path.Dir(from), ref))
}

func (r *Resolver) lookup(g *Graph, aliases map[string]int, from, ref string) (int, bool) {
	name := r.logicalPath(from, ref)
	if strings.HasPrefix(name, "../") || name == ".." {
		return 0, false
	}
	if i, ok := g.index[name]; ok {
		return i, true
	}
	if i, ok := aliases[name]; ok {
		return i, true
	}
	if r.Previous != nil {
		if logical, ok := r.Previous.ByOutputPath(name); ok {
			if i, ok := g.index[logical]; ok {
				return i, true
			}
			if i, ok := aliases[logical]; ok {
				return i, true
			}
		}
	}
	return 0, false
}

// Order returns the assets in dependency order. Ties are broken by
// logical name.
func (g *Graph) Order() []*Asset {
	out := make([]*Asset, len(g.order))
	for i, idx := range g.order {
		out[i] = g.nodes[idx]
	}
	return out
}

// Names returns the logical names in dependency order.
func (g *Graph) Names() []string {
	out := make([]string, len(g.order))
	for i, idx := range g.order {
		out[i] = g.nodes[idx].Name
	}
	return out
}

// Asset returns the asset with the given logical name.
func (g *Graph) Asset(name string) (*Asset, bool) {
	i, ok := g.index[name]
	if !ok {
		return nil, false
	}
	return g.nodes[i], true
}

// Len returns the number of assets.
func (g *Graph) Len() int { return len(g.nodes) }

// Dependents returns the logical names of the assets that reference name.
func (g *Graph) Dependents(name string) []string {
	i, ok := g.index[name]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(g.dependents[i]))
	for _, d := range g.dependents[i] {
		out = append(out, g.nodes[d].Name)
	}
	return out
}

type intMinHeap []int

func (h intMinHeap) Len() int           { return len(h) }
func (h intMinHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intMinHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *intMinHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *intMinHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// topoOrder runs Kahn's algorithm with a min-heap over arena indices, which
// are sorted by logical name. Nodes on a cycle are left out.
func (g *Graph) topoOrder() []int {
	pending := make([]int, len(g.nodes))
	ready := &intMinHeap{}
	for i := range g.nodes {
		pending[i] = len(g.deps[i])
		if pending[i] == 0 {
			heap.Push(ready, i)
		}
	}

	out := make([]int, 0, len(g.nodes))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(int)
		out = append(out, n)
		for _, m := range g.dependents[n] {
			pending[m]--
			if pending[m] == 0 {
				heap.Push(ready, m)
			}
		}
	}
	return out
}

// findCycle returns one cycle as logical names, first name repeated last.
// The DFS visits nodes and edges in index order, so the witness is stable.
func (g *Graph) findCycle() []string {
	const (
		white = iota
		gray
		black
	)

	color := make([]int, len(g.nodes))
	var stack []int
	var cycle []int

	var dfs func(u int) bool
	dfs = func(u int) bool {
		color[u] = gray
		stack = append(stack, u)
		for _, v := range g.deps[u] {
			switch color[v] {
			case white:
				if dfs(v) {
					return true
				}
			case gray:
				start := slices.Index(stack, v)
				cycle = append(slices.Clone(stack[start:]), v)
				return true
			}
		}
		stack = stack[:len(stack)-1]
		color[u] = black
		return false
	}

	for i := range g.nodes {
		if color[i] == white && dfs(i) {
			break
		}
	}

	out := make([]string, len(cycle))
	for i, idx := range cycle {
		out[i] = g.nodes[idx].Name
	}
	return out
}
