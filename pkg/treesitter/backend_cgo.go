//go:build cgo

package treesitter

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/css"
	"github.com/smacker/go-tree-sitter/html"
	"github.com/smacker/go-tree-sitter/javascript"
)

var grammars = map[Language]func() *sitter.Language{
	CSS:        css.GetLanguage,
	JavaScript: javascript.GetLanguage,
	HTML:       html.GetLanguage,
}

type cgoBackend struct {
	closed atomic.Bool
	pools  map[Language]*sync.Pool
}

// NewBackend creates the CGO tree-sitter backend.
func NewBackend() (Backend, error) {
	b := &cgoBackend{pools: make(map[Language]*sync.Pool, len(grammars))}
	for lang, grammar := range grammars {
		b.pools[lang] = &sync.Pool{New: func() any {
			p := sitter.NewParser()
			p.SetLanguage(grammar())
			return p
		}}
	}
	return b, nil
}

func (b *cgoBackend) Name() string { return "cgo" }

func (b *cgoBackend) Check(ctx context.Context, lang Language, src []byte) (*Diagnostic, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	pool, ok := b.pools[lang]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
	}

	parser := pool.Get().(*sitter.Parser)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		// A cancelled parse leaves the parser mid-document.
		parser.Reset()
		pool.Put(parser)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("parsing %s: %w", lang, err)
	}
	pool.Put(parser)
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || !root.HasError() {
		return nil, nil
	}
	return diagnose(sitterNode{root}), nil
}

func (b *cgoBackend) Close() error {
	b.closed.Store(true)
	return nil
}

// sitterNode adapts *sitter.Node to Node.
type sitterNode struct {
	n *sitter.Node
}

func (s sitterNode) Type() string       { return s.n.Type() }
func (s sitterNode) ChildCount() uint32 { return s.n.ChildCount() }
func (s sitterNode) IsError() bool      { return s.n.IsError() }
func (s sitterNode) IsMissing() bool    { return s.n.IsMissing() }

func (s sitterNode) StartPoint() Point {
	p := s.n.StartPoint()
	return Point{Row: p.Row, Column: p.Column}
}

func (s sitterNode) Child(i uint32) Node {
	if i >= s.n.ChildCount() {
		return nil
	}
	c := s.n.Child(int(i))
	if c == nil || c.IsNull() {
		return nil
	}
	return sitterNode{c}
}
