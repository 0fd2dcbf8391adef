package stages

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/albertocavalcante/packler/internal/log"
	"github.com/albertocavalcante/packler/pkg/assets"
	"github.com/albertocavalcante/packler/pkg/treesitter"
)

// SyntaxName is the name of the syntax check stage.
const SyntaxName = "syntax"

// SyntaxIssue locates the first syntax error of an asset.
type SyntaxIssue struct {
	Asset  string
	Line   uint32 // 1-based
	Column uint32 // 1-based
	Node   string
}

// Syntax parses CSS, JavaScript and HTML assets with tree-sitter between
// resolution and hashing and warns about syntax errors. It never changes
// content. Without a tree-sitter backend it does nothing.
type Syntax struct {
	Workers int

	// Report receives every issue. Defaults to a warning log.
	Report func(SyntaxIssue)

	once    sync.Once
	backend treesitter.Backend
	initErr error
}

var _ assets.Stage = (*Syntax)(nil)

func (s *Syntax) Name() string        { return SyntaxName }
func (s *Syntax) Phase() assets.Phase { return assets.PostResolve }

func (s *Syntax) Process(ctx context.Context, in []*assets.Asset) ([]*assets.Asset, error) {
	logger := log.Component("syntax")

	s.once.Do(func() { s.backend, s.initErr = treesitter.NewBackend() })
	if s.initErr != nil {
		logger.Debugw("syntax check disabled", "error", s.initErr)
		return in, nil
	}

	report := s.Report
	if report == nil {
		report = warn(logger)
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	if s.Workers > 0 {
		g.SetLimit(s.Workers)
	}
	for _, a := range in {
		lang, ok := treesitter.LanguageFor(a.Name)
		if !ok {
			continue
		}
		g.Go(func() error {
			issue, err := s.check(gctx, lang, a)
			if err != nil {
				return err
			}
			if issue != nil {
				mu.Lock()
				report(*issue)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		logger.Debugw("syntax check aborted", "error", err)
	}
	return in, nil
}

func (s *Syntax) check(ctx context.Context, lang treesitter.Language, a *assets.Asset) (*SyntaxIssue, error) {
	diag, err := s.backend.Check(ctx, lang, a.Content)
	if err != nil || diag == nil {
		return nil, err
	}
	return &SyntaxIssue{Asset: a.Name, Line: diag.Line, Column: diag.Column, Node: diag.Node}, nil
}

// Close releases the tree-sitter backend.
func (s *Syntax) Close() error {
	if s.backend != nil {
		return s.backend.Close()
	}
	return nil
}

func warn(logger *zap.SugaredLogger) func(SyntaxIssue) {
	return func(i SyntaxIssue) {
		logger.Warnw("syntax error", "asset", i.Asset, "line", i.Line, "column", i.Column, "node", i.Node)
	}
}
