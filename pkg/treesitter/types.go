// Package treesitter checks web sources for syntax errors with tree-sitter.
// It covers the languages packler rewrites: CSS, JavaScript and HTML.
//
// The backend uses smacker/go-tree-sitter and therefore requires CGO.
// Without CGO, NewBackend returns ErrCGODisabled and callers skip checks.
//
//	backend, err := treesitter.NewBackend()
//	if err != nil {
//	    return err
//	}
//	defer backend.Close()
//
//	diag, err := backend.Check(ctx, treesitter.CSS, src)
//	if diag != nil {
//	    // diag.Line, diag.Column locate the first error
//	}
//
// Backends are safe for concurrent use; parsers are pooled per language.
package treesitter

import (
	"context"
	"errors"
	"fmt"
)

// Language is a grammar the backend can parse.
type Language string

const (
	CSS        Language = "css"
	JavaScript Language = "javascript"
	HTML       Language = "html"
)

// AllLanguages returns every defined Language.
func AllLanguages() []Language {
	return []Language{CSS, JavaScript, HTML}
}

// Backend parses sources and reports their first syntax error.
type Backend interface {
	Name() string

	// Check parses src and returns the first syntax error, or nil when the
	// source parses cleanly. The context cancels long parses.
	Check(ctx context.Context, lang Language, src []byte) (*Diagnostic, error)

	Close() error
}

// Diagnostic locates a syntax error. Line and Column are 1-based.
type Diagnostic struct {
	Line   uint32
	Column uint32

	// Node is the grammar type of the offending node, "ERROR" for
	// unparseable input or the expected type of a missing node.
	Node string
}

func (d *Diagnostic) String() string {
	return fmt.Sprintf("%d:%d: syntax error near %s", d.Line, d.Column, d.Node)
}

var (
	// ErrUnsupportedLanguage is returned for a language without a grammar.
	ErrUnsupportedLanguage = errors.New("language not supported")

	// ErrClosed is returned when the backend is used after Close.
	ErrClosed = errors.New("tree-sitter backend closed")
)

// Point is a 0-based (row, column) source position.
type Point struct {
	Row    uint32
	Column uint32
}

// Node is the part of a syntax tree node the error search needs.
type Node interface {
	Type() string
	StartPoint() Point
	ChildCount() uint32

	// Child returns the child at index, or nil if out of bounds.
	Child(index uint32) Node

	IsError() bool
	IsMissing() bool
}

// Walk visits n and its descendants depth-first until visit returns
// false. It reports whether the whole tree was visited.
func Walk(n Node, visit func(Node) bool) bool {
	if n == nil {
		return true
	}
	if !visit(n) {
		return false
	}
	for i := range n.ChildCount() {
		if !Walk(n.Child(i), visit) {
			return false
		}
	}
	return true
}

// FirstError returns the first error or missing node in depth-first
// order, or nil when the tree is clean.
func FirstError(n Node) Node {
	var found Node
	Walk(n, func(node Node) bool {
		if node.IsError() || node.IsMissing() {
			found = node
			return false
		}
		return true
	})
	return found
}

// diagnose converts the first error below root into a Diagnostic.
func diagnose(root Node) *Diagnostic {
	d := &Diagnostic{Line: 1, Column: 1, Node: "ERROR"}
	if n := FirstError(root); n != nil {
		p := n.StartPoint()
		d.Line, d.Column, d.Node = p.Row+1, p.Column+1, n.Type()
	}
	return d
}
