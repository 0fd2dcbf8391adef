// Package assets implements the asset pipeline: reference extraction,
// dependency resolution, content fingerprinting, reference rewriting and
// the atomic publication of hashed outputs plus their manifest.
package assets

import (
	"context"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
)

// Kind classifies an asset by how references are extracted from it.
type Kind int

const (
	// KindOpaque assets carry no references (images, fonts, ...).
	KindOpaque Kind = iota
	// KindCSS is a stylesheet.
	KindCSS
	// KindJS is a JavaScript module.
	KindJS
	// KindHTML is an HTML document.
	KindHTML
	// KindSass is an uncompiled SCSS or Sass source.
	KindSass
)

func (k Kind) String() string {
	switch k {
	case KindCSS:
		return "css"
	case KindJS:
		return "js"
	case KindHTML:
		return "html"
	case KindSass:
		return "sass"
	default:
		return "opaque"
	}
}

// IsText reports whether assets of this kind are text.
func (k Kind) IsText() bool { return k != KindOpaque }

// KindOf returns the kind implied by a file name's extension.
func KindOf(name string) Kind {
	switch strings.ToLower(path.Ext(name)) {
	case ".css":
		return KindCSS
	case ".js", ".mjs":
		return KindJS
	case ".html", ".htm":
		return KindHTML
	case ".scss", ".sass":
		return KindSass
	default:
		return KindOpaque
	}
}

// Asset is one file moving through the pipeline.
type Asset struct {
	// Name is the logical name: a slash path relative to the assets
	// directory carrying the output extension.
	Name string

	// Source is the source path relative to the assets directory. It
	// differs from Name for compiled assets ("css/style.scss").
	Source string

	// Path is the filesystem path Content was read from.
	Path string

	Kind    Kind
	Content []byte

	// Refs are the internal references found in Content, in byte order.
	// Populated by the resolver.
	Refs []Reference

	// Deps are the logical names Refs resolve to, sorted and unique.
	Deps []string

	// Fingerprint and OutputPath are set once the asset is hashed.
	Fingerprint Fingerprint
	OutputPath  string

	// Output is the rewritten content.
	Output []byte

	// Sidecars are extra files published next to OutputPath.
	Sidecars []Sidecar

	reused bool
}

// Sidecar is a file derived from an asset's output, such as a
// precompressed variant, published at OutputPath + Suffix.
type Sidecar struct {
	Suffix  string
	Content []byte
}

// ContentType returns the MIME type implied by the logical name.
func (a *Asset) ContentType() string {
	if t := mime.TypeByExtension(path.Ext(a.Name)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// Enumerate reads every file under root into an Asset. Directories whose
// name starts with one of the ignore prefixes are skipped, as are hidden
// files.
func Enumerate(ctx context.Context, root string, ignore []string) ([]*Asset, error) {
	var out []*Asset
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return ioErr("walk", p, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && isIgnored(d.Name(), ignore) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return ioErr("walk", p, err)
		}
		rel = filepath.ToSlash(rel)

		content, err := os.ReadFile(p)
		if err != nil {
			return ioErr("read", p, err)
		}
		out = append(out, &Asset{
			Name:    rel,
			Source:  rel,
			Path:    p,
			Kind:    KindOf(rel),
			Content: content,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(out, func(a, b *Asset) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func isIgnored(name string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
