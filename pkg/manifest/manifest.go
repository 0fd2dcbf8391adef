// Package manifest provides the mapping from logical asset names to
// fingerprinted output paths that a build publishes next to its outputs.
//
// Backend code loads a manifest once at startup and resolves links with
// Resolve or URL:
//
//	m, err := manifest.Load("dist/assets.json")
//	href, err := m.URL("css/style.css") // "/static/css/style.3f9a0c1d2e4b5a69.css"
package manifest

import (
	"errors"
	"fmt"
	"maps"
	"path"
	"slices"
	"strings"

	"github.com/albertocavalcante/packler/pkg/util"
)

// Version is the current manifest format version.
const Version = 1

// ErrNotFound is returned when a logical name has no manifest entry.
var ErrNotFound = errors.New("asset not found in manifest")

// Entry describes one published asset.
type Entry struct {
	// Path is the hashed output path, slash separated and relative to the
	// output directory (e.g. "images/logo.1a2b3c4d5e6f7a8b.png").
	Path string `json:"path" yaml:"path"`

	// Fingerprint is the full hex digest the hashed path was derived from.
	Fingerprint string `json:"fingerprint" yaml:"fingerprint"`

	// Source is the source path relative to the assets directory.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	Size        int64  `json:"size" yaml:"size"`
	ContentType string `json:"content_type,omitempty" yaml:"content_type,omitempty"`

	// Sidecars lists precompressed variants next to Path (e.g. Path+".gz").
	Sidecars []string `json:"sidecars,omitempty" yaml:"sidecars,omitempty"`
}

// Manifest maps logical asset names to entries.
type Manifest struct {
	Version      int               `json:"version" yaml:"version"`
	PublicPrefix string            `json:"public_prefix,omitempty" yaml:"public_prefix,omitempty"`
	Assets       map[string]Entry  `json:"assets" yaml:"assets"`
	Aliases      map[string]string `json:"aliases,omitempty" yaml:"aliases,omitempty"`

	// SidecarStages identifies the sidecar producers, with their settings,
	// that ran when the sidecars were written.
	SidecarStages []string `json:"sidecar_stages,omitempty" yaml:"sidecar_stages,omitempty"`

	byPath map[string]string
}

// New creates an empty manifest whose URLs carry the given public prefix.
func New(publicPrefix string) *Manifest {
	return &Manifest{
		Version:      Version,
		PublicPrefix: publicPrefix,
		Assets:       make(map[string]Entry),
		Aliases:      make(map[string]string),
		byPath:       make(map[string]string),
	}
}

// Add records the entry for a logical name. Entries are immutable: adding
// a name twice, or two names with the same output path, is an error.
func (m *Manifest) Add(name string, e Entry) error {
	if name == "" {
		return fmt.Errorf("manifest: empty logical name")
	}
	if e.Path == "" {
		return fmt.Errorf("manifest: empty output path for %q", name)
	}
	m.init()
	if _, ok := m.Assets[name]; ok {
		return fmt.Errorf("manifest: duplicate entry for %q", name)
	}
	if other, ok := m.byPath[e.Path]; ok {
		return fmt.Errorf("manifest: %q and %q share output path %q", other, name, e.Path)
	}
	m.Assets[name] = e
	m.byPath[e.Path] = name
	return nil
}

// AddAlias makes alias resolve to the entry of name (e.g. a source
// "css/style.scss" to its compiled "css/style.css").
func (m *Manifest) AddAlias(alias, name string) {
	if alias == "" || alias == name {
		return
	}
	m.init()
	m.Aliases[alias] = name
}

// SetSidecars records the precompressed variants of an existing entry.
func (m *Manifest) SetSidecars(name string, sidecars []string) error {
	e, ok := m.Assets[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	e.Sidecars = slices.Clone(sidecars)
	slices.Sort(e.Sidecars)
	m.Assets[name] = e
	return nil
}

// Lookup returns the entry for a logical name or alias.
func (m *Manifest) Lookup(name string) (Entry, bool) {
	if m == nil {
		return Entry{}, false
	}
	name = strings.TrimPrefix(name, "/")
	if e, ok := m.Assets[name]; ok {
		return e, true
	}
	if target, ok := m.Aliases[name]; ok {
		e, ok := m.Assets[target]
		return e, ok
	}
	return Entry{}, false
}

// Resolve returns the hashed output path of a logical name.
func (m *Manifest) Resolve(name string) (string, error) {
	e, ok := m.Lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return e.Path, nil
}

// URL returns the public URL of a logical name: the public prefix joined
// with the hashed path, or a root-absolute path when no prefix is set.
func (m *Manifest) URL(name string) (string, error) {
	p, err := m.Resolve(name)
	if err != nil {
		return "", err
	}
	return JoinPrefix(m.PublicPrefix, p), nil
}

// ByOutputPath returns the logical name whose hashed output is p.
func (m *Manifest) ByOutputPath(p string) (string, bool) {
	if m == nil {
		return "", false
	}
	p = strings.TrimPrefix(p, "/")
	if m.byPath != nil {
		name, ok := m.byPath[p]
		return name, ok
	}
	for name, e := range m.Assets {
		if e.Path == p {
			return name, true
		}
	}
	return "", false
}

// Names returns the logical names in sorted order.
func (m *Manifest) Names() []string {
	if m == nil {
		return nil
	}
	return util.SortedKeys(m.Assets)
}

// Len returns the number of entries.
func (m *Manifest) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Assets)
}

// Equal reports whether two manifests publish the same content.
func (m *Manifest) Equal(other *Manifest) bool {
	if m == nil || other == nil {
		return m == other
	}
	if m.PublicPrefix != other.PublicPrefix || !slices.Equal(m.SidecarStages, other.SidecarStages) {
		return false
	}
	if !maps.EqualFunc(m.Assets, other.Assets, entryEqual) {
		return false
	}
	return maps.Equal(nonNil(m.Aliases), nonNil(other.Aliases))
}

func entryEqual(a, b Entry) bool {
	return a.Path == b.Path &&
		a.Fingerprint == b.Fingerprint &&
		a.Source == b.Source &&
		a.Size == b.Size &&
		a.ContentType == b.ContentType &&
		slices.Equal(a.Sidecars, b.Sidecars)
}

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

// JoinPrefix joins a public prefix and a slash path. An empty prefix yields
// a root-absolute path.
func JoinPrefix(prefix, p string) string {
	p = strings.TrimPrefix(p, "/")
	if prefix == "" {
		return "/" + p
	}
	if strings.Contains(prefix, "://") || strings.HasPrefix(prefix, "//") {
		return strings.TrimSuffix(prefix, "/") + "/" + p
	}
	return path.Join("/", prefix, p)
}

func (m *Manifest) init() {
	if m.Assets == nil {
		m.Assets = make(map[string]Entry)
	}
	if m.Aliases == nil {
		m.Aliases = make(map[string]string)
	}
	if m.byPath == nil {
		m.reindex()
	}
}

func (m *Manifest) reindex() {
	m.byPath = make(map[string]string, len(m.Assets))
	for name, e := range m.Assets {
		m.byPath[e.Path] = name
	}
}
