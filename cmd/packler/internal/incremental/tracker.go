package incremental

import (
	"context"
	"fmt"
	"path/filepath"
)

// Tracker compares the assets directory against the index written after
// the last successful build.
type Tracker struct {
	store   Store
	scanner *Scanner
	root    string
}

// NewTracker creates a tracker for the assets directory root, keeping its
// index in stateDir.
func NewTracker(root, stateDir string, ignore []string) *Tracker {
	return &Tracker{
		store:   NewJSONStore(stateDir),
		scanner: NewScanner(root, ignore),
		root:    root,
	}
}

// Status reports what changed since the last Refresh without writing
// anything. Only files whose mtime or size moved are hashed.
func (t *Tracker) Status(ctx context.Context) (*ChangeSet, error) {
	oldIdx, err := t.store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	fastIdx, err := t.scanner.ScanFast(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan assets: %w", err)
	}

	for name, ne := range fastIdx.Entries {
		oe, ok := oldIdx.Get(name)
		if !ok || (oe.ModTime == ne.ModTime && oe.Size == ne.Size) {
			continue
		}
		// An unreadable file keeps an empty hash and counts as modified.
		ne.Hash, _ = HashFile(filepath.Join(t.root, filepath.FromSlash(name)))
	}
	return oldIdx.Diff(fastIdx), nil
}

// Refresh records the current sources together with the manifest digest
// of the build that consumed them.
func (t *Tracker) Refresh(ctx context.Context, manifestDigest string) error {
	idx, err := t.scanner.Scan(ctx)
	if err != nil {
		return fmt.Errorf("failed to scan assets: %w", err)
	}
	idx.Manifest = manifestDigest
	if err := t.store.Save(idx); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// HasState reports whether a previous build recorded an index.
func (t *Tracker) HasState() bool {
	return t.store.Exists()
}

// Clear forgets the recorded index.
func (t *Tracker) Clear() error {
	return t.store.Clear()
}

// TrackedCount returns the number of sources in the stored index.
func (t *Tracker) TrackedCount() int {
	idx, err := t.store.Load()
	if err != nil {
		return 0
	}
	return idx.Len()
}

// ManifestDigest returns the manifest digest recorded by the last Refresh.
func (t *Tracker) ManifestDigest() string {
	idx, err := t.store.Load()
	if err != nil {
		return ""
	}
	return idx.Manifest
}
