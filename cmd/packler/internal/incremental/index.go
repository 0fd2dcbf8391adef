// Package incremental keeps an index of the asset sources seen by the last
// successful build so that status can report what changed since.
package incremental

import (
	"time"
)

// IndexVersion is the current version of the index format.
const IndexVersion = 1

// Entry is one source file: its logical name, content hash and stat data.
type Entry struct {
	Name    string `json:"name"`
	Hash    string `json:"hash"`     // xxHash64 hex
	ModTime int64  `json:"mtime_ns"` // UnixNano
	Size    int64  `json:"size"`
}

// Index is a snapshot of the asset sources.
type Index struct {
	Version   int               `json:"version"`
	UpdatedAt time.Time         `json:"updated_at"`
	Manifest  string            `json:"manifest,omitempty"`
	Entries   map[string]*Entry `json:"entries"`
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		Version:   IndexVersion,
		UpdatedAt: time.Now(),
		Entries:   make(map[string]*Entry),
	}
}

// Add adds or replaces an entry.
func (idx *Index) Add(e *Entry) {
	if idx == nil || e == nil {
		return
	}
	if idx.Entries == nil {
		idx.Entries = make(map[string]*Entry)
	}
	idx.Entries[e.Name] = e
}

// Get retrieves an entry by logical name.
func (idx *Index) Get(name string) (*Entry, bool) {
	if idx == nil || idx.Entries == nil {
		return nil, false
	}
	e, ok := idx.Entries[name]
	return e, ok
}

// Len returns the number of entries.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.Entries)
}

// Diff compares idx (old) against other (new). An entry whose mtime and
// size are unchanged is assumed unchanged; otherwise the hashes decide.
func (idx *Index) Diff(other *Index) *ChangeSet {
	cs := NewChangeSet()

	var oldEntries, newEntries map[string]*Entry
	if idx != nil {
		oldEntries = idx.Entries
	}
	if other != nil {
		newEntries = other.Entries
	}

	for name, ne := range newEntries {
		oe, ok := oldEntries[name]
		if !ok {
			cs.Added = append(cs.Added, name)
			continue
		}
		if oe.ModTime == ne.ModTime && oe.Size == ne.Size {
			continue
		}
		if oe.Hash != ne.Hash {
			cs.Modified = append(cs.Modified, name)
		}
	}
	for name := range oldEntries {
		if _, ok := newEntries[name]; !ok {
			cs.Deleted = append(cs.Deleted, name)
		}
	}

	cs.sort()
	return cs
}
