package incremental

import (
	"path"
	"slices"

	"github.com/albertocavalcante/packler/pkg/util"
)

// ChangeSet lists the sources that differ between two indexes.
type ChangeSet struct {
	Added    []string `json:"added"`
	Modified []string `json:"modified"`
	Deleted  []string `json:"deleted"`
}

// NewChangeSet creates an empty ChangeSet.
func NewChangeSet() *ChangeSet {
	return &ChangeSet{
		Added:    []string{},
		Modified: []string{},
		Deleted:  []string{},
	}
}

// IsEmpty returns true if there are no changes.
func (cs *ChangeSet) IsEmpty() bool {
	if cs == nil {
		return true
	}
	return len(cs.Added) == 0 && len(cs.Modified) == 0 && len(cs.Deleted) == 0
}

// TotalChanges returns the number of changed sources.
func (cs *ChangeSet) TotalChanges() int {
	if cs == nil {
		return 0
	}
	return len(cs.Added) + len(cs.Modified) + len(cs.Deleted)
}

// All returns every changed logical name, sorted.
func (cs *ChangeSet) All() []string {
	if cs == nil {
		return nil
	}
	out := slices.Concat(cs.Added, cs.Modified, cs.Deleted)
	slices.Sort(out)
	return out
}

// AffectedDirs returns the sorted unique asset directories with changes.
func (cs *ChangeSet) AffectedDirs() []string {
	if cs == nil {
		return nil
	}
	seen := make(map[string]struct{})
	for _, name := range cs.All() {
		seen[path.Dir(name)] = struct{}{}
	}
	return util.SortedKeys(seen)
}

func (cs *ChangeSet) sort() {
	slices.Sort(cs.Added)
	slices.Sort(cs.Modified)
	slices.Sort(cs.Deleted)
}
