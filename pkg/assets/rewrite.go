package assets

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/albertocavalcante/packler/pkg/manifest"
)

// OutputLookup maps a logical name to its hashed output path.
// *manifest.Manifest implements it.
type OutputLookup interface {
	Resolve(name string) (string, error)
}

// Rewriter substitutes hashed output paths for references.
type Rewriter struct {
	// PublicPrefix, when set, turns every rewritten reference into
	// prefix + hashed path.
	PublicPrefix string
}

// Rewrite returns content with the span of every reference replaced by
// the hashed output path of its target. Bytes outside the spans are
// copied unchanged and query/fragment suffixes are kept. from is the
// logical name of the asset content belongs to.
//
// Relative references stay relative to from's directory, root-absolute
// references stay root-absolute. A reference whose target has no output
// path fails with *UnresolvedReferenceError.
func (rw *Rewriter) Rewrite(from string, content []byte, refs []Reference, outputs OutputLookup) ([]byte, error) {
	if len(refs) == 0 {
		return content, nil
	}

	var buf bytes.Buffer
	buf.Grow(len(content) + len(refs)*(ShortLen+1))

	last := 0
	for _, ref := range refs {
		if ref.Start < last || ref.End < ref.Start || ref.End > len(content) {
			return nil, fmt.Errorf("reference %q in %s has invalid span [%d,%d)", ref.Raw, from, ref.Start, ref.End)
		}

		target := ref.Target
		if target == "" {
			return nil, &UnresolvedReferenceError{Asset: from, Reference: ref.Raw, Missing: ref.Path}
		}
		hashed, err := outputs.Resolve(target)
		if err != nil {
			return nil, &UnresolvedReferenceError{Asset: from, Reference: ref.Raw, Missing: target}
		}

		buf.Write(content[last:ref.Start])
		buf.WriteString(rw.format(from, ref, hashed))
		last = ref.End
	}
	buf.Write(content[last:])
	return buf.Bytes(), nil
}

func (rw *Rewriter) format(from string, ref Reference, hashed string) string {
	var p string
	switch {
	case rw.PublicPrefix != "":
		p = manifest.JoinPrefix(rw.PublicPrefix, hashed)
	case strings.HasPrefix(ref.Path, "/"):
		p = "/" + hashed
	default:
		p = relativePath(path.Dir(from), hashed)
		if strings.HasPrefix(ref.Path, "./") && !strings.HasPrefix(p, "../") {
			p = "./" + p
		}
	}
	return p + ref.Suffix
}

// relativePath returns the slash path of target relative to dir. Both are
// relative to the same root; "." is the root itself.
func relativePath(dir, target string) string {
	var from []string
	if dir != "." && dir != "" {
		from = strings.Split(dir, "/")
	}
	to := strings.Split(target, "/")

	common := 0
	for common < len(from) && common < len(to)-1 && from[common] == to[common] {
		common++
	}

	parts := make([]string, 0, len(from)-common+len(to)-common)
	for range from[common:] {
		parts = append(parts, "..")
	}
	parts = append(parts, to[common:]...)
	return strings.Join(parts, "/")
}
