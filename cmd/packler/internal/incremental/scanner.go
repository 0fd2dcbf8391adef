package incremental

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
)

// Scanner builds an Index by walking the assets directory. It skips the
// same directories and hidden files the pipeline skips.
type Scanner struct {
	root   string
	ignore []string
}

// NewScanner creates a scanner rooted at the assets directory.
func NewScanner(root string, ignore []string) *Scanner {
	return &Scanner{root: root, ignore: ignore}
}

// Scan walks the tree and hashes every source.
func (s *Scanner) Scan(ctx context.Context) (*Index, error) {
	return s.walk(ctx, true)
}

// ScanFast walks the tree recording only mtime and size.
func (s *Scanner) ScanFast(ctx context.Context) (*Index, error) {
	return s.walk(ctx, false)
}

func (s *Scanner) walk(ctx context.Context, hash bool) (*Index, error) {
	idx := NewIndex()

	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != s.root && s.ignored(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}

		e := &Entry{
			Name:    filepath.ToSlash(rel),
			ModTime: info.ModTime().UnixNano(),
			Size:    info.Size(),
		}
		if hash {
			if e.Hash, err = HashFile(p); err != nil {
				return err
			}
		}
		idx.Add(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return idx, nil
}

func (s *Scanner) ignored(name string) bool {
	for _, prefix := range s.ignore {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
