package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DirUploader mirrors objects into a directory, such as a mounted bucket
// or a CDN origin. Each file is written to a temporary name and renamed
// into place.
type DirUploader struct {
	Root string
}

var (
	_ Uploader = (*DirUploader)(nil)
	_ Stater   = (*DirUploader)(nil)
)

func (d *DirUploader) dest(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("key %q escapes the target directory", key)
	}
	return filepath.Join(d.Root, clean), nil
}

// Exists reports whether key is already present.
func (d *DirUploader) Exists(_ context.Context, key string) (bool, error) {
	dst, err := d.dest(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(dst)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// Upload copies obj.Path to Root/obj.Key.
func (d *DirUploader) Upload(ctx context.Context, obj Object) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst, err := d.dest(obj.Key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	in, err := os.Open(obj.Path)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".tmp-")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to copy %s: %w", obj.Path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
