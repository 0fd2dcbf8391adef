package assets

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// errExchangeUnsupported is returned by exchange when the platform or
// filesystem cannot swap two paths atomically.
var errExchangeUnsupported = errors.New("atomic exchange not supported")

// newStagingDir creates an empty directory next to target, on the same
// filesystem, to build the next output in.
func newStagingDir(target string) (string, error) {
	parent := filepath.Dir(target)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", ioErr("mkdir", parent, err)
	}
	dir, err := os.MkdirTemp(parent, "."+filepath.Base(target)+".staging-")
	if err != nil {
		return "", ioErr("mkdir", parent, err)
	}
	if err := os.Chmod(dir, 0o755); err != nil {
		_ = os.RemoveAll(dir)
		return "", ioErr("chmod", dir, err)
	}
	return dir, nil
}

// publish replaces target with staging. Readers of target see either the
// previous directory or the new one, never a mix. On success staging no
// longer exists.
func publish(staging, target string) error {
	if _, err := os.Lstat(target); errors.Is(err, fs.ErrNotExist) {
		if err := os.Rename(staging, target); err != nil {
			return ioErr("rename", target, err)
		}
		return nil
	}

	err := exchange(staging, target)
	switch {
	case err == nil:
		// staging now holds the previous output
		_ = os.RemoveAll(staging)
		return nil
	case !errors.Is(err, errExchangeUnsupported):
		return ioErr("exchange", target, err)
	}

	old := staging + ".old"
	if err := os.Rename(target, old); err != nil {
		return ioErr("rename", target, err)
	}
	if err := os.Rename(staging, target); err != nil {
		_ = os.Rename(old, target)
		return ioErr("rename", target, err)
	}
	_ = os.RemoveAll(old)
	return nil
}

// writeFile writes data to dir/rel, creating parent directories.
func writeFile(dir, rel string, data []byte) error {
	dst := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return ioErr("mkdir", filepath.Dir(dst), err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return ioErr("write", dst, err)
	}
	return nil
}

// linkFile makes dst/rel the same file as src/rel, copying when the
// filesystem refuses hard links.
func linkFile(src, dst, rel string) error {
	from := filepath.Join(src, filepath.FromSlash(rel))
	to := filepath.Join(dst, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return ioErr("mkdir", filepath.Dir(to), err)
	}
	if err := os.Link(from, to); err == nil {
		return nil
	}
	if err := copyFile(from, to); err != nil {
		return ioErr("copy", from, err)
	}
	return nil
}

func copyFile(from, to string) error {
	in, err := os.Open(from)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(to, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s: %w", from, err)
	}
	return out.Close()
}

// fileExists reports whether dir/rel is a regular file.
func fileExists(dir, rel string) bool {
	info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(rel)))
	return err == nil && info.Mode().IsRegular()
}
