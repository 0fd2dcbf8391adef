// Package deploy uploads a published output directory to a serving
// location. Hashed files are uploaded first and concurrently; the
// manifest is uploaded last so readers never see a manifest that names
// files that are not there yet.
package deploy

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/albertocavalcante/packler/internal/log"
	"github.com/albertocavalcante/packler/pkg/manifest"
)

// Cache-Control values for hashed files and for the manifest.
const (
	CacheImmutable = "public, max-age=31536000, immutable"
	CacheNoCache   = "no-cache"
)

// DefaultConcurrency is used when Options.Concurrency is zero.
const DefaultConcurrency = 4

// Object is one file to upload.
type Object struct {
	// Key is the slash-separated destination key.
	Key string

	// Path is the local file.
	Path string

	ContentType     string
	ContentEncoding string
	CacheControl    string
}

// Uploader stores objects.
type Uploader interface {
	Upload(ctx context.Context, obj Object) error
}

// Stater is implemented by uploaders that can tell whether a key already
// exists. Hashed files that exist are skipped.
type Stater interface {
	Exists(ctx context.Context, key string) (bool, error)
}

// Options configures Deploy.
type Options struct {
	// Dir is the published output directory.
	Dir string

	// ManifestName is the manifest file name inside Dir.
	ManifestName string

	Concurrency int
}

// Result summarizes a deployment.
type Result struct {
	Uploaded int
	Skipped  int
}

// Deploy uploads every file named by m, then the manifest.
func Deploy(ctx context.Context, up Uploader, m *manifest.Manifest, opts Options) (*Result, error) {
	logger := log.Component("deploy")

	objects := Objects(m, opts.Dir)
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	stater, _ := up.(Stater)

	var uploaded, skipped atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, obj := range objects {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if stater != nil {
				exists, err := stater.Exists(gctx, obj.Key)
				if err != nil {
					return fmt.Errorf("checking %s: %w", obj.Key, err)
				}
				if exists {
					skipped.Add(1)
					return nil
				}
			}
			if err := up.Upload(gctx, obj); err != nil {
				return fmt.Errorf("uploading %s: %w", obj.Key, err)
			}
			uploaded.Add(1)
			logger.Debugw("uploaded", "key", obj.Key)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	name := opts.ManifestName
	if name == "" {
		name = "assets.json"
	}
	mf := Object{
		Key:          filepath.ToSlash(name),
		Path:         filepath.Join(opts.Dir, name),
		ContentType:  contentTypeFor(name),
		CacheControl: CacheNoCache,
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := up.Upload(ctx, mf); err != nil {
		return nil, fmt.Errorf("uploading manifest: %w", err)
	}
	uploaded.Add(1)

	res := &Result{Uploaded: int(uploaded.Load()), Skipped: int(skipped.Load())}
	logger.Infow("deployed", "uploaded", res.Uploaded, "skipped", res.Skipped)
	return res, nil
}

// Objects lists the hashed files and sidecars named by m, sorted by key.
func Objects(m *manifest.Manifest, dir string) []Object {
	var out []Object
	for _, name := range m.Names() {
		e, _ := m.Lookup(name)
		out = append(out, Object{
			Key:          e.Path,
			Path:         filepath.Join(dir, filepath.FromSlash(e.Path)),
			ContentType:  e.ContentType,
			CacheControl: CacheImmutable,
		})
		for _, s := range e.Sidecars {
			out = append(out, Object{
				Key:             s,
				Path:            filepath.Join(dir, filepath.FromSlash(s)),
				ContentType:     e.ContentType,
				ContentEncoding: encodingFor(s),
				CacheControl:    CacheImmutable,
			})
		}
	}
	return out
}

func encodingFor(key string) string {
	switch filepath.Ext(key) {
	case ".gz":
		return "gzip"
	case ".zst":
		return "zstd"
	default:
		return ""
	}
}

func contentTypeFor(name string) string {
	switch manifest.FormatFor(name) {
	case manifest.FormatYAML:
		return "application/yaml"
	default:
		return "application/json"
	}
}
