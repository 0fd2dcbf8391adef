package stages

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"

	"github.com/albertocavalcante/packler/internal/log"
	"github.com/albertocavalcante/packler/pkg/assets"
)

// CompressName is the name of the precompression stage.
const CompressName = "compress"

// Format is a sidecar encoding.
type Format string

const (
	Gzip Format = "gzip"
	Zstd Format = "zstd"
)

// Suffix returns the file suffix of the encoding.
func (f Format) Suffix() string {
	switch f {
	case Gzip:
		return ".gz"
	case Zstd:
		return ".zst"
	default:
		return ""
	}
}

// ParseFormat parses a format name from configuration.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case Gzip, Zstd:
		return f, nil
	case "gz":
		return Gzip, nil
	case "zst":
		return Zstd, nil
	default:
		return "", fmt.Errorf("unknown compression format: %q", name)
	}
}

var errIncompressible = errors.New("data is incompressible")

// Compress adds precompressed sidecars to text outputs after rewriting.
// A sidecar is only kept when it is smaller than the output.
type Compress struct {
	Formats []Format

	// MinSize is the smallest output, in bytes, that is compressed.
	MinSize int64

	Workers int
}

var (
	_ assets.Stage    = (*Compress)(nil)
	_ assets.Settings = (*Compress)(nil)
)

func (c *Compress) Name() string        { return CompressName }
func (c *Compress) Phase() assets.Phase { return assets.PostRewrite }

// Settings lists the formats and the size threshold, e.g. "gzip,zstd;min=1024".
func (c *Compress) Settings() string {
	names := make([]string, len(c.Formats))
	for i, f := range c.Formats {
		names[i] = string(f)
	}
	return fmt.Sprintf("%s;min=%d", strings.Join(names, ","), c.MinSize)
}

func (c *Compress) Process(ctx context.Context, in []*assets.Asset) ([]*assets.Asset, error) {
	g, gctx := errgroup.WithContext(ctx)
	if c.Workers > 0 {
		g.SetLimit(c.Workers)
	}
	for _, a := range in {
		if !compressible(a) || int64(len(a.Output)) < c.MinSize {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for _, f := range c.Formats {
				data, err := encode(f, a.Output)
				if errors.Is(err, errIncompressible) {
					continue
				}
				if err != nil {
					return &assets.BuildError{Stage: CompressName, Asset: a.Name, Err: err}
				}
				a.Sidecars = append(a.Sidecars, assets.Sidecar{Suffix: f.Suffix(), Content: data})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	log.Component("compress").Debugw("precompressed outputs", "assets", len(in))
	return in, nil
}

// compressible reports whether an asset is worth precompressing. Images
// other than SVG, fonts and archives are already compressed.
func compressible(a *assets.Asset) bool {
	if a.Kind.IsText() {
		return true
	}
	ct := a.ContentType()
	switch {
	case strings.HasPrefix(ct, "text/"),
		strings.HasPrefix(ct, "image/svg"),
		strings.HasPrefix(ct, "application/json"),
		strings.HasPrefix(ct, "application/manifest+json"),
		strings.HasPrefix(ct, "application/xml"),
		strings.HasPrefix(ct, "application/wasm"):
		return true
	}
	return false
}

func encode(f Format, data []byte) ([]byte, error) {
	var out []byte
	switch f {
	case Gzip:
		var buf bytes.Buffer
		w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("gzip compress: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("gzip compress: %w", err)
		}
		out = buf.Bytes()
	case Zstd:
		out = zstdEncoder.EncodeAll(data, nil)
	default:
		return nil, fmt.Errorf("unsupported compression format: %q", f)
	}
	if len(out) >= len(data) {
		return nil, errIncompressible
	}
	return out, nil
}

// zstdEncoder is safe for concurrent EncodeAll calls.
var zstdEncoder *zstd.Encoder

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		panic("stages: zstd encoder initialization failed: " + err.Error())
	}
}
