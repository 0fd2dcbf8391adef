package stages

import (
	"bytes"
	"context"
	"io"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/albertocavalcante/packler/pkg/assets"
)

func output(name, content string) *assets.Asset {
	a := &assets.Asset{Name: name, Source: name, Kind: assets.KindOf(name), Content: []byte(content)}
	a.Output = a.Content
	return a
}

func sidecar(a *assets.Asset, suffix string) []byte {
	for _, s := range a.Sidecars {
		if s.Suffix == suffix {
			return s.Content
		}
	}
	return nil
}

func TestCompress(t *testing.T) {
	css := strings.Repeat(".button { color: red; background: url(/img/a.png); }\n", 100)
	noise := make([]byte, 4096)
	rng := rand.New(rand.NewChaCha8([32]byte{1}))
	for i := range noise {
		noise[i] = byte(rng.Uint32())
	}

	style := output("css/style.css", css)
	small := output("js/tiny.js", "x()")
	icon := output("images/icon.svg", strings.Repeat("<path d=\"M0 0\"/>", 100))
	photo := output("images/photo.png", css)
	random := output("js/random.js", string(noise))

	c := &Compress{Formats: []Format{Gzip, Zstd}, MinSize: 64, Workers: 2}
	out, err := c.Process(context.Background(), []*assets.Asset{style, small, icon, photo, random})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(out) != 5 {
		t.Fatalf("Process returned %d assets, want 5", len(out))
	}

	gz := sidecar(style, ".gz")
	if gz == nil {
		t.Fatal("missing .gz sidecar")
	}
	r, err := gzip.NewReader(bytes.NewReader(gz))
	if err != nil {
		t.Fatal(err)
	}
	plain, err := io.ReadAll(r)
	if err != nil || string(plain) != css {
		t.Errorf("gzip sidecar does not decompress to the output: %v", err)
	}

	zst := sidecar(style, ".zst")
	if zst == nil {
		t.Fatal("missing .zst sidecar")
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer dec.Close()
	plain, err = dec.DecodeAll(zst, nil)
	if err != nil || string(plain) != css {
		t.Errorf("zstd sidecar does not decompress to the output: %v", err)
	}

	if len(icon.Sidecars) != 2 {
		t.Errorf("svg sidecars = %d, want 2", len(icon.Sidecars))
	}
	for _, a := range []*assets.Asset{small, photo, random} {
		if len(a.Sidecars) != 0 {
			t.Errorf("%s should not be compressed", a.Name)
		}
	}
}

func TestCompress_Deterministic(t *testing.T) {
	css := strings.Repeat("a { color: blue; }\n", 200)
	a, b := output("a.css", css), output("a.css", css)
	c := &Compress{Formats: []Format{Gzip, Zstd}}
	if _, err := c.Process(context.Background(), []*assets.Asset{a}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Process(context.Background(), []*assets.Asset{b}); err != nil {
		t.Fatal(err)
	}
	for _, suffix := range []string{".gz", ".zst"} {
		if !bytes.Equal(sidecar(a, suffix), sidecar(b, suffix)) {
			t.Errorf("%s sidecar differs between runs", suffix)
		}
	}
}

func TestCompress_Settings(t *testing.T) {
	c := &Compress{Formats: []Format{Gzip, Zstd}, MinSize: 1024}
	if got, want := c.Settings(), "gzip,zstd;min=1024"; got != want {
		t.Errorf("Settings() = %q, want %q", got, want)
	}
	other := &Compress{Formats: []Format{Gzip}, MinSize: 1024}
	if other.Settings() == c.Settings() {
		t.Error("different formats should produce different settings")
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"gzip", Gzip, false},
		{" GZ ", Gzip, false},
		{"zstd", Zstd, false},
		{"zst", Zstd, false},
		{"brotli", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
	if Gzip.Suffix() != ".gz" || Zstd.Suffix() != ".zst" {
		t.Error("Suffix is wrong")
	}
}
