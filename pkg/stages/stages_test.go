package stages

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/albertocavalcante/packler/pkg/assets"
	"github.com/albertocavalcante/packler/pkg/config"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func stageNames(in []assets.Stage) string {
	var names []string
	for _, s := range in {
		names = append(names, s.Name()+"@"+s.Phase().String())
	}
	return strings.Join(names, ",")
}

func TestFromConfig(t *testing.T) {
	off := false
	on := true

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		want    string
		wantErr bool
	}{
		{
			name: "defaults",
			want: "sass@pre-resolve,syntax@post-resolve",
		},
		{
			name: "everything",
			mutate: func(c *config.Config) {
				c.Compress.Enabled = &on
			},
			want: "sass@pre-resolve,syntax@post-resolve,compress@post-rewrite",
		},
		{
			name: "nothing",
			mutate: func(c *config.Config) {
				c.Sass.Enabled = &off
				c.Build.SyntaxCheck = &off
			},
			want: "",
		},
		{
			name: "no formats",
			mutate: func(c *config.Config) {
				c.Sass.Enabled = &off
				c.Build.SyntaxCheck = &off
				c.Compress.Enabled = &on
				c.Compress.Formats = nil
			},
			want: "",
		},
		{
			name: "unknown format",
			mutate: func(c *config.Config) {
				c.Compress.Enabled = &on
				c.Compress.Formats = []string{"brotli"}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewConfig()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			got, err := FromConfig(cfg, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && stageNames(got) != tt.want {
				t.Errorf("stages = %q, want %q", stageNames(got), tt.want)
			}
		})
	}
}

func TestStages_EndToEnd(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "assets")
	dist := filepath.Join(root, "dist")
	writeFiles(t, src, map[string]string{
		"css/style.scss":    strings.Repeat("body { background: url(\"../images/logo.png\"); }\n", 40),
		"css/_partial.scss": "$c: red;",
		"images/logo.png":   "PNG",
		"index.html":        `<link rel="stylesheet" href="css/style.scss">`,
	})

	p := assets.New(assets.Options{
		SourceDir: src,
		OutputDir: dist,
		Stages: []assets.Stage{
			&Sass{Compiler: &copyCompiler{&fakeCompiler{}}, Dir: "css", IntermediateDir: filepath.Join(root, "target")},
			&Compress{Formats: []Format{Gzip}, MinSize: 256},
		},
	})
	res, err := p.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	m := res.Manifest
	if m.Len() != 3 {
		t.Errorf("manifest names = %v, want 3 entries", m.Names())
	}
	if _, ok := m.Lookup("css/_partial.scss"); ok {
		t.Error("partials must not be published")
	}
	style, ok := m.Lookup("css/style.scss")
	if !ok {
		t.Fatal("css/style.scss alias missing")
	}
	if len(style.Sidecars) != 1 || style.Sidecars[0] != style.Path+".gz" {
		t.Errorf("sidecars = %v", style.Sidecars)
	}
	if _, err := os.Stat(filepath.Join(dist, filepath.FromSlash(style.Path+".gz"))); err != nil {
		t.Errorf("sidecar not published: %v", err)
	}

	logo, _ := m.Resolve("images/logo.png")
	data, err := os.ReadFile(filepath.Join(dist, filepath.FromSlash(style.Path)))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "../"+logo) {
		t.Errorf("compiled stylesheet does not reference %s", logo)
	}
}

// copyCompiler copies the source unchanged so references survive.
type copyCompiler struct{ *fakeCompiler }

func (c *copyCompiler) Run(_ context.Context, _ string, args ...string) ([]byte, error) {
	src, dst := args[len(args)-2], args[len(args)-1]
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, err
	}
	return nil, os.WriteFile(dst, data, 0o644)
}
