package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	// Check defaults
	if cfg.Assets.SourceDir != "assets" {
		t.Errorf("source dir should be 'assets', got %q", cfg.Assets.SourceDir)
	}
	if cfg.Assets.SassDir != "css" {
		t.Errorf("sass dir should be 'css', got %q", cfg.Assets.SassDir)
	}
	if cfg.Output.DistDir != "dist" {
		t.Errorf("dist dir should be 'dist', got %q", cfg.Output.DistDir)
	}
	if cfg.Output.Manifest != "assets.json" {
		t.Errorf("manifest should be 'assets.json', got %q", cfg.Output.Manifest)
	}
	if cfg.Sass.Version != "1.59.3" {
		t.Errorf("sass version should be '1.59.3', got %q", cfg.Sass.Version)
	}
	if !cfg.SassEnabled() {
		t.Error("sass should be enabled by default")
	}
	if !cfg.IncrementalEnabled() {
		t.Error("incremental builds should be enabled by default")
	}
	if cfg.CompressEnabled() {
		t.Error("compression should be disabled by default")
	}
	if cfg.Watch.Debounce != 2000 {
		t.Errorf("debounce should be 2000ms, got %d", cfg.Watch.Debounce)
	}
}

func TestMerge(t *testing.T) {
	base := NewConfig()
	falseVal := false
	trueVal := true
	other := &Config{
		Output: OutputConfig{
			DistDir:      "public",
			PublicPrefix: "/static",
		},
		Sass: SassConfig{
			Enabled: &falseVal,
		},
		Compress: CompressConfig{
			Enabled: &trueVal,
			Formats: []string{"zstd"},
		},
		Build: BuildConfig{Workers: 3},
	}

	base.Merge(other)

	if base.Output.DistDir != "public" {
		t.Errorf("dist dir should be 'public', got %q", base.Output.DistDir)
	}
	if base.Output.Manifest != "assets.json" {
		t.Errorf("manifest should keep default, got %q", base.Output.Manifest)
	}
	if base.Output.PublicPrefix != "/static" {
		t.Errorf("public prefix should be '/static', got %q", base.Output.PublicPrefix)
	}
	if base.SassEnabled() {
		t.Error("sass should be disabled after merge")
	}
	if !base.CompressEnabled() {
		t.Error("compression should be enabled after merge")
	}
	if len(base.Compress.Formats) != 1 || base.Compress.Formats[0] != "zstd" {
		t.Errorf("formats should be [zstd], got %v", base.Compress.Formats)
	}
	if base.WorkerCount() != 3 {
		t.Errorf("workers should be 3, got %d", base.WorkerCount())
	}

	// nil is a no-op
	base.Merge(nil)
	if base.Output.DistDir != "public" {
		t.Error("merging nil should not change config")
	}
}

func TestIgnoredDirs(t *testing.T) {
	testCases := []struct {
		name      string
		sourceDir string
		distDir   string
		want      []string
		notWanted []string
	}{
		{
			name:      "outputs inside source root",
			sourceDir: ".",
			distDir:   "dist",
			want:      []string{"dist", "target"},
		},
		{
			name:      "nested dist directory",
			sourceDir: "assets",
			distDir:   "assets/public/v1",
			want:      []string{"public"},
			notWanted: []string{"target", "v1"},
		},
		{
			name:      "outputs beside source",
			sourceDir: "assets",
			distDir:   "dist",
			notWanted: []string{"dist", "target"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewConfig()
			cfg.Root = t.TempDir()
			cfg.Assets.SourceDir = tc.sourceDir
			cfg.Output.DistDir = tc.distDir
			cfg.Assets.Ignore = []string{"vendor"}

			got := cfg.IgnoredDirs()
			for _, w := range append([]string{".", "node_modules", ConfigDirName, "vendor"}, tc.want...) {
				if !slices.Contains(got, w) {
					t.Errorf("IgnoredDirs() = %v, missing %q", got, w)
				}
			}
			for _, n := range tc.notWanted {
				if slices.Contains(got, n) {
					t.Errorf("IgnoredDirs() = %v, should not contain %q", got, n)
				}
			}
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	configContent := `
[assets]
source_dir = "web"
ignore = ["vendor"]

[output]
dist_dir = "public"
manifest = "manifest.yaml"
public_prefix = "https://cdn.example.com"

[sass]
enabled = true
style = "compressed"
entrypoints = ["main.scss"]

[build]
workers = 8
incremental = false
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg := loadConfigFile(configPath)
	if cfg == nil {
		t.Fatal("loadConfigFile returned nil")
	}

	if cfg.Assets.SourceDir != "web" {
		t.Errorf("source dir should be 'web', got %q", cfg.Assets.SourceDir)
	}
	if len(cfg.Assets.Ignore) != 1 {
		t.Errorf("expected 1 ignored dir, got %d", len(cfg.Assets.Ignore))
	}
	if cfg.Output.Manifest != "manifest.yaml" {
		t.Errorf("manifest should be 'manifest.yaml', got %q", cfg.Output.Manifest)
	}
	if cfg.Sass.Style != "compressed" {
		t.Errorf("sass style should be 'compressed', got %q", cfg.Sass.Style)
	}
	if len(cfg.Sass.Entrypoints) != 1 {
		t.Errorf("expected 1 entrypoint, got %d", len(cfg.Sass.Entrypoints))
	}
	if cfg.Build.Workers != 8 {
		t.Errorf("workers should be 8, got %d", cfg.Build.Workers)
	}
	if cfg.Build.Incremental == nil || *cfg.Build.Incremental {
		t.Error("incremental should be explicitly disabled")
	}
}

func TestLoadConfigFile_Invalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")
	if err := os.WriteFile(configPath, []byte("[output\ndist_dir ="), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	if cfg := loadConfigFile(configPath); cfg != nil {
		t.Error("loadConfigFile should return nil for malformed TOML")
	}
	if _, err := LoadFile(configPath); err == nil {
		t.Error("LoadFile should fail for malformed TOML")
	}
	if _, err := LoadFile(filepath.Join(tmpDir, "missing.toml")); err == nil {
		t.Error("LoadFile should fail for a missing file")
	}
}

func TestLoadFile_RootFromLocation(t *testing.T) {
	tmpDir := t.TempDir()
	stateDir := filepath.Join(tmpDir, ConfigDirName)
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	configPath := filepath.Join(stateDir, "config.toml")
	if err := os.WriteFile(configPath, []byte("[output]\ndist_dir = \"out\"\n"), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Root != tmpDir {
		t.Errorf("root should be %q, got %q", tmpDir, cfg.Root)
	}
	if got, want := cfg.DistDir(), filepath.Join(tmpDir, "out"); got != want {
		t.Errorf("DistDir() = %q, want %q", got, want)
	}
}

func TestApplyEnvironmentVariables(t *testing.T) {
	cfg := NewConfig()

	// Set environment variables
	t.Setenv("PACKLER_DIST_DIR", "build/static")
	t.Setenv("PACKLER_SASS_ENTRYPOINTS", "main.scss, admin.scss")
	t.Setenv("PACKLER_INCREMENTAL", "no")
	t.Setenv("PACKLER_COMPRESS_ENABLED", "1")
	t.Setenv("PACKLER_WORKERS", "2")
	t.Setenv("PACKLER_PUBLIC_PREFIX", "/assets")

	applyEnvironmentVariables(cfg)

	if cfg.Output.DistDir != "build/static" {
		t.Errorf("dist dir should be 'build/static', got %q", cfg.Output.DistDir)
	}
	if len(cfg.Sass.Entrypoints) != 2 {
		t.Errorf("expected 2 entrypoints, got %d", len(cfg.Sass.Entrypoints))
	}
	if cfg.IncrementalEnabled() {
		t.Error("incremental should be disabled via env var")
	}
	if !cfg.CompressEnabled() {
		t.Error("compression should be enabled via env var")
	}
	if cfg.Build.Workers != 2 {
		t.Errorf("workers should be 2, got %d", cfg.Build.Workers)
	}
	if cfg.Output.PublicPrefix != "/assets" {
		t.Errorf("public prefix should be '/assets', got %q", cfg.Output.PublicPrefix)
	}
}

func TestApplyBoolEnv_Unrecognized(t *testing.T) {
	trueVal := true
	target := &trueVal
	t.Setenv("PACKLER_TEST_BOOL", "maybe")
	applyBoolEnv("PACKLER_TEST_BOOL", &target)
	if target == nil || !*target {
		t.Error("unrecognized value should leave target unchanged")
	}
}

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"main.scss,admin.scss", []string{"main.scss", "admin.scss"}},
		{" main.scss , admin.scss ", []string{"main.scss", "admin.scss"}},
		{"gzip", []string{"gzip"}},
		{"", []string{}},
		{" , , ", []string{}},
	}

	for _, tt := range tests {
		result := splitAndTrim(tt.input)
		if len(result) != len(tt.expected) {
			t.Errorf("splitAndTrim(%q) = %v, want %v", tt.input, result, tt.expected)
			continue
		}
		for i, v := range result {
			if v != tt.expected[i] {
				t.Errorf("splitAndTrim(%q)[%d] = %q, want %q", tt.input, i, v, tt.expected[i])
			}
		}
	}
}

func TestProjectConfigSearch(t *testing.T) {
	// Create a temp directory structure
	tmpDir := t.TempDir()
	projectRoot := filepath.Join(tmpDir, "project")
	projectDir := filepath.Join(projectRoot, "assets", "css")
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		t.Fatalf("failed to create project dir: %v", err)
	}

	// Create .git marker at project root
	gitDir := filepath.Join(projectRoot, ".git")
	if err := os.MkdirAll(gitDir, 0o755); err != nil {
		t.Fatalf("failed to create .git dir: %v", err)
	}

	// Create packler.toml at project root
	configPath := filepath.Join(projectRoot, "packler.toml")
	configContent := `
[output]
dist_dir = "public"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	// Load config from subdir
	cfg, dir := loadProjectConfigFrom(projectDir)
	if cfg == nil {
		t.Fatal("loadProjectConfigFrom returned nil")
	}
	if dir != projectRoot {
		t.Errorf("config dir should be %q, got %q", projectRoot, dir)
	}
	if cfg.Output.DistDir != "public" {
		t.Errorf("dist dir should be 'public', got %q", cfg.Output.DistDir)
	}

	full := LoadFrom(projectDir)
	if full.Root != projectRoot {
		t.Errorf("root should be %q, got %q", projectRoot, full.Root)
	}
	if got, want := full.ManifestFile(), filepath.Join(projectRoot, "public", "assets.json"); got != want {
		t.Errorf("ManifestFile() = %q, want %q", got, want)
	}
}

func TestWorkspaceRootDetection(t *testing.T) {
	tmpDir := t.TempDir()

	// Test .git
	gitDir := filepath.Join(tmpDir, ".git")
	if err := os.MkdirAll(gitDir, 0o755); err != nil {
		t.Fatalf("failed to create .git dir: %v", err)
	}
	if !isWorkspaceRoot(tmpDir) {
		t.Error("directory with .git should be workspace root")
	}

	// Test Cargo.toml
	tmpDir2 := t.TempDir()
	cargoFile := filepath.Join(tmpDir2, "Cargo.toml")
	if err := os.WriteFile(cargoFile, []byte(""), 0o644); err != nil {
		t.Fatalf("failed to write Cargo.toml file: %v", err)
	}
	if !isWorkspaceRoot(tmpDir2) {
		t.Error("directory with Cargo.toml should be workspace root")
	}

	// Test go.mod
	tmpDir3 := t.TempDir()
	modFile := filepath.Join(tmpDir3, "go.mod")
	if err := os.WriteFile(modFile, []byte(""), 0o644); err != nil {
		t.Fatalf("failed to write go.mod file: %v", err)
	}
	if !isWorkspaceRoot(tmpDir3) {
		t.Error("directory with go.mod should be workspace root")
	}

	// Nested directory resolves to the marker directory
	nested := filepath.Join(tmpDir3, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("failed to create nested dir: %v", err)
	}
	if got := FindWorkspaceRoot(nested); got != tmpDir3 {
		t.Errorf("FindWorkspaceRoot(%q) = %q, want %q", nested, got, tmpDir3)
	}
}
