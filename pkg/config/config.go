// Package config provides configuration management for Packler.
// It supports multi-layer configuration with precedence:
//  1. Built-in defaults (lowest priority)
//  2. Global user config (~/.config/packler/config.toml)
//  3. Project config (.packler/config.toml or packler.toml)
//  4. Environment variables (PACKLER_*)
//  5. CLI flags (highest priority)
package config

import (
	"path/filepath"
	"runtime"
	"slices"
	"strings"
)

// Built-in defaults.
const (
	DefaultSassVersion      = "1.59.3"
	DefaultOutputDir        = "dist"
	DefaultAssetsDir        = "assets"
	DefaultSassDir          = "css"
	DefaultManifestFilename = "assets.json"
	DefaultIntermediateDir  = "target/packler"
	DefaultDebounceMillis   = 2000
	DefaultCompressMinSize  = 1024
)

// Config is the main configuration struct for Packler.
type Config struct {
	// Root is the workspace root every relative path is resolved against.
	// It is set by the loader, never read from a file.
	Root string `toml:"-"`

	// Assets configures where source assets live.
	Assets AssetsConfig `toml:"assets"`

	// Output configures the published output directory and manifest.
	Output OutputConfig `toml:"output"`

	// Sass configures the external sass compiler.
	Sass SassConfig `toml:"sass"`

	// Build configures the pipeline itself.
	Build BuildConfig `toml:"build"`

	// Compress configures precompressed sidecar files.
	Compress CompressConfig `toml:"compress"`

	// Watch configures watch mode.
	Watch WatchConfig `toml:"watch"`

	// Deploy configures the upload target.
	Deploy DeployConfig `toml:"deploy"`
}

// AssetsConfig describes the asset sources.
type AssetsConfig struct {
	// SourceDir is the directory holding images, stylesheets and scripts.
	SourceDir string `toml:"source_dir"`

	// SassDir is the stylesheet subdirectory of SourceDir.
	SassDir string `toml:"sass_dir"`

	// Ignore lists additional directory name prefixes to skip.
	Ignore []string `toml:"ignore"`
}

// OutputConfig describes the published output.
type OutputConfig struct {
	// DistDir is the directory that receives hashed files and the manifest.
	DistDir string `toml:"dist_dir"`

	// Manifest is the manifest file name inside DistDir. The extension
	// selects the encoding (.json, .yaml or .yml).
	Manifest string `toml:"manifest"`

	// PublicPrefix is prepended to rewritten references and manifest URLs
	// (e.g. "/static" or "https://cdn.example.com/assets").
	PublicPrefix string `toml:"public_prefix"`
}

// SassConfig holds sass-specific configuration.
type SassConfig struct {
	// Enabled specifies whether sass sources are compiled.
	Enabled *bool `toml:"enabled"`

	// Version is the expected dart-sass version (informational).
	Version string `toml:"version"`

	// Binary is an explicit path to the sass executable.
	Binary string `toml:"binary"`

	// Style is the output style ("expanded" or "compressed").
	Style string `toml:"style"`

	// Entrypoints are the stylesheets compiled to CSS, relative to SassDir.
	// If empty, every non-partial .scss/.sass file is an entrypoint.
	Entrypoints []string `toml:"entrypoints"`
}

// BuildConfig configures the pipeline.
type BuildConfig struct {
	// Workers bounds per-asset parallelism. Zero means runtime.NumCPU().
	Workers int `toml:"workers"`

	// Incremental reuses outputs whose fingerprint did not change.
	Incremental *bool `toml:"incremental"`

	// SyntaxCheck enables tree-sitter syntax warnings.
	SyntaxCheck *bool `toml:"syntax_check"`

	// IntermediateDir holds compiler scratch output.
	IntermediateDir string `toml:"intermediate_dir"`
}

// CompressConfig configures precompression.
type CompressConfig struct {
	// Enabled specifies whether sidecars are produced.
	Enabled *bool `toml:"enabled"`

	// Formats lists the sidecar encodings ("gzip", "zstd").
	Formats []string `toml:"formats"`

	// MinSize is the smallest text asset, in bytes, worth compressing.
	MinSize int64 `toml:"min_size"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	// Debounce is the debounce window in milliseconds.
	Debounce int `toml:"debounce"`
}

// DeployConfig configures uploads.
type DeployConfig struct {
	// Target is the destination directory of the directory uploader.
	Target string `toml:"target"`

	// Concurrency bounds parallel uploads. Zero means 4.
	Concurrency int `toml:"concurrency"`
}

// NewConfig creates a new Config with built-in defaults.
func NewConfig() *Config {
	trueVal := true
	falseVal := false
	return &Config{
		Root: ".",
		Assets: AssetsConfig{
			SourceDir: DefaultAssetsDir,
			SassDir:   DefaultSassDir,
			Ignore:    []string{},
		},
		Output: OutputConfig{
			DistDir:  DefaultOutputDir,
			Manifest: DefaultManifestFilename,
		},
		Sass: SassConfig{
			Enabled: &trueVal,
			Version: DefaultSassVersion,
			Style:   "expanded",
		},
		Build: BuildConfig{
			Incremental:     &trueVal,
			SyntaxCheck:     &trueVal,
			IntermediateDir: DefaultIntermediateDir,
		},
		Compress: CompressConfig{
			Enabled: &falseVal,
			Formats: []string{"gzip", "zstd"},
			MinSize: DefaultCompressMinSize,
		},
		Watch: WatchConfig{
			Debounce: DefaultDebounceMillis,
		},
		Deploy: DeployConfig{
			Concurrency: 4,
		},
	}
}

// Merge merges another config into this one (other takes precedence).
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Merge assets config
	if other.Assets.SourceDir != "" {
		c.Assets.SourceDir = other.Assets.SourceDir
	}
	if other.Assets.SassDir != "" {
		c.Assets.SassDir = other.Assets.SassDir
	}
	if len(other.Assets.Ignore) > 0 {
		c.Assets.Ignore = append(c.Assets.Ignore, other.Assets.Ignore...)
	}

	// Merge output config
	if other.Output.DistDir != "" {
		c.Output.DistDir = other.Output.DistDir
	}
	if other.Output.Manifest != "" {
		c.Output.Manifest = other.Output.Manifest
	}
	if other.Output.PublicPrefix != "" {
		c.Output.PublicPrefix = other.Output.PublicPrefix
	}

	// Merge sass config
	if other.Sass.Enabled != nil {
		c.Sass.Enabled = other.Sass.Enabled
	}
	if other.Sass.Version != "" {
		c.Sass.Version = other.Sass.Version
	}
	if other.Sass.Binary != "" {
		c.Sass.Binary = other.Sass.Binary
	}
	if other.Sass.Style != "" {
		c.Sass.Style = other.Sass.Style
	}
	if len(other.Sass.Entrypoints) > 0 {
		c.Sass.Entrypoints = other.Sass.Entrypoints
	}

	// Merge build config
	if other.Build.Workers != 0 {
		c.Build.Workers = other.Build.Workers
	}
	if other.Build.Incremental != nil {
		c.Build.Incremental = other.Build.Incremental
	}
	if other.Build.SyntaxCheck != nil {
		c.Build.SyntaxCheck = other.Build.SyntaxCheck
	}
	if other.Build.IntermediateDir != "" {
		c.Build.IntermediateDir = other.Build.IntermediateDir
	}

	// Merge compress config
	if other.Compress.Enabled != nil {
		c.Compress.Enabled = other.Compress.Enabled
	}
	if len(other.Compress.Formats) > 0 {
		c.Compress.Formats = other.Compress.Formats
	}
	if other.Compress.MinSize != 0 {
		c.Compress.MinSize = other.Compress.MinSize
	}

	if other.Watch.Debounce != 0 {
		c.Watch.Debounce = other.Watch.Debounce
	}

	if other.Deploy.Target != "" {
		c.Deploy.Target = other.Deploy.Target
	}
	if other.Deploy.Concurrency != 0 {
		c.Deploy.Concurrency = other.Deploy.Concurrency
	}
}

// resolve joins p to the workspace root unless it is already absolute.
func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	root := c.Root
	if root == "" {
		root = "."
	}
	return filepath.Join(root, p)
}

// SourceDir returns the absolute-or-root-relative assets directory.
func (c *Config) SourceDir() string { return c.resolve(c.Assets.SourceDir) }

// SourceSassDir returns the stylesheet directory inside SourceDir.
func (c *Config) SourceSassDir() string {
	return filepath.Join(c.SourceDir(), c.Assets.SassDir)
}

// DistDir returns the published output directory.
func (c *Config) DistDir() string { return c.resolve(c.Output.DistDir) }

// ManifestFile returns the path of the manifest inside DistDir.
func (c *Config) ManifestFile() string {
	return filepath.Join(c.DistDir(), c.Output.Manifest)
}

// IntermediateDir returns the compiler scratch directory.
func (c *Config) IntermediateDir() string { return c.resolve(c.Build.IntermediateDir) }

// StateDir returns the directory holding packler's own state files.
func (c *Config) StateDir() string { return c.resolve(ConfigDirName) }

// WorkerCount returns the effective worker pool size.
func (c *Config) WorkerCount() int {
	if c.Build.Workers > 0 {
		return c.Build.Workers
	}
	return runtime.NumCPU()
}

// SassEnabled reports whether sass compilation is enabled.
func (c *Config) SassEnabled() bool { return c.Sass.Enabled != nil && *c.Sass.Enabled }

// IncrementalEnabled reports whether unchanged outputs are reused.
func (c *Config) IncrementalEnabled() bool {
	return c.Build.Incremental != nil && *c.Build.Incremental
}

// SyntaxCheckEnabled reports whether the tree-sitter syntax stage runs.
func (c *Config) SyntaxCheckEnabled() bool {
	return c.Build.SyntaxCheck != nil && *c.Build.SyntaxCheck
}

// CompressEnabled reports whether sidecars are produced.
func (c *Config) CompressEnabled() bool {
	return c.Compress.Enabled != nil && *c.Compress.Enabled
}

// IgnoredDirs returns the directory prefixes skipped while enumerating sources.
// The output, intermediate and state directories are always ignored when
// they lie inside the source directory.
func (c *Config) IgnoredDirs() []string {
	dirs := []string{".", "node_modules", ConfigDirName}
	for _, d := range []string{c.DistDir(), c.IntermediateDir()} {
		if name, ok := c.topLevelInSource(d); ok && !slices.Contains(dirs, name) {
			dirs = append(dirs, name)
		}
	}
	dirs = append(dirs, c.Assets.Ignore...)
	return dirs
}

// topLevelInSource returns the first path element of dir below SourceDir.
func (c *Config) topLevelInSource(dir string) (string, bool) {
	rel, err := filepath.Rel(c.SourceDir(), dir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	name, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
	return name, true
}
