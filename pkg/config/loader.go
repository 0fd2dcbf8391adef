package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// ConfigFileName is the name of the project-level config file.
const ConfigFileName = "packler.toml"

// ConfigDirName is the name of the project-level config directory.
const ConfigDirName = ".packler"

// GlobalConfigDir is the name of the global config directory inside user's config.
const GlobalConfigDir = "packler"

// Load loads configuration from all layers in order of precedence:
//  1. Built-in defaults
//  2. Global user config (~/.config/packler/config.toml)
//  3. Project config (.packler/config.toml or packler.toml)
//  4. Environment variables (PACKLER_*)
//
// CLI flags are applied separately after Load() returns.
func Load() *Config {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	return LoadFrom(wd)
}

// LoadFrom loads configuration starting from a specific directory.
// The workspace root becomes the directory holding the project config,
// or the nearest workspace root above dir.
func LoadFrom(dir string) *Config {
	cfg := NewConfig()
	cfg.Root = FindWorkspaceRoot(dir)

	// Layer 2: Global user config
	if globalCfg := loadGlobalConfig(); globalCfg != nil {
		cfg.Merge(globalCfg)
	}

	// Layer 3: Project config from specified directory
	if projectCfg, projectDir := loadProjectConfigFrom(dir); projectCfg != nil {
		cfg.Merge(projectCfg)
		cfg.Root = projectDir
	}

	// Layer 4: Environment variables
	applyEnvironmentVariables(cfg)

	return cfg
}

// LoadFile loads defaults, the given file and the environment. Unlike the
// layered search, a missing or malformed file is an error.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fileCfg Config
	if _, err := toml.Decode(string(data), &fileCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	cfg := NewConfig()
	cfg.Root = configRoot(abs)
	cfg.Merge(&fileCfg)
	applyEnvironmentVariables(cfg)
	return cfg, nil
}

// configRoot returns the workspace root implied by a config file location:
// the parent of .packler/ for .packler/config.toml, its directory otherwise.
func configRoot(path string) string {
	dir := filepath.Dir(path)
	if filepath.Base(dir) == ConfigDirName {
		return filepath.Dir(dir)
	}
	return dir
}

// loadGlobalConfig loads the global user configuration from ~/.config/packler/config.toml.
func loadGlobalConfig() *Config {
	path := GetGlobalConfigPath()
	if path == "" {
		return nil
	}
	return loadConfigFile(path)
}

// loadProjectConfigFrom looks for project configuration starting from the given directory.
// It returns the config and the directory it was found in.
func loadProjectConfigFrom(dir string) (*Config, string) {
	// Search up the directory tree for config files
	current := dir
	for {
		// Check for .packler/config.toml first
		packlerDir := filepath.Join(current, ConfigDirName, "config.toml")
		if cfg := loadConfigFile(packlerDir); cfg != nil {
			return cfg, current
		}

		// Check for packler.toml in project root
		packlerToml := filepath.Join(current, ConfigFileName)
		if cfg := loadConfigFile(packlerToml); cfg != nil {
			return cfg, current
		}

		// Stop at filesystem root or workspace root
		if isWorkspaceRoot(current) {
			break
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	return nil, ""
}

// FindWorkspaceRoot walks up from dir to the nearest workspace root.
// If none is found, dir itself is returned.
func FindWorkspaceRoot(dir string) string {
	current := dir
	for {
		if isWorkspaceRoot(current) {
			return current
		}
		parent := filepath.Dir(current)
		if parent == current {
			return dir
		}
		current = parent
	}
}

// isWorkspaceRoot checks if the directory is a workspace root
// (has .git, a cargo or go module file, or a packler config).
func isWorkspaceRoot(dir string) bool {
	markers := []string{".git", "Cargo.toml", "go.mod", ConfigFileName, ConfigDirName}
	for _, marker := range markers {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}

// loadConfigFile loads a configuration from a TOML file.
func loadConfigFile(path string) *Config {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil
	}

	return &cfg
}

// applyEnvironmentVariables applies PACKLER_* environment variables to the config.
func applyEnvironmentVariables(cfg *Config) {
	if v := os.Getenv("PACKLER_SOURCE_DIR"); v != "" {
		cfg.Assets.SourceDir = v
	}
	if v := os.Getenv("PACKLER_DIST_DIR"); v != "" {
		cfg.Output.DistDir = v
	}
	if v := os.Getenv("PACKLER_MANIFEST"); v != "" {
		cfg.Output.Manifest = v
	}
	if v := os.Getenv("PACKLER_PUBLIC_PREFIX"); v != "" {
		cfg.Output.PublicPrefix = v
	}

	// Sass settings
	applyBoolEnv("PACKLER_SASS_ENABLED", &cfg.Sass.Enabled)
	if v := os.Getenv("PACKLER_SASS_BINARY"); v != "" {
		cfg.Sass.Binary = v
	}
	if v := os.Getenv("PACKLER_SASS_VERSION"); v != "" {
		cfg.Sass.Version = v
	}
	if v := os.Getenv("PACKLER_SASS_ENTRYPOINTS"); v != "" {
		cfg.Sass.Entrypoints = splitAndTrim(v)
	}

	// Build settings
	if v := os.Getenv("PACKLER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Build.Workers = n
		}
	}
	applyBoolEnv("PACKLER_INCREMENTAL", &cfg.Build.Incremental)
	applyBoolEnv("PACKLER_SYNTAX_CHECK", &cfg.Build.SyntaxCheck)

	// Compression settings
	applyBoolEnv("PACKLER_COMPRESS_ENABLED", &cfg.Compress.Enabled)
	if v := os.Getenv("PACKLER_COMPRESS_FORMATS"); v != "" {
		cfg.Compress.Formats = splitAndTrim(v)
	}

	if v := os.Getenv("PACKLER_DEPLOY_TARGET"); v != "" {
		cfg.Deploy.Target = v
	}
}

// splitAndTrim splits a comma-separated string and trims whitespace.
func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// applyBoolEnv applies a boolean environment variable to a pointer.
func applyBoolEnv(envVar string, target **bool) {
	if v := os.Getenv(envVar); v != "" {
		v = strings.ToLower(v)
		if v == "true" || v == "1" || v == "yes" {
			t := true
			*target = &t
		} else if v == "false" || v == "0" || v == "no" {
			f := false
			*target = &f
		}
	}
}

// GetGlobalConfigPath returns the path to the global config file.
func GetGlobalConfigPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(configDir, GlobalConfigDir, "config.toml")
}

// GetProjectConfigPaths returns potential project config paths for a given directory.
func GetProjectConfigPaths(dir string) []string {
	return []string{
		filepath.Join(dir, ConfigDirName, "config.toml"),
		filepath.Join(dir, ConfigFileName),
	}
}
