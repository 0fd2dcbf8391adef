package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is a manifest encoding.
type Format int

const (
	// FormatJSON is the default encoding.
	FormatJSON Format = iota
	// FormatYAML is selected by a .yaml or .yml file name.
	FormatYAML
)

// FormatFor returns the encoding implied by a file name.
func FormatFor(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Marshal encodes the manifest. Keys are emitted in sorted order so equal
// manifests encode to equal bytes.
func (m *Manifest) Marshal(f Format) ([]byte, error) {
	if m.Assets == nil {
		m.Assets = make(map[string]Entry)
	}
	switch f {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(m); err != nil {
			return nil, fmt.Errorf("failed to marshal manifest: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("failed to marshal manifest: %w", err)
		}
		return buf.Bytes(), nil
	default:
		data, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal manifest: %w", err)
		}
		return append(data, '\n'), nil
	}
}

// Unmarshal decodes a manifest.
func Unmarshal(data []byte, f Format) (*Manifest, error) {
	var m Manifest
	var err error
	switch f {
	case FormatYAML:
		err = yaml.Unmarshal(data, &m)
	default:
		err = json.Unmarshal(data, &m)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	if m.Version > Version {
		return nil, fmt.Errorf("manifest version %d is newer than supported version %d", m.Version, Version)
	}

	m.init()
	m.reindex()
	return &m, nil
}

// Load reads a manifest, choosing the encoding from the file extension.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return Unmarshal(data, FormatFor(path))
}

// LoadIfExists is Load, but returns (nil, nil) when the file does not exist.
func LoadIfExists(path string) (*Manifest, error) {
	m, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return m, err
}

// Save writes the manifest to path atomically.
func (m *Manifest) Save(path string) error {
	data, err := m.Marshal(FormatFor(path))
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	// Write to temp file first for atomic update
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp manifest: %w", err)
	}

	// Rename temp file to actual file (atomic on POSIX)
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename manifest: %w", err)
	}

	return nil
}
