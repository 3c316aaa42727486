package bundler

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/afero"
)

// Manifest maps bundle names to the artifacts last built for them. Hosts
// load it at startup to resolve names to fingerprinted files without
// rebuilding.
type Manifest struct {
	Bundles map[string]ManifestEntry `json:"bundles"`
}

// ManifestEntry describes one built bundle.
type ManifestEntry struct {
	Kind     string    `json:"kind"`     // asset kind name
	Filename string    `json:"filename"` // artifact name
	Path     string    `json:"path"`     // artifact location on disk
	URL      string    `json:"url"`      // public URL of the artifact
	Digest   string    `json:"digest"`   // hash of the artifact bytes
	Inputs   []string  `json:"inputs"`   // root-relative references, in order
	BuiltAt  time.Time `json:"builtAt"`  // when the result was recorded
}

// NewManifest returns an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{Bundles: make(map[string]ManifestEntry)}
}

// LoadManifest reads a manifest from fs. A missing file yields an empty
// manifest.
func LoadManifest(fs afero.Fs, path string) (*Manifest, error) {
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to check manifest: %w", err)
	}
	if !exists {
		return NewManifest(), nil
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	if m.Bundles == nil {
		m.Bundles = make(map[string]ManifestEntry)
	}
	return &m, nil
}

// Save writes the manifest as indented JSON, creating parent directories.
func (m *Manifest) Save(fs afero.Fs, path string) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// Record stores a build result under name, replacing any previous entry.
func (m *Manifest) Record(name string, res *BuildResult) {
	if m.Bundles == nil {
		m.Bundles = make(map[string]ManifestEntry)
	}
	m.Bundles[name] = ManifestEntry{
		Kind:     res.Kind,
		Filename: res.Filename,
		Path:     res.Path,
		URL:      res.URL,
		Digest:   res.Digest,
		Inputs:   append([]string(nil), res.Inputs...),
		BuiltAt:  res.BuiltAt,
	}
}

// Names returns the recorded bundle names in sorted order.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.Bundles))
	for name := range m.Bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// digestFile hashes the file at path with hashFunc.
func digestFile(fs afero.Fs, hashFunc HashFunc, path string) (string, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return "", fmt.Errorf("file %s: %w", path, err)
	}
	h := hashFunc()
	if err := hashFile(bytes.NewReader(data), h); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
