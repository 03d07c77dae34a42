package staticfiles

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

// ManifestName is the file written into the static root by Collect.
const ManifestName = "staticfiles.json"

const manifestVersion = "1.1"

// ErrNoManifest is returned by LoadManifest when the root was never collected.
var ErrNoManifest = errors.New("static manifest not found")

// Manifest maps original asset names to their hashed names.
type Manifest interface {
	Lookup(name string) (string, bool)
	Paths() map[string]string
}

// MemoryManifest keeps the mapping in memory and guards access with a RWMutex.
type MemoryManifest struct {
	mu     sync.RWMutex
	paths  map[string]string
	hashed map[string]struct{}
}

type manifestFile struct {
	Paths   map[string]string `json:"paths"`
	Version string            `json:"version"`
}

// NewMemoryManifest returns an empty manifest.
func NewMemoryManifest() *MemoryManifest {
	return &MemoryManifest{
		paths:  make(map[string]string),
		hashed: make(map[string]struct{}),
	}
}

// Set records that name is stored as hashed.
func (m *MemoryManifest) Set(name, hashed string) {
	m.mu.Lock()
	m.paths[name] = hashed
	m.hashed[hashed] = struct{}{}
	m.mu.Unlock()
}

// Lookup returns the hashed name for name.
func (m *MemoryManifest) Lookup(name string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	hashed, ok := m.paths[name]
	return hashed, ok
}

// IsHashed reports whether name is the hashed form of some asset.
func (m *MemoryManifest) IsHashed(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.hashed[name]
	return ok
}

// Paths returns a copy of the mapping.
func (m *MemoryManifest) Paths() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.paths))
	for k, v := range m.paths {
		out[k] = v
	}
	return out
}

// LoadManifest reads the manifest written by Collect from root.
func LoadManifest(fs afero.Fs, root string) (*MemoryManifest, error) {
	data, err := afero.ReadFile(fs, filepath.Join(root, ManifestName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoManifest
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var file manifestFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	m := NewMemoryManifest()
	for name, hashed := range file.Paths {
		m.Set(name, hashed)
	}
	return m, nil
}

func writeManifest(fs afero.Fs, root string, m Manifest) error {
	data, err := json.MarshalIndent(manifestFile{Paths: m.Paths(), Version: manifestVersion}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := afero.WriteFile(fs, filepath.Join(root, ManifestName), data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
