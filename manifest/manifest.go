// Package manifest persists the per-asset manifest.json with atomic writes
// and resolves per-asset directories under the data dir.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Xyri1/bili-assetizer/core"
)

// FileName is the manifest file inside each asset directory.
const FileName = "manifest.json"

// Store reads and writes manifests under a data directory, one subdirectory
// per asset id.
type Store struct {
	dataDir string
}

// NewStore returns a store rooted at dataDir.
func NewStore(dataDir string) *Store {
	return &Store{dataDir: dataDir}
}

// AssetDir returns the directory holding all of an asset's files.
func (s *Store) AssetDir(assetID string) string {
	return filepath.Join(s.dataDir, assetID)
}

// Path returns the manifest path for an asset.
func (s *Store) Path(assetID string) string {
	return filepath.Join(s.AssetDir(assetID), FileName)
}

// Exists reports whether a manifest exists for the asset.
func (s *Store) Exists(assetID string) bool {
	_, err := os.Stat(s.Path(assetID))
	return err == nil
}

// Load reads an asset's manifest from disk.
func (s *Store) Load(assetID string) (*core.Manifest, error) {
	data, err := os.ReadFile(s.Path(assetID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("asset %s: not ingested", assetID)
		}
		return nil, err
	}

	var m core.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("asset %s: parse manifest: %w", assetID, err)
	}
	if m.Stages == nil {
		m.Stages = map[string]json.RawMessage{}
	}
	return &m, nil
}

// Save writes the manifest atomically using a temporary file and rename.
// A crash mid-write leaves the previous manifest intact.
func (s *Store) Save(m *core.Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	dir := s.AssetDir(m.AssetID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".manifest-*.json")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, filepath.Join(dir, FileName))
}
