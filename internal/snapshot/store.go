// Package snapshot persists each audit stage's raw output as a JSON
// artifact, independent of the scan's final outcome. Artifacts written
// by a completed stage survive a later stage failure; they exist for
// debugging, not reporting.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Store writes per-module scan artifacts under a root directory:
//
//	root/
//	  crawler/scan-3-results.json
//	  performance/scan-3-results.json
//	  ...
type Store struct {
	root string
}

// NewStore creates the root directory if needed and returns the store.
func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("snapshot root is required")
	}
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("ensure snapshot root %s: %w", root, err)
	}
	return &Store{root: root}, nil
}

// Path returns the artifact location for a module and scan id without
// writing anything. Adapters that write their own snapshot get this as
// their output target.
func (s *Store) Path(module string, scanID int64) string {
	return filepath.Join(s.root, module, fmt.Sprintf("scan-%d-results.json", scanID))
}

// Write marshals v and writes it atomically to Path(module, scanID),
// returning the path written.
func (s *Store) Write(module string, scanID int64, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode %s snapshot: %w", module, err)
	}
	p := s.Path(module, scanID)
	if err := WriteFileAtomic(p, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s snapshot: %w", module, err)
	}
	return p, nil
}

// Read loads an artifact back into v.
func (s *Store) Read(module string, scanID int64, v any) error {
	data, err := os.ReadFile(s.Path(module, scanID))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// WriteMarshaled encodes v and writes it atomically to an arbitrary
// path. Adapters that receive an output target use this directly.
func WriteMarshaled(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return WriteFileAtomic(path, data, 0o644)
}

// WriteFileAtomic writes data via a temp file + rename so readers never
// observe a partial artifact.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-snapshot-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("set permissions: %w", err)
	}
	return os.Rename(tmpPath, path)
}
