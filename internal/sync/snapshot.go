package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SnapshotRenderer writes each Snapshot as indented JSON to a file. The
// file is replaced atomically so readers never see a partial write.
type SnapshotRenderer struct {
	Path string
}

// NewSnapshotRenderer returns a renderer writing to path.
func NewSnapshotRenderer(path string) *SnapshotRenderer {
	return &SnapshotRenderer{Path: path}
}

// Render implements Renderer.
func (r *SnapshotRenderer) Render(_ context.Context, snap Snapshot) error {
	dir := filepath.Dir(r.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(r.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating snapshot temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing snapshot temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.Path); err != nil {
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}
