package crawler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ProgressWriter persists crawl checkpoints. Each write replaces the
// previous snapshot atomically, so a crash loses at most the in-flight
// unit of work.
type ProgressWriter struct {
	path string
}

func NewProgressWriter(path string) *ProgressWriter {
	return &ProgressWriter{path: path}
}

func (w *ProgressWriter) Write(p Progress) error {
	if w == nil || w.path == "" {
		return nil
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}

	// write-then-rename keeps the previous snapshot intact if this
	// write dies halfway
	tmp := w.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, w.path)
}
