// Package workspace is the local filesystem side of a deploy: the directory
// the artifact is downloaded to and the directory it is unpacked into.
package workspace

import (
	"os"
	"path/filepath"

	"github.com/deploykit/site-deploy/internal/types"
)

// Workspace performs the local filesystem mutations a deploy needs.
type Workspace struct{}

// New creates a Workspace.
func New() *Workspace {
	return &Workspace{}
}

// EnsureEmptyDir makes path an existing, empty directory. An existing
// directory is removed recursively first, without confirmation.
func (w *Workspace) EnsureEmptyDir(path string) error {
	if _, err := os.Stat(path); err == nil {
		if err := os.RemoveAll(path); err != nil {
			return types.E(types.KindRemoveFailed, "remove %s: %w", path, err)
		}
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return types.E(types.KindMkdirFailed, "create %s: %w", path, err)
	}
	return nil
}

// RemoveFile deletes a single file.
func (w *Workspace) RemoveFile(path string) error {
	if err := os.Remove(path); err != nil {
		return types.E(types.KindRemoveFailed, "remove %s: %w", path, err)
	}
	return nil
}

// ClearDir removes everything inside path, leaving the directory itself.
func (w *Workspace) ClearDir(path string) error {
	entries, err := os.ReadDir(path)
	if err != nil {
		return types.E(types.KindRemoveFailed, "read %s: %w", path, err)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(path, entry.Name())); err != nil {
			return types.E(types.KindRemoveFailed, "remove %s: %w", filepath.Join(path, entry.Name()), err)
		}
	}
	return nil
}
