package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/launchpad/internal/logger"
)

// workspaceDirMode is used for directories created inside the workspace.
const workspaceDirMode = 0o700

// Workspace is the per-run directory that owns every file created by the run.
type Workspace struct {
	// Dir is the absolute workspace path.
	Dir string
}

// NewWorkspace creates a uniquely named directory under parent (the system
// temp dir when empty). The name starts with prefix followed by random characters.
func NewWorkspace(parent, prefix string) (*Workspace, error) {
	dir, err := os.MkdirTemp(parent, prefix)
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	absolute, err := filepath.Abs(dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("resolve workspace: %w", err)
	}

	return &Workspace{Dir: absolute}, nil
}

// Path returns name joined to the workspace directory.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// Mkdir creates a subdirectory and returns its path.
func (w *Workspace) Mkdir(name string) (string, error) {
	dir := w.Path(name)
	if err := os.Mkdir(dir, workspaceDirMode); err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}

	return dir, nil
}

// Destroy removes the workspace recursively. Failures are logged, never returned.
func (w *Workspace) Destroy(ctx context.Context) {
	if w == nil || w.Dir == "" {
		return
	}

	if err := os.RemoveAll(w.Dir); err != nil {
		logger.WarnKV(ctx, "Failed to remove workspace", "dir", w.Dir, "error", err)
		return
	}

	logger.InfoKV(ctx, "Workspace removed", "dir", w.Dir)
}
