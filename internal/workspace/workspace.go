// Package workspace manages the directories checkouts are materialized in.
package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Manager handles workspace directories, either ephemeral (timestamped temp
// directories removed on cleanup) or persistent (fixed directory reused
// between runs).
type Manager struct {
	baseDir    string
	dir        string
	persistent bool
}

// NewManager creates a workspace manager using ephemeral timestamped
// directories under baseDir (system temp dir when empty).
func NewManager(baseDir string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Manager{baseDir: baseDir}
}

// NewPersistentManager creates a workspace manager bound to a fixed directory
// that survives Cleanup.
func NewPersistentManager(dir string) *Manager {
	return &Manager{baseDir: filepath.Dir(dir), dir: dir, persistent: true}
}

// Create materializes the workspace directory.
func (m *Manager) Create() error {
	if m.persistent {
		if err := os.MkdirAll(m.dir, 0o750); err != nil {
			return fmt.Errorf("failed to create persistent workspace: %w", err)
		}
		slog.Info("Using persistent workspace", "path", m.dir)
		return nil
	}

	dir := filepath.Join(m.baseDir, fmt.Sprintf("docpub-%s", time.Now().Format("20060102-150405.000")))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create workspace: %w", err)
	}
	m.dir = dir
	slog.Debug("Created workspace", "path", dir)
	return nil
}

// Path returns the workspace directory path.
func (m *Manager) Path() string { return m.dir }

// Subdir returns the path of a named subdirectory, creating it if needed.
func (m *Manager) Subdir(name string) (string, error) {
	if m.dir == "" {
		return "", fmt.Errorf("workspace not created")
	}
	sub := filepath.Join(m.dir, name)
	if err := os.MkdirAll(sub, 0o750); err != nil {
		return "", fmt.Errorf("failed to create workspace subdirectory: %w", err)
	}
	return sub, nil
}

// Cleanup removes ephemeral workspaces; persistent workspaces are kept.
func (m *Manager) Cleanup() error {
	if m.dir == "" || m.persistent {
		return nil
	}
	if err := os.RemoveAll(m.dir); err != nil {
		return fmt.Errorf("failed to cleanup workspace: %w", err)
	}
	slog.Debug("Cleaned up workspace", "path", m.dir)
	m.dir = ""
	return nil
}
