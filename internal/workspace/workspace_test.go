package workspace

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEphemeralCreateAndCleanup(t *testing.T) {
	m := NewManager(t.TempDir())
	if err := m.Create(); err != nil {
		t.Fatalf("create: %v", err)
	}
	path := m.Path()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("workspace missing after create: %v", err)
	}

	sub, err := m.Subdir("docs-site")
	if err != nil {
		t.Fatalf("subdir: %v", err)
	}
	if filepath.Dir(sub) != path {
		t.Errorf("subdir %s not inside workspace %s", sub, path)
	}

	if err := m.Cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("workspace should be removed, stat err=%v", err)
	}
}

func TestPersistentSurvivesCleanup(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "working")
	m := NewPersistentManager(dir)
	if err := m.Create(); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := m.Cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("persistent workspace should survive cleanup: %v", err)
	}
}

func TestSubdirWithoutCreate(t *testing.T) {
	m := NewManager("")
	if _, err := m.Subdir("x"); err == nil {
		t.Error("expected error before Create")
	}
}
