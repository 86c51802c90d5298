package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	tomlContent := `
[project]
name = "primes"
version = "0.1.0"

[run]
entry = "primes.slip"
dump-tokens = true
emit-tree = "primes.tree"
`
	if err := os.WriteFile(filepath.Join(dir, "slip.toml"), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "primes" {
		t.Errorf("project name = %q, want primes", m.Project.Name)
	}
	if m.Project.Version != "0.1.0" {
		t.Errorf("project version = %q, want 0.1.0", m.Project.Version)
	}
	if m.Run.Entry != "primes.slip" {
		t.Errorf("run entry = %q, want primes.slip", m.Run.Entry)
	}
	if !m.Run.DumpTokens {
		t.Error("run dump-tokens = false, want true")
	}
	if m.Run.EmitTree != "primes.tree" {
		t.Errorf("run emit-tree = %q, want primes.tree", m.Run.EmitTree)
	}
	if m.EntryPath() != filepath.Join(m.Dir, "primes.slip") {
		t.Errorf("entry path = %q", m.EntryPath())
	}
}

func TestFindAndLoad(t *testing.T) {
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}

	tomlContent := `[project]
name = "found-project"
`
	if err := os.WriteFile(filepath.Join(dir, "slip.toml"), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Project.Name != "found-project" {
		t.Errorf("project name = %q, want found-project", m.Project.Name)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no slip.toml exists")
	}
}

func TestEntryPathEmpty(t *testing.T) {
	m := &Manifest{Dir: "/app"}
	if got := m.EntryPath(); got != "" {
		t.Errorf("EntryPath = %q, want empty", got)
	}
}
