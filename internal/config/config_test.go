package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadParsesMountsAndWindow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ctxcore.yaml")
	body := `
defaultFilesystemId: host-fs
mounts:
  - agentPrefix: /workspace
    canonicalPrefix: /host/dev
    filesystemId: host-fs
    writable: true
window:
  keepLastPerTurn: 8
  keepLastTurns: 2
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DefaultFilesystemID != "host-fs" {
		t.Fatalf("expected host-fs, got %q", cfg.DefaultFilesystemID)
	}
	if len(cfg.Mappings) != 1 || cfg.Mappings[0].CanonicalPrefix != "/host/dev" {
		t.Fatalf("expected one mapping to /host/dev, got %+v", cfg.Mappings)
	}
	if cfg.Window.KeepLastPerTurn != 8 || cfg.Window.KeepLastTurns != 2 {
		t.Fatalf("expected window overrides to apply, got %+v", cfg.Window)
	}
}

func TestLoadFallsBackToDefaultWindow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ctxcore.yaml")
	if err := os.WriteFile(path, []byte("defaultFilesystemId: fs1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Window.KeepLastPerTurn != 5 || cfg.Window.KeepLastTurns != 3 {
		t.Fatalf("expected observed defaults (5, 3), got %+v", cfg.Window)
	}
}

func TestLoadRejectsIncompleteMount(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ctxcore.yaml")
	body := "mounts:\n  - agentPrefix: /workspace\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for mount missing canonicalPrefix")
	}
}
