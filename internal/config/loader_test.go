package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	return path
}

func TestLoadLayers(t *testing.T) {
	path := writeYAML(t, "database:\n  driver: postgres\n  dsn: postgres://localhost/quire\nimport:\n  batch_size: 25\n")
	t.Setenv("QUIRE_ROOT", t.TempDir())
	t.Setenv("QUIRE_IMPORT__WORKERS", "8")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("driver = %q, want postgres", cfg.Database.Driver)
	}
	if cfg.Import.BatchSize != 25 {
		t.Errorf("batch_size = %d, want 25", cfg.Import.BatchSize)
	}
	if cfg.Import.Workers != 8 {
		t.Errorf("workers = %d, want 8 from env", cfg.Import.Workers)
	}
	if cfg.HTTP.ListenAddr != Default().HTTP.ListenAddr {
		t.Errorf("listen_addr default lost: %q", cfg.HTTP.ListenAddr)
	}
	if Get() != cfg {
		t.Errorf("Get() did not return the cached config")
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	path := writeYAML(t, "database:\n  driver: oracle\n")
	t.Setenv("QUIRE_ROOT", t.TempDir())

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for unknown driver")
	}
}
