package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, ":8080")
	}
	if cfg.Backend != "sqlite" {
		t.Errorf("Backend = %q, want %q", cfg.Backend, "sqlite")
	}
	if cfg.LockExpirationSeconds != 30 {
		t.Errorf("LockExpirationSeconds = %d, want 30", cfg.LockExpirationSeconds)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "latticed.toml")

	contents := `
listen_addr = ":9090"
backend = "postgres"
dsn = "postgres://localhost/lattice"
document_root = "/var/lib/lattice"
lock_expiration_seconds = 60
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, ":9090")
	}
	if cfg.Backend != "postgres" {
		t.Errorf("Backend = %q, want %q", cfg.Backend, "postgres")
	}
	if cfg.DSN != "postgres://localhost/lattice" {
		t.Errorf("DSN = %q, want %q", cfg.DSN, "postgres://localhost/lattice")
	}
	if cfg.LockExpirationSeconds != 60 {
		t.Errorf("LockExpirationSeconds = %d, want 60", cfg.LockExpirationSeconds)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("LATTICE_LISTEN_ADDR", ":7070")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":7070" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, ":7070")
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "latticed.toml")
	if err := os.WriteFile(path, []byte(`backend = "oracle"`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/latticed.toml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadRejectsNonPositiveLockExpiration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "latticed.toml")
	if err := os.WriteFile(path, []byte(`lock_expiration_seconds = 0`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for non-positive lock_expiration_seconds")
	}
}
