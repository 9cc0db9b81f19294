package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.DefaultMode != "multi" {
		t.Fatalf("default mode: %q", cfg.DefaultMode)
	}
	if cfg.Store.Backend != "pebble" {
		t.Fatalf("store backend: %q", cfg.Store.Backend)
	}
	if !cfg.AllowAutoCreateGates {
		t.Fatalf("expected auto-create enabled by default")
	}
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	body := `{"defaultMode":"single","store":{"backend":"redis","redisAddr":"localhost:6379"}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DefaultMode != "single" || cfg.Store.Backend != "redis" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	// untouched fields keep defaults
	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("http addr default lost: %q", cfg.HTTP.Addr)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	body := "defaultMode: single\nsink:\n  natsUrl: nats://localhost:4222\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DefaultMode != "single" || cfg.Sink.NATSURL != "nats://localhost:4222" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestFromEnvOverlay(t *testing.T) {
	t.Setenv("TURNSTILE_DEFAULT_MODE", "single")
	t.Setenv("TURNSTILE_PAYLOAD_MAX_BYTES", "1024")
	t.Setenv("TURNSTILE_ALLOW_AUTO_CREATE_GATES", "false")
	t.Setenv("TURNSTILE_STORE_BACKEND", "redis")

	cfg := Default()
	FromEnv(&cfg)
	if cfg.DefaultMode != "single" || cfg.PayloadMaxBytes != 1024 {
		t.Fatalf("overlay failed: %+v", cfg)
	}
	if cfg.AllowAutoCreateGates {
		t.Fatalf("bool overlay failed")
	}
	if cfg.Store.Backend != "redis" {
		t.Fatalf("nested overlay failed")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/turnstile.json"); err == nil {
		t.Fatalf("expected error for missing file")
	}
	cfg, err := Load("")
	if err != nil || cfg.DefaultMode != "multi" {
		t.Fatalf("empty path should return defaults")
	}
}
