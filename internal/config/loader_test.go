package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, resolved, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if resolved != path {
		t.Fatalf("expected resolved path %s, got %s", path, resolved)
	}
	if _, statErr := os.Stat(path); statErr != nil {
		t.Fatalf("expected default config file to be written: %v", statErr)
	}

	def := Default()
	if cfg.Addr != def.Addr || cfg.RingTimeout != def.RingTimeout || cfg.EventBuffer != def.EventBuffer {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("addr: \":9000\"\nring_timeout: 10s\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SNAPNEST_ADDR", ":9100")

	cfg, _, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9100" {
		t.Fatalf("expected env override, got %q", cfg.Addr)
	}
	if cfg.RingTimeout != 10*time.Second {
		t.Fatalf("expected ring timeout from file, got %v", cfg.RingTimeout)
	}
}

func TestUpdateFromKeepsZeroValues(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{Addr: ":7000"})

	if cfg.Addr != ":7000" {
		t.Fatalf("expected addr override, got %q", cfg.Addr)
	}
	if cfg.DatabasePath != Default().DatabasePath {
		t.Fatalf("expected database path untouched, got %q", cfg.DatabasePath)
	}
}

func TestUpdateFromCoversRelaySettings(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{
		LogFormat:         "json",
		JWTLeeway:         time.Minute,
		MaxMessageBytes:   4096,
		RingTimeout:       20 * time.Second,
		MessagesPerMinute: 30,
		EventBuffer:       8,
		AllowedOrigins:    []string{"https://app.example"},
	})

	if cfg.LogFormat != "json" || cfg.JWTLeeway != time.Minute || cfg.MaxMessageBytes != 4096 {
		t.Fatalf("expected overrides applied, got %+v", cfg)
	}
	if cfg.RingTimeout != 20*time.Second || cfg.MessagesPerMinute != 30 || cfg.EventBuffer != 8 {
		t.Fatalf("expected relay tuning applied, got %+v", cfg)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "https://app.example" {
		t.Fatalf("expected origins replaced, got %v", cfg.AllowedOrigins)
	}
	if cfg.PersistTimeout != Default().PersistTimeout || cfg.JWTTTL != Default().JWTTTL {
		t.Fatalf("zero fields must leave defaults alone")
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	def := Default()
	if err := def.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}

	cfg := Default()
	cfg.RingTimeout = 0
	cfg.EventBuffer = -1
	cfg.LogFormat = "xml"
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"ring_timeout", "event_buffer", "log_format"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q should mention %s", err, want)
		}
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("ring_timeout: -5s\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, err := Load(nil, path); err == nil || !strings.Contains(err.Error(), "ring_timeout") {
		t.Fatalf("expected ring_timeout validation error, got %v", err)
	}
}

func TestLoadOriginsFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("SNAPNEST_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, _, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("expected origins from env, got %v", cfg.AllowedOrigins)
	}
}
