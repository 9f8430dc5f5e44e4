package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Session.Kind != "memory" || cfg.Storage.Driver != "memory" {
		t.Fatalf("kind = %q, driver = %q", cfg.Session.Kind, cfg.Storage.Driver)
	}
	if cfg.Auth.PartialPipelineKey != "partial_pipeline" {
		t.Fatalf("partial key = %q", cfg.Auth.PartialPipelineKey)
	}
	if cfg.SessionTTL() != 15*time.Minute {
		t.Fatalf("ttl = %v", cfg.SessionTTL())
	}
	if cfg.ProviderTimeout() != 10*time.Second {
		t.Fatalf("provider timeout = %v", cfg.ProviderTimeout())
	}
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9000"
session:
  ttl: "5m"
auth:
  pipeline: [obtain_token, fetch_profile]
settings:
  GOOGLE_OAUTH2_CLIENT_KEY: file-key
`)
	t.Setenv("SERVER_ADDR", ":9999")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":9999" {
		t.Fatalf("env must override file: addr = %q", cfg.Server.Addr)
	}
	if cfg.SessionTTL() != 5*time.Minute {
		t.Fatalf("ttl = %v", cfg.SessionTTL())
	}
	if !reflect.DeepEqual(cfg.Auth.Pipeline, []string{"obtain_token", "fetch_profile"}) {
		t.Fatalf("pipeline = %v", cfg.Auth.Pipeline)
	}
	if got := cfg.SettingsView().Get("GOOGLE_OAUTH2_CLIENT_KEY", ""); got != "file-key" {
		t.Fatalf("setting = %q", got)
	}
}

func TestSettingsView_Get(t *testing.T) {
	s := NewSettings(map[string]any{
		"STR":  "v",
		"INT":  42,
		"BOOL": true,
	})
	if got := s.Get("STR", ""); got != "v" {
		t.Fatalf("STR = %q", got)
	}
	if got := s.Get("INT", ""); got != "42" {
		t.Fatalf("INT = %q", got)
	}
	if got := s.Get("BOOL", ""); got != "true" {
		t.Fatalf("BOOL = %q", got)
	}
	if got := s.Get("MISSING", "def"); got != "def" {
		t.Fatalf("MISSING = %q", got)
	}

	t.Setenv("STR", "env-wins")
	if got := s.Get("STR", ""); got != "env-wins" {
		t.Fatalf("env override: %q", got)
	}
}

func TestSettingsView_GetList(t *testing.T) {
	s := NewSettings(map[string]any{
		"YAML_LIST": []any{"a", "b"},
		"CSV":       "a, b ,c",
	})
	if got := s.GetList("YAML_LIST"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("yaml list = %v", got)
	}
	if got := s.GetList("CSV"); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("csv = %v", got)
	}
	if got := s.GetList("MISSING"); got != nil {
		t.Fatalf("missing = %v", got)
	}

	t.Setenv("YAML_LIST", "x,y")
	if got := s.GetList("YAML_LIST"); !reflect.DeepEqual(got, []string{"x", "y"}) {
		t.Fatalf("env list = %v", got)
	}
}

func TestSettingsView_GetBool(t *testing.T) {
	s := NewSettings(map[string]any{
		"ON":     true,
		"OFF":    "false",
		"BROKEN": "not-a-bool",
	})
	if !s.GetBool("ON", false) {
		t.Fatalf("ON should be true")
	}
	if s.GetBool("OFF", true) {
		t.Fatalf("OFF should be false")
	}
	if !s.GetBool("BROKEN", true) {
		t.Fatalf("unparseable falls back to default")
	}
	if s.GetBool("MISSING", false) {
		t.Fatalf("missing falls back to default")
	}
}
