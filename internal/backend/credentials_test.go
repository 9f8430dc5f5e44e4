package backend

import (
	"testing"

	"github.com/dropDatabas3/socialauth/internal/config"
)

func testDescriptor(anonymous bool) Descriptor {
	return Descriptor{
		Name:               "fake",
		Kind:               KindOAuth2,
		SettingsKeyName:    "FAKE_KEY",
		SettingsSecretName: "FAKE_SECRET",
		AnonymousAllowed:   anonymous,
	}
}

func TestCredentials_Present(t *testing.T) {
	src := NewCredentialSource(config.NewSettings(map[string]any{
		"FAKE_KEY":    "k",
		"FAKE_SECRET": "s",
	}))

	creds, err := src.Credentials(testDescriptor(false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if creds.Key != "k" || creds.Secret != "s" {
		t.Fatalf("creds = %+v", creds)
	}
	if !creds.Registered() {
		t.Fatalf("real creds should be registered")
	}
}

func TestCredentials_MissingWithoutAnonymous(t *testing.T) {
	src := NewCredentialSource(config.NewSettings(map[string]any{
		"FAKE_KEY": "k", // falta el secret
	}))

	_, err := src.Credentials(testDescriptor(false))
	if err == nil {
		t.Fatalf("expected ConfigError")
	}
	ce, ok := err.(*ConfigError)
	if !ok {
		t.Fatalf("expected *ConfigError, got %T", err)
	}
	if ce.Setting != "FAKE_SECRET" {
		t.Fatalf("missing setting = %q, want FAKE_SECRET", ce.Setting)
	}
}

func TestCredentials_AnonymousFallback(t *testing.T) {
	src := NewCredentialSource(config.NewSettings(nil))

	creds, err := src.Credentials(testDescriptor(true))
	if err != nil {
		t.Fatalf("anonymous fallback should not fail: %v", err)
	}
	if creds != Anonymous {
		t.Fatalf("creds = %+v, want anonymous sentinel", creds)
	}
	if creds.Registered() {
		t.Fatalf("anonymous sentinel must not be registered")
	}
}

func TestEnabled(t *testing.T) {
	empty := NewCredentialSource(config.NewSettings(nil))

	if empty.Enabled(testDescriptor(false)) {
		t.Fatalf("backend without creds should be disabled")
	}
	if !empty.Enabled(testDescriptor(true)) {
		t.Fatalf("anonymous-allowed backend is always enabled")
	}

	full := NewCredentialSource(config.NewSettings(map[string]any{
		"FAKE_KEY":    "k",
		"FAKE_SECRET": "s",
	}))
	if !full.Enabled(testDescriptor(false)) {
		t.Fatalf("backend with creds should be enabled")
	}
}

func TestRegistered(t *testing.T) {
	empty := NewCredentialSource(config.NewSettings(nil))
	if empty.Registered(testDescriptor(true)) {
		t.Fatalf("anonymous fallback is not a registered app")
	}

	full := NewCredentialSource(config.NewSettings(map[string]any{
		"FAKE_KEY":    "k",
		"FAKE_SECRET": "s",
	}))
	if !full.Registered(testDescriptor(true)) {
		t.Fatalf("configured creds should count as registered")
	}
}
