package google

import (
	"testing"

	"github.com/dropDatabas3/socialauth/internal/backend"
	"github.com/dropDatabas3/socialauth/internal/config"
)

func newSource(values map[string]any) backend.CredentialSource {
	return backend.NewCredentialSource(config.NewSettings(values))
}

func TestProfileNormalizer_FullProfile(t *testing.T) {
	n := profileNormalizer{src: newSource(nil), name: NameOAuth2}
	profile := backend.RawProfile{
		"id":          "1234567890",
		"email":       "jane.doe@corp.test",
		"name":        "Jane Doe",
		"given_name":  "Jane",
		"family_name": "Doe",
	}

	rec := n.ExtractIdentity(profile)
	if rec.Email != "jane.doe@corp.test" {
		t.Fatalf("email = %q", rec.Email)
	}
	if rec.Username != "jane.doe" {
		t.Fatalf("username = %q, want jane.doe", rec.Username)
	}
	if rec.FullName != "Jane Doe" || rec.FirstName != "Jane" || rec.LastName != "Doe" {
		t.Fatalf("names = %q / %q / %q", rec.FullName, rec.FirstName, rec.LastName)
	}

	uid, err := n.UserKey(rec, profile)
	if err != nil {
		t.Fatalf("UserKey: %v", err)
	}
	if uid != "jane.doe@corp.test" {
		t.Fatalf("uid = %q, want the email", uid)
	}
}

func TestProfileNormalizer_EmptyProfileIsTotal(t *testing.T) {
	n := profileNormalizer{src: newSource(nil), name: NameOAuth2}

	rec := n.ExtractIdentity(nil)
	if rec.Email != "" || rec.Username != "" || rec.FullName != "" {
		t.Fatalf("empty profile should degrade to empty fields: %+v", rec)
	}

	// Sin email no hay identidad aceptable.
	if _, err := n.UserKey(rec, nil); err == nil {
		t.Fatalf("missing email must fail UserKey")
	}
}

func TestProfileNormalizer_UniqueUserID(t *testing.T) {
	n := profileNormalizer{
		src:  newSource(map[string]any{SettingUseUniqueUserID: true}),
		name: NameOAuth2,
	}
	profile := backend.RawProfile{"id": "1234567890", "email": "jane@corp.test"}
	rec := n.ExtractIdentity(profile)

	uid, err := n.UserKey(rec, profile)
	if err != nil {
		t.Fatalf("UserKey: %v", err)
	}
	if uid != "1234567890" {
		t.Fatalf("uid = %q, want the provider id", uid)
	}

	// Flag activo pero el proveedor no mandó id: fallo, no fallback
	// silencioso al email (cambiaría la clave de usuario sin aviso).
	noID := backend.RawProfile{"email": "jane@corp.test"}
	if _, err := n.UserKey(n.ExtractIdentity(noID), noID); err == nil {
		t.Fatalf("missing provider id with flag on must fail")
	}
}

func TestEmailNormalizer_Whitelist(t *testing.T) {
	n := emailNormalizer{
		src: newSource(map[string]any{
			SettingWhitelistDomains: []any{"corp.test"},
		}),
		name: NameOpenID,
	}

	ok := backend.RawProfile{"email": "jane@corp.test"}
	if _, err := n.UserKey(n.ExtractIdentity(ok), ok); err != nil {
		t.Fatalf("whitelisted domain should pass: %v", err)
	}

	bad := backend.RawProfile{"email": "jane@evil.test"}
	_, err := n.UserKey(n.ExtractIdentity(bad), bad)
	if err == nil {
		t.Fatalf("foreign domain must be rejected")
	}
	if !backend.IsAuthError(err) {
		t.Fatalf("whitelist rejection should be an auth error, got %T", err)
	}
}
