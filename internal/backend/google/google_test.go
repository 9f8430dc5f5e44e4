package google

import (
	"context"
	"net/url"
	"testing"

	"github.com/dropDatabas3/socialauth/internal/backend"
)

func oauth2Redirect(t *testing.T, settings map[string]any) url.Values {
	t.Helper()
	base := map[string]any{
		SettingOAuth2ClientID: "client-id",
		SettingOAuth2Secret:   "client-secret",
	}
	for k, v := range settings {
		base[k] = v
	}

	b := NewOAuth2(newSource(base), nil)
	redirect, err := b.AuthRequest(context.Background(), backend.AuthParams{
		CallbackURL: "https://svc.test/auth/complete/google-oauth2/",
		State:       "nonce-1",
	})
	if err != nil {
		t.Fatalf("auth request: %v", err)
	}
	u, err := url.Parse(redirect.URL)
	if err != nil {
		t.Fatalf("parse redirect: %v", err)
	}
	return u.Query()
}

func TestOAuth2_StateOnByDefault(t *testing.T) {
	q := oauth2Redirect(t, nil)
	if q.Get("state") != "nonce-1" {
		t.Fatalf("state = %q, want the nonce by default", q.Get("state"))
	}
}

func TestOAuth2_RedirectStateOptOut(t *testing.T) {
	q := oauth2Redirect(t, map[string]any{SettingRedirectState: false})
	if q.Get("state") != "" {
		t.Fatalf("state = %q, want omitted when opted out", q.Get("state"))
	}
}
