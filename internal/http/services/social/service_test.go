package social

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/dropDatabas3/socialauth/internal/backend"
	"github.com/dropDatabas3/socialauth/internal/config"
	"github.com/dropDatabas3/socialauth/internal/identity"
	"github.com/dropDatabas3/socialauth/internal/pipeline"
	"github.com/dropDatabas3/socialauth/internal/session"
	"github.com/dropDatabas3/socialauth/internal/store"
	"github.com/dropDatabas3/socialauth/internal/store/memory"
)

type fakeBackend struct {
	desc     backend.Descriptor
	exchange func(cb backend.CallbackParams) (*backend.AccessToken, error)
}

func newFake(name string) *fakeBackend {
	fb := &fakeBackend{
		desc: backend.Descriptor{
			Name:               name,
			Kind:               backend.KindOAuth2,
			SettingsKeyName:    "FB_KEY",
			SettingsSecretName: "FB_SECRET",
		},
	}
	fb.exchange = func(cb backend.CallbackParams) (*backend.AccessToken, error) {
		return &backend.AccessToken{Token: "tok-" + cb.Get("code")}, nil
	}
	return fb
}

func (f *fakeBackend) Name() string                 { return f.desc.Name }
func (f *fakeBackend) Kind() backend.ProtocolKind   { return f.desc.Kind }
func (f *fakeBackend) Describe() backend.Descriptor { return f.desc }

func (f *fakeBackend) AuthRequest(ctx context.Context, p backend.AuthParams) (*backend.AuthRedirect, error) {
	return &backend.AuthRedirect{
		URL:          "https://provider.test/auth?state=" + url.QueryEscape(p.State),
		Method:       "GET",
		SessionState: map[string]string{"handshake_token": "hs-1"},
	}, nil
}

func (f *fakeBackend) ExchangeToken(ctx context.Context, cb backend.CallbackParams) (*backend.AccessToken, error) {
	return f.exchange(cb)
}

func (f *fakeBackend) FetchProfile(ctx context.Context, tok *backend.AccessToken) (backend.RawProfile, error) {
	return backend.RawProfile{"email": "jane@corp.test"}, nil
}

func (f *fakeBackend) ExtractIdentity(p backend.RawProfile) identity.Record {
	email := p.Str("email")
	return identity.Record{ExternalID: email, Email: email, Username: "jane"}
}

func (f *fakeBackend) UserKey(rec identity.Record, _ backend.RawProfile) (string, error) {
	return rec.Email, nil
}

type fixture struct {
	svc      Service
	sessions session.Store
	repo     store.Repository
	fb       *fakeBackend
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fb := newFake("fake")
	registry := backend.NewRegistry(fb)
	repo := memory.New()
	sessions := session.NewMemory(time.Minute)
	creds := backend.NewCredentialSource(config.NewSettings(map[string]any{
		"FB_KEY":    "k",
		"FB_SECRET": "s",
	}))
	svc := NewService(Deps{
		Registry:        registry,
		Credentials:     creds,
		Engine:          pipeline.New(registry, pipeline.DefaultSteps(repo)),
		Sessions:        sessions,
		Repo:            repo,
		NewUserRedirect: "/welcome",
		TTL:             time.Minute,
	})
	return &fixture{svc: svc, sessions: sessions, repo: repo, fb: fb}
}

func TestStart_StoresHandshakeState(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	res, err := fx.svc.Start(ctx, StartRequest{
		Backend:   "fake",
		SessionID: "sid",
		Next:      "/dashboard",
		BaseURL:   "https://svc.test",
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	u, err := url.Parse(res.RedirectURL)
	if err != nil {
		t.Fatalf("parse redirect: %v", err)
	}
	state := u.Query().Get("state")
	if state == "" {
		t.Fatalf("redirect carries no state nonce")
	}

	stored, err := fx.sessions.Get(ctx, "sid:state")
	if err != nil {
		t.Fatalf("state not in session: %v", err)
	}
	if stored != state {
		t.Fatalf("session state %q != redirect state %q", stored, state)
	}
	if next, _ := fx.sessions.Get(ctx, "sid:next"); next != "/dashboard" {
		t.Fatalf("next = %q", next)
	}
	if hs, _ := fx.sessions.Get(ctx, "sid:handshake_token"); hs != "hs-1" {
		t.Fatalf("backend session state not persisted: %q", hs)
	}
}

func TestStart_ClearsStalePartialState(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if err := fx.sessions.Set(ctx, "sid:partial_pipeline", "{stale}", 0); err != nil {
		t.Fatalf("seed partial: %v", err)
	}
	if _, err := fx.svc.Start(ctx, StartRequest{Backend: "fake", SessionID: "sid", BaseURL: "https://svc.test"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := fx.sessions.Get(ctx, "sid:partial_pipeline"); !session.IsNotFound(err) {
		t.Fatalf("stale partial must be discarded, got err = %v", err)
	}
}

func TestStart_UnknownAndDisabledBackends(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if _, err := fx.svc.Start(ctx, StartRequest{Backend: "ghost", SessionID: "sid"}); !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("err = %v, want ErrUnknownBackend", err)
	}

	// Mismo registry, pero sin credenciales en settings: deshabilitado.
	bare := newFixtureWithoutCredentials(t)
	if _, err := bare.svc.Start(ctx, StartRequest{Backend: "fake", SessionID: "sid"}); !errors.Is(err, ErrBackendDisabled) {
		t.Fatalf("err = %v, want ErrBackendDisabled", err)
	}
}

func newFixtureWithoutCredentials(t *testing.T) *fixture {
	t.Helper()
	fb := newFake("fake")
	registry := backend.NewRegistry(fb)
	repo := memory.New()
	sessions := session.NewMemory(time.Minute)
	svc := NewService(Deps{
		Registry:    registry,
		Credentials: backend.NewCredentialSource(config.NewSettings(nil)),
		Engine:      pipeline.New(registry, pipeline.DefaultSteps(repo)),
		Sessions:    sessions,
		Repo:        repo,
	})
	return &fixture{svc: svc, sessions: sessions, repo: repo, fb: fb}
}

func TestComplete_FreshRunCreatesAccount(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if _, err := fx.svc.Start(ctx, StartRequest{Backend: "fake", SessionID: "sid", BaseURL: "https://svc.test"}); err != nil {
		t.Fatalf("start: %v", err)
	}

	res, err := fx.svc.Complete(ctx, CompleteRequest{
		Backend:   "fake",
		SessionID: "sid",
		Params:    map[string]string{"code": "abc"},
		BaseURL:   "https://svc.test",
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.Suspended {
		t.Fatalf("flow should have completed")
	}
	if !res.NewAccount {
		t.Fatalf("first login must create an account")
	}
	if res.AccountID == "" {
		t.Fatalf("account id missing")
	}
	if res.RedirectURL != "/welcome" {
		t.Fatalf("new accounts land on the new-user redirect, got %q", res.RedirectURL)
	}

	if _, err := fx.repo.FindAssociation(ctx, "fake", "jane@corp.test"); err != nil {
		t.Fatalf("association not persisted: %v", err)
	}
	if last, _ := fx.sessions.Get(ctx, "sid:last_login_backend"); last != "fake" {
		t.Fatalf("last_login_backend = %q", last)
	}
}

func TestComplete_HonorsStoredNext(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if _, err := fx.svc.Start(ctx, StartRequest{Backend: "fake", SessionID: "sid", Next: "/dashboard", BaseURL: "https://svc.test"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	res, err := fx.svc.Complete(ctx, CompleteRequest{
		Backend:   "fake",
		SessionID: "sid",
		Params:    map[string]string{"code": "abc"},
		BaseURL:   "https://svc.test",
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.RedirectURL != "/dashboard" {
		t.Fatalf("redirect = %q, want the ?next= stored at start", res.RedirectURL)
	}
}

func TestComplete_StateMismatch(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if _, err := fx.svc.Start(ctx, StartRequest{Backend: "fake", SessionID: "sid", BaseURL: "https://svc.test"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	_, err := fx.svc.Complete(ctx, CompleteRequest{
		Backend:   "fake",
		SessionID: "sid",
		Params:    map[string]string{"code": "abc", "state": "forged"},
		BaseURL:   "https://svc.test",
	})
	if !errors.Is(err, ErrStateMismatch) {
		t.Fatalf("err = %v, want ErrStateMismatch", err)
	}
}

func TestComplete_EchoedStateMatches(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	start, err := fx.svc.Start(ctx, StartRequest{Backend: "fake", SessionID: "sid", BaseURL: "https://svc.test"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	u, _ := url.Parse(start.RedirectURL)
	state := u.Query().Get("state")

	if _, err := fx.svc.Complete(ctx, CompleteRequest{
		Backend:   "fake",
		SessionID: "sid",
		Params:    map[string]string{"code": "abc", "state": state},
		BaseURL:   "https://svc.test",
	}); err != nil {
		t.Fatalf("complete with echoed state: %v", err)
	}
}

func TestComplete_SuspendThenResume(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if _, err := fx.svc.Start(ctx, StartRequest{Backend: "fake", SessionID: "sid", BaseURL: "https://svc.test"}); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Retorno sin code: el pipeline suspende y el estado queda en sesión.
	res, err := fx.svc.Complete(ctx, CompleteRequest{
		Backend:   "fake",
		SessionID: "sid",
		Params:    map[string]string{},
		BaseURL:   "https://svc.test",
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !res.Suspended {
		t.Fatalf("missing code must suspend the flow")
	}
	if _, err := fx.sessions.Get(ctx, "sid:partial_pipeline"); err != nil {
		t.Fatalf("partial state not stored: %v", err)
	}

	// Segundo retorno con el code: pop del parcial y reanudación.
	res, err = fx.svc.Complete(ctx, CompleteRequest{
		Backend:   "fake",
		SessionID: "sid",
		Params:    map[string]string{"code": "abc"},
		BaseURL:   "https://svc.test",
	})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if res.Suspended {
		t.Fatalf("flow should complete after resume")
	}
	if _, err := fx.sessions.Get(ctx, "sid:partial_pipeline"); !session.IsNotFound(err) {
		t.Fatalf("partial state must be consumed, got err = %v", err)
	}
}

func TestComplete_AssociateMode(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	account := &store.Account{Email: "jane@corp.test"}
	if err := fx.repo.CreateAccount(ctx, account); err != nil {
		t.Fatalf("seed account: %v", err)
	}

	if _, err := fx.svc.Start(ctx, StartRequest{Backend: "fake", SessionID: "sid", CurrentUserID: account.ID, BaseURL: "https://svc.test"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	res, err := fx.svc.Complete(ctx, CompleteRequest{
		Backend:       "fake",
		SessionID:     "sid",
		CurrentUserID: account.ID,
		Params:        map[string]string{"code": "abc"},
		BaseURL:       "https://svc.test",
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.NewAccount {
		t.Fatalf("associate mode must not create accounts")
	}
	if res.AccountID != account.ID {
		t.Fatalf("linked to %q, want %q", res.AccountID, account.ID)
	}
}

func TestDisconnect(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if _, err := fx.svc.Start(ctx, StartRequest{Backend: "fake", SessionID: "sid", BaseURL: "https://svc.test"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	res, err := fx.svc.Complete(ctx, CompleteRequest{
		Backend:   "fake",
		SessionID: "sid",
		Params:    map[string]string{"code": "abc"},
		BaseURL:   "https://svc.test",
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	if err := fx.svc.Disconnect(ctx, DisconnectRequest{Backend: "fake", CurrentUserID: res.AccountID}); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if _, err := fx.repo.FindAssociation(ctx, "fake", "jane@corp.test"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("association should be gone, got err = %v", err)
	}

	if err := fx.svc.Disconnect(ctx, DisconnectRequest{Backend: "fake", CurrentUserID: res.AccountID}); !errors.Is(err, ErrNotAssociated) {
		t.Fatalf("err = %v, want ErrNotAssociated", err)
	}
	if err := fx.svc.Disconnect(ctx, DisconnectRequest{Backend: "fake"}); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("err = %v, want ErrNotAuthenticated", err)
	}
	if err := fx.svc.Disconnect(ctx, DisconnectRequest{Backend: "ghost", CurrentUserID: res.AccountID}); !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("err = %v, want ErrUnknownBackend", err)
	}
}

func TestBackends_ReportsEnabledFlag(t *testing.T) {
	fx := newFixture(t)
	list := fx.svc.Backends(context.Background())
	if len(list) != 1 {
		t.Fatalf("backends = %d, want 1", len(list))
	}
	if list[0].Name != "fake" || list[0].Kind != "oauth2" || !list[0].Enabled {
		t.Fatalf("backend info = %+v", list[0])
	}

	bare := newFixtureWithoutCredentials(t)
	list = bare.svc.Backends(context.Background())
	if len(list) != 1 || list[0].Enabled {
		t.Fatalf("unconfigured backend must report disabled: %+v", list)
	}
}
