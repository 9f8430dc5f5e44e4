package pipeline

import (
	"context"
	"testing"

	"github.com/dropDatabas3/socialauth/internal/backend"
	"github.com/dropDatabas3/socialauth/internal/identity"
	"github.com/dropDatabas3/socialauth/internal/store"
	"github.com/dropDatabas3/socialauth/internal/store/memory"
)

func runDefault(t *testing.T, repo store.Repository, f *Flow) (*Result, error) {
	t.Helper()
	e := New(backend.NewRegistry(f.Backend), DefaultSteps(repo))
	return e.Run(context.Background(), f, 0)
}

func TestDefaultSteps_CreatesAccountAndAssociation(t *testing.T) {
	repo := memory.New()
	fb := newFake("fake")

	result, err := runDefault(t, repo, &Flow{
		Backend: fb,
		Params:  backend.CallbackParams{"code": "abc"},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Status != Completed {
		t.Fatalf("status = %v, want Completed", result.Status)
	}
	if !result.NewAccount {
		t.Fatalf("first login should create an account")
	}
	if result.UID != "jane@corp.test" {
		t.Fatalf("uid = %q", result.UID)
	}

	assoc, err := repo.FindAssociation(context.Background(), "fake", "jane@corp.test")
	if err != nil {
		t.Fatalf("association not persisted: %v", err)
	}
	if assoc.AccountID != result.Account.ID {
		t.Fatalf("association points to %q, account is %q", assoc.AccountID, result.Account.ID)
	}
}

func TestDefaultSteps_SecondLoginReusesAccount(t *testing.T) {
	repo := memory.New()
	fb := newFake("fake")

	first, err := runDefault(t, repo, &Flow{Backend: fb, Params: backend.CallbackParams{"code": "a"}})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := runDefault(t, repo, &Flow{Backend: fb, Params: backend.CallbackParams{"code": "b"}})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.NewAccount {
		t.Fatalf("second login must not create a new account")
	}
	if second.Account.ID != first.Account.ID {
		t.Fatalf("accounts differ: %q vs %q", second.Account.ID, first.Account.ID)
	}
}

func TestDefaultSteps_AssociateToCurrentUser(t *testing.T) {
	repo := memory.New()
	fb := newFake("fake")

	account := &store.Account{Email: "jane@corp.test"}
	if err := repo.CreateAccount(context.Background(), account); err != nil {
		t.Fatalf("seed account: %v", err)
	}

	result, err := runDefault(t, repo, &Flow{
		Backend:       fb,
		Params:        backend.CallbackParams{"code": "a"},
		CurrentUserID: account.ID,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.NewAccount {
		t.Fatalf("associate mode must not create accounts")
	}
	if result.Account.ID != account.ID {
		t.Fatalf("linked to %q, want %q", result.Account.ID, account.ID)
	}
}

func TestDefaultSteps_AssociationOwnedByAnotherAccountFails(t *testing.T) {
	repo := memory.New()
	fb := newFake("fake")

	// Primer login crea la cuenta dueña de la identidad.
	if _, err := runDefault(t, repo, &Flow{Backend: fb, Params: backend.CallbackParams{"code": "a"}}); err != nil {
		t.Fatalf("seed run: %v", err)
	}

	other := &store.Account{Email: "other@corp.test"}
	if err := repo.CreateAccount(context.Background(), other); err != nil {
		t.Fatalf("seed account: %v", err)
	}

	_, err := runDefault(t, repo, &Flow{
		Backend:       fb,
		Params:        backend.CallbackParams{"code": "b"},
		CurrentUserID: other.ID,
	})
	if err == nil {
		t.Fatalf("stealing an owned identity must fail")
	}
	if !backend.IsAuthError(err) {
		t.Fatalf("expected auth error, got %T: %v", err, err)
	}
}

func TestDefaultSteps_ExtraDataHonorsDeclaredFields(t *testing.T) {
	repo := memory.New()
	fb := newFake("fake")
	fb.desc.ExtraData = []identity.ExtraField{
		{Source: "refresh_token", Target: "refresh_token", Overwrite: true},
		{Source: "expires_in", Target: "expires"},
	}
	fb.exchange = func(cb backend.CallbackParams) (*backend.AccessToken, error) {
		return &backend.AccessToken{Token: "tok-1", RefreshToken: "refresh-1", ExpiresIn: 3600}, nil
	}

	result, err := runDefault(t, repo, &Flow{Backend: fb, Params: backend.CallbackParams{"code": "a"}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	extra := result.Association.ExtraData
	if extra["access_token"] != "tok-1" {
		t.Fatalf("access_token = %v", extra["access_token"])
	}
	if extra["refresh_token"] != "refresh-1" {
		t.Fatalf("refresh_token = %v", extra["refresh_token"])
	}
	if extra["expires"] != 3600 {
		t.Fatalf("expires = %v (%T)", extra["expires"], extra["expires"])
	}

	// Segundo login: refresh_token pisa (Overwrite), expires no.
	fb.exchange = func(cb backend.CallbackParams) (*backend.AccessToken, error) {
		return &backend.AccessToken{Token: "tok-2", RefreshToken: "refresh-2", ExpiresIn: 7200}, nil
	}
	result, err = runDefault(t, repo, &Flow{Backend: fb, Params: backend.CallbackParams{"code": "b"}})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	extra = result.Association.ExtraData
	if extra["refresh_token"] != "refresh-2" {
		t.Fatalf("overwrite field not updated: %v", extra["refresh_token"])
	}
	if extra["expires"] != 3600 {
		t.Fatalf("non-overwrite field must keep first value: %v", extra["expires"])
	}
	if extra["access_token"] != "tok-2" {
		t.Fatalf("access_token should follow the latest token: %v", extra["access_token"])
	}
}

func TestDefaultSteps_ExtraDataNestedValues(t *testing.T) {
	repo := memory.New()
	fb := newFake("fake")
	fb.profile = backend.RawProfile{
		"email": "jane@corp.test",
		"emails": []any{
			map[string]any{"value": "jane@corp.test", "type": "account"},
		},
	}
	fb.desc.ExtraData = []identity.ExtraField{
		{Source: "emails", Target: "emails", Overwrite: true},
	}

	result, err := runDefault(t, repo, &Flow{Backend: fb, Params: backend.CallbackParams{"code": "a"}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, ok := result.Association.ExtraData["emails"].([]any); !ok {
		t.Fatalf("nested field not retained: %+v", result.Association.ExtraData)
	}

	// Segundo login: el valor anidado no es comparable con ==; la corrida
	// debe completar igual en vez de reventar en la comparación.
	if _, err := runDefault(t, repo, &Flow{Backend: fb, Params: backend.CallbackParams{"code": "b"}}); err != nil {
		t.Fatalf("second run: %v", err)
	}
}

func TestObtainToken_SuspendsWithoutCallbackParams(t *testing.T) {
	repo := memory.New()
	fb := newFake("fake")

	result, err := runDefault(t, repo, &Flow{Backend: fb, Params: backend.CallbackParams{}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Status != Suspended {
		t.Fatalf("status = %v, want Suspended while code is missing", result.Status)
	}
}
