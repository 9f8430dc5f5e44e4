// Package oauth2 implementa la variante OAuth 2.0 del contrato de backend:
// redirección con client_id + scope + response_type=code (+ state salvo que
// se deshabilite), POST del code al token endpoint y GET del perfil con
// bearer token.
package oauth2

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dropDatabas3/socialauth/internal/backend"
)

// Options ajusta el comportamiento de la variante.
type Options struct {
	// ExtraScope se une al DefaultScope del descriptor.
	ExtraScope []string

	// DisableState omite el parámetro state (algunos proveedores lo
	// rechazan en flujos legacy). Por defecto el state viaja siempre.
	DisableState bool

	// HTTPClient para llamadas salientes. Default: timeout 10s.
	HTTPClient *http.Client

	// AuthExtraParams agrega parámetros fijos a la URL de autorización
	// (ej. access_type=offline para obtener refresh token de Google).
	AuthExtraParams map[string]string
}

// Backend es la variante OAuth2 parametrizada por descriptor y normalizador.
type Backend struct {
	backend.Normalizer

	desc  backend.Descriptor
	creds backend.CredentialSource
	opts  Options
	http  *http.Client
}

// New crea la variante OAuth2.
func New(desc backend.Descriptor, creds backend.CredentialSource, n backend.Normalizer, opts Options) *Backend {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Backend{
		Normalizer: n,
		desc:       desc,
		creds:      creds,
		opts:       opts,
		http:       client,
	}
}

func (b *Backend) Name() string                { return b.desc.Name }
func (b *Backend) Kind() backend.ProtocolKind  { return backend.KindOAuth2 }
func (b *Backend) Describe() backend.Descriptor { return b.desc }

func (b *Backend) scope() string {
	merged := append([]string{}, b.desc.DefaultScope...)
	merged = append(merged, b.opts.ExtraScope...)
	return strings.Join(merged, " ")
}

// AuthRequest construye la redirección al authorization endpoint.
func (b *Backend) AuthRequest(ctx context.Context, p backend.AuthParams) (*backend.AuthRedirect, error) {
	creds, err := b.creds.Credentials(b.desc)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(b.desc.AuthorizationURL)
	if err != nil {
		return nil, backend.FailCause(b.desc.Name, "bad authorization url", err)
	}
	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", creds.Key)
	q.Set("redirect_uri", p.CallbackURL)
	if s := b.scope(); s != "" {
		q.Set("scope", s)
	}
	if !b.opts.DisableState && p.State != "" {
		q.Set("state", p.State)
	}
	for k, v := range b.opts.AuthExtraParams {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	return &backend.AuthRedirect{URL: u.String(), Method: http.MethodGet}, nil
}

// tokenResponse es la respuesta del token endpoint.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	Error        string `json:"error,omitempty"`
	ErrorDesc    string `json:"error_description,omitempty"`
}

// ExchangeToken envía code + client secret al token endpoint.
func (b *Backend) ExchangeToken(ctx context.Context, cb backend.CallbackParams) (*backend.AccessToken, error) {
	code := cb.Get("code")
	if code == "" {
		return nil, backend.Failf(b.desc.Name, "missing code in callback")
	}
	creds, err := b.creds.Credentials(b.desc)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", creds.Key)
	form.Set("client_secret", creds.Secret)
	form.Set("redirect_uri", cb.Get("redirect_uri"))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.desc.AccessTokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, backend.FailCause(b.desc.Name, "build token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, backend.FailCause(b.desc.Name, "token exchange transport", err)
	}
	defer resp.Body.Close()

	var tr tokenResponse
	if resp.StatusCode/100 != 2 {
		_ = json.NewDecoder(resp.Body).Decode(&tr)
		return nil, backend.Failf(b.desc.Name, "token http %d: %s %s", resp.StatusCode, tr.Error, tr.ErrorDesc)
	}
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, backend.FailCause(b.desc.Name, "decode token response", err)
	}
	if tr.Error != "" {
		return nil, backend.Failf(b.desc.Name, "token error: %s %s", tr.Error, tr.ErrorDesc)
	}
	if tr.AccessToken == "" {
		return nil, backend.Failf(b.desc.Name, "no access_token in response")
	}

	return &backend.AccessToken{
		Token:        tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresIn:    tr.ExpiresIn,
		TokenType:    tr.TokenType,
	}, nil
}

// FetchProfile hace GET al profile endpoint con bearer token.
// Transporte/parseo fallido degrada a nil: los campos opcionales quedan
// vacíos y un campo requerido ausente escala recién en la normalización.
func (b *Backend) FetchProfile(ctx context.Context, tok *backend.AccessToken) (backend.RawProfile, error) {
	if b.desc.ProfileURL == "" || tok == nil {
		return nil, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.desc.ProfileURL, nil)
	if err != nil {
		return nil, nil
	}
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	var profile backend.RawProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, nil
	}
	return profile, nil
}
