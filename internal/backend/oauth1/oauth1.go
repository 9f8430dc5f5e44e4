// Package oauth1 implementa la variante OAuth 1.0a ("consumer-based") del
// contrato de backend: danza de tres pasos con request token, redirección de
// autorización e intercambio por access token, más el fetch de perfil
// firmado. Soporta el modo de consumer anónimo (aplicación no registrada).
package oauth1

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dropDatabas3/socialauth/internal/backend"
)

// Claves de estado de sesión que la orquestación guarda entre el redirect
// y el callback.
const (
	SessionTokenKey       = "oauth_token"
	SessionTokenSecretKey = "oauth_token_secret"
)

// Options ajusta el comportamiento de la variante.
type Options struct {
	// ExtraScope se une al DefaultScope del descriptor.
	ExtraScope []string

	// DisplayName viaja como xoauth_displayname cuando el consumer es
	// anónimo; algunos proveedores lo muestran en la pantalla de aviso.
	DisplayName string

	// ProfileExtraParams agrega parámetros fijos al fetch de perfil
	// (ej. alt=json en los servicios googleapis legacy).
	ProfileExtraParams map[string]string

	// ProfileUnwrapKey desenvuelve la respuesta de perfil cuando el
	// proveedor anida el payload (ej. {"data": {...}}).
	ProfileUnwrapKey string

	// HTTPClient para llamadas salientes. Default: timeout 10s.
	HTTPClient *http.Client
}

// Backend es la variante OAuth1 parametrizada por descriptor y normalizador.
type Backend struct {
	backend.Normalizer

	desc  backend.Descriptor
	creds backend.CredentialSource
	opts  Options
	http  *http.Client
}

// New crea la variante OAuth1.
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

func (b *Backend) Name() string                 { return b.desc.Name }
func (b *Backend) Kind() backend.ProtocolKind   { return backend.KindOAuth1 }
func (b *Backend) Describe() backend.Descriptor { return b.desc }

func (b *Backend) scope() string {
	merged := append([]string{}, b.desc.DefaultScope...)
	merged = append(merged, b.opts.ExtraScope...)
	return strings.Join(merged, " ")
}

// signedCall ejecuta una llamada firmada y retorna los values del body
// urlencoded (formato de los endpoints request-token y access-token).
func (b *Backend) signedCall(ctx context.Context, method, endpoint string, extra url.Values, creds backend.Credentials, tokenSecret string) (url.Values, error) {
	params := oauthParams(creds.Key)
	for k := range extra {
		params.Set(k, extra.Get(k))
	}
	params.Set("oauth_signature", sign(method, endpoint, params, creds.Secret, tokenSecret))

	var req *http.Request
	var err error
	if method == http.MethodPost {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(params.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, method, endpoint+"?"+params.Encode(), nil)
	}
	if err != nil {
		return nil, backend.FailCause(b.desc.Name, "build signed request", err)
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, backend.FailCause(b.desc.Name, "transport", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return nil, backend.Failf(b.desc.Name, "http %d from %s", resp.StatusCode, endpoint)
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, backend.FailCause(b.desc.Name, "malformed token response", err)
	}
	return values, nil
}

// AuthRequest pide el request token y construye la redirección de
// autorización. El secret del request token viaja en SessionState para que
// la orquestación lo guarde hasta el callback.
func (b *Backend) AuthRequest(ctx context.Context, p backend.AuthParams) (*backend.AuthRedirect, error) {
	creds, err := b.creds.Credentials(b.desc)
	if err != nil {
		return nil, err
	}

	extra := url.Values{}
	extra.Set("oauth_callback", p.CallbackURL)
	if s := b.scope(); s != "" {
		extra.Set("scope", s)
	}
	values, err := b.signedCall(ctx, http.MethodPost, b.desc.RequestTokenURL, extra, creds, "")
	if err != nil {
		return nil, err
	}
	token := values.Get("oauth_token")
	secret := values.Get("oauth_token_secret")
	if token == "" || secret == "" {
		return nil, backend.Failf(b.desc.Name, "request token response incomplete")
	}

	u, err := url.Parse(b.desc.AuthorizationURL)
	if err != nil {
		return nil, backend.FailCause(b.desc.Name, "bad authorization url", err)
	}
	q := u.Query()
	q.Set("oauth_token", token)
	if s := b.scope(); s != "" {
		q.Set("scope", s)
	}
	if !creds.Registered() && b.opts.DisplayName != "" {
		// Hint de nombre visible para el aviso de app no registrada.
		q.Set("xoauth_displayname", b.opts.DisplayName)
	}
	u.RawQuery = q.Encode()

	return &backend.AuthRedirect{
		URL:    u.String(),
		Method: http.MethodGet,
		SessionState: map[string]string{
			SessionTokenKey:       token,
			SessionTokenSecretKey: secret,
		},
	}, nil
}

// ExchangeToken canjea el request token autorizado por el access token.
// Espera oauth_token y oauth_verifier del callback más el token secret
// reinyectado desde sesión por la orquestación.
func (b *Backend) ExchangeToken(ctx context.Context, cb backend.CallbackParams) (*backend.AccessToken, error) {
	token := cb.Get("oauth_token")
	if token == "" {
		return nil, backend.Failf(b.desc.Name, "missing oauth_token in callback")
	}
	tokenSecret := cb.Get(SessionTokenSecretKey)
	creds, err := b.creds.Credentials(b.desc)
	if err != nil {
		return nil, err
	}

	extra := url.Values{}
	extra.Set("oauth_token", token)
	if v := cb.Get("oauth_verifier"); v != "" {
		extra.Set("oauth_verifier", v)
	}
	values, err := b.signedCall(ctx, http.MethodPost, b.desc.AccessTokenURL, extra, creds, tokenSecret)
	if err != nil {
		return nil, err
	}
	access := values.Get("oauth_token")
	secret := values.Get("oauth_token_secret")
	if access == "" || secret == "" {
		return nil, backend.Failf(b.desc.Name, "access token response incomplete")
	}
	return &backend.AccessToken{Token: access, Secret: secret}, nil
}

// FetchProfile hace un GET firmado al profile endpoint.
// Degrada a nil ante errores de transporte o parseo.
func (b *Backend) FetchProfile(ctx context.Context, tok *backend.AccessToken) (backend.RawProfile, error) {
	if b.desc.ProfileURL == "" || tok == nil {
		return nil, nil
	}
	creds, err := b.creds.Credentials(b.desc)
	if err != nil {
		return nil, nil
	}

	params := oauthParams(creds.Key)
	params.Set("oauth_token", tok.Token)
	if s := b.scope(); s != "" {
		params.Set("scope", s)
	}
	for k, v := range b.opts.ProfileExtraParams {
		params.Set(k, v)
	}
	params.Set("oauth_signature", sign(http.MethodGet, b.desc.ProfileURL, params, creds.Secret, tok.Secret))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.desc.ProfileURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, nil
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return nil, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, nil
	}
	if b.opts.ProfileUnwrapKey != "" {
		if inner, ok := raw[b.opts.ProfileUnwrapKey].(map[string]any); ok {
			return backend.RawProfile(inner), nil
		}
		return nil, nil
	}
	return backend.RawProfile(raw), nil
}
