// Package openid implementa la variante OpenID del contrato de backend.
//
// A diferencia de OAuth no hay credenciales de cliente: la redirección va a
// una URL fija del proveedor de identidad y el callback trae una respuesta
// firmada. La verificación criptográfica (nonce/asociación) se delega en un
// colaborador Verifier; los atributos de perfil salen directo de la
// respuesta verificada, sin fetch separado.
package openid

import (
	"context"
	"net/http"
	"net/url"

	"github.com/dropDatabas3/socialauth/internal/backend"
)

// Verifier valida la respuesta firmada del proveedor y retorna los
// atributos afirmados. Implementaciones típicas: verificación JWT contra
// el JWKS del proveedor, o una librería OpenID 2.0 completa.
type Verifier interface {
	Verify(ctx context.Context, params backend.CallbackParams) (map[string]any, error)
}

// Backend es la variante OpenID parametrizada por descriptor y normalizador.
type Backend struct {
	backend.Normalizer

	desc     backend.Descriptor
	verifier Verifier
}

// New crea la variante OpenID.
func New(desc backend.Descriptor, n backend.Normalizer, verifier Verifier) *Backend {
	return &Backend{Normalizer: n, desc: desc, verifier: verifier}
}

func (b *Backend) Name() string                 { return b.desc.Name }
func (b *Backend) Kind() backend.ProtocolKind   { return backend.KindOpenID }
func (b *Backend) Describe() backend.Descriptor { return b.desc }

// AuthRequest construye la petición de autenticación contra la URL fija del
// proveedor. checkid_setup con identifier select y fetch de atributos AX.
func (b *Backend) AuthRequest(ctx context.Context, p backend.AuthParams) (*backend.AuthRedirect, error) {
	u, err := url.Parse(b.desc.IdentityURL)
	if err != nil {
		return nil, backend.FailCause(b.desc.Name, "bad identity url", err)
	}
	q := u.Query()
	q.Set("openid.ns", "http://specs.openid.net/auth/2.0")
	q.Set("openid.mode", "checkid_setup")
	q.Set("openid.claimed_id", "http://specs.openid.net/auth/2.0/identifier_select")
	q.Set("openid.identity", "http://specs.openid.net/auth/2.0/identifier_select")
	q.Set("openid.return_to", p.CallbackURL)
	q.Set("openid.ns.ax", "http://openid.net/srv/ax/1.0")
	q.Set("openid.ax.mode", "fetch_request")
	q.Set("openid.ax.required", "email,first_name,last_name")
	q.Set("openid.ax.type.email", "http://axschema.org/contact/email")
	q.Set("openid.ax.type.first_name", "http://axschema.org/namePerson/first")
	q.Set("openid.ax.type.last_name", "http://axschema.org/namePerson/last")
	u.RawQuery = q.Encode()

	return &backend.AuthRedirect{URL: u.String(), Method: http.MethodGet}, nil
}

// ExchangeToken verifica la respuesta firmada del callback. No hay token
// opaco: el "token" son los atributos verificados, cacheados en Raw.
func (b *Backend) ExchangeToken(ctx context.Context, cb backend.CallbackParams) (*backend.AccessToken, error) {
	attrs, err := b.verifier.Verify(ctx, cb)
	if err != nil {
		return nil, backend.FailCause(b.desc.Name, "signed response rejected", err)
	}
	return &backend.AccessToken{Raw: attrs}, nil
}

// FetchProfile retorna los atributos ya extraídos en el exchange.
func (b *Backend) FetchProfile(ctx context.Context, tok *backend.AccessToken) (backend.RawProfile, error) {
	if tok == nil || tok.Raw == nil {
		return nil, nil
	}
	return backend.RawProfile(tok.Raw), nil
}
