// Package backend define el contrato común que implementan los tres
// protocolos soportados (OpenID, OAuth1, OAuth2) y los tipos que comparten.
//
// Un Backend es la integración protocolo-específica con un proveedor. El
// pipeline y la orquestación sólo hablan con esta interfaz; la selección por
// nombre la hace el Registry construido al arranque.
package backend

import (
	"context"
	"net/url"

	"github.com/dropDatabas3/socialauth/internal/identity"
)

// ProtocolKind indica la familia de protocolo del backend.
type ProtocolKind string

const (
	KindOpenID ProtocolKind = "openid"
	KindOAuth1 ProtocolKind = "oauth1"
	KindOAuth2 ProtocolKind = "oauth2"
)

// Descriptor es la identidad estática de una integración. Inmutable,
// definido una vez por proveedor soportado.
type Descriptor struct {
	// Name es la clave usada en URLs y en sesión (ej. "google-oauth2").
	Name string
	Kind ProtocolKind

	// Endpoints del proveedor. No todos aplican a todas las familias.
	AuthorizationURL string
	RequestTokenURL  string // OAuth1
	AccessTokenURL   string // OAuth1/OAuth2
	ProfileURL       string // user-info endpoint
	IdentityURL      string // OpenID provider url

	// DefaultScope es el scope base del protocolo; se une con el scope
	// extra configurado via ScopeSettingName.
	DefaultScope     []string
	ScopeSettingName string

	// Nombres de settings para las credenciales de cliente.
	SettingsKeyName    string
	SettingsSecretName string

	// AnonymousAllowed habilita el fallback de credenciales anónimas
	// (sólo OAuth1; el proveedor muestra un aviso de confianza al usuario).
	AnonymousAllowed bool

	// ExtraData declara qué campos del perfil/token se retienen en la
	// asociación persistida.
	ExtraData []identity.ExtraField
}

// AuthParams son los datos request-level necesarios para construir la
// redirección de autorización.
type AuthParams struct {
	// CallbackURL es la URL absoluta del endpoint de complete.
	CallbackURL string
	// State es el nonce anti-CSRF para OAuth2. Lo genera la orquestación.
	State string
}

// AuthRedirect es el resultado de iniciar el handshake: una redirección GET
// o un form auto-submit (POST).
type AuthRedirect struct {
	URL    string
	Method string // "GET" | "POST"
	Form   url.Values

	// SessionState son valores que la orquestación debe guardar en sesión
	// para reanudar el handshake (ej. secret del request token OAuth1).
	SessionState map[string]string
}

// CallbackParams son los parámetros que el proveedor envía al callback,
// más los valores de sesión que la orquestación reinyecta.
type CallbackParams map[string]string

// Get retorna el parámetro o "".
func (p CallbackParams) Get(key string) string { return p[key] }

// AccessToken es la credencial transitoria emitida por el proveedor.
// Nunca la persiste el core; vive sólo durante el flujo.
type AccessToken struct {
	Token        string
	Secret       string // OAuth1 token secret
	RefreshToken string // OAuth2
	ExpiresIn    int    // segundos; 0 = desconocido
	TokenType    string

	// Raw guarda payload auxiliar del protocolo (OpenID: atributos ya
	// verificados de la respuesta firmada).
	Raw map[string]any
}

// RawProfile es el payload crudo del user-info endpoint. Esquema desconocido
// para el core; los campos se acceden defensivamente.
type RawProfile map[string]any

// Str retorna el campo como string, o "" si falta o no es string.
func (p RawProfile) Str(key string) string {
	if p == nil {
		return ""
	}
	s, _ := p[key].(string)
	return s
}

// Backend es el contrato de handshake que comparten las tres familias.
//
// Máquina de estados (dos estados por flujo): Initiated (redirect generado)
// → Completed (token intercambiado, perfil obtenido) o Failed. No hay retry
// automático: estos flujos son interactivos, reintentar es volver a iniciar.
type Backend interface {
	Name() string
	Kind() ProtocolKind
	Describe() Descriptor

	// AuthRequest construye la redirección/form de autorización.
	// Para OAuth1 incluye la llamada server-side al request-token endpoint.
	AuthRequest(ctx context.Context, p AuthParams) (*AuthRedirect, error)

	// ExchangeToken intercambia los parámetros del callback por un token.
	ExchangeToken(ctx context.Context, cb CallbackParams) (*AccessToken, error)

	// FetchProfile obtiene el perfil remoto. Errores de transporte/parseo
	// degradan a nil (perfil vacío); un campo requerido ausente escala
	// después, en la normalización.
	FetchProfile(ctx context.Context, tok *AccessToken) (RawProfile, error)

	// ExtractIdentity mapea cualquier RawProfile al registro canónico.
	// Pura y total: claves faltantes degradan a string vacío.
	ExtractIdentity(profile RawProfile) identity.Record

	// UserKey resuelve el id externo único (email por defecto) y aplica la
	// política de whitelist. Falla con AuthError si el email no pasa.
	UserKey(rec identity.Record, profile RawProfile) (string, error)
}

// Normalizer agrupa las operaciones de identidad que cada proveedor define;
// las variantes de protocolo lo embeben para completar la interfaz Backend.
type Normalizer interface {
	ExtractIdentity(profile RawProfile) identity.Record
	UserKey(rec identity.Record, profile RawProfile) (string, error)
}
