// Package google define la familia de backends Google: OpenID, OAuth1
// ("consumer-based") y OAuth2.
//
// OAuth1 funciona directo con el consumer anónimo; una aplicación registrada
// define los settings GOOGLE_CONSUMER_KEY y GOOGLE_CONSUMER_SECRET y se usan
// en el proceso. GOOGLE_OAUTH_EXTRA_SCOPE amplía el acceso a otros datos del
// usuario (calendar, contacts, docs). OAuth2 requiere registrar la app en la
// consola de APIs de Google. OpenID no necesita configuración extra.
package google

import (
	"net/http"

	"github.com/dropDatabas3/socialauth/internal/backend"
	"github.com/dropDatabas3/socialauth/internal/backend/oauth1"
	"github.com/dropDatabas3/socialauth/internal/backend/oauth2"
	"github.com/dropDatabas3/socialauth/internal/backend/openid"
	"github.com/dropDatabas3/socialauth/internal/identity"
)

// Nombres de backend.
const (
	NameOpenID = "google"
	NameOAuth  = "google-oauth"
	NameOAuth2 = "google-oauth2"
)

// Settings reconocidos por la familia.
const (
	SettingConsumerKey      = "GOOGLE_CONSUMER_KEY"
	SettingConsumerSecret   = "GOOGLE_CONSUMER_SECRET"
	SettingOAuth2ClientID   = "GOOGLE_OAUTH2_CLIENT_ID"
	SettingOAuth2ClientKey  = "GOOGLE_OAUTH2_CLIENT_KEY" // compat con configs viejas
	SettingOAuth2Secret     = "GOOGLE_OAUTH2_CLIENT_SECRET"
	SettingExtraScope       = "GOOGLE_OAUTH_EXTRA_SCOPE"
	SettingDisplayName      = "GOOGLE_DISPLAY_NAME"
	SettingWhitelistEmails  = "GOOGLE_WHITE_LISTED_EMAILS"
	SettingWhitelistDomains = "GOOGLE_WHITE_LISTED_DOMAINS"
	SettingUseUniqueUserID  = "GOOGLE_OAUTH2_USE_UNIQUE_USER_ID"
	SettingRedirectState    = "GOOGLE_OAUTH2_REDIRECT_STATE"
	SettingExpirationField  = "SOCIAL_AUTH_EXPIRATION"
)

// Endpoints OAuth1.
const (
	oauthAuthorizationURL = "https://www.google.com/accounts/OAuthAuthorizeToken"
	oauthRequestTokenURL  = "https://www.google.com/accounts/OAuthGetRequestToken"
	oauthAccessTokenURL   = "https://www.google.com/accounts/OAuthGetAccessToken"
	googleapisEmail       = "https://www.googleapis.com/userinfo/email"
)

// Endpoints OAuth2.
const (
	oauth2AuthorizationURL = "https://accounts.google.com/o/oauth2/auth"
	oauth2AccessTokenURL   = "https://accounts.google.com/o/oauth2/token"
	googleapisProfile      = "https://www.googleapis.com/oauth2/v1/userinfo"
)

// OpenID.
const (
	openIDURL = "https://www.google.com/accounts/o8/id"
	jwksURL   = "https://www.googleapis.com/oauth2/v3/certs"
)

var oauthScope = []string{"https://www.googleapis.com/auth/userinfo#email"}

var oauth2Scope = []string{
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
}

// NewOpenID crea el backend OpenID de Google.
// El verifier puede ser nil: se usa el JWT verifier contra el JWKS público.
func NewOpenID(src backend.CredentialSource, verifier openid.Verifier) backend.Backend {
	desc := backend.Descriptor{
		Name:        NameOpenID,
		Kind:        backend.KindOpenID,
		IdentityURL: openIDURL,
	}
	if verifier == nil {
		verifier = openid.NewJWTVerifier("id_token", jwksURL,
			[]string{"https://accounts.google.com", "accounts.google.com"})
	}
	return openid.New(desc, emailNormalizer{src: src, name: NameOpenID}, verifier)
}

// NewOAuth1 crea el backend OAuth1 de Google. Siempre habilitado: sin
// credenciales configuradas cae al consumer anónimo y el proveedor muestra
// el aviso de aplicación no registrada.
func NewOAuth1(src backend.CredentialSource, client *http.Client) backend.Backend {
	desc := backend.Descriptor{
		Name:               NameOAuth,
		Kind:               backend.KindOAuth1,
		AuthorizationURL:   oauthAuthorizationURL,
		RequestTokenURL:    oauthRequestTokenURL,
		AccessTokenURL:     oauthAccessTokenURL,
		ProfileURL:         googleapisEmail,
		DefaultScope:       oauthScope,
		ScopeSettingName:   SettingExtraScope,
		SettingsKeyName:    SettingConsumerKey,
		SettingsSecretName: SettingConsumerSecret,
		AnonymousAllowed:   true,
	}
	return oauth1.New(desc, src, emailNormalizer{src: src, name: NameOAuth}, oauth1.Options{
		ExtraScope:  src.Settings().GetList(SettingExtraScope),
		DisplayName: src.Settings().Get(SettingDisplayName, "Social Auth"),
		// El servicio legacy de email exige alt=json y anida en "data".
		ProfileExtraParams: map[string]string{"alt": "json"},
		ProfileUnwrapKey:   "data",
		HTTPClient:         client,
	})
}

// NewOAuth2 crea el backend OAuth2 de Google.
func NewOAuth2(src backend.CredentialSource, client *http.Client) backend.Backend {
	keyName := SettingOAuth2ClientID
	if !src.Settings().Has(keyName) && src.Settings().Has(SettingOAuth2ClientKey) {
		keyName = SettingOAuth2ClientKey
	}
	desc := backend.Descriptor{
		Name:               NameOAuth2,
		Kind:               backend.KindOAuth2,
		AuthorizationURL:   oauth2AuthorizationURL,
		AccessTokenURL:     oauth2AccessTokenURL,
		ProfileURL:         googleapisProfile,
		DefaultScope:       oauth2Scope,
		ScopeSettingName:   SettingExtraScope,
		SettingsKeyName:    keyName,
		SettingsSecretName: SettingOAuth2Secret,
		ExtraData: []identity.ExtraField{
			{Source: "refresh_token", Target: "refresh_token", Overwrite: true},
			{Source: "expires_in", Target: src.Settings().Get(SettingExpirationField, "expires")},
		},
	}
	return oauth2.New(desc, src, profileNormalizer{src: src, name: NameOAuth2}, oauth2.Options{
		ExtraScope: src.Settings().GetList(SettingExtraScope),
		// State activo por defecto; GOOGLE_OAUTH2_REDIRECT_STATE=false
		// reproduce el flujo legacy donde Google rechazaba el parámetro.
		DisableState: !src.Settings().GetBool(SettingRedirectState, true),
		HTTPClient:   client,
	})
}

func whitelist(src backend.CredentialSource) identity.Whitelist {
	return identity.Whitelist{
		Emails:  src.Settings().GetList(SettingWhitelistEmails),
		Domains: src.Settings().GetList(SettingWhitelistDomains),
	}
}
