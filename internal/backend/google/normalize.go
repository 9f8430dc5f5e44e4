package google

import (
	"github.com/dropDatabas3/socialauth/internal/backend"
	"github.com/dropDatabas3/socialauth/internal/identity"
)

// emailNormalizer mapea perfiles que sólo traen email (OpenID y OAuth1).
// Total sobre cualquier forma de perfil: claves ausentes degradan a "".
type emailNormalizer struct {
	src  backend.CredentialSource
	name string
}

func (n emailNormalizer) ExtractIdentity(profile backend.RawProfile) identity.Record {
	email := profile.Str("email")
	return identity.Record{
		ExternalID: email,
		Username:   identity.UsernameFromEmail(email),
		Email:      email,
	}
}

func (n emailNormalizer) UserKey(rec identity.Record, _ backend.RawProfile) (string, error) {
	return emailKey(n.src, n.name, rec.Email)
}

// profileNormalizer mapea el perfil completo del endpoint userinfo (OAuth2).
type profileNormalizer struct {
	src  backend.CredentialSource
	name string
}

func (n profileNormalizer) ExtractIdentity(profile backend.RawProfile) identity.Record {
	email := profile.Str("email")
	return identity.Record{
		ExternalID: email,
		Username:   identity.UsernameFromEmail(email),
		Email:      email,
		FullName:   profile.Str("name"),
		FirstName:  profile.Str("given_name"),
		LastName:   profile.Str("family_name"),
	}
}

// UserKey usa el email como id único, o el id numérico del proveedor cuando
// GOOGLE_OAUTH2_USE_UNIQUE_USER_ID está activo. El id numérico es más
// estable: una cuenta que cambia de email no duplica identidad.
func (n profileNormalizer) UserKey(rec identity.Record, profile backend.RawProfile) (string, error) {
	key, err := emailKey(n.src, n.name, rec.Email)
	if err != nil {
		return "", err
	}
	if n.src.Settings().GetBool(SettingUseUniqueUserID, false) {
		if id := profile.Str("id"); id != "" {
			return id, nil
		}
		return "", backend.Failf(n.name, "unique user id requested but missing in profile")
	}
	return key, nil
}

// emailKey valida no-vacío y aplica la whitelist antes de aceptar el email
// como id externo.
func emailKey(src backend.CredentialSource, name, email string) (string, error) {
	if email == "" {
		return "", backend.Failf(name, "email missing in provider response")
	}
	if err := whitelist(src).Allow(email); err != nil {
		return "", backend.FailCause(name, "whitelist rejected email", err)
	}
	return email, nil
}
