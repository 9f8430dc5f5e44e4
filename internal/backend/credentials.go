package backend

import "github.com/dropDatabas3/socialauth/internal/config"

// Credentials es el par (key, secret) de la aplicación registrada ante el
// proveedor, resuelto en el momento de la llamada desde settings.
type Credentials struct {
	Key    string
	Secret string
}

// Anonymous es el sentinel de acceso no registrado (sólo OAuth1). El
// proveedor muestra un aviso de "aplicación no registrada" al usuario.
var Anonymous = Credentials{Key: "anonymous", Secret: "anonymous"}

// Registered indica si las credenciales no son el sentinel anónimo.
func (c Credentials) Registered() bool { return c != Anonymous }

// CredentialSource resuelve credenciales por backend desde la configuración.
// Lectura concurrente segura: settings es estado read-only de proceso.
type CredentialSource struct {
	settings config.SettingsView
}

// NewCredentialSource crea el resolutor sobre la vista de settings.
func NewCredentialSource(settings config.SettingsView) CredentialSource {
	return CredentialSource{settings: settings}
}

// Settings expone la vista subyacente (scopes extra, whitelists, flags).
func (s CredentialSource) Settings() config.SettingsView { return s.settings }

// Credentials lee los dos settings nombrados por el descriptor. Si faltan y
// el backend permite acceso anónimo retorna el sentinel; si no, ConfigError.
// Sin control de flujo por excepción: lookup explícito con fallback.
func (s CredentialSource) Credentials(d Descriptor) (Credentials, error) {
	key := s.settings.Get(d.SettingsKeyName, "")
	secret := s.settings.Get(d.SettingsSecretName, "")
	if key != "" && secret != "" {
		return Credentials{Key: key, Secret: secret}, nil
	}
	if d.AnonymousAllowed {
		return Anonymous, nil
	}
	missing := d.SettingsKeyName
	if key != "" {
		missing = d.SettingsSecretName
	}
	return Credentials{}, &ConfigError{Backend: d.Name, Setting: missing}
}

// Enabled indica si el backend puede usarse: credenciales presentes o
// fallback anónimo permitido (los backends OAuth1 estilo Google siempre
// están habilitados).
func (s CredentialSource) Enabled(d Descriptor) bool {
	if d.AnonymousAllowed {
		return true
	}
	_, err := s.Credentials(d)
	return err == nil
}

// Registered indica si las credenciales resueltas no son el sentinel.
// Algunos proveedores OAuth1 exigen declarar "aplicación no registrada"
// durante la autorización; este flag alimenta esa decisión.
func (s CredentialSource) Registered(d Descriptor) bool {
	creds, err := s.Credentials(d)
	if err != nil {
		return false
	}
	return creds.Registered()
}
