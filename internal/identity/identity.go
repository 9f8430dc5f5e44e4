// Package identity define el registro canónico de identidad producido por
// los backends y la política de aceptación (whitelist).
package identity

import "strings"

// Record es la identidad normalizada que produce un backend a partir del
// perfil crudo del proveedor. Todos los campos degradan a string vacío
// cuando el proveedor no los informa.
type Record struct {
	// ExternalID es el id único dentro del proveedor (email por defecto).
	ExternalID string `json:"external_id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`

	// Extra contiene los campos protocolo-específicos que el backend decide
	// retener (refresh token, expiración, etc.).
	Extra map[string]any `json:"extra,omitempty"`
}

// ExtraField declara cómo se copia un campo del perfil crudo al extra-data
// de la asociación persistida.
type ExtraField struct {
	Source string
	Target string
	// Overwrite fuerza pisar el valor aunque ya exista en la asociación.
	Overwrite bool
}

// UsernameFromEmail deriva el username como la parte local del email.
func UsernameFromEmail(email string) string {
	if i := strings.IndexByte(email, '@'); i >= 0 {
		return email[:i]
	}
	return email
}

// EmailDomain retorna el dominio del email, o "" si no tiene.
func EmailDomain(email string) string {
	if i := strings.IndexByte(email, '@'); i >= 0 {
		return email[i+1:]
	}
	return ""
}
