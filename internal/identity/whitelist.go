package identity

import "fmt"

// Whitelist restringe qué emails pueden autenticarse. Listas vacías
// significan "permitir todo". Se evalúa una vez por resolución de identidad.
type Whitelist struct {
	Emails  []string
	Domains []string
}

// Empty indica si la política no restringe nada.
func (w Whitelist) Empty() bool {
	return len(w.Emails) == 0 && len(w.Domains) == 0
}

// Allow valida el email contra la política.
// La lista explícita de emails corta antes del chequeo de dominio: un email
// permitido pasa aunque su dominio no esté en Domains.
func (w Whitelist) Allow(email string) error {
	if w.Empty() {
		return nil
	}
	for _, e := range w.Emails {
		if e == email {
			return nil
		}
	}
	if len(w.Domains) > 0 {
		domain := EmailDomain(email)
		for _, d := range w.Domains {
			if d == domain {
				return nil
			}
		}
		return fmt.Errorf("whitelist: domain not allowed")
	}
	return fmt.Errorf("whitelist: email not allowed")
}
