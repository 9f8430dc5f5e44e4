// Package social contains controllers for social auth endpoints.
package social

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	svc "github.com/dropDatabas3/socialauth/internal/http/services/social"
	"github.com/dropDatabas3/socialauth/internal/session"
)

// sessionCookie es la cookie que scopea el estado transitorio del flujo.
const sessionCookie = "sa_session"

// userSessionKey es la clave de sesión donde queda la cuenta autenticada.
const userSessionKey = "user_id"

// Controllers agrupa todos los controllers del dominio social.
type Controllers struct {
	Start      *StartController
	Complete   *CompleteController
	Disconnect *DisconnectController
	Backends   *BackendsController
}

// ControllerDeps contiene las dependencias compartidas de los controllers.
type ControllerDeps struct {
	Service  svc.Service
	Sessions session.Store

	// ErrorRedirect es el destino cuando el handshake falla y el flujo
	// venía de un browser. Vacío responde JSON.
	ErrorRedirect string

	// SessionTTL de la cookie y del user_id persistido en sesión.
	SessionTTL time.Duration
}

// NewControllers creates the social controllers aggregator.
func NewControllers(d ControllerDeps) *Controllers {
	return &Controllers{
		Start:      NewStartController(d),
		Complete:   NewCompleteController(d),
		Disconnect: NewDisconnectController(d),
		Backends:   NewBackendsController(d.Service),
	}
}

// sessionID obtiene (o crea) el ID de sesión del browser.
func sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	sid := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sid
}

// currentUser resuelve la cuenta autenticada: header del gateway upstream
// primero, luego la sesión propia (seteada al completar un login).
func currentUser(r *http.Request, sid string, sessions session.Store) string {
	if uid := strings.TrimSpace(r.Header.Get("X-User-ID")); uid != "" {
		return uid
	}
	if sessions == nil {
		return ""
	}
	if uid, err := sessions.Get(r.Context(), sid+":"+userSessionKey); err == nil {
		return uid
	}
	return ""
}

// baseURL reconstruye la URL base del servicio desde el request.
func baseURL(r *http.Request) string {
	scheme := r.URL.Scheme
	if scheme == "" {
		scheme = "https"
		if strings.HasPrefix(r.Host, "localhost") || strings.HasPrefix(r.Host, "127.0.0.1") {
			scheme = "http"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
	}
	return scheme + "://" + r.Host
}
