package social

import (
	"errors"
	"fmt"
	"html"
	"net/http"
	"time"

	httperrors "github.com/dropDatabas3/socialauth/internal/http/errors"
	svc "github.com/dropDatabas3/socialauth/internal/http/services/social"
	"github.com/dropDatabas3/socialauth/internal/observability/logger"
	"github.com/dropDatabas3/socialauth/internal/session"
)

// StartController handles the auth entry endpoint.
type StartController struct {
	service  svc.Service
	sessions session.Store
	ttl      time.Duration
}

// NewStartController creates a new StartController.
func NewStartController(d ControllerDeps) *StartController {
	return &StartController{service: d.Service, sessions: d.Sessions, ttl: d.SessionTTL}
}

// Start handles GET /auth/{backend}/
func (c *StartController) Start(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("StartController.Start"))

	name := r.PathValue("backend")
	if name == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("missing backend"))
		return
	}

	sid := sessionID(w, r)
	result, err := c.service.Start(ctx, svc.StartRequest{
		Backend:       name,
		SessionID:     sid,
		CurrentUserID: currentUser(r, sid, c.sessions),
		Next:          r.URL.Query().Get("next"),
		BaseURL:       baseURL(r),
	})
	if err != nil {
		log.Warn("start failed", logger.Backend(name), logger.Err(err))
		switch {
		case errors.Is(err, svc.ErrUnknownBackend):
			httperrors.WriteError(w, httperrors.ErrBackendNotFound)
		case errors.Is(err, svc.ErrBackendDisabled):
			httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("backend disabled"))
		default:
			httperrors.WriteError(w, httperrors.ErrInternalServerError)
		}
		return
	}

	// OAuth1 no registrado puede requerir POST: form auto-submit en vez de
	// redirección plana.
	if result.Method == http.MethodPost {
		writeAutoSubmitForm(w, result)
		return
	}
	http.Redirect(w, r, result.RedirectURL, http.StatusFound)
}

// writeAutoSubmitForm responde un form HTML mínimo que se envía solo.
func writeAutoSubmitForm(w http.ResponseWriter, result *svc.StartResult) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<html><body onload="document.forms[0].submit()"><form method="post" action=%q>`, result.RedirectURL)
	for k := range result.Form {
		fmt.Fprintf(w, `<input type="hidden" name=%q value=%q>`,
			html.EscapeString(k), html.EscapeString(result.Form.Get(k)))
	}
	fmt.Fprint(w, `<noscript><input type="submit" value="Continue"></noscript></form></body></html>`)
}
