package social

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/dropDatabas3/socialauth/internal/backend"
	httperrors "github.com/dropDatabas3/socialauth/internal/http/errors"
	svc "github.com/dropDatabas3/socialauth/internal/http/services/social"
	"github.com/dropDatabas3/socialauth/internal/observability/logger"
	"github.com/dropDatabas3/socialauth/internal/pipeline"
	"github.com/dropDatabas3/socialauth/internal/session"
)

// CompleteController handles the provider callback endpoint.
type CompleteController struct {
	service       svc.Service
	sessions      session.Store
	errorRedirect string
	ttl           time.Duration
}

// NewCompleteController creates a new CompleteController.
func NewCompleteController(d ControllerDeps) *CompleteController {
	return &CompleteController{
		service:       d.Service,
		sessions:      d.Sessions,
		errorRedirect: d.ErrorRedirect,
		ttl:           d.SessionTTL,
	}
}

// Complete handles GET|POST /auth/complete/{backend}/
func (c *CompleteController) Complete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("CompleteController.Complete"))

	name := r.PathValue("backend")
	if name == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("missing backend"))
		return
	}

	// El proveedor puede volver por GET (query) o POST (form).
	params := map[string]string{}
	if r.Method == http.MethodPost {
		_ = r.ParseForm()
		for k := range r.PostForm {
			params[k] = r.PostForm.Get(k)
		}
	}
	for k := range r.URL.Query() {
		params[k] = r.URL.Query().Get(k)
	}

	// Rechazo explícito del proveedor (usuario canceló, scope denegado).
	if idpError := params["error"]; idpError != "" {
		log.Warn("provider returned error",
			logger.Backend(name),
			logger.String("error", idpError),
			logger.String("description", params["error_description"]),
		)
		c.fail(w, r, idpError, params["error_description"])
		return
	}

	sid := sessionID(w, r)
	result, err := c.service.Complete(ctx, svc.CompleteRequest{
		Backend:       name,
		SessionID:     sid,
		CurrentUserID: currentUser(r, sid, c.sessions),
		Params:        params,
		BaseURL:       baseURL(r),
	})
	if err != nil {
		log.Warn("complete failed", logger.Backend(name), logger.Err(err))
		switch {
		case errors.Is(err, svc.ErrUnknownBackend):
			httperrors.WriteError(w, httperrors.ErrBackendNotFound)
		case errors.Is(err, svc.ErrBackendDisabled):
			httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("backend disabled"))
		case errors.Is(err, svc.ErrStateMismatch):
			httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("invalid or expired state"))
		case errors.Is(err, pipeline.ErrNoPartial):
			httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("no pending authentication"))
		case backend.IsAuthError(err):
			c.fail(w, r, "access_denied", "authentication failed")
		default:
			httperrors.WriteError(w, httperrors.ErrInternalServerError)
		}
		return
	}

	if result.Suspended {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "pending", "backend": result.Backend})
		return
	}

	// Persistir la cuenta autenticada en la sesión del browser para los
	// próximos flujos de asociación/desvinculación.
	if result.AccountID != "" {
		_ = c.sessions.Set(ctx, sid+":"+userSessionKey, result.AccountID, c.ttl)
	}

	http.Redirect(w, r, result.RedirectURL, http.StatusFound)
}

// fail redirige al destino de error con parámetros estilo OAuth2, o responde
// JSON si no hay destino configurado.
func (c *CompleteController) fail(w http.ResponseWriter, r *http.Request, code, description string) {
	if c.errorRedirect == "" {
		httperrors.WriteError(w, httperrors.ErrAuthenticationFailed.WithDetail(code))
		return
	}
	u, err := url.Parse(c.errorRedirect)
	if err != nil {
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}
	q := u.Query()
	q.Set("error", code)
	if description != "" {
		q.Set("error_description", description)
	}
	u.RawQuery = q.Encode()
	http.Redirect(w, r, u.String(), http.StatusFound)
}
