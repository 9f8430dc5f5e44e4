package social

import (
	"errors"
	"net/http"

	httperrors "github.com/dropDatabas3/socialauth/internal/http/errors"
	svc "github.com/dropDatabas3/socialauth/internal/http/services/social"
	"github.com/dropDatabas3/socialauth/internal/observability/logger"
	"github.com/dropDatabas3/socialauth/internal/session"
)

// DisconnectController handles unlinking a backend from the current account.
type DisconnectController struct {
	service  svc.Service
	sessions session.Store
}

// NewDisconnectController creates a new DisconnectController.
func NewDisconnectController(d ControllerDeps) *DisconnectController {
	return &DisconnectController{service: d.Service, sessions: d.Sessions}
}

// Disconnect handles DELETE|POST /auth/disconnect/{backend}/
// Con ?uid= desvincula sólo esa identidad; sin uid, todas las del backend.
func (c *DisconnectController) Disconnect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("DisconnectController.Disconnect"))

	name := r.PathValue("backend")
	if name == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("missing backend"))
		return
	}

	sid := sessionID(w, r)
	err := c.service.Disconnect(ctx, svc.DisconnectRequest{
		Backend:       name,
		CurrentUserID: currentUser(r, sid, c.sessions),
		UID:           r.URL.Query().Get("uid"),
	})
	if err != nil {
		log.Warn("disconnect failed", logger.Backend(name), logger.Err(err))
		switch {
		case errors.Is(err, svc.ErrNotAuthenticated):
			httperrors.WriteError(w, httperrors.ErrUnauthorized)
		case errors.Is(err, svc.ErrUnknownBackend):
			httperrors.WriteError(w, httperrors.ErrBackendNotFound)
		case errors.Is(err, svc.ErrNotAssociated):
			httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("association not found"))
		default:
			httperrors.WriteError(w, httperrors.ErrInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
