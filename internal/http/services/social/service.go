package social

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/socialauth/internal/backend"
	"github.com/dropDatabas3/socialauth/internal/backend/oauth1"
	"github.com/dropDatabas3/socialauth/internal/metrics"
	"github.com/dropDatabas3/socialauth/internal/observability/logger"
	"github.com/dropDatabas3/socialauth/internal/pipeline"
	"github.com/dropDatabas3/socialauth/internal/session"
	"github.com/dropDatabas3/socialauth/internal/store"
)

// Claves de sesión propias de la orquestación. El estado parcial usa la
// clave configurada (default "partial_pipeline").
const (
	sessionStateKey     = "state"
	sessionNextKey      = "next"
	sessionLastLoginKey = "last_login_backend"
)

// Deps contiene las dependencias del servicio social.
type Deps struct {
	Registry    *backend.Registry
	Credentials backend.CredentialSource
	Engine      *pipeline.Engine
	Sessions    session.Store
	Repo        store.Repository

	// PartialKey es la clave de sesión del pipeline parcial.
	PartialKey string

	// DefaultRedirect y NewUserRedirect son los destinos post-login cuando
	// el caller no pidió uno via ?next=.
	DefaultRedirect string
	NewUserRedirect string

	// TTL del estado transitorio en sesión.
	TTL time.Duration
}

type service struct {
	registry *backend.Registry
	creds    backend.CredentialSource
	engine   *pipeline.Engine
	sessions session.Store
	repo     store.Repository

	partialKey      string
	defaultRedirect string
	newUserRedirect string
	ttl             time.Duration
}

// NewService crea el servicio de orquestación social.
func NewService(d Deps) Service {
	partialKey := d.PartialKey
	if partialKey == "" {
		partialKey = "partial_pipeline"
	}
	defaultRedirect := d.DefaultRedirect
	if defaultRedirect == "" {
		defaultRedirect = "/"
	}
	ttl := d.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &service{
		registry:        d.Registry,
		creds:           d.Credentials,
		engine:          d.Engine,
		sessions:        d.Sessions,
		repo:            d.Repo,
		partialKey:      partialKey,
		defaultRedirect: defaultRedirect,
		newUserRedirect: d.NewUserRedirect,
		ttl:             ttl,
	}
}

// key scopea una clave de sesión al session ID del browser.
func (s *service) key(sessionID, name string) string {
	return sessionID + ":" + name
}

// callbackURL arma la URL absoluta del endpoint de complete del backend.
func callbackURL(baseURL, name string) string {
	return strings.TrimRight(baseURL, "/") + "/auth/complete/" + name + "/"
}

func (s *service) resolve(name string) (backend.Backend, error) {
	b, err := s.registry.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}
	if !s.creds.Enabled(b.Describe()) {
		return nil, fmt.Errorf("%w: %s", ErrBackendDisabled, name)
	}
	return b, nil
}

// Start inicia el handshake: descarta estado parcial viejo, genera el nonce
// anti-CSRF, construye la redirección y guarda en sesión lo que el complete
// va a necesitar.
func (s *service) Start(ctx context.Context, req StartRequest) (*StartResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("social.start"))

	b, err := s.resolve(req.Backend)
	if err != nil {
		return nil, err
	}
	name := b.Name()

	// Un start nuevo invalida cualquier pipeline suspendido de la sesión:
	// el estado viejo no debe contaminar el flujo que arranca.
	_ = s.sessions.Delete(ctx, s.key(req.SessionID, s.partialKey))

	if req.Next != "" {
		if err := s.sessions.Set(ctx, s.key(req.SessionID, sessionNextKey), req.Next, s.ttl); err != nil {
			log.Warn("failed to store next redirect", logger.Err(err))
		}
	}

	state := uuid.NewString()
	if err := s.sessions.Set(ctx, s.key(req.SessionID, sessionStateKey), state, s.ttl); err != nil {
		return nil, fmt.Errorf("social: store state: %w", err)
	}

	redirect, err := b.AuthRequest(ctx, backend.AuthParams{
		CallbackURL: callbackURL(req.BaseURL, name),
		State:       state,
	})
	if err != nil {
		metrics.AuthFailed.WithLabelValues(name).Inc()
		return nil, err
	}

	// Estado que el backend necesita reinyectado al completar (ej. secret
	// del request token OAuth1).
	for k, v := range redirect.SessionState {
		if err := s.sessions.Set(ctx, s.key(req.SessionID, k), v, s.ttl); err != nil {
			return nil, fmt.Errorf("social: store handshake state: %w", err)
		}
	}

	metrics.AuthStarted.WithLabelValues(name).Inc()
	log.Info("auth flow started", logger.Backend(name), logger.Bool("associate", req.CurrentUserID != ""))

	return &StartResult{
		RedirectURL: redirect.URL,
		Method:      redirect.Method,
		Form:        redirect.Form,
	}, nil
}

// Complete procesa el retorno del proveedor. Si hay un pipeline suspendido
// en sesión lo consume (pop) y reanuda; si no, corre el pipeline desde cero.
// El pop previo garantiza que los pasos restantes corran a lo sumo una vez.
func (s *service) Complete(ctx context.Context, req CompleteRequest) (*CompleteResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("social.complete"))

	b, err := s.resolve(req.Backend)
	if err != nil {
		return nil, err
	}
	name := b.Name()

	params := backend.CallbackParams{}
	for k, v := range req.Params {
		params[k] = v
	}

	if err := s.checkState(ctx, req.SessionID, params); err != nil {
		metrics.AuthFailed.WithLabelValues(name).Inc()
		return nil, err
	}

	// Valores de sesión que el backend espera ver junto a los parámetros
	// del proveedor.
	switch b.Kind() {
	case backend.KindOAuth1:
		if secret, err := s.sessions.Pop(ctx, s.key(req.SessionID, oauth1.SessionTokenSecretKey)); err == nil {
			params[oauth1.SessionTokenSecretKey] = secret
		}
	case backend.KindOAuth2:
		params["redirect_uri"] = callbackURL(req.BaseURL, name)
	}

	var result *pipeline.Result
	raw, popErr := s.sessions.Pop(ctx, s.key(req.SessionID, s.partialKey))
	if popErr == nil {
		result, err = s.engine.Resume(ctx, []byte(raw), params, req.CurrentUserID)
	} else {
		if !session.IsNotFound(popErr) {
			return nil, fmt.Errorf("social: load partial state: %w", popErr)
		}
		flow := &pipeline.Flow{
			Backend:       b,
			Params:        params,
			CurrentUserID: req.CurrentUserID,
		}
		result, err = s.engine.Run(ctx, flow, 0)
	}
	if err != nil {
		metrics.AuthFailed.WithLabelValues(name).Inc()
		log.Warn("auth flow failed", logger.Backend(name), logger.Err(err))
		return nil, err
	}

	if result.Status == pipeline.Suspended {
		if err := s.sessions.Set(ctx, s.key(req.SessionID, s.partialKey), string(result.Partial), s.ttl); err != nil {
			return nil, fmt.Errorf("social: store partial state: %w", err)
		}
		metrics.AuthSuspended.WithLabelValues(name).Inc()
		log.Debug("auth flow suspended", logger.Backend(name))
		return &CompleteResult{Suspended: true, Backend: name}, nil
	}

	// Registrar el último backend usado; alimenta el refresh de sesión del
	// caller sin re-preguntar el proveedor.
	_ = s.sessions.Set(ctx, s.key(req.SessionID, sessionLastLoginKey), name, s.ttl)

	metrics.AuthCompleted.WithLabelValues(name).Inc()
	log.Info("auth flow completed",
		logger.Backend(name),
		logger.UID(result.UID),
		logger.Bool("new_account", result.NewAccount),
	)

	out := &CompleteResult{
		Backend:     name,
		NewAccount:  result.NewAccount,
		RedirectURL: s.nextRedirect(ctx, req.SessionID, result.NewAccount),
	}
	if result.Account != nil {
		out.AccountID = result.Account.ID
	}
	return out, nil
}

// checkState valida el nonce anti-CSRF cuando el proveedor lo devolvió.
// Backends legacy sin state (OpenID, OAuth1, OAuth2 con state deshabilitado)
// no traen el parámetro y se saltean la comparación.
func (s *service) checkState(ctx context.Context, sessionID string, params backend.CallbackParams) error {
	stored, err := s.sessions.Pop(ctx, s.key(sessionID, sessionStateKey))
	incoming := params.Get("state")
	if incoming == "" {
		return nil
	}
	if err != nil || stored != incoming {
		return ErrStateMismatch
	}
	return nil
}

// nextRedirect resuelve el destino post-login: el ?next= guardado al
// iniciar, el destino de usuario nuevo, o el default.
func (s *service) nextRedirect(ctx context.Context, sessionID string, newAccount bool) string {
	if next, err := s.sessions.Pop(ctx, s.key(sessionID, sessionNextKey)); err == nil && next != "" {
		return next
	}
	if newAccount && s.newUserRedirect != "" {
		return s.newUserRedirect
	}
	return s.defaultRedirect
}

// Disconnect desvincula el backend de la cuenta autenticada.
func (s *service) Disconnect(ctx context.Context, req DisconnectRequest) error {
	if req.CurrentUserID == "" {
		return ErrNotAuthenticated
	}
	b, err := s.registry.Get(req.Backend)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownBackend, req.Backend)
	}

	err = s.repo.DeleteAssociation(ctx, req.CurrentUserID, b.Name(), req.UID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotAssociated
	}
	if err != nil {
		return fmt.Errorf("social: disconnect: %w", err)
	}

	logger.From(ctx).Info("backend disconnected",
		logger.Backend(b.Name()),
		logger.UserID(req.CurrentUserID),
	)
	return nil
}

// Backends lista los backends registrados y si están habilitados.
func (s *service) Backends(ctx context.Context) []BackendInfo {
	names := s.registry.Names()
	out := make([]BackendInfo, 0, len(names))
	for _, name := range names {
		b, err := s.registry.Get(name)
		if err != nil {
			continue
		}
		out = append(out, BackendInfo{
			Name:    name,
			Kind:    string(b.Kind()),
			Enabled: s.creds.Enabled(b.Describe()),
		})
	}
	return out
}
