package pipeline

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/dropDatabas3/socialauth/internal/backend"
	"github.com/dropDatabas3/socialauth/internal/metrics"
	"github.com/dropDatabas3/socialauth/internal/store"
)

// Nombres de los pasos default de esta familia de protocolos.
const (
	StepObtainToken   = "obtain_token"
	StepFetchProfile  = "fetch_profile"
	StepAssociateUser = "associate_user"
	StepLoadExtraData = "load_extra_data"
)

// DefaultSteps retorna el pipeline default: obtener token, traer perfil,
// asociar/crear usuario, cargar extra-data.
func DefaultSteps(repo store.Repository) []Step {
	return []Step{
		ObtainToken(),
		FetchProfile(),
		AssociateUser(repo),
		LoadExtraData(repo),
	}
}

// StepsByName arma el pipeline desde la lista configurada de nombres.
func StepsByName(repo store.Repository, names []string) ([]Step, error) {
	if len(names) == 0 {
		return DefaultSteps(repo), nil
	}
	all := map[string]Step{
		StepObtainToken:   ObtainToken(),
		StepFetchProfile:  FetchProfile(),
		StepAssociateUser: AssociateUser(repo),
		StepLoadExtraData: LoadExtraData(repo),
	}
	out := make([]Step, 0, len(names))
	for _, name := range names {
		s, ok := all[name]
		if !ok {
			return nil, fmt.Errorf("pipeline: unknown step %q", name)
		}
		out = append(out, s)
	}
	return out, nil
}

// requiredParam indica qué parámetro del callback habilita el intercambio
// de token para cada familia.
func requiredParam(kind backend.ProtocolKind) string {
	switch kind {
	case backend.KindOAuth2:
		return "code"
	case backend.KindOAuth1:
		return "oauth_token"
	default:
		return ""
	}
}

// ObtainToken intercambia los parámetros del callback por el access token.
// Suspende si el round-trip del browser todavía no trajo la respuesta del
// proveedor.
func ObtainToken() Step {
	return Step{
		Name: StepObtainToken,
		Run: func(ctx context.Context, f *Flow) (Outcome, error) {
			if f.Token != nil {
				return Continue, nil
			}
			if p := requiredParam(f.Backend.Kind()); p != "" && f.Params.Get(p) == "" {
				return Suspend, nil
			}
			if len(f.Params) == 0 {
				return Suspend, nil
			}
			start := time.Now()
			tok, err := f.Backend.ExchangeToken(ctx, f.Params)
			metrics.ProviderLatency.WithLabelValues(f.Backend.Name()).
				Observe(float64(time.Since(start).Milliseconds()))
			if err != nil {
				return 0, err
			}
			f.Token = tok
			return Continue, nil
		},
	}
}

// FetchProfile trae el perfil remoto, lo normaliza y resuelve el id externo
// único. El rechazo de whitelist y el email requerido ausente fallan acá.
func FetchProfile() Step {
	return Step{
		Name: StepFetchProfile,
		Run: func(ctx context.Context, f *Flow) (Outcome, error) {
			if f.Profile == nil {
				profile, err := f.Backend.FetchProfile(ctx, f.Token)
				if err != nil {
					return 0, err
				}
				f.Profile = profile
			}
			f.Record = f.Backend.ExtractIdentity(f.Profile)
			uid, err := f.Backend.UserKey(f.Record, f.Profile)
			if err != nil {
				return 0, err
			}
			f.UID = uid
			return Continue, nil
		},
	}
}

// AssociateUser resuelve la asociación (provider, uid) → cuenta.
//
// Modo authenticate (sin CurrentUserID): asociación existente carga su
// cuenta; inexistente crea cuenta nueva desde el registro de identidad.
// Modo associate (CurrentUserID presente): vincula la identidad externa a
// esa cuenta; una asociación ya tomada por otra cuenta es un fallo.
func AssociateUser(repo store.Repository) Step {
	return Step{
		Name: StepAssociateUser,
		Run: func(ctx context.Context, f *Flow) (Outcome, error) {
			name := f.Backend.Name()

			assoc, err := repo.FindAssociation(ctx, name, f.UID)
			switch {
			case err == nil:
				if f.CurrentUserID != "" && assoc.AccountID != f.CurrentUserID {
					return 0, backend.Failf(name, "identity already associated with another account")
				}
				account, err := repo.GetAccount(ctx, assoc.AccountID)
				if err != nil {
					return 0, backend.FailCause(name, "load associated account", err)
				}
				f.Account = account
				f.Association = assoc
				return Continue, nil

			case !errors.Is(err, store.ErrNotFound):
				return 0, backend.FailCause(name, "association lookup", err)
			}

			var account *store.Account
			if f.CurrentUserID != "" {
				account, err = repo.GetAccount(ctx, f.CurrentUserID)
				if err != nil {
					return 0, backend.FailCause(name, "load current account", err)
				}
			} else {
				account = &store.Account{
					Email:    f.Record.Email,
					Username: f.Record.Username,
					FullName: f.Record.FullName,
				}
				if err := repo.CreateAccount(ctx, account); err != nil {
					return 0, backend.FailCause(name, "create account", err)
				}
				f.NewAccount = true
			}

			newAssoc := &store.Association{
				AccountID: account.ID,
				Provider:  name,
				UID:       f.UID,
			}
			if err := repo.CreateAssociation(ctx, newAssoc); err != nil {
				// Carrera perdida contra otro flujo concurrente: reusar la
				// asociación que ganó.
				if errors.Is(err, store.ErrDuplicate) {
					if assoc, ferr := repo.FindAssociation(ctx, name, f.UID); ferr == nil {
						f.Association = assoc
						f.Account, _ = repo.GetAccount(ctx, assoc.AccountID)
						f.NewAccount = false
						return Continue, nil
					}
				}
				return 0, backend.FailCause(name, "create association", err)
			}
			f.Account = account
			f.Association = newAssoc
			return Continue, nil
		},
	}
}

// LoadExtraData retiene en la asociación los campos protocolo-específicos
// que el descriptor declara, más el access token (fuente del expiration
// delta de sesión del caller).
func LoadExtraData(repo store.Repository) Step {
	return Step{
		Name: StepLoadExtraData,
		Run: func(ctx context.Context, f *Flow) (Outcome, error) {
			if f.Association == nil {
				return Continue, nil
			}

			// Respuesta combinada: perfil + campos del token.
			response := map[string]any{}
			for k, v := range f.Profile {
				response[k] = v
			}
			if f.Token != nil {
				response["access_token"] = f.Token.Token
				if f.Token.RefreshToken != "" {
					response["refresh_token"] = f.Token.RefreshToken
				}
				if f.Token.ExpiresIn > 0 {
					response["expires_in"] = f.Token.ExpiresIn
				}
			}

			extra := map[string]any{}
			for k, v := range f.Association.ExtraData {
				extra[k] = v
			}
			changed := false
			if tok, ok := response["access_token"]; ok {
				// Comparación profunda: el esquema del perfil es desconocido
				// y un valor anidado no es comparable con ==.
				if prev, exists := extra["access_token"]; !exists || !reflect.DeepEqual(prev, tok) {
					extra["access_token"] = tok
					changed = true
				}
			}
			for _, field := range f.Backend.Describe().ExtraData {
				v, ok := response[field.Source]
				if !ok {
					continue
				}
				if _, exists := extra[field.Target]; exists && !field.Overwrite {
					continue
				}
				if prev, exists := extra[field.Target]; !exists || !reflect.DeepEqual(prev, v) {
					extra[field.Target] = v
					changed = true
				}
			}

			if changed {
				if err := repo.UpdateExtraData(ctx, f.Association.ID, extra); err != nil {
					return 0, backend.FailCause(f.Backend.Name(), "persist extra data", err)
				}
				f.Association.ExtraData = extra
			}
			f.Record.Extra = extra
			return Continue, nil
		},
	}
}
