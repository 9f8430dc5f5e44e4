// Package pipeline implementa la secuencia ordenada e interrumpible de
// pasos que convierte un request entrante en una identidad autenticada o en
// una continuación serializada.
//
// Un paso puede suspender el flujo cuando el protocolo necesita un
// round-trip de browser todavía no disponible. La suspensión no es un yield
// in-process: el estado serializado (Partial) vive en el session store del
// caller y el resume puede aterrizar en otro proceso u otra máquina, por lo
// que Partial es autocontenido. El caller hace pop del estado ANTES de
// reanudar: los pasos restantes se ejecutan a lo sumo una vez aunque el
// request de resume se duplique.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dropDatabas3/socialauth/internal/backend"
	"github.com/dropDatabas3/socialauth/internal/identity"
	"github.com/dropDatabas3/socialauth/internal/observability/logger"
	"github.com/dropDatabas3/socialauth/internal/store"
)

// ErrNoPartial indica un resume sin estado almacenado: expirado, ya
// consumido o forjado. La orquestación lo trata igual que un AuthFailed.
var ErrNoPartial = errors.New("pipeline: no partial state")

// Outcome es el resultado de un paso.
type Outcome int

const (
	// Continue pasa al siguiente paso.
	Continue Outcome = iota
	// Suspend corta la ejecución y serializa la continuación.
	Suspend
	// Done corta la ejecución con éxito sin ejecutar pasos restantes.
	Done
)

// Step es un paso nombrado del pipeline. Función pura del flujo acumulado:
// no retiene estado entre ejecuciones.
type Step struct {
	Name string
	Run  func(ctx context.Context, f *Flow) (Outcome, error)
}

// Flow es el contexto acumulado de una corrida. Los campos serializables
// viajan en Partial al suspender; Backend se reconstruye por nombre.
type Flow struct {
	Backend backend.Backend

	// Params son los argumentos acumulados: parámetros del callback del
	// proveedor más valores reinyectados desde sesión.
	Params backend.CallbackParams

	// CurrentUserID no vacío selecciona modo "associate": la identidad
	// externa se vincula a esta cuenta ya autenticada en vez de crear una.
	CurrentUserID string

	Token   *backend.AccessToken
	Profile backend.RawProfile
	Record  identity.Record
	UID     string

	Account     *store.Account
	Association *store.Association
	NewAccount  bool
}

// Partial es el snapshot serializable de una corrida interrumpida.
// Se consume exactamente una vez (pop del session store) al reanudar.
type Partial struct {
	Backend     string                `json:"backend"`
	Next        int                   `json:"next"`
	Params      map[string]string     `json:"params,omitempty"`
	CurrentUser string                `json:"current_user,omitempty"`
	Token       *backend.AccessToken  `json:"token,omitempty"`
	Profile     map[string]any        `json:"profile,omitempty"`
	Record      *identity.Record      `json:"record,omitempty"`
	UID         string                `json:"uid,omitempty"`
}

// Status del resultado de una corrida.
type Status int

const (
	Completed Status = iota
	Suspended
)

// Result es la salida de Run/Resume.
type Result struct {
	Status Status

	// Completed:
	Record      identity.Record
	UID         string
	Account     *store.Account
	Association *store.Association
	NewAccount  bool

	// Suspended: continuación serializada para persistir en sesión.
	Partial []byte
}

// Engine ejecuta pipelines. No retiene estado entre corridas: todo lo que
// una corrida necesita entra por Flow o por el Partial deserializado.
type Engine struct {
	registry *backend.Registry
	steps    []Step
}

// New crea el engine con la lista ordenada de pasos.
func New(registry *backend.Registry, steps []Step) *Engine {
	return &Engine{registry: registry, steps: steps}
}

// Steps retorna los nombres de los pasos configurados.
func (e *Engine) Steps() []string {
	names := make([]string, len(e.steps))
	for i, s := range e.steps {
		names[i] = s.Name
	}
	return names
}

// Run ejecuta los pasos desde start. Un Suspend serializa la continuación
// y la retorna sin ejecutar más pasos; un error tipado corta la corrida y
// sube intacto a la orquestación (el engine no traga fallas).
func (e *Engine) Run(ctx context.Context, f *Flow, start int) (*Result, error) {
	if f.Backend == nil {
		return nil, fmt.Errorf("pipeline: flow without backend")
	}
	if start < 0 || start > len(e.steps) {
		return nil, fmt.Errorf("pipeline: step index %d out of range", start)
	}
	log := logger.From(ctx).With(logger.Layer("pipeline"), logger.Backend(f.Backend.Name()))

	for i := start; i < len(e.steps); i++ {
		step := e.steps[i]
		outcome, err := step.Run(ctx, f)
		if err != nil {
			log.Debug("step failed", logger.Step(step.Name), logger.StepIndex(i), logger.Err(err))
			return nil, err
		}
		switch outcome {
		case Suspend:
			raw, err := e.snapshot(f, i)
			if err != nil {
				return nil, err
			}
			log.Debug("pipeline suspended", logger.Step(step.Name), logger.StepIndex(i))
			return &Result{Status: Suspended, Partial: raw}, nil
		case Done:
			return e.completed(f), nil
		}
	}
	return e.completed(f), nil
}

// Resume deserializa la continuación, mezcla los argumentos extra y reentra
// en Run en el índice guardado. El caller ya hizo pop del estado; un raw
// vacío es ErrNoPartial.
func (e *Engine) Resume(ctx context.Context, raw []byte, extra map[string]string, currentUserID string) (*Result, error) {
	if len(raw) == 0 {
		return nil, ErrNoPartial
	}
	var p Partial
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: undecodable state", ErrNoPartial)
	}
	b, err := e.registry.Get(p.Backend)
	if err != nil {
		return nil, fmt.Errorf("%w: backend %s", ErrNoPartial, p.Backend)
	}

	f := &Flow{
		Backend:       b,
		Params:        backend.CallbackParams(p.Params),
		CurrentUserID: p.CurrentUser,
		Token:         p.Token,
		Profile:       backend.RawProfile(p.Profile),
		UID:           p.UID,
	}
	if f.Params == nil {
		f.Params = backend.CallbackParams{}
	}
	if p.Record != nil {
		f.Record = *p.Record
	}
	if currentUserID != "" {
		f.CurrentUserID = currentUserID
	}
	for k, v := range extra {
		f.Params[k] = v
	}
	return e.Run(ctx, f, p.Next)
}

// snapshot serializa el flujo en el índice del paso que suspendió; el
// resume reentra en ese mismo paso, ya con los argumentos que faltaban.
func (e *Engine) snapshot(f *Flow, idx int) ([]byte, error) {
	p := Partial{
		Backend:     f.Backend.Name(),
		Next:        idx,
		Params:      map[string]string(f.Params),
		CurrentUser: f.CurrentUserID,
		Token:       f.Token,
		Profile:     map[string]any(f.Profile),
		UID:         f.UID,
	}
	if f.Record.ExternalID != "" || f.Record.Email != "" {
		rec := f.Record
		p.Record = &rec
	}
	return json.Marshal(p)
}

func (e *Engine) completed(f *Flow) *Result {
	return &Result{
		Status:      Completed,
		Record:      f.Record,
		UID:         f.UID,
		Account:     f.Account,
		Association: f.Association,
		NewAccount:  f.NewAccount,
	}
}
