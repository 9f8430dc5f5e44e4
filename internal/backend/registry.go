package backend

import "fmt"

// Registry mapea nombre → Backend. Se construye una vez al arranque y se
// inyecta en la orquestación; no hay estado global mutable.
type Registry struct {
	backends map[string]Backend
}

// NewRegistry registra los backends dados por nombre.
// Nombres duplicados son un error de wiring y provocan panic al arranque.
func NewRegistry(list ...Backend) *Registry {
	m := make(map[string]Backend, len(list))
	for _, b := range list {
		if _, dup := m[b.Name()]; dup {
			panic(fmt.Sprintf("backend: duplicate name %q", b.Name()))
		}
		m[b.Name()] = b
	}
	return &Registry{backends: m}
}

// Get retorna el backend por nombre o ErrUnknownBackend.
func (r *Registry) Get(name string) (Backend, error) {
	b, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}
	return b, nil
}

// Names retorna los nombres registrados.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	return names
}
