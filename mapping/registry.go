package mapping

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gaborage/go-sqlsession/database/types"
)

// MethodKind says how a mapper method dispatches.
type MethodKind string

const (
	MethodSelectOne  MethodKind = "select-one"
	MethodSelectList MethodKind = "select-list"
	MethodUpdate     MethodKind = "update"
)

// ParseMethodKind parses the mapping-file spelling of a method kind.
func ParseMethodKind(s string) (MethodKind, error) {
	switch k := MethodKind(s); k {
	case MethodSelectOne, MethodSelectList, MethodUpdate:
		return k, nil
	case "one":
		return MethodSelectOne, nil
	case "list":
		return MethodSelectList, nil
	default:
		return "", fmt.Errorf("unknown mapper method kind: %q", s)
	}
}

// MapperDefinition describes a mapper: each method resolves to the statement Name.Method.
type MapperDefinition struct {
	Name    string
	Methods map[string]MethodKind
}

// Method is one resolved mapper method.
type Method struct {
	StatementID string
	Kind        MethodKind
}

// Mapper is a registered mapper with its dispatch table.
type Mapper struct {
	Name    string
	methods map[string]Method
}

// Method looks up a method by name.
func (m *Mapper) Method(name string) (Method, bool) {
	method, ok := m.methods[name]
	return method, ok
}

// MethodNames returns the method names in sorted order.
func (m *Mapper) MethodNames() []string {
	names := make([]string, 0, len(m.methods))
	for name := range m.methods {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

var errFrozen = errors.New("registry is frozen")

// Registry holds mapped statements and mappers. It accepts registrations until Freeze and
// is read-only and safe for concurrent use afterwards.
type Registry struct {
	mu         sync.RWMutex
	statements map[string]*MappedStatement
	mappers    map[string]*Mapper
	frozen     bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		statements: make(map[string]*MappedStatement),
		mappers:    make(map[string]*Mapper),
	}
}

// Add registers statements. Ids must be unique.
func (r *Registry) Add(statements ...*MappedStatement) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return errFrozen
	}
	for _, ms := range statements {
		if err := ms.validate(); err != nil {
			return err
		}
		if _, exists := r.statements[ms.ID]; exists {
			return fmt.Errorf("mapped statement %s already registered", ms.ID)
		}
		r.statements[ms.ID] = ms
	}
	return nil
}

// AddMapper registers a mapper. Every method must name a registered statement whose kind
// matches the dispatch: select methods need select statements and update methods need
// writes.
func (r *Registry) AddMapper(def MapperDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return errFrozen
	}
	if def.Name == "" {
		return fmt.Errorf("mapper name is required")
	}
	if _, exists := r.mappers[def.Name]; exists {
		return fmt.Errorf("mapper %s already registered", def.Name)
	}

	methods := make(map[string]Method, len(def.Methods))
	for name, kind := range def.Methods {
		id := QualifiedID(def.Name, name)
		ms, ok := r.statements[id]
		if !ok {
			return fmt.Errorf("mapper %s method %s: statement %s is not registered", def.Name, name, id)
		}
		if (kind == MethodUpdate) != ms.Kind.IsWrite() {
			return fmt.Errorf("mapper %s method %s: %s dispatch does not match %s statement", def.Name, name, kind, ms.Kind)
		}
		methods[name] = Method{StatementID: id, Kind: kind}
	}

	r.mappers[def.Name] = &Mapper{Name: def.Name, methods: methods}
	return nil
}

// Freeze stops further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Statement looks up a statement by id.
func (r *Registry) Statement(id string) (*MappedStatement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ms, ok := r.statements[id]
	if !ok {
		return nil, types.NewError(types.ErrUnknownStatement, "get mapped statement", fmt.Errorf("no statement registered as %q", id)).WithStatement(id)
	}
	return ms, nil
}

// Mapper looks up a mapper by name.
func (r *Registry) Mapper(name string) (*Mapper, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.mappers[name]
	return m, ok
}

// StatementIDs returns every registered id in sorted order.
func (r *Registry) StatementIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.statements))
	for id := range r.statements {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
