package mapper

import (
	"slices"

	"github.com/diwise/entity-sessions/pkg/mapper/metadata"
	"github.com/diwise/entity-sessions/pkg/mapper/validation"
)

// Mapper gives a mapped type mass assignment, serialization and validation.
// Instances are safe to share, the entities they operate on are not.
type Mapper[T Entity] struct {
	schema  *Schema[T]
	fields  metadata.FieldSet
	checker validation.Checker
}

// New resolves the persisted fields of the schema's type through registry and
// fails when the type is misconfigured.
func New[T Entity](schema *Schema[T], registry *metadata.Registry, checker validation.Checker) (*Mapper[T], error) {
	if schema == nil {
		return nil, NewConfigurationError("no schema available to map entities with")
	}
	if registry == nil {
		return nil, NewConfigurationError("no metadata registry available for %s", schema.Type())
	}
	if checker == nil {
		return nil, NewConfigurationError("no validator available for %s", schema.Type())
	}

	fields, err := registry.Resolve(schema.Type())
	if err != nil {
		return nil, err
	}

	return &Mapper[T]{
		schema:  schema,
		fields:  fields,
		checker: checker,
	}, nil
}

func (m *Mapper[T]) Type() string {
	return m.schema.Type()
}

func (m *Mapper[T]) Schema() *Schema[T] {
	return m.schema
}

func (m *Mapper[T]) Fields() metadata.FieldSet {
	return slices.Clone(m.fields)
}

// New returns a fresh, unpersisted entity
func (m *Mapper[T]) New() T {
	return m.schema.factory()
}

// Assign mass assigns data restricted to whitelist
func (m *Mapper[T]) Assign(e T, data []Pair, whitelist ...string) error {
	return m.Set(e, data, whitelist, true)
}

// Set applies every pair whose key is a persisted field of T and, when
// enforceWhitelist is set, is also whitelisted. Unknown keys are skipped.
func (m *Mapper[T]) Set(e T, data []Pair, whitelist []string, enforceWhitelist bool) error {
	if len(data) == 0 {
		return nil
	}

	if enforceWhitelist && len(whitelist) == 0 {
		return NewConfigurationError("must set whitelist of fields to assign %s", m.Type())
	}

	for _, p := range data {
		name, ok := p.Key.(string)
		if !ok || !m.fields.Contains(name) {
			continue
		}

		if enforceWhitelist && !slices.Contains(whitelist, name) {
			continue
		}

		f, ok := m.schema.fields[name]
		if !ok {
			continue
		}

		var err error
		if f.Set != nil {
			err = f.Set(e, p.Value)
		} else {
			err = f.Store(e, p.Value)
		}

		if err != nil {
			return err
		}
	}

	return nil
}

// Data serializes e. Fields with a getter are always included, other fields
// only when includeAll is set.
func (m *Mapper[T]) Data(e T, includeAll bool) map[string]any {
	data := make(map[string]any, len(m.fields))

	for _, name := range m.fields {
		f, ok := m.schema.fields[name]
		if !ok {
			continue
		}

		if f.Get != nil {
			data[name] = f.Get(e)
		} else if includeAll {
			data[name] = f.Load(e)
		}
	}

	return data
}

// Field returns a single serialized value. The boolean is false when the
// field is absent from the serialization selected by includeAll.
func (m *Mapper[T]) Field(e T, name string, includeAll bool) (any, bool) {
	v, ok := m.Data(e, includeAll)[name]
	return v, ok
}

// ID returns the value of the first identifier field
func (m *Mapper[T]) ID(e T) (any, bool) {
	if len(m.schema.identifiers) == 0 {
		return nil, false
	}

	f := m.schema.fields[m.schema.identifiers[0]]
	return f.Load(e), true
}

func (m *Mapper[T]) Exists(e T) bool {
	return e.EntityState().Exists()
}

func (m *Mapper[T]) Errors(e T) validation.Errors {
	return e.EntityState().Errors()
}

// Validates checks the full snapshot of e against the type's rules merged
// with opts and records any errors on e.
func (m *Mapper[T]) Validates(e T, opts validation.Options) bool {
	event := validation.EventCreate
	if m.Exists(e) {
		event = validation.EventUpdate
	}

	opts = opts.Merge(validation.Options{
		Event: event,
		Model: m.Type(),
		Rules: m.schema.rules,
	})

	state := e.EntityState()
	state.errors = nil

	if len(opts.Rules) == 0 {
		return true
	}

	errs := m.checker.Check(m.Data(e, true), opts.Rules, opts)
	if !errs.Empty() {
		state.errors = errs
		return false
	}

	return true
}
