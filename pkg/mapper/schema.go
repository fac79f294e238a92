package mapper

import (
	"slices"

	"github.com/diwise/entity-sessions/pkg/mapper/metadata"
	"github.com/diwise/entity-sessions/pkg/mapper/validation"
)

// Field describes one persisted field of T. Load and Store access the raw
// value, while Get and Set are the optional getter and setter capabilities.
type Field[T any] struct {
	Name string

	Load  func(e T) any
	Store func(e T, value any) error

	Get func(e T) any
	Set func(e T, value any) error
}

type Definition[T Entity] struct {
	Type        string
	New         func() T
	Identifiers []string
	Fields      []Field[T]
	Rules       validation.RuleSet
}

// Schema is the static descriptor table of a mapped type
type Schema[T Entity] struct {
	entityType  string
	factory     func() T
	identifiers []string
	order       []string
	fields      map[string]Field[T]
	rules       validation.RuleSet
}

func NewSchema[T Entity](def Definition[T]) (*Schema[T], error) {
	if def.Type == "" {
		return nil, NewConfigurationError("schema is missing an entity type")
	}

	if def.New == nil {
		return nil, NewConfigurationError("schema for %s is missing a factory", def.Type)
	}

	s := &Schema[T]{
		entityType:  def.Type,
		factory:     def.New,
		identifiers: slices.Clone(def.Identifiers),
		fields:      make(map[string]Field[T], len(def.Fields)),
		rules:       slices.Clone(def.Rules),
	}

	for _, f := range def.Fields {
		if f.Name == "" {
			return nil, NewConfigurationError("schema for %s has a field without name", def.Type)
		}
		if _, dup := s.fields[f.Name]; dup {
			return nil, NewConfigurationError("schema for %s declares %s twice", def.Type, f.Name)
		}
		if f.Load == nil || f.Store == nil {
			return nil, NewConfigurationError("field %s.%s must have raw accessors", def.Type, f.Name)
		}

		s.fields[f.Name] = f
		s.order = append(s.order, f.Name)
	}

	for _, id := range s.identifiers {
		if _, ok := s.fields[id]; !ok {
			return nil, NewConfigurationError("identifier %s is not a field of %s", id, def.Type)
		}
	}

	return s, nil
}

func (s *Schema[T]) Type() string {
	return s.entityType
}

func (s *Schema[T]) FieldNames() []string {
	return slices.Clone(s.order)
}

func (s *Schema[T]) Identifiers() []string {
	return slices.Clone(s.identifiers)
}

func (s *Schema[T]) Rules() validation.RuleSet {
	return slices.Clone(s.rules)
}

// WithRules returns a copy of the schema that validates with rules instead
func (s *Schema[T]) WithRules(rules validation.RuleSet) *Schema[T] {
	c := *s
	c.rules = slices.Clone(rules)
	return &c
}

// Declare registers the descriptor table with a static metadata source
func (s *Schema[T]) Declare(src *metadata.Static) {
	src.Declare(s.entityType, s.order, s.identifiers)
}
