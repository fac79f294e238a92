package metadata

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

var ErrNoFields = errors.New("no persisted fields")
var ErrUnknownType = errors.New("unknown entity type")

type metadataError struct {
	entityType string
	target     error
}

func (m metadataError) Error() string {
	return fmt.Sprintf("%s does not seem to have fields defined", m.entityType)
}

func (m metadataError) Is(target error) bool { return target == m.target }

// NewMetadataError is returned when a mapped type resolves to an empty field set
func NewMetadataError(entityType string) error {
	return &metadataError{entityType: entityType, target: ErrNoFields}
}

// Source is the persistence engine's view of the schema
type Source interface {
	FieldNames(entityType string) ([]string, error)
	IdentifierFields(entityType string) ([]string, error)
}

// FieldSet is the ordered set of persisted field names of an entity type
type FieldSet []string

func (fs FieldSet) Contains(name string) bool {
	return slices.Contains(fs, name)
}

// Registry resolves and caches field sets per entity type. A single registry
// is shared by every mapper bound to the same storage engine.
type Registry struct {
	mu     sync.RWMutex
	source Source
	fields map[string]FieldSet
}

func NewRegistry(source Source) *Registry {
	return &Registry{
		source: source,
		fields: map[string]FieldSet{},
	}
}

func (r *Registry) Resolve(entityType string) (FieldSet, error) {
	r.mu.RLock()
	fs, ok := r.fields[entityType]
	r.mu.RUnlock()

	if ok {
		return fs, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if fs, ok := r.fields[entityType]; ok {
		return fs, nil
	}

	names, err := r.source.FieldNames(entityType)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve fields of %s: %w", entityType, err)
	}

	fs = make(FieldSet, 0, len(names))
	for _, n := range names {
		if n != "" && !fs.Contains(n) {
			fs = append(fs, n)
		}
	}

	if len(fs) == 0 {
		return nil, NewMetadataError(entityType)
	}

	r.fields[entityType] = fs

	return fs, nil
}

func (r *Registry) Identifiers(entityType string) ([]string, error) {
	return r.source.IdentifierFields(entityType)
}

// Reset drops every cached field set
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.fields = map[string]FieldSet{}
}
