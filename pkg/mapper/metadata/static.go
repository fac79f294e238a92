package metadata

import "sync"

type table struct {
	fields      []string
	identifiers []string
}

// Static is a Source backed by declared field tables
type Static struct {
	mu     sync.RWMutex
	tables map[string]table
}

func NewStatic() *Static {
	return &Static{tables: map[string]table{}}
}

func (s *Static) Declare(entityType string, fields, identifiers []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tables[entityType] = table{
		fields:      append([]string{}, fields...),
		identifiers: append([]string{}, identifiers...),
	}
}

func (s *Static) FieldNames(entityType string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[entityType]
	if !ok {
		return nil, ErrUnknownType
	}

	return append([]string{}, t.fields...), nil
}

func (s *Static) IdentifierFields(entityType string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[entityType]
	if !ok {
		return nil, ErrUnknownType
	}

	return append([]string{}, t.identifiers...), nil
}
