package mapper

import "github.com/diwise/entity-sessions/pkg/mapper/validation"

// Hooks are invoked synchronously by a repository while it flushes. A hook
// must never trigger another persistence operation.
type Hooks[T Entity] interface {
	OnLoad(e T)
	OnBeforeInsert(e T) error
	OnBeforeUpdate(e T) error
	OnCommitted(e T)
}

// PostLoader is implemented by entities that need to run code after being
// hydrated from storage.
type PostLoader interface {
	PostLoad()
}

func (m *Mapper[T]) OnLoad(e T) {
	e.EntityState().exists = true

	if pl, ok := any(e).(PostLoader); ok {
		pl.PostLoad()
	}
}

func (m *Mapper[T]) OnBeforeInsert(e T) error {
	e.EntityState().exists = false
	return m.validateFor(e, validation.EventCreate)
}

func (m *Mapper[T]) OnBeforeUpdate(e T) error {
	e.EntityState().exists = true
	return m.validateFor(e, validation.EventUpdate)
}

// OnCommitted marks e as persisted once the storage engine made it durable
func (m *Mapper[T]) OnCommitted(e T) {
	e.EntityState().exists = true
}

func (m *Mapper[T]) validateFor(e T, event string) error {
	if m.Validates(e, validation.Options{Event: event}) {
		return nil
	}

	return &ValidationFailed{
		EntityType: m.Type(),
		Errors:     e.EntityState().Errors(),
	}
}
