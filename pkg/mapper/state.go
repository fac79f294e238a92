package mapper

import "github.com/diwise/entity-sessions/pkg/mapper/validation"

// State is embedded by mapped entity types to carry their lifecycle flag
// and the errors of the last validation run.
type State struct {
	exists bool
	errors validation.Errors
}

func (s *State) EntityState() *State {
	return s
}

func (s *State) Exists() bool {
	return s.exists
}

// Errors returns the messages recorded for field, or every message when field is empty
func (s *State) Errors(field ...string) validation.Errors {
	if len(field) == 0 || s.errors == nil {
		return s.errors
	}

	errs := validation.Errors{}
	for _, f := range field {
		if msgs, ok := s.errors[f]; ok {
			errs[f] = msgs
		}
	}
	return errs
}

type Entity interface {
	EntityState() *State
}
