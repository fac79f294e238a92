package mapper

import (
	"errors"
	"fmt"

	"github.com/diwise/entity-sessions/pkg/mapper/validation"
)

var ErrConfiguration = errors.New("configuration error")
var ErrValidation = errors.New("validation failed")

type configError struct {
	msg string
}

func (c configError) Error() string        { return c.msg }
func (c configError) Is(target error) bool { return target == ErrConfiguration }

func NewConfigurationError(format string, args ...any) error {
	return &configError{msg: fmt.Sprintf(format, args...)}
}

// ValidationFailed carries the per field messages of a rejected insert or update
type ValidationFailed struct {
	EntityType string
	Errors     validation.Errors
}

func (vf *ValidationFailed) Error() string {
	if first := vf.Errors.First(); first != "" {
		return first
	}
	return fmt.Sprintf("%s failed validation", vf.EntityType)
}

func (vf *ValidationFailed) Is(target error) bool { return target == ErrValidation }
