package sessions

import (
	"errors"
	"fmt"
)

var ErrSessionStart = errors.New("could not start session")

type startError struct {
	msg string
	err error
}

func (s startError) Error() string        { return fmt.Sprintf("%s: %s", s.msg, s.err.Error()) }
func (s startError) Is(target error) bool { return target == ErrSessionStart }
func (s startError) Unwrap() error        { return s.err }

func NewSessionStartError(msg string, err error) error {
	return &startError{msg: msg, err: err}
}
