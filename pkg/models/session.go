package models

import (
	"time"

	"github.com/diwise/entity-sessions/pkg/mapper"
	"github.com/diwise/entity-sessions/pkg/mapper/validation"
)

const SessionType string = "Session"

// Session is a persisted session record. Its expiry has no getter and is
// therefore left out of default serialization.
type Session struct {
	mapper.State

	id      string
	data    []byte
	expires time.Time
}

func NewSession() *Session {
	return &Session{}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) SetID(id string) {
	s.id = id
}

// Data returns nil when the record holds no data
func (s *Session) Data() []byte {
	return s.data
}

func (s *Session) SetData(data []byte) {
	if len(data) == 0 {
		data = nil
	}
	s.data = data
}

func (s *Session) Expires() time.Time {
	return s.expires
}

func (s *Session) SetExpires(expires time.Time) {
	s.expires = expires
}

var SessionRules = validation.RuleSet{
	{Field: "id", Validator: "notEmpty", Message: "session id is empty"},
	{Field: "expires", Validator: "notEmpty", Message: "session expiry is not set"},
}

func NewSessionSchema() (*mapper.Schema[*Session], error) {
	return mapper.NewSchema(mapper.Definition[*Session]{
		Type:        SessionType,
		New:         NewSession,
		Identifiers: []string{"id"},
		Rules:       SessionRules,
		Fields: []mapper.Field[*Session]{
			{
				Name: "id",
				Load: func(s *Session) any { return s.id },
				Store: func(s *Session, v any) (err error) {
					s.id, err = asString("id", v)
					return
				},
				Get: func(s *Session) any { return s.ID() },
				Set: func(s *Session, v any) error {
					id, err := asString("id", v)
					s.SetID(id)
					return err
				},
			},
			{
				Name: "data",
				Load: func(s *Session) any { return s.data },
				Store: func(s *Session, v any) (err error) {
					s.data, err = asBytes("data", v)
					return
				},
				Get: func(s *Session) any { return s.Data() },
				Set: func(s *Session, v any) error {
					b, err := asBytes("data", v)
					s.SetData(b)
					return err
				},
			},
			{
				Name: "expires",
				Load: func(s *Session) any { return s.expires },
				Store: func(s *Session, v any) (err error) {
					s.expires, err = asTime("expires", v)
					return
				},
				Set: func(s *Session, v any) error {
					t, err := asTime("expires", v)
					s.SetExpires(t)
					return err
				},
			},
		},
	})
}
