package models

import (
	"github.com/diwise/entity-sessions/pkg/mapper"
	"github.com/diwise/entity-sessions/pkg/mapper/validation"
	"github.com/google/uuid"
)

const UserType string = "User"

type UserDecoratorFunc func(u *User)

// User is a credential checked account. The password hash is stored but
// never part of default serialization.
type User struct {
	mapper.State

	id       string
	username string
	email    string
	password string
	active   bool
}

func NewUser(username, email string, decorators ...UserDecoratorFunc) *User {
	u := &User{
		id:       uuid.NewString(),
		username: username,
		email:    email,
		active:   true,
	}

	for _, decorator := range decorators {
		decorator(u)
	}

	return u
}

func PasswordHash(hash string) UserDecoratorFunc {
	return func(u *User) { u.password = hash }
}

func Inactive() UserDecoratorFunc {
	return func(u *User) { u.active = false }
}

func (u *User) ID() string       { return u.id }
func (u *User) Username() string { return u.username }
func (u *User) Email() string    { return u.email }
func (u *User) Active() bool     { return u.active }

var UserRules = validation.RuleSet{
	{Field: "id", Validator: "uuid", Message: "user id must be a uuid"},
	{Field: "username", Validator: "lengthBetween", Params: []any{3, 64}, Message: "username must be between {:0} and {:1} characters"},
	{Field: "email", Validator: "notEmpty", Message: "Email is empty."},
	{Field: "email", Validator: "email", Message: "Email is not valid.", SkipEmpty: true},
	{Field: "password", Validator: "notEmpty", Message: "password hash is missing", On: []string{validation.EventCreate}},
}

func NewUserSchema() (*mapper.Schema[*User], error) {
	return mapper.NewSchema(mapper.Definition[*User]{
		Type:        UserType,
		New:         func() *User { return &User{} },
		Identifiers: []string{"id"},
		Rules:       UserRules,
		Fields: []mapper.Field[*User]{
			{
				Name: "id",
				Load: func(u *User) any { return u.id },
				Store: func(u *User, v any) (err error) {
					u.id, err = asString("id", v)
					return
				},
				Get: func(u *User) any { return u.ID() },
			},
			{
				Name: "username",
				Load: func(u *User) any { return u.username },
				Store: func(u *User, v any) (err error) {
					u.username, err = asString("username", v)
					return
				},
				Get: func(u *User) any { return u.Username() },
			},
			{
				Name: "email",
				Load: func(u *User) any { return u.email },
				Store: func(u *User, v any) (err error) {
					u.email, err = asString("email", v)
					return
				},
				Get: func(u *User) any { return u.Email() },
			},
			{
				Name: "password",
				Load: func(u *User) any { return u.password },
				Store: func(u *User, v any) (err error) {
					u.password, err = asString("password", v)
					return
				},
			},
			{
				Name: "active",
				Load: func(u *User) any { return u.active },
				Store: func(u *User, v any) (err error) {
					u.active, err = asBool("active", v)
					return
				},
				Get: func(u *User) any { return u.Active() },
			},
		},
	})
}
