package auth

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/diwise/entity-sessions/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/entity-sessions/pkg/mapper"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Finder is the lookup a form needs from its repository
type Finder[T mapper.Entity] interface {
	FindOneBy(ctx context.Context, conditions database.Conditions) (T, error)
}

// Validator compares a submitted credential with the stored field value
type Validator func(submitted string, stored any) bool

type Filter func(value string) string

type FormOption func(*config)

type config struct {
	fields     []string
	scope      database.Conditions
	filters    map[string]Filter
	validators map[string]Validator
}

// WithFields limits the credentials taken from a submission
func WithFields(fields ...string) FormOption {
	return func(c *config) {
		c.fields = fields
	}
}

// WithScope adds conditions every lookup must satisfy, e.g. active accounts only
func WithScope(scope database.Conditions) FormOption {
	return func(c *config) {
		maps.Copy(c.scope, scope)
	}
}

func WithFilter(field string, f Filter) FormOption {
	return func(c *config) {
		c.filters[field] = f
	}
}

// WithValidator replaces the validator of a field. A nil validator removes it.
func WithValidator(field string, v Validator) FormOption {
	return func(c *config) {
		if v == nil {
			delete(c.validators, field)
			return
		}
		c.validators[field] = v
	}
}

// Form authenticates submitted credentials against stored entities. Fields with a
// validator are left out of the lookup and compared after the entity is found.
type Form[T mapper.Entity] struct {
	finder Finder[T]
	mapper *mapper.Mapper[T]
	cfg    config
}

func NewForm[T mapper.Entity](finder Finder[T], m *mapper.Mapper[T], options ...FormOption) (*Form[T], error) {
	if finder == nil || m == nil {
		return nil, mapper.NewConfigurationError("no valid repository available to use for form authentication")
	}

	cfg := config{
		fields:     []string{"username", "password"},
		scope:      database.Conditions{},
		filters:    map[string]Filter{},
		validators: map[string]Validator{"password": Bcrypt},
	}

	for _, option := range options {
		option(&cfg)
	}

	for _, f := range cfg.fields {
		if !m.Fields().Contains(f) {
			return nil, mapper.NewConfigurationError("%s has no field %q to authenticate with", m.Type(), f)
		}
	}

	return &Form[T]{finder: finder, mapper: m, cfg: cfg}, nil
}

// Check returns the entity matching credentials or ErrInvalidCredentials. Storage
// errors other than not found are returned as is.
func (f *Form[T]) Check(ctx context.Context, credentials map[string]string) (T, error) {
	var zero T

	data := map[string]string{}
	for _, field := range f.cfg.fields {
		v := credentials[field]
		if filter, ok := f.cfg.filters[field]; ok {
			v = filter(v)
		}
		if v != "" {
			data[field] = v
		}
	}

	if len(data) == 0 {
		return zero, ErrInvalidCredentials
	}

	conditions := maps.Clone(f.cfg.scope)
	for field, v := range data {
		if _, ok := f.cfg.validators[field]; !ok {
			conditions[field] = v
		}
	}

	if len(conditions) == 0 {
		return zero, ErrInvalidCredentials
	}

	e, err := f.finder.FindOneBy(ctx, conditions)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return zero, ErrInvalidCredentials
		}
		return zero, err
	}

	stored := f.mapper.Data(e, true)

	for _, field := range slices.Sorted(maps.Keys(f.cfg.validators)) {
		submitted, ok := data[field]
		if !ok || !f.cfg.validators[field](submitted, stored[field]) {
			logging.GetFromContext(ctx).Info("credential check failed", "type", f.mapper.Type(), "field", field)
			return zero, fmt.Errorf("%w: %s does not match", ErrInvalidCredentials, field)
		}
	}

	return e, nil
}
