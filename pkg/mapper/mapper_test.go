package mapper_test

import (
	"errors"
	"testing"
	"time"

	"github.com/diwise/entity-sessions/pkg/mapper"
	"github.com/diwise/entity-sessions/pkg/mapper/metadata"
	"github.com/diwise/entity-sessions/pkg/mapper/validation"
	"github.com/diwise/entity-sessions/pkg/models"
	"github.com/matryer/is"
)

func TestSetOnlyAssignsWhitelistedPersistedFields(t *testing.T) {
	is, m := setupSessionMapper(t)
	s := m.New()

	err := m.Set(s, []mapper.Pair{
		mapper.KV("id", "abc"),
		mapper.KV("data", "payload"),
		mapper.KV("unknown", "ignored"),
		mapper.KV(42, "non string key"),
	}, []string{"id", "unknown"}, true)

	is.NoErr(err)
	is.Equal(s.ID(), "abc")
	is.Equal(s.Data(), nil) // data is not whitelisted
}

func TestSetNeverAssignsFieldsOutsideFieldSet(t *testing.T) {
	is, m := setupSessionMapper(t)
	s := m.New()

	err := m.Set(s, []mapper.Pair{mapper.KV("exists", true), mapper.KV("errors", "x")}, nil, false)

	is.NoErr(err)
	is.True(!m.Exists(s))
	is.Equal(m.Errors(s), nil)
}

func TestSetWithoutWhitelistIsRefused(t *testing.T) {
	is, m := setupSessionMapper(t)

	err := m.Set(m.New(), []mapper.Pair{mapper.KV("id", "abc")}, nil, true)
	is.True(errors.Is(err, mapper.ErrConfiguration))

	err = m.Set(m.New(), nil, nil, true)
	is.NoErr(err) // empty data is a no-op
}

func TestSetFollowsDataOrderAndPrefersSetters(t *testing.T) {
	is, m := setupSessionMapper(t)
	s := m.New()

	err := m.Set(s, []mapper.Pair{
		mapper.KV("id", "first"),
		mapper.KV("id", "second"),
		mapper.KV("data", ""),
	}, nil, false)

	is.NoErr(err)
	is.Equal(s.ID(), "second")
	is.Equal(s.Data(), nil) // the setter stores empty data as null
}

func TestSetReportsConversionErrors(t *testing.T) {
	is, m := setupSessionMapper(t)

	err := m.Set(m.New(), []mapper.Pair{mapper.KV("expires", 17)}, nil, false)
	is.True(err != nil)
}

func TestDataOmitsFieldsWithoutGetter(t *testing.T) {
	is, m := setupSessionMapper(t)
	s := m.New()
	s.SetID("abc")
	s.SetExpires(time.Now())

	data := m.Data(s, false)
	_, hasExpires := data["expires"]
	is.True(!hasExpires) // expires has no getter
	is.Equal(data["id"], "abc")

	all := m.Data(s, true)
	_, hasExpires = all["expires"]
	is.True(hasExpires)
}

func TestFieldReturnsAbsentForHiddenOrUnknownFields(t *testing.T) {
	is, m := setupSessionMapper(t)
	s := m.New()
	s.SetID("abc")

	v, ok := m.Field(s, "id", false)
	is.True(ok)
	is.Equal(v, "abc")

	_, ok = m.Field(s, "expires", false)
	is.True(!ok)

	_, ok = m.Field(s, "nope", true)
	is.True(!ok)
}

func TestFieldCanReadHiddenFields(t *testing.T) {
	is, m := setupSessionMapper(t)
	s := m.New()
	expires := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.SetExpires(expires)

	v, ok := m.Field(s, "expires", true)
	is.True(ok)
	is.Equal(v, expires)
}

func TestValidatesTagsEventFromExistence(t *testing.T) {
	is := is.New(t)

	var events []string
	checker := checkerFunc(func(_ map[string]any, _ validation.RuleSet, opts validation.Options) validation.Errors {
		events = append(events, opts.Event)
		return validation.Errors{}
	})

	m := newSessionMapper(is, checker)
	s := m.New()

	is.True(m.Validates(s, validation.Options{}))
	m.OnLoad(s)
	is.True(m.Validates(s, validation.Options{}))

	is.Equal(events, []string{validation.EventCreate, validation.EventUpdate})
}

func TestValidatesUsesFullSnapshot(t *testing.T) {
	is := is.New(t)

	var seen map[string]any
	checker := checkerFunc(func(data map[string]any, _ validation.RuleSet, _ validation.Options) validation.Errors {
		seen = data
		return nil
	})

	m := newSessionMapper(is, checker)
	s := m.New()
	s.SetExpires(time.Now())

	m.Validates(s, validation.Options{})

	_, ok := seen["expires"]
	is.True(ok) // hidden fields should still be validated
}

func TestValidatesRecordsErrors(t *testing.T) {
	is, m := setupSessionMapper(t)
	s := m.New()

	is.True(!m.Validates(s, validation.Options{}))
	is.Equal(s.Errors()["id"], []string{"session id is empty"})
	is.Equal(len(s.Errors("expires")), 1)
}

func TestNewFailsOnMisconfiguration(t *testing.T) {
	is := is.New(t)

	schema, err := models.NewSessionSchema()
	is.NoErr(err)

	_, err = mapper.New[*models.Session](nil, nil, nil)
	is.True(errors.Is(err, mapper.ErrConfiguration))

	_, err = mapper.New(schema, metadata.NewRegistry(metadata.NewStatic()), validation.NewEngine())
	is.True(errors.Is(err, metadata.ErrUnknownType))

	src := metadata.NewStatic()
	src.Declare(models.SessionType, nil, nil)
	_, err = mapper.New(schema, metadata.NewRegistry(src), validation.NewEngine())
	is.True(errors.Is(err, metadata.ErrNoFields))
}

func TestSchemaRejectsBadDescriptorTables(t *testing.T) {
	is := is.New(t)

	_, err := mapper.NewSchema(mapper.Definition[*models.Session]{Type: "X"})
	is.True(errors.Is(err, mapper.ErrConfiguration)) // missing factory

	field := mapper.Field[*models.Session]{
		Name:  "id",
		Load:  func(*models.Session) any { return nil },
		Store: func(*models.Session, any) error { return nil },
	}

	_, err = mapper.NewSchema(mapper.Definition[*models.Session]{
		Type: "X", New: models.NewSession, Fields: []mapper.Field[*models.Session]{field, field},
	})
	is.True(errors.Is(err, mapper.ErrConfiguration)) // duplicate field

	_, err = mapper.NewSchema(mapper.Definition[*models.Session]{
		Type: "X", New: models.NewSession, Identifiers: []string{"pk"}, Fields: []mapper.Field[*models.Session]{field},
	})
	is.True(errors.Is(err, mapper.ErrConfiguration)) // unknown identifier
}

func TestFromMapIsSortedByKey(t *testing.T) {
	is := is.New(t)

	pairs := mapper.FromMap(map[string]any{"b": 2, "a": 1})
	is.Equal(pairs, []mapper.Pair{mapper.KV("a", 1), mapper.KV("b", 2)})
}

type checkerFunc func(map[string]any, validation.RuleSet, validation.Options) validation.Errors

func (f checkerFunc) Check(data map[string]any, rules validation.RuleSet, opts validation.Options) validation.Errors {
	return f(data, rules, opts)
}

func setupSessionMapper(t *testing.T) (*is.I, *mapper.Mapper[*models.Session]) {
	is := is.New(t)
	return is, newSessionMapper(is, validation.NewEngine())
}

func newSessionMapper(is *is.I, checker validation.Checker) *mapper.Mapper[*models.Session] {
	schema, err := models.NewSessionSchema()
	is.NoErr(err)

	src := metadata.NewStatic()
	schema.Declare(src)

	m, err := mapper.New(schema, metadata.NewRegistry(src), checker)
	is.NoErr(err)

	return m
}
