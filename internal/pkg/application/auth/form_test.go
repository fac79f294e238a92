package auth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/diwise/entity-sessions/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/entity-sessions/pkg/mapper"
	"github.com/diwise/entity-sessions/pkg/mapper/metadata"
	"github.com/diwise/entity-sessions/pkg/mapper/validation"
	"github.com/diwise/entity-sessions/pkg/models"
	"github.com/matryer/is"
)

func TestCheckValidCredentials(t *testing.T) {
	is, ctx, m, repo := setupFormTest(t)

	form, err := NewForm(repo, m, WithScope(database.Conditions{"active": true}))
	is.NoErr(err)

	u, err := form.Check(ctx, map[string]string{"username": "kalle", "password": "correct horse"})
	is.NoErr(err)
	is.Equal(u.Username(), "kalle")
	is.True(u.Exists())
}

func TestCheckWrongPassword(t *testing.T) {
	is, ctx, m, repo := setupFormTest(t)
	form, _ := NewForm(repo, m)

	_, err := form.Check(ctx, map[string]string{"username": "kalle", "password": "battery staple"})
	is.True(errors.Is(err, ErrInvalidCredentials))

	_, err = form.Check(ctx, map[string]string{"username": "kalle"})
	is.True(errors.Is(err, ErrInvalidCredentials))
}

func TestCheckUnknownOrOutOfScopeUser(t *testing.T) {
	is, ctx, m, repo := setupFormTest(t)
	form, _ := NewForm(repo, m, WithScope(database.Conditions{"active": true}))

	_, err := form.Check(ctx, map[string]string{"username": "nisse", "password": "correct horse"})
	is.True(errors.Is(err, ErrInvalidCredentials))

	_, err = form.Check(ctx, map[string]string{"username": "disabled", "password": "correct horse"})
	is.True(errors.Is(err, ErrInvalidCredentials))
}

func TestCheckWithoutCredentials(t *testing.T) {
	is, ctx, m, repo := setupFormTest(t)
	form, _ := NewForm(repo, m)

	_, err := form.Check(ctx, map[string]string{"username": "", "password": ""})
	is.True(errors.Is(err, ErrInvalidCredentials))

	_, err = form.Check(ctx, map[string]string{"password": "correct horse"})
	is.True(errors.Is(err, ErrInvalidCredentials)) // a lone validator field must not match any user
}

func TestCheckAppliesFilters(t *testing.T) {
	is, ctx, m, repo := setupFormTest(t)
	form, _ := NewForm(repo, m, WithFilter("username", func(v string) string {
		return strings.ToLower(strings.TrimSpace(v))
	}))

	u, err := form.Check(ctx, map[string]string{"username": " KALLE ", "password": "correct horse"})
	is.NoErr(err)
	is.Equal(u.Username(), "kalle")
}

func TestCheckByEmailWithCustomValidator(t *testing.T) {
	is, ctx, m, repo := setupFormTest(t)

	form, err := NewForm(repo, m,
		WithFields("email", "password"),
		WithValidator("password", func(submitted string, _ any) bool { return submitted == "letmein" }),
	)
	is.NoErr(err)

	u, err := form.Check(ctx, map[string]string{"email": "kalle@example.com", "password": "letmein"})
	is.NoErr(err)
	is.Equal(u.Email(), "kalle@example.com")
}

func TestStorageErrorsArePropagated(t *testing.T) {
	is, ctx, m, _ := setupFormTest(t)
	boom := errors.New("boom")

	form, _ := NewForm[*models.User](finderFunc(func(context.Context, database.Conditions) (*models.User, error) {
		return nil, boom
	}), m)

	_, err := form.Check(ctx, map[string]string{"username": "kalle", "password": "x"})
	is.Equal(err, boom)
}

func TestNewFormMisconfiguration(t *testing.T) {
	is, _, m, repo := setupFormTest(t)

	_, err := NewForm[*models.User](nil, m)
	is.True(errors.Is(err, mapper.ErrConfiguration))

	_, err = NewForm(repo, m, WithFields("nickname"))
	is.True(errors.Is(err, mapper.ErrConfiguration))
}

func TestHashPassword(t *testing.T) {
	is := is.New(t)

	_, err := HashPassword("short")
	is.True(errors.Is(err, ErrPasswordTooShort))

	hash, err := HashPassword("long enough")
	is.NoErr(err)
	is.True(Bcrypt("long enough", hash))
	is.True(Bcrypt("long enough", []byte(hash)))
	is.True(!Bcrypt("long enough", 42))
}

type finderFunc func(context.Context, database.Conditions) (*models.User, error)

func (f finderFunc) FindOneBy(ctx context.Context, c database.Conditions) (*models.User, error) {
	return f(ctx, c)
}

func setupFormTest(t *testing.T) (*is.I, context.Context, *mapper.Mapper[*models.User], database.Repository[*models.User]) {
	is := is.New(t)
	ctx := context.Background()

	schema, err := models.NewUserSchema()
	is.NoErr(err)

	src := metadata.NewStatic()
	schema.Declare(src)

	m, err := mapper.New(schema, metadata.NewRegistry(src), validation.NewEngine())
	is.NoErr(err)

	repo, err := database.NewMemoryRepository(database.NewMemory(), m)
	is.NoErr(err)

	hash, err := HashPassword("correct horse")
	is.NoErr(err)

	repo.Persist(models.NewUser("kalle", "kalle@example.com", models.PasswordHash(hash)))
	repo.Persist(models.NewUser("disabled", "disabled@example.com", models.PasswordHash(hash), models.Inactive()))
	is.NoErr(repo.Flush(ctx))

	return is, ctx, m, repo
}
