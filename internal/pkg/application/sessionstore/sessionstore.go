package sessionstore

import (
	"context"
	"errors"
	"fmt"

	formauth "github.com/diwise/entity-sessions/internal/pkg/application/auth"
	"github.com/diwise/entity-sessions/internal/pkg/application/sessions"
	"github.com/diwise/entity-sessions/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/entity-sessions/pkg/mapper"
	"github.com/diwise/entity-sessions/pkg/mapper/metadata"
	"github.com/diwise/entity-sessions/pkg/mapper/validation"
	"github.com/diwise/entity-sessions/pkg/models"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/jackc/pgx/v5/pgxpool"
)

// App holds the mapped types of the service and the storage they are kept in
type App struct {
	cfg      *sessions.Config
	registry *metadata.Registry

	sessionMapper *mapper.Mapper[*models.Session]
	userMapper    *mapper.Mapper[*models.User]

	newSessionRepository func() (database.Repository[*models.Session], error)
	newUserRepository    func() (database.Repository[*models.User], error)

	close func()
}

// New wires the mappers to PostgreSQL when dbCfg is enabled, or to process
// local storage otherwise
func New(ctx context.Context, cfg *sessions.Config, dbCfg database.Config) (*App, error) {
	if cfg == nil {
		cfg = &sessions.Config{}
	}

	if !dbCfg.Enabled() {
		logging.GetFromContext(ctx).Warn("no database configured, sessions are kept in memory")
		return newApp(cfg, metadata.NewStatic(), newMemoryStorage(database.NewMemory()))
	}

	pool, err := database.Connect(ctx, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	err = database.Migrate(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	app, err := newApp(cfg, database.NewSchemaSource(pool), newPostgresStorage(pool))
	if err != nil {
		pool.Close()
		return nil, err
	}

	app.close = pool.Close

	return app, nil
}

type storage interface {
	sessions(m *mapper.Mapper[*models.Session]) (database.Repository[*models.Session], error)
	users(m *mapper.Mapper[*models.User]) (database.Repository[*models.User], error)
}

type memoryStorage struct{ mem *database.Memory }

func newMemoryStorage(mem *database.Memory) storage { return memoryStorage{mem: mem} }

func (s memoryStorage) sessions(m *mapper.Mapper[*models.Session]) (database.Repository[*models.Session], error) {
	return database.NewMemoryRepository(s.mem, m)
}

func (s memoryStorage) users(m *mapper.Mapper[*models.User]) (database.Repository[*models.User], error) {
	return database.NewMemoryRepository(s.mem, m)
}

type postgresStorage struct{ pool *pgxpool.Pool }

func newPostgresStorage(pool *pgxpool.Pool) storage { return postgresStorage{pool: pool} }

func (s postgresStorage) sessions(m *mapper.Mapper[*models.Session]) (database.Repository[*models.Session], error) {
	return database.NewPostgresRepository(s.pool, m)
}

func (s postgresStorage) users(m *mapper.Mapper[*models.User]) (database.Repository[*models.User], error) {
	return database.NewPostgresRepository(s.pool, m)
}

// newApp builds the schemas, applies configured rule overrides and resolves
// every mapped type once. The static source, when used, is filled from the
// schemas themselves.
func newApp(cfg *sessions.Config, src metadata.Source, store storage) (*App, error) {
	engine := validation.NewEngine()
	registry := metadata.NewRegistry(src)

	sessionSchema, err := models.NewSessionSchema()
	if err != nil {
		return nil, err
	}
	if rules, ok := cfg.RulesFor(models.SessionType); ok {
		sessionSchema = sessionSchema.WithRules(rules)
	}

	userSchema, err := models.NewUserSchema()
	if err != nil {
		return nil, err
	}
	if rules, ok := cfg.RulesFor(models.UserType); ok {
		userSchema = userSchema.WithRules(rules)
	}

	if static, ok := src.(*metadata.Static); ok {
		sessionSchema.Declare(static)
		userSchema.Declare(static)
	}

	for _, rs := range cfg.Rules {
		for _, rule := range rs {
			if !engine.Has(rule.Validator) {
				return nil, mapper.NewConfigurationError("unknown validator %q configured for field %s", rule.Validator, rule.Field)
			}
		}
	}

	sessionMapper, err := mapper.New(sessionSchema, registry, engine)
	if err != nil {
		return nil, err
	}

	userMapper, err := mapper.New(userSchema, registry, engine)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:           cfg,
		registry:      registry,
		sessionMapper: sessionMapper,
		userMapper:    userMapper,
		newSessionRepository: func() (database.Repository[*models.Session], error) {
			return store.sessions(sessionMapper)
		},
		newUserRepository: func() (database.Repository[*models.User], error) {
			return store.users(userMapper)
		},
		close: func() {},
	}, nil
}

// Manager returns a session runtime that opens a fresh store per session
func (a *App) Manager() (*sessions.Manager, error) {
	ttl, err := a.cfg.TTL()
	if err != nil {
		return nil, err
	}

	return sessions.NewManager(func() (sessions.Handler, error) {
		repo, err := a.newSessionRepository()
		if err != nil {
			return nil, err
		}
		return sessions.NewStore(repo, sessions.WithTTL(ttl))
	}), nil
}

// Credentials returns a login form checking username and password of active users
func (a *App) Credentials() (*formauth.Form[*models.User], error) {
	repo, err := a.newUserRepository()
	if err != nil {
		return nil, err
	}

	return formauth.NewForm(repo, a.userMapper, formauth.WithScope(database.Conditions{"active": true}))
}

// SeedUser creates a user unless one with the same username already exists
func (a *App) SeedUser(ctx context.Context, username, email, password string) error {
	repo, err := a.newUserRepository()
	if err != nil {
		return err
	}

	_, err = repo.FindOneBy(ctx, database.Conditions{"username": username})
	if err == nil {
		return nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return err
	}

	hash, err := formauth.HashPassword(password)
	if err != nil {
		return err
	}

	repo.Persist(models.NewUser(username, email, models.PasswordHash(hash)))

	return repo.Flush(ctx)
}

// Sweep deletes every expired session
func (a *App) Sweep(ctx context.Context) (int64, error) {
	maxLifetime, err := a.cfg.GCMaxLifetime()
	if err != nil {
		return 0, err
	}

	m, err := a.Manager()
	if err != nil {
		return 0, err
	}

	return m.Sweep(ctx, maxLifetime)
}

func (a *App) Close() {
	a.registry.Reset()
	a.close()
}
