package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/diwise/entity-sessions/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/entity-sessions/pkg/mapper"
	"github.com/diwise/entity-sessions/pkg/models"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/otel"
)

const DefaultTTL time.Duration = 3 * 24 * time.Hour

var tracer = otel.Tracer("entity-sessions/sessions")

// Handler is the contract a session runtime expects from its storage
type Handler interface {
	Open(ctx context.Context, sessionID string) error
	Close() error
	Read(ctx context.Context, sessionID string) ([]byte, error)
	Write(ctx context.Context, sessionID string, data []byte) error
	Destroy(ctx context.Context, sessionID string) error
	GC(ctx context.Context, maxLifetime time.Duration) (int64, error)
}

type BindingState int

const (
	Unbound BindingState = iota
	BoundNew
	BoundExisting
)

func (b BindingState) String() string {
	switch b {
	case BoundNew:
		return "bound-new"
	case BoundExisting:
		return "bound-existing"
	}
	return "unbound"
}

type StoreOption func(*Store)

func WithTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		s.ttl = ttl
	}
}

func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// Store binds at most one session record at a time and is not safe for
// concurrent use. Create one store per request.
type Store struct {
	repo database.Repository[*models.Session]
	ttl  time.Duration
	now  func() time.Time

	record *models.Session
	state  BindingState
}

func NewStore(repo database.Repository[*models.Session], options ...StoreOption) (*Store, error) {
	if repo == nil {
		return nil, mapper.NewConfigurationError("no session repository available to use for session interaction")
	}

	s := &Store{
		repo: repo,
		ttl:  DefaultTTL,
		now:  time.Now,
	}

	for _, option := range options {
		option(s)
	}

	if s.ttl <= 0 {
		return nil, mapper.NewConfigurationError("session ttl must be positive, got %s", s.ttl)
	}

	return s, nil
}

func (s *Store) State() BindingState {
	return s.state
}

// Bound returns the id of the bound record, if any
func (s *Store) Bound() string {
	if s.record == nil {
		return ""
	}
	return s.record.ID()
}

func (s *Store) Open(ctx context.Context, sessionID string) error {
	s.release()

	if sessionID != "" {
		record, err := s.repo.FindByID(ctx, sessionID)
		if err == nil {
			s.bind(record, BoundExisting)
			return nil
		}

		if !errors.Is(err, database.ErrNotFound) {
			return err
		}
	}

	record := models.NewSession()
	record.SetExpires(s.now().Add(s.ttl))
	s.bind(record, BoundNew)

	return nil
}

func (s *Store) bind(record *models.Session, state BindingState) {
	s.record = record
	s.state = state
}

func (s *Store) release() {
	s.record = nil
	s.state = Unbound
}

func (s *Store) Close() error {
	s.release()
	return nil
}

func (s *Store) Read(_ context.Context, _ string) ([]byte, error) {
	if s.record == nil {
		return []byte{}, nil
	}

	data := s.record.Data()
	if data == nil {
		return []byte{}, nil
	}

	return data, nil
}

// Write stores data under sessionID and returns once it has been flushed
func (s *Store) Write(ctx context.Context, sessionID string, data []byte) error {
	var err error

	ctx, span := tracer.Start(ctx, "write")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if s.record == nil {
		if err = s.Open(ctx, sessionID); err != nil {
			return err
		}
	}

	prev, prevState := s.record, s.state

	if s.state == BoundExisting && s.record.ID() != sessionID {
		// the id was regenerated, replace the stored record
		s.repo.Remove(s.record)
		s.bind(models.NewSession(), BoundNew)
	}

	s.record.SetExpires(s.now().Add(s.ttl))
	s.record.SetID(sessionID)
	s.record.SetData(data)

	s.repo.Persist(s.record)

	err = s.repo.Flush(ctx)
	if err != nil {
		// stay bound to what is actually stored
		s.bind(prev, prevState)
		return err
	}

	s.state = BoundExisting

	return nil
}

// Destroy removes the record stored under sessionID. Destroying a session
// that does not exist is not an error.
func (s *Store) Destroy(ctx context.Context, sessionID string) error {
	var err error

	ctx, span := tracer.Start(ctx, "destroy")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	record := s.record
	if record == nil || s.state != BoundExisting || record.ID() != sessionID {
		record, err = s.repo.FindByID(ctx, sessionID)
		if errors.Is(err, database.ErrNotFound) {
			err = nil
			return nil
		}
		if err != nil {
			return err
		}
	}

	s.repo.Remove(record)

	err = s.repo.Flush(ctx)
	if err != nil {
		return err
	}

	if s.record != nil && s.record.ID() == sessionID {
		s.release()
	}

	return nil
}

// GC deletes every record that has expired. Expiry is an absolute timestamp
// set on each write, so records are compared against the current time and
// maxLifetime only has to be a valid, non negative window.
func (s *Store) GC(ctx context.Context, maxLifetime time.Duration) (int64, error) {
	var err error

	ctx, span := tracer.Start(ctx, "gc")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if maxLifetime < 0 {
		err = mapper.NewConfigurationError("negative session lifetime %s", maxLifetime)
		return 0, err
	}

	cutoff := s.now()

	var count int64
	count, err = s.repo.DeleteWhere(ctx, database.Predicate{
		Field:    "expires",
		Operator: database.LessOrEqual,
		Value:    cutoff,
	})

	if err == nil {
		logging.GetFromContext(ctx).Debug("swept expired sessions", "count", count, "cutoff", cutoff)
	}

	return count, err
}
