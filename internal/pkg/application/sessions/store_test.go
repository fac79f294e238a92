package sessions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/diwise/entity-sessions/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/entity-sessions/pkg/mapper"
	"github.com/diwise/entity-sessions/pkg/mapper/metadata"
	"github.com/diwise/entity-sessions/pkg/mapper/validation"
	"github.com/diwise/entity-sessions/pkg/models"
	"github.com/matryer/is"
)

func TestOpenWithoutIDBindsNewRecordWithDefaultTTL(t *testing.T) {
	is, ctx, _, repo := setupStoreTest(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	store, err := NewStore(repo, WithClock(func() time.Time { return now }))
	is.NoErr(err)

	is.NoErr(store.Open(ctx, ""))

	is.Equal(store.State(), BoundNew)
	is.Equal(store.record.Expires(), now.Add(3*24*time.Hour))
	is.True(!store.record.Exists())
}

func TestRoundTrip(t *testing.T) {
	is, ctx, _, repo := setupStoreTest(t)

	store, err := NewStore(repo)
	is.NoErr(err)

	is.NoErr(store.Open(ctx, ""))
	is.NoErr(store.Write(ctx, "k", []byte("v")))
	is.NoErr(store.Close())
	is.Equal(store.State(), Unbound)

	is.NoErr(store.Open(ctx, "k"))
	is.Equal(store.State(), BoundExisting)

	data, err := store.Read(ctx, "k")
	is.NoErr(err)
	is.Equal(string(data), "v")
}

func TestWriteRecomputesExpiryAndUpdatesExistingRecord(t *testing.T) {
	is, ctx, mem, repo := setupStoreTest(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	store, _ := NewStore(repo, WithClock(clock), WithTTL(time.Hour))
	is.NoErr(store.Open(ctx, ""))
	is.NoErr(store.Write(ctx, "k", []byte("one")))
	store.Close()

	now = now.Add(30 * time.Minute)

	is.NoErr(store.Open(ctx, "k"))
	is.NoErr(store.Write(ctx, "k", []byte("two")))

	is.Equal(mem.Len(models.SessionType), 1)

	s, err := repo.FindByID(ctx, "k")
	is.NoErr(err)
	is.Equal(string(s.Data()), "two")
	is.Equal(s.Expires(), now.Add(time.Hour))
}

func TestReadWhenUnboundOrEmpty(t *testing.T) {
	is, ctx, _, repo := setupStoreTest(t)
	store, _ := NewStore(repo)

	data, err := store.Read(ctx, "x")
	is.NoErr(err)
	is.Equal(len(data), 0)

	store.Open(ctx, "")
	data, err = store.Read(ctx, "x")
	is.NoErr(err)
	is.Equal(len(data), 0)
}

func TestWriteWithRegeneratedIDReplacesRecord(t *testing.T) {
	is, ctx, mem, repo := setupStoreTest(t)
	store, _ := NewStore(repo)

	store.Open(ctx, "")
	is.NoErr(store.Write(ctx, "old", []byte("v")))
	store.Close()

	store.Open(ctx, "old")
	is.NoErr(store.Write(ctx, "new", []byte("v")))

	is.Equal(mem.Len(models.SessionType), 1)
	_, err := repo.FindByID(ctx, "old")
	is.True(errors.Is(err, database.ErrNotFound))
	is.Equal(store.Bound(), "new")
}

func TestFailedRegenerationKeepsPreviousBinding(t *testing.T) {
	is, ctx, _, repo := setupStoreTest(t)

	other, _ := NewStore(repo)
	other.Open(ctx, "")
	is.NoErr(other.Write(ctx, "b", []byte("taken")))

	store, _ := NewStore(repo)
	store.Open(ctx, "")
	is.NoErr(store.Write(ctx, "a", []byte("v")))
	store.Close()

	store.Open(ctx, "a")
	err := store.Write(ctx, "b", []byte("v2"))
	is.True(errors.Is(err, database.ErrAlreadyExists))
	is.Equal(store.State(), BoundExisting)
	is.Equal(store.Bound(), "a")

	is.NoErr(store.Write(ctx, "a", []byte("retry")))

	s, err := repo.FindByID(ctx, "a")
	is.NoErr(err)
	is.Equal(string(s.Data()), "retry")

	s, err = repo.FindByID(ctx, "b")
	is.NoErr(err)
	is.Equal(string(s.Data()), "taken")
}

func TestWriteOfInvalidRecordIsRejected(t *testing.T) {
	is, ctx, mem, repo := setupStoreTest(t)
	store, _ := NewStore(repo)

	store.Open(ctx, "")
	err := store.Write(ctx, "", []byte("v"))

	var vf *mapper.ValidationFailed
	is.True(errors.As(err, &vf))
	is.Equal(vf.Errors["id"], []string{"session id is empty"})
	is.Equal(store.State(), BoundNew)
	is.Equal(mem.Len(models.SessionType), 0)
}

func TestSecondOpenReleasesPreviousBinding(t *testing.T) {
	is, ctx, _, repo := setupStoreTest(t)
	store, _ := NewStore(repo)

	store.Open(ctx, "")
	store.Write(ctx, "a", []byte("1"))

	is.NoErr(store.Open(ctx, "b"))
	is.Equal(store.State(), BoundNew)
	is.Equal(store.Bound(), "")
}

func TestDestroy(t *testing.T) {
	is, ctx, mem, repo := setupStoreTest(t)
	store, _ := NewStore(repo)

	store.Open(ctx, "")
	is.NoErr(store.Write(ctx, "k", []byte("v")))

	is.NoErr(store.Destroy(ctx, "k"))
	is.Equal(mem.Len(models.SessionType), 0)
	is.Equal(store.State(), Unbound)

	is.NoErr(store.Destroy(ctx, "k"))          // destroying twice should succeed
	is.NoErr(store.Destroy(ctx, "nonexistent")) // as should destroying an unknown id
}

func TestDestroyUnboundRecordByID(t *testing.T) {
	is, ctx, mem, repo := setupStoreTest(t)
	store, _ := NewStore(repo)

	store.Open(ctx, "")
	store.Write(ctx, "k", []byte("v"))
	store.Close()

	is.NoErr(store.Destroy(ctx, "k"))
	is.Equal(mem.Len(models.SessionType), 0)
}

func TestGCBoundary(t *testing.T) {
	is, ctx, mem, repo := setupStoreTest(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for id, offset := range map[string]time.Duration{
		"minus10": -10 * time.Second,
		"minus5":  -5 * time.Second,
		"plus5":   5 * time.Second,
	} {
		s := models.NewSession()
		s.SetID(id)
		s.SetExpires(now.Add(offset))
		repo.Persist(s)
	}
	is.NoErr(repo.Flush(ctx))

	store, _ := NewStore(repo, WithClock(func() time.Time { return now }))

	count, err := store.GC(ctx, 7*time.Second)
	is.NoErr(err)
	is.Equal(count, int64(2))
	is.Equal(mem.Len(models.SessionType), 1)

	_, err = repo.FindByID(ctx, "plus5")
	is.NoErr(err)

	_, err = store.GC(ctx, -time.Second)
	is.True(errors.Is(err, mapper.ErrConfiguration))
}

func TestNewStoreRequiresRepository(t *testing.T) {
	is := is.New(t)

	_, err := NewStore(nil)
	is.True(errors.Is(err, mapper.ErrConfiguration))

	_, _, _, repo := setupStoreTest(t)
	_, err = NewStore(repo, WithTTL(0))
	is.True(errors.Is(err, mapper.ErrConfiguration))
}

func TestRepositoryErrorsArePropagatedVerbatim(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	boom := errors.New("connection reset")

	repo := &RepositoryMock{
		FindByIDFunc: func(context.Context, any) (*models.Session, error) {
			return nil, boom
		},
		FlushFunc: func(context.Context) error {
			return boom
		},
		DeleteWhereFunc: func(context.Context, database.Predicate) (int64, error) {
			return 0, boom
		},
	}

	store, err := NewStore(repo)
	is.NoErr(err)

	is.Equal(store.Open(ctx, "id"), boom)

	is.NoErr(store.Open(ctx, ""))
	is.Equal(store.Write(ctx, "id", nil), boom)
	is.Equal(len(repo.PersistCalls()), 1)

	_, err = store.GC(ctx, time.Minute)
	is.Equal(err, boom)
}

func setupStoreTest(t *testing.T) (*is.I, context.Context, *database.Memory, database.Repository[*models.Session]) {
	is := is.New(t)

	schema, err := models.NewSessionSchema()
	is.NoErr(err)

	src := metadata.NewStatic()
	schema.Declare(src)

	m, err := mapper.New(schema, metadata.NewRegistry(src), validation.NewEngine())
	is.NoErr(err)

	mem := database.NewMemory()
	repo, err := database.NewMemoryRepository(mem, m)
	is.NoErr(err)

	return is, context.Background(), mem, repo
}
