package sessions

import (
	"context"
	"sync"

	"github.com/diwise/entity-sessions/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/entity-sessions/pkg/models"
)

// RepositoryMock is a moq style mock of database.Repository[*models.Session]
type RepositoryMock struct {
	FindByIDFunc    func(ctx context.Context, id any) (*models.Session, error)
	FindOneByFunc   func(ctx context.Context, conditions database.Conditions) (*models.Session, error)
	PersistFunc     func(e *models.Session)
	RemoveFunc      func(e *models.Session)
	FlushFunc       func(ctx context.Context) error
	DeleteWhereFunc func(ctx context.Context, p database.Predicate) (int64, error)

	lock    sync.RWMutex
	persist []*models.Session
	remove  []*models.Session
}

func (m *RepositoryMock) FindByID(ctx context.Context, id any) (*models.Session, error) {
	if m.FindByIDFunc == nil {
		panic("RepositoryMock.FindByIDFunc: method is nil but Repository.FindByID was just called")
	}
	return m.FindByIDFunc(ctx, id)
}

func (m *RepositoryMock) FindOneBy(ctx context.Context, conditions database.Conditions) (*models.Session, error) {
	if m.FindOneByFunc == nil {
		panic("RepositoryMock.FindOneByFunc: method is nil but Repository.FindOneBy was just called")
	}
	return m.FindOneByFunc(ctx, conditions)
}

func (m *RepositoryMock) Persist(e *models.Session) {
	m.lock.Lock()
	m.persist = append(m.persist, e)
	m.lock.Unlock()

	if m.PersistFunc != nil {
		m.PersistFunc(e)
	}
}

func (m *RepositoryMock) PersistCalls() []*models.Session {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.persist
}

func (m *RepositoryMock) Remove(e *models.Session) {
	m.lock.Lock()
	m.remove = append(m.remove, e)
	m.lock.Unlock()

	if m.RemoveFunc != nil {
		m.RemoveFunc(e)
	}
}

func (m *RepositoryMock) Flush(ctx context.Context) error {
	if m.FlushFunc == nil {
		panic("RepositoryMock.FlushFunc: method is nil but Repository.Flush was just called")
	}
	return m.FlushFunc(ctx)
}

func (m *RepositoryMock) DeleteWhere(ctx context.Context, p database.Predicate) (int64, error) {
	if m.DeleteWhereFunc == nil {
		panic("RepositoryMock.DeleteWhereFunc: method is nil but Repository.DeleteWhere was just called")
	}
	return m.DeleteWhereFunc(ctx, p)
}
