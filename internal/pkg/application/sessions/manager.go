package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/google/uuid"
)

// HandlerFactory creates a handler for the duration of one request
type HandlerFactory func() (Handler, error)

type Manager struct {
	factory HandlerFactory
	newID   func() string
}

type ManagerOption func(*Manager)

func WithIDGenerator(fn func() string) ManagerOption {
	return func(m *Manager) {
		m.newID = fn
	}
}

func NewManager(factory HandlerFactory, options ...ManagerOption) *Manager {
	m := &Manager{
		factory: factory,
		newID:   uuid.NewString,
	}

	for _, option := range options {
		option(m)
	}

	return m
}

// Start opens the session identified by sessionID, or a new session when the
// id is empty or unknown to the store.
func (m *Manager) Start(ctx context.Context, sessionID string) (*Session, error) {
	if m.factory == nil {
		return nil, NewSessionStartError("no session handler configured", errors.ErrUnsupported)
	}

	h, err := m.factory()
	if err != nil {
		return nil, NewSessionStartError("failed to create session handler", err)
	}

	err = h.Open(ctx, sessionID)
	if err != nil {
		return nil, NewSessionStartError("failed to open session", err)
	}

	if st, ok := h.(interface{ State() BindingState }); ok && st.State() == BoundNew {
		// never adopt an id that the store did not issue
		sessionID = ""
	}

	if sessionID == "" {
		sessionID = m.newID()
	}

	data, err := h.Read(ctx, sessionID)
	if err != nil {
		h.Close()
		return nil, NewSessionStartError("failed to read session", err)
	}

	values, err := decodeValues(data)
	if err != nil {
		logging.GetFromContext(ctx).Warn("discarding undecodable session data", "err", err.Error())
		values = Values{}
	}

	return &Session{
		id:      sessionID,
		handler: h,
		values:  values,
		started: true,
	}, nil
}

// Sweep runs garbage collection through a fresh handler
func (m *Manager) Sweep(ctx context.Context, maxLifetime time.Duration) (int64, error) {
	h, err := m.factory()
	if err != nil {
		return 0, err
	}
	defer h.Close()

	return h.GC(ctx, maxLifetime)
}

// Session is the started session of one request
type Session struct {
	id      string
	handler Handler
	values  Values
	started bool
}

func (s *Session) Key() string {
	return s.id
}

func (s *Session) IsStarted() bool {
	return s.started
}

func (s *Session) Check(path string) bool {
	return s.values.Check(path)
}

func (s *Session) Get(path string) (any, bool) {
	return s.values.Get(path)
}

func (s *Session) Set(path string, value any) {
	s.values.Set(path, value)
}

func (s *Session) Delete(path string) bool {
	return s.values.Delete(path)
}

func (s *Session) Clear() {
	s.values.Clear()
}

func (s *Session) Values() Values {
	return s.values
}

// Save writes the current values and returns once they are durable
func (s *Session) Save(ctx context.Context) error {
	if !s.started {
		return ErrSessionStart
	}

	data, err := s.values.encode()
	if err != nil {
		return err
	}

	return s.handler.Write(ctx, s.id, data)
}

func (s *Session) Destroy(ctx context.Context) error {
	if !s.started {
		return nil
	}

	err := s.handler.Destroy(ctx, s.id)
	if err != nil {
		return err
	}

	s.values = Values{}
	return s.Close()
}

func (s *Session) Close() error {
	if !s.started {
		return nil
	}

	s.started = false
	return s.handler.Close()
}
