package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/diwise/entity-sessions/pkg/mapper"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var ErrNotFound = errors.New("not found")
var ErrAlreadyExists = errors.New("already exists")
var ErrUnknownField = errors.New("unknown field")

var tracer = otel.Tracer("entity-sessions/database")

type Conditions map[string]any

type Operator string

const (
	Equal          Operator = "="
	Less           Operator = "<"
	LessOrEqual    Operator = "<="
	Greater        Operator = ">"
	GreaterOrEqual Operator = ">="
)

// Predicate selects the rows of a bulk delete
type Predicate struct {
	Field    string
	Operator Operator
	Value    any
}

// Repository is a unit of work over the entities of one mapped type. Persist
// and Remove only queue changes, Flush makes them durable.
type Repository[T mapper.Entity] interface {
	FindByID(ctx context.Context, id any) (T, error)
	FindOneBy(ctx context.Context, conditions Conditions) (T, error)
	Persist(e T)
	Remove(e T)
	Flush(ctx context.Context) error
	DeleteWhere(ctx context.Context, p Predicate) (int64, error)
}

type opKind int

const (
	opInsert opKind = iota
	opUpdate
	opDelete
)

type op struct {
	kind opKind
	id   any
	row  map[string]any
}

type backend interface {
	find(ctx context.Context, conditions Conditions) (map[string]any, error)
	commit(ctx context.Context, ops []op) error
	deleteWhere(ctx context.Context, p Predicate) (int64, error)
}

type pending[T mapper.Entity] struct {
	entity T
	remove bool
}

type repository[T mapper.Entity] struct {
	mapper  *mapper.Mapper[T]
	backend backend
	queue   []pending[T]
}

func newRepository[T mapper.Entity](m *mapper.Mapper[T], b backend) (*repository[T], error) {
	if m == nil {
		return nil, mapper.NewConfigurationError("repository requires a mapper")
	}

	if len(m.Schema().Identifiers()) == 0 {
		return nil, mapper.NewConfigurationError("%s has no identifier field", m.Type())
	}

	return &repository[T]{mapper: m, backend: b}, nil
}

func (r *repository[T]) FindByID(ctx context.Context, id any) (T, error) {
	return r.FindOneBy(ctx, Conditions{r.mapper.Schema().Identifiers()[0]: id})
}

func (r *repository[T]) FindOneBy(ctx context.Context, conditions Conditions) (T, error) {
	var zero T

	for field := range conditions {
		if !r.mapper.Fields().Contains(field) {
			return zero, fmt.Errorf("%w %s of %s", ErrUnknownField, field, r.mapper.Type())
		}
	}

	row, err := r.backend.find(ctx, conditions)
	if err != nil {
		return zero, err
	}

	return r.hydrate(row)
}

func (r *repository[T]) hydrate(row map[string]any) (T, error) {
	e := r.mapper.New()

	err := r.mapper.Set(e, mapper.FromMap(row), nil, false)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("failed to hydrate %s: %w", r.mapper.Type(), err)
	}

	r.mapper.OnLoad(e)

	return e, nil
}

func (r *repository[T]) Persist(e T) {
	r.enqueue(e, false)
}

func (r *repository[T]) Remove(e T) {
	r.enqueue(e, true)
}

func (r *repository[T]) enqueue(e T, remove bool) {
	for i := range r.queue {
		if any(r.queue[i].entity) == any(e) {
			r.queue[i].remove = remove
			return
		}
	}
	r.queue = append(r.queue, pending[T]{entity: e, remove: remove})
}

// Flush validates every queued write through the lifecycle hooks before
// anything is sent to storage. A single failing entity aborts the flush.
func (r *repository[T]) Flush(ctx context.Context) error {
	var err error

	ctx, span := tracer.Start(ctx, "flush",
		trace.WithAttributes(attribute.String("entity-type", r.mapper.Type())),
		trace.WithAttributes(attribute.Int("queued", len(r.queue))),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	queue := r.queue
	r.queue = nil

	if len(queue) == 0 {
		return nil
	}

	ops := make([]op, 0, len(queue))
	written := make([]T, 0, len(queue))

	for _, p := range queue {
		if p.remove {
			id, _ := r.mapper.ID(p.entity)
			ops = append(ops, op{kind: opDelete, id: id})
			continue
		}

		kind := opInsert
		if r.mapper.Exists(p.entity) {
			kind = opUpdate
			err = r.mapper.OnBeforeUpdate(p.entity)
		} else {
			err = r.mapper.OnBeforeInsert(p.entity)
		}

		if err != nil {
			return err
		}

		id, _ := r.mapper.ID(p.entity)
		ops = append(ops, op{kind: kind, id: id, row: r.mapper.Data(p.entity, true)})
		written = append(written, p.entity)
	}

	err = r.backend.commit(ctx, ops)
	if err != nil {
		return err
	}

	for _, e := range written {
		r.mapper.OnCommitted(e)
	}

	logging.GetFromContext(ctx).Debug("flushed unit of work", "type", r.mapper.Type(), "operations", len(ops))

	return nil
}

func (r *repository[T]) DeleteWhere(ctx context.Context, p Predicate) (int64, error) {
	var err error

	ctx, span := tracer.Start(ctx, "delete-where",
		trace.WithAttributes(attribute.String("entity-type", r.mapper.Type())),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if !r.mapper.Fields().Contains(p.Field) {
		err = fmt.Errorf("%w %s of %s", ErrUnknownField, p.Field, r.mapper.Type())
		return 0, err
	}

	var count int64
	count, err = r.backend.deleteWhere(ctx, p)

	return count, err
}
