package database

import (
	"cmp"
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/diwise/entity-sessions/pkg/mapper"
)

// Memory is a process local storage engine. Its tables may be shared by
// several repositories, every commit is applied atomically.
type Memory struct {
	mu     sync.RWMutex
	tables map[string]map[string]map[string]any
}

func NewMemory() *Memory {
	return &Memory{tables: map[string]map[string]map[string]any{}}
}

// NewMemoryRepository returns a repository for m that stores its rows in mem
func NewMemoryRepository[T mapper.Entity](mem *Memory, m *mapper.Mapper[T]) (Repository[T], error) {
	if mem == nil {
		return nil, mapper.NewConfigurationError("no storage engine available for %s", m.Type())
	}
	return newRepository(m, &memoryTable{mem: mem, name: m.Type()})
}

// Len reports the number of rows stored for an entity type
func (mem *Memory) Len(entityType string) int {
	mem.mu.RLock()
	defer mem.mu.RUnlock()

	return len(mem.tables[entityType])
}

type memoryTable struct {
	mem  *Memory
	name string
}

func key(id any) string {
	return fmt.Sprint(id)
}

func (t *memoryTable) rows() map[string]map[string]any {
	rows, ok := t.mem.tables[t.name]
	if !ok {
		rows = map[string]map[string]any{}
		t.mem.tables[t.name] = rows
	}
	return rows
}

func (t *memoryTable) find(_ context.Context, conditions Conditions) (map[string]any, error) {
	t.mem.mu.RLock()
	defer t.mem.mu.RUnlock()

	rows := t.mem.tables[t.name]

	keys := make([]string, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if matches(rows[k], conditions) {
			return copyRow(rows[k]), nil
		}
	}

	return nil, ErrNotFound
}

func matches(row map[string]any, conditions Conditions) bool {
	for field, want := range conditions {
		if !reflect.DeepEqual(row[field], want) {
			return false
		}
	}
	return true
}

func (t *memoryTable) commit(_ context.Context, ops []op) error {
	t.mem.mu.Lock()
	defer t.mem.mu.Unlock()

	rows := t.rows()

	for _, o := range ops {
		if o.kind == opInsert {
			if _, exists := rows[key(o.id)]; exists {
				return fmt.Errorf("%s %v: %w", t.name, o.id, ErrAlreadyExists)
			}
		}
	}

	for _, o := range ops {
		k := key(o.id)

		switch o.kind {
		case opInsert:
			rows[k] = copyRow(o.row)
		case opUpdate:
			// updating a row that is gone affects nothing, like an SQL UPDATE
			if _, exists := rows[k]; exists {
				rows[k] = copyRow(o.row)
			}
		case opDelete:
			delete(rows, k)
		}
	}

	return nil
}

func (t *memoryTable) deleteWhere(_ context.Context, p Predicate) (int64, error) {
	t.mem.mu.Lock()
	defer t.mem.mu.Unlock()

	var count int64

	for k, row := range t.mem.tables[t.name] {
		ok, err := compare(row[p.Field], p.Operator, p.Value)
		if err != nil {
			return count, err
		}

		if ok {
			delete(t.mem.tables[t.name], k)
			count++
		}
	}

	return count, nil
}

func compare(a any, operator Operator, b any) (bool, error) {
	var c int

	switch av := a.(type) {
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return false, fmt.Errorf("cannot compare time with %T", b)
		}
		c = av.Compare(bv)
	case string:
		bv, ok := b.(string)
		if !ok {
			return false, fmt.Errorf("cannot compare string with %T", b)
		}
		c = cmp.Compare(av, bv)
	case int64:
		bv, ok := b.(int64)
		if !ok {
			return false, fmt.Errorf("cannot compare int64 with %T", b)
		}
		c = cmp.Compare(av, bv)
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return false, fmt.Errorf("cannot compare float64 with %T", b)
		}
		c = cmp.Compare(av, bv)
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("unsupported comparison of %T", a)
	}

	switch operator {
	case Equal:
		return c == 0, nil
	case Less:
		return c < 0, nil
	case LessOrEqual:
		return c <= 0, nil
	case Greater:
		return c > 0, nil
	case GreaterOrEqual:
		return c >= 0, nil
	}

	return false, fmt.Errorf("unsupported operator %q", operator)
}

func copyRow(row map[string]any) map[string]any {
	c := make(map[string]any, len(row))
	for k, v := range row {
		if b, ok := v.([]byte); ok && b != nil {
			v = append([]byte{}, b...)
		}
		c[k] = v
	}
	return c
}
