package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diwise/entity-sessions/pkg/mapper"
	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Config struct {
	host     string
	user     string
	password string
	port     string
	dbname   string
	sslmode  string
}

func LoadConfiguration(ctx context.Context) Config {
	return Config{
		host:     env.GetVariableOrDefault(ctx, "POSTGRES_HOST", ""),
		user:     env.GetVariableOrDefault(ctx, "POSTGRES_USER", ""),
		password: env.GetVariableOrDefault(ctx, "POSTGRES_PASSWORD", ""),
		port:     env.GetVariableOrDefault(ctx, "POSTGRES_PORT", "5432"),
		dbname:   env.GetVariableOrDefault(ctx, "POSTGRES_DBNAME", "diwise"),
		sslmode:  env.GetVariableOrDefault(ctx, "POSTGRES_SSLMODE", "disable"),
	}
}

// Enabled reports whether a database host has been configured
func (c Config) Enabled() bool {
	return c.host != ""
}

func (c Config) ConnStr() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", c.user, c.password, c.host, c.port, c.dbname, c.sslmode)
}

func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	conn, err := pgxpool.New(ctx, cfg.ConnStr())
	if err != nil {
		return nil, err
	}

	err = conn.Ping(ctx)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return conn, nil
}

// TableName derives the default table of an entity type, i.e. Session -> sessions
func TableName(entityType string) string {
	return strings.ToLower(entityType) + "s"
}

func NewPostgresRepository[T mapper.Entity](pool *pgxpool.Pool, m *mapper.Mapper[T]) (Repository[T], error) {
	if pool == nil {
		return nil, mapper.NewConfigurationError("no database available for %s", m.Type())
	}

	return newRepository(m, &pgTable{
		pool:    pool,
		table:   TableName(m.Type()),
		fields:  m.Fields(),
		idField: m.Schema().Identifiers()[0],
	})
}

type pgTable struct {
	pool    *pgxpool.Pool
	table   string
	fields  []string
	idField string
}

func (t *pgTable) find(ctx context.Context, conditions Conditions) (map[string]any, error) {
	keys := sortedKeys(conditions)

	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = conditions[k]
	}

	rows, err := t.pool.Query(ctx, selectOneSQL(t.table, t.fields, keys), args...)
	if err != nil {
		return nil, err
	}

	row, err := pgx.CollectOneRow(rows, pgx.RowToMap)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}

	return row, err
}

func (t *pgTable) commit(ctx context.Context, ops []op) error {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, o := range ops {
		switch o.kind {
		case opInsert:
			columns := sortedKeys(o.row)
			_, err = tx.Exec(ctx, insertSQL(t.table, columns), values(o.row, columns)...)
		case opUpdate:
			columns := sortedKeys(o.row)
			args := append(values(o.row, columns), o.id)
			_, err = tx.Exec(ctx, updateSQL(t.table, columns, t.idField), args...)
		case opDelete:
			_, err = tx.Exec(ctx, deleteSQL(t.table, t.idField), o.id)
		}

		if err != nil {
			return writeError(t.table, o.id, err)
		}
	}

	return tx.Commit(ctx)
}

// writeError keeps the driver error while letting unique violations match ErrAlreadyExists
func writeError(table string, id any, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s %v: %w: %w", table, id, ErrAlreadyExists, err)
	}
	return err
}

func values(row map[string]any, columns []string) []any {
	args := make([]any, len(columns))
	for i, c := range columns {
		args[i] = row[c]
	}
	return args
}

func (t *pgTable) deleteWhere(ctx context.Context, p Predicate) (int64, error) {
	sql, err := deleteWhereSQL(t.table, p)
	if err != nil {
		return 0, err
	}

	tag, err := t.pool.Exec(ctx, sql, p.Value)
	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}

// SchemaSource reads persisted field names from information_schema
type SchemaSource struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewSchemaSource(pool *pgxpool.Pool) *SchemaSource {
	return &SchemaSource{pool: pool, timeout: 5 * time.Second}
}

func (s *SchemaSource) FieldNames(entityType string) ([]string, error) {
	return s.columns(`
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position;`, entityType)
}

func (s *SchemaSource) IdentifierFields(entityType string) ([]string, error) {
	return s.columns(`
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
		  AND tc.table_schema = current_schema()
		  AND tc.table_name = $1
		ORDER BY kcu.ordinal_position;`, entityType)
}

func (s *SchemaSource) columns(sql, entityType string) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, sql, TableName(entityType))
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, pgx.RowTo[string])
}
