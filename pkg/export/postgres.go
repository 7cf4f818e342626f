package export

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool is the subset of *pgxpool.Pool used by PostgresLoader
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

const postgresSchema = `CREATE TABLE IF NOT EXISTS %s (
	category       TEXT NOT NULL,
	item_key       TEXT NOT NULL,
	unique_id      UUID NOT NULL,
	link           TEXT NOT NULL,
	title          TEXT,
	description    TEXT,
	poster_name    TEXT,
	follower_count TEXT,
	tag_list       JSONB,
	media_kind     TEXT,
	media_source   TEXT,
	downloaded     BOOLEAN NOT NULL,
	save_location  TEXT
)`

// PostgresLoader bulk-loads rows with the COPY protocol
type PostgresLoader struct {
	pool    Pool
	table   string
	closeFn func()
}

// NewPostgresLoader wraps an existing pool
func NewPostgresLoader(pool Pool, table string) *PostgresLoader {
	return &PostgresLoader{pool: pool, table: table}
}

// OpenPostgres connects to dsn
func OpenPostgres(ctx context.Context, dsn, table string) (*PostgresLoader, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	l := NewPostgresLoader(pool, table)
	l.closeFn = pool.Close
	return l, nil
}

// Load creates the table when missing and copies rows into it
func (l *PostgresLoader) Load(ctx context.Context, rows [][]any) (int64, error) {
	if _, err := l.pool.Exec(ctx, fmt.Sprintf(postgresSchema, pgx.Identifier{l.table}.Sanitize())); err != nil {
		return 0, fmt.Errorf("postgres: create %s: %w", l.table, err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := l.pool.CopyFrom(ctx, pgx.Identifier{l.table}, Columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("postgres: COPY INTO %s: %w", l.table, err)
	}
	return n, nil
}

func (l *PostgresLoader) Close() error {
	if l.closeFn != nil {
		l.closeFn()
	}
	return nil
}
