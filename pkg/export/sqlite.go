package export

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS %s (
	category       TEXT NOT NULL,
	item_key       TEXT NOT NULL,
	unique_id      TEXT NOT NULL,
	link           TEXT NOT NULL,
	title          TEXT,
	description    TEXT,
	poster_name    TEXT,
	follower_count TEXT,
	tag_list       TEXT,
	media_kind     TEXT,
	media_source   TEXT,
	downloaded     INTEGER NOT NULL,
	save_location  TEXT
)`

// SQLiteLoader inserts rows into a SQLite file in one transaction
type SQLiteLoader struct {
	db    *sql.DB
	table string
}

// OpenSQLite opens the database at dsn
func OpenSQLite(dsn, table string) (*SQLiteLoader, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	return &SQLiteLoader{db: db, table: table}, nil
}

func (l *SQLiteLoader) Load(ctx context.Context, rows [][]any) (int64, error) {
	if _, err := l.db.ExecContext(ctx, fmt.Sprintf(sqliteSchema, l.table)); err != nil {
		return 0, fmt.Errorf("sqlite: create %s: %w", l.table, err)
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(Columns)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		l.table, strings.Join(Columns, ", "), placeholders))
	if err != nil {
		return 0, fmt.Errorf("sqlite: prepare: %w", err)
	}
	defer stmt.Close()

	var n int64
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return n, fmt.Errorf("sqlite: insert %v: %w", row[1], err)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	return n, nil
}

func (l *SQLiteLoader) Close() error {
	return l.db.Close()
}
