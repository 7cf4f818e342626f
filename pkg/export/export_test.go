package export

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pinscraper/pkg/config"
	"pinscraper/pkg/logger"
	"pinscraper/pkg/placement"
	"pinscraper/pkg/records"
)

type mapSource map[string]records.CategoryRecord

func (m mapSource) LoadRecord(_ context.Context, _ placement.Placement, category string) (records.CategoryRecord, error) {
	return m[category], nil
}

func sampleRecord() records.CategoryRecord {
	return records.CategoryRecord{
		"food_2": {UniqueID: "00000000-0000-0000-0000-000000000002", Link: "https://x/pin/2", Tags: nil, MediaKind: records.MediaVideo},
		"food_1": {UniqueID: "00000000-0000-0000-0000-000000000001", Link: "https://x/pin/1", Tags: records.Tags{"a"}, MediaKind: records.MediaImage, Downloaded: true},
	}
}

func TestRowsInSequenceOrder(t *testing.T) {
	rows, err := Rows("food", sampleRecord())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Len(t, rows[0], len(Columns))
	assert.Equal(t, "food_1", rows[0][1])
	assert.Equal(t, `["a"]`, rows[0][8])
	assert.Equal(t, `"unavailable"`, rows[1][8])
	assert.Equal(t, "video", rows[1][9])
}

func TestPostgresLoaderCopies(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"pinterest_records"}, Columns).WillReturnResult(2)

	exp := NewExporter(mapSource{"food": sampleRecord()}, NewPostgresLoader(mock, "pinterest_records"), logger.NewNopLogger())
	n, err := exp.Export(context.Background(), placement.Registry{"food": placement.LocalPlacement()})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLoaderCopyError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"pinterest_records"}, Columns).WillReturnError(fmt.Errorf("permission denied"))

	rows, err := Rows("food", sampleRecord())
	require.NoError(t, err)
	_, err = NewPostgresLoader(mock, "pinterest_records").Load(context.Background(), rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO pinterest_records")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteLoader(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "export.db")
	l, err := OpenSQLite(dsn, "pinterest_records")
	require.NoError(t, err)
	defer l.Close()

	exp := NewExporter(mapSource{"food": sampleRecord()}, l, logger.NewNopLogger())
	n, err := exp.Export(context.Background(), placement.Registry{"food": placement.RemotePlacement("b1")}, "food")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM pinterest_records WHERE category = 'food'").Scan(&count))
	assert.Equal(t, 2, count)
}

func TestExportUnknownCategory(t *testing.T) {
	exp := NewExporter(mapSource{}, nil, logger.NewNopLogger())
	_, err := exp.Export(context.Background(), placement.Registry{}, "nope")
	assert.Error(t, err)
}

func TestOpenValidates(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "sqlite", Table: "bad name;"})
	assert.Error(t, err)

	_, err = Open(context.Background(), config.DatabaseConfig{Driver: "mysql", Table: "t"})
	assert.Error(t, err)
}
