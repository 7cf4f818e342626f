// Package export bulk-loads committed category records into a relational
// table.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"

	"pinscraper/pkg/config"
	"pinscraper/pkg/logger"
	"pinscraper/pkg/placement"
	"pinscraper/pkg/records"
)

// Columns is the column order of every exported row
var Columns = []string{
	"category", "item_key", "unique_id", "link", "title", "description",
	"poster_name", "follower_count", "tag_list", "media_kind", "media_source",
	"downloaded", "save_location",
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// RecordSource reads the committed record of a category from its placement
type RecordSource interface {
	LoadRecord(ctx context.Context, pl placement.Placement, category string) (records.CategoryRecord, error)
}

// Loader writes rows into a table
type Loader interface {
	Load(ctx context.Context, rows [][]any) (int64, error)
	Close() error
}

// Rows flattens rec into table rows in sequence order
func Rows(category string, rec records.CategoryRecord) ([][]any, error) {
	rows := make([][]any, 0, len(rec))
	for _, key := range rec.Keys(category) {
		r := rec[key]
		tags, err := json.Marshal(r.Tags)
		if err != nil {
			return nil, fmt.Errorf("failed to encode tags of %s: %w", key, err)
		}
		rows = append(rows, []any{
			category, key, r.UniqueID, r.Link, r.Title, r.Description,
			r.PosterName, r.FollowerCount, string(tags), string(r.MediaKind), r.MediaSource,
			r.Downloaded, r.SaveLocation,
		})
	}
	return rows, nil
}

// Exporter moves records from their placements into a Loader
type Exporter struct {
	source RecordSource
	loader Loader
	logger logger.Logger
}

// NewExporter creates an exporter
func NewExporter(source RecordSource, loader Loader, log logger.Logger) *Exporter {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Exporter{source: source, loader: loader, logger: log}
}

// Export loads the records of categories, or of every registered category
// when none is given. Categories missing from reg are an error.
func (e *Exporter) Export(ctx context.Context, reg placement.Registry, categories ...string) (int64, error) {
	if len(categories) == 0 {
		categories = reg.Categories()
	}
	sort.Strings(categories)

	var rows [][]any
	for _, cat := range categories {
		pl, ok := reg.Lookup(cat)
		if !ok {
			return 0, fmt.Errorf("category %q has never been committed", cat)
		}
		rec, err := e.source.LoadRecord(ctx, pl, cat)
		if err != nil {
			return 0, fmt.Errorf("failed to read records of %s: %w", cat, err)
		}
		catRows, err := Rows(cat, rec)
		if err != nil {
			return 0, err
		}
		e.logger.DebugWithFields("Collected rows", map[string]interface{}{"category": cat, "rows": len(catRows)})
		rows = append(rows, catRows...)
	}

	n, err := e.loader.Load(ctx, rows)
	if err != nil {
		return 0, err
	}
	e.logger.InfoWithFields("Export complete", map[string]interface{}{
		"categories": len(categories),
		"rows":       n,
	})
	return n, nil
}

// Open creates the Loader selected by cfg.Driver
func Open(ctx context.Context, cfg config.DatabaseConfig) (Loader, error) {
	if !identifier.MatchString(cfg.Table) {
		return nil, fmt.Errorf("invalid table name %q", cfg.Table)
	}
	switch cfg.Driver {
	case "postgres":
		return OpenPostgres(ctx, cfg.DSN, cfg.Table)
	case "sqlite":
		return OpenSQLite(cfg.DSN, cfg.Table)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
