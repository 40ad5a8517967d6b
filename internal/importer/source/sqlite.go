package source

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"unicode/utf8"

	"github.com/spounge-ai/blitzfind/internal/domain"
	app_errors "github.com/spounge-ai/blitzfind/internal/errors"
	customvalidator "github.com/spounge-ai/blitzfind/pkg/validator"
	_ "modernc.org/sqlite"
)

const (
	DefaultTable      = "building"
	DefaultIDColumn   = "marking_pg_id"
	DefaultGeomColumn = "geom"
)

// TableOptions names the table and columns a SQLite import reads.
type TableOptions struct {
	Table      string `json:"table" validate:"sqlident"`
	IDColumn   string `json:"id_column" validate:"sqlident"`
	GeomColumn string `json:"geom_column" validate:"sqlident"`
}

// WithDefaults fills empty fields with the building table defaults.
func (o TableOptions) WithDefaults() TableOptions {
	if o.Table == "" {
		o.Table = DefaultTable
	}
	if o.IDColumn == "" {
		o.IDColumn = DefaultIDColumn
	}
	if o.GeomColumn == "" {
		o.GeomColumn = DefaultGeomColumn
	}
	return o
}

type feature struct {
	Type       string          `json:"type"`
	ID         string          `json:"id"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

var nullGeometry = json.RawMessage("null")

// SQLiteTable reads every row with a non-null id from a SQLite or SpatiaLite
// file and turns it into a GeoJSON Feature. The geometry column is used when it
// holds GeoJSON text and is null otherwise; other non-null columns become properties.
func SQLiteTable(ctx context.Context, path string, opts TableOptions) ([]domain.ImportItem, error) {
	opts = opts.WithDefaults()
	for _, ident := range []string{opts.Table, opts.IDColumn, opts.GeomColumn} {
		if !customvalidator.IsSQLIdent(ident) {
			return nil, fmt.Errorf("%w: invalid identifier %q", app_errors.ErrInvalidInput, ident)
		}
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: sqlite source: %w", app_errors.ErrInvalidInput, err)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite source: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	query := fmt.Sprintf(`SELECT * FROM %q WHERE %q IS NOT NULL`, opts.Table, opts.IDColumn)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query table %s: %w", app_errors.ErrInvalidInput, opts.Table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	idIdx, geomIdx := -1, -1
	for i, c := range cols {
		switch c {
		case opts.IDColumn:
			idIdx = i
		case opts.GeomColumn:
			geomIdx = i
		}
	}
	if idIdx < 0 {
		return nil, fmt.Errorf("%w: column %s not found in %s", app_errors.ErrInvalidInput, opts.IDColumn, opts.Table)
	}

	var items []domain.ImportItem
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		f := feature{
			Type:       "Feature",
			ID:         idString(values[idIdx]),
			Geometry:   nullGeometry,
			Properties: make(map[string]any, len(cols)),
		}
		if geomIdx >= 0 {
			f.Geometry = geometryJSON(values[geomIdx])
		}
		for i, c := range cols {
			if i == geomIdx || c == "id" || values[i] == nil {
				continue
			}
			if v, ok := propertyValue(values[i]); ok {
				f.Properties[c] = v
			}
		}

		raw, err := json.Marshal(f)
		if err != nil {
			return nil, fmt.Errorf("failed to encode feature %s: %w", f.ID, err)
		}
		items = append(items, domain.ImportItem{ID: f.ID, Value: raw})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}
	return items, nil
}

func idString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func geometryJSON(v any) json.RawMessage {
	var b []byte
	switch t := v.(type) {
	case string:
		b = []byte(t)
	case []byte:
		b = t
	default:
		return nullGeometry
	}
	if !json.Valid(b) {
		return nullGeometry
	}
	return json.RawMessage(append([]byte(nil), b...))
}

// propertyValue drops binary blobs that are not text.
func propertyValue(v any) (any, bool) {
	if b, ok := v.([]byte); ok {
		if !utf8.Valid(b) {
			return nil, false
		}
		return string(b), true
	}
	return v, true
}
