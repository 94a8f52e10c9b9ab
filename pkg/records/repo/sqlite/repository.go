// Package sqlite persists records in a single SQLite file. SQLite has no
// document column here, so it always stores the pooled columns.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tendant/simple-records/pkg/records"
	"github.com/tendant/simple-records/pkg/records/storage"
)

var familyTypes = map[string]string{
	"text":      "TEXT",
	"text_area": "TEXT",
	"integer":   "INTEGER",
	"float":     "REAL",
	"bool":      "INTEGER",
	"date":      "TEXT",
}

var poolColumns = func() map[string]string {
	m := make(map[string]string)
	for _, family := range storage.Families {
		for i := 1; i <= storage.PoolSize; i++ {
			m[fmt.Sprintf("%s%d", family, i)] = family
		}
	}
	return m
}()

// Repository implements storage.Backend and the reference stores on SQLite.
type Repository struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	r := &Repository{db: db, path: path}
	if _, err := db.ExecContext(ctx, Schema()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return r, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Schema returns the DDL for every table the repository uses.
func Schema() string {
	var cols strings.Builder
	for _, family := range storage.Families {
		for i := 1; i <= storage.PoolSize; i++ {
			fmt.Fprintf(&cols, ",\n\t%s%d %s", family, i, familyTypes[family])
		}
	}
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS contentlet (
	row_id INTEGER PRIMARY KEY AUTOINCREMENT,
	inode TEXT NOT NULL UNIQUE,
	identifier TEXT NOT NULL,
	structure_inode TEXT NOT NULL,
	language_id INTEGER NOT NULL,
	host_id TEXT NOT NULL DEFAULT '',
	folder_id TEXT NOT NULL DEFAULT '',
	properties TEXT NOT NULL DEFAULT '{}',
	mod_date TEXT NOT NULL%s
);
CREATE INDEX IF NOT EXISTS idx_contentlet_identifier ON contentlet (identifier, language_id);

CREATE TABLE IF NOT EXISTS tree (
	parent TEXT NOT NULL,
	child TEXT NOT NULL,
	relation_type TEXT NOT NULL,
	tree_order INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (parent, child, relation_type)
);

CREATE TABLE IF NOT EXISTS host (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE COLLATE NOCASE
);

CREATE TABLE IF NOT EXISTS folder (
	id TEXT PRIMARY KEY,
	host_id TEXT NOT NULL REFERENCES host (id),
	path TEXT NOT NULL,
	UNIQUE (host_id, path)
);

CREATE TABLE IF NOT EXISTS identifier (
	id TEXT PRIMARY KEY,
	host_id TEXT NOT NULL REFERENCES host (id),
	uri TEXT NOT NULL,
	UNIQUE (host_id, uri)
);

CREATE TABLE IF NOT EXISTS category (
	id TEXT PRIMARY KEY,
	category_key TEXT NOT NULL DEFAULT '',
	category_velocity_var_name TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL DEFAULT ''
);
`, cols.String())
}

// SupportsDocumentColumns implements storage.Capability.
func (r *Repository) SupportsDocumentColumns() bool {
	return false
}

// Row operations

func (r *Repository) SaveRow(ctx context.Context, row *storage.Row) error {
	if len(row.Document) > 0 {
		return fmt.Errorf("save row %s: document columns are not supported", row.Inode)
	}
	props, err := json.Marshal(row.Properties)
	if err != nil {
		return err
	}
	if row.Properties == nil {
		props = []byte("{}")
	}

	cols := []string{"inode", "identifier", "structure_inode", "language_id", "host_id", "folder_id", "properties", "mod_date"}
	args := []any{row.Inode, row.Identifier, row.ContentTypeID, row.LanguageID,
		row.HostID, row.FolderID, string(props), row.ModDate.UTC().Format(time.RFC3339Nano)}

	names := make([]string, 0, len(row.Columns))
	for name := range row.Columns {
		if _, ok := poolColumns[name]; !ok {
			return fmt.Errorf("unknown column %q", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cols = append(cols, name)
		args = append(args, columnValue(row.Columns[name]))
	}

	query := fmt.Sprintf("INSERT INTO contentlet (%s) VALUES (%s)",
		strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save row %s: %w", row.Inode, err)
	}
	return nil
}

// columnValue stores dates as RFC 3339 text and booleans as 0 or 1.
func columnValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case bool:
		if t {
			return 1
		}
		return 0
	default:
		return v
	}
}

var selectColumns = strings.Join(append([]string{
	"inode", "identifier", "structure_inode", "language_id",
	"host_id", "folder_id", "properties", "mod_date",
}, storage.ColumnNames()...), ", ")

func (r *Repository) LoadRow(ctx context.Context, inode string) (*storage.Row, error) {
	return r.queryRow(ctx, "SELECT "+selectColumns+" FROM contentlet WHERE inode = ?", inode)
}

func (r *Repository) LatestRow(ctx context.Context, identifier string, languageID int64) (*storage.Row, error) {
	return r.queryRow(ctx, "SELECT "+selectColumns+` FROM contentlet
		WHERE identifier = ? AND language_id = ? ORDER BY row_id DESC LIMIT 1`, identifier, languageID)
}

func (r *Repository) queryRow(ctx context.Context, query string, args ...any) (*storage.Row, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query row: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("query row: %w", err)
		}
		return nil, records.ErrRecordNotFound
	}
	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	values := make([]any, len(names))
	dest := make([]any, len(names))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}

	row := &storage.Row{Columns: make(map[string]any)}
	var props, modDate string
	for i, name := range names {
		v := values[i]
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		switch name {
		case "inode":
			row.Inode, _ = v.(string)
		case "identifier":
			row.Identifier, _ = v.(string)
		case "structure_inode":
			row.ContentTypeID, _ = v.(string)
		case "language_id":
			row.LanguageID, _ = v.(int64)
		case "host_id":
			row.HostID, _ = v.(string)
		case "folder_id":
			row.FolderID, _ = v.(string)
		case "properties":
			props, _ = v.(string)
		case "mod_date":
			modDate, _ = v.(string)
		default:
			if v != nil {
				row.Columns[name] = v
			}
		}
	}
	if props != "" {
		if err := json.Unmarshal([]byte(props), &row.Properties); err != nil {
			return nil, fmt.Errorf("invalid properties of %s: %w", row.Inode, err)
		}
	}
	if modDate != "" {
		row.ModDate, _ = time.Parse(time.RFC3339Nano, modDate)
	}
	return row, nil
}

// Relationship operations

func (r *Repository) SaveRelationships(ctx context.Context, identifier string, set *records.RelationshipSet) error {
	if set == nil || len(set.Records) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, entry := range set.Records {
		relType := entry.Relationship.ID
		del := `DELETE FROM tree WHERE child = ? AND relation_type = ?`
		if entry.IsParent {
			del = `DELETE FROM tree WHERE parent = ? AND relation_type = ?`
		}
		if _, err := tx.ExecContext(ctx, del, identifier, relType); err != nil {
			return fmt.Errorf("clear relationship %s: %w", relType, err)
		}
		for i, related := range entry.Related {
			parent, child := related, identifier
			if entry.IsParent {
				parent, child = identifier, related
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO tree (parent, child, relation_type, tree_order) VALUES (?, ?, ?, ?)
				ON CONFLICT (parent, child, relation_type) DO UPDATE SET tree_order = excluded.tree_order`,
				parent, child, relType, i)
			if err != nil {
				return fmt.Errorf("save relationship %s: %w", relType, err)
			}
		}
	}
	return tx.Commit()
}

func (r *Repository) Related(ctx context.Context, identifier, relationshipID string, parent bool) ([]string, error) {
	query := `SELECT child FROM tree WHERE parent = ? AND relation_type = ? ORDER BY tree_order`
	if !parent {
		query = `SELECT parent FROM tree WHERE child = ? AND relation_type = ? ORDER BY tree_order`
	}
	return r.queryStrings(ctx, query, identifier, relationshipID)
}

func (r *Repository) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Search

var errUnsupportedTerm = errors.New("unsupported filter field")

var systemTerms = map[string]string{
	"identifier":  "identifier",
	"contentType": "structure_inode",
	"host":        "host_id",
	"folder":      "folder_id",
}

// FilterRelated matches the latest revision of each identifier. A query
// without ":" is a comma separated identifier list; otherwise every
// "key:value" term must match a system column or a pooled column.
func (r *Repository) FilterRelated(ctx context.Context, languageID int64, query string) ([]string, error) {
	query = strings.TrimSpace(query)
	conds := []string{"c.language_id = ?",
		"c.row_id = (SELECT MAX(row_id) FROM contentlet WHERE identifier = c.identifier AND language_id = c.language_id)"}
	args := []any{languageID}

	if !strings.Contains(query, ":") {
		var ids []string
		for _, id := range strings.Split(query, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
				args = append(args, id)
			}
		}
		if len(ids) == 0 {
			return []string{}, nil
		}
		conds = append(conds, "c.identifier IN ("+strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")+")")
	} else {
		for _, term := range strings.Fields(query) {
			name, value, ok := strings.Cut(strings.TrimPrefix(term, "+"), ":")
			if !ok || name == "" {
				return nil, fmt.Errorf("invalid term %q", term)
			}
			col := systemTerms[name]
			if _, pooled := poolColumns[name]; pooled {
				col = name
			}
			if col == "" {
				return nil, fmt.Errorf("%w: %s", errUnsupportedTerm, name)
			}
			conds = append(conds, fmt.Sprintf("lower(CAST(c.%s AS TEXT)) = lower(?)", col))
			args = append(args, strings.Trim(value, `"`))
		}
	}

	q := "SELECT DISTINCT c.identifier FROM contentlet c WHERE " + strings.Join(conds, " AND ") + " ORDER BY c.identifier"
	return r.queryStrings(ctx, q, args...)
}
