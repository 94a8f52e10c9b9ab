package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-records/pkg/records"
	"github.com/tendant/simple-records/pkg/records/document"
	"github.com/tendant/simple-records/pkg/records/storage"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository implements storage.Backend, the reference stores and
// records.ContentSearcher using PostgreSQL. Documents live in a JSONB
// column.
type Repository struct {
	db        DBTX
	documents bool
}

// Option configures a Repository.
type Option func(*Repository)

// WithDocumentColumns overrides the document column capability. It is on
// by default.
func WithDocumentColumns(supported bool) Option {
	return func(r *Repository) {
		r.documents = supported
	}
}

// New creates a new PostgreSQL repository
func New(db DBTX, opts ...Option) *Repository {
	r := &Repository{db: db, documents: true}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool, opts ...Option) *Repository {
	return New(pool, opts...)
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if strings.Contains(pgErr.ConstraintName, "contentlet") {
				return fmt.Errorf("revision already exists")
			}
			return fmt.Errorf("duplicate entry")
		case "23503": // foreign_key_violation
			return fmt.Errorf("referenced record not found")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

// SupportsDocumentColumns implements storage.Capability.
func (r *Repository) SupportsDocumentColumns() bool {
	return r.documents
}

var poolColumns = func() map[string]bool {
	m := make(map[string]bool)
	for _, c := range storage.ColumnNames() {
		m[c] = true
	}
	return m
}()

var selectColumns = strings.Join(append([]string{
	"inode", "identifier", "structure_inode", "language_id",
	"COALESCE(host_id, '') AS host_id", "COALESCE(folder_id, '') AS folder_id",
	"properties::text AS properties", "mod_date",
}, append(storage.ColumnNames(), document.ColumnName+"::text AS "+document.ColumnName)...), ", ")

// insertRowSQL builds the insert for row. Only pooled column names are
// accepted, so column identifiers never come from input.
func insertRowSQL(row *storage.Row) (string, []any, error) {
	props, err := json.Marshal(row.Properties)
	if err != nil {
		return "", nil, err
	}
	if row.Properties == nil {
		props = []byte("{}")
	}

	cols := []string{"inode", "identifier", "structure_inode", "language_id", "host_id", "folder_id", "properties", "mod_date"}
	args := []any{row.Inode, row.Identifier, row.ContentTypeID, row.LanguageID,
		nullable(row.HostID), nullable(row.FolderID), string(props), row.ModDate}
	placeholders := []string{"$1", "$2", "$3", "$4", "$5", "$6", "$7::jsonb", "$8"}

	names := make([]string, 0, len(row.Columns))
	for name := range row.Columns {
		if !poolColumns[name] {
			return "", nil, fmt.Errorf("unknown column %q", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cols = append(cols, name)
		args = append(args, row.Columns[name])
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}
	if len(row.Document) > 0 {
		cols = append(cols, document.ColumnName)
		args = append(args, string(row.Document))
		placeholders = append(placeholders, fmt.Sprintf("$%d::jsonb", len(args)))
	}

	query := fmt.Sprintf("INSERT INTO contentlet (%s) VALUES (%s)",
		strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	return query, args, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Row operations

func (r *Repository) SaveRow(ctx context.Context, row *storage.Row) error {
	query, args, err := insertRowSQL(row)
	if err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return r.handlePostgresError("save row", err)
	}
	return nil
}

func (r *Repository) LoadRow(ctx context.Context, inode string) (*storage.Row, error) {
	query := "SELECT " + selectColumns + " FROM contentlet WHERE inode = $1"
	return r.queryRow(ctx, "load row", query, inode)
}

func (r *Repository) LatestRow(ctx context.Context, identifier string, languageID int64) (*storage.Row, error) {
	query := "SELECT " + selectColumns + ` FROM contentlet
		WHERE identifier = $1 AND language_id = $2
		ORDER BY row_id DESC LIMIT 1`
	return r.queryRow(ctx, "latest row", query, identifier, languageID)
}

func (r *Repository) queryRow(ctx context.Context, operation, query string, args ...any) (*storage.Row, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError(operation, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, r.handlePostgresError(operation, err)
		}
		return nil, records.ErrRecordNotFound
	}
	values, err := rows.Values()
	if err != nil {
		return nil, r.handlePostgresError(operation, err)
	}
	named := make(map[string]any, len(values))
	for i, fd := range rows.FieldDescriptions() {
		named[fd.Name] = values[i]
	}
	return rowFromValues(named)
}

// rowFromValues maps a selected row onto storage.Row. NULL pooled columns
// are left out.
func rowFromValues(named map[string]any) (*storage.Row, error) {
	row := &storage.Row{Columns: make(map[string]any)}
	row.Inode, _ = named["inode"].(string)
	row.Identifier, _ = named["identifier"].(string)
	row.ContentTypeID, _ = named["structure_inode"].(string)
	row.LanguageID, _ = named["language_id"].(int64)
	row.HostID, _ = named["host_id"].(string)
	row.FolderID, _ = named["folder_id"].(string)
	if t, ok := named["mod_date"].(time.Time); ok {
		row.ModDate = t.UTC()
	}
	if props, _ := named["properties"].(string); props != "" {
		if err := json.Unmarshal([]byte(props), &row.Properties); err != nil {
			return nil, fmt.Errorf("invalid properties: %w", err)
		}
	}
	if doc, _ := named[document.ColumnName].(string); doc != "" {
		row.Document = []byte(doc)
	}
	for name := range poolColumns {
		if v, ok := named[name]; ok && v != nil {
			row.Columns[name] = v
		}
	}
	return row, nil
}

// Relationship operations

func (r *Repository) SaveRelationships(ctx context.Context, identifier string, set *records.RelationshipSet) error {
	if set == nil || len(set.Records) == 0 {
		return nil
	}
	db, commit, rollback, err := r.tx(ctx)
	if err != nil {
		return err
	}
	defer rollback()

	for _, entry := range set.Records {
		relType := entry.Relationship.ID
		del := `DELETE FROM tree WHERE child = $1 AND relation_type = $2`
		if entry.IsParent {
			del = `DELETE FROM tree WHERE parent = $1 AND relation_type = $2`
		}
		if _, err := db.Exec(ctx, del, identifier, relType); err != nil {
			return r.handlePostgresError("clear relationship", err)
		}
		for i, related := range entry.Related {
			parent, child := related, identifier
			if entry.IsParent {
				parent, child = identifier, related
			}
			_, err := db.Exec(ctx, `
				INSERT INTO tree (parent, child, relation_type, tree_order) VALUES ($1, $2, $3, $4)
				ON CONFLICT (parent, child, relation_type) DO UPDATE SET tree_order = EXCLUDED.tree_order`,
				parent, child, relType, i)
			if err != nil {
				return r.handlePostgresError("save relationship", err)
			}
		}
	}
	return commit()
}

// tx runs on a transaction when the handle can begin one.
func (r *Repository) tx(ctx context.Context) (DBTX, func() error, func(), error) {
	b, ok := r.db.(beginner)
	if !ok {
		return r.db, func() error { return nil }, func() {}, nil
	}
	tx, err := b.Begin(ctx)
	if err != nil {
		return nil, nil, nil, r.handlePostgresError("begin", err)
	}
	return tx,
		func() error { return tx.Commit(ctx) },
		func() { _ = tx.Rollback(ctx) },
		nil
}

func (r *Repository) Related(ctx context.Context, identifier, relationshipID string, parent bool) ([]string, error) {
	query := `SELECT child FROM tree WHERE parent = $1 AND relation_type = $2 ORDER BY tree_order`
	if !parent {
		query = `SELECT parent FROM tree WHERE child = $1 AND relation_type = $2 ORDER BY tree_order`
	}
	return r.queryStrings(ctx, "related", query, identifier, relationshipID)
}

func (r *Repository) queryStrings(ctx context.Context, operation, query string, args ...any) ([]string, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError(operation, err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, r.handlePostgresError(operation, err)
	}
	return out, nil
}

// Search

var systemTerms = map[string]string{
	"identifier":  "identifier",
	"contentType": "structure_inode",
	"host":        "host_id",
	"folder":      "folder_id",
}

// filterSQL builds the related content query. A query without ":" is a
// comma separated identifier list; otherwise every "key:value" term must
// match a system column, a pooled column, or a field value of the document.
func filterSQL(languageID int64, query string) (string, []any, error) {
	query = strings.TrimSpace(query)
	args := []any{languageID}

	if !strings.Contains(query, ":") {
		var ids []string
		for _, id := range strings.Split(query, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		args = append(args, ids)
		return `SELECT DISTINCT identifier FROM contentlet
			WHERE language_id = $1 AND identifier = ANY($2) ORDER BY identifier`, args, nil
	}

	var conds []string
	for _, term := range strings.Fields(query) {
		name, value, ok := strings.Cut(strings.TrimPrefix(term, "+"), ":")
		if !ok || name == "" {
			return "", nil, fmt.Errorf("invalid term %q", term)
		}
		args = append(args, strings.Trim(value, `"`))
		p := fmt.Sprintf("$%d", len(args))
		switch {
		case systemTerms[name] != "":
			conds = append(conds, fmt.Sprintf("lower(%s) = lower(%s)", systemTerms[name], p))
		case poolColumns[name]:
			conds = append(conds, fmt.Sprintf("lower(%s::text) = lower(%s)", name, p))
		default:
			args = append(args, name)
			conds = append(conds, fmt.Sprintf("lower(%s->'fields'->$%d->>'value') = lower(%s)",
				document.ColumnName, len(args), p))
		}
	}
	return fmt.Sprintf(`SELECT identifier FROM (
			SELECT DISTINCT ON (identifier) * FROM contentlet
			WHERE language_id = $1 ORDER BY identifier, row_id DESC
		) latest WHERE %s ORDER BY identifier`, strings.Join(conds, " AND ")), args, nil
}

func (r *Repository) FilterRelated(ctx context.Context, languageID int64, query string) ([]string, error) {
	q, args, err := filterSQL(languageID, query)
	if err != nil {
		return nil, err
	}
	return r.queryStrings(ctx, "filter related", q, args...)
}
