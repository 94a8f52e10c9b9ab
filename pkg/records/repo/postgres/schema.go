package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/tendant/simple-records/pkg/records/document"
	"github.com/tendant/simple-records/pkg/records/storage"
)

var familyTypes = map[string]string{
	"text":      "TEXT",
	"text_area": "TEXT",
	"integer":   "BIGINT",
	"float":     "DOUBLE PRECISION",
	"bool":      "BOOLEAN",
	"date":      "TIMESTAMPTZ",
}

// Schema returns the DDL for every table the repository uses.
func Schema() string {
	var cols strings.Builder
	for _, family := range storage.Families {
		for i := 1; i <= storage.PoolSize; i++ {
			fmt.Fprintf(&cols, "\t\t%s%d %s,\n", family, i, familyTypes[family])
		}
	}
	return fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS contentlet (
		row_id BIGSERIAL UNIQUE,
		inode VARCHAR(64) PRIMARY KEY,
		identifier VARCHAR(64) NOT NULL,
		structure_inode VARCHAR(64) NOT NULL,
		language_id BIGINT NOT NULL,
		host_id VARCHAR(64),
		folder_id VARCHAR(64),
		properties JSONB NOT NULL DEFAULT '{}',
		mod_date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
%s		%s JSONB
	);
	CREATE INDEX IF NOT EXISTS idx_contentlet_identifier ON contentlet (identifier, language_id, row_id DESC);

	CREATE TABLE IF NOT EXISTS tree (
		parent VARCHAR(64) NOT NULL,
		child VARCHAR(64) NOT NULL,
		relation_type VARCHAR(64) NOT NULL,
		tree_order INT NOT NULL DEFAULT 0,
		PRIMARY KEY (parent, child, relation_type)
	);

	CREATE TABLE IF NOT EXISTS host (
		id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(255) NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS folder (
		id VARCHAR(64) PRIMARY KEY,
		host_id VARCHAR(64) NOT NULL REFERENCES host (id),
		path TEXT NOT NULL,
		UNIQUE (host_id, path)
	);

	CREATE TABLE IF NOT EXISTS identifier (
		id VARCHAR(64) PRIMARY KEY,
		host_id VARCHAR(64) NOT NULL REFERENCES host (id),
		uri TEXT NOT NULL,
		UNIQUE (host_id, uri)
	);

	CREATE TABLE IF NOT EXISTS category (
		id VARCHAR(64) PRIMARY KEY,
		category_key VARCHAR(255),
		category_velocity_var_name VARCHAR(255),
		name VARCHAR(255)
	);
`, cols.String(), document.ColumnName)
}

// Migrate creates any missing tables.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema()); err != nil {
		return r.handlePostgresError("migrate", err)
	}
	return nil
}
