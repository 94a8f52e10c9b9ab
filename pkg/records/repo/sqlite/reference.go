package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tendant/simple-records/pkg/records"
)

// Seeding operations

// AddHost stores or renames a host.
func (r *Repository) AddHost(ctx context.Context, h records.Host) error {
	return r.exec(ctx, "add host", `
		INSERT INTO host (id, name) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name`, h.ID, h.Name)
}

// AddFolder stores a folder. The path is normalized.
func (r *Repository) AddFolder(ctx context.Context, f records.Folder) error {
	return r.exec(ctx, "add folder", `
		INSERT INTO folder (id, host_id, path) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET host_id = excluded.host_id, path = excluded.path`,
		f.ID, f.HostID, records.NormalizeFolderPath(f.Path))
}

// AddIdentifier stores an asset identifier.
func (r *Repository) AddIdentifier(ctx context.Context, i records.Identifier) error {
	return r.exec(ctx, "add identifier", `
		INSERT INTO identifier (id, host_id, uri) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET host_id = excluded.host_id, uri = excluded.uri`,
		i.ID, i.HostID, i.URI)
}

// AddCategory stores a category.
func (r *Repository) AddCategory(ctx context.Context, c records.Category) error {
	return r.exec(ctx, "add category", `
		INSERT INTO category (id, category_key, category_velocity_var_name, name) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET category_key = excluded.category_key,
			category_velocity_var_name = excluded.category_velocity_var_name, name = excluded.name`,
		c.ID, c.Key, c.Variable, c.Name)
}

func (r *Repository) exec(ctx context.Context, operation, query string, args ...any) error {
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	return nil
}

func notFound(operation string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return records.ErrNotFound
	}
	return fmt.Errorf("%s: %w", operation, err)
}

// Host operations

func (r *Repository) HostByID(ctx context.Context, id string) (*records.Host, error) {
	var h records.Host
	err := r.db.QueryRowContext(ctx, `SELECT id, name FROM host WHERE id = ?`, id).Scan(&h.ID, &h.Name)
	if err != nil {
		return nil, notFound("host by id", err)
	}
	return &h, nil
}

func (r *Repository) HostByName(ctx context.Context, name string) (*records.Host, error) {
	var h records.Host
	err := r.db.QueryRowContext(ctx, `SELECT id, name FROM host WHERE name = ? COLLATE NOCASE`, name).Scan(&h.ID, &h.Name)
	if err != nil {
		return nil, notFound("host by name", err)
	}
	return &h, nil
}

// Folder operations

func (r *Repository) FolderByID(ctx context.Context, id string) (*records.Folder, error) {
	var f records.Folder
	err := r.db.QueryRowContext(ctx, `SELECT id, host_id, path FROM folder WHERE id = ?`, id).
		Scan(&f.ID, &f.HostID, &f.Path)
	if err != nil {
		return nil, notFound("folder by id", err)
	}
	return &f, nil
}

func (r *Repository) FolderByPath(ctx context.Context, hostID, path string) (*records.Folder, error) {
	var f records.Folder
	err := r.db.QueryRowContext(ctx, `SELECT id, host_id, path FROM folder WHERE host_id = ? AND path = ?`,
		hostID, records.NormalizeFolderPath(path)).Scan(&f.ID, &f.HostID, &f.Path)
	if err != nil {
		return nil, notFound("folder by path", err)
	}
	return &f, nil
}

// Identifier operations

func (r *Repository) IdentifierByURI(ctx context.Context, hostID, uri string) (*records.Identifier, error) {
	var i records.Identifier
	err := r.db.QueryRowContext(ctx, `SELECT id, host_id, uri FROM identifier WHERE host_id = ? AND uri = ?`,
		hostID, uri).Scan(&i.ID, &i.HostID, &i.URI)
	if err != nil {
		return nil, notFound("identifier by uri", err)
	}
	return &i, nil
}

// Category operations

const selectCategory = `SELECT id, category_key, category_velocity_var_name, name FROM category`

func (r *Repository) CategoryByID(ctx context.Context, id string, p records.Principal) (*records.Category, error) {
	return r.category(ctx, "category by id", selectCategory+` WHERE id = ?`, id)
}

func (r *Repository) CategoryByKey(ctx context.Context, key string, p records.Principal) (*records.Category, error) {
	return r.category(ctx, "category by key", selectCategory+` WHERE category_key = ? LIMIT 1`, key)
}

func (r *Repository) CategoryByVariable(ctx context.Context, variable string, p records.Principal) (*records.Category, error) {
	return r.category(ctx, "category by variable", selectCategory+` WHERE category_velocity_var_name = ? LIMIT 1`, variable)
}

func (r *Repository) category(ctx context.Context, operation, query, arg string) (*records.Category, error) {
	var c records.Category
	if err := r.db.QueryRowContext(ctx, query, arg).Scan(&c.ID, &c.Key, &c.Variable, &c.Name); err != nil {
		return nil, notFound(operation, err)
	}
	return &c, nil
}
