package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/tendant/simple-records/pkg/records"
)

// Seeding operations

// AddHost stores or renames a host.
func (r *Repository) AddHost(ctx context.Context, h records.Host) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO host (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`, h.ID, h.Name)
	if err != nil {
		return r.handlePostgresError("add host", err)
	}
	return nil
}

// AddFolder stores a folder. The path is normalized.
func (r *Repository) AddFolder(ctx context.Context, f records.Folder) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO folder (id, host_id, path) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET host_id = EXCLUDED.host_id, path = EXCLUDED.path`,
		f.ID, f.HostID, records.NormalizeFolderPath(f.Path))
	if err != nil {
		return r.handlePostgresError("add folder", err)
	}
	return nil
}

// AddIdentifier stores an asset identifier.
func (r *Repository) AddIdentifier(ctx context.Context, i records.Identifier) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO identifier (id, host_id, uri) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET host_id = EXCLUDED.host_id, uri = EXCLUDED.uri`,
		i.ID, i.HostID, i.URI)
	if err != nil {
		return r.handlePostgresError("add identifier", err)
	}
	return nil
}

// AddCategory stores a category.
func (r *Repository) AddCategory(ctx context.Context, c records.Category) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO category (id, category_key, category_velocity_var_name, name) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET category_key = EXCLUDED.category_key,
			category_velocity_var_name = EXCLUDED.category_velocity_var_name, name = EXCLUDED.name`,
		c.ID, c.Key, c.Variable, c.Name)
	if err != nil {
		return r.handlePostgresError("add category", err)
	}
	return nil
}

// notFound maps pgx.ErrNoRows onto records.ErrNotFound.
func (r *Repository) notFound(operation string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return records.ErrNotFound
	}
	return r.handlePostgresError(operation, err)
}

// Host operations

func (r *Repository) HostByID(ctx context.Context, id string) (*records.Host, error) {
	var h records.Host
	err := r.db.QueryRow(ctx, `SELECT id, name FROM host WHERE id = $1`, id).Scan(&h.ID, &h.Name)
	if err != nil {
		return nil, r.notFound("host by id", err)
	}
	return &h, nil
}

func (r *Repository) HostByName(ctx context.Context, name string) (*records.Host, error) {
	var h records.Host
	err := r.db.QueryRow(ctx, `SELECT id, name FROM host WHERE lower(name) = lower($1)`, name).Scan(&h.ID, &h.Name)
	if err != nil {
		return nil, r.notFound("host by name", err)
	}
	return &h, nil
}

// Folder operations

func (r *Repository) FolderByID(ctx context.Context, id string) (*records.Folder, error) {
	var f records.Folder
	err := r.db.QueryRow(ctx, `SELECT id, host_id, path FROM folder WHERE id = $1`, id).
		Scan(&f.ID, &f.HostID, &f.Path)
	if err != nil {
		return nil, r.notFound("folder by id", err)
	}
	return &f, nil
}

func (r *Repository) FolderByPath(ctx context.Context, hostID, path string) (*records.Folder, error) {
	var f records.Folder
	err := r.db.QueryRow(ctx, `SELECT id, host_id, path FROM folder WHERE host_id = $1 AND path = $2`,
		hostID, records.NormalizeFolderPath(path)).Scan(&f.ID, &f.HostID, &f.Path)
	if err != nil {
		return nil, r.notFound("folder by path", err)
	}
	return &f, nil
}

// Identifier operations

func (r *Repository) IdentifierByURI(ctx context.Context, hostID, uri string) (*records.Identifier, error) {
	var i records.Identifier
	err := r.db.QueryRow(ctx, `SELECT id, host_id, uri FROM identifier WHERE host_id = $1 AND uri = $2`,
		hostID, uri).Scan(&i.ID, &i.HostID, &i.URI)
	if err != nil {
		return nil, r.notFound("identifier by uri", err)
	}
	return &i, nil
}

// Category operations

const selectCategory = `SELECT id, COALESCE(category_key, ''), COALESCE(category_velocity_var_name, ''), COALESCE(name, '') FROM category`

func (r *Repository) CategoryByID(ctx context.Context, id string, p records.Principal) (*records.Category, error) {
	return r.category(ctx, "category by id", selectCategory+` WHERE id = $1`, id)
}

func (r *Repository) CategoryByKey(ctx context.Context, key string, p records.Principal) (*records.Category, error) {
	return r.category(ctx, "category by key", selectCategory+` WHERE category_key = $1 LIMIT 1`, key)
}

func (r *Repository) CategoryByVariable(ctx context.Context, variable string, p records.Principal) (*records.Category, error) {
	return r.category(ctx, "category by variable", selectCategory+` WHERE category_velocity_var_name = $1 LIMIT 1`, variable)
}

func (r *Repository) category(ctx context.Context, operation, query, arg string) (*records.Category, error) {
	var c records.Category
	if err := r.db.QueryRow(ctx, query, arg).Scan(&c.ID, &c.Key, &c.Variable, &c.Name); err != nil {
		return nil, r.notFound(operation, err)
	}
	return &c, nil
}
