package memory

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/tendant/simple-records/pkg/records"
)

// Seeding operations

// AddHost stores a host.
func (r *Repository) AddHost(h records.Host) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hosts[h.ID] = &h
}

// AddFolder stores a folder. The path is normalized.
func (r *Repository) AddFolder(f records.Folder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f.Path = records.NormalizeFolderPath(f.Path)
	r.folders[f.ID] = &f
}

// AddIdentifier stores an asset identifier.
func (r *Repository) AddIdentifier(i records.Identifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.identifiers[i.HostID+":"+i.URI] = &i
}

// AddCategory stores a category.
func (r *Repository) AddCategory(c records.Category) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.categories[c.ID] = &c
}

// AddTempResource registers an uploaded file that is not yet content.
func (r *Repository) AddTempResource(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.temp[id] = true
}

// Host operations

func (r *Repository) HostByID(ctx context.Context, id string) (*records.Host, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, exists := r.hosts[id]
	if !exists {
		return nil, records.ErrNotFound
	}
	hostCopy := *h
	return &hostCopy, nil
}

func (r *Repository) HostByName(ctx context.Context, name string) (*records.Host, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, h := range r.hosts {
		if strings.EqualFold(h.Name, name) {
			hostCopy := *h
			return &hostCopy, nil
		}
	}
	return nil, records.ErrNotFound
}

// Folder operations

func (r *Repository) FolderByID(ctx context.Context, id string) (*records.Folder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, exists := r.folders[id]
	if !exists {
		return nil, records.ErrNotFound
	}
	folderCopy := *f
	return &folderCopy, nil
}

func (r *Repository) FolderByPath(ctx context.Context, hostID, path string) (*records.Folder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	path = records.NormalizeFolderPath(path)
	for _, f := range r.folders {
		if f.HostID == hostID && f.Path == path {
			folderCopy := *f
			return &folderCopy, nil
		}
	}
	return nil, records.ErrNotFound
}

// Identifier operations

func (r *Repository) IdentifierByURI(ctx context.Context, hostID, uri string) (*records.Identifier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, exists := r.identifiers[hostID+":"+uri]
	if !exists {
		return nil, records.ErrNotFound
	}
	identCopy := *i
	return &identCopy, nil
}

func (r *Repository) IsTempResource(ctx context.Context, id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.temp[id]
}

// Category operations

func (r *Repository) CategoryByID(ctx context.Context, id string, p records.Principal) (*records.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, exists := r.categories[id]
	if !exists {
		return nil, records.ErrNotFound
	}
	catCopy := *c
	return &catCopy, nil
}

func (r *Repository) CategoryByKey(ctx context.Context, key string, p records.Principal) (*records.Category, error) {
	return r.findCategory(func(c *records.Category) bool { return c.Key == key })
}

func (r *Repository) CategoryByVariable(ctx context.Context, variable string, p records.Principal) (*records.Category, error) {
	return r.findCategory(func(c *records.Category) bool { return c.Variable == variable })
}

func (r *Repository) findCategory(match func(*records.Category) bool) (*records.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.categories {
		if match(c) {
			catCopy := *c
			return &catCopy, nil
		}
	}
	return nil, records.ErrNotFound
}

func itoa(i int64) string {
	return strconv.FormatInt(i, 10)
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	default:
		return fmt.Sprint(v)
	}
}
