package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/tendant/simple-records/pkg/records"
	"github.com/tendant/simple-records/pkg/records/storage"
)

// Repository implements storage.Backend, the reference stores and
// records.ContentSearcher using in-memory storage
type Repository struct {
	mu            sync.RWMutex
	documents     bool
	rows          map[string]*storage.Row        // inode -> row
	revisions     map[string][]string             // "identifier:lang" -> inodes, oldest first
	tree          []treeEdge

	hosts       map[string]*records.Host
	folders     map[string]*records.Folder
	identifiers map[string]*records.Identifier // "hostID:uri" -> identifier
	categories  map[string]*records.Category
	temp        map[string]bool
}

// Option configures a Repository.
type Option func(*Repository)

// WithDocumentColumns sets whether the repository reports document column
// support. It does by default.
func WithDocumentColumns(supported bool) Option {
	return func(r *Repository) {
		r.documents = supported
	}
}

// New creates a new in-memory repository
func New(opts ...Option) *Repository {
	r := &Repository{
		documents:     true,
		rows:          make(map[string]*storage.Row),
		revisions:     make(map[string][]string),
		hosts:         make(map[string]*records.Host),
		folders:       make(map[string]*records.Folder),
		identifiers:   make(map[string]*records.Identifier),
		categories:    make(map[string]*records.Category),
		temp:          make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func revisionKey(identifier string, languageID int64) string {
	return identifier + ":" + itoa(languageID)
}

// treeEdge is one parent/child link, readable from either end.
type treeEdge struct {
	parent       string
	child        string
	relationType string
	order        int
}

func (e treeEdge) end(parent bool) string {
	if parent {
		return e.parent
	}
	return e.child
}

// SupportsDocumentColumns implements storage.Capability.
func (r *Repository) SupportsDocumentColumns() bool {
	return r.documents
}

// Row operations

func (r *Repository) SaveRow(ctx context.Context, row *storage.Row) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rowCopy := copyRow(row)
	if _, exists := r.rows[row.Inode]; !exists {
		key := revisionKey(row.Identifier, row.LanguageID)
		r.revisions[key] = append(r.revisions[key], row.Inode)
	}
	r.rows[row.Inode] = rowCopy
	return nil
}

func (r *Repository) LoadRow(ctx context.Context, inode string) (*storage.Row, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row, exists := r.rows[inode]
	if !exists {
		return nil, records.ErrRecordNotFound
	}
	return copyRow(row), nil
}

func (r *Repository) LatestRow(ctx context.Context, identifier string, languageID int64) (*storage.Row, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inodes := r.revisions[revisionKey(identifier, languageID)]
	if len(inodes) == 0 {
		return nil, records.ErrRecordNotFound
	}
	return copyRow(r.rows[inodes[len(inodes)-1]]), nil
}

// Relationship operations

func (r *Repository) SaveRelationships(ctx context.Context, identifier string, set *records.RelationshipSet) error {
	if set == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, entry := range set.Records {
		relType := entry.Relationship.ID
		r.tree = slices.DeleteFunc(r.tree, func(e treeEdge) bool {
			return e.relationType == relType && e.end(entry.IsParent) == identifier
		})
		for i, related := range entry.Related {
			edge := treeEdge{parent: related, child: identifier, relationType: relType, order: i}
			if entry.IsParent {
				edge.parent, edge.child = identifier, related
			}
			r.tree = slices.DeleteFunc(r.tree, func(e treeEdge) bool {
				return e.parent == edge.parent && e.child == edge.child && e.relationType == relType
			})
			r.tree = append(r.tree, edge)
		}
	}
	return nil
}

// Related returns the children of identifier when parent is set, its
// parents otherwise, in stored order.
func (r *Repository) Related(ctx context.Context, identifier, relationshipID string, parent bool) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var edges []treeEdge
	for _, e := range r.tree {
		if e.relationType == relationshipID && e.end(parent) == identifier {
			edges = append(edges, e)
		}
	}
	sort.SliceStable(edges, func(i, j int) bool { return edges[i].order < edges[j].order })

	related := []string{}
	for _, e := range edges {
		related = append(related, e.end(!parent))
	}
	return related, nil
}

// Search

// FilterRelated implements records.ContentSearcher. The query is either a
// comma separated identifier list or whitespace separated "key:value" terms
// matched against system keys (identifier, contentType, host, folder) and
// pooled columns. All terms must match.
func (r *Repository) FilterRelated(ctx context.Context, languageID int64, query string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query = strings.TrimSpace(query)
	var out []string
	if !strings.Contains(query, ":") {
		for _, id := range strings.Split(query, ",") {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if len(r.revisions[revisionKey(id, languageID)]) > 0 {
				out = append(out, id)
			}
		}
		return out, nil
	}

	terms := strings.Fields(query)
	for _, inodes := range r.revisions {
		row := r.rows[inodes[len(inodes)-1]]
		if row.LanguageID != languageID {
			continue
		}
		if matchesAll(row, terms) {
			out = append(out, row.Identifier)
		}
	}
	sort.Strings(out)
	return out, nil
}

func matchesAll(row *storage.Row, terms []string) bool {
	for _, term := range terms {
		name, value, ok := strings.Cut(strings.TrimPrefix(term, "+"), ":")
		if !ok {
			return false
		}
		value = strings.Trim(value, `"`)
		var got string
		switch name {
		case "identifier":
			got = row.Identifier
		case "contentType":
			got = row.ContentTypeID
		case "host":
			got = row.HostID
		case "folder":
			got = row.FolderID
		default:
			v, ok := row.Columns[name]
			if !ok || v == nil {
				return false
			}
			got = toString(v)
		}
		if !strings.EqualFold(got, value) {
			return false
		}
	}
	return true
}

func copyRow(row *storage.Row) *storage.Row {
	rowCopy := *row
	rowCopy.Properties = maps.Clone(row.Properties)
	rowCopy.Columns = maps.Clone(row.Columns)
	rowCopy.Document = append([]byte(nil), row.Document...)
	return &rowCopy
}
