package records

import (
	"context"
)

// SchemaCatalog resolves content types. Unknown types return
// ErrContentTypeNotFound.
type SchemaCatalog interface {
	// ContentTypeByID looks a type up by its identifier (inode)
	ContentTypeByID(ctx context.Context, id string) (*ContentType, error)

	// ContentTypeByVariable looks a type up by its variable name
	ContentTypeByVariable(ctx context.Context, variable string) (*ContentType, error)
}

// RelationshipSource enumerates the relationships a content type takes part
// in, as parent or as child.
type RelationshipSource interface {
	RelationshipsByContentType(ctx context.Context, ct *ContentType) ([]Relationship, error)
}

// HostStore looks hosts up. Misses return ErrNotFound.
type HostStore interface {
	HostByID(ctx context.Context, id string) (*Host, error)
	HostByName(ctx context.Context, name string) (*Host, error)
}

// FolderStore looks folders up. Misses return ErrNotFound.
type FolderStore interface {
	FolderByID(ctx context.Context, id string) (*Folder, error)
	FolderByPath(ctx context.Context, hostID, path string) (*Folder, error)
}

// IdentifierStore looks asset identifiers up by host and URI.
type IdentifierStore interface {
	IdentifierByURI(ctx context.Context, hostID, uri string) (*Identifier, error)
}

// TempResourceStore knows about uploaded files that are not yet content.
type TempResourceStore interface {
	IsTempResource(ctx context.Context, id string) bool
}

// CategoryStore looks categories up by each of their three names.
type CategoryStore interface {
	CategoryByID(ctx context.Context, id string, p Principal) (*Category, error)
	CategoryByKey(ctx context.Context, key string, p Principal) (*Category, error)
	CategoryByVariable(ctx context.Context, variable string, p Principal) (*Category, error)
}

// ContentFinder returns the most recent stored record for an identifier
// and language, or ErrRecordNotFound.
type ContentFinder interface {
	FindByIdentifier(ctx context.Context, identifier string, languageID int64) (*Record, error)
}

// ContentSearcher filters stored records for relationship queries. The
// query is either a comma separated identifier list or a filter expression.
type ContentSearcher interface {
	FilterRelated(ctx context.Context, languageID int64, query string) ([]string, error)
}

// ReferenceStores groups the reference lookups used while populating.
type ReferenceStores struct {
	Hosts       HostStore
	Folders     FolderStore
	Identifiers IdentifierStore
}
