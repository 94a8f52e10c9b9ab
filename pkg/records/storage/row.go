package storage

import (
	"context"
	"time"

	"github.com/tendant/simple-records/pkg/records"
)

// Row is one stored revision. Columns holds pooled column values keyed by
// column name; Document holds the serialized record. Either may be empty
// depending on the representation it was written with.
type Row struct {
	Inode         string
	Identifier    string
	ContentTypeID string
	LanguageID    int64
	HostID        string
	FolderID      string
	Properties    map[string]string
	Columns       map[string]any
	Document      []byte
	ModDate       time.Time
}

// Backend persists rows. Missing rows return records.ErrRecordNotFound.
type Backend interface {
	Capability

	SaveRow(ctx context.Context, row *Row) error
	LoadRow(ctx context.Context, inode string) (*Row, error)
	// LatestRow returns the most recently written row for the identifier
	// and language.
	LatestRow(ctx context.Context, identifier string, languageID int64) (*Row, error)

	// SaveRelationships replaces the related identifiers of every entry in
	// set. An entry with no related identifiers clears the relationship.
	SaveRelationships(ctx context.Context, identifier string, set *records.RelationshipSet) error
	// Related returns the identifiers related to identifier through the
	// relationship, on the parent or child side.
	Related(ctx context.Context, identifier, relationshipID string, parent bool) ([]string, error)
}
