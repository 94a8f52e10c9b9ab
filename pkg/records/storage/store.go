// Package storage decides how records are physically written and reads them
// back from whichever representation a row carries.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-records/pkg/records"
	"github.com/tendant/simple-records/pkg/records/document"
	"github.com/tendant/simple-records/pkg/records/fieldvalue"
)

// Store writes records to a Backend using the representation chosen for
// each call. It implements records.ContentFinder.
type Store struct {
	backend Backend
	flags   FlagSource
	codec   *fieldvalue.Codec
	catalog records.SchemaCatalog
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithFlagSource sets where persistence flags are read from on every write.
func WithFlagSource(f FlagSource) Option {
	return func(s *Store) {
		s.flags = f
	}
}

// WithCodec sets the codec used to encode columns and hydrate documents.
func WithCodec(c *fieldvalue.Codec) Option {
	return func(s *Store) {
		s.codec = c
	}
}

// WithCatalog sets the catalog used to bind loaded records to their type.
func WithCatalog(c records.SchemaCatalog) Option {
	return func(s *Store) {
		s.catalog = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// NewStore creates a store over backend.
func NewStore(backend Backend, opts ...Option) (*Store, error) {
	if backend == nil {
		return nil, errors.New("storage backend is required")
	}
	s := &Store{backend: backend}
	for _, opt := range opts {
		opt(s)
	}
	if s.flags == nil {
		s.flags = StaticFlags(Flags{})
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.codec == nil {
		s.codec = fieldvalue.NewCodec(fieldvalue.WithLogger(s.logger))
	}
	return s, nil
}

// Result describes a completed write.
type Result struct {
	Identifier     string
	Inode          string
	Representation Representation
}

// Representation returns the representation the next write would use.
func (s *Store) Representation() Representation {
	return StrategyFor(s.flags(), s.backend)
}

// Save writes rec as a new revision. Missing identifiers and inodes are
// generated and written back to rec.
func (s *Store) Save(ctx context.Context, rec *records.Record) (Result, error) {
	if rec == nil {
		return Result{}, errors.New("nil record")
	}
	ct, err := s.bind(ctx, rec)
	if err != nil {
		return Result{}, err
	}

	rep := s.Representation()

	if rec.Identifier == "" {
		rec.Identifier = uuid.NewString()
	}
	if rec.Inode == "" {
		rec.Inode = uuid.NewString()
	}

	row := &Row{
		Inode:         rec.Inode,
		Identifier:    rec.Identifier,
		ContentTypeID: rec.ContentTypeID,
		LanguageID:    rec.LanguageID,
		HostID:        rec.HostID,
		FolderID:      rec.FolderID,
		Properties:    rec.Properties(),
		ModDate:       time.Now().UTC(),
	}

	if rep.WritesColumns() {
		if ct == nil {
			return Result{}, fmt.Errorf("record %s: content type required for column storage", rec.Inode)
		}
		row.Columns, err = s.encodeColumns(ct, rec)
		if err != nil {
			return Result{}, err
		}
	}
	if rep.WritesDocument() {
		row.Document, err = document.Marshal(s.hydrate(ctx, rec))
		if err != nil {
			return Result{}, fmt.Errorf("record %s: %w", rec.Inode, err)
		}
	}

	if err := s.backend.SaveRow(ctx, row); err != nil {
		return Result{}, fmt.Errorf("failed to save record %s: %w", rec.Inode, err)
	}
	if rec.Relationships != nil {
		if err := s.backend.SaveRelationships(ctx, rec.Identifier, rec.Relationships); err != nil {
			return Result{}, fmt.Errorf("failed to save relationships of %s: %w", rec.Identifier, err)
		}
	}

	s.logger.Debug("record saved", "identifier", rec.Identifier, "inode", rec.Inode,
		"representation", rep.String())
	return Result{Identifier: rec.Identifier, Inode: rec.Inode, Representation: rep}, nil
}

// Load reads the revision stored under inode.
func (s *Store) Load(ctx context.Context, inode string) (*records.Record, error) {
	row, err := s.backend.LoadRow(ctx, inode)
	if err != nil {
		return nil, err
	}
	return s.fromRow(ctx, row)
}

// FindByIdentifier returns the latest revision for identifier and language.
func (s *Store) FindByIdentifier(ctx context.Context, identifier string, languageID int64) (*records.Record, error) {
	row, err := s.backend.LatestRow(ctx, identifier, languageID)
	if err != nil {
		return nil, err
	}
	return s.fromRow(ctx, row)
}

// Related returns identifiers stored for one side of a relationship.
func (s *Store) Related(ctx context.Context, identifier, relationshipID string, parent bool) ([]string, error) {
	return s.backend.Related(ctx, identifier, relationshipID, parent)
}

func (s *Store) bind(ctx context.Context, rec *records.Record) (*records.ContentType, error) {
	if ct := rec.ContentType(); ct != nil {
		return ct, nil
	}
	if s.catalog == nil || rec.ContentTypeID == "" {
		return nil, nil
	}
	ct, err := s.catalog.ContentTypeByID(ctx, rec.ContentTypeID)
	if errors.Is(err, records.ErrContentTypeNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.SetContentType(ct)
	return ct, nil
}

func (s *Store) hydrate(ctx context.Context, rec *records.Record) *records.Record {
	out := rec.Clone()
	for name, v := range rec.Values() {
		out.Set(name, s.codec.Hydrate(ctx, v))
	}
	return out
}

func (s *Store) encodeColumns(ct *records.ContentType, rec *records.Record) (map[string]any, error) {
	layout, err := LayoutFor(ct)
	if err != nil {
		return nil, err
	}
	cols := make(map[string]any, len(layout))
	for variable, col := range layout {
		v, ok := rec.Value(variable)
		if !ok {
			continue
		}
		cols[col] = s.codec.Encode(v)
	}
	return cols, nil
}

// fromRow prefers the document. A corrupt document is an error, never a
// fallback to columns.
func (s *Store) fromRow(ctx context.Context, row *Row) (*records.Record, error) {
	if len(row.Document) > 0 {
		rec, err := document.Unmarshal(row.Document)
		if err != nil {
			s.logger.Error("stored document is corrupt", "inode", row.Inode, "err", err)
			return nil, err
		}
		if _, err := s.bind(ctx, rec); err != nil {
			return nil, err
		}
		return rec, nil
	}

	rec := records.NewRecord()
	rec.Inode = row.Inode
	rec.Identifier = row.Identifier
	rec.ContentTypeID = row.ContentTypeID
	rec.LanguageID = row.LanguageID
	rec.HostID = row.HostID
	rec.FolderID = row.FolderID
	for k, v := range row.Properties {
		rec.SetProperty(k, v)
	}

	ct, err := s.bind(ctx, rec)
	if err != nil {
		return nil, err
	}
	if ct == nil {
		return nil, fmt.Errorf("record %s: content type %q unknown, columns cannot be decoded",
			row.Inode, row.ContentTypeID)
	}
	layout, err := LayoutFor(ct)
	if err != nil {
		return nil, err
	}
	for _, f := range ct.Fields {
		raw, ok := row.Columns[layout[f.Variable]]
		if f.Kind == fieldvalue.KindHostFolder {
			raw, ok = hostFolderToken(row), true
		}
		if !ok || raw == nil {
			continue
		}
		v, err := s.codec.Decode(f.Descriptor(), raw)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", row.Inode, err)
		}
		rec.Set(f.Variable, v)
	}
	return rec, nil
}

func hostFolderToken(row *Row) any {
	if row.FolderID != "" {
		return row.FolderID
	}
	if row.HostID != "" {
		return row.HostID
	}
	return nil
}
