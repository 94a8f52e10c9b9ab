package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/tendant/simple-records/pkg/records/fieldvalue"
)

// DefaultLanguageID is used when neither the map nor the builder options
// name a language.
const DefaultLanguageID int64 = 1

// Builder populates typed records from untyped field maps.
type Builder struct {
	catalog            SchemaCatalog
	codec              *fieldvalue.Codec
	refs               ReferenceStores
	finder             ContentFinder
	relationships      *RelationshipResolver
	defaultLanguageID  int64
	defaultIndexPolicy IndexPolicy
	logger             *slog.Logger
}

// Option represents a functional option for configuring the builder
type Option func(*Builder)

// WithCatalog sets the schema catalog
func WithCatalog(c SchemaCatalog) Option {
	return func(b *Builder) {
		b.catalog = c
	}
}

// WithCodec sets the field value codec
func WithCodec(c *fieldvalue.Codec) Option {
	return func(b *Builder) {
		b.codec = c
	}
}

// WithReferenceStores sets the host, folder and identifier stores
func WithReferenceStores(refs ReferenceStores) Option {
	return func(b *Builder) {
		b.refs = refs
	}
}

// WithContentFinder sets the lookup used to patch existing records
func WithContentFinder(f ContentFinder) Option {
	return func(b *Builder) {
		b.finder = f
	}
}

// WithRelationshipResolver sets the relationship resolver
func WithRelationshipResolver(r *RelationshipResolver) Option {
	return func(b *Builder) {
		b.relationships = r
	}
}

// WithDefaultLanguage sets the language used when the map names none
func WithDefaultLanguage(id int64) Option {
	return func(b *Builder) {
		b.defaultLanguageID = id
	}
}

// WithDefaultIndexPolicy sets the index policy fallback
func WithDefaultIndexPolicy(p IndexPolicy) Option {
	return func(b *Builder) {
		b.defaultIndexPolicy = p
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = l
	}
}

// NewBuilder creates a builder with the given options
func NewBuilder(options ...Option) (*Builder, error) {
	b := &Builder{
		defaultLanguageID:  DefaultLanguageID,
		defaultIndexPolicy: IndexPolicyDefer,
	}
	for _, option := range options {
		option(b)
	}
	if b.catalog == nil {
		return nil, fmt.Errorf("schema catalog is required")
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.codec == nil {
		b.codec = fieldvalue.NewCodec(fieldvalue.WithLogger(b.logger))
	}
	return b, nil
}

// Codec returns the codec the builder decodes with.
func (b *Builder) Codec() *fieldvalue.Codec {
	return b.codec
}

// Populate fills rec from fields and returns it. A nil rec starts a new
// record. Populate blocks on catalog and reference lookups.
func (b *Builder) Populate(ctx context.Context, rec *Record, fields map[string]any) (*Record, error) {
	if rec == nil {
		rec = NewRecord()
	}

	ct, err := b.resolveContentType(ctx, rec, fields)
	if err != nil {
		return nil, err
	}
	if ct != nil {
		rec.SetContentType(ct)

		rec.LanguageID, err = b.languageID(fields)
		if err != nil {
			return nil, &PopulateError{Op: "language", Key: KeyLanguageID, Err: err}
		}

		b.processIdentifier(ctx, rec, fields)
		processWorkflow(rec, fields)

		if b.relationships != nil {
			rec.Relationships = b.relationships.Resolve(ctx, ct, fields, rec)
		}

		if err := b.fillFields(ctx, rec, ct, fields); err != nil {
			return nil, err
		}
	}

	rec.IndexPolicy = RecoverIndexPolicy(ctx, fields, b.defaultIndexPolicy)
	return rec, nil
}

type typeCandidate struct {
	key    string
	value  string
	lookup func(context.Context, string) (*ContentType, error)
}

// resolveContentType prefers an explicit type inode, then a type name,
// then the type already bound to the record.
func (b *Builder) resolveContentType(ctx context.Context, rec *Record, fields map[string]any) (*ContentType, error) {
	byID, byVar := b.catalog.ContentTypeByID, b.catalog.ContentTypeByVariable

	candidates := []typeCandidate{
		{KeyContentTypeInode, stringValue(fields[KeyContentTypeInode]), byID},
		{KeyContentTypeName, stringValue(fields[KeyContentTypeName]), byVar},
		{KeyContentType, stringValue(fields[KeyContentType]), byVar},
		{KeyContentType, stringValue(fields[KeyContentType]), byID},
	}
	current := rec.ContentType()
	if current == nil {
		candidates = append(candidates, typeCandidate{"record", rec.ContentTypeID, byID})
	}

	var tried []string
	for _, c := range candidates {
		if c.value == "" {
			continue
		}
		ct, err := c.lookup(ctx, c.value)
		if err == nil && ct != nil && ct.ID != "" {
			return ct, nil
		}
		if err != nil && !errors.Is(err, ErrContentTypeNotFound) {
			return nil, &PopulateError{Op: "content type", Key: c.key, Err: err}
		}
		tried = append(tried, c.key+"="+c.value)
	}
	if current != nil {
		return current, nil
	}
	if len(fields) > 0 {
		return nil, &SchemaResolutionError{Tried: tried}
	}
	return nil, nil
}

func (b *Builder) languageID(fields map[string]any) (int64, error) {
	raw, ok := fields[KeyLanguageID]
	if !ok || raw == nil {
		return b.defaultLanguageID, nil
	}
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v == float64(int64(v)) {
			return int64(v), nil
		}
	case json.Number:
		return v.Int64()
	case string:
		return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	}
	return 0, fmt.Errorf("invalid language id %v", raw)
}

// processIdentifier turns the incoming map into a patch over the latest
// stored revision sharing the identifier and language.
func (b *Builder) processIdentifier(ctx context.Context, rec *Record, fields map[string]any) {
	raw, ok := fields[KeyIdentifier]
	if !ok || raw == nil {
		return
	}
	rec.Identifier = fmt.Sprint(raw)
	if b.finder == nil {
		return
	}
	existing, err := b.finder.FindByIdentifier(ctx, rec.Identifier, rec.LanguageID)
	if err != nil {
		b.logger.Debug("no existing content for identifier, creating new one",
			"identifier", rec.Identifier, "language_id", rec.LanguageID, "err", err)
		return
	}
	rec.CopyFrom(existing)
	rec.Inode = ""
}

func processWorkflow(rec *Record, fields map[string]any) {
	for _, key := range []string{KeyWorkflowAssign, KeyWorkflowComments} {
		if v, ok := fields[key]; ok {
			rec.SetProperty(key, fmt.Sprint(v))
		}
	}
}

// fillFields sets every declared field present in fields. Host-or-folder
// fields run last since file assets read fileName while resolving them.
func (b *Builder) fillFields(ctx context.Context, rec *Record, ct *ContentType, fields map[string]any) error {
	defs := ct.FieldsByVariable()

	keys := make([]string, 0, len(fields))
	for k := range fields {
		if _, ok := defs[k]; ok {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		hi := defs[keys[i]].Kind == fieldvalue.KindHostFolder
		hj := defs[keys[j]].Kind == fieldvalue.KindHostFolder
		if hi != hj {
			return hj
		}
		return keys[i] < keys[j]
	})

	for _, key := range keys {
		def, value := defs[key], fields[key]

		switch {
		case def.Kind == fieldvalue.KindHostFolder:
			b.resolveHostOrFolder(ctx, ct, rec, value)
			if v, err := b.codec.Decode(def.Descriptor(), value); err == nil {
				rec.Set(key, v)
			} else {
				b.logger.Warn("host or folder value ignored", "field", key, "err", err)
			}
			continue

		case def.Kind.IsReference():
			if ref, ok := isAssetReference(value); ok {
				id, err := b.resolveAssetReference(ctx, def, ref)
				if err != nil {
					return &PopulateError{Op: "reference", Key: key, Err: err}
				}
				value = id
			}
		}

		v, err := b.codec.Decode(def.Descriptor(), value)
		if err != nil {
			return &PopulateError{Op: "field", Key: key, Err: err}
		}
		rec.Set(key, v)
	}
	return nil
}

func stringValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	default:
		return strings.TrimSpace(fmt.Sprint(s))
	}
}
