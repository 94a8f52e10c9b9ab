// Package hydrate provides the resolvers that derive display attributes of
// file and image fields from their stored identifier.
package hydrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/tendant/simple-records/pkg/records"
	"github.com/tendant/simple-records/pkg/records/fieldvalue"
)

// TempPrefix marks identifiers of uploads that are not yet content.
const TempPrefix = "tmp::"

// ErrNoMetadata is returned when no source knows the identifier.
var ErrNoMetadata = errors.New("no metadata for resource")

// Metadata describes the binary behind a file or image field.
type Metadata struct {
	Name        string
	ContentType string
	Size        int64
	ModDate     time.Time
	ETag        string
	Temp        bool
}

// IsImage reports whether the content type is an image type.
func (m Metadata) IsImage() bool {
	return strings.HasPrefix(m.ContentType, "image/")
}

// Map returns the attribute form stored in documents.
func (m Metadata) Map() map[string]any {
	out := map[string]any{
		"name":        m.Name,
		"contentType": m.ContentType,
		"size":        m.Size,
		"isImage":     m.IsImage(),
	}
	if !m.ModDate.IsZero() {
		out["modDate"] = m.ModDate.UTC().Format(time.RFC3339)
	}
	if m.ETag != "" {
		out["etag"] = m.ETag
	}
	if m.Temp {
		out["temp"] = true
	}
	return out
}

// MetadataSource looks up the metadata of a resource identifier.
type MetadataSource interface {
	Metadata(ctx context.Context, id string) (*Metadata, error)
}

// MetadataSourceFunc adapts a function to MetadataSource.
type MetadataSourceFunc func(ctx context.Context, id string) (*Metadata, error)

func (f MetadataSourceFunc) Metadata(ctx context.Context, id string) (*Metadata, error) {
	return f(ctx, id)
}

// MetadataResolver computes the "metadata" attribute. Temporary uploads are
// read from the temp source; everything else from the content source.
type MetadataResolver struct {
	source     MetadataSource
	temp       records.TempResourceStore
	tempSource MetadataSource
}

// MetadataOption configures a MetadataResolver.
type MetadataOption func(*MetadataResolver)

// WithTempResources routes identifiers known to store, or carrying
// TempPrefix, to source.
func WithTempResources(store records.TempResourceStore, source MetadataSource) MetadataOption {
	return func(r *MetadataResolver) {
		r.temp = store
		r.tempSource = source
	}
}

// NewMetadataResolver creates a resolver over source.
func NewMetadataResolver(source MetadataSource, opts ...MetadataOption) *MetadataResolver {
	r := &MetadataResolver{source: source}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *MetadataResolver) isTemp(ctx context.Context, id string) bool {
	if strings.HasPrefix(id, TempPrefix) {
		return true
	}
	return r.temp != nil && r.temp.IsTempResource(ctx, id)
}

func (r *MetadataResolver) Resolve(ctx context.Context, primary any, attrs map[string]any) (any, error) {
	id, ok := primary.(string)
	if !ok || id == "" {
		return nil, fmt.Errorf("unexpected primary value %T", primary)
	}
	source := r.source
	temp := r.isTemp(ctx, id)
	if temp {
		source = r.tempSource
	}
	if source == nil {
		return nil, ErrNoMetadata
	}
	md, err := source.Metadata(ctx, id)
	if err != nil {
		return nil, err
	}
	if md == nil {
		return nil, ErrNoMetadata
	}
	md.Temp = temp
	return md.Map(), nil
}

// LinkResolver computes the "link" attribute: BaseURL/dA/{id}/{name},
// with the name taken from the metadata attribute when present.
type LinkResolver struct {
	BaseURL string
}

func (l LinkResolver) Resolve(ctx context.Context, primary any, attrs map[string]any) (any, error) {
	id, ok := primary.(string)
	if !ok || id == "" {
		return nil, fmt.Errorf("unexpected primary value %T", primary)
	}
	link := strings.TrimSuffix(l.BaseURL, "/") + "/dA/" + url.PathEscape(id)
	if md, ok := attrs["metadata"].(map[string]any); ok {
		if name, _ := md["name"].(string); name != "" {
			link += "/" + url.PathEscape(name)
		}
	}
	return link, nil
}

// NewCodec returns a codec hydrating file and image fields with the given
// resolvers. A nil metadata resolver leaves metadata out.
func NewCodec(metadata *MetadataResolver, link *LinkResolver, logger *slog.Logger) *fieldvalue.Codec {
	opts := []fieldvalue.Option{fieldvalue.WithLogger(logger)}
	if metadata != nil {
		opts = append(opts, fieldvalue.WithResolver(fieldvalue.ResolverMetadata, metadata))
	}
	if link != nil {
		opts = append(opts, fieldvalue.WithResolver(fieldvalue.ResolverLink, *link))
	}
	return fieldvalue.NewCodec(opts...)
}
