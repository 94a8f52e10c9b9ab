package records

import (
	"context"
	"errors"
	"strings"
)

// assetPrefix marks a root-relative "//hostname/uri" asset reference.
const assetPrefix = "//"

func isAssetReference(v any) (string, bool) {
	s, ok := v.(string)
	if !ok || !strings.HasPrefix(s, assetPrefix) {
		return "", false
	}
	return s, true
}

// resolveAssetReference maps "//hostname/uri" onto the identifier of the
// asset. Any miss is a ReferenceResolutionError.
func (b *Builder) resolveAssetReference(ctx context.Context, field FieldDefinition, ref string) (string, error) {
	fail := func(err error) (string, error) {
		return "", &ReferenceResolutionError{Field: field.Variable, Reference: ref, Err: err}
	}

	rest := strings.TrimPrefix(ref, assetPrefix)
	slash := strings.Index(rest, "/")
	if slash <= 0 {
		return fail(errors.New("expected //hostname/uri"))
	}
	hostname, uri := rest[:slash], rest[slash:]

	if b.refs.Hosts == nil || b.refs.Identifiers == nil {
		return fail(errors.New("no reference stores configured"))
	}
	host, err := b.refs.Hosts.HostByName(ctx, hostname)
	if err != nil {
		return fail(err)
	}
	if host.ID == "" {
		return fail(ErrNotFound)
	}
	ident, err := b.refs.Identifiers.IdentifierByURI(ctx, host.ID, uri)
	if err != nil {
		return fail(err)
	}
	if ident.ID == "" {
		return fail(ErrNotFound)
	}
	return ident.ID, nil
}
