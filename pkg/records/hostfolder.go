package records

import (
	"context"
	"fmt"
	"strings"

	"github.com/tendant/simple-records/pkg/records/fieldvalue"
)

type hostFolder struct {
	host   *Host
	folder *Folder
	path   string
}

// resolveHostOrFolder accepts a host id, a folder id, a host name or a
// "hostname:/folder/path" token. Misses are logged and leave the record
// without host and folder; they never fail the populate call.
func (b *Builder) resolveHostOrFolder(ctx context.Context, ct *ContentType, rec *Record, raw any) {
	if raw == nil {
		return
	}
	token := strings.TrimSpace(fmt.Sprint(raw))
	if token == "" {
		return
	}
	if b.refs.Hosts == nil {
		b.logger.Warn("host or folder unresolved", "value", token, "reason", "no host store")
		return
	}

	steps := []step[hostFolder]{
		{name: "host-by-id", run: func(ctx context.Context) (hostFolder, error) {
			h, err := b.refs.Hosts.HostByID(ctx, token)
			if err != nil {
				return hostFolder{}, err
			}
			return hostFolder{host: h}, nil
		}},
		{name: "folder-by-id", run: func(ctx context.Context) (hostFolder, error) {
			if b.refs.Folders == nil {
				return hostFolder{}, ErrNotFound
			}
			f, err := b.refs.Folders.FolderByID(ctx, token)
			if err != nil {
				return hostFolder{}, err
			}
			return hostFolder{host: &Host{ID: f.HostID}, folder: f}, nil
		}},
		{name: "host-by-name", run: func(ctx context.Context) (hostFolder, error) {
			h, err := b.refs.Hosts.HostByName(ctx, token)
			if err != nil {
				return hostFolder{}, err
			}
			return hostFolder{host: h}, nil
		}},
		{name: "host-and-path", run: func(ctx context.Context) (hostFolder, error) {
			return b.resolveHostAndPath(ctx, token)
		}},
	}

	found, via, ok := firstOf(ctx, b.logger, steps...)
	if !ok || found.host == nil || found.host.ID == "" {
		b.logger.Warn("host or folder unresolved", "value", token, "content_type", ct.Variable)
		return
	}

	rec.HostID = found.host.ID
	if found.folder != nil {
		rec.FolderID = found.folder.ID
	}
	b.logger.Debug("host or folder resolved", "value", token, "via", via,
		"host", rec.HostID, "folder", rec.FolderID)

	if via == "host-and-path" && ct.BaseType == BaseTypeFileAsset {
		b.reuseFileAssetIdentifier(ctx, rec, found)
	}
}

// resolveHostAndPath splits a compound token. The host must resolve before
// the folder path is looked up on it; both must exist.
func (b *Builder) resolveHostAndPath(ctx context.Context, token string) (hostFolder, error) {
	name, path, ok := strings.Cut(token, ":")
	if !ok || name == "" || path == "" || b.refs.Folders == nil {
		return hostFolder{}, ErrNotFound
	}
	h, err := b.refs.Hosts.HostByName(ctx, name)
	if err != nil {
		return hostFolder{}, err
	}
	f, err := b.refs.Folders.FolderByPath(ctx, h.ID, path)
	if err != nil {
		return hostFolder{}, err
	}
	return hostFolder{host: h, folder: f, path: path}, nil
}

// reuseFileAssetIdentifier points a file asset at the identifier that
// already lives at folder/fileName, when the record carries an identifier.
func (b *Builder) reuseFileAssetIdentifier(ctx context.Context, rec *Record, found hostFolder) {
	if b.refs.Identifiers == nil || rec.Identifier == "" {
		return
	}
	v, ok := rec.Value(KeyFileName)
	if !ok {
		return
	}
	fileName, _ := fieldvalue.String(v)
	if fileName == "" {
		return
	}
	path := found.path
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	ident, err := b.refs.Identifiers.IdentifierByURI(ctx, found.host.ID, path+fileName)
	if err != nil || ident.ID == "" {
		return
	}
	rec.Identifier = ident.ID
}
