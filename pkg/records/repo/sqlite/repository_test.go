package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-records/pkg/records"
	"github.com/tendant/simple-records/pkg/records/catalog"
	"github.com/tendant/simple-records/pkg/records/fieldvalue"
	"github.com/tendant/simple-records/pkg/records/repo/sqlite"
	"github.com/tendant/simple-records/pkg/records/storage"
)

func openTestRepository(t *testing.T) *sqlite.Repository {
	t.Helper()
	repo, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestSQLiteRepository_Rows(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()

	assert.False(t, repo.SupportsDocumentColumns())

	for _, inode := range []string{"rev-1", "rev-2"} {
		require.NoError(t, repo.SaveRow(ctx, &storage.Row{
			Inode:         inode,
			Identifier:    "abc-123",
			ContentTypeID: "type-news",
			LanguageID:    1,
			Properties:    map[string]string{"wfActionAssign": "editor"},
			Columns:       map[string]any{"text1": "hello-" + inode, "bool1": true},
			ModDate:       time.Now(),
		}))
	}

	row, err := repo.LoadRow(ctx, "rev-1")
	require.NoError(t, err)
	assert.Equal(t, "hello-rev-1", row.Columns["text1"])
	assert.Equal(t, int64(1), row.Columns["bool1"])
	assert.Equal(t, "editor", row.Properties["wfActionAssign"])
	assert.NotContains(t, row.Columns, "text2")

	latest, err := repo.LatestRow(ctx, "abc-123", 1)
	require.NoError(t, err)
	assert.Equal(t, "rev-2", latest.Inode)

	_, err = repo.LatestRow(ctx, "abc-123", 2)
	assert.ErrorIs(t, err, records.ErrRecordNotFound)

	err = repo.SaveRow(ctx, &storage.Row{Inode: "rev-3", Identifier: "x", Document: []byte("{}")})
	assert.Error(t, err, "documents are rejected")

	t.Run("FilterRelated", func(t *testing.T) {
		ids, err := repo.FilterRelated(ctx, 1, "+contentType:TYPE-NEWS +text1:hello rev-2")
		assert.Error(t, err, "bare words are not terms")
		assert.Nil(t, ids)

		ids, err = repo.FilterRelated(ctx, 1, "+text1:HELLO-rev-1")
		require.NoError(t, err)
		assert.Empty(t, ids, "only the latest revision matches")

		ids, err = repo.FilterRelated(ctx, 1, "+text1:hello-rev-2")
		require.NoError(t, err)
		assert.Equal(t, []string{"abc-123"}, ids)

		ids, err = repo.FilterRelated(ctx, 1, "+contentType:TYPE-NEWS")
		require.NoError(t, err)
		assert.Equal(t, []string{"abc-123"}, ids)

		ids, err = repo.FilterRelated(ctx, 1, "abc-123, missing")
		require.NoError(t, err)
		assert.Equal(t, []string{"abc-123"}, ids)

		_, err = repo.FilterRelated(ctx, 1, "+title:hello")
		assert.Error(t, err)
	})
}

func TestSQLiteRepository_Relationships(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()
	rel := records.Relationship{ID: "rel-news-comment"}

	require.NoError(t, repo.SaveRelationships(ctx, "comment-1", &records.RelationshipSet{
		Records: []records.RelationshipRecords{{Relationship: rel, IsParent: false, Related: []string{"news-1"}}},
	}))

	children, err := repo.Related(ctx, "news-1", rel.ID, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"comment-1"}, children)

	require.NoError(t, repo.SaveRelationships(ctx, "comment-1", &records.RelationshipSet{
		Records: []records.RelationshipRecords{{Relationship: rel, Related: []string{}}},
	}))
	parents, err := repo.Related(ctx, "comment-1", rel.ID, false)
	require.NoError(t, err)
	assert.Empty(t, parents)
}

func TestSQLiteRepository_References(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.AddHost(ctx, records.Host{ID: "host-a", Name: "demo.example.com"}))
	require.NoError(t, repo.AddFolder(ctx, records.Folder{ID: "folder-1", HostID: "host-a", Path: "/images"}))
	require.NoError(t, repo.AddIdentifier(ctx, records.Identifier{ID: "ident-1", HostID: "host-a", URI: "/images/logo.png"}))
	require.NoError(t, repo.AddCategory(ctx, records.Category{ID: "cat-1", Key: "sports", Variable: "sportsVar"}))

	h, err := repo.HostByName(ctx, "Demo.Example.com")
	require.NoError(t, err)
	assert.Equal(t, "host-a", h.ID)

	f, err := repo.FolderByPath(ctx, "host-a", "images/")
	require.NoError(t, err)
	assert.Equal(t, "/images/", f.Path)

	_, err = repo.FolderByID(ctx, "missing")
	assert.ErrorIs(t, err, records.ErrNotFound)

	i, err := repo.IdentifierByURI(ctx, "host-a", "/images/logo.png")
	require.NoError(t, err)
	assert.Equal(t, "ident-1", i.ID)

	c, err := repo.CategoryByKey(ctx, "sports", records.Principal{})
	require.NoError(t, err)
	assert.Equal(t, "cat-1", c.ID)
}

func TestSQLiteRepository_StoreRoundTrip(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()

	eventType := &records.ContentType{
		ID:       "type-event",
		Variable: "event",
		Fields: []records.FieldDefinition{
			{Variable: "title", Kind: fieldvalue.KindText},
			{Variable: "seats", Kind: fieldvalue.KindGeneric, DataType: fieldvalue.DataTypeInteger},
			{Variable: "open", Kind: fieldvalue.KindGeneric, DataType: fieldvalue.DataTypeBool},
			{Variable: "starts", Kind: fieldvalue.KindGeneric, DataType: fieldvalue.DataTypeDate},
		},
	}
	store, err := storage.NewStore(repo,
		storage.WithCatalog(catalog.New(catalog.Static(eventType))),
		storage.WithFlagSource(storage.StaticFlags(storage.Flags{})))
	require.NoError(t, err)

	codec := fieldvalue.NewCodec()
	rec := records.NewRecord()
	rec.SetContentType(eventType)
	rec.LanguageID = 1
	starts := time.Date(2025, 5, 1, 18, 30, 0, 0, time.UTC)
	for name, raw := range map[string]any{"title": "Launch", "seats": 120, "open": true, "starts": starts} {
		def, _ := eventType.Field(name)
		v, err := codec.Decode(def.Descriptor(), raw)
		require.NoError(t, err)
		rec.Set(name, v)
	}

	res, err := store.Save(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, storage.Columns, res.Representation)

	loaded, err := store.Load(ctx, res.Inode)
	require.NoError(t, err)
	for name, want := range map[string]any{"title": "Launch", "seats": int64(120), "open": true, "starts": starts} {
		v, ok := loaded.Value(name)
		require.True(t, ok, name)
		assert.Equal(t, want, v.Raw(), name)
	}
}
