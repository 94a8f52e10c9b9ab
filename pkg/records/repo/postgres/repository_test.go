package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-records/pkg/records"
	"github.com/tendant/simple-records/pkg/records/repo/postgres"
	"github.com/tendant/simple-records/pkg/records/storage"
)

// newTestRepository connects to TEST_DATABASE_URL inside a scratch schema.
func newTestRepository(t *testing.T) *postgres.Repository {
	t.Helper()

	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	admin, err := pgxpool.New(ctx, connString)
	require.NoError(t, err, "Failed to connect to test database")
	_, err = admin.Exec(ctx, "DROP SCHEMA IF EXISTS records_test CASCADE; CREATE SCHEMA records_test")
	require.NoError(t, err, "Failed to create test schema")
	admin.Close()

	cfg, err := pgxpool.ParseConfig(connString)
	require.NoError(t, err)
	cfg.ConnConfig.RuntimeParams["search_path"] = "records_test"
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, pool.Ping(ctx), "Failed to ping test database")
	t.Cleanup(pool.Close)

	repo := postgres.NewWithPool(pool)
	require.NoError(t, repo.Migrate(ctx))
	return repo
}

func TestPostgresRepository_Rows(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for _, inode := range []string{"rev-1", "rev-2"} {
		err := repo.SaveRow(ctx, &storage.Row{
			Inode:         inode,
			Identifier:    "abc-123",
			ContentTypeID: "type-news",
			LanguageID:    1,
			Properties:    map[string]string{"wfActionComments": "ok"},
			Columns:       map[string]any{"text1": inode, "integer1": int64(3)},
			Document:      []byte(`{"identifier":"abc-123","fields":{"title":{"type":"text","value":"Hello"}}}`),
		})
		require.NoError(t, err)
	}

	row, err := repo.LoadRow(ctx, "rev-1")
	require.NoError(t, err)
	assert.Equal(t, "abc-123", row.Identifier)
	assert.Equal(t, "rev-1", row.Columns["text1"])
	assert.Equal(t, int64(3), row.Columns["integer1"])
	assert.Equal(t, "ok", row.Properties["wfActionComments"])
	assert.JSONEq(t, `{"identifier":"abc-123","fields":{"title":{"type":"text","value":"Hello"}}}`, string(row.Document))

	latest, err := repo.LatestRow(ctx, "abc-123", 1)
	require.NoError(t, err)
	assert.Equal(t, "rev-2", latest.Inode)

	_, err = repo.LoadRow(ctx, "missing")
	assert.ErrorIs(t, err, records.ErrRecordNotFound)

	ids, err := repo.FilterRelated(ctx, 1, "+title:hello")
	require.NoError(t, err)
	assert.Equal(t, []string{"abc-123"}, ids)

	ids, err = repo.FilterRelated(ctx, 1, "abc-123,missing")
	require.NoError(t, err)
	assert.Equal(t, []string{"abc-123"}, ids)
}

func TestPostgresRepository_Relationships(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	rel := records.Relationship{ID: "rel-news-comment"}

	set := &records.RelationshipSet{Records: []records.RelationshipRecords{
		{Relationship: rel, IsParent: true, Related: []string{"c2", "c1"}},
	}}
	require.NoError(t, repo.SaveRelationships(ctx, "news-1", set))

	children, err := repo.Related(ctx, "news-1", rel.ID, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"c2", "c1"}, children)

	parents, err := repo.Related(ctx, "c1", rel.ID, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"news-1"}, parents)

	set.Records[0].Related = []string{}
	require.NoError(t, repo.SaveRelationships(ctx, "news-1", set))
	children, err = repo.Related(ctx, "news-1", rel.ID, true)
	require.NoError(t, err)
	assert.Empty(t, children)
}

func TestPostgresRepository_References(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.AddHost(ctx, records.Host{ID: "host-a", Name: "demo.example.com"}))
	require.NoError(t, repo.AddFolder(ctx, records.Folder{ID: "folder-1", HostID: "host-a", Path: "images"}))
	require.NoError(t, repo.AddIdentifier(ctx, records.Identifier{ID: "ident-1", HostID: "host-a", URI: "/images/logo.png"}))
	require.NoError(t, repo.AddCategory(ctx, records.Category{ID: "cat-1", Key: "sports", Variable: "sportsVar"}))

	h, err := repo.HostByName(ctx, "DEMO.example.com")
	require.NoError(t, err)
	assert.Equal(t, "host-a", h.ID)

	f, err := repo.FolderByPath(ctx, "host-a", "/images")
	require.NoError(t, err)
	assert.Equal(t, "folder-1", f.ID)

	i, err := repo.IdentifierByURI(ctx, "host-a", "/images/logo.png")
	require.NoError(t, err)
	assert.Equal(t, "ident-1", i.ID)

	c, err := repo.CategoryByVariable(ctx, "sportsVar", records.Principal{})
	require.NoError(t, err)
	assert.Equal(t, "cat-1", c.ID)

	_, err = repo.HostByID(ctx, "missing")
	assert.ErrorIs(t, err, records.ErrNotFound)
}
