package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-records/pkg/records"
	"github.com/tendant/simple-records/pkg/records/repo/memory"
	"github.com/tendant/simple-records/pkg/records/storage"
)

func TestMemoryRepository_RowOperations(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	t.Run("LoadMissing", func(t *testing.T) {
		_, err := repo.LoadRow(ctx, "missing")
		assert.ErrorIs(t, err, records.ErrRecordNotFound)
	})

	t.Run("LatestRevision", func(t *testing.T) {
		for _, inode := range []string{"rev-1", "rev-2"} {
			err := repo.SaveRow(ctx, &storage.Row{
				Inode:      inode,
				Identifier: "abc-123",
				LanguageID: 1,
				Columns:    map[string]any{"text1": inode},
			})
			require.NoError(t, err)
		}
		require.NoError(t, repo.SaveRow(ctx, &storage.Row{Inode: "rev-es", Identifier: "abc-123", LanguageID: 2}))

		latest, err := repo.LatestRow(ctx, "abc-123", 1)
		require.NoError(t, err)
		assert.Equal(t, "rev-2", latest.Inode)

		_, err = repo.LatestRow(ctx, "abc-123", 3)
		assert.ErrorIs(t, err, records.ErrRecordNotFound)
	})

	t.Run("CopiesOnRead", func(t *testing.T) {
		row, err := repo.LoadRow(ctx, "rev-1")
		require.NoError(t, err)
		row.Columns["text1"] = "changed"

		again, err := repo.LoadRow(ctx, "rev-1")
		require.NoError(t, err)
		assert.Equal(t, "rev-1", again.Columns["text1"])
	})

	t.Run("Capability", func(t *testing.T) {
		assert.True(t, repo.SupportsDocumentColumns())
		assert.False(t, memory.New(memory.WithDocumentColumns(false)).SupportsDocumentColumns())
	})
}

func TestMemoryRepository_Relationships(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	rel := records.Relationship{ID: "rel-1"}

	err := repo.SaveRelationships(ctx, "parent-1", &records.RelationshipSet{Records: []records.RelationshipRecords{
		{Relationship: rel, IsParent: true, Related: []string{"c1", "c2"}},
	}})
	require.NoError(t, err)

	related, err := repo.Related(ctx, "parent-1", "rel-1", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, related)

	t.Run("ReadableFromChild", func(t *testing.T) {
		parents, err := repo.Related(ctx, "c1", "rel-1", false)
		require.NoError(t, err)
		assert.Equal(t, []string{"parent-1"}, parents)

		children, err := repo.Related(ctx, "c1", "rel-1", true)
		require.NoError(t, err)
		assert.Empty(t, children)
	})

	t.Run("ChildSideKeepsOtherParents", func(t *testing.T) {
		err := repo.SaveRelationships(ctx, "c3", &records.RelationshipSet{Records: []records.RelationshipRecords{
			{Relationship: rel, IsParent: false, Related: []string{"parent-1"}},
		}})
		require.NoError(t, err)

		children, err := repo.Related(ctx, "parent-1", "rel-1", true)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"c1", "c2", "c3"}, children)

		err = repo.SaveRelationships(ctx, "c3", &records.RelationshipSet{Records: []records.RelationshipRecords{
			{Relationship: rel, IsParent: false, Related: []string{}},
		}})
		require.NoError(t, err)
		children, _ = repo.Related(ctx, "parent-1", "rel-1", true)
		assert.Equal(t, []string{"c1", "c2"}, children)
	})

	t.Run("NilSetLeavesRelationships", func(t *testing.T) {
		require.NoError(t, repo.SaveRelationships(ctx, "parent-1", nil))
		related, _ := repo.Related(ctx, "parent-1", "rel-1", true)
		assert.Len(t, related, 2)
	})

	t.Run("EmptyEntryDetaches", func(t *testing.T) {
		err := repo.SaveRelationships(ctx, "parent-1", &records.RelationshipSet{Records: []records.RelationshipRecords{
			{Relationship: rel, IsParent: true, Related: []string{}},
		}})
		require.NoError(t, err)
		related, err := repo.Related(ctx, "parent-1", "rel-1", true)
		require.NoError(t, err)
		assert.Empty(t, related)

		parents, err := repo.Related(ctx, "c1", "rel-1", false)
		require.NoError(t, err)
		assert.Empty(t, parents)
	})
}

func TestMemoryRepository_FilterRelated(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	rows := []*storage.Row{
		{Inode: "i1", Identifier: "id-1", ContentTypeID: "news", LanguageID: 1, Columns: map[string]any{"text1": "Sports"}},
		{Inode: "i2", Identifier: "id-2", ContentTypeID: "news", LanguageID: 1, Columns: map[string]any{"text1": "Weather"}},
		{Inode: "i3", Identifier: "id-3", ContentTypeID: "blog", LanguageID: 1},
		{Inode: "i4", Identifier: "id-4", ContentTypeID: "news", LanguageID: 2, Columns: map[string]any{"text1": "Sports"}},
	}
	for _, row := range rows {
		require.NoError(t, repo.SaveRow(ctx, row))
	}

	tests := []struct {
		name     string
		query    string
		expected []string
	}{
		{name: "identifier list", query: "id-1, id-3, id-9", expected: []string{"id-1", "id-3"}},
		{name: "type term", query: "+contentType:news", expected: []string{"id-1", "id-2"}},
		{name: "column term", query: "+contentType:news +text1:sports", expected: []string{"id-1"}},
		{name: "no match", query: "+contentType:event", expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.FilterRelated(ctx, 1, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestMemoryRepository_References(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	repo.AddHost(records.Host{ID: "h1", Name: "hostA"})
	repo.AddFolder(records.Folder{ID: "f1", HostID: "h1", Path: "path/to/folder"})
	repo.AddIdentifier(records.Identifier{ID: "asset-1", HostID: "h1", URI: "/images/logo.png"})
	repo.AddCategory(records.Category{ID: "c1", Key: "sports", Variable: "sportsCat"})
	repo.AddTempResource("tmp::1")

	h, err := repo.HostByName(ctx, "HOSTA")
	require.NoError(t, err)
	assert.Equal(t, "h1", h.ID)

	f, err := repo.FolderByPath(ctx, "h1", "/path/to/folder")
	require.NoError(t, err)
	assert.Equal(t, "f1", f.ID)
	assert.Equal(t, "/path/to/folder/", f.Path)

	_, err = repo.FolderByPath(ctx, "h2", "/path/to/folder")
	assert.ErrorIs(t, err, records.ErrNotFound)

	i, err := repo.IdentifierByURI(ctx, "h1", "/images/logo.png")
	require.NoError(t, err)
	assert.Equal(t, "asset-1", i.ID)

	c, err := repo.CategoryByVariable(ctx, "sportsCat", records.SystemPrincipal)
	require.NoError(t, err)
	assert.Equal(t, "c1", c.ID)

	assert.True(t, repo.IsTempResource(ctx, "tmp::1"))
	assert.False(t, repo.IsTempResource(ctx, "asset-1"))
}
