package catalog_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-records/pkg/records"
	"github.com/tendant/simple-records/pkg/records/catalog"
	"github.com/tendant/simple-records/pkg/records/fieldvalue"
)

const newsYAML = `
id: type-news
variable: News
name: News
fields:
  - variable: title
    name: Title
    kind: text
  - variable: views
    kind: generic
    dataType: integer
  - variable: comments
    kind: relationship
relationships:
  - id: rel-news-comment
    parent: news
    child: comment
    childRelationName: comments
    parentRelationName: news
    relationTypeValue: News-Comment
    isField: true
---
id: type-comment
variable: comment
fields:
  - variable: body
    kind: text-area
`

func TestDecode(t *testing.T) {
	types, err := catalog.Decode(strings.NewReader(newsYAML))
	require.NoError(t, err)
	require.Len(t, types, 2)

	news := types[0]
	assert.Equal(t, records.BaseTypeContent, news.BaseType)
	require.Len(t, news.Fields, 3)
	assert.Equal(t, fieldvalue.KindText, news.Fields[0].Kind)
	assert.Equal(t, fieldvalue.KindGeneric, news.Fields[1].Kind)
	assert.Equal(t, fieldvalue.DataTypeInteger, news.Fields[1].DataType)
	assert.Equal(t, fieldvalue.KindRelationship, news.Fields[2].Kind)
	assert.Equal(t, fieldvalue.KindTextArea, types[1].Fields[0].Kind)

	_, err = catalog.Decode(strings.NewReader("id: x\nvariable: x\nfields:\n  - variable: a\n    kind: blob\n"))
	assert.ErrorIs(t, err, fieldvalue.ErrUnknownKind)
}

func TestCatalogLookups(t *testing.T) {
	types, err := catalog.Decode(strings.NewReader(newsYAML))
	require.NoError(t, err)

	var loads atomic.Int32
	c := catalog.New(catalog.LoaderFunc(func(ctx context.Context) ([]*records.ContentType, error) {
		loads.Add(1)
		return types, nil
	}))
	ctx := context.Background()

	assert.Equal(t, int32(0), loads.Load(), "catalog loads lazily")

	ct, err := c.ContentTypeByVariable(ctx, "news")
	require.NoError(t, err)
	assert.Equal(t, "type-news", ct.ID)

	ct, err = c.ContentTypeByID(ctx, "type-comment")
	require.NoError(t, err)
	assert.Equal(t, "comment", ct.Variable)

	_, err = c.ContentTypeByID(ctx, "nope")
	assert.ErrorIs(t, err, records.ErrContentTypeNotFound)
	assert.Equal(t, int32(1), loads.Load())

	t.Run("RelationshipsIndexedOnBothEnds", func(t *testing.T) {
		news, _ := c.ContentTypeByID(ctx, "type-news")
		comment, _ := c.ContentTypeByID(ctx, "type-comment")

		rels, err := c.RelationshipsByContentType(ctx, news)
		require.NoError(t, err)
		require.Len(t, rels, 1)
		assert.Equal(t, "type-news", rels[0].ParentTypeID)
		assert.Equal(t, "type-comment", rels[0].ChildTypeID)
		assert.True(t, rels[0].IsParent(news))

		rels, err = c.RelationshipsByContentType(ctx, comment)
		require.NoError(t, err)
		require.Len(t, rels, 1)
		assert.False(t, rels[0].IsParent(comment))
	})

	t.Run("Invalidate", func(t *testing.T) {
		c.Invalidate()
		_, err := c.ContentTypeByID(ctx, "type-news")
		require.NoError(t, err)
		assert.Equal(t, int32(2), loads.Load())
	})
}

func TestCatalogReloadFailureKeepsSnapshot(t *testing.T) {
	var fail atomic.Bool
	c := catalog.New(catalog.LoaderFunc(func(ctx context.Context) ([]*records.ContentType, error) {
		if fail.Load() {
			return nil, errors.New("boom")
		}
		return []*records.ContentType{{ID: "t1", Variable: "one"}}, nil
	}))
	ctx := context.Background()
	require.NoError(t, c.Reload(ctx))

	fail.Store(true)
	assert.Error(t, c.Reload(ctx))

	ct, err := c.ContentTypeByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "one", ct.Variable)
}

func TestCatalogRejectsInvalidTypes(t *testing.T) {
	tests := []struct {
		name  string
		types []*records.ContentType
	}{
		{name: "missing id", types: []*records.ContentType{{Variable: "a"}}},
		{name: "duplicate variable", types: []*records.ContentType{{ID: "1", Variable: "a"}, {ID: "2", Variable: "A"}}},
		{name: "duplicate field", types: []*records.ContentType{{ID: "1", Variable: "a", Fields: []records.FieldDefinition{
			{Variable: "x", Kind: fieldvalue.KindText}, {Variable: "x", Kind: fieldvalue.KindText},
		}}}},
		{name: "unknown relationship end", types: []*records.ContentType{{ID: "1", Variable: "a", Relationships: []records.Relationship{
			{ID: "r", ParentTypeID: "a", ChildTypeID: "ghost"},
		}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := catalog.New(catalog.Static(tt.types...))
			assert.Error(t, c.Reload(context.Background()))
		})
	}
}

func TestCatalogConcurrentReads(t *testing.T) {
	c := catalog.New(catalog.Static(&records.ContentType{ID: "t1", Variable: "one"}))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				ct, err := c.ContentTypeByID(ctx, "t1")
				if assert.NoError(t, err) {
					assert.Equal(t, "one", ct.Variable)
				}
			}
		}()
	}
	for i := 0; i < 10; i++ {
		require.NoError(t, c.Reload(ctx))
	}
	wg.Wait()
}

func TestDirLoaderAndWatcher(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("news.yaml", newsYAML)
	write("README.md", "not a definition")

	c := catalog.New(catalog.DirLoader{Dir: dir})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	types, err := c.ContentTypes(ctx)
	require.NoError(t, err)
	assert.Len(t, types, 2)

	var reloads atomic.Int32
	w := catalog.NewWatcher(c, dir,
		catalog.WithDebounce(20*time.Millisecond),
		catalog.WithReloadHook(func(err error) { reloads.Add(1) }))
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher a moment to register the directory.
	time.Sleep(50 * time.Millisecond)
	write("event.yml", "id: type-event\nvariable: event\nfields:\n  - variable: when\n    kind: generic\n    dataType: date\n")

	assert.Eventually(t, func() bool {
		_, err := c.ContentTypeByVariable(ctx, "event")
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
	assert.Positive(t, reloads.Load())

	ct, err := c.ContentTypeByVariable(ctx, "event")
	require.NoError(t, err)
	assert.Equal(t, fieldvalue.DataTypeDate, ct.Fields[0].DataType)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
