package records_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-records/pkg/records"
	"github.com/tendant/simple-records/pkg/records/catalog"
	"github.com/tendant/simple-records/pkg/records/fieldvalue"
)

func TestRelationshipResolver_DetachSemantics(t *testing.T) {
	cat := catalog.New(catalog.Static(newsType, commentType, authorType))
	searcher := new(mockSearcher)
	resolver := records.NewRelationshipResolver(cat, searcher, nil)
	ctx := context.Background()
	rec := records.NewRecord()
	rec.LanguageID = 1

	t.Run("explicit empty detaches", func(t *testing.T) {
		set := resolver.Resolve(ctx, newsType, map[string]any{"comments": ""}, rec)
		require.NotNil(t, set)
		entries := set.For("rel-news-comment")
		require.Len(t, entries, 1)
		assert.NotNil(t, entries[0].Related)
		assert.Len(t, entries[0].Related, 0)
	})

	t.Run("absent key leaves relationships untouched", func(t *testing.T) {
		set := resolver.Resolve(ctx, newsType, map[string]any{"title": "x"}, rec)
		assert.Nil(t, set)
		assert.Equal(t, 0, set.Len())
	})

	t.Run("nil value is not a query", func(t *testing.T) {
		set := resolver.Resolve(ctx, newsType, map[string]any{"comments": nil}, rec)
		assert.Nil(t, set)
	})

	searcher.AssertNotCalled(t, "FilterRelated", mock.Anything, mock.Anything, mock.Anything)
}

func TestRelationshipResolver_Search(t *testing.T) {
	cat := catalog.New(catalog.Static(newsType, commentType, authorType))
	ctx := context.Background()
	rec := records.NewRecord()
	rec.LanguageID = 3

	t.Run("legacy relationship keyed by relation type value", func(t *testing.T) {
		searcher := new(mockSearcher)
		searcher.On("FilterRelated", mock.Anything, int64(3), "+contentType:author").Return([]string{"a-1"}, nil)
		resolver := records.NewRelationshipResolver(cat, searcher, nil)

		set := resolver.Resolve(ctx, newsType, map[string]any{"Author-News": "+contentType:author"}, rec)
		entries := set.For("rel-news-author")
		require.Len(t, entries, 1)
		assert.False(t, entries[0].IsParent, "news is the child of author")
		assert.Equal(t, "+contentType:author", entries[0].Query)
		assert.Equal(t, []string{"a-1"}, entries[0].Related)
		searcher.AssertExpectations(t)
	})

	t.Run("field relationship only through declared relationship fields", func(t *testing.T) {
		searcher := new(mockSearcher)
		resolver := records.NewRelationshipResolver(cat, searcher, nil)

		// "news" names the parent slot, which is declared on the comment type.
		set := resolver.Resolve(ctx, newsType, map[string]any{"news": "n-1"}, rec)
		assert.Nil(t, set)
		searcher.AssertNotCalled(t, "FilterRelated", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("child side of a field relationship", func(t *testing.T) {
		searcher := new(mockSearcher)
		searcher.On("FilterRelated", mock.Anything, int64(3), "n-1").Return([]string{"n-1"}, nil)
		resolver := records.NewRelationshipResolver(cat, searcher, nil)

		set := resolver.Resolve(ctx, commentType, map[string]any{"news": "n-1"}, rec)
		entries := set.For("rel-news-comment")
		require.Len(t, entries, 1)
		assert.False(t, entries[0].IsParent)
	})

	t.Run("zero matches attach nothing", func(t *testing.T) {
		searcher := new(mockSearcher)
		searcher.On("FilterRelated", mock.Anything, int64(3), "ghost").Return([]string{}, nil)
		resolver := records.NewRelationshipResolver(cat, searcher, nil)

		set := resolver.Resolve(ctx, newsType, map[string]any{"comments": "ghost"}, rec)
		assert.Equal(t, 0, set.Len())
	})

	t.Run("a failing relationship does not stop the others", func(t *testing.T) {
		searcher := new(mockSearcher)
		searcher.On("FilterRelated", mock.Anything, int64(3), "broken").Return(nil, errors.New("search down"))
		searcher.On("FilterRelated", mock.Anything, int64(3), "a-1").Return([]string{"a-1"}, nil)
		resolver := records.NewRelationshipResolver(cat, searcher, nil)

		set := resolver.Resolve(ctx, newsType, map[string]any{"comments": "broken", "Author-News": "a-1"}, rec)
		assert.Empty(t, set.For("rel-news-comment"))
		assert.Len(t, set.For("rel-news-author"), 1)
		searcher.AssertExpectations(t)
	})
}

func TestRelationshipResolver_SelfRelationship(t *testing.T) {
	pageType := &records.ContentType{
		ID:       "type-page",
		Variable: "page",
		Fields: []records.FieldDefinition{
			{Variable: "children", Kind: fieldvalue.KindRelationship},
			{Variable: "parentPage", Kind: fieldvalue.KindRelationship},
		},
		Relationships: []records.Relationship{{
			ID:                 "rel-page-page",
			ParentTypeID:       "type-page",
			ChildTypeID:        "type-page",
			ChildRelationName:  "children",
			ParentRelationName: "parentPage",
			IsField:            true,
		}},
	}
	cat := catalog.New(catalog.Static(pageType))
	searcher := new(mockSearcher)
	searcher.On("FilterRelated", mock.Anything, int64(1), mock.Anything).Return([]string{"p-2"}, nil)
	resolver := records.NewRelationshipResolver(cat, searcher, nil)
	rec := records.NewRecord()
	rec.LanguageID = 1

	set := resolver.Resolve(context.Background(), pageType, map[string]any{"children": "p-2", "parentPage": "p-0"}, rec)
	entries := set.For("rel-page-page")
	require.Len(t, entries, 2)

	byQuery := map[string]bool{}
	for _, e := range entries {
		byQuery[e.Query] = e.IsParent
	}
	assert.True(t, byQuery["p-2"], "matching the child slot makes the record the parent")
	assert.False(t, byQuery["p-0"])
}
