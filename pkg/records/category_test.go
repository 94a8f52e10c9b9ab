package records_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-records/pkg/records"
	"github.com/tendant/simple-records/pkg/records/fieldvalue"
	"github.com/tendant/simple-records/pkg/records/repo/memory"
)

type mockCategoryStore struct {
	mock.Mock
}

func (m *mockCategoryStore) lookup(method, token string) (*records.Category, error) {
	args := m.MethodCalled(method, token)
	cat, _ := args.Get(0).(*records.Category)
	return cat, args.Error(1)
}

func (m *mockCategoryStore) CategoryByID(ctx context.Context, id string, p records.Principal) (*records.Category, error) {
	return m.lookup("id", id)
}

func (m *mockCategoryStore) CategoryByKey(ctx context.Context, key string, p records.Principal) (*records.Category, error) {
	return m.lookup("key", key)
}

func (m *mockCategoryStore) CategoryByVariable(ctx context.Context, variable string, p records.Principal) (*records.Category, error) {
	return m.lookup("variable", variable)
}

func TestCategoryResolver_TierOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("id is tried first", func(t *testing.T) {
		store := new(mockCategoryStore)
		store.On("id", "sports").Return(&records.Category{ID: "by-id"}, nil).Once()
		resolver := records.NewCategoryResolver(store, nil)

		cat, err := resolver.Resolve(ctx, "sports", records.SystemPrincipal)
		require.NoError(t, err)
		assert.Equal(t, "by-id", cat.ID)
		store.AssertNotCalled(t, "key", "sports")
		store.AssertNotCalled(t, "variable", "sports")
	})

	t.Run("variable only after id and key miss", func(t *testing.T) {
		store := new(mockCategoryStore)
		store.On("id", "sportsVar").Return(nil, records.ErrNotFound).Once()
		store.On("key", "sportsVar").Return(nil, errors.New("index unavailable")).Once()
		store.On("variable", "sportsVar").Return(&records.Category{ID: "c-9"}, nil).Once()
		resolver := records.NewCategoryResolver(store, nil)

		cat, err := resolver.Resolve(ctx, "sportsVar", records.SystemPrincipal)
		require.NoError(t, err)
		assert.Equal(t, "c-9", cat.ID)
		store.AssertExpectations(t)
	})

	t.Run("empty results count as misses", func(t *testing.T) {
		store := new(mockCategoryStore)
		for _, tier := range []string{"id", "key", "variable"} {
			store.On(tier, "ghost").Return(&records.Category{}, nil).Once()
		}
		resolver := records.NewCategoryResolver(store, nil)

		_, err := resolver.Resolve(ctx, "ghost", records.SystemPrincipal)
		var unresolved *records.UnresolvedCategoryError
		require.ErrorAs(t, err, &unresolved)
		assert.Equal(t, "ghost", unresolved.Token)
		store.AssertExpectations(t)
	})
}

func TestCategoryResolver_ResolveRecord(t *testing.T) {
	repo := memory.New()
	repo.AddCategory(records.Category{ID: "c-1", Key: "sports", Variable: "sportsVar"})
	repo.AddCategory(records.Category{ID: "c-2", Key: "news", Variable: "newsVar"})
	resolver := records.NewCategoryResolver(repo, nil)
	codec := fieldvalue.NewCodec()
	ctx := context.Background()

	build := func(raw any, set bool) *records.Record {
		rec := records.NewRecord()
		rec.SetContentType(newsType)
		if set {
			v, err := codec.Decode(fieldvalue.Field{Variable: "tags", Kind: fieldvalue.KindCategory}, raw)
			require.NoError(t, err)
			rec.Set("tags", v)
		}
		return rec
	}

	t.Run("comma list resolved independently", func(t *testing.T) {
		got, err := resolver.ResolveRecord(ctx, build(" sports , newsVar, c-1", true), records.SystemPrincipal)
		require.NoError(t, err)
		ids := []string{}
		for _, c := range got["tags"] {
			ids = append(ids, c.ID)
		}
		assert.Equal(t, []string{"c-1", "c-2", "c-1"}, ids)
	})

	t.Run("present but empty removes", func(t *testing.T) {
		got, err := resolver.ResolveRecord(ctx, build("", true), records.SystemPrincipal)
		require.NoError(t, err)
		cats, ok := got["tags"]
		assert.True(t, ok)
		assert.Empty(t, cats)
	})

	t.Run("absent leaves unchanged", func(t *testing.T) {
		got, err := resolver.ResolveRecord(ctx, build(nil, false), records.SystemPrincipal)
		require.NoError(t, err)
		_, ok := got["tags"]
		assert.False(t, ok)
	})

	t.Run("one unresolved token fails", func(t *testing.T) {
		_, err := resolver.ResolveRecord(ctx, build("sports,ghost", true), records.SystemPrincipal)
		var unresolved *records.UnresolvedCategoryError
		require.ErrorAs(t, err, &unresolved)
		assert.Equal(t, "ghost", unresolved.Token)
	})

	t.Run("record without type", func(t *testing.T) {
		_, err := resolver.ResolveRecord(ctx, records.NewRecord(), records.SystemPrincipal)
		assert.ErrorIs(t, err, records.ErrContentTypeNotFound)
	})
}
