package document_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-records/pkg/records"
	"github.com/tendant/simple-records/pkg/records/document"
	"github.com/tendant/simple-records/pkg/records/fieldvalue"
)

func sampleRecord(t *testing.T) *records.Record {
	t.Helper()
	codec := fieldvalue.NewCodec()
	rec := records.NewRecord()
	rec.Identifier = "abc-123"
	rec.Inode = "inode-1"
	rec.ContentTypeID = "type-news"
	rec.LanguageID = 2
	rec.HostID = "host-1"
	rec.FolderID = "folder-1"
	rec.IndexPolicy = records.IndexPolicyWaitFor
	rec.SetProperty(records.KeyWorkflowAssign, "editor")

	set := func(f fieldvalue.Field, raw any) {
		v, err := codec.Decode(f, raw)
		require.NoError(t, err)
		rec.Set(f.Variable, v)
	}
	set(fieldvalue.Field{Variable: "title", Kind: fieldvalue.KindText}, "Hello")
	set(fieldvalue.Field{Variable: "body", Kind: fieldvalue.KindTextArea}, "<p>long\ntext</p>")
	set(fieldvalue.Field{Variable: "tags", Kind: fieldvalue.KindCategory}, "news, sports")
	set(fieldvalue.Field{Variable: "site", Kind: fieldvalue.KindHostFolder}, "host-1")
	set(fieldvalue.Field{Variable: "views", Kind: fieldvalue.KindGeneric, DataType: fieldvalue.DataTypeInteger}, int64(9007199254740993))
	set(fieldvalue.Field{Variable: "score", Kind: fieldvalue.KindGeneric, DataType: fieldvalue.DataTypeFloat}, 0.1)
	set(fieldvalue.Field{Variable: "featured", Kind: fieldvalue.KindGeneric, DataType: fieldvalue.DataTypeBool}, true)
	set(fieldvalue.Field{Variable: "published", Kind: fieldvalue.KindGeneric, DataType: fieldvalue.DataTypeDate},
		time.Date(2024, 3, 1, 10, 30, 0, 123000000, time.UTC))

	img, err := codec.Decode(fieldvalue.Field{Variable: "hero", Kind: fieldvalue.KindImage}, "img-42")
	require.NoError(t, err)
	rec.Set("hero", img.WithHydrated(map[string]any{"link": "/dA/img-42/hero.png"}))
	return rec
}

func TestRoundTrip(t *testing.T) {
	rec := sampleRecord(t)

	data, err := document.Marshal(rec)
	require.NoError(t, err)

	back, err := document.Unmarshal(data)
	require.NoError(t, err)

	assert.Equal(t, rec.Identifier, back.Identifier)
	assert.Equal(t, rec.Inode, back.Inode)
	assert.Equal(t, rec.ContentTypeID, back.ContentTypeID)
	assert.Equal(t, rec.LanguageID, back.LanguageID)
	assert.Equal(t, rec.HostID, back.HostID)
	assert.Equal(t, rec.FolderID, back.FolderID)
	assert.Equal(t, rec.IndexPolicy, back.IndexPolicy)
	assert.Equal(t, rec.Properties(), back.Properties())

	require.Equal(t, rec.FieldNames(), back.FieldNames())
	for _, name := range rec.FieldNames() {
		want, _ := rec.Value(name)
		got, _ := back.Value(name)
		assert.Equal(t, want.Kind(), got.Kind(), name)
		assert.Equal(t, want.DataType(), got.DataType(), name)
		assert.Equal(t, want.Raw(), got.Raw(), name)
	}

	hero, _ := back.Value("hero")
	assert.Equal(t, "/dA/img-42/hero.png", hero.Hydrated()["link"])
}

func TestEmptyCategoryRoundTrip(t *testing.T) {
	codec := fieldvalue.NewCodec()
	rec := records.NewRecord()
	v, err := codec.Decode(fieldvalue.Field{Variable: "tags", Kind: fieldvalue.KindCategory}, "")
	require.NoError(t, err)
	rec.Set("tags", v)

	data, err := document.Marshal(rec)
	require.NoError(t, err)
	back, err := document.Unmarshal(data)
	require.NoError(t, err)

	got, ok := back.Value("tags")
	require.True(t, ok)
	assert.Equal(t, v.Raw(), got.Raw())
	assert.Equal(t, []string{}, got.Raw())
}

func TestUnmarshalCorruption(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "whitespace", input: "   "},
		{name: "not json", input: "{not json"},
		{name: "missing fields", input: `{"identifier":"x"}`},
		{name: "unknown kind", input: `{"fields":{"a":{"type":"Blob","value":"x"}}}`},
		{name: "missing discriminator", input: `{"fields":{"a":{"value":"x"}}}`},
		{name: "bad integer", input: `{"fields":{"a":{"type":"Generic","dataType":"integer","value":"abc"}}}`},
		{name: "bad index policy", input: `{"indexPolicy":"SOON","fields":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := document.Unmarshal([]byte(tt.input))
			assert.Nil(t, rec)
			var corrupt *document.CorruptionError
			assert.ErrorAs(t, err, &corrupt)
		})
	}
}

func TestMarshalRejectsReservedAttribute(t *testing.T) {
	rec := records.NewRecord()
	v := fieldvalue.New(fieldvalue.KindImage, "", "img-1").WithHydrated(map[string]any{"value": "x"})
	rec.Set("hero", v)

	_, err := document.Marshal(rec)
	assert.Error(t, err)
}
