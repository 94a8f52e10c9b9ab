// Package document maps records onto their single-document storage form
// and back.
package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/tendant/simple-records/pkg/records"
	"github.com/tendant/simple-records/pkg/records/fieldvalue"
)

// ColumnName is the column holding the document representation.
const ColumnName = "contentlet_as_json"

// CorruptionError is returned for any stored document that cannot be read
// back into a record.
type CorruptionError struct {
	Field string
	Err   error
}

func (e *CorruptionError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("corrupt document at field %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("corrupt document: %v", e.Err)
}

func (e *CorruptionError) Unwrap() error {
	return e.Err
}

// Reserved keys of a field entry. Every other key is a hydrated attribute.
const (
	keyType     = "type"
	keyDataType = "dataType"
	keyValue    = "value"
)

type envelope struct {
	Identifier  string                    `json:"identifier"`
	Inode       string                    `json:"inode"`
	ContentType string                    `json:"contentType"`
	LanguageID  int64                     `json:"languageId"`
	Host        string                    `json:"host,omitempty"`
	Folder      string                    `json:"folder,omitempty"`
	IndexPolicy records.IndexPolicy       `json:"indexPolicy"`
	Properties  map[string]string         `json:"properties,omitempty"`
	Fields      map[string]map[string]any `json:"fields"`
}

var codec = fieldvalue.NewCodec()

// Marshal encodes rec. Field entries carry the kind discriminator, the
// primary value and any hydrated attributes.
func Marshal(rec *records.Record) ([]byte, error) {
	if rec == nil {
		return nil, errors.New("nil record")
	}
	env := envelope{
		Identifier:  rec.Identifier,
		Inode:       rec.Inode,
		ContentType: rec.ContentTypeID,
		LanguageID:  rec.LanguageID,
		Host:        rec.HostID,
		Folder:      rec.FolderID,
		IndexPolicy: rec.IndexPolicy,
		Properties:  rec.Properties(),
		Fields:      make(map[string]map[string]any),
	}
	for name, v := range rec.Values() {
		entry := v.Hydrated()
		for _, reserved := range []string{keyType, keyDataType, keyValue} {
			if _, clash := entry[reserved]; clash {
				return nil, fmt.Errorf("field %s: hydrated attribute %q is reserved", name, reserved)
			}
		}
		entry[keyType] = v.Kind()
		if v.DataType() != "" {
			entry[keyDataType] = v.DataType()
		}
		entry[keyValue] = codec.Encode(v)
		env.Fields[name] = entry
	}
	return json.Marshal(env)
}

// Unmarshal decodes a document written by Marshal. The record is not bound
// to a content type; callers bind it when the catalog is at hand.
func Unmarshal(data []byte) (*records.Record, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &CorruptionError{Err: errors.New("empty document")}
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var env envelope
	if err := dec.Decode(&env); err != nil {
		return nil, &CorruptionError{Err: err}
	}
	if env.Fields == nil {
		return nil, &CorruptionError{Err: errors.New("missing fields object")}
	}

	rec := records.NewRecord()
	rec.Identifier = env.Identifier
	rec.Inode = env.Inode
	rec.ContentTypeID = env.ContentType
	rec.LanguageID = env.LanguageID
	rec.HostID = env.Host
	rec.FolderID = env.Folder
	rec.IndexPolicy = env.IndexPolicy
	for k, v := range env.Properties {
		rec.SetProperty(k, v)
	}

	names := make([]string, 0, len(env.Fields))
	for name := range env.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		v, err := decodeField(name, env.Fields[name])
		if err != nil {
			return nil, &CorruptionError{Field: name, Err: err}
		}
		rec.Set(name, v)
	}
	return rec, nil
}

func decodeField(name string, entry map[string]any) (fieldvalue.Value, error) {
	if entry == nil {
		return nil, errors.New("null field entry")
	}
	kindName, ok := entry[keyType].(string)
	if !ok {
		return nil, errors.New("missing type discriminator")
	}
	kind := fieldvalue.Kind(kindName)
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", fieldvalue.ErrUnknownKind, kindName)
	}

	var dataType fieldvalue.DataType
	if raw, ok := entry[keyDataType]; ok {
		s, _ := raw.(string)
		dt, err := fieldvalue.ParseDataType(s)
		if err != nil {
			return nil, err
		}
		dataType = dt
	}

	v, err := codec.Decode(fieldvalue.Field{Variable: name, Kind: kind, DataType: dataType}, entry[keyValue])
	if err != nil {
		return nil, err
	}

	attrs := make(map[string]any)
	for k, a := range entry {
		switch k {
		case keyType, keyDataType, keyValue:
		default:
			attrs[k] = a
		}
	}
	if len(attrs) > 0 {
		v = v.WithHydrated(attrs)
	}
	return v, nil
}
