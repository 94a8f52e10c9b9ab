package records

import (
	"maps"
	"sort"

	"github.com/tendant/simple-records/pkg/records/fieldvalue"
)

// Keys recognized in input maps besides field variables.
const (
	KeyContentTypeInode    = "stInode"
	KeyContentTypeName     = "stName"
	KeyContentType         = "contentType"
	KeyLanguageID          = "languageId"
	KeyIdentifier          = "identifier"
	KeyInode               = "inode"
	KeyIndexPolicy         = "indexPolicy"
	KeyWorkflowAssign      = "wfActionAssign"
	KeyWorkflowComments    = "wfActionComments"
	KeyFileName            = "fileName"
	KeyHost                = "host"
	KeyFolder              = "folder"
	KeyRelationships       = "relationships"
	KeyWorkflowActionID    = "wfActionId"
	KeyWorkflowPublishDate = "wfPublishDate"
)

var sideProperties = map[string]bool{
	KeyWorkflowAssign:      true,
	KeyWorkflowComments:    true,
	KeyWorkflowActionID:    true,
	KeyWorkflowPublishDate: true,
}

// IsSideProperty reports whether key is a recognized string side-channel
// property rather than a field.
func IsSideProperty(key string) bool {
	return sideProperties[key]
}

// Record is the mutable working representation of a content record while
// it is being populated. It is not safe for concurrent use.
type Record struct {
	Identifier    string
	Inode         string
	ContentTypeID string
	LanguageID    int64
	HostID        string
	FolderID      string
	IndexPolicy   IndexPolicy

	// Relationships is nil when relationships must be left untouched.
	Relationships *RelationshipSet

	contentType *ContentType
	values      map[string]fieldvalue.Value
	properties  map[string]string
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{
		values:     make(map[string]fieldvalue.Value),
		properties: make(map[string]string),
	}
}

// ContentType returns the resolved content type, if any.
func (r *Record) ContentType() *ContentType {
	return r.contentType
}

// SetContentType binds the record to ct.
func (r *Record) SetContentType(ct *ContentType) {
	r.contentType = ct
	if ct != nil {
		r.ContentTypeID = ct.ID
	}
}

// Set stores a field value. Once a content type is bound, variables that
// the type does not declare are ignored and Set returns false.
func (r *Record) Set(variable string, v fieldvalue.Value) bool {
	if r.values == nil {
		r.values = make(map[string]fieldvalue.Value)
	}
	if r.contentType != nil {
		if _, ok := r.contentType.Field(variable); !ok {
			return false
		}
	}
	r.values[variable] = v
	return true
}

// Value returns the value stored for variable.
func (r *Record) Value(variable string) (fieldvalue.Value, bool) {
	v, ok := r.values[variable]
	return v, ok
}

// Values returns a copy of all field values.
func (r *Record) Values() map[string]fieldvalue.Value {
	return maps.Clone(r.values)
}

// Delete removes a field value.
func (r *Record) Delete(variable string) {
	delete(r.values, variable)
}

// FieldNames returns the variables holding a value, sorted.
func (r *Record) FieldNames() []string {
	names := make([]string, 0, len(r.values))
	for k := range r.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// SetProperty stores a side-channel property. Unrecognized keys are ignored.
func (r *Record) SetProperty(key, value string) bool {
	if !IsSideProperty(key) {
		return false
	}
	if r.properties == nil {
		r.properties = make(map[string]string)
	}
	r.properties[key] = value
	return true
}

// Property returns a side-channel property.
func (r *Record) Property(key string) (string, bool) {
	v, ok := r.properties[key]
	return v, ok
}

// Properties returns a copy of the side-channel properties.
func (r *Record) Properties() map[string]string {
	return maps.Clone(r.properties)
}

// CopyFrom copies the stored state of src onto r as a base for a patch.
// The identity, type and language of r are kept.
func (r *Record) CopyFrom(src *Record) {
	if src == nil {
		return
	}
	r.HostID = src.HostID
	r.FolderID = src.FolderID
	r.Inode = src.Inode
	if r.Identifier == "" {
		r.Identifier = src.Identifier
	}
	if r.ContentTypeID == "" {
		r.ContentTypeID = src.ContentTypeID
	}
	for k, v := range src.values {
		r.Set(k, v)
	}
	for k, v := range src.properties {
		r.SetProperty(k, v)
	}
}

// Clone returns a deep enough copy for independent mutation.
func (r *Record) Clone() *Record {
	out := *r
	out.values = maps.Clone(r.values)
	out.properties = maps.Clone(r.properties)
	if out.values == nil {
		out.values = make(map[string]fieldvalue.Value)
	}
	if out.properties == nil {
		out.properties = make(map[string]string)
	}
	if r.Relationships != nil {
		rs := *r.Relationships
		rs.Records = append([]RelationshipRecords(nil), r.Relationships.Records...)
		out.Relationships = &rs
	}
	return &out
}

// Map flattens the record into an untyped map of primary values.
func (r *Record) Map() map[string]any {
	m := map[string]any{
		KeyIdentifier:  r.Identifier,
		KeyInode:       r.Inode,
		KeyContentType: r.ContentTypeID,
		KeyLanguageID:  r.LanguageID,
		KeyHost:        r.HostID,
		KeyFolder:      r.FolderID,
		KeyIndexPolicy: r.IndexPolicy.String(),
	}
	for k, v := range r.properties {
		m[k] = v
	}
	for k, v := range r.values {
		m[k] = v.Raw()
	}
	return m
}
