package records

import (
	"strings"

	"github.com/tendant/simple-records/pkg/records/fieldvalue"
)

// BaseType is the structural family of a content type.
type BaseType string

// Base types.
const (
	BaseTypeContent   BaseType = "content"
	BaseTypeFileAsset BaseType = "fileasset"
	BaseTypePage      BaseType = "htmlpage"
	BaseTypePersona   BaseType = "persona"
)

// ContentType is the runtime schema of a class of records. It is owned by a
// SchemaCatalog and must not be modified once published.
type ContentType struct {
	ID            string            `json:"id" yaml:"id"`
	Variable      string            `json:"variable" yaml:"variable"`
	Name          string            `json:"name" yaml:"name"`
	BaseType      BaseType          `json:"baseType" yaml:"baseType"`
	Fields        []FieldDefinition `json:"fields" yaml:"fields"`
	Relationships []Relationship    `json:"relationships,omitempty" yaml:"relationships"`
}

// Field returns the field declared with the given variable name.
func (ct *ContentType) Field(variable string) (FieldDefinition, bool) {
	for _, f := range ct.Fields {
		if f.Variable == variable {
			return f, true
		}
	}
	return FieldDefinition{}, false
}

// FieldsByVariable builds a lookup of the declared fields.
func (ct *ContentType) FieldsByVariable() map[string]FieldDefinition {
	out := make(map[string]FieldDefinition, len(ct.Fields))
	for _, f := range ct.Fields {
		out[f.Variable] = f
	}
	return out
}

// RelationshipFieldVariables returns the variables of the fields declared
// with the relationship kind.
func (ct *ContentType) RelationshipFieldVariables() map[string]bool {
	out := make(map[string]bool)
	for _, f := range ct.Fields {
		if f.Kind == fieldvalue.KindRelationship {
			out[f.Variable] = true
		}
	}
	return out
}

// FieldDefinition declares one field of a content type.
type FieldDefinition struct {
	ID       string              `json:"id,omitempty" yaml:"id"`
	Name     string              `json:"name" yaml:"name"`
	Variable string              `json:"variable" yaml:"variable"`
	Kind     fieldvalue.Kind     `json:"kind" yaml:"kind"`
	DataType fieldvalue.DataType `json:"dataType,omitempty" yaml:"dataType"`
	Column   string              `json:"column,omitempty" yaml:"column"`
	Required bool                `json:"required,omitempty" yaml:"required"`
}

// Descriptor returns what the codec needs to know about the field.
func (f FieldDefinition) Descriptor() fieldvalue.Field {
	return fieldvalue.Field{Variable: f.Variable, Kind: f.Kind, DataType: f.DataType}
}

// Relationship is a declared relation between a parent and a child type.
//
// Legacy relationships are addressed in input maps by RelationTypeValue.
// Field relationships are addressed by the relationship field variables
// ChildRelationName (declared on the parent) and ParentRelationName
// (declared on the child).
type Relationship struct {
	ID                 string `json:"id" yaml:"id"`
	ParentTypeID       string `json:"parentTypeId" yaml:"parentTypeId"`
	ChildTypeID        string `json:"childTypeId" yaml:"childTypeId"`
	ParentRelationName string `json:"parentRelationName" yaml:"parentRelationName"`
	ChildRelationName  string `json:"childRelationName" yaml:"childRelationName"`
	RelationTypeValue  string `json:"relationTypeValue" yaml:"relationTypeValue"`
	Cardinality        int    `json:"cardinality" yaml:"cardinality"`
	IsField            bool   `json:"isField" yaml:"isField"`
}

// SameParentAndChild reports whether the relationship relates a type to itself.
func (r Relationship) SameParentAndChild() bool {
	return r.ParentTypeID == r.ChildTypeID
}

// IsParent reports whether ct plays the parent role.
func (r Relationship) IsParent(ct *ContentType) bool {
	return ct != nil && r.ParentTypeID == ct.ID
}

// RelationshipRecords is the resolved set of related records for one
// relationship. Empty Related with a non-nil entry means detach all.
type RelationshipRecords struct {
	Relationship Relationship `json:"relationship"`
	IsParent     bool         `json:"isParent"`
	Query        string       `json:"query"`
	Related      []string     `json:"related"`
}

// RelationshipSet collects the relationship records resolved for a record.
type RelationshipSet struct {
	Records []RelationshipRecords `json:"records"`
}

// Len returns the number of relationship entries.
func (s *RelationshipSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}

// For returns the entries for the relationship with the given id.
func (s *RelationshipSet) For(relationshipID string) []RelationshipRecords {
	if s == nil {
		return nil
	}
	var out []RelationshipRecords
	for _, r := range s.Records {
		if r.Relationship.ID == relationshipID {
			out = append(out, r)
		}
	}
	return out
}

// Host is a site.
type Host struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Folder is a folder on a host. Path always starts and ends with "/".
type Folder struct {
	ID     string `json:"id"`
	HostID string `json:"hostId"`
	Path   string `json:"path"`
}

// Identifier addresses an asset by host and URI.
type Identifier struct {
	ID     string `json:"id"`
	HostID string `json:"hostId"`
	URI    string `json:"uri"`
}

// Category is a node of the category tree.
type Category struct {
	ID       string `json:"id"`
	Key      string `json:"key"`
	Variable string `json:"variable"`
	Name     string `json:"name"`
}

// Principal is the identity category lookups are performed for.
type Principal struct {
	UserID               string
	RespectFrontendRoles bool
}

// SystemPrincipal is used for lookups that are not made on behalf of a user.
var SystemPrincipal = Principal{UserID: "system"}

// NormalizeFolderPath returns p with leading and trailing slashes.
func NormalizeFolderPath(p string) string {
	p = strings.TrimSpace(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}
