package fieldvalue

import (
	"fmt"
	"strings"
)

// Kind is the declared kind of a content type field. It doubles as the
// type discriminator written into the document representation.
type Kind string

// Field kinds (closed set).
const (
	KindText         Kind = "Text"
	KindTextArea     Kind = "TextArea"
	KindImage        Kind = "Image"
	KindFile         Kind = "File"
	KindCategory     Kind = "Category"
	KindHostFolder   Kind = "HostFolder"
	KindRelationship Kind = "Relationship"
	KindGeneric      Kind = "Generic"
)

var kindAliases = map[string]Kind{
	"text":           KindText,
	"textarea":       KindTextArea,
	"text-area":      KindTextArea,
	"text_area":      KindTextArea,
	"image":          KindImage,
	"file":           KindFile,
	"category":       KindCategory,
	"hostfolder":     KindHostFolder,
	"host-or-folder": KindHostFolder,
	"host_or_folder": KindHostFolder,
	"relationship":   KindRelationship,
	"relationships":  KindRelationship,
	"generic":        KindGeneric,
}

// ParseKind maps a kind name, case-insensitively and with the common
// dashed/underscored spellings, onto a Kind.
func ParseKind(s string) (Kind, error) {
	if k, ok := kindAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Valid reports whether k belongs to the closed kind set.
func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// IsReference reports whether values of this kind point at another asset.
func (k Kind) IsReference() bool {
	return k == KindImage || k == KindFile
}

// DataType narrows how Generic values are decoded and which column family
// a field is stored in.
type DataType string

// Data types.
const (
	DataTypeText    DataType = "text"
	DataTypeInteger DataType = "integer"
	DataTypeFloat   DataType = "float"
	DataTypeBool    DataType = "bool"
	DataTypeDate    DataType = "date"
)

// ParseDataType maps a data type name onto a DataType. An empty name is text.
func ParseDataType(s string) (DataType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "string":
		return DataTypeText, nil
	case "integer", "int", "long":
		return DataTypeInteger, nil
	case "float", "decimal", "double":
		return DataTypeFloat, nil
	case "bool", "boolean":
		return DataTypeBool, nil
	case "date", "datetime", "time":
		return DataTypeDate, nil
	}
	return "", fmt.Errorf("unknown data type %q", s)
}

// Field describes the field a value is decoded for.
type Field struct {
	Variable string
	Kind     Kind
	DataType DataType
}
