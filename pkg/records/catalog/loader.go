package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tendant/simple-records/pkg/records"
	"github.com/tendant/simple-records/pkg/records/fieldvalue"
)

// DirLoader loads content type definitions from the YAML files of a
// directory. A file may hold several documents separated by "---".
type DirLoader struct {
	Dir string
}

type typeFile struct {
	ID            string             `yaml:"id"`
	Variable      string             `yaml:"variable"`
	Name          string             `yaml:"name"`
	BaseType      string             `yaml:"baseType"`
	Fields        []fieldFile        `yaml:"fields"`
	Relationships []relationshipFile `yaml:"relationships"`
}

type fieldFile struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Variable string `yaml:"variable"`
	Kind     string `yaml:"kind"`
	DataType string `yaml:"dataType"`
	Column   string `yaml:"column"`
	Required bool   `yaml:"required"`
}

type relationshipFile struct {
	ID          string `yaml:"id"`
	Parent      string `yaml:"parent"`
	Child       string `yaml:"child"`
	ParentName  string `yaml:"parentRelationName"`
	ChildName   string `yaml:"childRelationName"`
	TypeValue   string `yaml:"relationTypeValue"`
	Cardinality int    `yaml:"cardinality"`
	IsField     bool   `yaml:"isField"`
}

// IsDefinitionFile reports whether path names a file DirLoader reads.
func IsDefinitionFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func (l DirLoader) Load(ctx context.Context) ([]*records.ContentType, error) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && IsDefinitionFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var types []*records.ContentType
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(l.Dir, name)
		parsed, err := loadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		types = append(types, parsed...)
	}
	return types, nil
}

func loadFile(path string) ([]*records.ContentType, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads YAML content type definitions from r.
func Decode(r io.Reader) ([]*records.ContentType, error) {
	dec := yaml.NewDecoder(r)
	var out []*records.ContentType
	for {
		var tf typeFile
		err := dec.Decode(&tf)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		ct, err := tf.contentType()
		if err != nil {
			return nil, err
		}
		out = append(out, ct)
	}
}

func (tf typeFile) contentType() (*records.ContentType, error) {
	ct := &records.ContentType{
		ID:       tf.ID,
		Variable: tf.Variable,
		Name:     tf.Name,
		BaseType: records.BaseType(strings.ToLower(tf.BaseType)),
	}
	if ct.BaseType == "" {
		ct.BaseType = records.BaseTypeContent
	}
	for _, ff := range tf.Fields {
		kind, err := fieldvalue.ParseKind(ff.Kind)
		if err != nil {
			return nil, fmt.Errorf("type %s field %s: %w", tf.Variable, ff.Variable, err)
		}
		var dt fieldvalue.DataType
		if kind == fieldvalue.KindGeneric || ff.DataType != "" {
			dt, err = fieldvalue.ParseDataType(ff.DataType)
			if err != nil {
				return nil, fmt.Errorf("type %s field %s: %w", tf.Variable, ff.Variable, err)
			}
		}
		ct.Fields = append(ct.Fields, records.FieldDefinition{
			ID:       ff.ID,
			Name:     ff.Name,
			Variable: ff.Variable,
			Kind:     kind,
			DataType: dt,
			Column:   ff.Column,
			Required: ff.Required,
		})
	}
	for _, rf := range tf.Relationships {
		ct.Relationships = append(ct.Relationships, records.Relationship{
			ID:                 rf.ID,
			ParentTypeID:       rf.Parent,
			ChildTypeID:        rf.Child,
			ParentRelationName: rf.ParentName,
			ChildRelationName:  rf.ChildName,
			RelationTypeValue:  rf.TypeValue,
			Cardinality:        rf.Cardinality,
			IsField:            rf.IsField,
		})
	}
	return ct, nil
}
