package storage

import (
	"fmt"

	"github.com/tendant/simple-records/pkg/records"
	"github.com/tendant/simple-records/pkg/records/fieldvalue"
)

// PoolSize is the number of columns available per column family.
const PoolSize = 25

// Column families.
const (
	familyText     = "text"
	familyTextArea = "text_area"
	familyInteger  = "integer"
	familyFloat    = "float"
	familyBool     = "bool"
	familyDate     = "date"
)

// Families lists every column family in table order.
var Families = []string{familyText, familyTextArea, familyInteger, familyFloat, familyBool, familyDate}

// ColumnNames returns every pooled column name.
func ColumnNames() []string {
	out := make([]string, 0, len(Families)*PoolSize)
	for _, family := range Families {
		for i := 1; i <= PoolSize; i++ {
			out = append(out, fmt.Sprintf("%s%d", family, i))
		}
	}
	return out
}

// Family returns the column family of a field, or "" when the field is not
// stored in a column.
func Family(f records.FieldDefinition) string {
	switch f.Kind {
	case fieldvalue.KindHostFolder, fieldvalue.KindRelationship:
		return ""
	case fieldvalue.KindTextArea:
		return familyTextArea
	case fieldvalue.KindGeneric:
		switch f.DataType {
		case fieldvalue.DataTypeInteger:
			return familyInteger
		case fieldvalue.DataTypeFloat:
			return familyFloat
		case fieldvalue.DataTypeBool:
			return familyBool
		case fieldvalue.DataTypeDate:
			return familyDate
		}
	}
	return familyText
}

// Layout maps field variables onto columns for one content type.
type Layout map[string]string

// LayoutFor assigns columns. Declared columns are kept; the remaining
// fields take the next free column of their family in field order.
func LayoutFor(ct *records.ContentType) (Layout, error) {
	layout := make(Layout)
	used := make(map[string]bool)
	for _, f := range ct.Fields {
		if f.Column == "" || Family(f) == "" {
			continue
		}
		if !isPoolColumn(f.Column) {
			return nil, fmt.Errorf("content type %s: unknown column %s for %s", ct.Variable, f.Column, f.Variable)
		}
		if used[f.Column] {
			return nil, fmt.Errorf("content type %s: column %s assigned twice", ct.Variable, f.Column)
		}
		used[f.Column] = true
		layout[f.Variable] = f.Column
	}

	next := make(map[string]int)
	for _, f := range ct.Fields {
		family := Family(f)
		if family == "" || f.Column != "" {
			continue
		}
		for {
			next[family]++
			if next[family] > PoolSize {
				return nil, fmt.Errorf("content type %s: no free %s column for %s", ct.Variable, family, f.Variable)
			}
			col := fmt.Sprintf("%s%d", family, next[family])
			if !used[col] {
				used[col] = true
				layout[f.Variable] = col
				break
			}
		}
	}
	return layout, nil
}

var poolColumns = func() map[string]bool {
	m := make(map[string]bool)
	for _, c := range ColumnNames() {
		m[c] = true
	}
	return m
}()

func isPoolColumn(name string) bool {
	return poolColumns[name]
}
