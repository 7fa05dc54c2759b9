package relation

import (
	"github.com/thoresonjd/5300-Dolphin/page"
)

type ColumnType int

const (
	IntColumn ColumnType = iota
	TextColumn
)

// Column declares one column's name and type.
type Column struct {
	Name string
	Type ColumnType
}

// Schema is the ordered column list of a relation. The order is fixed
// for the lifetime of the table and governs the row wire format.
type Schema []Column

func (s Schema) Column(name string) (Column, bool) {
	for _, column := range s {
		if column.Name == name {
			return column, true
		}
	}
	return Column{}, false
}

// Value is a typed field value, either a 32-bit signed integer or a
// text string.
type Value struct {
	Type ColumnType
	Int  int32
	Text string
}

func IntValue(n int32) Value {
	return Value{Type: IntColumn, Int: n}
}

func TextValue(s string) Value {
	return Value{Type: TextColumn, Text: s}
}

func (v Value) Equal(other Value) bool {
	if v.Type != other.Type {
		return false
	}
	if v.Type == IntColumn {
		return v.Int == other.Int
	}
	return v.Text == other.Text
}

// Row maps column names to values. Ordering is irrelevant, the schema
// decides marshal order.
type Row map[string]Value

// Handle addresses one row. It stays valid until the row is deleted.
type Handle struct {
	Block  page.BlockID
	Record page.RecordID
}
