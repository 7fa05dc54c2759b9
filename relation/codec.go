package relation

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/thoresonjd/5300-Dolphin/page"
)

/*
Row wire format, columns concatenated in declared schema order
┌──────────────────────────────────────────────────────────────┐
| INT column  : value (4 byte, big endian two's complement)    |
| TEXT column : length (2 byte) | raw bytes                    |
└──────────────────────────────────────────────────────────────┘
*/

var ErrMarshal = fmt.Errorf("cannot marshal row")

// marshal encodes a full row. The result must fit in a single block,
// anything larger is rejected here rather than truncated.
func (ht *heapTable) marshal(row Row) ([]byte, error) {
	data := make([]byte, 0, 64)
	for _, column := range ht.schema {
		value := row[column.Name]
		switch column.Type {
		case IntColumn:
			if value.Type != IntColumn {
				return nil, errors.Wrapf(ErrMarshal, "column %s declared INT, value is not", column.Name)
			}
			data = binary.BigEndian.AppendUint32(data, uint32(value.Int))
		case TextColumn:
			if value.Type != TextColumn {
				return nil, errors.Wrapf(ErrMarshal, "column %s declared TEXT, value is not", column.Name)
			}
			if len(value.Text) > math.MaxUint16 {
				return nil, errors.Wrapf(ErrMarshal, "column %s holds %d bytes of text", column.Name, len(value.Text))
			}
			data = binary.BigEndian.AppendUint16(data, uint16(len(value.Text)))
			data = append(data, value.Text...)
		default:
			return nil, errors.Wrapf(ErrMarshal, "unknown type %d of column %s", column.Type, column.Name)
		}
	}
	if len(data) > page.MaxRecordSize {
		return nil, errors.Wrapf(ErrMarshal, "row of %d bytes exceeds the %d byte block payload limit", len(data), page.MaxRecordSize)
	}
	return data, nil
}

func (ht *heapTable) unmarshal(data []byte) (Row, error) {
	row := make(Row, len(ht.schema))
	offset := 0
	for _, column := range ht.schema {
		switch column.Type {
		case IntColumn:
			if offset+4 > len(data) {
				return nil, errors.Wrapf(ErrMarshal, "record truncated at column %s", column.Name)
			}
			row[column.Name] = IntValue(int32(binary.BigEndian.Uint32(data[offset:])))
			offset += 4
		case TextColumn:
			if offset+2 > len(data) {
				return nil, errors.Wrapf(ErrMarshal, "record truncated at column %s", column.Name)
			}
			length := int(binary.BigEndian.Uint16(data[offset:]))
			offset += 2
			if offset+length > len(data) {
				return nil, errors.Wrapf(ErrMarshal, "record truncated at column %s", column.Name)
			}
			row[column.Name] = TextValue(string(data[offset : offset+length]))
			offset += length
		default:
			return nil, errors.Wrapf(ErrMarshal, "unknown type %d of column %s", column.Type, column.Name)
		}
	}
	return row, nil
}
