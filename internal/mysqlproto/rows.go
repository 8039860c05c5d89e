package mysqlproto

import (
	"math"

	"github.com/dbbouncer/dbclient/internal/wire"
)

// Row holds one decoded result row. Values[i] is nil when column i is NULL,
// otherwise the field's raw wire bytes: for a text row, the length-encoded
// string payload verbatim; for a binary row, the type-appropriate decoded
// payload (fixed-width integers/floats as their native byte form, variable
// types as their raw payload bytes). Value conversion to host types is a
// caller concern (spec §1 "deliberately out of scope"); Row only exposes
// typed accessors that decode lazily from these bytes.
type Row struct {
	Columns []*ColumnDefinition
	Values  [][]byte
}

// NullBitmapLen returns the byte length of the binary-protocol NULL bitmap
// for n columns: (n+7+2)/8 in integer division, i.e. ⌈(n+2)/8⌉ (spec §3
// invariant — the "+2" reserves the two low bits the server uses for binary
// result sets).
func NullBitmapLen(n int) int {
	return (n + 7 + 2) / 8
}

func bitmapIsNull(bitmap []byte, col int) bool {
	bit := col + 2
	byteIdx := bit / 8
	if byteIdx >= len(bitmap) {
		return false
	}
	return bitmap[byteIdx]&(1<<uint(bit%8)) != 0
}

// DecodeTextRow decodes Protocol::Text Resultset Row: each field is either
// the length-encoded NULL sentinel (0xFB) or a length-encoded string.
func DecodeTextRow(pkt []byte, columns []*ColumnDefinition) (*Row, error) {
	b := wire.NewBuffer(pkt)
	values := make([][]byte, len(columns))
	for i := range columns {
		s, isNull, err := b.ReadLenEncString()
		if err != nil {
			return nil, err
		}
		if isNull {
			values[i] = nil
			continue
		}
		values[i] = append([]byte{}, s...)
	}
	return &Row{Columns: columns, Values: values}, nil
}

// DecodeBinaryRow decodes Protocol::Binary Resultset Row (prepared-statement
// execute results): header byte 0x00, a NULL bitmap, then each non-NULL
// field serialized per its column's wire type (spec §3 "Row"; §4.3
// ComStmtExecute table).
func DecodeBinaryRow(pkt []byte, columns []*ColumnDefinition) (*Row, error) {
	b := wire.NewBuffer(pkt)
	if _, err := b.ReadU8(); err != nil { // packet header, always 0x00
		return nil, err
	}
	bitmapLen := NullBitmapLen(len(columns))
	bitmap, err := b.ReadFixed(bitmapLen)
	if err != nil {
		return nil, err
	}

	values := make([][]byte, len(columns))
	for i, col := range columns {
		if bitmapIsNull(bitmap, i) {
			continue
		}
		v, err := decodeBinaryField(b, col.Type)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return &Row{Columns: columns, Values: values}, nil
}

func decodeBinaryField(b *wire.Buffer, t FieldType) ([]byte, error) {
	switch t {
	case TypeTiny:
		return b.ReadFixed(1)
	case TypeShort, TypeYear:
		return b.ReadFixed(2)
	case TypeLong, TypeInt24:
		return b.ReadFixed(4)
	case TypeLongLong:
		return b.ReadFixed(8)
	case TypeFloat:
		return b.ReadFixed(4)
	case TypeDouble:
		return b.ReadFixed(8)
	case TypeDate, TypeDateTime, TypeTimestamp:
		return readTemporal(b)
	case TypeTime:
		return readTemporal(b)
	case TypeDecimal, TypeNewDecima, TypeVarChar, TypeBit, TypeEnum, TypeSet,
		TypeTinyBlob, TypeMediumBlo, TypeLongBlob, TypeBlob, TypeVarString,
		TypeString, TypeGeometry:
		s, isNull, err := b.ReadLenEncString()
		if err != nil {
			return nil, err
		}
		if isNull {
			return nil, wire.Malformed("binary row field read NULL sentinel outside NULL bitmap")
		}
		return append([]byte{}, s...), nil
	default:
		return nil, wire.Malformed("unsupported binary field type 0x%02x", byte(t))
	}
}

// readTemporal reads the length-prefixed MYSQL_TIME encoding shared by
// DATE/DATETIME/TIMESTAMP/TIME: a length byte followed by that many bytes
// (0, 4, 7, or 11 depending on precision present).
func readTemporal(b *wire.Buffer) ([]byte, error) {
	n, err := b.ReadU8()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []byte{}, nil
	}
	return b.ReadFixed(int(n))
}

// --- typed accessors, decoding lazily from the raw bytes captured above ---

// Uint64 decodes Values[i] as an unsigned integer of the column's native
// width (spec: value-conversion beyond raw bytes + type id is a caller
// concern in general, but fixed-width integer widths are wire-format
// detail, not value semantics, so they're decoded here).
func (r *Row) Uint64(i int) (uint64, bool, error) {
	if r.Values[i] == nil {
		return 0, true, nil
	}
	v := r.Values[i]
	switch len(v) {
	case 1:
		return uint64(v[0]), false, nil
	case 2:
		return uint64(v[0]) | uint64(v[1])<<8, false, nil
	case 4:
		return uint64(v[0]) | uint64(v[1])<<8 | uint64(v[2])<<16 | uint64(v[3])<<24, false, nil
	case 8:
		var u uint64
		for k := 7; k >= 0; k-- {
			u = u<<8 | uint64(v[k])
		}
		return u, false, nil
	default:
		return 0, false, wire.Malformed("Uint64: unexpected width %d", len(v))
	}
}

// Float64 decodes Values[i] as IEEE-754 (column must be FLOAT or DOUBLE).
func (r *Row) Float64(i int) (float64, bool, error) {
	if r.Values[i] == nil {
		return 0, true, nil
	}
	v := r.Values[i]
	switch len(v) {
	case 4:
		bits := uint32(v[0]) | uint32(v[1])<<8 | uint32(v[2])<<16 | uint32(v[3])<<24
		return float64(math.Float32frombits(bits)), false, nil
	case 8:
		var bits uint64
		for k := 7; k >= 0; k-- {
			bits = bits<<8 | uint64(v[k])
		}
		return math.Float64frombits(bits), false, nil
	default:
		return 0, false, wire.Malformed("Float64: unexpected width %d", len(v))
	}
}

// Bytes returns the raw field bytes (nil if NULL).
func (r *Row) Bytes(i int) []byte { return r.Values[i] }

// IsNull reports whether column i is NULL in this row.
func (r *Row) IsNull(i int) bool { return r.Values[i] == nil }
