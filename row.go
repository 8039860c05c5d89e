package dbclient

import (
	"math"
	"strconv"
)

// ColumnKind is a coarse classification of a column's wire representation,
// used only to catch accessor/column mismatches (spec §7 ColumnTypeMismatch)
// — it is deliberately not a full value-conversion type system (spec §1
// Non-goal).
type ColumnKind int

const (
	KindBytes ColumnKind = iota
	KindInteger
	KindFloat
)

func (k ColumnKind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	default:
		return "bytes"
	}
}

// ColumnInfo describes one result column in backend-agnostic form (spec §3
// ColumnDefinition, reduced to what a caller needs once value-conversion is
// out of scope).
type ColumnInfo struct {
	Name string
	Kind ColumnKind
}

// Row is one decoded result row (spec §3 "Row"). Values are exposed lazily
// through typed accessors rather than eagerly converted, like
// mysqlproto.Row; Row holds the column metadata and raw field bytes that
// mysqlconn/pgconn pass to NewRow.
type Row struct {
	cols   []ColumnInfo
	values [][]byte
}

// NewRow builds a Row from already-decoded column metadata and field
// bytes; mysqlconn and pgconn use this to hand a backend-agnostic Row back
// through the Conn interface.
func NewRow(cols []ColumnInfo, values [][]byte) *Row {
	return &Row{cols: cols, values: values}
}

// NumColumns returns the row's column count.
func (r *Row) NumColumns() int { return len(r.cols) }

// ColumnName returns the name of column i.
func (r *Row) ColumnName(i int) (string, error) {
	if i < 0 || i >= len(r.cols) {
		return "", &ColumnOutOfRangeError{Index: i, NumColumns: len(r.cols)}
	}
	return r.cols[i].Name, nil
}

// IsNull reports whether column i is SQL NULL in this row.
func (r *Row) IsNull(i int) (bool, error) {
	if i < 0 || i >= len(r.values) {
		return false, &ColumnOutOfRangeError{Index: i, NumColumns: len(r.values)}
	}
	return r.values[i] == nil, nil
}

// Bytes returns the raw field bytes for column i (nil if NULL), with no
// type checking — valid for any column kind.
func (r *Row) Bytes(i int) ([]byte, error) {
	if i < 0 || i >= len(r.values) {
		return nil, &ColumnOutOfRangeError{Index: i, NumColumns: len(r.values)}
	}
	return r.values[i], nil
}

func (r *Row) checkKind(i int, want ColumnKind, wantName string) error {
	if i < 0 || i >= len(r.cols) {
		return &ColumnOutOfRangeError{Index: i, NumColumns: len(r.cols)}
	}
	if r.cols[i].Kind != want {
		return &ColumnTypeMismatchError{Index: i, Want: wantName, Got: r.cols[i].Kind.String()}
	}
	return nil
}

// Int64 decodes column i as a signed integer. The column must carry
// KindInteger; its raw bytes may be a binary-protocol fixed-width integer
// or a text-protocol decimal string — both are accepted since the wire
// representation is a backend/protocol detail, not a caller concern.
func (r *Row) Int64(i int) (int64, bool, error) {
	if err := r.checkKind(i, KindInteger, "int64"); err != nil {
		return 0, false, err
	}
	v := r.values[i]
	if v == nil {
		return 0, true, nil
	}
	if n, ok := decodeFixedWidthInt(v); ok {
		return n, false, nil
	}
	n, err := strconv.ParseInt(string(v), 10, 64)
	if err != nil {
		return 0, false, &ColumnTypeMismatchError{Index: i, Want: "int64", Got: "unparseable text"}
	}
	return n, false, nil
}

// Uint64 decodes column i as an unsigned integer, following the same
// fixed-width-or-text convention as Int64.
func (r *Row) Uint64(i int) (uint64, bool, error) {
	if err := r.checkKind(i, KindInteger, "uint64"); err != nil {
		return 0, false, err
	}
	v := r.values[i]
	if v == nil {
		return 0, true, nil
	}
	if n, ok := decodeFixedWidthInt(v); ok {
		return uint64(n), false, nil
	}
	n, err := strconv.ParseUint(string(v), 10, 64)
	if err != nil {
		return 0, false, &ColumnTypeMismatchError{Index: i, Want: "uint64", Got: "unparseable text"}
	}
	return n, false, nil
}

// Float64 decodes column i as a floating-point value.
func (r *Row) Float64(i int) (float64, bool, error) {
	if err := r.checkKind(i, KindFloat, "float64"); err != nil {
		return 0, false, err
	}
	v := r.values[i]
	if v == nil {
		return 0, true, nil
	}
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
		f, err := strconv.ParseFloat(string(v), 64)
		if err != nil {
			return 0, false, &ColumnTypeMismatchError{Index: i, Want: "float64", Got: "unparseable text"}
		}
		return f, false, nil
	}
}

// String returns column i's raw bytes as text. Like Bytes it does no kind
// check and accepts a column of any kind; a binary-protocol numeric field is
// returned as its raw fixed-width bytes, not as a decimal rendering.
func (r *Row) String(i int) (string, bool, error) {
	if i < 0 || i >= len(r.values) {
		return "", false, &ColumnOutOfRangeError{Index: i, NumColumns: len(r.values)}
	}
	if r.values[i] == nil {
		return "", true, nil
	}
	return string(r.values[i]), false, nil
}

// decodeFixedWidthInt interprets v as a little-endian two's-complement
// integer when its length is exactly 1, 2, 4, or 8 bytes (the binary
// protocol's fixed widths); returns ok=false for any other length so the
// caller falls back to text-protocol decimal parsing.
func decodeFixedWidthInt(v []byte) (int64, bool) {
	switch len(v) {
	case 1:
		return int64(int8(v[0])), true
	case 2:
		return int64(int16(uint16(v[0]) | uint16(v[1])<<8)), true
	case 4:
		return int64(int32(uint32(v[0]) | uint32(v[1])<<8 | uint32(v[2])<<16 | uint32(v[3])<<24)), true
	case 8:
		var u uint64
		for k := 7; k >= 0; k-- {
			u = u<<8 | uint64(v[k])
		}
		return int64(u), true
	default:
		return 0, false
	}
}

// RowIter is a finite, single-pass, backpressured sequence of rows (spec
// §4.7 "fetch"). Next suspends until the next row (or terminal error/EOF)
// is available from the underlying connection.
type RowIter struct {
	pull   func() (*Row, error)
	closed bool
	err    error
}

// NewRowIter wraps a pull function as a RowIter; mysqlconn/pgconn supply
// pull, which must return (nil, nil) exactly once to signal a clean end.
func NewRowIter(pull func() (*Row, error)) *RowIter {
	return &RowIter{pull: pull}
}

// Next returns the next row, or (nil, nil) once the sequence is exhausted.
// Calling Next again after exhaustion or an error is a no-op returning the
// same (nil, nil)/(nil, err).
func (it *RowIter) Next() (*Row, error) {
	if it.closed {
		return nil, it.err
	}
	row, err := it.pull()
	if row == nil || err != nil {
		it.closed = true
		it.err = err
	}
	return row, err
}
