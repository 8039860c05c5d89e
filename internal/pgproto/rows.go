package pgproto

import "github.com/dbbouncer/dbclient/internal/wire"

// FieldDescription describes one column of a RowDescription ('T') message
// (spec §3 "ColumnDefinition" analog for Postgres).
type FieldDescription struct {
	Name         string
	TableOID     uint32
	ColumnAttrNo int16
	TypeOID      uint32
	TypeSize     int16
	TypeModifier int32
	FormatCode   int16
}

// RowDescription is the backend 'T' message describing the columns of the
// rows that follow.
type RowDescription struct {
	Fields []FieldDescription
}

// DecodeRowDescription parses a RowDescription message body.
func DecodeRowDescription(pkt []byte) (*RowDescription, error) {
	b := wire.NewBuffer(pkt)
	n, err := b.ReadU16BE()
	if err != nil {
		return nil, err
	}
	fields := make([]FieldDescription, n)
	for i := range fields {
		name, err := b.ReadNulString()
		if err != nil {
			return nil, err
		}
		fields[i].Name = string(name)
		if fields[i].TableOID, err = b.ReadU32BE(); err != nil {
			return nil, err
		}
		attrNo, err := b.ReadU16BE()
		if err != nil {
			return nil, err
		}
		fields[i].ColumnAttrNo = int16(attrNo)
		if fields[i].TypeOID, err = b.ReadU32BE(); err != nil {
			return nil, err
		}
		typeSize, err := b.ReadU16BE()
		if err != nil {
			return nil, err
		}
		fields[i].TypeSize = int16(typeSize)
		if fields[i].TypeModifier, err = b.ReadI32BE(); err != nil {
			return nil, err
		}
		formatCode, err := b.ReadU16BE()
		if err != nil {
			return nil, err
		}
		fields[i].FormatCode = int16(formatCode)
	}
	return &RowDescription{Fields: fields}, nil
}

// DataRow is the backend 'D' message carrying one result row. Values[i] is
// nil when column i is SQL NULL, otherwise the raw column bytes in
// whichever format (text or binary) was negotiated for that column.
type DataRow struct {
	Values [][]byte
}

// DecodeDataRow parses a DataRow message body.
func DecodeDataRow(pkt []byte) (*DataRow, error) {
	b := wire.NewBuffer(pkt)
	n, err := b.ReadU16BE()
	if err != nil {
		return nil, err
	}
	values := make([][]byte, n)
	for i := range values {
		length, err := b.ReadI32BE()
		if err != nil {
			return nil, err
		}
		if length < 0 {
			values[i] = nil
			continue
		}
		v, err := b.ReadFixed(int(length))
		if err != nil {
			return nil, err
		}
		values[i] = append([]byte{}, v...)
	}
	return &DataRow{Values: values}, nil
}
