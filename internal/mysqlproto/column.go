package mysqlproto

import "github.com/dbbouncer/dbclient/internal/wire"

// Column flag bits (Protocol::ColumnDefinition flags).
const (
	FlagNotNull     uint16 = 0x0001
	FlagPrimaryKey  uint16 = 0x0002
	FlagUniqueKey   uint16 = 0x0004
	FlagMultipleKey uint16 = 0x0008
	FlagBlob        uint16 = 0x0010
	FlagUnsigned    uint16 = 0x0020
	FlagZerofill    uint16 = 0x0040
	FlagBinary      uint16 = 0x0080
	FlagEnum        uint16 = 0x0100
	FlagAutoInc     uint16 = 0x0200
	FlagTimestamp   uint16 = 0x0400
	FlagSet         uint16 = 0x0800
)

// FieldType is the wire type code carried by a ColumnDefinition.
type FieldType byte

const (
	TypeDecimal   FieldType = 0x00
	TypeTiny      FieldType = 0x01
	TypeShort     FieldType = 0x02
	TypeLong      FieldType = 0x03
	TypeFloat     FieldType = 0x04
	TypeDouble    FieldType = 0x05
	TypeNull      FieldType = 0x06
	TypeTimestamp FieldType = 0x07
	TypeLongLong  FieldType = 0x08
	TypeInt24     FieldType = 0x09
	TypeDate      FieldType = 0x0a
	TypeTime      FieldType = 0x0b
	TypeDateTime  FieldType = 0x0c
	TypeYear      FieldType = 0x0d
	TypeVarChar   FieldType = 0x0f
	TypeBit       FieldType = 0x10
	TypeNewDecima FieldType = 0xf6
	TypeEnum      FieldType = 0xf7
	TypeSet       FieldType = 0xf8
	TypeTinyBlob  FieldType = 0xf9
	TypeMediumBlo FieldType = 0xfa
	TypeLongBlob  FieldType = 0xfb
	TypeBlob      FieldType = 0xfc
	TypeVarString FieldType = 0xfd
	TypeString    FieldType = 0xfe
	TypeGeometry  FieldType = 0xff
)

// ColumnDefinition is Protocol::ColumnDefinition41 (spec §3 "ColumnDefinition").
type ColumnDefinition struct {
	Catalog      string
	Schema       string
	Table        string
	OrgTable     string
	Name         string
	OrgName      string
	CharacterSet uint16
	ColumnLength uint32
	Type         FieldType
	Flags        uint16
	Decimals     byte
}

// DecodeColumnDefinition parses one Protocol::ColumnDefinition41 packet body.
func DecodeColumnDefinition(pkt []byte) (*ColumnDefinition, error) {
	b := wire.NewBuffer(pkt)
	c := &ColumnDefinition{}

	read := func() (string, error) {
		s, isNull, err := b.ReadLenEncString()
		if err != nil {
			return "", err
		}
		if isNull {
			return "", wire.Malformed("column definition string field read NULL sentinel")
		}
		return string(s), nil
	}
	var err error
	if c.Catalog, err = read(); err != nil {
		return nil, err
	}
	if c.Schema, err = read(); err != nil {
		return nil, err
	}
	if c.Table, err = read(); err != nil {
		return nil, err
	}
	if c.OrgTable, err = read(); err != nil {
		return nil, err
	}
	if c.Name, err = read(); err != nil {
		return nil, err
	}
	if c.OrgName, err = read(); err != nil {
		return nil, err
	}
	fixedLen, _, err := b.ReadLenEncInt() // always 0x0c
	if err != nil {
		return nil, err
	}
	_ = fixedLen
	if c.CharacterSet, err = b.ReadU16LE(); err != nil {
		return nil, err
	}
	if c.ColumnLength, err = b.ReadU32LE(); err != nil {
		return nil, err
	}
	typeByte, err := b.ReadU8()
	if err != nil {
		return nil, err
	}
	c.Type = FieldType(typeByte)
	if c.Flags, err = b.ReadU16LE(); err != nil {
		return nil, err
	}
	if c.Decimals, err = b.ReadU8(); err != nil {
		return nil, err
	}
	return c, nil
}

// IsUnsigned reports whether the column carries the UNSIGNED flag.
func (c *ColumnDefinition) IsUnsigned() bool { return c.Flags&FlagUnsigned != 0 }
