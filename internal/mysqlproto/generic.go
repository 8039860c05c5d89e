package mysqlproto

import "github.com/dbbouncer/dbclient/internal/wire"

// OK represents Protocol::OK_Packet (spec §4.3; concrete scenario §8.1).
// AffectedRows/LastInsertID are nil when the server sends the lenenc NULL
// sentinel 0xFB in that field (scenario §8.1: `0F 00 00 01 00 FB FB 01 01
// 00 00 "info"` decodes to affected=None, last_insert_id=None) — 0xFB is
// valid here, not a protocol error; the mason-mariadb ancestor's
// `decode_int_lenenc` returns the same Option/None.
type OK struct {
	AffectedRows *uint64
	LastInsertID *uint64
	StatusFlags  uint16
	Warnings     uint16
	Info         string
}

// Affected returns AffectedRows, or 0 if the server sent NULL for it — the
// executor facade's rows-affected count is a plain uint64 (spec §4.7).
func (o *OK) Affected() uint64 {
	if o.AffectedRows == nil {
		return 0
	}
	return *o.AffectedRows
}

// DecodeOK parses an OK_Packet body. header must be the packet's first byte
// (0x00 or, under CLIENT_DEPRECATE_EOF, 0xFE) and is not included in pkt.
func DecodeOK(pkt []byte, clientPluginAuth bool) (*OK, error) {
	b := wire.NewBuffer(pkt)
	affected, affectedNull, err := b.ReadLenEncInt()
	if err != nil {
		return nil, err
	}
	lastID, lastIDNull, err := b.ReadLenEncInt()
	if err != nil {
		return nil, err
	}
	status, err := b.ReadU16LE()
	if err != nil {
		return nil, err
	}
	warnings, err := b.ReadU16LE()
	if err != nil {
		return nil, err
	}
	info := b.ReadRestAsEOFString()
	ok := &OK{
		StatusFlags: status,
		Warnings:    warnings,
		Info:        string(info),
	}
	if !affectedNull {
		ok.AffectedRows = &affected
	}
	if !lastIDNull {
		ok.LastInsertID = &lastID
	}
	return ok, nil
}

// Err represents Protocol::ERR_Packet (spec §4.3; concrete scenario §8.2).
type Err struct {
	Code     uint16
	SQLState string
	Message  string
}

func (e *Err) Error() string {
	return e.Message
}

// DecodeErr parses an ERR_Packet body (the leading 0xFF header is not
// included in pkt).
func DecodeErr(pkt []byte) (*Err, error) {
	b := wire.NewBuffer(pkt)
	code, err := b.ReadU16LE()
	if err != nil {
		return nil, err
	}
	e := &Err{Code: code}
	rest := b.Bytes()
	if len(rest) > 0 && rest[0] == '#' {
		if _, err := b.ReadU8(); err != nil {
			return nil, err
		}
		state, err := b.ReadFixed(5)
		if err != nil {
			return nil, err
		}
		e.SQLState = string(state)
	}
	e.Message = string(b.ReadRestAsEOFString())
	return e, nil
}

// EOF represents Protocol::EOF_Packet (header 0xFE, body < 9 bytes).
type EOF struct {
	Warnings    uint16
	StatusFlags uint16
}

// DecodeEOF parses an EOF_Packet body (leading 0xFE not included).
func DecodeEOF(pkt []byte) (*EOF, error) {
	b := wire.NewBuffer(pkt)
	warnings, err := b.ReadU16LE()
	if err != nil {
		return nil, err
	}
	status, err := b.ReadU16LE()
	if err != nil {
		return nil, err
	}
	return &EOF{Warnings: warnings, StatusFlags: status}, nil
}
