package mysqlproto

import "github.com/dbbouncer/dbclient/internal/wire"

// EncodeStmtPrepare builds a COM_STMT_PREPARE command packet body.
func EncodeStmtPrepare(query string) []byte {
	b := wire.NewWriteBuffer(1 + len(query))
	b.WriteU8(ComStmtPrepare)
	b.WriteFixed([]byte(query))
	return b.Bytes()
}

// StmtPrepareOk is the first packet of a COM_STMT_PREPARE response
// (Protocol::COM_STMT_PREPARE_OK).
type StmtPrepareOk struct {
	StatementID  uint32
	NumColumns   uint16
	NumParams    uint16
	WarningCount uint16
}

// DecodeStmtPrepareOk parses a COM_STMT_PREPARE_OK header packet. The
// caller still must read NumParams column-definition packets followed by
// NumColumns column-definition packets (each group EOF-terminated unless
// CLIENT_DEPRECATE_EOF is negotiated), per spec §4.3.
func DecodeStmtPrepareOk(pkt []byte) (*StmtPrepareOk, error) {
	b := wire.NewBuffer(pkt)
	status, err := b.ReadU8()
	if err != nil {
		return nil, err
	}
	if status != HeaderOK {
		return nil, wire.Malformed("COM_STMT_PREPARE_OK status byte 0x%02x, want 0x00", status)
	}
	stmtID, err := b.ReadU32LE()
	if err != nil {
		return nil, err
	}
	numColumns, err := b.ReadU16LE()
	if err != nil {
		return nil, err
	}
	numParams, err := b.ReadU16LE()
	if err != nil {
		return nil, err
	}
	if _, err := b.ReadU8(); err != nil { // reserved filler
		return nil, err
	}
	warnings, err := b.ReadU16LE()
	if err != nil {
		return nil, err
	}
	return &StmtPrepareOk{
		StatementID:  stmtID,
		NumColumns:   numColumns,
		NumParams:    numParams,
		WarningCount: warnings,
	}, nil
}

// BoundParam is one bound value for COM_STMT_EXECUTE: Type/Unsigned describe
// the wire type advertised to the server, Value carries the already
// binary-protocol-encoded payload (ignored when IsNull).
type BoundParam struct {
	Type     FieldType
	Unsigned bool
	IsNull   bool
	Value    []byte
}

// EncodeStmtExecute builds a COM_STMT_EXECUTE command packet body
// (spec §4.3 ComStmtExecute table). cursorType is normally
// CursorTypeNoCursor; newParamsBound should be true whenever the statement's
// parameter set hasn't previously been sent for this statement ID (the
// driver may resend metadata on every execute, which is always valid).
func EncodeStmtExecute(stmtID uint32, cursorType byte, params []BoundParam, newParamsBound bool) []byte {
	b := wire.NewWriteBuffer(9 + len(params)*4)
	b.WriteU8(ComStmtExecute)
	b.WriteU32LE(stmtID)
	b.WriteU8(cursorType)
	b.WriteU32LE(1) // iteration_count, always 1

	if len(params) == 0 {
		return b.Bytes()
	}

	bitmapLen := (len(params) + 7) / 8
	bitmap := make([]byte, bitmapLen)
	for i, p := range params {
		if p.IsNull {
			bitmap[i/8] |= 1 << uint(i%8)
		}
	}
	b.WriteFixed(bitmap)

	if newParamsBound {
		b.WriteU8(NewParamsBoundFlag)
		for _, p := range params {
			b.WriteU8(byte(p.Type))
			if p.Unsigned {
				b.WriteU8(0x80)
			} else {
				b.WriteU8(0x00)
			}
		}
		for _, p := range params {
			if !p.IsNull {
				b.WriteFixed(p.Value)
			}
		}
	} else {
		b.WriteU8(0)
	}
	return b.Bytes()
}

// EncodeStmtFetch builds a COM_STMT_FETCH command packet body, used with
// cursor-backed prepared statements to pull the next batch of rows.
func EncodeStmtFetch(stmtID, numRows uint32) []byte {
	b := wire.NewWriteBuffer(9)
	b.WriteU8(ComStmtFetch)
	b.WriteU32LE(stmtID)
	b.WriteU32LE(numRows)
	return b.Bytes()
}

// EncodeStmtReset builds a COM_STMT_RESET command packet body: discards the
// current cursor/row-sending state without forgetting the prepared
// statement, the server replies with an OK_Packet.
func EncodeStmtReset(stmtID uint32) []byte {
	b := wire.NewWriteBuffer(5)
	b.WriteU8(ComStmtReset)
	b.WriteU32LE(stmtID)
	return b.Bytes()
}

// EncodeStmtClose builds a COM_STMT_CLOSE command packet body. The server
// sends no response to this command.
func EncodeStmtClose(stmtID uint32) []byte {
	b := wire.NewWriteBuffer(5)
	b.WriteU8(ComStmtClose)
	b.WriteU32LE(stmtID)
	return b.Bytes()
}
