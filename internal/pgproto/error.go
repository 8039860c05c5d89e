package pgproto

import "github.com/dbbouncer/dbclient/internal/wire"

// Field-type bytes within an ErrorResponse/NoticeResponse (spec §3,
// Postgres protocol "Error and Notice Message Fields").
const (
	FieldSeverity         byte = 'S'
	FieldSeverityNonLocal byte = 'V'
	FieldSQLState         byte = 'C'
	FieldMessage          byte = 'M'
	FieldDetail           byte = 'D'
	FieldHint             byte = 'H'
	FieldPosition         byte = 'P'
	FieldInternalPosition byte = 'p'
	FieldInternalQuery    byte = 'q'
	FieldWhere            byte = 'W'
	FieldSchemaName       byte = 's'
	FieldTableName        byte = 't'
	FieldColumnName       byte = 'c'
	FieldDataTypeName     byte = 'd'
	FieldConstraintName   byte = 'n'
	FieldFile             byte = 'F'
	FieldLine             byte = 'L'
	FieldRoutine          byte = 'R'
)

// Notice is a decoded ErrorResponse ('E') or NoticeResponse ('N') message:
// a set of type-tagged fields, terminated by a zero byte.
type Notice struct {
	Fields map[byte]string
}

func decodeNotice(pkt []byte) (*Notice, error) {
	b := wire.NewBuffer(pkt)
	n := &Notice{Fields: make(map[byte]string)}
	for {
		tag, err := b.ReadU8()
		if err != nil {
			return nil, err
		}
		if tag == 0 {
			break
		}
		value, err := b.ReadNulString()
		if err != nil {
			return nil, err
		}
		n.Fields[tag] = string(value)
	}
	return n, nil
}

// DecodeErrorResponse parses an ErrorResponse ('E') message body.
func DecodeErrorResponse(pkt []byte) (*Notice, error) { return decodeNotice(pkt) }

// DecodeNoticeResponse parses a NoticeResponse ('N') message body.
func DecodeNoticeResponse(pkt []byte) (*Notice, error) { return decodeNotice(pkt) }

// Severity returns the SEVERITY field (preferring the non-localized 'V'
// field when the server sent one).
func (n *Notice) Severity() string {
	if v, ok := n.Fields[FieldSeverityNonLocal]; ok {
		return v
	}
	return n.Fields[FieldSeverity]
}

// SQLState returns the five-character SQLSTATE error code.
func (n *Notice) SQLState() string { return n.Fields[FieldSQLState] }

// Message returns the primary human-readable error message.
func (n *Notice) Message() string { return n.Fields[FieldMessage] }

// Error implements the error interface so a Notice decoded from an
// ErrorResponse can be returned directly as a Go error.
func (n *Notice) Error() string {
	if state := n.SQLState(); state != "" {
		return state + ": " + n.Message()
	}
	return n.Message()
}
