package dbclient

import (
	"fmt"

	"github.com/dbbouncer/dbclient/internal/wire"
)

// ProtocolError reports a framing or encoding invariant violation; the
// owning connection is always poisoned afterward. It re-exports
// internal/wire's type directly since both the codec layer and callers
// need to construct/inspect the same Kind values.
type ProtocolError = wire.ProtocolError

// ErrorKind re-exports the wire package's protocol error classification.
type ErrorKind = wire.ErrorKind

const (
	KindMalformed        = wire.KindMalformed
	KindUnexpectedEOF    = wire.KindUnexpectedEOF
	KindOversize         = wire.KindOversize
	KindSequenceMismatch = wire.KindSequenceMismatch
	KindUnsupported      = wire.KindUnsupported
)

// IOError wraps an underlying transport (socket) failure. Always poisons
// the connection.
type IOError struct {
	Err error
}

func (e *IOError) Error() string { return fmt.Sprintf("dbclient: io error: %v", e.Err) }
func (e *IOError) Unwrap() error { return e.Err }

// UnexpectedEOFError reports the socket closing mid-exchange, while a
// command was in flight. Always poisons the connection.
type UnexpectedEOFError struct {
	Op string
}

func (e *UnexpectedEOFError) Error() string {
	return fmt.Sprintf("dbclient: unexpected EOF during %s", e.Op)
}

// DatabaseError is a well-formed error response from the server. The
// connection remains usable once the next idle boundary is reached.
type DatabaseError struct {
	Code     uint16 // MySQL error code; zero for Postgres (SQLState carries the identity there)
	SQLState string
	Message  string
}

func (e *DatabaseError) Error() string {
	if e.SQLState != "" {
		return fmt.Sprintf("dbclient: database error [%s]: %s", e.SQLState, e.Message)
	}
	return fmt.Sprintf("dbclient: database error (%d): %s", e.Code, e.Message)
}

// AuthUnsupportedError reports a handshake that cannot complete because
// the server requested an authentication mechanism this driver doesn't
// implement.
type AuthUnsupportedError struct {
	Mechanism string
}

func (e *AuthUnsupportedError) Error() string {
	return fmt.Sprintf("dbclient: unsupported authentication mechanism %q", e.Mechanism)
}

// ColumnOutOfRangeError is returned by a Row accessor given an index
// outside [0, NumColumns). Not fatal to the connection.
type ColumnOutOfRangeError struct {
	Index      int
	NumColumns int
}

func (e *ColumnOutOfRangeError) Error() string {
	return fmt.Sprintf("dbclient: column index %d out of range (have %d columns)", e.Index, e.NumColumns)
}

// ColumnTypeMismatchError is returned when a Row accessor is called with a
// Go type incompatible with the column's wire kind. Not fatal.
type ColumnTypeMismatchError struct {
	Index int
	Want  string
	Got   string
}

func (e *ColumnTypeMismatchError) Error() string {
	return fmt.Sprintf("dbclient: column %d: requested %s but wire kind is %s", e.Index, e.Want, e.Got)
}

// PoolTimeoutError is returned by Acquire when no idle or new connection
// became available before the configured timeout elapsed.
type PoolTimeoutError struct{}

func (e *PoolTimeoutError) Error() string { return "dbclient: pool acquire timed out" }

// PoolClosedError is returned by any pool operation after Close has been
// called.
type PoolClosedError struct{}

func (e *PoolClosedError) Error() string { return "dbclient: pool is closed" }
