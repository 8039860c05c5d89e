package framing

import (
	"fmt"
	"io"
	"net"

	"github.com/dbbouncer/dbclient/internal/wire"
)

// maxPGMessageLength guards against a corrupt or hostile length field
// causing an unbounded allocation; Postgres messages in practice never
// approach this.
const maxPGMessageLength = 1 << 28

// PGStream frames a net.Conn into Postgres protocol messages: a 1-byte tag
// (omitted only for the very first pre-StartupMessage SSLRequest reply),
// a 4-byte big-endian length including itself, then the payload.
type PGStream struct {
	conn net.Conn
}

// NewPGStream wraps conn for message-level framing.
func NewPGStream(conn net.Conn) *PGStream {
	return &PGStream{conn: conn}
}

// ReadMessage reads one tagged backend message, returning its tag and
// payload (the length prefix is consumed but not returned).
func (s *PGStream) ReadMessage() (tag byte, payload []byte, err error) {
	header := make([]byte, 5)
	if _, err := io.ReadFull(s.conn, header); err != nil {
		return 0, nil, fmt.Errorf("reading pg message header: %w", err)
	}
	tag = header[0]
	b := wire.NewBuffer(header[1:])
	length, err := b.ReadU32BE()
	if err != nil {
		return 0, nil, err
	}
	bodyLen := int(length) - 4
	if bodyLen < 0 || bodyLen > maxPGMessageLength {
		return 0, nil, wire.Malformed("pg message length %d out of range", length)
	}
	payload = make([]byte, bodyLen)
	if bodyLen > 0 {
		if _, err := io.ReadFull(s.conn, payload); err != nil {
			return 0, nil, fmt.Errorf("reading pg message payload: %w", err)
		}
	}
	return tag, payload, nil
}

// ReadSSLResponse reads the single untagged byte ('S' or 'N') the server
// sends in reply to SSLRequest.
func (s *PGStream) ReadSSLResponse() (byte, error) {
	buf := make([]byte, 1)
	if _, err := io.ReadFull(s.conn, buf); err != nil {
		return 0, fmt.Errorf("reading SSLRequest response: %w", err)
	}
	return buf[0], nil
}

// WriteRaw writes an already-framed message (as produced by the pgproto
// Encode* helpers, which include their own tag/length) verbatim.
func (s *PGStream) WriteRaw(framed []byte) error {
	_, err := s.conn.Write(framed)
	if err != nil {
		return fmt.Errorf("writing pg message: %w", err)
	}
	return nil
}
