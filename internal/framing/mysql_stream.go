// Package framing wraps a net.Conn with the length-prefixed packet framing
// each wire protocol uses, so the mysqlconn/pgconn state machines operate on
// whole packets rather than raw byte streams (spec §4.2).
package framing

import (
	"fmt"
	"io"
	"net"

	"github.com/dbbouncer/dbclient/internal/wire"
)

const maxMySQLPacketPayload = 0xffffff // 2^24 - 1

// MySQLStream frames a net.Conn into MySQL protocol packets: a 3-byte
// little-endian length, a 1-byte sequence number, then the payload. A
// logical packet larger than maxMySQLPacketPayload is split across
// consecutive physical packets with increasing sequence numbers, the last
// of which may be length 0 to mark the end (spec §4.2 "large-packet
// continuation").
type MySQLStream struct {
	conn net.Conn
	seq  byte
}

// NewMySQLStream wraps conn for packet-level framing. The sequence counter
// starts such that the first packet written is sequence 0.
func NewMySQLStream(conn net.Conn) *MySQLStream {
	return &MySQLStream{conn: conn, seq: 0xff}
}

// ResetSequence arranges for the next packet written to carry sequence 0,
// used when a command logically restarts numbering (every new client
// command resets to 0). Sequence numbers wrap mod 256, so this just
// rewinds to the byte immediately before 0.
func (s *MySQLStream) ResetSequence() { s.seq = 0xff }

// Seq returns the sequence number of the last packet read or written.
func (s *MySQLStream) Seq() byte { return s.seq }

// ReadPacket reads one logical packet, transparently reassembling any
// large-packet continuation and verifying sequence numbers increment by
// one per physical packet (spec §9 open question: sequence mismatches are
// reported as ProtocolError, not silently resynchronized).
func (s *MySQLStream) ReadPacket() ([]byte, error) {
	var out []byte
	for {
		header := make([]byte, 4)
		if _, err := io.ReadFull(s.conn, header); err != nil {
			return nil, fmt.Errorf("reading mysql packet header: %w", err)
		}
		b := wire.NewBuffer(header)
		length, err := b.ReadU24LE()
		if err != nil {
			return nil, err
		}
		gotSeq, err := b.ReadU8()
		if err != nil {
			return nil, err
		}
		if gotSeq != s.seq+1 {
			return nil, wire.SequenceMismatch(s.seq+1, gotSeq)
		}
		s.seq = gotSeq

		payload := make([]byte, length)
		if length > 0 {
			if _, err := io.ReadFull(s.conn, payload); err != nil {
				return nil, fmt.Errorf("reading mysql packet payload: %w", err)
			}
		}
		out = append(out, payload...)
		if length < maxMySQLPacketPayload {
			return out, nil
		}
	}
}

// WritePacket writes payload as one or more physical MySQL packets,
// splitting at maxMySQLPacketPayload boundaries and assigning sequence
// numbers starting from the stream's current sequence + 1.
func (s *MySQLStream) WritePacket(payload []byte) error {
	for {
		n := len(payload)
		if n > maxMySQLPacketPayload {
			n = maxMySQLPacketPayload
		}
		chunk := payload[:n]
		payload = payload[n:]

		s.seq++
		header := wire.NewWriteBuffer(4)
		header.WriteU24LE(uint32(len(chunk)))
		header.WriteU8(s.seq)
		if _, err := s.conn.Write(header.Bytes()); err != nil {
			return fmt.Errorf("writing mysql packet header: %w", err)
		}
		if len(chunk) > 0 {
			if _, err := s.conn.Write(chunk); err != nil {
				return fmt.Errorf("writing mysql packet payload: %w", err)
			}
		}
		if n < maxMySQLPacketPayload {
			return nil
		}
		if len(payload) == 0 {
			// Exact multiple of the max payload: terminate with a 0-length packet.
			s.seq++
			header := wire.NewWriteBuffer(4)
			header.WriteU24LE(0)
			header.WriteU8(s.seq)
			_, err := s.conn.Write(header.Bytes())
			return err
		}
	}
}
