package wire

import "encoding/binary"

// Buffer is a growable byte buffer with independent read and write cursors,
// the shared codec primitive underneath both the MySQL and Postgres message
// sets (spec §4.1). Writers append to the tail; readers consume from the
// head. The fixed-width readers, ReadFixed and ReadNulString check the
// length before advancing, so a short read leaves the cursor untouched;
// ReadLenEncInt and ReadLenEncString may already have consumed their length
// prefix when they report a short read.
type Buffer struct {
	buf []byte
	pos int
}

// NewBuffer wraps an existing byte slice for reading.
func NewBuffer(b []byte) *Buffer {
	return &Buffer{buf: b}
}

// NewWriteBuffer returns an empty Buffer sized for writing.
func NewWriteBuffer(capacity int) *Buffer {
	return &Buffer{buf: make([]byte, 0, capacity)}
}

// Bytes returns the buffer's full backing slice (for writers) or the
// unconsumed remainder (for readers that have advanced pos).
func (b *Buffer) Bytes() []byte { return b.buf[b.pos:] }

// Len returns the number of unread bytes.
func (b *Buffer) Len() int { return len(b.buf) - b.pos }

// Reset clears the buffer for reuse with new contents.
func (b *Buffer) Reset(contents []byte) {
	b.buf = contents
	b.pos = 0
}

func (b *Buffer) require(n int) error {
	if b.Len() < n {
		return &ProtocolError{Kind: KindUnexpectedEOF, Msg: "short read"}
	}
	return nil
}

// --- fixed-width readers (little-endian, MySQL) ---

func (b *Buffer) ReadU8() (byte, error) {
	if err := b.require(1); err != nil {
		return 0, err
	}
	v := b.buf[b.pos]
	b.pos++
	return v, nil
}

func (b *Buffer) ReadU16LE() (uint16, error) {
	if err := b.require(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(b.buf[b.pos:])
	b.pos += 2
	return v, nil
}

func (b *Buffer) ReadU24LE() (uint32, error) {
	if err := b.require(3); err != nil {
		return 0, err
	}
	v := uint32(b.buf[b.pos]) | uint32(b.buf[b.pos+1])<<8 | uint32(b.buf[b.pos+2])<<16
	b.pos += 3
	return v, nil
}

func (b *Buffer) ReadU32LE() (uint32, error) {
	if err := b.require(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(b.buf[b.pos:])
	b.pos += 4
	return v, nil
}

func (b *Buffer) ReadU64LE() (uint64, error) {
	if err := b.require(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(b.buf[b.pos:])
	b.pos += 8
	return v, nil
}

// ReadFixed returns the next n bytes verbatim (a view into the buffer).
func (b *Buffer) ReadFixed(n int) ([]byte, error) {
	if err := b.require(n); err != nil {
		return nil, err
	}
	v := b.buf[b.pos : b.pos+n]
	b.pos += n
	return v, nil
}

// ReadNulString reads bytes up to and including a NUL terminator, returning
// the bytes before it.
func (b *Buffer) ReadNulString() ([]byte, error) {
	rest := b.buf[b.pos:]
	for i, c := range rest {
		if c == 0 {
			b.pos += i + 1
			return rest[:i], nil
		}
	}
	return nil, Malformed("unterminated NUL string")
}

// ReadRestAsEOFString returns everything remaining in the buffer (used for
// the trailing EOF-terminated message field of ERR_Packet and similar).
func (b *Buffer) ReadRestAsEOFString() []byte {
	v := b.buf[b.pos:]
	b.pos = len(b.buf)
	return v
}

// --- fixed-width writers (little-endian, MySQL) ---

func (b *Buffer) WriteU8(v byte) {
	b.buf = append(b.buf, v)
}

func (b *Buffer) WriteU16LE(v uint16) {
	b.buf = append(b.buf, byte(v), byte(v>>8))
}

func (b *Buffer) WriteU24LE(v uint32) {
	b.buf = append(b.buf, byte(v), byte(v>>8), byte(v>>16))
}

func (b *Buffer) WriteU32LE(v uint32) {
	b.buf = append(b.buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func (b *Buffer) WriteU64LE(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
}

func (b *Buffer) WriteFixed(p []byte) {
	b.buf = append(b.buf, p...)
}

func (b *Buffer) WriteZeros(n int) {
	for i := 0; i < n; i++ {
		b.buf = append(b.buf, 0)
	}
}

// WriteNulString appends s followed by a NUL terminator.
func (b *Buffer) WriteNulString(s string) {
	b.buf = append(b.buf, s...)
	b.buf = append(b.buf, 0)
}

// --- fixed-width readers/writers (big-endian, Postgres) ---

func (b *Buffer) ReadU16BE() (uint16, error) {
	if err := b.require(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(b.buf[b.pos:])
	b.pos += 2
	return v, nil
}

func (b *Buffer) ReadU32BE() (uint32, error) {
	if err := b.require(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(b.buf[b.pos:])
	b.pos += 4
	return v, nil
}

func (b *Buffer) ReadI32BE() (int32, error) {
	v, err := b.ReadU32BE()
	return int32(v), err
}

func (b *Buffer) WriteU16BE(v uint16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
}

func (b *Buffer) WriteU32BE(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
}

func (b *Buffer) WriteI32BE(v int32) { b.WriteU32BE(uint32(v)) }

func (b *Buffer) ReadU64BE() (uint64, error) {
	if err := b.require(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(b.buf[b.pos:])
	b.pos += 8
	return v, nil
}

func (b *Buffer) WriteU64BE(v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
}

func (b *Buffer) WriteI64BE(v int64) { b.WriteU64BE(uint64(v)) }
