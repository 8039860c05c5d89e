package wire

// NullLenEnc is the sentinel length-encoded-integer prefix byte (0xFB) that
// means NULL in row-field context. Outside that context it is reserved and
// must not appear (spec §3 invariants).
const NullLenEnc = 0xfb

// ReadLenEncInt reads a MySQL length-encoded integer. isNull is true only
// when the field-context NULL sentinel (0xFB) was read; callers outside row
// context must treat that as a protocol error themselves.
func (b *Buffer) ReadLenEncInt() (v uint64, isNull bool, err error) {
	first, err := b.ReadU8()
	if err != nil {
		return 0, false, err
	}
	switch {
	case first < 0xfb:
		return uint64(first), false, nil
	case first == 0xfb:
		return 0, true, nil
	case first == 0xfc:
		u, err := b.ReadU16LE()
		return uint64(u), false, err
	case first == 0xfd:
		u, err := b.ReadU24LE()
		return uint64(u), false, err
	case first == 0xfe:
		u, err := b.ReadU64LE()
		return u, false, err
	default: // 0xff is reserved, never a valid lenenc prefix
		return 0, false, Malformed("reserved length-encoded-integer prefix 0x%02x", first)
	}
}

// WriteLenEncInt appends v in the minimum-width MySQL length-encoded form:
// 1 byte for v <= 250, 3 bytes (0xFC prefix) for v <= 0xFFFF, 4 bytes
// (0xFD prefix) for v <= 0xFFFFFF, 9 bytes (0xFE prefix) otherwise.
func (b *Buffer) WriteLenEncInt(v uint64) {
	switch {
	case v <= 250:
		b.WriteU8(byte(v))
	case v <= 0xffff:
		b.WriteU8(0xfc)
		b.WriteU16LE(uint16(v))
	case v <= 0xffffff:
		b.WriteU8(0xfd)
		b.WriteU24LE(uint32(v))
	default:
		b.WriteU8(0xfe)
		b.WriteU64LE(v)
	}
}

// WriteLenEncNull appends the length-encoded NULL sentinel (0xFB). Valid
// only in row-field context.
func (b *Buffer) WriteLenEncNull() {
	b.WriteU8(NullLenEnc)
}

// ReadLenEncString reads a length-encoded string: a length-encoded integer
// followed by that many bytes. isNull mirrors ReadLenEncInt.
func (b *Buffer) ReadLenEncString() (s []byte, isNull bool, err error) {
	n, isNull, err := b.ReadLenEncInt()
	if err != nil || isNull {
		return nil, isNull, err
	}
	s, err = b.ReadFixed(int(n))
	return s, false, err
}

// WriteLenEncString appends the length-encoded form of s.
func (b *Buffer) WriteLenEncString(s []byte) {
	b.WriteLenEncInt(uint64(len(s)))
	b.WriteFixed(s)
}

// LenEncIntSize returns the number of bytes WriteLenEncInt would emit for v,
// used to size NULL-bitmap-adjacent allocations without double-encoding.
func LenEncIntSize(v uint64) int {
	switch {
	case v <= 250:
		return 1
	case v <= 0xffff:
		return 3
	case v <= 0xffffff:
		return 4
	default:
		return 9
	}
}
