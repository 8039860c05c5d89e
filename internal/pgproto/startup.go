package pgproto

import "github.com/dbbouncer/dbclient/internal/wire"

// EncodeSSLRequest builds the 8-byte SSLRequest message, sent (untagged)
// before StartupMessage to ask whether the server will accept a TLS
// upgrade. The server replies with a single byte: 'S' or 'N'.
func EncodeSSLRequest() []byte {
	b := wire.NewWriteBuffer(8)
	b.WriteI32BE(8)
	b.WriteI32BE(SSLRequestCode)
	return b.Bytes()
}

// StartupMessage is the first message a client sends on a plaintext (or
// TLS-upgraded) connection: protocol version plus a set of key/value
// parameters such as "user" and "database" (spec §3 "StartupMessage").
type StartupMessage struct {
	Parameters map[string]string
}

// Encode serializes a StartupMessage (untagged: int32 length, int32
// protocol version, then "key\0value\0" pairs, terminated by a final NUL).
func (s *StartupMessage) Encode() []byte {
	body := wire.NewWriteBuffer(64)
	body.WriteI32BE(ProtocolVersion3)
	for k, v := range s.Parameters {
		body.WriteNulString(k)
		body.WriteNulString(v)
	}
	body.WriteU8(0)

	out := wire.NewWriteBuffer(4 + body.Len())
	out.WriteI32BE(int32(4 + body.Len()))
	out.WriteFixed(body.Bytes())
	return out.Bytes()
}
